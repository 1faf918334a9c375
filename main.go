// Command ig-bot automates an Instagram account through a real browser.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/freddie-nelson/ig-bot/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx)
	stop()
	os.Exit(code)
}
