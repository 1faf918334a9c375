package bot

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/freddie-nelson/ig-bot/internal/browser"
)

// requirement is one precondition on the session state. check runs with b.mu held.
type requirement struct {
	hint  string
	check func(b *Bot) bool
}

var (
	needsFree = requirement{
		hint:  "another operation is in progress, wait for it to finish before using %s",
		check: func(b *Bot) bool { return !b.busy },
	}
	needsUninit = requirement{
		hint:  "already initialized, close before using %s again",
		check: func(b *Bot) bool { return b.state == StateUninit },
	}
	needsInit = requirement{
		hint:  "must initialize before using %s",
		check: func(b *Bot) bool { return b.state.Initialized() },
	}
	needsLogin = requirement{
		hint:  "must login before using %s",
		check: func(b *Bot) bool { return b.state.LoggedIn() },
	}
	needsLogout = requirement{
		hint:  "must logout first before using %s",
		check: func(b *Bot) bool { return !b.state.LoggedIn() },
	}
)

// loggedInOp is the guard set shared by every account action.
var loggedInOp = []requirement{needsFree, needsInit, needsLogin}

func (b *Bot) checkLocked(op string, reqs []requirement) error {
	for _, r := range reqs {
		if !r.check(b) {
			return &PreconditionError{Op: op, Hint: fmt.Sprintf(r.hint, op)}
		}
	}
	return nil
}

// check evaluates reqs in order without marking the bot busy.
func (b *Bot) check(op string, reqs ...requirement) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.checkLocked(op, reqs)
}

// guard evaluates reqs and marks the bot busy in one step. The returned release
// must be deferred; it clears busy on every exit path unless the session it was
// taken in has since been torn down. The returned context carries the page the
// operation runs on and is canceled when that session ends.
func (b *Bot) guard(ctx context.Context, op string, reqs ...requirement) (context.Context, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkLocked(op, reqs); err != nil {
		b.log().Debug("Precondition failed", zap.String("op", op), zap.Error(err))
		return ctx, nil, err
	}
	b.busy = true

	if b.session == nil {
		b.session, b.endSession = context.WithCancel(context.Background())
	}
	gen := b.gen
	opCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(b.session, cancel)
	if b.page != nil {
		opCtx = withPage(opCtx, b.page)
	}

	return opCtx, func() {
		stop()
		cancel()
		b.mu.Lock()
		if b.gen == gen {
			b.busy = false
		}
		b.mu.Unlock()
	}, nil
}

type pageKey struct{}

// withPage pins the page an operation drives, so a later session never receives
// its calls.
func withPage(ctx context.Context, p browser.Page) context.Context {
	return context.WithValue(ctx, pageKey{}, p)
}
