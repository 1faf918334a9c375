package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chromedp/chromedp"
	pkgbrowser "github.com/pkg/browser"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/freddie-nelson/ig-bot/internal/auth"
	"github.com/freddie-nelson/ig-bot/internal/browser"
	"github.com/freddie-nelson/ig-bot/internal/config"
)

func (a *app) cookiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cookies",
		Short: "Manage the stored session",
	}
	cmd.AddCommand(
		a.cookiesImportCmd(auth.ReadBrowserCookies),
		&cobra.Command{
			Use:   "status",
			Short: "Report whether a valid session is stored",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cs := a.cookieStore()
				status := "no valid session"
				if cs.IsValid() {
					status = "valid session"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", status, cs.Path())
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Delete the stored session",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.cookieStore().Clear()
			},
		},
	)
	return cmd
}

func (a *app) cookiesImportCmd(read auth.BrowserReader) *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Copy an instagram.com session from a locally installed browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.cookieStore().Import(cmd.Context(), read)
			if err != nil {
				return err
			}
			a.logger.Info("Imported browser session", zap.Int("cookies", n), zap.String("path", a.cfg.Account.CookieFile))
			return nil
		},
	}
}

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the config file",
	}
	var force bool
	initCmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a config file with every default",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.configFilePath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.WriteDefault(path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	cmd.AddCommand(initCmd, &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration without secrets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			shown := *a.cfg
			if shown.Account.Password != "" {
				shown.Account.Password = "********"
			}
			return printJSON(cmd.OutOrStdout(), shown)
		},
	})
	return cmd
}

func (a *app) configFilePath() (string, error) {
	if a.cfgFile != "" {
		return a.cfgFile, nil
	}
	return config.ConfigPath()
}

// openTarget resolves config, cache or logs to a path on disk
func (a *app) openTarget(target string) (string, error) {
	switch target {
	case "config":
		path, err := a.configFilePath()
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			if err := config.WriteDefault(path); err != nil {
				return "", err
			}
		}
		return path, nil
	case "cache", "logs":
		dir, err := config.CacheDir()
		if err != nil {
			return "", err
		}
		if target == "logs" && a.cfg.Logger.LogFile != "" {
			dir = filepath.Dir(a.cfg.Logger.LogFile)
		}
		return dir, os.MkdirAll(dir, 0700)
	}
	return "", fmt.Errorf("unknown target %q: want config, cache or logs", target)
}

func (a *app) openCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "open config|cache|logs",
		Short:     "Open the config file, cache directory or log directory",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"config", "cache", "logs"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.openTarget(args[0])
			if err != nil {
				return err
			}
			return pkgbrowser.OpenFile(path)
		},
	}
}

// botTestCmd opens a fingerprint audit page with the same launch flags the bot uses
func (a *app) botTestCmd() *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "bot-test",
		Short: "Open a bot-detection audit page in a visible stealth browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			launch := a.launchConfig()
			launch.Headless = false

			allocCtx, cancel := chromedp.NewExecAllocator(cmd.Context(), browser.Options(launch)...)
			defer cancel()
			ctx, cancel := chromedp.NewContext(allocCtx)
			defer cancel()

			a.logger.Info("Opening audit page", zap.String("url", url))
			err := chromedp.Run(ctx,
				chromedp.Navigate(url),
				chromedp.WaitVisible("body", chromedp.ByQuery),
			)
			if err != nil {
				return fmt.Errorf("failed to navigate: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Press Enter to close the browser...")
			done := make(chan struct{})
			go func() {
				defer close(done)
				_, _ = bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			}()
			select {
			case <-done:
			case <-cmd.Context().Done():
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "https://bot.sannysoft.com", "audit page to open")
	return cmd
}
