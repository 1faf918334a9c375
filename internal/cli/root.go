// Package cli wires the bot, the cookie store, the database and the scheduler into
// the ig-bot command line.
package cli

import (
	"context"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/freddie-nelson/ig-bot/internal/auth"
	"github.com/freddie-nelson/ig-bot/internal/bot"
	"github.com/freddie-nelson/ig-bot/internal/browser"
	"github.com/freddie-nelson/ig-bot/internal/config"
	"github.com/freddie-nelson/ig-bot/internal/observability"
	"github.com/freddie-nelson/ig-bot/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// app carries what PersistentPreRunE loads into every subcommand
type app struct {
	cfgFile  string
	headless bool

	cfg    *config.Config
	logger *zap.Logger

	// newLauncher is swapped out in tests
	newLauncher func(cfg browser.LaunchConfig, logger *zap.Logger) browser.Launcher
}

// NewRootCmd builds the ig-bot command tree
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{
		newLauncher: func(cfg browser.LaunchConfig, logger *zap.Logger) browser.Launcher {
			return browser.NewChromeLauncher(cfg, logger)
		},
	})
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "ig-bot",
		Short:         "Automate an Instagram account through a real browser",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is the user config dir)")
	root.PersistentFlags().BoolVar(&a.headless, "headless", true, "run the browser without a window")

	root.AddCommand(
		a.loginCmd(),
		a.logoutCmd(),
		a.postCmd(),
		a.toggleCmd("like", "Like a post", (*bot.Bot).LikePost),
		a.toggleCmd("unlike", "Remove a like from a post", (*bot.Bot).UnlikePost),
		a.toggleCmd("save", "Save a post to the collection", (*bot.Bot).SavePost),
		a.toggleCmd("unsave", "Remove a post from the collection", (*bot.Bot).UnsavePost),
		a.commentCmd(),
		a.shareCmd(),
		a.followCmd("follow", "Follow a user", (*bot.Bot).FollowUser),
		a.followCmd("unfollow", "Unfollow a user", (*bot.Bot).UnfollowUser),
		a.postsCmd(),
		a.postInfoCmd(),
		a.commentsCmd(),
		a.feedCmd(),
		a.followListCmd("followers", "List who follows a user", (*bot.Bot).GetFollowers),
		a.followListCmd("following", "List who a user follows", (*bot.Bot).GetFollowing),
		a.userCmd(),
		a.profileCmd(),
		a.privacyCmd(),
		a.watchCmd(),
		a.cookiesCmd(),
		a.configCmd(),
		a.openCmd(),
		a.botTestCmd(),
	)
	return root
}

// Execute runs the CLI and returns the process exit code
func Execute(ctx context.Context) int {
	defer observability.Sync()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		observability.GetLogger().Error("Command failed", zap.Error(err))
		return 1
	}
	return 0
}

// skipConfig marks commands that must run before a config file exists
const skipConfig = "skip-config"

func (a *app) load(cmd *cobra.Command) error {
	if _, ok := cmd.Annotations[skipConfig]; ok {
		observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "ig-bot"})
		a.logger = observability.GetLogger()
		return nil
	}

	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "ig-bot"})
		return err
	}
	if cmd.Flags().Changed("headless") {
		cfg.Browser.Headless = a.headless
	}

	observability.InitializeLogger(cfg.Logger)
	a.cfg = cfg
	a.logger = observability.GetLogger()
	return nil
}

func (a *app) launchConfig() browser.LaunchConfig {
	b := a.cfg.Browser
	return browser.LaunchConfig{
		Headless:     b.Headless,
		UserAgent:    b.UserAgent,
		WindowWidth:  b.WindowWidth,
		WindowHeight: b.WindowHeight,
		UserDataDir:  b.UserDataDir,
		ExecPath:     b.ExecPath,
	}
}

func (a *app) cookieStore() *auth.CookieStore {
	return auth.NewCookieStore(a.cfg.Account.CookieFile)
}

func (a *app) botOptions() bot.Options {
	t := a.cfg.Timeouts
	opts := bot.Options{
		BaseURL:           a.cfg.Actions.BaseURL,
		ElementTimeout:    t.Element,
		SoftTimeout:       t.Soft,
		PollInterval:      t.Poll,
		NavigationTimeout: t.Navigation,
		LoadGrace:         t.LoadGrace,
		LoginTimeout:      t.Login,
		SpinnerTimeout:    t.Spinner,
		ResponseTimeout:   t.Response,
		SearchTimeout:     t.Search,
		UploadTimeout:     t.Upload,
		Pace:              a.cfg.Actions.Pace,
		ActionInterval:    a.cfg.Actions.Interval,
	}
	if a.cfg.Account.RestoreSession {
		opts.Cookies = a.cookieStore()
	}
	return opts
}

func (a *app) newBot() *bot.Bot {
	launcher := a.newLauncher(a.launchConfig(), a.logger)
	return bot.New(a.cfg.Account.Username, a.cfg.Account.Password, launcher, a.botOptions(), a.logger)
}

// withSession starts a browser, logs in and runs fn. The browser is closed afterwards
// even when ctx was cancelled.
func (a *app) withSession(ctx context.Context, fn func(ctx context.Context, b *bot.Bot) error) error {
	if !a.cfg.HasCredentials() {
		return fmt.Errorf("account.username and account.password must be set (config, IGBOT_ACCOUNT_* or INSTA_USERNAME/INSTA_PASSWORD)")
	}

	b := a.newBot()
	if err := b.Init(ctx); err != nil {
		return err
	}
	defer func() {
		if err := b.Close(context.WithoutCancel(ctx)); err != nil {
			a.logger.Warn("Failed to close browser", zap.Error(err))
		}
	}()

	if err := b.Login(ctx); err != nil {
		return err
	}
	return fn(ctx, b)
}

// withStore opens the database only when persist is set
func (a *app) withStore(persist bool, fn func(st *store.Store) error) error {
	if !persist {
		return fn(nil)
	}
	st, err := store.New(a.cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	return fn(st)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
