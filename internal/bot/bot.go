// Package bot drives an Instagram account through a browser.Page. Every public
// operation is guarded by the session state and marks the bot busy while it runs.
package bot

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/freddie-nelson/ig-bot/internal/browser"
	"github.com/freddie-nelson/ig-bot/internal/wait"
)

const DefaultBaseURL = "https://www.instagram.com"

// CookieJar persists the session cookies between runs.
type CookieJar interface {
	Cookies() ([]*network.Cookie, error)
	Save(cookies []*network.Cookie) error
	Clear() error
}

// Options tune timeouts and pacing. Zero fields take the defaults.
type Options struct {
	BaseURL string

	// ElementTimeout bounds waits for required elements.
	ElementTimeout time.Duration
	// SoftTimeout bounds waits for optional dialogs and toasts.
	SoftTimeout  time.Duration
	PollInterval time.Duration

	NavigationTimeout time.Duration
	// LoadGrace is slept when a page load does not settle in time.
	LoadGrace       time.Duration
	LoginTimeout    time.Duration
	// SpinnerTimeout bounds the wait for the login spinner to appear after submit.
	SpinnerTimeout  time.Duration
	ResponseTimeout time.Duration
	SearchTimeout   time.Duration
	UploadTimeout   time.Duration

	// Pace is the base human-like delay between wizard steps, spread by +/-20%.
	// Negative disables pacing.
	Pace time.Duration
	// ActionInterval is the minimum gap between write actions. Zero means unlimited.
	ActionInterval time.Duration

	Cookies CookieJar
}

// DefaultOptions returns the timeouts observed to work against the live site.
func DefaultOptions() Options {
	return Options{
		BaseURL:           DefaultBaseURL,
		ElementTimeout:    10 * time.Second,
		SoftTimeout:       3 * time.Second,
		PollInterval:      wait.DefaultInterval,
		NavigationTimeout: 30 * time.Second,
		LoadGrace:         2 * time.Second,
		LoginTimeout:      30 * time.Second,
		SpinnerTimeout:    5 * time.Second,
		ResponseTimeout:   15 * time.Second,
		SearchTimeout:     60 * time.Second,
		UploadTimeout:     300 * time.Second,
		Pace:              time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.BaseURL == "" {
		o.BaseURL = d.BaseURL
	}
	o.BaseURL = strings.TrimSuffix(o.BaseURL, "/")
	fill := func(v *time.Duration, def time.Duration) {
		if *v <= 0 {
			*v = def
		}
	}
	fill(&o.ElementTimeout, d.ElementTimeout)
	fill(&o.SoftTimeout, d.SoftTimeout)
	fill(&o.PollInterval, d.PollInterval)
	fill(&o.NavigationTimeout, d.NavigationTimeout)
	fill(&o.LoginTimeout, d.LoginTimeout)
	fill(&o.SpinnerTimeout, d.SpinnerTimeout)
	fill(&o.ResponseTimeout, d.ResponseTimeout)
	fill(&o.SearchTimeout, d.SearchTimeout)
	fill(&o.UploadTimeout, d.UploadTimeout)
	if o.LoadGrace < 0 {
		o.LoadGrace = 0
	}
	if o.Pace == 0 {
		o.Pace = d.Pace
	}
	return o
}

// Bot owns one browser session for one account.
type Bot struct {
	username string
	password string

	launcher browser.Launcher
	opts     Options
	base     *zap.Logger
	logger   atomic.Pointer[zap.Logger]
	limiter  *rate.Limiter

	mu    sync.Mutex
	state SessionState
	busy  bool
	page  browser.Page

	// gen counts torn-down sessions; session is canceled when the current one ends.
	gen        uint64
	session    context.Context
	endSession context.CancelFunc
}

// New creates a bot for the given credentials. No browser is started until Init.
func New(username, password string, launcher browser.Launcher, opts Options, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.withDefaults()

	limit := rate.Inf
	if opts.ActionInterval > 0 {
		limit = rate.Every(opts.ActionInterval)
	}

	b := &Bot{
		password: password,
		launcher: launcher,
		opts:     opts,
		base:     logger.Named("bot"),
		limiter:  rate.NewLimiter(limit, 1),
	}
	b.setAccount(username)
	return b
}

// Username returns the account the bot acts as.
func (b *Bot) Username() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.username
}

// setAccount renames the account and the logger field that carries it.
func (b *Bot) setAccount(username string) {
	b.mu.Lock()
	b.username = username
	b.mu.Unlock()
	b.logger.Store(b.base.With(zap.String("account", username)))
}

func (b *Bot) log() *zap.Logger { return b.logger.Load() }

// State returns the current lifecycle state.
func (b *Bot) State() SessionState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Bot) IsInitialized() bool { return b.State().Initialized() }

func (b *Bot) IsLoggedIn() bool { return b.State().LoggedIn() }

func (b *Bot) IsBusy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.busy
}

func (b *Bot) transition(to SessionState) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.state.CanTransitionTo(to) {
		return &TransitionError{From: b.state, To: to}
	}
	b.log().Debug("State transition", zap.Stringer("from", b.state), zap.Stringer("to", to))
	b.state = to
	return nil
}

// currentPage returns the page pinned to ctx by guard, or the session page.
func (b *Bot) currentPage(ctx context.Context) browser.Page {
	if p, ok := ctx.Value(pageKey{}).(browser.Page); ok {
		return p
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.page
}

func (b *Bot) url(path string) string {
	return b.opts.BaseURL + path
}

// pause sleeps for about mult*Pace, spread by 20% either way.
func (b *Bot) pause(ctx context.Context, mult float64) error {
	if b.opts.Pace < 0 {
		return ctx.Err()
	}
	return wait.Sleep(ctx, spread(time.Duration(float64(b.opts.Pace)*mult), 0.2))
}

// throttle blocks until the next write action is allowed.
func (b *Bot) throttle(ctx context.Context) error {
	return b.limiter.Wait(ctx)
}

func spread(d time.Duration, frac float64) time.Duration {
	if d <= 0 {
		return 0
	}
	delta := (rand.Float64()*2 - 1) * frac * float64(d)
	return d + time.Duration(delta)
}
