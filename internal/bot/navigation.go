package bot

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/freddie-nelson/ig-bot/internal/wait"
)

func validateURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, invalid("url", raw, err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, invalid("url", raw, "scheme must be http or https")
	}
	if u.Host == "" {
		return nil, invalid("url", raw, "missing host")
	}
	return u, nil
}

func sameLocation(a, b string) bool {
	return strings.TrimSuffix(a, "/") == strings.TrimSuffix(b, "/")
}

// navigate navigates to target and waits for the load to settle. A load that does not
// settle in time is logged and followed by a grace pause; the DOM is usually usable.
func (b *Bot) navigate(ctx context.Context, target string, skipIfAlreadyThere bool) error {
	if _, err := validateURL(target); err != nil {
		return err
	}

	p := b.currentPage(ctx)
	if skipIfAlreadyThere {
		current, err := p.URL(ctx)
		if err == nil && sameLocation(current, target) {
			b.log().Debug("Already on page, skipping navigation", zap.String("url", target))
			return nil
		}
	}

	b.log().Debug("Navigating", zap.String("url", target))

	navCtx, cancel := context.WithTimeout(ctx, b.opts.NavigationTimeout)
	defer cancel()

	err := p.Navigate(navCtx, target)
	if err == nil {
		err = p.WaitForLoad(navCtx)
	}
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var te *wait.TimeoutError
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &te) {
		b.log().Warn("Page load did not settle, continuing after grace period",
			zap.String("url", target), zap.Duration("timeout", b.opts.NavigationTimeout))
		return wait.Sleep(ctx, b.opts.LoadGrace)
	}
	return fmt.Errorf("failed to navigate to %s: %w", target, err)
}

// navigatePath navigates to a path under the base URL.
func (b *Bot) navigatePath(ctx context.Context, path string, skipIfAlreadyThere bool) error {
	return b.navigate(ctx, b.url(path), skipIfAlreadyThere)
}

// waitForNavigation waits for the location to move away from the current URL, then
// for the new page to load.
func (b *Bot) waitForNavigation(ctx context.Context, from string, timeout time.Duration) error {
	p := b.currentPage(ctx)
	_, err := wait.For(ctx, func(ctx context.Context) (string, bool, error) {
		u, err := p.URL(ctx)
		if err != nil {
			return "", false, err
		}
		return u, !sameLocation(u, from), nil
	}, b.waitOpts(timeout, "navigation away from "+from))
	if err != nil {
		return err
	}

	loadCtx, cancel := context.WithTimeout(ctx, b.opts.NavigationTimeout)
	defer cancel()
	if err := p.WaitForLoad(loadCtx); err != nil && ctx.Err() == nil {
		b.log().Warn("Page load did not settle after navigation", zap.Error(err))
		return wait.Sleep(ctx, b.opts.LoadGrace)
	}
	return ctx.Err()
}

// waitForNavigationIfURLMatches waits for navigation only when the current location
// contains substr; used after actions that redirect only sometimes.
func (b *Bot) waitForNavigationIfURLMatches(ctx context.Context, substr string, timeout time.Duration) error {
	current, err := b.currentPage(ctx).URL(ctx)
	if err != nil {
		return err
	}
	if !strings.Contains(current, substr) {
		return nil
	}
	return b.waitForNavigation(ctx, current, timeout)
}

func (b *Bot) currentURL(ctx context.Context) (string, error) {
	return b.currentPage(ctx).URL(ctx)
}
