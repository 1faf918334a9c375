package bot

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/freddie-nelson/ig-bot/internal/wait"
)

// Init launches the browser, restores saved cookies, opens the home page and
// dismisses the cookie consent dialog if one is shown.
func (b *Bot) Init(ctx context.Context) (err error) {
	ctx, release, err := b.guard(ctx, "Init", needsFree, needsUninit)
	if err != nil {
		return err
	}
	defer release()

	if err := b.transition(StateInitializing); err != nil {
		return err
	}

	page, err := b.launcher.Launch(ctx)
	if err != nil {
		b.transition(StateUninit)
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	b.mu.Lock()
	b.page = page
	b.mu.Unlock()
	ctx = withPage(ctx, page)

	defer func() {
		if err != nil {
			b.teardown(context.WithoutCancel(ctx), StateUninit)
		}
	}()

	b.restoreCookies(ctx)

	if err := b.navigatePath(ctx, "/", false); err != nil {
		return err
	}
	if err := b.acceptCookieConsent(ctx); err != nil {
		return err
	}

	if err := b.transition(StateInitialized); err != nil {
		return err
	}
	b.log().Info("Session initialized")
	return nil
}

// Close releases the browser session and resets every flag. It does not wait for a
// running operation; that operation fails once its page is gone.
func (b *Bot) Close(ctx context.Context) error {
	if err := b.check("Close", needsInit); err != nil {
		return err
	}
	if err := b.transition(StateClosing); err != nil {
		return err
	}
	err := b.teardown(ctx, StateUninit)
	b.log().Info("Session closed")
	return err
}

// teardown closes the page, whatever happened before, and lands in state.
func (b *Bot) teardown(ctx context.Context, state SessionState) error {
	b.mu.Lock()
	page := b.page
	b.page = nil
	b.state = state
	b.busy = false
	b.gen++
	if b.endSession != nil {
		b.endSession()
	}
	b.session, b.endSession = nil, nil
	b.mu.Unlock()

	if page == nil {
		return nil
	}
	if err := page.Close(ctx); err != nil {
		return fmt.Errorf("failed to close browser: %w", err)
	}
	return nil
}

// Login signs in with the bot's credentials. If saved cookies already authenticate
// the session the credential form is skipped.
func (b *Bot) Login(ctx context.Context) error {
	ctx, release, err := b.guard(ctx, "Login", needsFree, needsInit, needsLogout)
	if err != nil {
		return err
	}
	defer release()

	if b.username == "" || b.password == "" {
		return invalid("credentials", "", "username and password are required")
	}

	if err := b.transition(StateLoggingIn); err != nil {
		return err
	}
	if err := b.login(ctx); err != nil {
		b.transition(StateInitialized)
		return err
	}
	if err := b.transition(StateLoggedIn); err != nil {
		return err
	}
	b.log().Info("Logged in")

	if err := b.declineOnetapLogin(ctx); err != nil {
		return err
	}
	if err := b.declineNotifications(ctx); err != nil {
		return err
	}
	b.persistCookies(ctx)
	return nil
}

func (b *Bot) login(ctx context.Context) error {
	if err := b.navigatePath(ctx, PathLogin, false); err != nil {
		return err
	}

	current, err := b.currentURL(ctx)
	if err != nil {
		return err
	}
	if !strings.Contains(current, PathLogin) {
		b.log().Info("Session restored from saved cookies")
		return nil
	}

	p := b.currentPage(ctx)

	username, err := b.waitForElement(ctx, SelUsernameInput, b.opts.ElementTimeout)
	if err != nil {
		return err
	}
	if err := b.fillInput(ctx, username, b.username); err != nil {
		return fmt.Errorf("failed to enter username: %w", err)
	}

	password, err := b.waitForElement(ctx, SelPasswordInput, b.opts.ElementTimeout)
	if err != nil {
		return err
	}
	if err := b.fillInput(ctx, password, b.password); err != nil {
		return fmt.Errorf("failed to enter password: %w", err)
	}

	submit, err := b.waitForElement(ctx, SelSubmitButton, b.opts.ElementTimeout)
	if err != nil {
		return err
	}
	if err := p.Click(ctx, submit); err != nil {
		return fmt.Errorf("failed to submit login form: %w", err)
	}

	spinner, err := b.tryElement(ctx, SelLoginSpinner, b.opts.SpinnerTimeout)
	if err != nil {
		return err
	}
	if spinner != nil {
		if err := b.waitForNoElement(ctx, SelLoginSpinner, b.opts.LoginTimeout); err != nil {
			return err
		}
	}
	if err := b.pause(ctx, 1); err != nil {
		return err
	}

	alert, err := b.query(ctx, SelAlert)
	if err != nil {
		return err
	}
	if alert != nil {
		msg, _ := alert.Text(ctx)
		return &RemoteRejectionError{Op: "login", Message: strings.TrimSpace(msg)}
	}

	return b.waitForNavigationIfURLMatches(ctx, PathLogin, b.opts.LoginTimeout)
}

// Logout signs out and waits for the login form as proof.
func (b *Bot) Logout(ctx context.Context) error {
	ctx, release, err := b.guard(ctx, "Logout", loggedInOp...)
	if err != nil {
		return err
	}
	defer release()

	if err := b.transition(StateLoggingOut); err != nil {
		return err
	}
	if err := b.logout(ctx); err != nil {
		b.transition(StateLoggedIn)
		return err
	}
	if err := b.transition(StateInitialized); err != nil {
		return err
	}

	if jar := b.opts.Cookies; jar != nil {
		if err := jar.Clear(); err != nil {
			b.log().Debug("Failed to clear saved cookies", zap.Error(err))
		}
	}
	b.log().Info("Logged out")
	return nil
}

func (b *Bot) logout(ctx context.Context) error {
	if err := b.navigatePath(ctx, PathLogout, false); err != nil {
		return err
	}
	_, err := b.waitForElement(ctx, SelUsernameInput, b.opts.ElementTimeout)
	return err
}

// acceptCookieConsent picks the essential-only option when the consent dialog shows.
func (b *Bot) acceptCookieConsent(ctx context.Context) error {
	dialog, err := b.tryElement(ctx, SelDialog, b.opts.SoftTimeout)
	if err != nil {
		return err
	}
	if dialog == nil {
		b.log().Debug("No cookie consent dialog")
		return nil
	}

	btn, err := b.tryElementWithText(ctx, SelAnyButton, TextEssentialCookies, matchExact, b.opts.SoftTimeout)
	if err != nil {
		return err
	}
	if btn == nil {
		b.log().Debug("Dialog shown without a cookie consent button")
		return nil
	}
	if err := b.currentPage(ctx).Click(ctx, btn); err != nil {
		b.log().Warn("Failed to dismiss cookie consent", zap.Error(err))
	}
	return nil
}

// declineOnetapLogin dismisses the "save login info" page shown after login.
func (b *Bot) declineOnetapLogin(ctx context.Context) error {
	current, err := b.currentURL(ctx)
	if err != nil {
		return err
	}
	if !strings.Contains(current, PathOnetap) {
		return nil
	}
	return b.dismiss(ctx, "one-tap login")
}

// declineNotifications dismisses the push notification prompt.
func (b *Bot) declineNotifications(ctx context.Context) error {
	dialog, err := b.tryElement(ctx, SelDialog, b.opts.SoftTimeout)
	if err != nil {
		return err
	}
	if dialog == nil {
		b.log().Debug("No notification prompt")
		return nil
	}
	return b.dismiss(ctx, "notifications")
}

func (b *Bot) dismiss(ctx context.Context, what string) error {
	btn, err := b.tryElementWithText(ctx, SelAnyButton, TextNotNow, matchExact, b.opts.ElementTimeout)
	if err != nil {
		return err
	}
	if btn == nil {
		b.log().Debug("Nothing to decline", zap.String("prompt", what))
		return nil
	}
	if err := b.currentPage(ctx).Click(ctx, btn); err != nil {
		b.log().Warn("Failed to decline prompt", zap.String("prompt", what), zap.Error(err))
		return nil
	}
	b.log().Debug("Declined prompt", zap.String("prompt", what))

	loadCtx, cancel := context.WithTimeout(ctx, b.opts.NavigationTimeout)
	defer cancel()
	if err := b.currentPage(ctx).WaitForLoad(loadCtx); err != nil && ctx.Err() == nil {
		return wait.Sleep(ctx, b.opts.LoadGrace)
	}
	return ctx.Err()
}

func (b *Bot) restoreCookies(ctx context.Context) {
	jar := b.opts.Cookies
	if jar == nil {
		return
	}
	cookies, err := jar.Cookies()
	if err != nil {
		b.log().Debug("No saved session", zap.Error(err))
		return
	}
	if err := b.currentPage(ctx).SetCookies(ctx, cookies); err != nil {
		b.log().Warn("Failed to restore saved cookies", zap.Error(err))
		return
	}
	b.log().Debug("Restored saved cookies", zap.Int("count", len(cookies)))
}

func (b *Bot) persistCookies(ctx context.Context) {
	jar := b.opts.Cookies
	if jar == nil {
		return
	}
	cookies, err := b.currentPage(ctx).Cookies(ctx)
	if err == nil {
		err = jar.Save(cookies)
	}
	if err != nil {
		b.log().Warn("Failed to save session cookies", zap.Error(err))
	}
}
