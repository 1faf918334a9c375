package bot

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/freddie-nelson/ig-bot/internal/browser"
	"github.com/freddie-nelson/ig-bot/internal/types"
	"github.com/freddie-nelson/ig-bot/internal/wait"
)

// genderOrder is the position of each option in the gender fieldset.
var genderOrder = map[types.Gender]int{
	types.GenderMale:           0,
	types.GenderFemale:         1,
	types.GenderCustom:         2,
	types.GenderPreferNotToSay: 3,
}

func validateProfile(p types.Profile) error {
	checks := []struct {
		set   bool
		check func() error
	}{
		{p.Username != "", func() error { return validateUsername(p.Username) }},
		{p.Password != "", func() error { return validatePassword(p.Password) }},
		{p.Email != "", func() error { return validateEmail(p.Email) }},
		{p.Name != "", func() error { return validateName(p.Name) }},
		{p.Phone != "", func() error { return validatePhone(p.Phone) }},
		{p.Gender != "", func() error { return validateGender(p.Gender, p.CustomGender) }},
		{p.Bio != "", func() error { return validateBio(p.Bio) }},
		{p.Website != "", func() error { return validateWebsite(p.Website) }},
	}
	for _, c := range checks {
		if c.set {
			if err := c.check(); err != nil {
				return err
			}
		}
	}
	return nil
}

// SetProfile applies every non-zero field of p. All fields are validated before
// anything is changed.
func (b *Bot) SetProfile(ctx context.Context, p types.Profile) error {
	ctx, release, err := b.guard(ctx, "SetProfile", loggedInOp...)
	if err != nil {
		return err
	}
	defer release()

	if err := validateProfile(p); err != nil {
		return err
	}
	if err := b.throttle(ctx); err != nil {
		return err
	}

	steps := []struct {
		set bool
		run func() error
	}{
		{p.Name != "", func() error { return b.setName(ctx, p.Name) }},
		{p.Username != "", func() error { return b.setUsername(ctx, p.Username) }},
		{p.Website != "", func() error { return b.setWebsite(ctx, p.Website) }},
		{p.Bio != "", func() error { return b.setBio(ctx, p.Bio) }},
		{p.Email != "", func() error { return b.setEmail(ctx, p.Email) }},
		{p.Phone != "", func() error { return b.setPhone(ctx, p.Phone) }},
		{p.Gender != "", func() error { return b.setGender(ctx, p.Gender, p.CustomGender) }},
		{p.Chaining != nil, func() error { return b.setChaining(ctx, *p.Chaining) }},
		{p.Password != "", func() error { return b.setPassword(ctx, p.Password) }},
	}
	for _, s := range steps {
		if !s.set {
			continue
		}
		if err := s.run(); err != nil {
			return err
		}
	}
	return nil
}

// profileSetter wraps a single-field setter with its guard, validation and pacing.
func (b *Bot) profileSetter(ctx context.Context, op string, validate func() error, set func(ctx context.Context) error) error {
	ctx, release, err := b.guard(ctx, op, loggedInOp...)
	if err != nil {
		return err
	}
	defer release()

	if err := validate(); err != nil {
		return err
	}
	if err := b.throttle(ctx); err != nil {
		return err
	}
	return set(ctx)
}

func (b *Bot) SetName(ctx context.Context, name string) error {
	return b.profileSetter(ctx, "SetName",
		func() error { return validateName(name) },
		func(ctx context.Context) error { return b.setName(ctx, name) })
}

func (b *Bot) SetUsername(ctx context.Context, username string) error {
	return b.profileSetter(ctx, "SetUsername",
		func() error { return validateUsername(username) },
		func(ctx context.Context) error { return b.setUsername(ctx, username) })
}

func (b *Bot) SetWebsite(ctx context.Context, website string) error {
	return b.profileSetter(ctx, "SetWebsite",
		func() error { return validateWebsite(website) },
		func(ctx context.Context) error { return b.setWebsite(ctx, website) })
}

func (b *Bot) SetBio(ctx context.Context, bio string) error {
	return b.profileSetter(ctx, "SetBio",
		func() error { return validateBio(bio) },
		func(ctx context.Context) error { return b.setBio(ctx, bio) })
}

func (b *Bot) SetEmail(ctx context.Context, email string) error {
	return b.profileSetter(ctx, "SetEmail",
		func() error { return validateEmail(email) },
		func(ctx context.Context) error { return b.setEmail(ctx, email) })
}

func (b *Bot) SetPhone(ctx context.Context, phone string) error {
	return b.profileSetter(ctx, "SetPhone",
		func() error { return validatePhone(phone) },
		func(ctx context.Context) error { return b.setPhone(ctx, phone) })
}

// SetGender selects g; custom is only used with types.GenderCustom.
func (b *Bot) SetGender(ctx context.Context, g types.Gender, custom string) error {
	return b.profileSetter(ctx, "SetGender",
		func() error { return validateGender(g, custom) },
		func(ctx context.Context) error { return b.setGender(ctx, g, custom) })
}

// SetChaining opts the account in or out of being suggested to others.
func (b *Bot) SetChaining(ctx context.Context, enabled bool) error {
	return b.profileSetter(ctx, "SetChaining",
		func() error { return nil },
		func(ctx context.Context) error { return b.setChaining(ctx, enabled) })
}

func (b *Bot) SetPassword(ctx context.Context, password string) error {
	return b.profileSetter(ctx, "SetPassword",
		func() error { return validatePassword(password) },
		func(ctx context.Context) error { return b.setPassword(ctx, password) })
}

func (b *Bot) setName(ctx context.Context, name string) error {
	return b.setField(ctx, "name", SelName, name)
}

func (b *Bot) setUsername(ctx context.Context, username string) error {
	if err := b.setField(ctx, "username", SelUsername, username); err != nil {
		return err
	}
	b.setAccount(username)
	return nil
}

func (b *Bot) setWebsite(ctx context.Context, website string) error {
	return b.setField(ctx, "website", SelWebsite, website)
}

func (b *Bot) setBio(ctx context.Context, bio string) error {
	return b.setField(ctx, "bio", SelBio, bio)
}

func (b *Bot) setEmail(ctx context.Context, email string) error {
	return b.setField(ctx, "email", SelEmail, email)
}

func (b *Bot) setPhone(ctx context.Context, phone string) error {
	return b.setField(ctx, "phone", SelPhone, phone)
}

// setField replaces one text input of the edit form and saves.
func (b *Bot) setField(ctx context.Context, field, selector, value string) error {
	if err := b.navigatePath(ctx, PathEditProfile, true); err != nil {
		return err
	}
	input, err := b.waitForElement(ctx, selector, b.opts.ElementTimeout)
	if err != nil {
		return err
	}
	if err := b.fillInput(ctx, input, value); err != nil {
		return fmt.Errorf("failed to enter %s: %w", field, err)
	}
	b.log().Debug("Profile field entered", zap.String("field", field))
	return b.saveProfileChanges(ctx)
}

func (b *Bot) setGender(ctx context.Context, g types.Gender, custom string) error {
	if err := b.navigatePath(ctx, PathEditProfile, true); err != nil {
		return err
	}
	p := b.currentPage(ctx)

	opener, err := b.waitForElement(ctx, SelGender, b.opts.ElementTimeout)
	if err != nil {
		return err
	}
	if err := p.Click(ctx, opener); err != nil {
		return err
	}

	dialog, err := b.waitForElement(ctx, SelDialog, b.opts.ElementTimeout)
	if err != nil {
		return err
	}
	fieldset, err := dialog.QuerySelector(ctx, SelGenderOptions)
	if err != nil {
		return err
	}
	if fieldset == nil {
		return &TimeoutError{What: "gender options", After: b.opts.ElementTimeout}
	}
	options, err := fieldset.Children(ctx)
	if err != nil {
		return err
	}
	idx := genderOrder[g]
	if idx >= len(options) {
		return fmt.Errorf("gender option %q not found (%d options shown)", g, len(options))
	}
	if err := p.Click(ctx, options[idx]); err != nil {
		return err
	}

	if g == types.GenderCustom {
		input, err := b.waitForElement(ctx, SelCustomGender, b.opts.ElementTimeout)
		if err != nil {
			return err
		}
		if err := b.fillInput(ctx, input, custom); err != nil {
			return err
		}
	}

	if err := b.clickButton(ctx, TextDone, b.opts.ElementTimeout); err != nil {
		return err
	}
	if err := b.waitForNoElement(ctx, SelDialog, b.opts.ElementTimeout); err != nil {
		return err
	}
	return b.saveProfileChanges(ctx)
}

func (b *Bot) setChaining(ctx context.Context, enabled bool) error {
	if err := b.navigatePath(ctx, PathEditProfile, true); err != nil {
		return err
	}
	checkbox, err := b.waitForElement(ctx, SelChainingCheckbox, b.opts.ElementTimeout)
	if err != nil {
		return err
	}
	checked, err := checkbox.Property(ctx, "checked")
	if err != nil {
		return err
	}
	if checked == enabled {
		b.log().Debug("Chaining already set", zap.Bool("enabled", enabled))
		return nil
	}

	label, err := b.waitForElement(ctx, SelChainingLabel, b.opts.ElementTimeout)
	if err != nil {
		return err
	}
	if err := b.currentPage(ctx).Click(ctx, label); err != nil {
		return err
	}
	return b.saveProfileChanges(ctx)
}

func (b *Bot) setPassword(ctx context.Context, password string) error {
	if err := b.navigatePath(ctx, PathChangePassword, true); err != nil {
		return err
	}

	fields := []struct {
		selector string
		value    string
	}{
		{SelOldPassword, b.password},
		{SelNewPassword, password},
		{SelConfirmPassword, password},
	}
	for _, f := range fields {
		el, err := b.waitForElement(ctx, f.selector, b.opts.ElementTimeout)
		if err != nil {
			return err
		}
		if err := b.fillInput(ctx, el, f.value); err != nil {
			return err
		}
	}

	before, err := b.toastBaseline(ctx, TextPasswordChanged)
	if err != nil {
		return err
	}
	if err := b.clickButton(ctx, TextChangePassword, b.opts.ElementTimeout); err != nil {
		return err
	}
	if err := b.expectToast(ctx, "SetPassword", before, TextPasswordChanged); err != nil {
		return err
	}
	b.password = password
	return nil
}

// saveProfileChanges submits the edit form when there is something to submit and
// requires the success toast.
func (b *Bot) saveProfileChanges(ctx context.Context) error {
	btn, err := b.waitForElementWithText(ctx, SelAnyButton, TextSubmit, matchExact, b.opts.ElementTimeout)
	if err != nil {
		return err
	}
	disabled, err := isDisabled(ctx, btn)
	if err != nil {
		return err
	}
	if disabled {
		b.log().Debug("No profile changes to save")
		return nil
	}

	before, err := b.toastBaseline(ctx, TextProfileSaved)
	if err != nil {
		return err
	}
	if err := b.currentPage(ctx).Click(ctx, btn); err != nil {
		return fmt.Errorf("failed to submit profile: %w", err)
	}
	return b.expectToast(ctx, "SetProfile", before, TextProfileSaved)
}

func isDisabled(ctx context.Context, el browser.Element) (bool, error) {
	disabled, err := el.Property(ctx, "disabled")
	if err != nil || disabled {
		return disabled, err
	}
	aria, ok, err := el.Attribute(ctx, "aria-disabled")
	return ok && aria == "true", err
}

// toastBaseline gives a success toast left by an earlier save time to fade, then
// records the toasts still shown so the next one is recognized as new.
func (b *Bot) toastBaseline(ctx context.Context, success string) (map[string]bool, error) {
	_, _, err := wait.Try(ctx, func(ctx context.Context) (struct{}, bool, error) {
		el, err := b.findElementWithText(ctx, SelToast, success, matchExact)
		return struct{}{}, el == nil, err
	}, b.waitOpts(b.opts.ElementTimeout, "stale toast"))
	if err != nil {
		return nil, err
	}
	return b.toastTexts(ctx)
}

func (b *Bot) toastTexts(ctx context.Context) (map[string]bool, error) {
	els, err := b.queryAll(ctx, SelToast)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(els))
	for _, el := range els {
		text, err := el.Text(ctx)
		if err != nil {
			return nil, err
		}
		seen[strings.TrimSpace(text)] = true
	}
	return seen, nil
}

// expectToast waits for a toast that was not on the page before and requires it to
// read success. Any other text is the site's rejection message.
func (b *Bot) expectToast(ctx context.Context, op string, before map[string]bool, success string) error {
	text, err := wait.For(ctx, func(ctx context.Context) (string, bool, error) {
		els, err := b.queryAll(ctx, SelToast)
		if err != nil {
			return "", false, err
		}
		for _, el := range els {
			t, err := el.Text(ctx)
			if err != nil {
				return "", false, err
			}
			t = strings.TrimSpace(t)
			if t != "" && !before[t] {
				return t, true, nil
			}
		}
		return "", false, nil
	}, b.waitOpts(b.opts.ElementTimeout, "confirmation toast"))
	if err != nil {
		return err
	}
	if !matchExact.matches(text, success) {
		return &RemoteRejectionError{Op: op, Message: text}
	}
	return nil
}

// GetProfile reads the current values of the edit form.
func (b *Bot) GetProfile(ctx context.Context) (types.Profile, error) {
	ctx, release, err := b.guard(ctx, "GetProfile", loggedInOp...)
	if err != nil {
		return types.Profile{}, err
	}
	defer release()

	if err := b.navigatePath(ctx, PathEditProfile, true); err != nil {
		return types.Profile{}, err
	}
	if _, err := b.waitForElement(ctx, SelUsername, b.opts.ElementTimeout); err != nil {
		return types.Profile{}, err
	}

	var p types.Profile
	fields := []struct {
		selector string
		dst      *string
	}{
		{SelUsername, &p.Username},
		{SelName, &p.Name},
		{SelEmail, &p.Email},
		{SelPhone, &p.Phone},
		{SelBio, &p.Bio},
		{SelWebsite, &p.Website},
	}
	for _, f := range fields {
		el, err := b.query(ctx, f.selector)
		if err != nil {
			return types.Profile{}, err
		}
		if el == nil {
			continue
		}
		if *f.dst, err = el.Value(ctx); err != nil {
			return types.Profile{}, err
		}
	}

	if el, err := b.query(ctx, SelGender); err == nil && el != nil {
		text, _ := el.Text(ctx)
		p.Gender, p.CustomGender = parseGender(text)
	}
	if el, err := b.query(ctx, SelChainingCheckbox); err == nil && el != nil {
		if checked, err := el.Property(ctx, "checked"); err == nil {
			p.Chaining = &checked
		}
	}
	return p, nil
}

func parseGender(text string) (types.Gender, string) {
	text = strings.TrimSpace(text)
	switch strings.ToLower(text) {
	case "":
		return "", ""
	case "male":
		return types.GenderMale, ""
	case "female":
		return types.GenderFemale, ""
	case "prefer not to say":
		return types.GenderPreferNotToSay, ""
	}
	return types.GenderCustom, text
}
