package bot

import (
	"context"
	"runtime"
	"strings"
	"time"

	"github.com/freddie-nelson/ig-bot/internal/browser"
	"github.com/freddie-nelson/ig-bot/internal/wait"
)

// TextMatch controls text comparison in element lookups.
type TextMatch struct {
	Exact         bool
	CaseSensitive bool
}

// matchExact is the default lookup: whole trimmed text, case-insensitive.
var (
	matchExact    = TextMatch{Exact: true}
	matchContains = TextMatch{}
)

func (m TextMatch) matches(have, want string) bool {
	have = strings.TrimSpace(have)
	if !m.CaseSensitive {
		have = strings.ToLower(have)
		want = strings.ToLower(want)
	}
	if m.Exact {
		return have == want
	}
	return strings.Contains(have, want)
}

func (b *Bot) waitOpts(timeout time.Duration, what string) wait.Options {
	return wait.Options{Timeout: timeout, Interval: b.opts.PollInterval, What: what}
}

// query is a single lookup without waiting.
func (b *Bot) query(ctx context.Context, selector string) (browser.Element, error) {
	return b.currentPage(ctx).QuerySelector(ctx, selector)
}

func (b *Bot) queryAll(ctx context.Context, selector string) ([]browser.Element, error) {
	return b.currentPage(ctx).QuerySelectorAll(ctx, selector)
}

func (b *Bot) elementCondition(selector string) wait.Condition[browser.Element] {
	return func(ctx context.Context) (browser.Element, bool, error) {
		el, err := b.query(ctx, selector)
		return el, el != nil, err
	}
}

// waitForElement is a hard wait for selector to match.
func (b *Bot) waitForElement(ctx context.Context, selector string, timeout time.Duration) (browser.Element, error) {
	return wait.For(ctx, b.elementCondition(selector), b.waitOpts(timeout, "element "+selector))
}

// tryElement is a soft wait for selector; a nil element means it never appeared.
func (b *Bot) tryElement(ctx context.Context, selector string, timeout time.Duration) (browser.Element, error) {
	el, _, err := wait.Try(ctx, b.elementCondition(selector), b.waitOpts(timeout, "element "+selector))
	return el, err
}

// waitForNoElement waits until selector no longer matches.
func (b *Bot) waitForNoElement(ctx context.Context, selector string, timeout time.Duration) error {
	return wait.Absent(ctx, func(ctx context.Context) (bool, error) {
		el, err := b.query(ctx, selector)
		return el != nil, err
	}, b.waitOpts(timeout, "absence of "+selector))
}

// findElementWithText scans selector matches in document order and returns the first
// whose text satisfies m, or nil.
func (b *Bot) findElementWithText(ctx context.Context, selector, text string, m TextMatch) (browser.Element, error) {
	els, err := b.queryAll(ctx, selector)
	if err != nil {
		return nil, err
	}
	return firstWithText(ctx, els, text, m)
}

func firstWithText(ctx context.Context, els []browser.Element, text string, m TextMatch) (browser.Element, error) {
	for _, el := range els {
		have, err := el.Text(ctx)
		if err != nil {
			return nil, err
		}
		if m.matches(have, text) {
			return el, nil
		}
	}
	return nil, nil
}

func (b *Bot) textCondition(selector, text string, m TextMatch) wait.Condition[browser.Element] {
	return func(ctx context.Context) (browser.Element, bool, error) {
		el, err := b.findElementWithText(ctx, selector, text, m)
		return el, el != nil, err
	}
}

func (b *Bot) waitForElementWithText(ctx context.Context, selector, text string, m TextMatch, timeout time.Duration) (browser.Element, error) {
	return wait.For(ctx, b.textCondition(selector, text, m), b.waitOpts(timeout, "text "+text))
}

func (b *Bot) tryElementWithText(ctx context.Context, selector, text string, m TextMatch, timeout time.Duration) (browser.Element, error) {
	el, _, err := wait.Try(ctx, b.textCondition(selector, text, m), b.waitOpts(timeout, "text "+text))
	return el, err
}

func (b *Bot) waitForNoElementWithText(ctx context.Context, selector, text string, m TextMatch, timeout time.Duration) error {
	return wait.Absent(ctx, func(ctx context.Context) (bool, error) {
		el, err := b.findElementWithText(ctx, selector, text, m)
		return el != nil, err
	}, b.waitOpts(timeout, "absence of text "+text))
}

// clickButton waits for a button labelled text and clicks it.
func (b *Bot) clickButton(ctx context.Context, text string, timeout time.Duration) error {
	btn, err := b.waitForElementWithText(ctx, SelAnyButton, text, matchExact, timeout)
	if err != nil {
		return err
	}
	return b.currentPage(ctx).Click(ctx, btn)
}

// clearInput focuses el and deletes its content with select-all and backspace.
func (b *Bot) clearInput(ctx context.Context, el browser.Element) error {
	p := b.currentPage(ctx)
	if err := p.Click(ctx, el); err != nil {
		return err
	}
	if err := p.Press(ctx, "a", selectAllModifier()); err != nil {
		return err
	}
	return p.Press(ctx, browser.KeyBackspace)
}

// fillInput replaces the content of el with text.
func (b *Bot) fillInput(ctx context.Context, el browser.Element, text string) error {
	if err := b.clearInput(ctx, el); err != nil {
		return err
	}
	if text == "" {
		return nil
	}
	return b.currentPage(ctx).Type(ctx, el, text)
}

func selectAllModifier() browser.Modifier {
	if runtime.GOOS == "darwin" {
		return browser.ModMeta
	}
	return browser.ModCtrl
}
