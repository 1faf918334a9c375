package bot

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/freddie-nelson/ig-bot/internal/browser"
	"github.com/freddie-nelson/ig-bot/internal/types"
	"github.com/freddie-nelson/ig-bot/internal/wait"
)

// toggle describes a two-state affordance on a post page. onMarker is present
// when the post is in the "on" state, offMarker otherwise.
type toggle struct {
	op         string
	onMarker   string
	offMarker  string
	onPattern  *regexp.Regexp
	offPattern *regexp.Regexp
}

var (
	likeToggle = toggle{op: "like", onMarker: SelUnlikeIcon, offMarker: SelLikeIcon, onPattern: ReLike, offPattern: ReUnlike}
	saveToggle = toggle{op: "save", onMarker: SelUnsaveIcon, offMarker: SelSaveIcon, onPattern: ReSave, offPattern: ReUnsave}
)

func (b *Bot) LikePost(ctx context.Context, post types.PostIdentifier) error {
	return b.setToggle(ctx, "LikePost", post, likeToggle, true)
}

func (b *Bot) UnlikePost(ctx context.Context, post types.PostIdentifier) error {
	return b.setToggle(ctx, "UnlikePost", post, likeToggle, false)
}

func (b *Bot) SavePost(ctx context.Context, post types.PostIdentifier) error {
	return b.setToggle(ctx, "SavePost", post, saveToggle, true)
}

func (b *Bot) UnsavePost(ctx context.Context, post types.PostIdentifier) error {
	return b.setToggle(ctx, "UnsavePost", post, saveToggle, false)
}

// IsPostLiked reports whether the account has liked post.
func (b *Bot) IsPostLiked(ctx context.Context, post types.PostIdentifier) (bool, error) {
	return b.readToggle(ctx, "IsPostLiked", post, likeToggle)
}

// IsPostSaved reports whether the account has saved post.
func (b *Bot) IsPostSaved(ctx context.Context, post types.PostIdentifier) (bool, error) {
	return b.readToggle(ctx, "IsPostSaved", post, saveToggle)
}

func (b *Bot) readToggle(ctx context.Context, op string, post types.PostIdentifier, t toggle) (bool, error) {
	ctx, release, err := b.guard(ctx, op, loggedInOp...)
	if err != nil {
		return false, err
	}
	defer release()

	id, err := PostIDFromIdentifier(post)
	if err != nil {
		return false, err
	}
	if err := b.navigate(ctx, b.postURL(id), true); err != nil {
		return false, err
	}
	on, _, err := b.toggleState(ctx, t)
	return on, err
}

func (b *Bot) setToggle(ctx context.Context, op string, post types.PostIdentifier, t toggle, want bool) error {
	ctx, release, err := b.guard(ctx, op, loggedInOp...)
	if err != nil {
		return err
	}
	defer release()

	id, err := PostIDFromIdentifier(post)
	if err != nil {
		return err
	}
	if err := b.navigate(ctx, b.postURL(id), true); err != nil {
		return err
	}

	on, marker, err := b.toggleState(ctx, t)
	if err != nil {
		return err
	}
	if on == want {
		b.log().Debug("Post already in requested state", zap.String("op", op), zap.String("post", id))
		return nil
	}

	if err := b.throttle(ctx); err != nil {
		return err
	}
	pattern := t.offPattern
	if want {
		pattern = t.onPattern
	}
	if err := b.clickForResponse(ctx, op, marker, pattern); err != nil {
		return err
	}
	b.log().Info("Post updated", zap.String("op", op), zap.String("post", id))
	return nil
}

// toggleState waits until either marker renders and returns the state with the
// element to click to flip it.
func (b *Bot) toggleState(ctx context.Context, t toggle) (bool, browser.Element, error) {
	type found struct {
		on bool
		el browser.Element
	}
	f, err := wait.For(ctx, func(ctx context.Context) (found, bool, error) {
		on, err := b.query(ctx, t.onMarker)
		if err != nil || on != nil {
			return found{true, on}, on != nil, err
		}
		off, err := b.query(ctx, t.offMarker)
		return found{false, off}, off != nil, err
	}, b.waitOpts(b.opts.ElementTimeout, t.op+" button"))
	return f.on, f.el, err
}

// clickForResponse clicks el and waits for the request it fires. The response is
// the completion signal; a non-2xx status is the site refusing the action.
func (b *Bot) clickForResponse(ctx context.Context, op string, el browser.Element, pattern *regexp.Regexp) error {
	p := b.currentPage(ctx)
	respCtx, cancel := context.WithTimeout(ctx, b.opts.ResponseTimeout)
	defer cancel()

	resp, err := p.WaitForResponse(respCtx, pattern, func(ctx context.Context) error {
		return p.Click(ctx, el)
	})
	if err != nil {
		return asTimeout(ctx, err, op+" response", b.opts.ResponseTimeout)
	}
	if !resp.OK() {
		return &RemoteRejectionError{Op: op, Message: fmt.Sprintf("status %d from %s", resp.Status, resp.URL)}
	}
	return nil
}

// Comment posts text on post. Line breaks are kept.
func (b *Bot) Comment(ctx context.Context, post types.PostIdentifier, text string) error {
	ctx, release, err := b.guard(ctx, "Comment", loggedInOp...)
	if err != nil {
		return err
	}
	defer release()

	id, err := PostIDFromIdentifier(post)
	if err != nil {
		return err
	}
	if err := validateComment(text); err != nil {
		return err
	}
	if err := b.throttle(ctx); err != nil {
		return err
	}

	if err := b.navigate(ctx, b.postURL(id), true); err != nil {
		return err
	}
	box, err := b.waitForElement(ctx, SelCommentBox, b.opts.ElementTimeout)
	if err != nil {
		return err
	}
	if err := b.typeMultiline(ctx, box, text); err != nil {
		return fmt.Errorf("failed to enter comment: %w", err)
	}

	submit, err := b.waitForElementWithText(ctx, SelAnyButton, TextPostComment, matchExact, b.opts.ElementTimeout)
	if err != nil {
		return err
	}
	if err := b.clickForResponse(ctx, "Comment", submit, ReCommentAdd); err != nil {
		return err
	}
	b.log().Info("Comment posted", zap.String("post", id))
	return nil
}

// SharePost sends post to each recipient by direct message, with an optional message.
func (b *Bot) SharePost(ctx context.Context, post types.PostIdentifier, recipients []string, message string) error {
	ctx, release, err := b.guard(ctx, "SharePost", loggedInOp...)
	if err != nil {
		return err
	}
	defer release()

	id, err := PostIDFromIdentifier(post)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return invalid("recipients", "", "at least one recipient is required")
	}
	for _, r := range recipients {
		if err := validateUsername(r); err != nil {
			return err
		}
	}
	if err := b.throttle(ctx); err != nil {
		return err
	}

	if err := b.navigate(ctx, b.postURL(id), true); err != nil {
		return err
	}
	p := b.currentPage(ctx)

	share, err := b.waitForElement(ctx, SelShareIcon, b.opts.ElementTimeout)
	if err != nil {
		return err
	}
	if err := p.Click(ctx, share); err != nil {
		return err
	}
	if _, err := b.waitForElement(ctx, SelDialog, b.opts.ElementTimeout); err != nil {
		return err
	}

	for _, r := range recipients {
		search, err := b.waitForElement(ctx, SelShareSearch, b.opts.ElementTimeout)
		if err != nil {
			return err
		}
		if err := b.fillInput(ctx, search, r); err != nil {
			return err
		}
		result, err := b.waitForElementWithText(ctx, SelShareResult, r, matchExact, b.opts.ElementTimeout)
		if err != nil {
			return fmt.Errorf("recipient %s not found: %w", r, err)
		}
		if err := p.Click(ctx, result); err != nil {
			return err
		}
		if err := b.pause(ctx, 0.5); err != nil {
			return err
		}
	}

	if message != "" {
		input, err := b.waitForElement(ctx, SelShareMessage, b.opts.ElementTimeout)
		if err != nil {
			return err
		}
		if err := b.fillInput(ctx, input, message); err != nil {
			return err
		}
	}

	if err := b.clickButton(ctx, TextSend, b.opts.ElementTimeout); err != nil {
		return err
	}
	if err := b.waitForNoElement(ctx, SelDialog, b.opts.ElementTimeout); err != nil {
		return err
	}
	b.log().Info("Post shared", zap.String("post", id), zap.Int("recipients", len(recipients)))
	return nil
}

// followState is the label on a profile's follow button.
type followState int

const (
	notFollowing followState = iota
	following
	requested
)

func (b *Bot) followButton(ctx context.Context) (followState, browser.Element, error) {
	type found struct {
		state followState
		el    browser.Element
	}
	labels := []struct {
		text  string
		state followState
	}{
		{TextFollowing, following},
		{TextRequested, requested},
		{TextFollow, notFollowing},
		{"Follow Back", notFollowing},
	}

	f, err := wait.For(ctx, func(ctx context.Context) (found, bool, error) {
		buttons, err := b.queryAll(ctx, SelHeaderButton)
		if err != nil {
			return found{}, false, err
		}
		for _, l := range labels {
			el, err := firstWithText(ctx, buttons, l.text, matchExact)
			if err != nil {
				return found{}, false, err
			}
			if el != nil {
				return found{l.state, el}, true, nil
			}
		}
		return found{}, false, nil
	}, b.waitOpts(b.opts.ElementTimeout, "follow button"))
	return f.state, f.el, err
}

// FollowUser follows username, or sends a request for a private account.
func (b *Bot) FollowUser(ctx context.Context, username string) error {
	ctx, release, err := b.guard(ctx, "FollowUser", loggedInOp...)
	if err != nil {
		return err
	}
	defer release()

	if err := validateUsername(username); err != nil {
		return err
	}
	if err := b.navigate(ctx, b.profileURL(username), true); err != nil {
		return err
	}

	state, btn, err := b.followButton(ctx)
	if err != nil {
		return err
	}
	if state != notFollowing {
		b.log().Debug("Already following", zap.String("user", username))
		return nil
	}
	if err := b.throttle(ctx); err != nil {
		return err
	}
	if err := b.clickForResponse(ctx, "FollowUser", btn, ReFollow); err != nil {
		return err
	}
	b.log().Info("Followed user", zap.String("user", username))
	return nil
}

// UnfollowUser unfollows username, or withdraws a pending request.
func (b *Bot) UnfollowUser(ctx context.Context, username string) error {
	ctx, release, err := b.guard(ctx, "UnfollowUser", loggedInOp...)
	if err != nil {
		return err
	}
	defer release()

	if err := validateUsername(username); err != nil {
		return err
	}
	if err := b.navigate(ctx, b.profileURL(username), true); err != nil {
		return err
	}

	state, btn, err := b.followButton(ctx)
	if err != nil {
		return err
	}
	if state == notFollowing {
		b.log().Debug("Not following", zap.String("user", username))
		return nil
	}
	if err := b.throttle(ctx); err != nil {
		return err
	}
	if err := b.currentPage(ctx).Click(ctx, btn); err != nil {
		return err
	}

	confirm, err := b.waitForElementWithText(ctx, SelAnyButton, TextUnfollow, matchExact, b.opts.ElementTimeout)
	if err != nil {
		return err
	}
	if err := b.clickForResponse(ctx, "UnfollowUser", confirm, ReUnfollow); err != nil {
		return err
	}
	b.log().Info("Unfollowed user", zap.String("user", username))
	return nil
}

// IsAccountPrivate reports the account's privacy setting.
func (b *Bot) IsAccountPrivate(ctx context.Context) (bool, error) {
	ctx, release, err := b.guard(ctx, "IsAccountPrivate", loggedInOp...)
	if err != nil {
		return false, err
	}
	defer release()

	_, private, err := b.privacyCheckbox(ctx)
	return private, err
}

// SetAccountPrivacy makes the account private or public.
func (b *Bot) SetAccountPrivacy(ctx context.Context, private bool) error {
	ctx, release, err := b.guard(ctx, "SetAccountPrivacy", loggedInOp...)
	if err != nil {
		return err
	}
	defer release()

	checkbox, current, err := b.privacyCheckbox(ctx)
	if err != nil {
		return err
	}
	if current == private {
		return nil
	}
	if err := b.throttle(ctx); err != nil {
		return err
	}
	if err := b.currentPage(ctx).Click(ctx, checkbox); err != nil {
		return err
	}

	confirmText := TextSwitchPublic
	if private {
		confirmText = TextSwitchPrivate
	}
	confirm, err := b.tryElementWithText(ctx, SelAnyButton, confirmText, matchExact, b.opts.ElementTimeout)
	if err != nil {
		return err
	}
	if confirm != nil {
		if err := b.currentPage(ctx).Click(ctx, confirm); err != nil {
			return err
		}
	}

	_, err = wait.For(ctx, func(ctx context.Context) (bool, bool, error) {
		checked, err := checkbox.Property(ctx, "checked")
		return checked, checked == private, err
	}, b.waitOpts(b.opts.ElementTimeout, "privacy change"))
	if err != nil {
		return err
	}
	b.log().Info("Account privacy updated", zap.Bool("private", private))
	return nil
}

func (b *Bot) privacyCheckbox(ctx context.Context) (browser.Element, bool, error) {
	if err := b.navigatePath(ctx, PathPrivacy, true); err != nil {
		return nil, false, err
	}
	checkbox, err := b.waitForElement(ctx, SelPrivateCheckbox, b.opts.ElementTimeout)
	if err != nil {
		return nil, false, err
	}
	checked, err := checkbox.Property(ctx, "checked")
	return checkbox, checked, err
}

func splitLines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}
