package bot

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/freddie-nelson/ig-bot/internal/browser"
	"github.com/freddie-nelson/ig-bot/internal/types"
)

// CreatePost uploads media as a new post. Files are resolved and checked before the
// browser is touched; optional fields in opts are filled only when set.
func (b *Bot) CreatePost(ctx context.Context, media []string, opts types.PostOptions) error {
	ctx, release, err := b.guard(ctx, "CreatePost", loggedInOp...)
	if err != nil {
		return err
	}
	defer release()

	files, err := resolveMedia(media)
	if err != nil {
		return err
	}
	if err := b.throttle(ctx); err != nil {
		return err
	}

	if err := b.navigatePath(ctx, "/", true); err != nil {
		return err
	}
	if err := b.uploadMedia(ctx, files); err != nil {
		return err
	}

	for i := 0; i < 2; i++ {
		if err := b.pause(ctx, 1); err != nil {
			return err
		}
		if err := b.clickButton(ctx, TextNext, b.opts.ElementTimeout); err != nil {
			return fmt.Errorf("failed to advance post wizard: %w", err)
		}
	}

	if err := b.fillPostOptions(ctx, opts); err != nil {
		return err
	}

	if err := b.pause(ctx, 1); err != nil {
		return err
	}
	if err := b.clickButton(ctx, TextShare, b.opts.ElementTimeout); err != nil {
		return err
	}

	if _, err := b.tryElement(ctx, SelUploadSpinner, b.opts.SoftTimeout); err != nil {
		return err
	}
	if err := b.waitForNoElement(ctx, SelUploadSpinner, b.opts.UploadTimeout); err != nil {
		return err
	}

	failed, err := b.tryElementWithText(ctx, SelDialogSpan, TextCouldNotShare, matchContains, b.opts.SoftTimeout)
	if err != nil {
		return err
	}
	if failed != nil {
		msg, _ := failed.Text(ctx)
		return &RemoteRejectionError{Op: "CreatePost", Message: msg}
	}

	b.log().Info("Post shared", zap.Int("files", len(files)))
	return nil
}

func (b *Bot) uploadMedia(ctx context.Context, files []string) error {
	p := b.currentPage(ctx)

	newPost, err := b.waitForElement(ctx, SelNewPost, b.opts.ElementTimeout)
	if err != nil {
		return err
	}
	if err := p.Click(ctx, newPost); err != nil {
		return fmt.Errorf("failed to open post dialog: %w", err)
	}
	if _, err := b.waitForElement(ctx, SelDialog, b.opts.ElementTimeout); err != nil {
		return err
	}

	chooserCtx, cancel := context.WithTimeout(ctx, b.opts.ElementTimeout)
	defer cancel()
	chooser, err := p.WaitForFileChooser(chooserCtx, func(ctx context.Context) error {
		return b.clickButton(ctx, TextSelectFromComputer, b.opts.ElementTimeout)
	})
	if err != nil {
		return asTimeout(ctx, err, "file chooser", b.opts.ElementTimeout)
	}
	if err := chooser.SelectFiles(ctx, files); err != nil {
		return fmt.Errorf("failed to select files: %w", err)
	}

	retry, err := b.tryElementWithText(ctx, SelAnyButton, TextSelectOtherFiles, matchExact, b.opts.SoftTimeout)
	if err != nil {
		return err
	}
	if retry != nil {
		return &UnsupportedMediaError{Reason: "rejected by the upload dialog"}
	}
	return nil
}

func (b *Bot) fillPostOptions(ctx context.Context, opts types.PostOptions) error {
	p := b.currentPage(ctx)

	if opts.Caption != "" {
		caption, err := b.waitForElement(ctx, SelCaption, b.opts.ElementTimeout)
		if err != nil {
			return err
		}
		if err := b.typeMultiline(ctx, caption, opts.Caption); err != nil {
			return fmt.Errorf("failed to enter caption: %w", err)
		}
	}

	if opts.Location != "" {
		input, err := b.waitForElement(ctx, SelLocationInput, b.opts.ElementTimeout)
		if err != nil {
			return err
		}
		if err := b.fillInput(ctx, input, opts.Location); err != nil {
			return err
		}
		top, err := b.waitForElement(ctx, SelLocationResult, b.opts.SearchTimeout)
		if err != nil {
			return err
		}
		if err := p.Click(ctx, top); err != nil {
			return err
		}
	}

	if opts.AltText != "" {
		if err := b.expandSection(ctx, TextAccessibility); err != nil {
			return err
		}
		input, err := b.waitForElement(ctx, SelAltTextInput, b.opts.ElementTimeout)
		if err != nil {
			return err
		}
		if err := b.fillInput(ctx, input, opts.AltText); err != nil {
			return err
		}
	}

	if opts.HideLikes != nil || opts.DisableComments != nil {
		if err := b.expandSection(ctx, TextAdvancedSettings); err != nil {
			return err
		}
		if opts.HideLikes != nil {
			if err := b.setWizardToggle(ctx, TextHideLikes, *opts.HideLikes); err != nil {
				return err
			}
		}
		if opts.DisableComments != nil {
			if err := b.setWizardToggle(ctx, TextTurnOffComments, *opts.DisableComments); err != nil {
				return err
			}
		}
	}
	return nil
}

// expandSection opens an accordion section of the post wizard.
func (b *Bot) expandSection(ctx context.Context, title string) error {
	heading, err := b.waitForElementWithText(ctx, SelDialogSpan, title, matchExact, b.opts.ElementTimeout)
	if err != nil {
		return err
	}
	return b.currentPage(ctx).Click(ctx, heading)
}

// setWizardToggle flips the switch next to label when it differs from on.
func (b *Bot) setWizardToggle(ctx context.Context, label string, on bool) error {
	text, err := b.waitForElementWithText(ctx, SelDialogSpan, label, matchExact, b.opts.ElementTimeout)
	if err != nil {
		return err
	}
	row, err := text.Parent(ctx)
	if err != nil {
		return err
	}
	if row == nil {
		return fmt.Errorf("toggle %q has no container", label)
	}
	row, err = row.Parent(ctx)
	if err != nil || row == nil {
		return fmt.Errorf("toggle %q has no container: %w", label, err)
	}

	toggle, err := row.QuerySelector(ctx, SelToggleLabel)
	if err != nil {
		return err
	}
	if toggle == nil {
		return fmt.Errorf("toggle %q not found", label)
	}
	if checkbox, err := toggle.QuerySelector(ctx, "input"); err == nil && checkbox != nil {
		if checked, err := checkbox.Property(ctx, "checked"); err == nil && checked == on {
			return nil
		}
	}
	return b.currentPage(ctx).Click(ctx, toggle)
}

// typeMultiline types text, breaking lines with shift+enter so the field is not submitted.
func (b *Bot) typeMultiline(ctx context.Context, el browser.Element, text string) error {
	p := b.currentPage(ctx)
	if err := p.Click(ctx, el); err != nil {
		return err
	}
	for i, line := range splitLines(text) {
		if i > 0 {
			if err := p.Press(ctx, browser.KeyEnter, browser.ModShift); err != nil {
				return err
			}
		}
		if line == "" {
			continue
		}
		if err := p.Type(ctx, el, line); err != nil {
			return err
		}
	}
	return nil
}
