package browser

import (
	"context"
	"fmt"
	"regexp"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp/kb"
	jsoniter "github.com/json-iterator/go"
)

// Keys understood by Page.Press besides printable characters.
const (
	KeyBackspace = kb.Backspace
	KeyEnter     = kb.Enter
	KeyEscape    = kb.Escape
	KeyTab       = kb.Tab
)

// Modifier is a key-chord modifier bit, matching the DevTools bitmask.
type Modifier int

const (
	ModAlt   Modifier = 1
	ModCtrl  Modifier = 2
	ModMeta  Modifier = 4
	ModShift Modifier = 8
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Launcher opens a fresh browser session.
type Launcher interface {
	Launch(ctx context.Context) (Page, error)
}

// Page is a single browser tab. QuerySelector returns a nil Element and no error when
// nothing matches.
type Page interface {
	Navigate(ctx context.Context, url string) error
	URL(ctx context.Context) (string, error)
	WaitForLoad(ctx context.Context) error

	QuerySelector(ctx context.Context, selector string) (Element, error)
	QuerySelectorAll(ctx context.Context, selector string) ([]Element, error)

	Click(ctx context.Context, el Element) error
	Type(ctx context.Context, el Element, text string) error
	Press(ctx context.Context, key string, mods ...Modifier) error
	Scroll(ctx context.Context, dy float64) error
	// ScrollIntoView scrolls the nearest scrollable ancestor of el, for lists inside dialogs.
	ScrollIntoView(ctx context.Context, el Element) error

	// WaitForResponse runs trigger and waits for the first response whose URL matches pattern.
	WaitForResponse(ctx context.Context, pattern *regexp.Regexp, trigger func(ctx context.Context) error) (*Response, error)
	// WaitForFileChooser runs trigger and waits for the native file chooser it opens.
	WaitForFileChooser(ctx context.Context, trigger func(ctx context.Context) error) (FileChooser, error)

	Cookies(ctx context.Context) ([]*network.Cookie, error)
	SetCookies(ctx context.Context, cookies []*network.Cookie) error

	Close(ctx context.Context) error
}

// Element is a handle to a DOM node.
type Element interface {
	Text(ctx context.Context) (string, error)
	Value(ctx context.Context) (string, error)
	Attribute(ctx context.Context, name string) (string, bool, error)
	// Property reads a boolean DOM property such as "disabled" or "checked".
	Property(ctx context.Context, name string) (bool, error)
	Parent(ctx context.Context) (Element, error)
	Children(ctx context.Context) ([]Element, error)
	QuerySelector(ctx context.Context, selector string) (Element, error)
	QuerySelectorAll(ctx context.Context, selector string) ([]Element, error)
}

// FileChooser is an intercepted native file dialog.
type FileChooser interface {
	SelectFiles(ctx context.Context, paths []string) error
}

// Response is a captured background request.
type Response struct {
	URL    string
	Status int64
	Body   []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("empty response body from %s", r.URL)
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", r.URL, err)
	}
	return nil
}
