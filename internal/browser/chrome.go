package browser

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/freddie-nelson/ig-bot/internal/wait"
)

const (
	// elementTimeout bounds single-node calls; a node removed from the DOM would
	// otherwise block a ByNodeID query until the caller's deadline.
	elementTimeout = 5 * time.Second
	bodyTimeout    = 15 * time.Second
	defaultLoad    = 30 * time.Second
)

// ChromeLauncher starts one stealth-configured Chrome per session
type ChromeLauncher struct {
	cfg    LaunchConfig
	logger *zap.Logger
}

// NewChromeLauncher creates a launcher for the given configuration
func NewChromeLauncher(cfg LaunchConfig, logger *zap.Logger) *ChromeLauncher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChromeLauncher{cfg: cfg, logger: logger.Named("browser")}
}

// Launch starts Chrome and returns its first tab. The session is detached from ctx
// and lives until Page.Close.
func (l *ChromeLauncher) Launch(ctx context.Context) (Page, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(Detach(ctx), Options(l.cfg)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(l.logger.Sugar().Debugf),
		chromedp.WithErrorf(l.logger.Sugar().Debugf),
	)

	p := &chromePage{
		ctx:      tabCtx,
		logger:   l.logger,
		waiters:  make(map[int]*responseWaiter),
		choosers: make(chan cdp.BackendNodeID, 1),
		release: func() {
			tabCancel()
			allocCancel()
		},
	}
	chromedp.ListenTarget(tabCtx, p.onEvent)

	// The first Run on the tab context allocates the browser and must use that context itself.
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(tabCtx, network.Enable()) }()

	select {
	case err := <-started:
		if err != nil {
			p.release()
			return nil, fmt.Errorf("failed to start browser: %w", err)
		}
	case <-ctx.Done():
		p.release()
		return nil, ctx.Err()
	}

	l.logger.Debug("Browser started", zap.Bool("headless", l.cfg.Headless))
	return p, nil
}

type responseWaiter struct {
	pattern  *regexp.Regexp
	request  network.RequestID
	resp     Response
	fetching bool
	done     chan *Response
}

type chromePage struct {
	ctx     context.Context
	logger  *zap.Logger
	release func()

	mu       sync.Mutex
	waiters  map[int]*responseWaiter
	nextID   int
	choosers chan cdp.BackendNodeID

	closeOnce sync.Once
	closeErr  error
}

func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(p.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

func (p *chromePage) onEvent(ev interface{}) {
	switch e := ev.(type) {
	case *network.EventResponseReceived:
		p.mu.Lock()
		for _, w := range p.waiters {
			if w.request == "" && w.pattern.MatchString(e.Response.URL) {
				w.request = e.RequestID
				w.resp = Response{URL: e.Response.URL, Status: e.Response.Status}
			}
		}
		p.mu.Unlock()

	case *network.EventLoadingFinished:
		p.finish(e.RequestID, true)

	case *network.EventLoadingFailed:
		p.finish(e.RequestID, false)

	case *page.EventFileChooserOpened:
		select {
		case p.choosers <- e.BackendNodeID:
		default:
		}
	}
}

// finish hands a completed request to its waiters. Bodies are fetched off the
// event loop because listeners must not block.
func (p *chromePage) finish(id network.RequestID, withBody bool) {
	p.mu.Lock()
	var hits []*responseWaiter
	for _, w := range p.waiters {
		if w.request == id && !w.fetching {
			w.fetching = true
			hits = append(hits, w)
		}
	}
	p.mu.Unlock()

	if len(hits) == 0 {
		return
	}
	go p.deliver(id, hits, withBody)
}

func (p *chromePage) deliver(id network.RequestID, waiters []*responseWaiter, withBody bool) {
	var body []byte
	if withBody {
		ctx, cancel := context.WithTimeout(p.ctx, bodyTimeout)
		err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			body, err = network.GetResponseBody(id).Do(ctx)
			return err
		}))
		cancel()
		if err != nil && p.ctx.Err() == nil {
			p.logger.Debug("Failed to fetch response body", zap.String("request_id", string(id)), zap.Error(err))
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, w := range waiters {
		r := w.resp
		r.Body = body
		select {
		case w.done <- &r:
		default:
		}
	}
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *chromePage) URL(ctx context.Context) (string, error) {
	var u string
	err := p.run(ctx, chromedp.Location(&u))
	return u, err
}

func (p *chromePage) WaitForLoad(ctx context.Context) error {
	timeout := defaultLoad
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	_, err := wait.For(ctx, func(ctx context.Context) (struct{}, bool, error) {
		var state string
		if err := p.run(ctx, chromedp.Evaluate(`document.readyState`, &state)); err != nil {
			// The execution context is torn down mid-navigation; keep polling.
			return struct{}{}, false, ctx.Err()
		}
		return struct{}{}, state == "complete", nil
	}, wait.Options{Timeout: timeout, What: "page load"})
	return err
}

func (p *chromePage) QuerySelector(ctx context.Context, selector string) (Element, error) {
	els, err := p.QuerySelectorAll(ctx, selector)
	if err != nil || len(els) == 0 {
		return nil, err
	}
	return els[0], nil
}

func (p *chromePage) QuerySelectorAll(ctx context.Context, selector string) ([]Element, error) {
	var nodes []*cdp.Node
	if err := p.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	return p.wrap(nodes), nil
}

func (p *chromePage) wrap(nodes []*cdp.Node) []Element {
	els := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		els = append(els, &chromeElement{page: p, node: n})
	}
	return els
}

func (p *chromePage) Click(ctx context.Context, el Element) error {
	ce, err := asChrome(el)
	if err != nil {
		return err
	}
	return ce.run(ctx, chromedp.MouseClickNode(ce.node))
}

func (p *chromePage) Type(ctx context.Context, el Element, text string) error {
	ce, err := asChrome(el)
	if err != nil {
		return err
	}
	return p.run(ctx, chromedp.SendKeys(ce.ids(), text, chromedp.ByNodeID))
}

func (p *chromePage) Press(ctx context.Context, key string, mods ...Modifier) error {
	var cdpMods []input.Modifier
	for _, m := range mods {
		cdpMods = append(cdpMods, input.Modifier(m))
	}
	return p.run(ctx, chromedp.KeyEvent(key, chromedp.KeyModifiers(cdpMods...)))
}

func (p *chromePage) Scroll(ctx context.Context, dy float64) error {
	return p.run(ctx, chromedp.Evaluate(fmt.Sprintf(`window.scrollBy(0, %d)`, int(dy)), nil))
}

func (p *chromePage) ScrollIntoView(ctx context.Context, el Element) error {
	ce, err := asChrome(el)
	if err != nil {
		return err
	}
	return ce.run(ctx, chromedp.ScrollIntoView(ce.ids(), chromedp.ByNodeID))
}

func (p *chromePage) WaitForResponse(ctx context.Context, pattern *regexp.Regexp, trigger func(ctx context.Context) error) (*Response, error) {
	w := &responseWaiter{pattern: pattern, done: make(chan *Response, 1)}

	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.waiters[id] = w
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.waiters, id)
		p.mu.Unlock()
	}()

	if trigger != nil {
		if err := trigger(ctx); err != nil {
			return nil, err
		}
	}

	select {
	case r := <-w.done:
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.ctx.Done():
		return nil, fmt.Errorf("browser session closed: %w", p.ctx.Err())
	}
}

func (p *chromePage) WaitForFileChooser(ctx context.Context, trigger func(ctx context.Context) error) (FileChooser, error) {
	if err := p.run(ctx, page.SetInterceptFileChooserDialog(true)); err != nil {
		return nil, fmt.Errorf("failed to intercept file chooser: %w", err)
	}

	// Drop a chooser left over from an earlier attempt.
	select {
	case <-p.choosers:
	default:
	}

	if err := trigger(ctx); err != nil {
		return nil, err
	}

	select {
	case id := <-p.choosers:
		return &chromeFileChooser{page: p, backendID: id}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *chromePage) Cookies(ctx context.Context) ([]*network.Cookie, error) {
	var cookies []*network.Cookie
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	return cookies, err
}

func (p *chromePage) SetCookies(ctx context.Context, cookies []*network.Cookie) error {
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			err := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly).
				WithSameSite(c.SameSite).
				Do(ctx)
			if err != nil {
				return fmt.Errorf("failed to set cookie %s: %w", c.Name, err)
			}
		}
		return nil
	}))
}

func (p *chromePage) Close(ctx context.Context) error {
	p.closeOnce.Do(func() {
		done := make(chan error, 1)
		go func() { done <- chromedp.Cancel(p.ctx) }()
		select {
		case p.closeErr = <-done:
		case <-ctx.Done():
			p.closeErr = ctx.Err()
		}
		p.release()
	})
	return p.closeErr
}

type chromeElement struct {
	page *chromePage
	node *cdp.Node
}

func asChrome(el Element) (*chromeElement, error) {
	ce, ok := el.(*chromeElement)
	if !ok || ce == nil {
		return nil, fmt.Errorf("element %T does not belong to a chrome page", el)
	}
	return ce, nil
}

func (e *chromeElement) ids() []cdp.NodeID {
	return []cdp.NodeID{e.node.NodeID}
}

func (e *chromeElement) run(ctx context.Context, actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(ctx, elementTimeout)
	defer cancel()
	return e.page.run(ctx, actions...)
}

func (e *chromeElement) Text(ctx context.Context) (string, error) {
	var s string
	err := e.run(ctx, chromedp.TextContent(e.ids(), &s, chromedp.ByNodeID))
	return s, err
}

func (e *chromeElement) Value(ctx context.Context) (string, error) {
	var s string
	err := e.run(ctx, chromedp.Value(e.ids(), &s, chromedp.ByNodeID))
	return s, err
}

func (e *chromeElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	var (
		v  string
		ok bool
	)
	err := e.run(ctx, chromedp.AttributeValue(e.ids(), name, &v, &ok, chromedp.ByNodeID))
	return v, ok, err
}

func (e *chromeElement) Property(ctx context.Context, name string) (bool, error) {
	var b bool
	err := e.run(ctx, chromedp.JavascriptAttribute(e.ids(), name, &b, chromedp.ByNodeID))
	return b, err
}

func (e *chromeElement) Parent(ctx context.Context) (Element, error) {
	if e.node.Parent == nil {
		return nil, nil
	}
	return &chromeElement{page: e.page, node: e.node.Parent}, nil
}

func (e *chromeElement) Children(ctx context.Context) ([]Element, error) {
	return e.QuerySelectorAll(ctx, ":scope > *")
}

func (e *chromeElement) QuerySelector(ctx context.Context, selector string) (Element, error) {
	els, err := e.QuerySelectorAll(ctx, selector)
	if err != nil || len(els) == 0 {
		return nil, err
	}
	return els[0], nil
}

func (e *chromeElement) QuerySelectorAll(ctx context.Context, selector string) ([]Element, error) {
	var nodes []*cdp.Node
	err := e.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.FromNode(e.node), chromedp.AtLeast(0)))
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	return e.page.wrap(nodes), nil
}

type chromeFileChooser struct {
	page      *chromePage
	backendID cdp.BackendNodeID
}

func (c *chromeFileChooser) SelectFiles(ctx context.Context, paths []string) error {
	return c.page.run(ctx, dom.SetFileInputFiles(paths).WithBackendNodeID(c.backendID))
}
