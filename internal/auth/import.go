package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/browserutils/kooky"
	_ "github.com/browserutils/kooky/browser/all"
	"github.com/chromedp/cdproto/network"
)

// BrowserReader reads cookies out of locally installed browsers
type BrowserReader func(ctx context.Context) ([]*kooky.Cookie, error)

// ReadBrowserCookies reads unexpired instagram.com cookies from every browser kooky knows.
// Stores that fail to open are skipped as long as some cookies were found.
func ReadBrowserCookies(ctx context.Context) ([]*kooky.Cookie, error) {
	cookies, err := kooky.ReadCookies(ctx, kooky.Valid, kooky.DomainHasSuffix("instagram.com"))
	if len(cookies) > 0 {
		return cookies, nil
	}
	return nil, err
}

// Import copies a logged-in session out of a local browser into the store.
// It returns the number of cookies saved.
func (cs *CookieStore) Import(ctx context.Context, read BrowserReader) (int, error) {
	found, err := read(ctx)
	if err != nil {
		return 0, fmt.Errorf("read browser cookies: %w", err)
	}

	cookies := make([]*network.Cookie, 0, len(found))
	for _, c := range found {
		cookies = append(cookies, toNetworkCookie(c))
	}
	cookies = FilterInstagram(dedupe(cookies))

	stored := &StoredCookies{Cookies: cookies, ExpiresAt: sessionExpiry(cookies)}
	if !cs.valid(stored) {
		return 0, fmt.Errorf("no instagram session found in local browsers: %w", ErrNoSession)
	}
	if err := cs.Save(cookies); err != nil {
		return 0, err
	}
	return len(cookies), nil
}

func toNetworkCookie(c *kooky.Cookie) *network.Cookie {
	nc := &network.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Secure:   c.Secure,
		HTTPOnly: c.HttpOnly,
		Session:  c.Expires.IsZero(),
		Expires:  -1,
	}
	if !c.Expires.IsZero() {
		nc.Expires = float64(c.Expires.Unix())
	}
	switch c.SameSite {
	case http.SameSiteLaxMode:
		nc.SameSite = network.CookieSameSiteLax
	case http.SameSiteStrictMode:
		nc.SameSite = network.CookieSameSiteStrict
	case http.SameSiteNoneMode:
		nc.SameSite = network.CookieSameSiteNone
	}
	return nc
}

// dedupe keeps the last cookie seen for each name, domain and path.
// Several browsers often hold the same session.
func dedupe(cookies []*network.Cookie) []*network.Cookie {
	type key struct{ name, domain, path string }
	index := make(map[key]int, len(cookies))
	var out []*network.Cookie
	for _, c := range cookies {
		k := key{c.Name, c.Domain, c.Path}
		if i, ok := index[k]; ok {
			out[i] = c
			continue
		}
		index[k] = len(out)
		out = append(out, c)
	}
	return out
}
