// Package auth persists Instagram session cookies between runs.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SessionCookie is the cookie that proves a logged-in session
const SessionCookie = "sessionid"

// ErrNoSession is returned when no usable session is stored
var ErrNoSession = errors.New("no valid stored session")

// CookieStore keeps instagram.com cookies in a JSON file readable only by the owner
type CookieStore struct {
	path string
	now  func() time.Time
}

// StoredCookies represents the persisted cookie data
type StoredCookies struct {
	Cookies    []*network.Cookie `json:"cookies"`
	CapturedAt time.Time         `json:"captured_at"`
	// ExpiresAt is zero when the session cookie carries no expiry
	ExpiresAt time.Time `json:"expires_at"`
}

// NewCookieStore creates a cookie store at the given path
func NewCookieStore(path string) *CookieStore {
	return &CookieStore{path: path, now: time.Now}
}

// Path returns the file backing the store
func (cs *CookieStore) Path() string { return cs.path }

// Save persists the instagram.com subset of cookies to disk
func (cs *CookieStore) Save(cookies []*network.Cookie) error {
	if err := os.MkdirAll(filepath.Dir(cs.path), 0700); err != nil {
		return err
	}

	kept := FilterInstagram(cookies)
	stored := StoredCookies{
		Cookies:    kept,
		CapturedAt: cs.now(),
		ExpiresAt:  sessionExpiry(kept),
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(cs.path, data, 0600)
}

// Load retrieves cookies from disk
func (cs *CookieStore) Load() (*StoredCookies, error) {
	data, err := os.ReadFile(cs.path)
	if err != nil {
		return nil, err
	}

	var stored StoredCookies
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("parse %s: %w", cs.path, err)
	}
	return &stored, nil
}

// IsValid reports whether a non-empty, unexpired session cookie is stored
func (cs *CookieStore) IsValid() bool {
	stored, err := cs.Load()
	if err != nil {
		return false
	}
	return cs.valid(stored)
}

func (cs *CookieStore) valid(stored *StoredCookies) bool {
	if !stored.ExpiresAt.IsZero() && cs.now().After(stored.ExpiresAt) {
		return false
	}
	for _, c := range stored.Cookies {
		if c.Name == SessionCookie && c.Value != "" {
			return true
		}
	}
	return false
}

// Cookies returns the stored cookies when they still hold a valid session
func (cs *CookieStore) Cookies() ([]*network.Cookie, error) {
	stored, err := cs.Load()
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	if !cs.valid(stored) {
		return nil, ErrNoSession
	}
	return stored.Cookies, nil
}

// Clear removes stored cookies. A missing file is not an error.
func (cs *CookieStore) Clear() error {
	if err := os.Remove(cs.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// FilterInstagram keeps cookies scoped to instagram.com or its subdomains
func FilterInstagram(cookies []*network.Cookie) []*network.Cookie {
	var kept []*network.Cookie
	for _, c := range cookies {
		if c != nil && isInstagramDomain(c.Domain) {
			kept = append(kept, c)
		}
	}
	return kept
}

func isInstagramDomain(domain string) bool {
	d := strings.TrimPrefix(strings.ToLower(domain), ".")
	return d == "instagram.com" || strings.HasSuffix(d, ".instagram.com")
}

func sessionExpiry(cookies []*network.Cookie) time.Time {
	for _, c := range cookies {
		if c.Name == SessionCookie && c.Expires > 0 {
			return time.Unix(int64(c.Expires), 0)
		}
	}
	return time.Time{}
}
