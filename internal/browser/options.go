// Package browser drives Chrome over the DevTools protocol behind the small Page
// contract the bot needs.
package browser

import "github.com/chromedp/chromedp"

// DefaultUserAgent is a realistic desktop Chrome user agent
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// LaunchConfig controls how Chrome is started
type LaunchConfig struct {
	Headless     bool
	UserAgent    string
	WindowWidth  int
	WindowHeight int
	// UserDataDir keeps a persistent profile between runs when set
	UserDataDir string
	// ExecPath overrides Chrome discovery
	ExecPath string
}

// DefaultLaunchConfig returns a headless 1920x1080 configuration
func DefaultLaunchConfig() LaunchConfig {
	return LaunchConfig{
		Headless:     true,
		UserAgent:    DefaultUserAgent,
		WindowWidth:  1920,
		WindowHeight: 1080,
	}
}

// Options returns chromedp allocator options with anti-bot-detection measures.
// Every session launched by this package uses them.
func Options(cfg LaunchConfig) []chromedp.ExecAllocatorOption {
	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	w, h := cfg.WindowWidth, cfg.WindowHeight
	if w <= 0 || h <= 0 {
		w, h = 1920, 1080
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),

		// Prevent navigator.webdriver = true
		chromedp.Flag("disable-blink-features", "AutomationControlled"),

		chromedp.UserAgent(ua),
		chromedp.WindowSize(w, h),

		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("lang", "en-US"),
	)

	if cfg.Headless {
		opts = append(opts, chromedp.Flag("disable-gpu", true))
	}
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	return opts
}
