// Package browser provides browser automation capabilities for the bridge.
package browser

import (
	"context"
	"math/rand"
	"time"
)

// Config configures the browser automation surface.
type Config struct {
	Headless       bool          `json:"headless"`
	Debug          bool          `json:"debug"`
	SlowMo         time.Duration `json:"slow_mo"`
	ViewportWidth  int           `json:"viewport_width"`
	ViewportHeight int           `json:"viewport_height"`
	UserAgent      string        `json:"user_agent,omitempty"`
	ProxyURL       string        `json:"proxy_url,omitempty"`
	Timeout        time.Duration `json:"timeout"`
	ScreenshotDir  string        `json:"screenshot_dir,omitempty"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:       true,
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		Timeout:        60 * time.Second,
	}
}

// Cookie mirrors the persisted storage-state cookie layout.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
}

// Driver is the capability interface the bridge drives pages through.
// Implementations wrap a real browser engine; the bridge and auth layers
// never depend on a concrete engine, only on this interface.
//
// Selectors are CSS by default; a selector starting with "//" is treated
// as an XPath expression, which is the only way to match on element text.
//
// Every wait is bounded by the configured timeout and aborts early when the
// caller's context is cancelled; a timeout surfaces as an error, never as a
// silent no-op.
type Driver interface {
	// Navigate loads a URL and waits for the page to settle.
	Navigate(ctx context.Context, url string) error
	// WaitVisible blocks until the selector matches a visible element.
	WaitVisible(ctx context.Context, selector string) error
	// WaitURL blocks until the current location contains the given fragment.
	WaitURL(ctx context.Context, fragment string) error
	// Click clicks the first element matching the selector.
	Click(ctx context.Context, selector string) error
	// Fill replaces the content of the matched input element.
	Fill(ctx context.Context, selector, text string) error
	// FillSlow types text with human-like per-keystroke delays.
	FillSlow(ctx context.Context, selector, text string) error
	// Press sends a key event to the focused element.
	Press(ctx context.Context, key string) error
	// Text returns the text content of the first matching element.
	Text(ctx context.Context, selector string) (string, error)
	// LastText returns the text content of the last matching element.
	LastText(ctx context.Context, selector string) (string, error)
	// Exists reports whether any element matches the selector right now.
	Exists(ctx context.Context, selector string) (bool, error)
	// CurrentURL returns the page's current location.
	CurrentURL(ctx context.Context) (string, error)
	// WaitPopup runs trigger and returns a Driver bound to the page the
	// trigger opened.
	WaitPopup(ctx context.Context, trigger func(context.Context) error) (Driver, error)
	// SetCookies installs session cookies before navigation.
	SetCookies(ctx context.Context, cookies []Cookie) error
	// Cookies exports all cookies held by the browser.
	Cookies(ctx context.Context) ([]Cookie, error)
	// Eval evaluates a script in the page and unmarshals the result into res.
	Eval(ctx context.Context, script string, res any) error
	// AddInitScript evaluates a script on every new document.
	AddInitScript(ctx context.Context, script string) error
	// Screenshot captures the page into the configured screenshot dir.
	Screenshot(ctx context.Context, name string) error
	// Close releases the underlying page or browser.
	Close() error
}

// userAgents are modern Chrome user agents; one is picked at random when the
// config does not pin one, so repeated logins do not present an identical
// fingerprint.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// RandomUserAgent returns a random modern browser user agent.
func RandomUserAgent() string {
	return userAgents[rand.Intn(len(userAgents))]
}
