// Package browser creates chromedp exec allocators for the supported
// browser types. All supported browsers are Chromium-family binaries that
// speak the DevTools protocol.
package browser

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/chromedp/chromedp"

	"github.com/easyslot/easyslot/internal/config"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// executable candidates per browser type, first match wins
var candidates = map[string][]string{
	"chrome":   {"google-chrome", "google-chrome-stable", "chrome"},
	"chromium": {"chromium", "chromium-browser"},
	"edge":     {"microsoft-edge", "microsoft-edge-stable", "msedge"},
}

// ResolveBinary returns the browser executable to launch. An explicitly
// configured binary path takes precedence over PATH discovery.
func ResolveBinary(cfg config.Browser) (string, error) {
	if cfg.BinaryPath != "" {
		return cfg.BinaryPath, nil
	}
	names, ok := candidates[cfg.Type]
	if !ok {
		return "", fmt.Errorf("unsupported browser type: %s", cfg.Type)
	}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	// chromedp falls back to its own executable discovery
	return "", nil
}

// NewAllocator creates a chromedp exec allocator context from the given
// browser configuration.
func NewAllocator(parent context.Context, cfg config.Browser) (context.Context, context.CancelFunc, error) {
	binary, err := ResolveBinary(cfg)
	if err != nil {
		return nil, nil, err
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(userAgent),
		chromedp.WindowSize(1920, 1080),
	)
	if binary != "" {
		opts = append(opts, chromedp.ExecPath(binary))
	}

	ctx, cancel := chromedp.NewExecAllocator(parent, opts...)
	return ctx, cancel, nil
}
