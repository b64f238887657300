package portal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"

	"github.com/easyslot/easyslot/internal/log"
)

// artifact name patterns, also matched by CleanupArtifacts
var artifactPatterns = []string{
	"login_error_*.png",
	"navigation_error_*.png",
	"booking_error_*.png",
	"no_matching_card_*.png",
	"page_source_*.html",
}

// SaveDebugInfo stores a screenshot and the page html of the current tab
// state in the debug directory. Only active with debug.enabled in the
// configuration or the -d flag. Best effort, failures are only logged.
func (s *Session) SaveDebugInfo(prefix string) {
	if !s.debugEnabled && !log.Debug {
		return
	}
	if err := os.MkdirAll(s.debugDir, 0755); err != nil {
		s.logger.Error(fmt.Sprintf("failed to create debug directory: %v", err))
		return
	}
	timestamp := time.Now().Format("20060102_150405")

	var screenshot []byte
	var pageHTML string
	err := s.run(10*time.Second,
		chromedp.CaptureScreenshot(&screenshot),
		chromedp.ActionFunc(func(ctx context.Context) error {
			node, err := dom.GetDocument().Do(ctx)
			if err != nil {
				return err
			}
			pageHTML, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
			return err
		}),
	)
	if err != nil {
		s.logger.Error(fmt.Sprintf("failed to capture debug info: %v", err))
		return
	}

	screenshotPath := filepath.Join(s.debugDir, fmt.Sprintf("%s_%s.png", prefix, timestamp))
	if err := os.WriteFile(screenshotPath, screenshot, 0644); err != nil {
		s.logger.Error(fmt.Sprintf("failed to write screenshot: %v", err))
	} else {
		s.logger.Info("saved screenshot", slog.String("path", screenshotPath))
	}

	htmlPath := filepath.Join(s.debugDir, fmt.Sprintf("page_source_%s_%s.html", prefix, timestamp))
	if err := os.WriteFile(htmlPath, []byte(pageHTML), 0644); err != nil {
		s.logger.Error(fmt.Sprintf("failed to write page source: %v", err))
	} else {
		s.logger.Info("saved page source", slog.String("path", htmlPath))
	}
}

// CleanupArtifacts removes debug artifacts of previous runs from dir.
func CleanupArtifacts(dir string) {
	for _, pattern := range artifactPatterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		for _, match := range matches {
			if err := os.Remove(match); err != nil {
				slog.Warn(fmt.Sprintf("failed to remove stale artifact %s: %v", match, err))
				continue
			}
			slog.Debug("removed stale artifact", slog.String("file", match))
		}
	}
}
