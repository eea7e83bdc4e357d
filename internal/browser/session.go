package browser

import (
	"fmt"

	"github.com/playwright-community/playwright-go"
)

// SessionOptions configures a browser session.
type SessionOptions struct {
	// HostAppURL is the page the session opens, normally the host's
	// follow-up workspace. Empty skips navigation, leaving the page blank
	// for the upstream step to drive.
	HostAppURL string
	Headless   bool
}

// Session owns one Playwright runtime, browser, and page.
type Session struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
}

// NewSession starts Playwright, launches Chromium, and opens one page.
func NewSession(opts SessionOptions) (*Session, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("browser: starting playwright: %w", err)
	}

	b, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("browser: launching chromium: %w", err)
	}

	page, err := b.NewPage()
	if err != nil {
		_ = b.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("browser: opening page: %w", err)
	}

	if opts.HostAppURL != "" {
		if _, err := page.Goto(opts.HostAppURL, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateNetworkidle,
		}); err != nil {
			_ = b.Close()
			_ = pw.Stop()
			return nil, fmt.Errorf("browser: opening host app: %w", err)
		}
	}

	return &Session{pw: pw, browser: b, page: page}, nil
}

// Page returns the session's page.
func (s *Session) Page() playwright.Page { return s.page }

// Close tears the session down in reverse order.
func (s *Session) Close() error {
	var firstErr error
	if err := s.page.Close(); err != nil {
		firstErr = err
	}
	if err := s.browser.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.pw.Stop(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
