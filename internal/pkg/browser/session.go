// Package browser drives a single headless Chrome tab for pages that only
// render client-side.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// ErrClosed is returned by Load after Close.
var ErrClosed = errors.New("browser: session is closed")

// Config configures a Session.
type Config struct {
	// Bin is the Chrome binary. Empty lets the launcher find or download one.
	Bin string
	// RemoteURL is the DevTools WebSocket URL of an external Chrome. Empty
	// launches a local process.
	RemoteURL   string
	Headless    bool
	BlockImages bool
	// Settle is how long to wait after load for client-side rendering.
	Settle time.Duration
	// NavTimeout bounds each browser round trip separately: navigate plus
	// load, reading the document, parking. The settle wait is not counted.
	NavTimeout time.Duration
	// ParkURL is opened after every read so the tab does not sit on the
	// scraped page between cycles.
	ParkURL string
	// RecycleAfter restarts the browser after this many loads. Zero never
	// recycles.
	RecycleAfter int
}

// Session is an exclusive browser tab. Load calls are serialized.
type Session struct {
	cfg Config

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	page    *rod.Page
	router  *rod.HijackRouter
	loads   int
	closed  bool
}

// NewSession creates a session. The browser starts on the first Load.
func NewSession(cfg Config) *Session {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 90 * time.Second
	}
	return &Session{cfg: cfg}
}

// Load navigates to pageURL, waits for the page to settle and returns the
// rendered document. The tab is parked afterwards.
func (s *Session) Load(ctx context.Context, pageURL string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrClosed
	}

	if s.page != nil && s.cfg.RecycleAfter > 0 && s.loads >= s.cfg.RecycleAfter {
		slog.Info("browser: recycling", "loads", s.loads)
		s.cleanup()
	}
	if s.page == nil {
		if err := s.start(); err != nil {
			return "", err
		}
	}

	html, err := s.read(ctx, pageURL)
	if err != nil {
		// Start fresh next time; the tab state is unknown.
		s.cleanup()
		return "", err
	}

	s.loads++
	s.park(ctx)
	return html, nil
}

func (s *Session) read(ctx context.Context, pageURL string) (string, error) {
	if err := s.navigate(ctx, pageURL); err != nil {
		return "", err
	}
	if err := settle(ctx, s.cfg.Settle); err != nil {
		return "", err
	}

	evalCtx, cancel := context.WithTimeout(ctx, s.cfg.NavTimeout)
	defer cancel()

	res, err := s.page.Context(evalCtx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("browser: read document: %w", err)
	}
	return res.Value.Str(), nil
}

// navigate opens pageURL and waits for the load event. NavTimeout bounds
// only this step.
func (s *Session) navigate(ctx context.Context, pageURL string) error {
	navCtx, cancel := context.WithTimeout(ctx, s.cfg.NavTimeout)
	defer cancel()

	page := s.page.Context(navCtx)
	if err := page.Navigate(pageURL); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.WaitLoad(); err != nil {
		slog.Warn("browser: wait load", "url", pageURL, "error", err)
	}
	return nil
}

// settle blocks for d so client-side rendering can finish.
func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Session) park(ctx context.Context) {
	if s.cfg.ParkURL == "" {
		return
	}
	parkCtx, cancel := context.WithTimeout(ctx, s.cfg.NavTimeout)
	defer cancel()

	if err := s.page.Context(parkCtx).Navigate(s.cfg.ParkURL); err != nil {
		slog.Warn("browser: park navigation failed", "url", s.cfg.ParkURL, "error", err)
	}
}

func (s *Session) start() error {
	wsURL := s.cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().Headless(s.cfg.Headless).
			Set("disable-blink-features", "AutomationControlled")
		if s.cfg.Bin != "" {
			l = l.Bin(s.cfg.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		s.lnch = l
		slog.Info("browser: launched local chrome", "headless", s.cfg.Headless)
	} else {
		slog.Info("browser: connecting to remote", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		s.cleanup()
		return fmt.Errorf("browser: connect: %w", err)
	}
	s.browser = b

	page, err := stealth.Page(b)
	if err != nil {
		s.cleanup()
		return fmt.Errorf("browser: create tab: %w", err)
	}
	s.page = page

	if s.cfg.BlockImages {
		s.router = page.HijackRequests()
		s.router.MustAdd("*", func(h *rod.Hijack) {
			if blocked(h.Request.Type()) {
				h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
				return
			}
			h.ContinueRequest(&proto.FetchContinueRequest{})
		})
		go s.router.Run()
	}

	s.loads = 0
	return nil
}

func blocked(t proto.NetworkResourceType) bool {
	switch t {
	case proto.NetworkResourceTypeImage, proto.NetworkResourceTypeMedia, proto.NetworkResourceTypeFont:
		return true
	default:
		return false
	}
}

func (s *Session) cleanup() {
	if s.router != nil {
		if err := s.router.Stop(); err != nil {
			slog.Debug("browser: stop router", "error", err)
		}
		s.router = nil
	}
	s.page = nil
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			slog.Debug("browser: close", "error", err)
		}
		s.browser = nil
	}
	if s.lnch != nil {
		s.lnch.Cleanup()
		s.lnch = nil
	}
}

// Close shuts the browser down. Further Load calls fail with ErrClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.cleanup()
	return nil
}
