package opener

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

type BrowserConfig struct {
	// ControlURL attaches to a running Chrome (--remote-debugging-port).
	// When empty a visible Chrome is launched.
	ControlURL  string
	UserDataDir string
	Headless    bool

	// AutoClose is consulted per link so the user setting applies live.
	AutoClose  func() bool
	CloseAfter time.Duration
}

// Browser opens each link as a new tab in a Chrome driven through rod.
type Browser struct {
	cfg BrowserConfig

	mu       sync.Mutex
	browser  *rod.Browser
	launched bool
}

func NewBrowser(cfg BrowserConfig) *Browser {
	if cfg.AutoClose == nil {
		cfg.AutoClose = func() bool { return false }
	}
	return &Browser{cfg: cfg}
}

func (b *Browser) Open(url string) {
	go func() {
		if err := b.open(url); err != nil {
			slog.Warn("browser opener failed", "error", err)
		}
	}()
}

func (b *Browser) open(url string) error {
	browser, err := b.connect()
	if err != nil {
		return err
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		b.reset()
		return fmt.Errorf("create page: %w", err)
	}

	if b.cfg.AutoClose() && b.cfg.CloseAfter > 0 {
		time.AfterFunc(b.cfg.CloseAfter, func() {
			if err := page.Close(); err != nil {
				slog.Debug("auto close tab failed", "error", err)
			}
		})
	}
	return nil
}

func (b *Browser) connect() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil {
		if _, err := b.browser.Version(); err == nil {
			return b.browser, nil
		}
		slog.Info("stale browser connection, reconnecting")
		b.dropLocked()
	}

	controlURL := b.cfg.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(b.cfg.Headless)
		if b.cfg.UserDataDir != "" {
			l = l.UserDataDir(b.cfg.UserDataDir)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL).Context(context.Background())
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	b.browser = browser
	b.launched = b.cfg.ControlURL == ""
	return browser, nil
}

func (b *Browser) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dropLocked()
}

// Close shuts down a Chrome this opener launched. An attached Chrome is
// left running.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropLocked()
}

func (b *Browser) dropLocked() error {
	if b.browser == nil {
		return nil
	}
	var err error
	if b.launched {
		err = b.browser.Close()
	}
	b.browser = nil
	b.launched = false
	return err
}
