package opener

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"
)

func newTestBrowser(t *testing.T, autoClose bool, closeAfter time.Duration) (*Browser, string) {
	t.Helper()

	if _, ok := launcher.LookPath(); !ok {
		t.Skip("no Chrome/Chromium found")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	t.Cleanup(srv.Close)

	b := NewBrowser(BrowserConfig{
		Headless:   true,
		AutoClose:  func() bool { return autoClose },
		CloseAfter: closeAfter,
	})
	t.Cleanup(func() { _ = b.Close() })

	return b, srv.URL + "/chat"
}

func countPages(t *testing.T, b *Browser, prefix string) int {
	t.Helper()

	b.mu.Lock()
	browser := b.browser
	b.mu.Unlock()
	if browser == nil {
		t.Fatalf("browser not connected")
	}

	pages, err := browser.Pages()
	if err != nil {
		t.Fatalf("Pages() error: %v", err)
	}
	n := 0
	for _, p := range pages {
		info, err := p.Info()
		if err == nil && strings.HasPrefix(info.URL, prefix) {
			n++
		}
	}
	return n
}

func waitPages(t *testing.T, b *Browser, prefix string, want int, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		got := countPages(t, b, prefix)
		if got == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d pages at %s, got %d", want, prefix, got)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestBrowser_AutoCloseClosesTab(t *testing.T) {
	b, url := newTestBrowser(t, true, 2*time.Second)

	if err := b.open(url); err != nil {
		t.Fatalf("open() error: %v", err)
	}
	waitPages(t, b, url, 1, 1500*time.Millisecond)
	waitPages(t, b, url, 0, 5*time.Second)
}

func TestBrowser_TabStaysOpenWithoutAutoClose(t *testing.T) {
	b, url := newTestBrowser(t, false, 100*time.Millisecond)

	if err := b.open(url); err != nil {
		t.Fatalf("open() error: %v", err)
	}
	waitPages(t, b, url, 1, 2*time.Second)

	time.Sleep(500 * time.Millisecond)
	if got := countPages(t, b, url); got != 1 {
		t.Fatalf("expected the tab to stay open, got %d matching pages", got)
	}
}
