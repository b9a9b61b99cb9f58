package opener

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestMulti_FansOut(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var got []string
	rec := func(prefix string) Opener {
		return Func(func(url string) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, prefix+url)
		})
	}

	Multi{rec("a:"), rec("b:")}.Open("u")

	if len(got) != 2 || got[0] != "a:u" || got[1] != "b:u" {
		t.Fatalf("unexpected fan-out %v", got)
	}
}

func dialHub(t *testing.T, h *Hub) (*websocket.Conn, func()) {
	t.Helper()

	srv := httptest.NewServer(h)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial: %v", err)
	}

	return conn, func() {
		_ = conn.Close()
		h.Close()
		srv.Close()
	}
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()

	deadline := time.Now().Add(time.Second)
	for h.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, got %d", n, h.Clients())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_BroadcastsOpenInstruction(t *testing.T) {
	t.Parallel()

	h := NewHub(nil)
	conn, cleanup := dialHub(t, h)
	defer cleanup()

	waitClients(t, h, 1)

	h.Open("https://wa.me/62812?text=hi")

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	var got Instruction
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Type != "open" || got.URL != "https://wa.me/62812?text=hi" {
		t.Fatalf("unexpected instruction %+v", got)
	}
}

func TestHub_ClientDisconnectIsRemoved(t *testing.T) {
	t.Parallel()

	h := NewHub(nil)
	conn, cleanup := dialHub(t, h)
	defer cleanup()

	waitClients(t, h, 1)
	_ = conn.Close()
	waitClients(t, h, 0)

	// no clients: must not block or panic
	h.Open("https://wa.me/62")
}
