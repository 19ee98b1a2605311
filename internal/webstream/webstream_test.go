package webstream

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"nuha.dev/safetracker/internal/hub"
)

func waitViewerCount(t *testing.T, h *hub.Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.ViewerCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("viewer count never reached %d, got %d", want, h.ViewerCount())
}

func TestDeliverAndUnsubscribe(t *testing.T) {
	h := hub.NewHub()
	ws := NewWebstream(h, WebstreamConfig{ViewerBuf: 8})

	srv := httptest.NewServer(http.HandlerFunc(ws.serve_http))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close(websocket.StatusInternalError, "test over")

	waitViewerCount(t, h, 1)

	payload := []byte(`{"id":"abc","latitude":12.9,"longitude":77.6}`)
	h.Publish(payload)

	typ, d, err := c.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if typ != websocket.MessageText {
		t.Errorf("want text message, got %v", typ)
	}
	if !bytes.Equal(d, payload) {
		t.Errorf("payload mangled: %s", d)
	}

	// disconnecting the client must unsubscribe the viewer
	c.Close(websocket.StatusNormalClosure, "")
	waitViewerCount(t, h, 0)
}
