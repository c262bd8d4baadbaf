package web

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/hpungsan/blockcad/internal/editor"
)

func TestHub_BroadcastDoesNotBlock(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()

	for i := 0; i < clientBuffer+3; i++ {
		h.Broadcast([]byte("x"))
	}
	if len(ch) != clientBuffer {
		t.Errorf("buffered = %d, want %d", len(ch), clientBuffer)
	}

	h.Unsubscribe(ch)
	h.Unsubscribe(ch) // second call is a no-op
	if h.Clients() != 0 {
		t.Errorf("Clients() = %d, want 0", h.Clients())
	}
}

func decodeFrame(t *testing.T, b []byte) FrameMessage {
	t.Helper()
	var msg FrameMessage
	if err := json.Unmarshal(b, &msg); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	return msg
}

func TestFrameObserver_SendsChangesAndHeartbeats(t *testing.T) {
	s := editor.New(nil, editor.WithID("hub"))
	h := NewHub()
	ch := h.Subscribe()
	s.OnFrame(h.frameObserver(2))
	ctx := context.Background()

	s.Frame(ctx, 1.0/60) // first frame: scene counts as changed
	s.Frame(ctx, 1.0/60) // heartbeat
	s.Frame(ctx, 1.0/60) // nothing

	if len(ch) != 2 {
		t.Fatalf("messages = %d, want 2", len(ch))
	}
	first := decodeFrame(t, <-ch)
	if first.Type != "frame" || first.Frame.Frame != 1 || len(first.Blocks) != 1 {
		t.Errorf("first = %+v, want frame 1 with the baseplate", first)
	}
	second := decodeFrame(t, <-ch)
	if second.Frame.Frame != 2 || second.Blocks != nil {
		t.Errorf("second = %+v, want heartbeat without blocks", second)
	}
}

func TestFrameObserver_NoClients(t *testing.T) {
	s := editor.New(nil, editor.WithID("hub"))
	h := NewHub()
	s.OnFrame(h.frameObserver(1))

	// Must not panic or block with nobody listening.
	s.Frame(context.Background(), 1.0/60)
}

func TestSameOrigin(t *testing.T) {
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://example.com", true},
		{"https://example.com", true},
		{"http://evil.example", false},
		{"http://example.com.evil.example", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "http://example.com/ws", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		if got := sameOrigin(req); got != tt.want {
			t.Errorf("sameOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}
