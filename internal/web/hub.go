package web

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hpungsan/blockcad/internal/editor"
	"github.com/hpungsan/blockcad/internal/scene"
)

// clientBuffer is how many frames a slow client may lag before frames are dropped.
const clientBuffer = 8

// FrameMessage is one websocket message. Blocks is only set when the scene
// changed since the previous message.
type FrameMessage struct {
	Type    string            `json:"type"`
	Frame   editor.FrameInfo  `json:"frame"`
	Blocks  []scene.BlockView `json:"blocks,omitempty"`
	Console string            `json:"console,omitempty"`
}

// Hub fans frame messages out to websocket clients.
type Hub struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[chan []byte]struct{})}
}

// Subscribe registers a client and returns its message channel.
func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast queues msg for every client without blocking. Clients whose buffer
// is full miss the message.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

// frameObserver returns a Session frame observer that broadcasts frames. The
// block list is sent when the scene changed; other frames go out every
// heartbeat frames so idle clients still see the frame counter.
func (h *Hub) frameObserver(heartbeat uint64) func(*editor.Session, editor.FrameInfo) {
	var lastBlocks int
	var lastConsole string
	return func(s *editor.Session, info editor.FrameInfo) {
		if h.Clients() == 0 {
			return
		}
		console := s.Console().Last()
		changed := info.Physics.Integrated > 0 || info.Plugins > 0 ||
			info.Blocks != lastBlocks || console != lastConsole
		if !changed && (heartbeat == 0 || info.Frame%heartbeat != 0) {
			return
		}
		lastBlocks, lastConsole = info.Blocks, console

		msg := FrameMessage{Type: "frame", Frame: info, Console: console}
		if changed {
			msg.Blocks = scene.Views(s.Blocks())
		}
		b, err := json.Marshal(msg)
		if err != nil {
			return
		}
		h.Broadcast(b)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin:     sameOrigin,
}

// sameOrigin accepts requests without an Origin header and those whose Origin
// host matches the request host.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, prefix := range []string{"http://", "https://"} {
		if origin == prefix+r.Host {
			return true
		}
	}
	return false
}

// serveClient pumps hub messages to conn until either side closes. Inbound
// messages are read only to notice disconnects.
func (h *Hub) serveClient(conn *websocket.Conn, hello []byte) {
	ch := h.Subscribe()
	defer h.Unsubscribe(ch)
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(b []byte) error {
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		return conn.WriteMessage(websocket.TextMessage, b)
	}
	if hello != nil {
		if err := write(hello); err != nil {
			return
		}
	}

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()
	for {
		select {
		case <-done:
			return
		case b, ok := <-ch:
			if !ok {
				return
			}
			if err := write(b); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}
