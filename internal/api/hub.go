package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MikeSquared-Agency/convoscope/internal/highlight"
	"github.com/MikeSquared-Agency/convoscope/internal/xref"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 32
)

// Frame is one message on the highlight stream.
type Frame struct {
	Type      string           `json:"type"`
	State     *highlight.State `json:"state,omitempty"`
	Target    *Target          `json:"target,omitempty"`
	Align     highlight.Align  `json:"align,omitempty"`
	Timestamp int64            `json:"timestamp"`
}

// Target is the resolved location a scroll frame points at. Both fields are
// always present, including id 0 and position 0.
type Target struct {
	MessageID int `json:"messageId"`
	Position  int `json:"position"`
}

const (
	FrameHighlight = "highlight"
	FrameScroll    = "scroll"
)

type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans highlight transitions and scroll requests out to WebSocket
// clients. It is the highlight controller's Scroller and a state listener.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*hubClient]struct{}
	closed  bool
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:  logger,
		clients: make(map[*hubClient]struct{}),
	}
}

// ScrollIntoView implements highlight.Scroller.
func (h *Hub) ScrollIntoView(loc xref.Location, align highlight.Align) {
	h.broadcast(Frame{Type: FrameScroll, Target: &Target{MessageID: loc.MessageID, Position: loc.Position}, Align: align})
}

// HighlightChanged is registered as a highlight.Listener.
func (h *Hub) HighlightChanged(s highlight.State) {
	h.broadcast(Frame{Type: FrameHighlight, State: &s})
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Serve upgrades the request and streams frames until the client leaves.
// initial is sent first so a client knows the state it joined in.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, initial highlight.State) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &hubClient{conn: conn, send: make(chan []byte, sendBuffer)}
	first, err := encodeFrame(Frame{Type: FrameHighlight, State: &initial})
	if err != nil {
		conn.Close()
		return
	}
	c.send <- first

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("highlight client connected", "remote", r.RemoteAddr)

	go h.writeLoop(c)
	h.readLoop(c)
}

// readLoop discards client input and detects disconnects.
func (h *Hub) readLoop(c *hubClient) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *hubClient) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.Debug("highlight client write failed", "error", err)
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *Hub) remove(c *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// broadcast never blocks. A client whose buffer is full is dropped.
func (h *Hub) broadcast(f Frame) {
	msg, err := encodeFrame(f)
	if err != nil {
		h.logger.Error("encode highlight frame", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("dropping slow highlight client")
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func encodeFrame(f Frame) ([]byte, error) {
	f.Timestamp = time.Now().UnixMilli()
	return json.Marshal(f)
}
