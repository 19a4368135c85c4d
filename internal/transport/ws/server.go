package ws

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"paranoia.ai/internal/sim/director/arbiter"
	"paranoia.ai/internal/sim/director/interest"
)

type Config struct {
	RunID string
	// AllowRemote accepts non-loopback clients.
	AllowRemote bool
	// QueueSize is the per-client frame buffer; a full buffer drops frames.
	QueueSize int
}

type client struct {
	out   chan []byte
	min   atomic.Int32
	quiet atomic.Bool
}

// Hub fans tick frames out to connected feed clients. Publish never blocks
// the caller.
type Hub struct {
	cfg Config
	log *zap.Logger

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[uint64]*client
	closed  bool
	nextID  atomic.Uint64
	tick    atomic.Uint64
	dropped atomic.Uint64
}

func NewHub(cfg Config, logger *zap.Logger) *Hub {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		cfg:     cfg,
		log:     logger,
		clients: map[uint64]*client{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// Publish sends msg to every subscriber whose filter it passes.
func (h *Hub) Publish(msg TickMsg) {
	msg.Type = TypeTick
	msg.ProtocolVersion = Version
	h.tick.Store(msg.Tick)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	frames := map[interest.Priority][]byte{}
	for _, c := range h.clients {
		floor := interest.Priority(c.min.Load())
		filtered := filterHeadlines(msg.Headlines, floor)
		if c.quiet.Load() && len(filtered) == 0 {
			continue
		}
		b, ok := frames[floor]
		if !ok {
			m := msg
			m.Headlines = filtered
			var err error
			b, err = json.Marshal(m)
			if err != nil {
				h.log.Warn("encode tick frame", zap.Uint64("tick", msg.Tick), zap.Error(err))
				return
			}
			frames[floor] = b
		}
		select {
		case c.out <- b:
		default:
			h.dropped.Add(1)
		}
	}
}

func filterHeadlines(hs []arbiter.Headline, floor interest.Priority) []arbiter.Headline {
	out := make([]arbiter.Headline, 0, len(hs))
	for _, h := range hs {
		if h.Priority >= floor {
			out = append(out, h)
		}
	}
	return out
}

// Close disconnects every client. Later Publish calls are no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, c := range h.clients {
		close(c.out)
		delete(h.clients, id)
	}
}

func (h *Hub) register() (uint64, *client, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, nil, false
	}
	id := h.nextID.Add(1)
	c := &client{out: make(chan []byte, h.cfg.QueueSize)}
	h.clients[id] = c
	return id, c, true
}

func (h *Hub) unregister(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		close(c.out)
		delete(h.clients, id)
	}
}

func (h *Hub) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !h.cfg.AllowRemote && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := h.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := decodeSubscribe(msg)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		id, c, ok := h.register()
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(time.Second))
			return
		}
		defer h.unregister(id)
		applySubscribe(c, sub)
		h.log.Debug("feed client joined", zap.Uint64("client", id), zap.String("remote", r.RemoteAddr))

		if err := writeJSON(conn, HelloMsg{Type: TypeHello, ProtocolVersion: Version, RunID: h.cfg.RunID, Tick: h.tick.Load()}); err != nil {
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-c.out:
					if !ok {
						_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"), time.Now().Add(time.Second))
						_ = conn.Close()
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						_ = conn.Close()
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if sub, ok := decodeSubscribe(msg); ok {
				applySubscribe(c, sub)
			}
		}
		cancel()
		<-writerDone
		h.log.Debug("feed client left", zap.Uint64("client", id))
	}
}

func decodeSubscribe(msg []byte) (SubscribeMsg, bool) {
	var sub SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, false
	}
	if sub.Type != TypeSubscribe || sub.ProtocolVersion != Version {
		return sub, false
	}
	return sub, true
}

func applySubscribe(c *client, sub SubscribeMsg) {
	floor := interest.PriorityLow
	if sub.MinPriority != "" {
		if p, err := interest.ParsePriority(strings.ToUpper(sub.MinPriority)); err == nil {
			floor = p
		}
	}
	c.min.Store(int32(floor))
	c.quiet.Store(sub.Quiet)
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
