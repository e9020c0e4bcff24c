package timetable

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Subscription receives change events for one table, or for every table
// when Table is empty.
type Subscription struct {
	ID      string
	Table   string
	hub     *ChangeHub
	ch      chan ChangeEvent
	done    chan struct{}
	closed  bool
	mu      sync.Mutex
	created time.Time
}

// C returns the channel for receiving change events.
func (s *Subscription) C() <-chan ChangeEvent {
	return s.ch
}

// Close removes the subscription from its hub and closes its channel.
func (s *Subscription) Close() {
	if s.hub != nil {
		s.hub.Unsubscribe(s.ID)
		return
	}
	s.close()
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
	close(s.ch)
}

// ChangeHub fans table change events out to subscribers. It is an Observer,
// so it can be attached to any number of tables; it is the one component
// safe for concurrent use.
type ChangeHub struct {
	config NotifyConfig
	logger *slog.Logger
	mu     sync.RWMutex
	subs   map[string]*Subscription
	closed bool
}

// NewChangeHub creates a hub.
func NewChangeHub(cfg NotifyConfig, logger *slog.Logger) *ChangeHub {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChangeHub{
		config: cfg,
		logger: logger,
		subs:   make(map[string]*Subscription),
	}
}

// Subscribe creates a subscription for a table name; "" matches all tables.
func (h *ChangeHub) Subscribe(table string) *Subscription {
	sub := &Subscription{
		ID:      uuid.NewString(),
		Table:   table,
		hub:     h,
		ch:      make(chan ChangeEvent, h.config.BufferSize),
		done:    make(chan struct{}),
		created: time.Now(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		sub.close()
		return sub
	}
	h.subs[sub.ID] = sub
	return sub
}

// Unsubscribe removes a subscription.
func (h *ChangeHub) Unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
	}
	h.mu.Unlock()

	if ok {
		sub.close()
	}
}

// OnChange publishes ev to every matching subscription. A subscriber whose
// buffer is full misses the event.
func (h *ChangeHub) OnChange(ev ChangeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		if sub.Table != "" && sub.Table != ev.Table {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			h.logger.Debug("change subscriber buffer full, dropping event",
				"subscription", sub.ID, "table", ev.Table)
		}
	}
}

// Count returns the number of active subscriptions.
func (h *ChangeHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close ends every subscription. Later subscriptions are born closed.
func (h *ChangeHub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[string]*Subscription)
	h.closed = true
	h.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}

// WebSocket handling

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// hubConn serializes writes to one WebSocket connection.
type hubConn struct {
	conn    *websocket.Conn
	mu      sync.Mutex
	timeout time.Duration
}

func (c *hubConn) write(msgType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	return c.conn.WriteMessage(msgType, data)
}

func (c *hubConn) send(fn func(e *jx.Encoder)) error {
	var e jx.Encoder
	e.Obj(fn)
	return c.write(websocket.TextMessage, e.Bytes())
}

func (c *hubConn) sendError(msg string) {
	_ = c.send(func(e *jx.Encoder) {
		e.Field("type", func(e *jx.Encoder) { e.Str("error") })
		e.Field("error", func(e *jx.Encoder) { e.Str(msg) })
	})
}

type hubCommand struct {
	Type  string
	Table string
	SubID string
}

func decodeHubCommand(data []byte) (hubCommand, error) {
	var cmd hubCommand
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "type":
			cmd.Type, err = d.Str()
		case "table":
			cmd.Table, err = d.Str()
		case "sub_id":
			cmd.SubID, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	return cmd, err
}

// encodeChangeEvent writes ev as a JSON object.
func encodeChangeEvent(e *jx.Encoder, ev ChangeEvent) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("table_id", func(e *jx.Encoder) { e.Str(ev.TableID.String()) })
		e.Field("table", func(e *jx.Encoder) { e.Str(ev.Table) })
		e.Field("kind", func(e *jx.Encoder) { e.Str(ev.Kind.String()) })
		e.Field("version", func(e *jx.Encoder) { e.UInt64(ev.Version) })
		e.Field("inserted", func(e *jx.Encoder) { e.Int(ev.Inserted) })
		e.Field("replaced", func(e *jx.Encoder) { e.Int(ev.Replaced) })
		e.Field("removed", func(e *jx.Encoder) { e.Int(ev.Removed) })
	})
}

// WebSocketHandler returns an HTTP handler streaming change events. Clients
// send {"type":"subscribe","table":"..."} and {"type":"unsubscribe",
// "sub_id":"..."}; a ?table= query parameter subscribes on connect.
func (h *ChangeHub) WebSocketHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("websocket upgrade failed", "err", err)
			return
		}
		defer func() { _ = ws.Close() }()
		conn := &hubConn{conn: ws, timeout: h.config.WriteTimeout}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		connSubs := make(map[string]*Subscription)
		var connMu sync.Mutex
		subscribe := func(table string) {
			sub := h.Subscribe(table)
			connMu.Lock()
			connSubs[sub.ID] = sub
			connMu.Unlock()
			_ = conn.send(func(e *jx.Encoder) {
				e.Field("type", func(e *jx.Encoder) { e.Str("subscribed") })
				e.Field("sub_id", func(e *jx.Encoder) { e.Str(sub.ID) })
				e.Field("table", func(e *jx.Encoder) { e.Str(table) })
			})
			go h.forwardEvents(ctx, conn, sub)
		}

		if r.URL.Query().Has("table") {
			subscribe(r.URL.Query().Get("table"))
		}

		go func() {
			defer cancel()
			for {
				_, msg, err := ws.ReadMessage()
				if err != nil {
					return
				}
				cmd, err := decodeHubCommand(msg)
				if err != nil {
					conn.sendError("invalid message format")
					continue
				}
				switch cmd.Type {
				case "subscribe":
					subscribe(cmd.Table)
				case "unsubscribe":
					connMu.Lock()
					if _, ok := connSubs[cmd.SubID]; ok {
						delete(connSubs, cmd.SubID)
						h.Unsubscribe(cmd.SubID)
					}
					connMu.Unlock()
					_ = conn.send(func(e *jx.Encoder) {
						e.Field("type", func(e *jx.Encoder) { e.Str("unsubscribed") })
						e.Field("sub_id", func(e *jx.Encoder) { e.Str(cmd.SubID) })
					})
				default:
					conn.sendError(fmt.Sprintf("unknown command: %s", cmd.Type))
				}
			}
		}()

		if h.config.PingInterval > 0 {
			go h.ping(ctx, conn)
		}

		<-ctx.Done()

		connMu.Lock()
		for id := range connSubs {
			h.Unsubscribe(id)
		}
		connMu.Unlock()
	}
}

func (h *ChangeHub) forwardEvents(ctx context.Context, conn *hubConn, sub *Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.done:
			return
		case ev, ok := <-sub.ch:
			if !ok {
				return
			}
			err := conn.send(func(e *jx.Encoder) {
				e.Field("type", func(e *jx.Encoder) { e.Str("change") })
				e.Field("sub_id", func(e *jx.Encoder) { e.Str(sub.ID) })
				e.Field("event", func(e *jx.Encoder) { encodeChangeEvent(e, ev) })
			})
			if err != nil {
				return
			}
		}
	}
}

func (h *ChangeHub) ping(ctx context.Context, conn *hubConn) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
