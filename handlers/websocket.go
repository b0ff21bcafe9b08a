package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"reminder-server/logx"
	"reminder-server/metrics"
	"reminder-server/models"
)

// WSOptions tunes every websocket connection the server accepts.
type WSOptions struct {
	MaxMessageSize int64
	SendBuffer     int
	WriteWait      time.Duration
	PongWait       time.Duration

	// MessagesPerSecond <= 0 disables per-connection rate limiting.
	MessagesPerSecond float64
	Burst             int
}

func DefaultWSOptions() WSOptions {
	return WSOptions{
		MaxMessageSize:    8 * 1024,
		SendBuffer:        256,
		WriteWait:         10 * time.Second,
		PongWait:          60 * time.Second,
		MessagesPerSecond: 20,
		Burst:             40,
	}
}

func (o WSOptions) withDefaults() WSOptions {
	def := DefaultWSOptions()
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = def.MaxMessageSize
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = def.SendBuffer
	}
	if o.WriteWait <= 0 {
		o.WriteWait = def.WriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = def.PongWait
	}
	return o
}

func (o WSOptions) pingPeriod() time.Duration {
	return (o.PongWait * 9) / 10
}

func newUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// Client is one websocket connection. Everything written to it goes
// through the send buffer, which is drained by the connection's writePump.
type Client struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter

	mu     sync.Mutex
	closed bool
}

func newClient(conn *websocket.Conn, opts WSOptions) *Client {
	c := &Client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, opts.SendBuffer),
	}
	if opts.MessagesPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.MessagesPerSecond), opts.Burst)
	}
	return c
}

// Send queues msg without blocking. It reports false when the buffer is
// full or the client has already been closed.
func (c *Client) Send(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Hub tracks the connected clients and fans messages out to them.
type Hub struct {
	log zerolog.Logger

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:     logx.Component(log, "hub"),
		clients: make(map[*Client]struct{}),
	}
}

func (h *Hub) Join(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	metrics.TotalConnections.Inc()
	metrics.ActiveConnections.Set(float64(n))
	h.log.Info().Str("client_id", c.id).Int("clients", n).Msg("client connected")
}

// Leave removes c and closes its send buffer. It reports whether c was
// still connected, so calling it twice is harmless.
func (h *Hub) Leave(c *Client) bool {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return false
	}
	c.close()
	metrics.ActiveConnections.Set(float64(n))
	h.log.Info().Str("client_id", c.id).Int("clients", n).Msg("client disconnected")
	return true
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues msg for every connected client and returns how many
// accepted it. A client whose buffer is full is disconnected rather than
// allowed to hold up the others.
func (h *Hub) Broadcast(msg []byte) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	sent := 0
	var stale []*Client
	for _, c := range targets {
		if c.Send(msg) {
			sent++
		} else {
			stale = append(stale, c)
		}
	}

	for _, c := range stale {
		if h.Leave(c) {
			metrics.BroadcastDropped.Inc()
			h.log.Warn().Str("client_id", c.id).Msg("client buffer full, disconnecting")
		}
	}

	h.log.Debug().Int("sent", sent).Int("clients", len(targets)).Msg("broadcast")
	return sent
}

// CloseAll disconnects every client. Their write pumps send a close frame
// on the way out.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*Client]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
	metrics.ActiveConnections.Set(0)
	if len(clients) > 0 {
		h.log.Info().Int("clients", len(clients)).Msg("closed all clients")
	}
}

// HandleWebSocket upgrades the request and serves commands on the
// connection until either side closes it.
func (d *Dispatcher) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		d.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	c := newClient(conn, d.opts)
	d.hub.Join(c)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go d.writePump(c)
	d.readPump(ctx, c)
}

func (d *Dispatcher) readPump(ctx context.Context, c *Client) {
	log := d.log.With().Str("client_id", c.id).Logger()
	defer func() {
		d.hub.Leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(d.opts.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(d.opts.PongWait))

	c.conn.SetPingHandler(func(appData string) error {
		c.conn.SetReadDeadline(time.Now().Add(d.opts.PongWait))
		err := c.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(d.opts.WriteWait))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(d.opts.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Warn().Err(err).Msg("unexpected close")
			} else {
				log.Debug().Err(err).Msg("connection closed")
			}
			return
		}

		if c.limiter != nil && !c.limiter.Allow() {
			log.Debug().Msg("rate limit exceeded")
			metrics.CommandErrors.WithLabelValues("rate_limited").Inc()
			c.Send([]byte(models.RateLimitedReply))
			continue
		}

		reply := d.Handle(ctx, message)
		if !c.Send([]byte(reply)) {
			log.Debug().Msg("reply dropped, client gone")
		}
	}
}

func (d *Dispatcher) writePump(c *Client) {
	ticker := time.NewTicker(d.opts.pingPeriod())
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(d.opts.WriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				d.log.Debug().Err(err).Str("client_id", c.id).Msg("write failed")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(d.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				d.log.Debug().Err(err).Str("client_id", c.id).Msg("ping failed")
				return
			}
		}
	}
}
