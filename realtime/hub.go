package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dulcera/syncbridge/conflict"
	syncErrors "github.com/dulcera/syncbridge/errors"
	"github.com/dulcera/syncbridge/event"
	"github.com/dulcera/syncbridge/logging"
)

// SharedStore is the cross-instance backing store. *redisstore.Store
// satisfies it. A nil store puts the hub in local-only mode.
type SharedStore interface {
	PublishEvent(ctx context.Context, ev *event.SyncEvent) error
	SaveEvent(ctx context.Context, ev *event.SyncEvent) error
	MarkProcessed(ctx context.Context, eventID string) error
	Subscribe(ctx context.Context, handler func(*event.SyncEvent)) error
	Ping(ctx context.Context) error
}

// Resolver is the conflict-resolution surface the hub drives for every
// queued event.
type Resolver interface {
	Check(ev *event.SyncEvent) []conflict.Conflict
	Resolve(ev *event.SyncEvent, conflicts []conflict.Conflict) (*event.SyncEvent, error)
	Commit(ev *event.SyncEvent)
	HistorySizes() map[string]int
}

// Options configures a Hub. Zero-value durations fall back to the
// defaults below.
type Options struct {
	Store     SharedStore
	Resolver  Resolver
	Validator *event.Validator
	Logger    *logging.Logger

	PingInterval time.Duration
	PongTimeout  time.Duration

	// OnEventFailed fires exactly once per event that exhausts its
	// retries or hits an unresolvable conflict.
	OnEventFailed func(ev *event.SyncEvent, reason error)
}

const (
	defaultPingInterval = 30 * time.Second
	defaultPongTimeout  = 60 * time.Second
	writeWait           = 10 * time.Second
)

// Hub owns the websocket client registry and the sync event queue. A single
// consumer goroutine drains the queue so events for the same entity are
// never resolved concurrently.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	origins map[string]string

	queue     *syncQueue
	store     SharedStore
	resolver  Resolver
	validator *event.Validator
	logger    *logging.Logger
	upgrader  websocket.Upgrader

	pingInterval time.Duration
	pongTimeout  time.Duration
	onFailed     func(ev *event.SyncEvent, reason error)
	now          func() time.Time
}

// Stats is a point-in-time snapshot of hub load.
type Stats struct {
	Clients      int                  `json:"clients"`
	ClientCounts map[event.Source]int `json:"clientCounts"`
	QueueDepth   int                  `json:"queueDepth"`
}

func NewHub(opts Options) *Hub {
	if opts.Validator == nil {
		opts.Validator = event.NewValidator()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	if opts.PongTimeout <= 0 {
		opts.PongTimeout = defaultPongTimeout
	}

	return &Hub{
		clients:   make(map[string]*Client),
		origins:   make(map[string]string),
		queue:     newSyncQueue(),
		store:     opts.Store,
		resolver:  opts.Resolver,
		validator: opts.Validator,
		logger:    opts.Logger.WithComponent("realtime-hub"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		pingInterval: opts.PingInterval,
		pongTimeout:  opts.PongTimeout,
		onFailed:     opts.OnEventFailed,
		now:          time.Now,
	}
}

// Run drives the queue consumer, the heartbeat sweep and, when a shared
// store is configured, the cross-instance subscription. It blocks until ctx
// is cancelled.
func (h *Hub) Run(ctx context.Context) {
	if h.store != nil {
		go h.consumeRemote(ctx)
	}
	go h.heartbeat(ctx)

	for {
		ev := h.queue.pop()
		if ev == nil {
			select {
			case <-ctx.Done():
				return
			case <-h.queue.wait():
			}
			continue
		}
		h.process(ctx, ev)
	}
}

// ServeWS upgrades the request and services the connection until the peer
// goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.LogError(r.Context(), err, "websocket upgrade failed")
		return
	}

	client := newClient(uuid.NewString(), conn, classifyRequest(r), h.now())
	conn.SetPongHandler(func(string) error {
		client.touch(h.now())
		return nil
	})

	h.register(client)
	client.send(outbound{
		Type:      msgConnectionEstablished,
		ClientID:  client.ID,
		Timestamp: h.now(),
	})

	h.readLoop(r.Context(), client, conn)
}

func (h *Hub) readLoop(ctx context.Context, c *Client, conn *websocket.Conn) {
	defer h.drop(c, "connection closed")

	for {
		var in inbound
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed",
					slog.String("clientId", c.ID), slog.String("error", err.Error()))
			}
			return
		}
		h.handleMessage(ctx, c, &in)
	}
}

func (h *Hub) handleMessage(ctx context.Context, c *Client, in *inbound) {
	switch in.Type {
	case msgHello:
		h.handleHello(c, in)

	case msgSubscribe:
		accepted := c.subscribe(in.Channels)
		c.send(outbound{Type: msgSubscriptionConfirmed, Channels: accepted, Timestamp: h.now()})

	case msgUnsubscribe:
		c.unsubscribe(in.Channels)
		c.send(outbound{Type: msgUnsubscriptionConfirmed, Channels: in.Channels, Timestamp: h.now()})

	case msgPing:
		c.touch(h.now())
		c.send(outbound{Type: msgPong, Timestamp: h.now()})

	case msgSyncEvent:
		h.submit(ctx, c, in)

	default:
		c.send(outbound{Type: msgSyncError, Error: "unknown message type: " + in.Type, Timestamp: h.now()})
	}
}

// handleHello applies the client's self-identification. It overrides the
// header-based guess made at upgrade time.
func (h *Hub) handleHello(c *Client, in *inbound) {
	t := event.Source(in.ClientType)
	if !event.ValidSource(t) || t == event.SourceSystem {
		c.send(outbound{Type: msgSyncError, Error: "unknown client type: " + in.ClientType, Timestamp: h.now()})
		return
	}
	c.setType(t)
	h.logger.Info("client identified",
		slog.String("clientId", c.ID), slog.String("clientType", string(t)))
}

// submit validates a client-submitted event, acknowledges it and queues it
// for processing.
func (h *Hub) submit(ctx context.Context, c *Client, in *inbound) {
	priority := in.Priority
	if priority == "" {
		priority = event.PriorityMedium
	}
	ev := event.New(in.EventType, c.Type(), in.Targets, in.Data, priority)

	if err := h.validator.Validate(ev); err != nil {
		h.logger.LogError(ctx, err, "rejected sync event", slog.String("clientId", c.ID))
		c.send(outbound{Type: msgSyncError, EventID: ev.ID, Error: err.Error(), Timestamp: h.now()})
		return
	}

	h.mu.Lock()
	h.origins[ev.ID] = c.ID
	h.mu.Unlock()

	c.send(outbound{Type: msgSyncAcknowledged, EventID: ev.ID, Timestamp: h.now()})
	h.queue.push(ev)
}

// process runs the full pipeline for one event: conflict check, resolution,
// local broadcast, cross-instance publication, commit.
func (h *Hub) process(ctx context.Context, ev *event.SyncEvent) {
	if h.resolver != nil {
		if done := h.resolveConflicts(ev); done {
			return
		}
	}

	delivered := h.broadcastLocal(ev, h.originOf(ev.ID))

	if h.store != nil {
		// Store failures degrade to local-only delivery, they never
		// fail the event.
		if err := h.store.PublishEvent(ctx, ev); err != nil {
			h.logger.LogError(ctx, err, "publish degraded to local-only", slog.String("eventId", ev.ID))
		}
		if err := h.store.SaveEvent(ctx, ev); err != nil {
			h.logger.LogError(ctx, err, "event snapshot not saved", slog.String("eventId", ev.ID))
		}
		if err := h.store.MarkProcessed(ctx, ev.ID); err != nil {
			h.logger.LogError(ctx, err, "processed marker not saved", slog.String("eventId", ev.ID))
		}
	}

	if h.resolver != nil {
		h.resolver.Commit(ev)
	}
	h.clearOrigin(ev.ID)

	h.logger.Debug("event processed",
		slog.String("eventId", ev.ID),
		slog.String("type", string(ev.Type)),
		slog.Int("delivered", delivered))
}

// resolveConflicts reports true when the event reached a terminal state
// (failed or requeued) and must not continue through the pipeline.
func (h *Hub) resolveConflicts(ev *event.SyncEvent) bool {
	conflicts := h.resolver.Check(ev)
	if len(conflicts) == 0 {
		return false
	}

	if _, err := h.resolver.Resolve(ev, conflicts); err != nil {
		if syncErrors.IsUnresolvable(err) {
			h.fail(ev, err)
		} else {
			h.requeue(ev, err)
		}
		return true
	}
	return false
}

func (h *Hub) requeue(ev *event.SyncEvent, cause error) {
	if ev.RetryCount >= event.MaxRetries {
		h.fail(ev, cause)
		return
	}
	ev.RetryCount++
	h.logger.Warn("event requeued",
		slog.String("eventId", ev.ID),
		slog.Int("retryCount", ev.RetryCount),
		slog.String("error", cause.Error()))
	h.queue.push(ev)
}

// fail is the terminal path: the origin client is told, the failure hook
// fires once, and the event is forgotten.
func (h *Hub) fail(ev *event.SyncEvent, cause error) {
	h.logger.LogError(context.Background(), cause, "event abandoned",
		slog.String("eventId", ev.ID),
		slog.String("type", string(ev.Type)),
		slog.Int("retryCount", ev.RetryCount))

	if originID := h.originOf(ev.ID); originID != "" {
		h.mu.RLock()
		origin := h.clients[originID]
		h.mu.RUnlock()
		if origin != nil {
			origin.send(outbound{
				Type:      msgSyncFailed,
				EventID:   ev.ID,
				Error:     cause.Error(),
				Timestamp: h.now(),
			})
		}
	}
	h.clearOrigin(ev.ID)

	if h.onFailed != nil {
		h.onFailed(ev, cause)
	}
}

// broadcastLocal fans the event out to every connected client that is
// targeted and subscribed. No echo back to the source: every client whose
// type matches ev.Source is skipped, wherever the event came from. Returns
// the delivery count.
func (h *Hub) broadcastLocal(ev *event.SyncEvent, excludeID string) int {
	ch := ev.Channel()
	msg := outbound{
		Type:      msgSyncUpdate,
		EventID:   ev.ID,
		EventType: ev.Type,
		Source:    ev.Source,
		Data:      ev.Data,
		Timestamp: h.now(),
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if c.ID == excludeID || c.Type() == ev.Source {
			continue
		}
		if !ev.TargetsInclude(c.Type()) {
			continue
		}
		if !c.subscribedTo(ch) {
			continue
		}
		if err := c.send(msg); err != nil {
			h.drop(c, "write failed")
			continue
		}
		delivered++
	}
	return delivered
}

// BroadcastToAll queues a system-sourced event for every connected system.
func (h *Hub) BroadcastToAll(t event.Type, data map[string]interface{}) error {
	return h.broadcastFromSystem(t, nil, data)
}

// BroadcastToClients queues a system-sourced event for the named client
// types only.
func (h *Hub) BroadcastToClients(clientTypes []event.Source, t event.Type, data map[string]interface{}) error {
	return h.broadcastFromSystem(t, clientTypes, data)
}

func (h *Hub) broadcastFromSystem(t event.Type, targets []event.Source, data map[string]interface{}) error {
	ev := event.New(t, event.SourceSystem, targets, data, event.PriorityMedium)
	if err := h.validator.Validate(ev); err != nil {
		return err
	}
	h.queue.push(ev)
	return nil
}

// consumeRemote keeps a subscription open to the shared store and
// rebroadcasts peer events to local clients. Subscription loss is retried
// with a growing delay.
func (h *Hub) consumeRemote(ctx context.Context) {
	delay := time.Second
	for {
		err := h.store.Subscribe(ctx, func(ev *event.SyncEvent) {
			h.broadcastLocal(ev, "")
		})
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			h.logger.LogError(ctx, err, "shared store subscription lost, reconnecting",
				slog.Duration("delay", delay))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
}

// heartbeat pings every client each interval and evicts clients whose last
// pong is older than the timeout.
func (h *Hub) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		now := h.now()
		h.mu.RLock()
		targets := make([]*Client, 0, len(h.clients))
		for _, c := range h.clients {
			targets = append(targets, c)
		}
		h.mu.RUnlock()

		for _, c := range targets {
			if now.Sub(c.lastSeen()) > h.pongTimeout {
				h.drop(c, "pong timeout")
				continue
			}
			if err := c.ping(now.Add(writeWait)); err != nil {
				h.drop(c, "ping failed")
			}
		}
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()

	h.logger.Info("client connected",
		slog.String("clientId", c.ID),
		slog.String("clientType", string(c.Type())))
}

func (h *Hub) drop(c *Client, reason string) {
	h.mu.Lock()
	_, present := h.clients[c.ID]
	delete(h.clients, c.ID)
	h.mu.Unlock()

	if !present {
		return
	}
	c.close()
	h.logger.Info("client disconnected",
		slog.String("clientId", c.ID),
		slog.String("reason", reason))
}

func (h *Hub) originOf(eventID string) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.origins[eventID]
}

func (h *Hub) clearOrigin(eventID string) {
	h.mu.Lock()
	delete(h.origins, eventID)
	h.mu.Unlock()
}

// Stats reports connected client counts by type and the queue depth.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	counts := make(map[event.Source]int, 4)
	for _, c := range h.clients {
		counts[c.Type()]++
	}
	total := len(h.clients)
	h.mu.RUnlock()

	return Stats{
		Clients:      total,
		ClientCounts: counts,
		QueueDepth:   h.queue.depth(),
	}
}
