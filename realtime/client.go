package realtime

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dulcera/syncbridge/event"
)

// Conn is the connection surface the hub writes to. *websocket.Conn
// satisfies it; tests substitute an in-memory recorder.
type Conn interface {
	WriteJSON(v interface{}) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// Client is one connected websocket peer and its subscription state.
type Client struct {
	ID   string
	conn Conn

	mu            sync.Mutex
	clientType    event.Source
	subscriptions map[event.Channel]struct{}
	lastPong      time.Time
}

func newClient(id string, conn Conn, clientType event.Source, now time.Time) *Client {
	return &Client{
		ID:            id,
		conn:          conn,
		clientType:    clientType,
		subscriptions: make(map[event.Channel]struct{}),
		lastPong:      now,
	}
}

// Type returns the client's current classification. It may change once if a
// hello frame arrives after the header-based guess.
func (c *Client) Type() event.Source {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientType
}

func (c *Client) setType(t event.Source) {
	c.mu.Lock()
	c.clientType = t
	c.mu.Unlock()
}

func (c *Client) subscribe(channels []event.Channel) []event.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()

	accepted := make([]event.Channel, 0, len(channels))
	for _, ch := range channels {
		if !event.ValidChannel(ch) {
			continue
		}
		c.subscriptions[ch] = struct{}{}
		accepted = append(accepted, ch)
	}
	return accepted
}

func (c *Client) unsubscribe(channels []event.Channel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range channels {
		delete(c.subscriptions, ch)
	}
}

// subscribedTo reports whether the client should receive events on ch. A
// subscription to ChannelAll matches every channel.
func (c *Client) subscribedTo(ch event.Channel) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.subscriptions[event.ChannelAll]; ok {
		return true
	}
	_, ok := c.subscriptions[ch]
	return ok
}

func (c *Client) touch(now time.Time) {
	c.mu.Lock()
	c.lastPong = now
	c.mu.Unlock()
}

func (c *Client) lastSeen() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPong
}

// send serializes writes; gorilla connections permit one concurrent writer.
func (c *Client) send(msg outbound) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(msg)
}

func (c *Client) ping(deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, deadline)
}

func (c *Client) close() {
	c.conn.Close()
}

// classifyRequest guesses the client type from request headers. It is only a
// fallback: clients are expected to identify themselves with a hello frame.
func classifyRequest(r *http.Request) event.Source {
	ua := strings.ToLower(r.Header.Get("User-Agent"))
	if strings.Contains(ua, "dart") || strings.Contains(ua, "flutter") || strings.Contains(ua, "mobile") {
		return event.SourceFlutterApp
	}

	origin := strings.ToLower(r.Header.Get("Origin"))
	switch {
	case strings.Contains(origin, "b2b"):
		return event.SourceB2BPortal
	case strings.Contains(origin, "shop"), strings.Contains(origin, "b2c"):
		return event.SourceB2CEcommerce
	default:
		return event.SourceAdminDashboard
	}
}
