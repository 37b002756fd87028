package realtime

import (
	"time"

	"github.com/dulcera/syncbridge/event"
)

// Client-to-server message types.
const (
	msgHello       = "hello"
	msgSubscribe   = "subscribe"
	msgUnsubscribe = "unsubscribe"
	msgSyncEvent   = "sync-event"
	msgPing        = "ping"
)

// Server-to-client message types.
const (
	msgConnectionEstablished   = "connection-established"
	msgSubscriptionConfirmed   = "subscription-confirmed"
	msgUnsubscriptionConfirmed = "unsubscription-confirmed"
	msgSyncAcknowledged        = "sync-acknowledged"
	msgSyncError               = "sync-error"
	msgSyncUpdate              = "sync-update"
	msgSyncFailed              = "sync-failed"
	msgPong                    = "pong"
)

// inbound is the envelope for every client frame: flat JSON, fields beyond
// Type populated depending on the message type. For sync-event submissions
// the server assigns the identity fields (id, source, timestamp).
type inbound struct {
	Type       string                 `json:"type"`
	ClientType string                 `json:"clientType,omitempty"`
	Channels   []event.Channel        `json:"channels,omitempty"`
	EventType  event.Type             `json:"eventType,omitempty"`
	Targets    []event.Source         `json:"targets,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Priority   event.Priority         `json:"priority,omitempty"`
}

// outbound is the flat server frame. sync-update carries eventType, source,
// data and eventId; the acknowledgement and error frames carry eventId only.
type outbound struct {
	Type      string                 `json:"type"`
	ClientID  string                 `json:"clientId,omitempty"`
	Channels  []event.Channel        `json:"channels,omitempty"`
	EventID   string                 `json:"eventId,omitempty"`
	EventType event.Type             `json:"eventType,omitempty"`
	Source    event.Source           `json:"source,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}
