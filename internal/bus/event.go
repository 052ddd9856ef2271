package bus

import (
	"time"

	"github.com/google/uuid"

	"github.com/matheus3301/mailcore/internal/message"
)

// Event kinds published for UI consumers.
const (
	KindMsgsChanged  = "msgs.changed"
	KindMsgFailed    = "msg.failed"
	KindMsgRead      = "msg.read"
	KindMsgDelivered = "msg.delivered"
)

// Event represents a domain event published on the bus.
type Event struct {
	ID        string
	Kind      string
	Timestamp time.Time
	Payload   any
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(kind string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

// MsgRef addresses the message an event is about. Zero ids mean "several"
// or "unknown"; a MsgsChanged with both zero asks the UI to reload.
type MsgRef struct {
	ChatID message.ChatID
	MsgID  message.MsgID
}
