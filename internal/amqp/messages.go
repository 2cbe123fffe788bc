package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names a change to the ledger.
type EventType string

const (
	EventChargeCreated   EventType = "charge.created"
	EventChargeDeleted   EventType = "charge.deleted"
	EventPaymentRecorded EventType = "payment.recorded"
	EventPaymentDeleted  EventType = "payment.deleted"
	EventOwnerDeleted    EventType = "owner.deleted"
)

func (t EventType) Valid() bool {
	switch t {
	case EventChargeCreated, EventChargeDeleted, EventPaymentRecorded, EventPaymentDeleted, EventOwnerDeleted:
		return true
	}
	return false
}

// LedgerEvent is a lightweight notification that an owner's statement changed.
// It carries references only; consumers reload the records from the store.
type LedgerEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	OwnerKind string    `json:"ownerKind"`
	OwnerID   string    `json:"ownerId"`
	ChargeID  string    `json:"chargeId,omitempty"`
	PaymentID string    `json:"paymentId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerEvent creates an event with a fresh id and the current time.
func NewLedgerEvent(t EventType, ownerKind, ownerID string) *LedgerEvent {
	return &LedgerEvent{
		ID:        uuid.NewString(),
		Type:      t,
		OwnerKind: ownerKind,
		OwnerID:   ownerID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventFromJSON decodes and sanity-checks an event.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Type.Valid() {
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	if msg.OwnerID == "" {
		return nil, fmt.Errorf("event %s has no owner", msg.ID)
	}
	return &msg, nil
}
