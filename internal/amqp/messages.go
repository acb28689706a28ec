package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/krizad/baht-saving-project/internal/core"
)

// DepositEventMessage is the wire form of a recorded or undone deposit.
// It carries the whole row so consumers never read back from the ledger.
type DepositEventMessage struct {
	Kind      string    `json:"kind"`
	MemberID  string    `json:"member_id"`
	Period    string    `json:"period"`
	Amount    int       `json:"amount"`
	Username  string    `json:"username,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewDepositEventMessage creates a message from a ledger event
func NewDepositEventMessage(e core.DepositEvent) *DepositEventMessage {
	ts := e.OccurredAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return &DepositEventMessage{
		Kind:      string(e.Kind),
		MemberID:  e.MemberID,
		Period:    e.Period.String(),
		Amount:    e.Amount,
		Username:  e.Username,
		Timestamp: ts,
	}
}

// ToJSON converts the message to JSON bytes
func (m *DepositEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ToEvent converts the message back to a ledger event.
func (m *DepositEventMessage) ToEvent() core.DepositEvent {
	return core.DepositEvent{
		Kind:       core.DepositEventKind(m.Kind),
		MemberID:   m.MemberID,
		Period:     core.PeriodKey(m.Period),
		Amount:     m.Amount,
		Username:   m.Username,
		OccurredAt: m.Timestamp,
	}
}

// DepositEventMessageFromJSON decodes and validates a message.
func DepositEventMessageFromJSON(data []byte) (*DepositEventMessage, error) {
	var msg DepositEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch core.DepositEventKind(msg.Kind) {
	case core.DepositRecorded, core.DepositUndone:
	default:
		return nil, fmt.Errorf("unknown event kind %q", msg.Kind)
	}
	if msg.MemberID == "" || msg.Period == "" {
		return nil, fmt.Errorf("event without member id or period")
	}
	return &msg, nil
}
