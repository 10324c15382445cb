package amqp

import (
	"encoding/json"
	"time"
)

const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// EntryChangeMessage announces that a ledger entry changed. It carries only
// the kind, id and action; the mirror worker fetches the full row from the
// primary store, so a stale message never overwrites newer data.
type EntryChangeMessage struct {
	Kind      string    `json:"kind"` // "transaction" | "income"
	ID        string    `json:"id"`
	Action    string    `json:"action"` // "created" | "updated" | "deleted"
	Timestamp time.Time `json:"timestamp"`
}

func NewEntryChangeMessage(kind, id, action string) *EntryChangeMessage {
	return &EntryChangeMessage{
		Kind:      kind,
		ID:        id,
		Action:    action,
		Timestamp: time.Now(),
	}
}

func (m *EntryChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func EntryChangeMessageFromJSON(data []byte) (*EntryChangeMessage, error) {
	var m EntryChangeMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
