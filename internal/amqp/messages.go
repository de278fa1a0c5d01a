package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// ReceiptSyncMessage asks the worker to sync one stored receipt to the
// spreadsheet. Only the ID and version travel on the wire; the worker
// fetches the full receipt from the database.
type ReceiptSyncMessage struct {
	ID        string    `json:"id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewReceiptSyncMessage(id string, version int64) *ReceiptSyncMessage {
	return &ReceiptSyncMessage{
		ID:        id,
		Version:   version,
		Timestamp: time.Now(),
	}
}

func (m *ReceiptSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReceiptSyncMessageFromJSON(data []byte) (*ReceiptSyncMessage, error) {
	var msg ReceiptSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, errors.New("sync message missing id")
	}
	return &msg, nil
}
