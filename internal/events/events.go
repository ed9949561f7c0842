// Package events defines the notifications published when registrations
// change. Delivery is best effort and never blocks the caller's flow.
package events

import (
	"context"
	"encoding/json"
	"time"
)

const (
	RegistrationCreated = "registration.created"
	ReceiptAttached     = "receipt.attached"
)

type RegistrationEvent struct {
	Type           string    `json:"type"`
	DocumentID     string    `json:"document_id"`
	RegistrationID string    `json:"registration_id"`
	Name           string    `json:"name"`
	Year           string    `json:"year"`
	RollNumber     string    `json:"roll_number"`
	Phone          string    `json:"phone"`
	ReceiptURL     string    `json:"receipt_url,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, string, []byte) error { return nil }

func Encode(ev RegistrationEvent) ([]byte, error) {
	return json.Marshal(ev)
}

func Decode(body []byte) (RegistrationEvent, error) {
	var ev RegistrationEvent
	err := json.Unmarshal(body, &ev)
	return ev, err
}
