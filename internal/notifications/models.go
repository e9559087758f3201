package notifications

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeRegistrationConfirmed Type = "registration.confirmed"
	TypeRefundIssued          Type = "refund.issued"
)

// Message is the envelope published on the notifications topic
type Message struct {
	ID             uuid.UUID              `json:"id"`
	Type           Type                   `json:"type"`
	RecipientID    *uuid.UUID             `json:"recipient_id,omitempty"`
	RecipientEmail string                 `json:"recipient_email"`
	Subject        string                 `json:"subject"`
	Data           map[string]interface{} `json:"data"`
	EventID        *uuid.UUID             `json:"event_id,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

type MessageBuilder struct {
	msg *Message
}

func NewMessage(t Type) *MessageBuilder {
	return &MessageBuilder{msg: &Message{
		ID:        uuid.New(),
		Type:      t,
		Data:      make(map[string]interface{}),
		CreatedAt: time.Now().UTC(),
	}}
}

func (b *MessageBuilder) To(userID *uuid.UUID, email string) *MessageBuilder {
	b.msg.RecipientID = userID
	b.msg.RecipientEmail = email
	return b
}

func (b *MessageBuilder) ForEvent(eventID uuid.UUID) *MessageBuilder {
	b.msg.EventID = &eventID
	return b
}

func (b *MessageBuilder) Subject(subject string) *MessageBuilder {
	b.msg.Subject = subject
	return b
}

func (b *MessageBuilder) With(key string, value interface{}) *MessageBuilder {
	b.msg.Data[key] = value
	return b
}

func (b *MessageBuilder) Build() *Message {
	return b.msg
}

// PartitionKey keeps every message for one recipient on one partition
func (m *Message) PartitionKey() string {
	if m.RecipientID != nil {
		return m.RecipientID.String()
	}
	return m.RecipientEmail
}

func (m *Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}
