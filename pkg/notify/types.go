package notify

import (
	"context"
	"time"
)

// MessageKind classifies outgoing notifications.
type MessageKind string

const (
	// KindReminder nudges an employee ahead of a due date.
	KindReminder MessageKind = "reminder"
	// KindEscalation informs an escalation role of an SLA breach.
	KindEscalation MessageKind = "escalation"
)

// Message is one outgoing notification. Exactly one of RecipientRole or
// RecipientID is set: escalations address a role, reminders address an
// employee.
type Message struct {
	ID            string            `json:"id"`
	CompanyID     string            `json:"company_id"`
	RecipientRole string            `json:"recipient_role,omitempty"`
	RecipientID   string            `json:"recipient_id,omitempty"`
	Kind          MessageKind       `json:"kind"`
	Payload       map[string]string `json:"payload,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Notifier accepts messages for delivery. Implementations are one-way and
// must not block on the eventual transport: the SLA sweep treats Send as
// fire-and-forget, so a transport outage never stalls a sweep.
type Notifier interface {
	Send(ctx context.Context, msg *Message) error
}

// Sender performs the actual delivery of a drained outbox message. Transport
// integrations (email, chat) implement this; the engine ships only LogSender.
type Sender interface {
	Deliver(ctx context.Context, msg *Message) error
}
