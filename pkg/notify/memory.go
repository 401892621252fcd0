package notify

import (
	"context"
	"log/slog"
	"sync"
)

// MemoryNotifier collects messages in memory. Intended for testing only.
type MemoryNotifier struct {
	mu       sync.Mutex
	messages []*Message
}

// NewMemoryNotifier creates a new in-memory notifier.
func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{}
}

// Send records the message.
func (n *MemoryNotifier) Send(ctx context.Context, msg *Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	cp := *msg
	n.messages = append(n.messages, &cp)
	return nil
}

// Messages returns a snapshot of all recorded messages.
func (n *MemoryNotifier) Messages() []*Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*Message, len(n.messages))
	copy(out, n.messages)
	return out
}

// LogSender logs delivered messages instead of contacting a transport. It is
// the default Sender for deployments that integrate notifications downstream
// of the log stream.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a new logging sender.
func NewLogSender() *LogSender {
	return &LogSender{logger: slog.Default().With("component", "notify.sender")}
}

// Deliver logs the message.
func (s *LogSender) Deliver(ctx context.Context, msg *Message) error {
	s.logger.Info("notification",
		"kind", msg.Kind,
		"company_id", msg.CompanyID,
		"recipient_role", msg.RecipientRole,
		"recipient_id", msg.RecipientID,
		"payload", msg.Payload,
	)
	return nil
}
