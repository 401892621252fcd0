package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"mercator-hq/themis/pkg/compliance"
)

// outboxSchema creates the message queue table.
const outboxSchema = `
CREATE TABLE IF NOT EXISTS outbox_messages (
	id TEXT PRIMARY KEY,
	company_id TEXT NOT NULL,
	recipient_role TEXT,
	recipient_id TEXT,
	kind TEXT NOT NULL,
	payload TEXT,
	status TEXT NOT NULL DEFAULT 'pending',
	attempts INTEGER NOT NULL DEFAULT 0,
	next_attempt_at INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	sent_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox_messages(status, next_attempt_at);
`

// OutboxConfig configures the durable notification outbox.
type OutboxConfig struct {
	// DBPath is the path to the outbox database file.
	DBPath string

	// DispatchInterval is how often the dispatch loop drains pending
	// messages. Default: 15 seconds
	DispatchInterval time.Duration

	// MaxAttempts is how many delivery attempts a message gets before it is
	// marked failed. 0 means retry forever. Default: 10
	MaxAttempts int

	// BatchSize is the maximum number of messages drained per pass.
	// Default: 100
	BatchSize int
}

// Outbox is a durable notification queue backed by its own SQLite database
// (pure-Go driver, single writer). Enqueue is cheap and local, which keeps
// the SLA sweep decoupled from transport availability; a background dispatch
// loop drains pending messages to a Sender with exponential backoff.
type Outbox struct {
	db     *sql.DB
	config OutboxConfig
	sender Sender
	logger *slog.Logger

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewOutbox creates a new outbox and starts its dispatch loop.
func NewOutbox(cfg OutboxConfig, sender Sender) (*Outbox, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("outbox db path cannot be empty")
	}
	if cfg.DispatchInterval <= 0 {
		cfg.DispatchInterval = 15 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 10
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open outbox database: %w", err)
	}

	// SQLite only supports a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(outboxSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize outbox schema: %w", err)
	}

	o := &Outbox{
		db:     db,
		config: cfg,
		sender: sender,
		logger: slog.Default().With("component", "notify.outbox"),
		done:   make(chan struct{}),
	}

	o.wg.Add(1)
	go o.dispatchLoop()

	return o, nil
}

// Send enqueues a message for delivery. It implements the Notifier interface
// and never contacts the transport itself.
func (o *Outbox) Send(ctx context.Context, msg *Message) error {
	if msg.ID == "" {
		msg.ID = compliance.NewID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	now := msg.CreatedAt.Unix()
	_, err = o.db.ExecContext(ctx, `
		INSERT INTO outbox_messages (id, company_id, recipient_role, recipient_id, kind, payload, status, attempts, next_attempt_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 'pending', 0, ?, ?)`,
		msg.ID, msg.CompanyID, msg.RecipientRole, msg.RecipientID, msg.Kind, string(payload), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue message: %w", err)
	}
	return nil
}

// dispatchLoop drains pending messages on a fixed interval until Close.
func (o *Outbox) dispatchLoop() {
	defer o.wg.Done()

	ticker := time.NewTicker(o.config.DispatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.done:
			return
		case <-ticker.C:
			if err := o.Dispatch(context.Background()); err != nil {
				o.logger.Error("outbox dispatch pass failed", "error", err)
			}
		}
	}
}

// Dispatch drains one batch of due pending messages to the sender. Delivery
// failures reschedule the message with exponential backoff; a message that
// exhausts MaxAttempts is marked failed. Exported for one-shot use in tests
// and CLI commands.
func (o *Outbox) Dispatch(ctx context.Context) error {
	now := time.Now().UTC()
	rows, err := o.db.QueryContext(ctx, `
		SELECT id, company_id, recipient_role, recipient_id, kind, payload, attempts, created_at
		FROM outbox_messages
		WHERE status = 'pending' AND next_attempt_at <= ?
		ORDER BY created_at ASC LIMIT ?`,
		now.Unix(), o.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to query pending messages: %w", err)
	}

	type pending struct {
		msg      *Message
		attempts int
	}
	batch := []pending{}
	corrupt := []string{}
	for rows.Next() {
		msg := &Message{}
		var recipientRole, recipientID, payload sql.NullString
		var attempts int
		var createdAt int64
		if err := rows.Scan(&msg.ID, &msg.CompanyID, &recipientRole, &recipientID,
			&msg.Kind, &payload, &attempts, &createdAt); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan message: %w", err)
		}
		msg.RecipientRole = recipientRole.String
		msg.RecipientID = recipientID.String
		msg.CreatedAt = time.Unix(createdAt, 0).UTC()
		if payload.Valid && payload.String != "" {
			if err := json.Unmarshal([]byte(payload.String), &msg.Payload); err != nil {
				o.logger.Warn("failing message with corrupt payload", "message_id", msg.ID)
				corrupt = append(corrupt, msg.ID)
				continue
			}
		}
		batch = append(batch, pending{msg: msg, attempts: attempts})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read pending messages: %w", err)
	}

	// A corrupt payload will never unmarshal, so retrying is pointless. Mark
	// it failed outside the rows loop; the pool has a single connection.
	for _, id := range corrupt {
		_, err := o.db.ExecContext(ctx,
			`UPDATE outbox_messages SET status = 'failed' WHERE id = ?`, id)
		if err != nil {
			o.logger.Error("failed to mark message failed", "message_id", id, "error", err)
		}
	}

	for _, p := range batch {
		if err := o.sender.Deliver(ctx, p.msg); err != nil {
			o.reschedule(ctx, p.msg.ID, p.attempts+1, err)
			continue
		}
		_, err := o.db.ExecContext(ctx,
			`UPDATE outbox_messages SET status = 'sent', sent_at = ? WHERE id = ?`,
			time.Now().UTC().Unix(), p.msg.ID)
		if err != nil {
			o.logger.Error("failed to mark message sent", "message_id", p.msg.ID, "error", err)
		}
	}
	return nil
}

// reschedule records a failed attempt: exponential backoff, or terminal
// failure once MaxAttempts is exhausted.
func (o *Outbox) reschedule(ctx context.Context, id string, attempts int, cause error) {
	if o.config.MaxAttempts > 0 && attempts >= o.config.MaxAttempts {
		o.logger.Error("message delivery failed permanently",
			"message_id", id, "attempts", attempts, "error", cause)
		_, err := o.db.ExecContext(ctx,
			`UPDATE outbox_messages SET status = 'failed', attempts = ? WHERE id = ?`, attempts, id)
		if err != nil {
			o.logger.Error("failed to mark message failed", "message_id", id, "error", err)
		}
		return
	}

	backoff := o.config.DispatchInterval
	for i := 1; i < attempts && backoff < time.Hour; i++ {
		backoff *= 2
	}
	next := time.Now().UTC().Add(backoff).Unix()
	o.logger.Warn("message delivery failed, rescheduling",
		"message_id", id, "attempts", attempts, "retry_in", backoff, "error", cause)
	_, err := o.db.ExecContext(ctx,
		`UPDATE outbox_messages SET attempts = ?, next_attempt_at = ? WHERE id = ?`, attempts, next, id)
	if err != nil {
		o.logger.Error("failed to reschedule message", "message_id", id, "error", err)
	}
}

// PendingCount returns the number of messages awaiting delivery.
func (o *Outbox) PendingCount(ctx context.Context) (int, error) {
	var n int
	err := o.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM outbox_messages WHERE status = 'pending'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending messages: %w", err)
	}
	return n, nil
}

// Close stops the dispatch loop and closes the database.
func (o *Outbox) Close() error {
	var err error
	o.closeOnce.Do(func() {
		close(o.done)
		o.wg.Wait()
		err = o.db.Close()
	})
	return err
}
