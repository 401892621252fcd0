package sla

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"mercator-hq/themis/pkg/compliance"
	"mercator-hq/themis/pkg/compliance/storage"
	"mercator-hq/themis/pkg/notify"
	"mercator-hq/themis/pkg/telemetry/metrics"
)

// SweepStats summarizes one sweep pass.
type SweepStats struct {
	Scanned    int // Open requests examined
	Breached   int // Requests transitioned pending -> breached
	Escalated  int // Escalation notifications sent
	Reminded   int // Reminder notifications sent
	Races      int // Escalation advances lost to a concurrent worker
	Errors     int // Requests skipped on processing error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Sweeper periodically walks all open acknowledgment requests, transitions
// overdue ones to breached, and drives the escalation ladder.
//
// Escalation is monotonic and exactly-once per level: before notifying a
// level, the sweeper compare-and-swaps the request's escalation level in the
// store. Losing that swap means another worker already owns the level, so
// this sweeper stays silent. A request whose breach predates several rungs
// is walked level by level in one pass, never skipping a rung.
//
// A failure on one request never aborts the sweep. The error is logged and
// counted; the next request proceeds.
type Sweeper struct {
	store    storage.Store
	matrices MatrixProvider
	notifier notify.Notifier
	metrics  *metrics.SLAMetrics
	logger   *slog.Logger

	batchSize    int
	reminderLead time.Duration

	now func() time.Time // Overridable in tests
}

// SweeperOptions configures a Sweeper.
type SweeperOptions struct {
	// BatchSize is the page size for scanning open requests. Default 500.
	BatchSize int

	// ReminderLead sends one reminder this long before a pending request's
	// due date. Zero disables reminders.
	ReminderLead time.Duration
}

// NewSweeper creates a sweeper. metrics may be nil, which disables
// recording.
func NewSweeper(store storage.Store, matrices MatrixProvider, notifier notify.Notifier, sm *metrics.SLAMetrics, opts SweeperOptions) *Sweeper {
	batch := opts.BatchSize
	if batch <= 0 {
		batch = 500
	}
	return &Sweeper{
		store:        store,
		matrices:     matrices,
		notifier:     notifier,
		metrics:      sm,
		logger:       slog.Default().With("component", "sla.sweeper"),
		batchSize:    batch,
		reminderLead: opts.ReminderLead,
		now:          time.Now,
	}
}

// Sweep runs one full pass over all open requests.
func (s *Sweeper) Sweep(ctx context.Context) (*SweepStats, error) {
	stats := &SweepStats{StartedAt: s.now().UTC()}
	campaigns := map[string]*compliance.AcknowledgmentCampaign{}

	for offset := 0; ; offset += s.batchSize {
		requests, err := s.store.ListOpenRequests(ctx, s.batchSize, offset)
		if err != nil {
			return stats, err
		}
		if len(requests) == 0 {
			break
		}

		for _, req := range requests {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			stats.Scanned++
			if err := s.processRequest(ctx, req, campaigns, stats); err != nil {
				stats.Errors++
				if s.metrics != nil {
					s.metrics.RecordSweepError()
				}
				s.logger.Error("failed to process request during sweep",
					"request_id", req.ID,
					"error", err)
			}
		}

		if len(requests) < s.batchSize {
			break
		}
	}

	stats.FinishedAt = s.now().UTC()
	if s.metrics != nil {
		s.metrics.RecordSweep(stats.FinishedAt.Sub(stats.StartedAt))
	}
	s.logger.Info("sweep completed",
		"scanned", stats.Scanned,
		"breached", stats.Breached,
		"escalated", stats.Escalated,
		"reminded", stats.Reminded,
		"errors", stats.Errors)
	return stats, nil
}

func (s *Sweeper) processRequest(ctx context.Context, req *compliance.AcknowledgmentRequest, campaigns map[string]*compliance.AcknowledgmentCampaign, stats *SweepStats) error {
	now := s.now().UTC()

	if req.Status == compliance.RequestStatusPending {
		if now.After(req.DueDate) {
			if err := s.store.MarkBreached(ctx, req.ID, now); err != nil {
				// The employee may have acknowledged between the scan and
				// the breach attempt. That race is benign.
				var ise *compliance.InvalidStateError
				if errors.As(err, &ise) {
					return nil
				}
				return err
			}
			stats.Breached++
			if s.metrics != nil {
				s.metrics.RecordBreach()
			}
			req.Status = compliance.RequestStatusBreached
			req.BreachedAt = &now
		} else {
			return s.maybeRemind(ctx, req, now, stats)
		}
	}

	if req.Status != compliance.RequestStatusBreached {
		return nil
	}
	return s.escalate(ctx, req, campaigns, now, stats)
}

// maybeRemind sends at most one reminder per request, inside the configured
// lead window before the due date.
func (s *Sweeper) maybeRemind(ctx context.Context, req *compliance.AcknowledgmentRequest, now time.Time, stats *SweepStats) error {
	if s.reminderLead <= 0 || req.ReminderCount > 0 {
		return nil
	}
	if req.DueDate.Sub(now) > s.reminderLead {
		return nil
	}

	if err := s.store.BumpReminder(ctx, req.ID); err != nil {
		return err
	}
	msg := &notify.Message{
		ID:          compliance.NewID(),
		CompanyID:   req.CompanyID,
		RecipientID: req.EmployeeID,
		Kind:        notify.KindReminder,
		Payload: map[string]string{
			"request_id": req.ID,
			"version_id": req.VersionID,
			"due_date":   req.DueDate.Format(time.RFC3339),
		},
		CreatedAt: now,
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to enqueue reminder for request %s: %w", req.ID, err)
	}
	stats.Reminded++
	if s.metrics != nil {
		s.metrics.RecordReminder()
	}
	return nil
}

// escalate walks the request up the escalation ladder to the level its
// breach age has earned, one rung at a time, notifying each newly claimed
// level's role.
func (s *Sweeper) escalate(ctx context.Context, req *compliance.AcknowledgmentRequest, campaigns map[string]*compliance.AcknowledgmentCampaign, now time.Time, stats *SweepStats) error {
	c, ok := campaigns[req.CampaignID]
	if !ok {
		var err error
		c, err = s.store.GetCampaign(ctx, req.CampaignID)
		if err != nil {
			return err
		}
		campaigns[req.CampaignID] = c
	}

	matrix, err := s.matrices.MatrixFor(ctx, req.CompanyID, c.Type)
	if err != nil {
		return err
	}
	if len(matrix) == 0 {
		return nil
	}

	breachedAt := req.DueDate
	if req.BreachedAt != nil {
		breachedAt = *req.BreachedAt
	}
	target := LevelFor(matrix, now.Sub(breachedAt))

	for level := req.EscalationLevel + 1; level <= target; level++ {
		step := StepForLevel(matrix, level)
		if step == nil {
			break
		}

		applied, err := s.store.AdvanceEscalation(ctx, req.ID, level-1, level)
		if err != nil {
			return err
		}
		if !applied {
			// Another worker claimed this level, or the request was
			// acknowledged. Either way this sweeper must not notify.
			stats.Races++
			return nil
		}

		msg := &notify.Message{
			ID:            compliance.NewID(),
			CompanyID:     req.CompanyID,
			RecipientRole: step.EscalateToRole,
			Kind:          notify.KindEscalation,
			Payload: map[string]string{
				"request_id":  req.ID,
				"employee_id": req.EmployeeID,
				"version_id":  req.VersionID,
				"level":       strconv.Itoa(level),
				"breached_at": breachedAt.Format(time.RFC3339),
			},
			CreatedAt: now,
		}
		if err := s.notifier.Send(ctx, msg); err != nil {
			// The level advance is already committed, so a redelivery
			// attempt must come from the transport, not from re-running
			// the ladder.
			s.logger.Error("failed to enqueue escalation notification",
				"request_id", req.ID,
				"level", level,
				"error", err)
		}
		stats.Escalated++
		if s.metrics != nil {
			s.metrics.RecordEscalation(level)
		}
		s.logger.Info("request escalated",
			"request_id", req.ID,
			"employee_id", req.EmployeeID,
			"level", level,
			"escalate_to_role", step.EscalateToRole)
	}
	return nil
}
