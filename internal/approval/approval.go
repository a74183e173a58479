package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"media-catalog/internal/database"
	"media-catalog/internal/logging"
	"media-catalog/internal/metrics"
)

// Propagator records review decisions and pushes their outcome onto the
// target record's publication status.
type Propagator struct {
	db  *database.Database
	now func() time.Time
}

// New creates a Propagator.
func New(db *database.Database) *Propagator {
	return &Propagator{db: db, now: time.Now}
}

// Record persists dec, stamps its review timestamp when the reviewer did
// not supply one, and propagates the outcome to the record. The decision
// survives even when propagation fails; the record may be resubmitted or
// repaired later while the review trail stays intact.
func (p *Propagator) Record(ctx context.Context, dec *database.ApprovalDecision) error {
	if err := p.db.CreateDecision(ctx, dec); err != nil {
		return fmt.Errorf("failed to record decision: %w", err)
	}

	if dec.ReviewedAt.IsZero() {
		stamped := p.now()
		if err := p.db.StampDecisionReviewedAt(ctx, dec.ID, stamped); err != nil {
			logging.Warn("failed to stamp review time on decision %s: %v", dec.ID, err)
		} else {
			dec.ReviewedAt = stamped
		}
	}

	metrics.ApprovalDecisionsTotal.WithLabelValues(dec.Decision).Inc()

	if err := p.propagate(ctx, dec); err != nil {
		metrics.ApprovalPropagationFailures.Inc()
		logging.Error("Decision %s recorded but not propagated to record %s: %v",
			dec.ID, dec.RecordID, err)
		return nil
	}

	logging.Info("Decision %s (%s) applied to record %s by %s",
		dec.ID, dec.Decision, dec.RecordID, dec.Reviewer)
	return nil
}

func (p *Propagator) propagate(ctx context.Context, dec *database.ApprovalDecision) error {
	var status database.PublicationStatus
	switch dec.Decision {
	case database.DecisionApproved:
		status = database.PublicationPublished
	case database.DecisionRejected:
		status = database.PublicationRejected
	default:
		return fmt.Errorf("unknown decision outcome %q", dec.Decision)
	}

	err := p.db.SetPublication(ctx, dec.RecordID, status, dec.Reviewer)
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("record %s no longer exists", dec.RecordID)
	}
	return err
}
