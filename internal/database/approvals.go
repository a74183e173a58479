package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"media-catalog/internal/logging"
)

const decisionColumns = "id, record_id, reviewer, decision, notes, reviewed_at, created_at"

// CreateDecision inserts a new review decision. Decisions are immutable
// afterward except for the review timestamp fill-in.
func (d *Database) CreateDecision(ctx context.Context, dec *ApprovalDecision) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_decision", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	if dec.ID == "" {
		dec.ID = uuid.NewString()
	}
	if dec.Decision != DecisionApproved && dec.Decision != DecisionRejected {
		err = fmt.Errorf("invalid decision %q", dec.Decision)
		return err
	}

	dec.CreatedAt = time.Now()

	qCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var reviewedAt int64
	if !dec.ReviewedAt.IsZero() {
		reviewedAt = dec.ReviewedAt.Unix()
	}

	_, err = d.db.ExecContext(qCtx, `
		INSERT INTO approval_decisions (id, record_id, reviewer, decision, notes, reviewed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		dec.ID, dec.RecordID, dec.Reviewer, dec.Decision, dec.Notes,
		reviewedAt, dec.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create decision: %w", err)
	}
	return nil
}

// GetDecision fetches one decision by id.
func (d *Database) GetDecision(ctx context.Context, id string) (*ApprovalDecision, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_decision", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	qCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(qCtx,
		"SELECT "+decisionColumns+" FROM approval_decisions WHERE id = ?", id)

	dec, err := scanDecision(row)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
		return nil, ErrNotFound
	}
	return dec, err
}

// ListDecisionsForRecord returns all decisions against a record, oldest first.
func (d *Database) ListDecisionsForRecord(ctx context.Context, recordID string) ([]ApprovalDecision, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	qCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(qCtx,
		"SELECT "+decisionColumns+" FROM approval_decisions WHERE record_id = ? ORDER BY created_at ASC",
		recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.Warn("failed to close decision rows: %v", err)
		}
	}()

	var decisions []ApprovalDecision
	for rows.Next() {
		dec, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, *dec)
	}
	return decisions, rows.Err()
}

// StampDecisionReviewedAt fills in the review timestamp. The only mutation
// a decision permits after creation.
func (d *Database) StampDecisionReviewedAt(ctx context.Context, id string, reviewedAt time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	qCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(qCtx,
		"UPDATE approval_decisions SET reviewed_at = ? WHERE id = ?",
		reviewedAt.Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to stamp decision %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanDecision(s scanner) (*ApprovalDecision, error) {
	var dec ApprovalDecision
	var reviewedAt, createdAt int64

	err := s.Scan(&dec.ID, &dec.RecordID, &dec.Reviewer, &dec.Decision,
		&dec.Notes, &reviewedAt, &createdAt)
	if err != nil {
		return nil, err
	}

	if reviewedAt > 0 {
		dec.ReviewedAt = time.Unix(reviewedAt, 0)
	}
	dec.CreatedAt = time.Unix(createdAt, 0)
	return &dec, nil
}
