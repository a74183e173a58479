package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"media-catalog/internal/logging"
	"media-catalog/internal/mediatypes"
)

// ErrNotFound is returned when a record or decision id does not exist.
var ErrNotFound = errors.New("not found")

const recordColumns = `id, file_name, kind, publication_status, processing_status,
	processing_error, owner, approver, checksum, width, height, orientation,
	taken_at, duration, tags, devices, derived, created_at, updated_at`

// CreateRecord inserts a new record. A missing ID is filled in with a new
// UUID; status fields default to pending when unset.
func (d *Database) CreateRecord(ctx context.Context, rec *MediaRecord) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_record", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Publication == "" {
		rec.Publication = PublicationPending
	}
	if rec.Processing == "" {
		rec.Processing = ProcessingPending
	}

	tags, err := marshalStrings(rec.Tags)
	if err != nil {
		return err
	}
	devices, err := marshalStrings(rec.Devices)
	if err != nil {
		return err
	}
	derived, err := marshalDerived(rec.Derived)
	if err != nil {
		return err
	}

	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	qCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(qCtx, `
		INSERT INTO media_records (
			id, file_name, kind, publication_status, processing_status,
			processing_error, owner, approver, checksum, width, height,
			orientation, taken_at, duration, tags, devices, derived,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.FileName, string(rec.Kind), string(rec.Publication),
		string(rec.Processing), rec.ProcessingError, rec.Owner, rec.Approver,
		rec.Checksum, rec.Width, rec.Height, rec.Orientation, rec.TakenAt,
		rec.Duration, tags, devices, derived, now.Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create record: %w", err)
	}
	return nil
}

// GetRecord fetches one record by id.
func (d *Database) GetRecord(ctx context.Context, id string) (*MediaRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_record", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	qCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(qCtx,
		"SELECT "+recordColumns+" FROM media_records WHERE id = ?", id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
		return nil, ErrNotFound
	}
	return rec, err
}

// FindFirstByChecksum returns the oldest record with the given checksum,
// excluding excludeID. Used for advisory duplicate detection.
func (d *Database) FindFirstByChecksum(ctx context.Context, checksum, excludeID string) (*MediaRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("find_by_checksum", start, err) }()

	if checksum == "" {
		return nil, ErrNotFound
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	qCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(qCtx,
		"SELECT "+recordColumns+` FROM media_records
		 WHERE checksum = ? AND id != ?
		 ORDER BY created_at ASC LIMIT 1`,
		checksum, excludeID)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
		return nil, ErrNotFound
	}
	return rec, err
}

// ListRecords returns a filtered, paginated record listing.
func (d *Database) ListRecords(ctx context.Context, filter RecordFilter) (*RecordListing, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_records", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	where := []string{"1=1"}
	args := []interface{}{}

	if filter.Query != "" {
		where = append(where, `file_name LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(filter.Query)+"%")
	}
	if filter.Tag != "" {
		// Tags are stored as a JSON array of strings; containment reduces to
		// a quoted-element substring match.
		where = append(where, `tags LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(jsonElement(filter.Tag))+"%")
	}
	if filter.Device != "" {
		where = append(where, `devices LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(jsonElement(filter.Device))+"%")
	}
	if filter.Owner != "" {
		where = append(where, "owner = ?")
		args = append(args, filter.Owner)
	}
	if filter.Publication != "" {
		where = append(where, "publication_status = ?")
		args = append(args, string(filter.Publication))
	}
	if filter.Processing != "" {
		where = append(where, "processing_status = ?")
		args = append(args, string(filter.Processing))
	}

	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 || pageSize > 500 {
		pageSize = 50
	}

	qCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var total int
	err = d.db.QueryRowContext(qCtx,
		"SELECT COUNT(*) FROM media_records WHERE "+whereClause, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}

	listArgs := append(args, pageSize, (page-1)*pageSize)
	rows, err := d.db.QueryContext(qCtx,
		"SELECT "+recordColumns+" FROM media_records WHERE "+whereClause+
			" ORDER BY created_at DESC LIMIT ? OFFSET ?", listArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.Warn("failed to close record rows: %v", err)
		}
	}()

	items := []MediaRecord{}
	for rows.Next() {
		rec, scanErr := scanRecord(rows)
		if scanErr != nil {
			err = scanErr
			return nil, scanErr
		}
		items = append(items, *rec)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return &RecordListing{
		Items:      items,
		TotalItems: total,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// SetChecksum stores the content fingerprint on a record.
func (d *Database) SetChecksum(ctx context.Context, id, checksum string) error {
	return d.updateRecord(ctx, id, "checksum = ?", checksum)
}

// SetMetadata stores extracted capture metadata. Zero-valued fields are
// written as-is; absence is represented by the zero value throughout.
func (d *Database) SetMetadata(ctx context.Context, id string, width, height, orientation int, takenAt string, duration float64) error {
	return d.updateRecord(ctx, id,
		"width = ?, height = ?, orientation = ?, taken_at = ?, duration = ?",
		width, height, orientation, takenAt, duration)
}

// SetDerived stores the derived-asset URL map.
func (d *Database) SetDerived(ctx context.Context, id string, derived map[string]string) error {
	blob, err := marshalDerived(derived)
	if err != nil {
		return err
	}
	return d.updateRecord(ctx, id, "derived = ?", blob)
}

// SetProcessingStatus updates the processing-status axis. A no-op when the
// schema lacks the tracking columns.
func (d *Database) SetProcessingStatus(ctx context.Context, id string, status ProcessingStatus) error {
	if !d.hasProcessingColumns {
		logging.Debug("processing status update skipped for %s (no tracking columns)", id)
		return nil
	}
	return d.updateRecord(ctx, id, "processing_status = ?, processing_error = ''", string(status))
}

// SetProcessingFailure marks a record failed with a human-readable message.
// A no-op when the schema lacks the tracking columns.
func (d *Database) SetProcessingFailure(ctx context.Context, id, message string) error {
	if !d.hasProcessingColumns {
		logging.Debug("processing failure update skipped for %s (no tracking columns)", id)
		return nil
	}
	return d.updateRecord(ctx, id, "processing_status = ?, processing_error = ?",
		string(ProcessingFailed), message)
}

// SetPublication updates the publication-status axis and the approver.
func (d *Database) SetPublication(ctx context.Context, id string, status PublicationStatus, approver string) error {
	return d.updateRecord(ctx, id, "publication_status = ?, approver = ?",
		string(status), approver)
}

// updateRecord applies a SET clause to one record and bumps updated_at.
func (d *Database) updateRecord(ctx context.Context, id, setClause string, args ...interface{}) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("update_record", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	qCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	args = append(args, time.Now().Unix(), id)
	res, err := d.db.ExecContext(qCtx,
		"UPDATE media_records SET "+setClause+", updated_at = ? WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("failed to update record %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		err = ErrNotFound
		return ErrNotFound
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanRecord.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (*MediaRecord, error) {
	var rec MediaRecord
	var kind, publication, processing string
	var tags, devices, derived string
	var createdAt, updatedAt int64

	err := s.Scan(
		&rec.ID, &rec.FileName, &kind, &publication, &processing,
		&rec.ProcessingError, &rec.Owner, &rec.Approver, &rec.Checksum,
		&rec.Width, &rec.Height, &rec.Orientation, &rec.TakenAt,
		&rec.Duration, &tags, &devices, &derived, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Kind = kindFromString(kind)
	rec.Publication = PublicationStatus(publication)
	rec.Processing = ProcessingStatus(processing)
	rec.CreatedAt = time.Unix(createdAt, 0)
	rec.UpdatedAt = time.Unix(updatedAt, 0)

	if err := json.Unmarshal([]byte(tags), &rec.Tags); err != nil {
		logging.Warn("record %s has malformed tags: %v", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(devices), &rec.Devices); err != nil {
		logging.Warn("record %s has malformed devices: %v", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(derived), &rec.Derived); err != nil {
		logging.Warn("record %s has malformed derived map: %v", rec.ID, err)
	}

	return &rec, nil
}

func marshalStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	blob, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to marshal string array: %w", err)
	}
	return string(blob), nil
}

func marshalDerived(derived map[string]string) (string, error) {
	if derived == nil {
		derived = map[string]string{}
	}
	blob, err := json.Marshal(derived)
	if err != nil {
		return "", fmt.Errorf("failed to marshal derived map: %w", err)
	}
	return string(blob), nil
}

// kindFromString maps a stored kind back onto the mediatypes enum.
func kindFromString(s string) mediatypes.Kind {
	switch s {
	case string(mediatypes.KindImage):
		return mediatypes.KindImage
	case string(mediatypes.KindVideo):
		return mediatypes.KindVideo
	default:
		return mediatypes.KindOther
	}
}

// jsonElement renders a string the way json.Marshal renders an array
// element, so a LIKE match finds exact containment.
func jsonElement(s string) string {
	blob, err := json.Marshal(s)
	if err != nil {
		return `"` + s + `"`
	}
	return string(blob)
}

// escapeLike escapes LIKE wildcards in user-supplied substrings.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}
