package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"media-catalog/internal/logging"
	"media-catalog/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// Database manages all persistence for the media catalog: records, review
// decisions, and the login surface (users and sessions).
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex

	// hasProcessingColumns is probed once at startup. Databases created
	// before the tracking columns existed degrade processing-status writes
	// to no-ops instead of failing every pipeline run.
	hasProcessingColumns bool
}

// New opens (or creates) the catalog database at dbPath. The parent
// directory must already exist and be writable; use startup.LoadConfig to
// validate it first.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	// WAL and busy_timeout keep concurrent pipeline writers from tripping
	// over "database is locked" errors.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	d.hasProcessingColumns = d.probeProcessingColumns(ctx)
	if !d.hasProcessingColumns {
		logging.Warn("media_records lacks processing tracking columns; status updates will be no-ops")
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("initialize_schema", start, err) }()

	schema := `
	CREATE TABLE IF NOT EXISTS media_records (
		id TEXT PRIMARY KEY,
		file_name TEXT NOT NULL,
		kind TEXT NOT NULL,
		publication_status TEXT NOT NULL DEFAULT 'pending',
		processing_status TEXT NOT NULL DEFAULT 'pending',
		processing_error TEXT NOT NULL DEFAULT '',
		owner TEXT NOT NULL,
		approver TEXT NOT NULL DEFAULT '',
		checksum TEXT NOT NULL DEFAULT '',
		width INTEGER NOT NULL DEFAULT 0,
		height INTEGER NOT NULL DEFAULT 0,
		orientation INTEGER NOT NULL DEFAULT 0,
		taken_at TEXT NOT NULL DEFAULT '',
		duration REAL NOT NULL DEFAULT 0,
		tags TEXT NOT NULL DEFAULT '[]',
		devices TEXT NOT NULL DEFAULT '[]',
		derived TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_records_checksum ON media_records(checksum);
	CREATE INDEX IF NOT EXISTS idx_records_owner ON media_records(owner);
	CREATE INDEX IF NOT EXISTS idx_records_publication ON media_records(publication_status);
	CREATE INDEX IF NOT EXISTS idx_records_processing ON media_records(processing_status);
	CREATE INDEX IF NOT EXISTS idx_records_created ON media_records(created_at);

	CREATE TABLE IF NOT EXISTS approval_decisions (
		id TEXT PRIMARY KEY,
		record_id TEXT NOT NULL,
		reviewer TEXT NOT NULL,
		decision TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		reviewed_at INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		FOREIGN KEY (record_id) REFERENCES media_records(id)
	);

	CREATE INDEX IF NOT EXISTS idx_decisions_record ON approval_decisions(record_id);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE COLLATE NOCASE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'uploader',
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		token TEXT NOT NULL UNIQUE,
		expires_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_token ON sessions(token);
	CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);
	`

	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err = d.db.ExecContext(initCtx, schema)
	return err
}

// probeProcessingColumns checks once whether the records table carries the
// processing tracking columns.
func (d *Database) probeProcessingColumns(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(probeCtx, "PRAGMA table_info(media_records)")
	if err != nil {
		logging.Warn("failed to probe media_records columns: %v", err)
		return false
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.Warn("failed to close column probe rows: %v", err)
		}
	}()

	found := map[string]bool{}
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			continue
		}
		found[name] = true
	}
	if err := rows.Err(); err != nil {
		logging.Warn("column probe iteration error: %v", err)
	}

	return found["processing_status"] && found["processing_error"]
}

// SupportsProcessingStatus reports whether processing-status writes persist.
func (d *Database) SupportsProcessingStatus() bool {
	return d.hasProcessingColumns
}

// Ping reports whether the database currently answers queries.
func (d *Database) Ping() bool {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return d.db.PingContext(ctx) == nil
}

// Close closes the underlying connection pool.
func (d *Database) Close() error {
	return d.db.Close()
}

// UpdateDBMetrics updates database connection metrics.
func (d *Database) UpdateDBMetrics() {
	stats := d.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}
