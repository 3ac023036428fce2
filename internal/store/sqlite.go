package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/crashfeed/relay/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// deliveryRow is the sqlx row mapping for the deliveries table.
type deliveryRow struct {
	ID           string    `db:"id"`
	HookID       string    `db:"hook_id"`
	HookType     string    `db:"hook_type"`
	Event        string    `db:"event"`
	PayloadTitle string    `db:"payload_title"`
	OK           bool      `db:"ok"`
	Resource     string    `db:"resource"`
	Error        string    `db:"error"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r deliveryRow) toModel() model.Delivery {
	return model.Delivery{
		ID:           r.ID,
		HookID:       r.HookID,
		HookType:     model.HookType(r.HookType),
		Event:        r.Event,
		PayloadTitle: r.PayloadTitle,
		OK:           r.OK,
		Resource:     r.Resource,
		Error:        r.Error,
		CreatedAt:    r.CreatedAt,
	}
}

// CreateDelivery appends one delivery record. A missing ID or
// timestamp is filled in.
func (s *SQLiteStore) CreateDelivery(ctx context.Context, d model.Delivery) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}

	const query = `
		INSERT INTO deliveries (
			id, hook_id, hook_type, event,
			payload_title, ok, resource, error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		d.ID, d.HookID, string(d.HookType), d.Event,
		d.PayloadTitle, d.OK, d.Resource, d.Error, d.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting delivery %s: %w", d.ID, err)
	}
	return nil
}

// GetDeliveries retrieves deliveries matching the filter, newest first.
func (s *SQLiteStore) GetDeliveries(ctx context.Context, filter DeliveryFilter) ([]model.Delivery, error) {
	var conditions []string
	var args []interface{}

	if filter.HookID != nil {
		conditions = append(conditions, "hook_id = ?")
		args = append(args, *filter.HookID)
	}
	if filter.HookType != nil {
		conditions = append(conditions, "hook_type = ?")
		args = append(args, *filter.HookType)
	}
	if filter.Event != nil {
		conditions = append(conditions, "event = ?")
		args = append(args, *filter.Event)
	}
	if filter.OK != nil {
		conditions = append(conditions, "ok = ?")
		args = append(args, *filter.OK)
	}

	query := "SELECT * FROM deliveries"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " LIMIT ?"
	args = append(args, limit)

	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	var rows []deliveryRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying deliveries: %w", err)
	}

	deliveries := make([]model.Delivery, 0, len(rows))
	for _, r := range rows {
		deliveries = append(deliveries, r.toModel())
	}
	return deliveries, nil
}

// GetDeliveryByID retrieves a single delivery record, or nil when no
// record exists.
func (s *SQLiteStore) GetDeliveryByID(ctx context.Context, id string) (*model.Delivery, error) {
	var row deliveryRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM deliveries WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying delivery %s: %w", id, err)
	}

	d := row.toModel()
	return &d, nil
}

// LatestResource returns the resource JSON of the most recent
// successful impact-change delivery for a hook.
func (s *SQLiteStore) LatestResource(ctx context.Context, hookID string) (string, error) {
	const query = `
		SELECT resource FROM deliveries
		WHERE hook_id = ? AND ok = 1 AND event = ? AND resource != ''
		ORDER BY created_at DESC LIMIT 1`

	var resource string
	err := s.db.GetContext(ctx, &resource, query, hookID, model.EventIssueImpact)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("querying latest resource for hook %s: %w", hookID, err)
	}
	return resource, nil
}
