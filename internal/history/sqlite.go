package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// SQLiteRepository implements Repository using the event_history table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// RecordEvent inserts a new history entry.
func (r *SQLiteRepository) RecordEvent(ctx context.Context, entry Entry) error {
	if entry.DeviceUID == "" {
		return fmt.Errorf("device uid is required")
	}
	if entry.Outcome == "" {
		return fmt.Errorf("outcome is required")
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_history
		 (device_uid, zone_uid, category, event_type, subtype, summary, outcome)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.DeviceUID,
		nullable(entry.ZoneUID),
		entry.Category,
		entry.Type,
		entry.Subtype,
		entry.Summary,
		entry.Outcome,
	)
	if err != nil {
		return fmt.Errorf("inserting event history: %w", err)
	}

	return nil
}

// GetHistory returns recent entries for a device, newest first.
// The limit defaults to 50 and is clamped to 200.
func (r *SQLiteRepository) GetHistory(ctx context.Context, deviceUID string, limit int) ([]Entry, error) {
	if deviceUID == "" {
		return nil, fmt.Errorf("device uid is required")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_uid, zone_uid, category, event_type, subtype, summary, outcome, created_at
		 FROM event_history
		 WHERE device_uid = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		deviceUID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying event history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var entry Entry
		var zoneUID sql.NullString
		var createdAt string

		if err := rows.Scan(&entry.ID, &entry.DeviceUID, &zoneUID,
			&entry.Category, &entry.Type, &entry.Subtype,
			&entry.Summary, &entry.Outcome, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning event history: %w", err)
		}

		entry.ZoneUID = zoneUID.String

		timestamp, err := parseHistoryTimestamp(createdAt)
		if err != nil {
			return nil, err
		}
		entry.CreatedAt = timestamp

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating event history: %w", err)
	}

	return entries, nil
}

// PruneHistory deletes entries older than the given duration and returns
// the number of rows removed.
func (r *SQLiteRepository) PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM event_history WHERE created_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting event history: %w", err)
	}

	return result.RowsAffected()
}

// nullable maps an empty string to SQL NULL.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// parseHistoryTimestamp handles the timestamp formats SQLite produces.
func parseHistoryTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{
		"2006-01-02T15:04:05.999Z",
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
	} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing history timestamp %q", s)
}
