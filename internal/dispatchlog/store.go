package dispatchlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hypermarketllc/hookline/internal/database"
	"github.com/hypermarketllc/hookline/internal/metrics"
)

// ErrNotFound is returned when a log entry does not exist.
var ErrNotFound = errors.New("log entry not found")

// Store is the append-only execution log backed by the webhook_logs table.
// MaxEntries bounds the table; oldest rows beyond the cap are pruned after
// each append, optionally handed to an Archiver first.
type Store struct {
	db         *database.DB
	maxEntries int
	archiver   Archiver
}

// NewStore creates a new execution log store. maxEntries of zero disables
// pruning.
func NewStore(db *database.DB, maxEntries int) *Store {
	return &Store{db: db, maxEntries: maxEntries}
}

// SetArchiver installs an archiver for pruned entries.
func (s *Store) SetArchiver(a Archiver) {
	s.archiver = a
}

// Append inserts an entry and enforces the retention cap.
func (s *Store) Append(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	reqHeaders, err := json.Marshal(entry.RequestHeaders)
	if err != nil {
		return fmt.Errorf("marshaling request headers: %w", err)
	}
	respHeaders, err := json.Marshal(entry.ResponseHeaders)
	if err != nil {
		return fmt.Errorf("marshaling response headers: %w", err)
	}

	query := `
		INSERT INTO webhook_logs (
			id, webhook_id, webhook_name, timestamp,
			request_url, request_method, request_headers, request_body,
			response_status, response_headers, response_body,
			duration_ms, success, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		entry.ID,
		entry.WebhookID,
		entry.WebhookName,
		entry.Timestamp.UTC().Format(database.TimeSortable),
		entry.RequestURL,
		entry.RequestMethod,
		string(reqHeaders),
		entry.RequestBody,
		entry.ResponseStatus,
		string(respHeaders),
		entry.ResponseBody,
		entry.DurationMs,
		boolToInt(entry.Success),
		entry.Error,
	)
	if err != nil {
		return fmt.Errorf("inserting log entry: %w", err)
	}

	if s.maxEntries > 0 {
		if pruneErr := s.prune(ctx); pruneErr != nil {
			log.Warn().Err(pruneErr).Msg("Failed to prune execution log")
		}
	}

	return nil
}

// Get retrieves a single entry by ID.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	query := selectColumns + ` WHERE id = ?`

	entry, err := scanEntry(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("querying log entry: %w", err)
	}

	return entry, nil
}

// Query lists entries newest-first, filtered per opts.
func (s *Store) Query(ctx context.Context, opts QueryOptions) ([]*Entry, error) {
	query := selectColumns + ` WHERE 1=1`
	args := []any{}

	if opts.WebhookID != "" {
		query += " AND webhook_id = ?"
		args = append(args, opts.WebhookID)
	}

	if opts.Search != "" {
		pattern := "%" + escapeLike(opts.Search) + "%"
		query += ` AND (
			LOWER(webhook_name) LIKE LOWER(?) ESCAPE '\'
			OR LOWER(request_url) LIKE LOWER(?) ESCAPE '\'
			OR CAST(response_status AS TEXT) LIKE ? ESCAPE '\'
			OR LOWER(error) LIKE LOWER(?) ESCAPE '\'
		)`
		args = append(args, pattern, pattern, pattern, pattern)
	}

	query += " ORDER BY timestamp DESC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying log entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning log entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating log entries: %w", err)
	}

	return entries, nil
}

// Count returns the total number of entries, optionally for one webhook.
func (s *Store) Count(ctx context.Context, webhookID string) (int, error) {
	query := `SELECT COUNT(*) FROM webhook_logs`
	args := []any{}
	if webhookID != "" {
		query += ` WHERE webhook_id = ?`
		args = append(args, webhookID)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting log entries: %w", err)
	}
	return count, nil
}

// Latest returns the newest entry for a webhook, or ErrNotFound.
func (s *Store) Latest(ctx context.Context, webhookID string) (*Entry, error) {
	query := selectColumns + ` WHERE webhook_id = ? ORDER BY timestamp DESC LIMIT 1`

	entry, err := scanEntry(s.db.QueryRowContext(ctx, query, webhookID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: webhook %s", ErrNotFound, webhookID)
		}
		return nil, fmt.Errorf("querying latest log entry: %w", err)
	}

	return entry, nil
}

// prune removes rows beyond the retention cap, oldest first. Pruned rows
// are offered to the archiver before deletion; archive failure aborts the
// prune so no entry is lost.
func (s *Store) prune(ctx context.Context) error {
	query := selectColumns + `
		WHERE id NOT IN (
			SELECT id FROM webhook_logs ORDER BY timestamp DESC LIMIT ?
		)
		ORDER BY timestamp ASC
	`

	rows, err := s.db.QueryContext(ctx, query, s.maxEntries)
	if err != nil {
		return fmt.Errorf("querying prunable entries: %w", err)
	}
	defer rows.Close()

	var pruned []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return fmt.Errorf("scanning prunable entry: %w", err)
		}
		pruned = append(pruned, entry)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating prunable entries: %w", err)
	}

	if len(pruned) == 0 {
		return nil
	}

	if s.archiver != nil {
		if err := s.archiver.Archive(ctx, pruned); err != nil {
			return fmt.Errorf("archiving pruned entries: %w", err)
		}
	}

	ids := make([]any, len(pruned))
	placeholders := ""
	for i, e := range pruned {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		ids[i] = e.ID
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM webhook_logs WHERE id IN (`+placeholders+`)`, ids...); err != nil {
		return fmt.Errorf("deleting pruned entries: %w", err)
	}

	metrics.RecordPrunedEntries(len(pruned))
	log.Debug().Int("count", len(pruned)).Msg("Pruned execution log entries")
	return nil
}

const selectColumns = `
	SELECT id, webhook_id, webhook_name, timestamp,
	       request_url, request_method, request_headers, request_body,
	       response_status, response_headers, response_body,
	       duration_ms, success, error
	FROM webhook_logs
`

type scannable interface {
	Scan(dest ...any) error
}

func scanEntry(row scannable) (*Entry, error) {
	var entry Entry
	var timestamp string
	var reqHeaders, respHeaders string
	var success int

	err := row.Scan(
		&entry.ID,
		&entry.WebhookID,
		&entry.WebhookName,
		&timestamp,
		&entry.RequestURL,
		&entry.RequestMethod,
		&reqHeaders,
		&entry.RequestBody,
		&entry.ResponseStatus,
		&respHeaders,
		&entry.ResponseBody,
		&entry.DurationMs,
		&success,
		&entry.Error,
	)
	if err != nil {
		return nil, err
	}

	t, err := time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return nil, fmt.Errorf("parsing timestamp: %w", err)
	}
	entry.Timestamp = t
	entry.Success = success == 1

	if err := json.Unmarshal([]byte(reqHeaders), &entry.RequestHeaders); err != nil {
		return nil, fmt.Errorf("unmarshaling request headers: %w", err)
	}
	if err := json.Unmarshal([]byte(respHeaders), &entry.ResponseHeaders); err != nil {
		return nil, fmt.Errorf("unmarshaling response headers: %w", err)
	}

	return &entry, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '%' || c == '_' || c == '\\' {
			out = append(out, '\\')
		}
		out = append(out, c)
	}
	return string(out)
}
