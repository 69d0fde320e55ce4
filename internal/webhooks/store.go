package webhooks

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hypermarketllc/hookline/internal/database"
)

// ErrNotFound is returned when a definition does not exist.
var ErrNotFound = errors.New("webhook not found")

// Store handles database operations for webhook definitions.
type Store struct {
	db *database.DB
}

// NewStore creates a new webhook store.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new webhook definition.
func (s *Store) Create(ctx context.Context, def *Definition) error {
	if def.ID == "" {
		def.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if def.CreatedAt.IsZero() {
		def.CreatedAt = now
	}
	def.UpdatedAt = now

	headers, params, tags, body, schedule, err := marshalDefinitionFields(def)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO webhooks (
			id, name, description, url, method, headers, params, body,
			enabled, tags, schedule, last_executed_at, last_execution_status,
			created_at, updated_at, user_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, NULL, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		def.ID,
		def.Name,
		def.Description,
		def.URL,
		def.Method,
		headers,
		params,
		body,
		boolToInt(def.Enabled),
		tags,
		schedule,
		def.CreatedAt.Format(time.RFC3339),
		def.UpdatedAt.Format(time.RFC3339),
		def.UserID,
	)
	if err != nil {
		return fmt.Errorf("inserting webhook: %w", err)
	}

	return nil
}

// Update replaces an existing definition (full-object replace semantics).
// The denormalized execution-status columns are not touched here; only the
// dispatcher writes them.
func (s *Store) Update(ctx context.Context, def *Definition) error {
	def.UpdatedAt = time.Now().UTC()

	headers, params, tags, body, schedule, err := marshalDefinitionFields(def)
	if err != nil {
		return err
	}

	query := `
		UPDATE webhooks
		SET name = ?, description = ?, url = ?, method = ?, headers = ?,
		    params = ?, body = ?, enabled = ?, tags = ?, schedule = ?,
		    updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		def.Name,
		def.Description,
		def.URL,
		def.Method,
		headers,
		params,
		body,
		boolToInt(def.Enabled),
		tags,
		schedule,
		def.UpdatedAt.Format(time.RFC3339),
		def.ID,
	)
	if err != nil {
		return fmt.Errorf("updating webhook: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, def.ID)
	}

	return nil
}

// Delete removes a definition. Associated log entries cascade via the
// webhook_logs foreign key.
func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM webhooks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting webhook: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return nil
}

// Get retrieves a definition by ID.
func (s *Store) Get(ctx context.Context, id string) (*Definition, error) {
	row := s.db.QueryRowContext(ctx, selectDefinition+` WHERE id = ?`, id)

	def, err := scanDefinition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("getting webhook: %w", err)
	}

	return def, nil
}

// List retrieves all definitions, oldest first.
func (s *Store) List(ctx context.Context) ([]*Definition, error) {
	rows, err := s.db.QueryContext(ctx, selectDefinition+` ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying webhooks: %w", err)
	}
	defer rows.Close()

	var defs []*Definition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning webhook row: %w", err)
		}
		defs = append(defs, def)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating webhook rows: %w", err)
	}

	return defs, nil
}

// ListScheduled retrieves enabled definitions with a non-manual schedule.
func (s *Store) ListScheduled(ctx context.Context) ([]*Definition, error) {
	defs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	var scheduled []*Definition
	for _, def := range defs {
		if def.Enabled && def.Schedule != nil && def.Schedule.Type != ScheduleManual {
			scheduled = append(scheduled, def)
		}
	}
	return scheduled, nil
}

// RecordExecution updates the denormalized execution-status cache. The write
// is ordered by dispatch start time: a dispatch only overwrites the cache if
// no strictly-later-started dispatch already has. Both columns change in one
// statement, keeping the pair atomic.
func (s *Store) RecordExecution(ctx context.Context, id string, startedAt time.Time, status ExecutionStatus) error {
	ts := startedAt.UTC().Format(database.TimeSortable)

	query := `
		UPDATE webhooks
		SET last_executed_at = ?, last_execution_status = ?
		WHERE id = ?
		  AND (last_executed_at IS NULL OR last_executed_at <= ?)
	`

	if _, err := s.db.ExecContext(ctx, query, ts, string(status), id, ts); err != nil {
		return fmt.Errorf("recording execution status: %w", err)
	}

	return nil
}

const selectDefinition = `
	SELECT id, name, description, url, method, headers, params, body,
	       enabled, tags, schedule, last_executed_at, last_execution_status,
	       created_at, updated_at, user_id
	FROM webhooks
`

type scannable interface {
	Scan(dest ...any) error
}

func scanDefinition(row scannable) (*Definition, error) {
	var def Definition
	var headers, params, tags string
	var body, schedule, lastExecutedAt, lastStatus, userID sql.NullString
	var enabled int
	var createdAt, updatedAt string

	err := row.Scan(
		&def.ID,
		&def.Name,
		&def.Description,
		&def.URL,
		&def.Method,
		&headers,
		&params,
		&body,
		&enabled,
		&tags,
		&schedule,
		&lastExecutedAt,
		&lastStatus,
		&createdAt,
		&updatedAt,
		&userID,
	)
	if err != nil {
		return nil, err
	}

	def.Enabled = enabled == 1
	def.UserID = userID.String

	if err := json.Unmarshal([]byte(headers), &def.Headers); err != nil {
		return nil, fmt.Errorf("unmarshaling headers: %w", err)
	}
	if err := json.Unmarshal([]byte(params), &def.Params); err != nil {
		return nil, fmt.Errorf("unmarshaling params: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &def.Tags); err != nil {
		return nil, fmt.Errorf("unmarshaling tags: %w", err)
	}

	if body.Valid && body.String != "" {
		var b BodySpec
		if err := json.Unmarshal([]byte(body.String), &b); err != nil {
			return nil, fmt.Errorf("unmarshaling body: %w", err)
		}
		def.Body = &b
	}

	if schedule.Valid && schedule.String != "" {
		var sched Schedule
		if err := json.Unmarshal([]byte(schedule.String), &sched); err != nil {
			return nil, fmt.Errorf("unmarshaling schedule: %w", err)
		}
		def.Schedule = &sched
	}

	if lastExecutedAt.Valid && lastExecutedAt.String != "" {
		t, err := time.Parse(time.RFC3339Nano, lastExecutedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing last_executed_at: %w", err)
		}
		def.LastExecutedAt = &t
		def.LastExecutionStatus = ExecutionStatus(lastStatus.String)
	}

	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	def.CreatedAt = t

	t, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	def.UpdatedAt = t

	return &def, nil
}

func marshalDefinitionFields(def *Definition) (headers, params, tags string, body, schedule any, err error) {
	if def.Headers == nil {
		def.Headers = []KeyValue{}
	}
	if def.Params == nil {
		def.Params = []KeyValue{}
	}
	if def.Tags == nil {
		def.Tags = []Tag{}
	}

	h, err := json.Marshal(def.Headers)
	if err != nil {
		return "", "", "", nil, nil, fmt.Errorf("marshaling headers: %w", err)
	}
	p, err := json.Marshal(def.Params)
	if err != nil {
		return "", "", "", nil, nil, fmt.Errorf("marshaling params: %w", err)
	}
	t, err := json.Marshal(def.Tags)
	if err != nil {
		return "", "", "", nil, nil, fmt.Errorf("marshaling tags: %w", err)
	}

	var b any
	if def.Body != nil {
		raw, err := json.Marshal(def.Body)
		if err != nil {
			return "", "", "", nil, nil, fmt.Errorf("marshaling body: %w", err)
		}
		b = string(raw)
	}

	var sched any
	if def.Schedule != nil {
		raw, err := json.Marshal(def.Schedule)
		if err != nil {
			return "", "", "", nil, nil, fmt.Errorf("marshaling schedule: %w", err)
		}
		sched = string(raw)
	}

	return string(h), string(p), string(t), b, sched, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
