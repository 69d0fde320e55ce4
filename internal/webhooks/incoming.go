package webhooks

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hypermarketllc/hookline/internal/database"
)

var (
	// ErrIncomingNotFound is returned when an incoming endpoint does not exist.
	ErrIncomingNotFound = errors.New("incoming webhook not found")

	// ErrBadSecret is returned when a caller presents the wrong secret key.
	ErrBadSecret = errors.New("invalid secret key")

	// ErrIncomingDisabled is returned when a disabled endpoint is called.
	ErrIncomingDisabled = errors.New("incoming webhook is disabled")
)

// IncomingStore handles database operations for incoming webhook endpoints.
type IncomingStore struct {
	db *database.DB
}

// NewIncomingStore creates a new incoming webhook store.
func NewIncomingStore(db *database.DB) *IncomingStore {
	return &IncomingStore{db: db}
}

// Create inserts a new incoming endpoint definition.
func (s *IncomingStore) Create(ctx context.Context, hook *IncomingWebhook) error {
	if hook.ID == "" {
		hook.ID = uuid.New().String()
	}
	if hook.SecretKey == "" {
		hook.SecretKey = uuid.New().String()
	}
	now := time.Now().UTC()
	if hook.CreatedAt.IsZero() {
		hook.CreatedAt = now
	}
	hook.UpdatedAt = now

	query := `
		INSERT INTO incoming_webhooks (
			id, name, description, endpoint_path, secret_key, enabled,
			last_called_at, created_at, updated_at, user_id
		) VALUES (?, ?, ?, ?, ?, ?, NULL, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		hook.ID,
		hook.Name,
		hook.Description,
		hook.EndpointPath,
		hook.SecretKey,
		boolToInt(hook.Enabled),
		hook.CreatedAt.Format(time.RFC3339),
		hook.UpdatedAt.Format(time.RFC3339),
		hook.UserID,
	)
	if err != nil {
		return fmt.Errorf("inserting incoming webhook: %w", err)
	}

	return nil
}

// Update replaces an existing incoming endpoint definition.
func (s *IncomingStore) Update(ctx context.Context, hook *IncomingWebhook) error {
	hook.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE incoming_webhooks
		SET name = ?, description = ?, endpoint_path = ?, secret_key = ?,
		    enabled = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		hook.Name,
		hook.Description,
		hook.EndpointPath,
		hook.SecretKey,
		boolToInt(hook.Enabled),
		hook.UpdatedAt.Format(time.RFC3339),
		hook.ID,
	)
	if err != nil {
		return fmt.Errorf("updating incoming webhook: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrIncomingNotFound, hook.ID)
	}

	return nil
}

// Delete removes an incoming endpoint definition.
func (s *IncomingStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM incoming_webhooks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting incoming webhook: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrIncomingNotFound, id)
	}

	return nil
}

// Get retrieves an incoming endpoint by ID.
func (s *IncomingStore) Get(ctx context.Context, id string) (*IncomingWebhook, error) {
	row := s.db.QueryRowContext(ctx, selectIncoming+` WHERE id = ?`, id)

	hook, err := scanIncoming(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrIncomingNotFound, id)
		}
		return nil, fmt.Errorf("getting incoming webhook: %w", err)
	}

	return hook, nil
}

// GetByPath retrieves an incoming endpoint by its endpoint path.
func (s *IncomingStore) GetByPath(ctx context.Context, path string) (*IncomingWebhook, error) {
	row := s.db.QueryRowContext(ctx, selectIncoming+` WHERE endpoint_path = ?`, path)

	hook, err := scanIncoming(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrIncomingNotFound, path)
		}
		return nil, fmt.Errorf("getting incoming webhook by path: %w", err)
	}

	return hook, nil
}

// List retrieves all incoming endpoints, oldest first.
func (s *IncomingStore) List(ctx context.Context) ([]*IncomingWebhook, error) {
	rows, err := s.db.QueryContext(ctx, selectIncoming+` ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying incoming webhooks: %w", err)
	}
	defer rows.Close()

	var hooks []*IncomingWebhook
	for rows.Next() {
		hook, err := scanIncoming(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning incoming webhook row: %w", err)
		}
		hooks = append(hooks, hook)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating incoming webhook rows: %w", err)
	}

	return hooks, nil
}

// Receive validates a call against the endpoint at path and records it.
// The secret comparison is constant-time.
func (s *IncomingStore) Receive(ctx context.Context, path, secret string) (*IncomingWebhook, error) {
	hook, err := s.GetByPath(ctx, path)
	if err != nil {
		return nil, err
	}

	if subtle.ConstantTimeCompare([]byte(hook.SecretKey), []byte(secret)) != 1 {
		return nil, ErrBadSecret
	}

	if !hook.Enabled {
		return nil, ErrIncomingDisabled
	}

	now := time.Now().UTC()
	query := `UPDATE incoming_webhooks SET last_called_at = ? WHERE id = ?`
	if _, err := s.db.ExecContext(ctx, query, now.Format(time.RFC3339Nano), hook.ID); err != nil {
		return nil, fmt.Errorf("recording incoming call: %w", err)
	}
	hook.LastCalledAt = &now

	return hook, nil
}

const selectIncoming = `
	SELECT id, name, description, endpoint_path, secret_key, enabled,
	       last_called_at, created_at, updated_at, user_id
	FROM incoming_webhooks
`

func scanIncoming(row scannable) (*IncomingWebhook, error) {
	var hook IncomingWebhook
	var enabled int
	var lastCalledAt, userID sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&hook.ID,
		&hook.Name,
		&hook.Description,
		&hook.EndpointPath,
		&hook.SecretKey,
		&enabled,
		&lastCalledAt,
		&createdAt,
		&updatedAt,
		&userID,
	)
	if err != nil {
		return nil, err
	}

	hook.Enabled = enabled == 1
	hook.UserID = userID.String

	if lastCalledAt.Valid && lastCalledAt.String != "" {
		t, err := time.Parse(time.RFC3339Nano, lastCalledAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing last_called_at: %w", err)
		}
		hook.LastCalledAt = &t
	}

	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	hook.CreatedAt = t

	t, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	hook.UpdatedAt = t

	return &hook, nil
}
