package dispatchlog

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hypermarketllc/hookline/internal/config"
	"github.com/hypermarketllc/hookline/internal/database"
)

func testDB(t *testing.T) *database.DB {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		ForeignKeys: true,
	}

	db, err := database.Open(cfg)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// seedWebhook inserts a parent row so log entries satisfy the foreign key.
func seedWebhook(t *testing.T, db *database.DB, id, name string) {
	t.Helper()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := db.ExecContext(context.Background(), `
		INSERT INTO webhooks (id, name, url, method, created_at, updated_at)
		VALUES (?, ?, 'https://example.com/hook', 'POST', ?, ?)
	`, id, name, now, now)
	require.NoError(t, err)
}

func entryFor(webhookID, name string) *Entry {
	return &Entry{
		WebhookID:      webhookID,
		WebhookName:    name,
		RequestURL:     "https://example.com/hook",
		RequestMethod:  "POST",
		RequestHeaders: map[string]string{"Content-Type": "application/json"},
		RequestBody:    `{"ping":true}`,
		ResponseStatus: 200,
		ResponseBody:   "ok",
		DurationMs:     12,
		Success:        true,
	}
}

func TestStore_AppendAndGet(t *testing.T) {
	db := testDB(t)
	store := NewStore(db, 0)
	ctx := context.Background()

	seedWebhook(t, db, "wh1", "billing hook")

	entry := entryFor("wh1", "billing hook")
	require.NoError(t, store.Append(ctx, entry))
	require.NotEmpty(t, entry.ID)
	require.False(t, entry.Timestamp.IsZero())

	got, err := store.Get(ctx, entry.ID)
	require.NoError(t, err)
	require.Equal(t, entry.WebhookID, got.WebhookID)
	require.Equal(t, entry.WebhookName, got.WebhookName)
	require.Equal(t, entry.RequestHeaders, got.RequestHeaders)
	require.Equal(t, entry.ResponseStatus, got.ResponseStatus)
	require.Equal(t, entry.DurationMs, got.DurationMs)
	require.True(t, got.Success)
}

func TestStore_GetNotFound(t *testing.T) {
	db := testDB(t)
	store := NewStore(db, 0)

	_, err := store.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_QueryNewestFirst(t *testing.T) {
	db := testDB(t)
	store := NewStore(db, 0)
	ctx := context.Background()

	seedWebhook(t, db, "wh1", "hook")

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		e := entryFor("wh1", "hook")
		e.Timestamp = base.Add(time.Duration(i) * time.Second)
		e.ResponseStatus = 200 + i
		require.NoError(t, store.Append(ctx, e))
	}

	entries, err := store.Query(ctx, QueryOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, 202, entries[0].ResponseStatus)
	require.Equal(t, 200, entries[2].ResponseStatus)
}

func TestStore_QueryOrdersWithinSameSecond(t *testing.T) {
	db := testDB(t)
	store := NewStore(db, 0)
	ctx := context.Background()

	seedWebhook(t, db, "wh1", "hook")

	// Timestamps on a whole second must still sort below sub-second ones;
	// RFC3339Nano drops trailing zeros, so string ordering would invert them.
	onSecond := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	for i, offset := range []time.Duration{0, 500 * time.Millisecond} {
		e := entryFor("wh1", "hook")
		e.Timestamp = onSecond.Add(offset)
		e.ResponseStatus = 200 + i
		require.NoError(t, store.Append(ctx, e))
	}

	entries, err := store.Query(ctx, QueryOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, 201, entries[0].ResponseStatus)
	require.Equal(t, 200, entries[1].ResponseStatus)

	latest, err := store.Latest(ctx, "wh1")
	require.NoError(t, err)
	require.Equal(t, 201, latest.ResponseStatus)
}

func TestStore_QueryFiltersByWebhook(t *testing.T) {
	db := testDB(t)
	store := NewStore(db, 0)
	ctx := context.Background()

	seedWebhook(t, db, "wh1", "first")
	seedWebhook(t, db, "wh2", "second")

	require.NoError(t, store.Append(ctx, entryFor("wh1", "first")))
	require.NoError(t, store.Append(ctx, entryFor("wh2", "second")))
	require.NoError(t, store.Append(ctx, entryFor("wh2", "second")))

	entries, err := store.Query(ctx, QueryOptions{WebhookID: "wh2"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		require.Equal(t, "wh2", e.WebhookID)
	}
}

func TestStore_QuerySearchIsCaseInsensitive(t *testing.T) {
	db := testDB(t)
	store := NewStore(db, 0)
	ctx := context.Background()

	seedWebhook(t, db, "wh1", "Billing Hook")
	seedWebhook(t, db, "wh2", "Deploy Hook")

	require.NoError(t, store.Append(ctx, entryFor("wh1", "Billing Hook")))
	require.NoError(t, store.Append(ctx, entryFor("wh2", "Deploy Hook")))

	entries, err := store.Query(ctx, QueryOptions{Search: "billing"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "Billing Hook", entries[0].WebhookName)
}

func TestStore_QuerySearchMatchesStatusAndError(t *testing.T) {
	db := testDB(t)
	store := NewStore(db, 0)
	ctx := context.Background()

	seedWebhook(t, db, "wh1", "hook")

	failed := entryFor("wh1", "hook")
	failed.ResponseStatus = 503
	failed.Success = false
	require.NoError(t, store.Append(ctx, failed))

	timedOut := entryFor("wh1", "hook")
	timedOut.ResponseStatus = 0
	timedOut.Success = false
	timedOut.Error = "context deadline exceeded"
	require.NoError(t, store.Append(ctx, timedOut))

	require.NoError(t, store.Append(ctx, entryFor("wh1", "hook")))

	byStatus, err := store.Query(ctx, QueryOptions{Search: "503"})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	require.Equal(t, 503, byStatus[0].ResponseStatus)

	byError, err := store.Query(ctx, QueryOptions{Search: "deadline"})
	require.NoError(t, err)
	require.Len(t, byError, 1)
	require.Equal(t, "context deadline exceeded", byError[0].Error)
}

func TestStore_QueryFiltersCompose(t *testing.T) {
	db := testDB(t)
	store := NewStore(db, 0)
	ctx := context.Background()

	seedWebhook(t, db, "wh1", "alpha")
	seedWebhook(t, db, "wh2", "alpha twin")

	require.NoError(t, store.Append(ctx, entryFor("wh1", "alpha")))
	require.NoError(t, store.Append(ctx, entryFor("wh2", "alpha twin")))

	entries, err := store.Query(ctx, QueryOptions{WebhookID: "wh1", Search: "alpha"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "wh1", entries[0].WebhookID)
}

func TestStore_QuerySearchEscapesWildcards(t *testing.T) {
	db := testDB(t)
	store := NewStore(db, 0)
	ctx := context.Background()

	seedWebhook(t, db, "wh1", "100% uptime")
	seedWebhook(t, db, "wh2", "plain hook")

	require.NoError(t, store.Append(ctx, entryFor("wh1", "100% uptime")))
	require.NoError(t, store.Append(ctx, entryFor("wh2", "plain hook")))

	entries, err := store.Query(ctx, QueryOptions{Search: "100%"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "100% uptime", entries[0].WebhookName)
}

func TestStore_QueryLimitAndOffset(t *testing.T) {
	db := testDB(t)
	store := NewStore(db, 0)
	ctx := context.Background()

	seedWebhook(t, db, "wh1", "hook")

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		e := entryFor("wh1", "hook")
		e.Timestamp = base.Add(time.Duration(i) * time.Second)
		e.ResponseStatus = 200 + i
		require.NoError(t, store.Append(ctx, e))
	}

	page, err := store.Query(ctx, QueryOptions{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, 203, page[0].ResponseStatus)
	require.Equal(t, 202, page[1].ResponseStatus)
}

func TestStore_Count(t *testing.T) {
	db := testDB(t)
	store := NewStore(db, 0)
	ctx := context.Background()

	seedWebhook(t, db, "wh1", "hook")
	seedWebhook(t, db, "wh2", "other")

	require.NoError(t, store.Append(ctx, entryFor("wh1", "hook")))
	require.NoError(t, store.Append(ctx, entryFor("wh1", "hook")))
	require.NoError(t, store.Append(ctx, entryFor("wh2", "other")))

	total, err := store.Count(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 3, total)

	scoped, err := store.Count(ctx, "wh1")
	require.NoError(t, err)
	require.Equal(t, 2, scoped)
}

func TestStore_Latest(t *testing.T) {
	db := testDB(t)
	store := NewStore(db, 0)
	ctx := context.Background()

	seedWebhook(t, db, "wh1", "hook")

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		e := entryFor("wh1", "hook")
		e.Timestamp = base.Add(time.Duration(i) * time.Second)
		e.ResponseStatus = 200 + i
		require.NoError(t, store.Append(ctx, e))
	}

	latest, err := store.Latest(ctx, "wh1")
	require.NoError(t, err)
	require.Equal(t, 202, latest.ResponseStatus)

	_, err = store.Latest(ctx, "wh2")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_PruneEnforcesCap(t *testing.T) {
	db := testDB(t)
	store := NewStore(db, 3)
	ctx := context.Background()

	seedWebhook(t, db, "wh1", "hook")

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		e := entryFor("wh1", "hook")
		e.Timestamp = base.Add(time.Duration(i) * time.Second)
		e.ResponseStatus = 200 + i
		require.NoError(t, store.Append(ctx, e))
	}

	count, err := store.Count(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 3, count)

	// The newest entries survive.
	entries, err := store.Query(ctx, QueryOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, 204, entries[0].ResponseStatus)
	require.Equal(t, 202, entries[2].ResponseStatus)
}

type captureArchiver struct {
	batches [][]*Entry
	err     error
}

func (a *captureArchiver) Archive(ctx context.Context, entries []*Entry) error {
	if a.err != nil {
		return a.err
	}
	a.batches = append(a.batches, entries)
	return nil
}

func TestStore_PruneHandsEntriesToArchiver(t *testing.T) {
	db := testDB(t)
	store := NewStore(db, 2)
	arch := &captureArchiver{}
	store.SetArchiver(arch)
	ctx := context.Background()

	seedWebhook(t, db, "wh1", "hook")

	base := time.Now().UTC()
	for i := 0; i < 4; i++ {
		e := entryFor("wh1", "hook")
		e.Timestamp = base.Add(time.Duration(i) * time.Second)
		e.ResponseStatus = 200 + i
		require.NoError(t, store.Append(ctx, e))
	}

	var archived []*Entry
	for _, batch := range arch.batches {
		archived = append(archived, batch...)
	}
	require.Len(t, archived, 2)
	require.Equal(t, 200, archived[0].ResponseStatus)
	require.Equal(t, 201, archived[1].ResponseStatus)
}

func TestStore_ArchiveFailureKeepsEntries(t *testing.T) {
	db := testDB(t)
	store := NewStore(db, 2)
	store.SetArchiver(&captureArchiver{err: fmt.Errorf("bucket unavailable")})
	ctx := context.Background()

	seedWebhook(t, db, "wh1", "hook")

	for i := 0; i < 4; i++ {
		require.NoError(t, store.Append(ctx, entryFor("wh1", "hook")))
	}

	// Prune aborts when the archiver fails, so nothing is deleted.
	count, err := store.Count(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 4, count)
}
