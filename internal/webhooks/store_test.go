package webhooks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hypermarketllc/hookline/internal/dispatchlog"
)

func TestStore_CreateAndGet(t *testing.T) {
	db := testDB(t)
	store := NewStore(db)
	ctx := context.Background()

	def := &Definition{
		Name:        "Deploy Notifier",
		Description: "Pings the deploy channel",
		URL:         "https://example.com/notify",
		Method:      MethodPost,
		Headers: []KeyValue{
			{Key: "Authorization", Value: "Bearer tok", Enabled: true},
		},
		Params: []KeyValue{
			{Key: "env", Value: "prod", Enabled: true},
		},
		Body:    &BodySpec{ContentType: BodyJSON, Content: `{"ok":true}`},
		Enabled: true,
		Tags: []Tag{
			{ID: "t1", Name: "deploys", Color: "#ff0000"},
		},
		Schedule: &Schedule{Type: ScheduleDaily, Time: "09:00"},
	}

	require.NoError(t, store.Create(ctx, def))
	require.NotEmpty(t, def.ID)

	got, err := store.Get(ctx, def.ID)
	require.NoError(t, err)
	require.Equal(t, def.Name, got.Name)
	require.Equal(t, def.URL, got.URL)
	require.Equal(t, def.Headers, got.Headers)
	require.Equal(t, def.Params, got.Params)
	require.Equal(t, def.Tags, got.Tags)
	require.NotNil(t, got.Body)
	require.Equal(t, BodyJSON, got.Body.ContentType)
	require.NotNil(t, got.Schedule)
	require.Equal(t, ScheduleDaily, got.Schedule.Type)
	require.True(t, got.Enabled)
	require.Nil(t, got.LastExecutedAt)
	require.Empty(t, got.LastExecutionStatus)
}

func TestStore_GetNotFound(t *testing.T) {
	db := testDB(t)
	store := NewStore(db)

	_, err := store.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_UpdateReplacesWholeObject(t *testing.T) {
	db := testDB(t)
	store := NewStore(db)
	ctx := context.Background()

	def := createDefinition(t, store, &Definition{
		URL:     "https://example.com/a",
		Enabled: true,
		Headers: []KeyValue{{Key: "X-Old", Value: "1", Enabled: true}},
		Body:    &BodySpec{ContentType: BodyText, Content: "old"},
	})

	def.Name = "renamed"
	def.Headers = nil
	def.Body = nil
	def.Enabled = false
	require.NoError(t, store.Update(ctx, def))

	got, err := store.Get(ctx, def.ID)
	require.NoError(t, err)
	require.Equal(t, "renamed", got.Name)
	require.Empty(t, got.Headers)
	require.Nil(t, got.Body)
	require.False(t, got.Enabled)
}

func TestStore_UpdateDoesNotTouchExecutionStatus(t *testing.T) {
	db := testDB(t)
	store := NewStore(db)
	ctx := context.Background()

	def := createDefinition(t, store, &Definition{URL: "https://example.com/a", Enabled: true})

	started := time.Now().UTC()
	require.NoError(t, store.RecordExecution(ctx, def.ID, started, StatusSuccess))

	def.Name = "edited"
	require.NoError(t, store.Update(ctx, def))

	got, err := store.Get(ctx, def.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastExecutedAt)
	require.Equal(t, StatusSuccess, got.LastExecutionStatus)
}

func TestStore_UpdateNotFound(t *testing.T) {
	db := testDB(t)
	store := NewStore(db)

	err := store.Update(context.Background(), &Definition{ID: "missing", Method: MethodGet})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_DeleteCascadesLogs(t *testing.T) {
	db := testDB(t)
	store := NewStore(db)
	logs := dispatchlog.NewStore(db, 0)
	ctx := context.Background()

	def := createDefinition(t, store, &Definition{URL: "https://example.com/a", Enabled: true})
	other := createDefinition(t, store, &Definition{Name: "survivor", URL: "https://example.com/b", Enabled: true})

	for i := 0; i < 3; i++ {
		require.NoError(t, logs.Append(ctx, &dispatchlog.Entry{
			WebhookID:   def.ID,
			WebhookName: def.Name,
			RequestURL:  def.URL,
			Success:     true,
		}))
	}
	require.NoError(t, logs.Append(ctx, &dispatchlog.Entry{
		WebhookID:   other.ID,
		WebhookName: other.Name,
		RequestURL:  other.URL,
		Success:     true,
	}))

	require.NoError(t, store.Delete(ctx, def.ID))

	_, err := store.Get(ctx, def.ID)
	require.ErrorIs(t, err, ErrNotFound)

	remaining, err := logs.Query(ctx, dispatchlog.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, other.ID, remaining[0].WebhookID)
}

func TestStore_DeleteNotFound(t *testing.T) {
	db := testDB(t)
	store := NewStore(db)

	err := store.Delete(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListOrdersByCreation(t *testing.T) {
	db := testDB(t)
	store := NewStore(db)
	ctx := context.Background()

	first := createDefinition(t, store, &Definition{
		Name:      "first",
		URL:       "https://example.com/1",
		CreatedAt: time.Now().UTC().Add(-time.Hour),
	})
	second := createDefinition(t, store, &Definition{
		Name: "second",
		URL:  "https://example.com/2",
	})

	defs, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	require.Equal(t, first.ID, defs[0].ID)
	require.Equal(t, second.ID, defs[1].ID)
}

func TestStore_ListScheduled(t *testing.T) {
	db := testDB(t)
	store := NewStore(db)
	ctx := context.Background()

	scheduled := createDefinition(t, store, &Definition{
		Name:     "interval",
		URL:      "https://example.com/1",
		Enabled:  true,
		Schedule: &Schedule{Type: ScheduleInterval, IntervalMinutes: 15},
	})
	createDefinition(t, store, &Definition{
		Name:     "manual",
		URL:      "https://example.com/2",
		Enabled:  true,
		Schedule: &Schedule{Type: ScheduleManual},
	})
	createDefinition(t, store, &Definition{
		Name:     "disabled",
		URL:      "https://example.com/3",
		Schedule: &Schedule{Type: ScheduleDaily, Time: "08:00"},
	})
	createDefinition(t, store, &Definition{
		Name:    "unscheduled",
		URL:     "https://example.com/4",
		Enabled: true,
	})

	defs, err := store.ListScheduled(ctx)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	require.Equal(t, scheduled.ID, defs[0].ID)
}

func TestStore_RecordExecution(t *testing.T) {
	db := testDB(t)
	store := NewStore(db)
	ctx := context.Background()

	def := createDefinition(t, store, &Definition{URL: "https://example.com/a", Enabled: true})

	started := time.Now().UTC()
	require.NoError(t, store.RecordExecution(ctx, def.ID, started, StatusError))

	got, err := store.Get(ctx, def.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastExecutedAt)
	require.WithinDuration(t, started, *got.LastExecutedAt, time.Second)
	require.Equal(t, StatusError, got.LastExecutionStatus)
}

func TestStore_RecordExecutionIgnoresStaleWrite(t *testing.T) {
	db := testDB(t)
	store := NewStore(db)
	ctx := context.Background()

	def := createDefinition(t, store, &Definition{URL: "https://example.com/a", Enabled: true})

	newer := time.Now().UTC()
	older := newer.Add(-time.Minute)

	require.NoError(t, store.RecordExecution(ctx, def.ID, newer, StatusSuccess))
	require.NoError(t, store.RecordExecution(ctx, def.ID, older, StatusError))

	got, err := store.Get(ctx, def.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, got.LastExecutionStatus)
	require.WithinDuration(t, newer, *got.LastExecutedAt, time.Second)
}

func TestStore_RecordExecutionOrdersWithinSameSecond(t *testing.T) {
	db := testDB(t)
	store := NewStore(db)
	ctx := context.Background()

	def := createDefinition(t, store, &Definition{URL: "https://example.com/a", Enabled: true})

	// A start on a whole second serializes without fractional digits under
	// RFC3339Nano, which breaks string comparison against sub-second starts.
	onSecond := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	halfLater := onSecond.Add(500 * time.Millisecond)

	require.NoError(t, store.RecordExecution(ctx, def.ID, onSecond, StatusError))
	require.NoError(t, store.RecordExecution(ctx, def.ID, halfLater, StatusSuccess))

	got, err := store.Get(ctx, def.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, got.LastExecutionStatus)
	require.WithinDuration(t, halfLater, *got.LastExecutedAt, time.Millisecond)

	// And the stale direction within the same second is still refused.
	require.NoError(t, store.RecordExecution(ctx, def.ID, onSecond, StatusError))

	got, err = store.Get(ctx, def.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, got.LastExecutionStatus)
	require.WithinDuration(t, halfLater, *got.LastExecutedAt, time.Millisecond)
}
