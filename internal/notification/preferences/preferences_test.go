package preferences

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	apperrors "servicedesk/internal/common/errors"
	"servicedesk/internal/common/logger"
	"servicedesk/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tod(h, m int) *models.TimeOfDay {
	t := models.NewTimeOfDay(h, m)
	return &t
}

func TestValidate(t *testing.T) {
	base := models.DefaultPreferences("tenant-1")

	tests := []struct {
		name    string
		mutate  func(p *models.NotificationPreferences)
		wantErr bool
	}{
		{"defaults", func(p *models.NotificationPreferences) {}, false},
		{"missing recipient", func(p *models.NotificationPreferences) { p.RecipientID = " " }, true},
		{"start without end", func(p *models.NotificationPreferences) { p.QuietHoursStart = tod(22, 0) }, true},
		{"end without start", func(p *models.NotificationPreferences) { p.QuietHoursEnd = tod(8, 0) }, true},
		{"both bounds", func(p *models.NotificationPreferences) {
			p.QuietHoursStart, p.QuietHoursEnd = tod(22, 0), tod(8, 0)
		}, false},
		{"valid timezone", func(p *models.NotificationPreferences) { p.Timezone = "Europe/Berlin" }, false},
		{"bad timezone", func(p *models.NotificationPreferences) { p.Timezone = "Mars/Olympus" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.mutate(&p)
			err := Validate(p)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_DefaultsWhenMissing(t *testing.T) {
	store := NewMemoryStore()

	prefs, err := Load(context.Background(), store, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultPreferences("tenant-1"), prefs)
}

type failingStore struct{ err error }

func (f failingStore) Get(context.Context, string) (models.NotificationPreferences, error) {
	return models.NotificationPreferences{}, f.err
}

func (f failingStore) Replace(context.Context, models.NotificationPreferences) error { return f.err }

func TestLoad_PropagatesStoreFailure(t *testing.T) {
	_, err := Load(context.Background(), failingStore{err: apperrors.NewStoreFailedError("load preferences", errors.New("conn reset"))}, "tenant-1")
	assert.ErrorIs(t, err, apperrors.ErrStoreFailed)
}

func TestMemoryStore_ReplaceIsWholeRecord(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	first := models.DefaultPreferences("tenant-1")
	first.QuietHoursStart, first.QuietHoursEnd = tod(22, 0), tod(8, 0)
	require.NoError(t, store.Replace(ctx, first))

	second := models.DefaultPreferences("tenant-1")
	second.SMS = false
	require.NoError(t, store.Replace(ctx, second))

	got, err := store.Get(ctx, "tenant-1")
	require.NoError(t, err)
	assert.False(t, got.SMS)
	assert.Nil(t, got.QuietHoursStart, "replace must not merge with the previous record")
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	prefs := models.DefaultPreferences("tenant-1")
	prefs.QuietHoursStart, prefs.QuietHoursEnd = tod(22, 0), tod(8, 0)
	require.NoError(t, store.Replace(ctx, prefs))

	got, err := store.Get(ctx, "tenant-1")
	require.NoError(t, err)
	*got.QuietHoursStart = models.NewTimeOfDay(1, 0)

	again, err := store.Get(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, models.NewTimeOfDay(22, 0), *again.QuietHoursStart)
}

func TestMemoryStore_RejectsInvalid(t *testing.T) {
	store := NewMemoryStore()
	prefs := models.DefaultPreferences("tenant-1")
	prefs.QuietHoursEnd = tod(8, 0)

	assert.ErrorIs(t, store.Replace(context.Background(), prefs), apperrors.ErrValidation)
	_, err := store.Get(context.Background(), "tenant-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

var prefColumns = []string{
	"recipient_id", "master_enabled", "rent_reminders", "service_request_updates",
	"general_announcements", "email", "sms", "in_app", "quiet_hours_start", "quiet_hours_end",
	"timezone", "default_tone", "updated_at",
}

func TestPostgresStore_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	updated := time.Date(2025, 5, 30, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT .+ FROM notification_preferences WHERE recipient_id = \$1`).
		WithArgs("tenant-1").
		WillReturnRows(sqlmock.NewRows(prefColumns).AddRow(
			"tenant-1", true, true, false, true, true, false, true, "22:00", "08:00",
			"America/New_York", "formal", updated,
		))

	got, err := NewPostgresStore(db).Get(context.Background(), "tenant-1")
	require.NoError(t, err)

	assert.False(t, got.ServiceRequestUpdates)
	assert.False(t, got.SMS)
	require.NotNil(t, got.QuietHoursStart)
	assert.Equal(t, models.NewTimeOfDay(22, 0), *got.QuietHoursStart)
	assert.Equal(t, models.NewTimeOfDay(8, 0), *got.QuietHoursEnd)
	assert.Equal(t, "America/New_York", got.Timezone)
	assert.Equal(t, updated, got.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetNullQuietHours(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM notification_preferences`).
		WithArgs("tenant-1").
		WillReturnRows(sqlmock.NewRows(prefColumns).AddRow(
			"tenant-1", true, true, true, true, true, true, true, nil, nil, "", "", time.Now(),
		))

	got, err := NewPostgresStore(db).Get(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Nil(t, got.QuietHoursStart)
	assert.Nil(t, got.QuietHoursEnd)
}

func TestPostgresStore_GetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM notification_preferences`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err = NewPostgresStore(db).Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPostgresStore_Replace(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	prefs := models.DefaultPreferences("tenant-1")
	prefs.QuietHoursStart, prefs.QuietHoursEnd = tod(22, 0), tod(8, 0)

	mock.ExpectExec(`INSERT INTO notification_preferences .+ ON CONFLICT \(recipient_id\) DO UPDATE`).
		WithArgs("tenant-1", true, true, true, true, true, true, true,
			"22:00", "08:00", "", "friendly", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewPostgresStore(db).Replace(context.Background(), prefs))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplaceValidatesFirst(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	prefs := models.DefaultPreferences("tenant-1")
	prefs.QuietHoursStart = tod(22, 0)

	assert.ErrorIs(t, NewPostgresStore(db).Replace(context.Background(), prefs), apperrors.ErrValidation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type countingStore struct {
	*MemoryStore
	gets int
}

func (c *countingStore) Get(ctx context.Context, id string) (models.NotificationPreferences, error) {
	c.gets++
	return c.MemoryStore.Get(ctx, id)
}

func newCached(t *testing.T) (*CachedStore, *countingStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	src := &countingStore{MemoryStore: NewMemoryStore()}
	return NewCachedStore(src, rdb, time.Minute, logger.NewTestLogger(t)), src, mr
}

func TestCachedStore_ReadThrough(t *testing.T) {
	ctx := context.Background()
	cached, src, mr := newCached(t)

	prefs := models.DefaultPreferences("tenant-1")
	prefs.Email = false
	require.NoError(t, src.MemoryStore.Replace(ctx, prefs))

	first, err := cached.Get(ctx, "tenant-1")
	require.NoError(t, err)
	second, err := cached.Get(ctx, "tenant-1")
	require.NoError(t, err)

	assert.False(t, first.Email)
	assert.Equal(t, first.Email, second.Email)
	assert.Equal(t, 1, src.gets)
	assert.True(t, mr.Exists("prefs:tenant-1"))
}

func TestCachedStore_ReplaceOverwritesCache(t *testing.T) {
	ctx := context.Background()
	cached, src, _ := newCached(t)

	require.NoError(t, cached.Replace(ctx, models.DefaultPreferences("tenant-1")))

	updated := models.DefaultPreferences("tenant-1")
	updated.MasterEnabled = false
	require.NoError(t, cached.Replace(ctx, updated))

	before := src.gets
	got, err := cached.Get(ctx, "tenant-1")
	require.NoError(t, err)
	assert.False(t, got.MasterEnabled)
	assert.Equal(t, before, src.gets, "served from cache")
}

func TestCachedStore_MissIsNotCached(t *testing.T) {
	ctx := context.Background()
	cached, _, mr := newCached(t)

	_, err := cached.Get(ctx, "ghost")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.False(t, mr.Exists("prefs:ghost"))
}

func TestCachedStore_RedisDownFallsBack(t *testing.T) {
	ctx := context.Background()
	cached, src, mr := newCached(t)
	require.NoError(t, src.MemoryStore.Replace(ctx, models.DefaultPreferences("tenant-1")))

	mr.Close()

	got, err := cached.Get(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, "tenant-1", got.RecipientID)
}
