package sourcestore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Stephilip2022/wotc-platform-sub004/internal/domain"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return client, mr
}

func sampleTable() domain.Table {
	return domain.Table{
		Headers: []string{"Employee ID", "Hours"},
		Rows: []domain.Row{
			{Number: 2, Cells: []string{"E100", "40"}},
			{Number: 4, Cells: []string{"E200", "12.5"}},
		},
	}
}

func TestRedisStoreRoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	client, mr := setupTestRedis(t)
	store := NewRedisStore(client, time.Hour)
	id := uuid.New()

	require.NoError(t, store.Put(ctx, id, sampleTable()))
	assert.True(t, mr.Exists(key(id)))

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, sampleTable(), got)

	mr.FastForward(2 * time.Hour)
	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
}

func TestRedisStoreDelete(t *testing.T) {
	ctx := context.Background()
	client, _ := setupTestRedis(t)
	store := NewRedisStore(client, 0)
	id := uuid.New()

	require.NoError(t, store.Put(ctx, id, sampleTable()))
	require.NoError(t, store.Delete(ctx, id))

	_, err := store.Get(ctx, id)
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Minute)
	current := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }
	id := uuid.New()

	require.NoError(t, store.Put(ctx, id, sampleTable()))
	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, got.Rows, 2)

	current = current.Add(2 * time.Minute)
	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
}
