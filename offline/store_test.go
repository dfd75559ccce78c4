package offline

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"beacon/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 10, 17, 11, 0, 0, 0, time.UTC)

func openStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "queue.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func queueItem(id string, offset time.Duration) models.QueueItem {
	return models.QueueItem{
		ID: id,
		Request: models.CreateRequest{
			UserID:    "u2",
			Message:   "ping " + id,
			Category:  models.CategoryMention,
			CreatedBy: "u1",
			ClientID:  id,
		},
		CreatedAt: base.Add(offset),
	}
}

func TestEnqueueGetAndIdempotency(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.Enqueue(ctx, queueItem("a", 0)))
	require.NoError(t, s.Enqueue(ctx, queueItem("a", time.Hour)), "same id is ignored")

	item, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, models.QueuePending, item.State)
	assert.Equal(t, base, item.CreatedAt)
	assert.Equal(t, base, item.NextAttemptAt)
	assert.Equal(t, "ping a", item.Request.Message)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestPendingIsFIFOAndRespectsSchedule(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.Enqueue(ctx, queueItem("second", 2*time.Minute)))
	require.NoError(t, s.Enqueue(ctx, queueItem("first", time.Minute)))
	require.NoError(t, s.Enqueue(ctx, queueItem("third", 3*time.Minute)))
	require.NoError(t, s.Requeue(ctx, "third", "offline", base.Add(time.Hour)))

	items, err := s.Pending(ctx, base.Add(10*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "first", items[0].ID)
	assert.Equal(t, "second", items[1].ID)

	items, err = s.Pending(ctx, base.Add(2*time.Hour), 10)
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestClaimIsCompareAndSwap(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.Enqueue(ctx, queueItem("a", 0)))

	var wg sync.WaitGroup
	wins := make(chan bool, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Claim(ctx, "a", base.Add(time.Minute))
			assert.NoError(t, err)
			wins <- ok
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for ok := range wins {
		if ok {
			won++
		}
	}
	assert.Equal(t, 1, won)

	items, err := s.Pending(ctx, base.Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, items, "inflight items are not pending")
}

func TestRequeueCountsAttempts(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.Enqueue(ctx, queueItem("a", 0)))

	ok, err := s.Claim(ctx, "a", base.Add(time.Minute))
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, s.Requeue(ctx, "a", "dial tcp: no route to host", base.Add(5*time.Second)))

	item, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, models.QueuePending, item.State)
	assert.Equal(t, 1, item.Attempts)
	assert.Equal(t, "dial tcp: no route to host", item.LastError)
	assert.Equal(t, base.Add(5*time.Second), item.NextAttemptAt)

	assert.ErrorIs(t, s.Requeue(ctx, "missing", "x", base), ErrItemNotFound)
}

func TestQueueSurvivesReopenAndRecoversInflight(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Enqueue(ctx, queueItem(fmt.Sprintf("item-%d", i), time.Duration(i)*time.Second)))
	}
	ok, err := s.Claim(ctx, "item-1", base.Add(time.Minute))
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	item, err := reopened.Get(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, models.QueuePending, item.State, "crash-orphaned item is retried")
}

func TestReleaseExpiredClaims(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.Enqueue(ctx, queueItem("stuck", 0)))
	require.NoError(t, s.Enqueue(ctx, queueItem("busy", 0)))

	ok, err := s.Claim(ctx, "stuck", base.Add(time.Minute))
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = s.Claim(ctx, "busy", base.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, ok)

	n, err := s.ReleaseExpired(ctx, base.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	stuck, err := s.Get(ctx, "stuck")
	require.NoError(t, err)
	assert.Equal(t, models.QueuePending, stuck.State)
	busy, err := s.Get(ctx, "busy")
	require.NoError(t, err)
	assert.Equal(t, models.QueueInFlight, busy.State)
}

func TestEvictByAttemptsAndAge(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()
	policy := DefaultRetryPolicy()

	fresh := queueItem("fresh", 0)
	tired := queueItem("tired", 0)
	tired.Attempts = policy.MaxAttempts
	stale := queueItem("stale", -8*24*time.Hour)
	for _, item := range []models.QueueItem{fresh, tired, stale} {
		require.NoError(t, s.Enqueue(ctx, item))
	}

	evicted, err := s.Evict(ctx, policy, base)
	require.NoError(t, err)
	require.Len(t, evicted, 2)
	assert.Equal(t, "stale", evicted[0].ID)
	assert.Equal(t, "tired", evicted[1].ID)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	evicted, err = s.Evict(ctx, policy, base)
	require.NoError(t, err)
	assert.Empty(t, evicted)
}
