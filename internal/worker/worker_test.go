package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/litmusq-backend/internal/config"
	"github.com/stemsi/litmusq-backend/internal/quiz"
	"github.com/stemsi/litmusq-backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	mu        sync.Mutex
	stored    map[uuid.UUID]int
	batches   int
	batchErr  error
	rejectIDs map[uuid.UUID]bool
	tries     map[uuid.UUID]int
}

func newFakeSink() *fakeSink {
	return &fakeSink{stored: map[uuid.UUID]int{}, rejectIDs: map[uuid.UUID]bool{}, tries: map[uuid.UUID]int{}}
}

func (s *fakeSink) AppendBatch(_ context.Context, entries []repository.ResultEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batchErr != nil {
		return s.batchErr
	}
	s.batches++
	for _, e := range entries {
		s.stored[e.Result.ID] = e.UserID
	}
	return nil
}

func (s *fakeSink) AppendResult(_ context.Context, userID int, r *quiz.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tries[r.ID]++
	if s.rejectIDs[r.ID] {
		return errors.New("constraint violation")
	}
	s.stored[r.ID] = userID
	return nil
}

func (s *fakeSink) triesFor(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tries[id]
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stored)
}

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

func entry(userID int) repository.ResultEntry {
	return repository.ResultEntry{UserID: userID, Result: &quiz.Result{ID: uuid.New(), ExamName: "w"}}
}

func TestResultWorker_PersistsQueuedResults(t *testing.T) {
	rdb, _ := newRedis(t)
	sink := newFakeSink()
	queue := repository.NewResultQueue(rdb)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		require.NoError(t, queue.Push(ctx, entry(i)))
	}
	require.NoError(t, rdb.RPush(ctx, config.PersistResultsQueue, "not json").Err())

	w := NewResultWorker(sink, rdb, 2, zerolog.Nop())
	workerCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		w.Start(workerCtx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return sink.count() >= 2 }, 3*time.Second, 20*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, 3, sink.count())
	n, err := rdb.LLen(ctx, config.PersistResultsQueue).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestResultWorker_FallbackRequeuesFailures(t *testing.T) {
	rdb, _ := newRedis(t)
	sink := newFakeSink()
	sink.batchErr = errors.New("batch failed")

	good, bad := entry(1), entry(2)
	sink.rejectIDs[bad.Result.ID] = true

	w := NewResultWorker(sink, rdb, 10, zerolog.Nop())
	requeued := w.flushSafe(context.Background(), []repository.ResultEntry{good, bad})

	assert.Equal(t, 1, requeued)
	assert.Equal(t, 1, sink.count())

	items, err := rdb.LRange(context.Background(), config.PersistResultsQueue, 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, items, 1)

	var requeuedEntry repository.ResultEntry
	require.NoError(t, json.Unmarshal([]byte(items[0]), &requeuedEntry))
	assert.Equal(t, bad.Result.ID, requeuedEntry.Result.ID)
	assert.Equal(t, 1, requeuedEntry.Attempts)
}

func startResultWorker(t *testing.T, w *ResultWorker) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()
	return func() {
		stop()
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			t.Fatal("result worker did not stop")
		}
	}
}

func TestResultWorker_BacksOffAfterRequeue(t *testing.T) {
	rdb, _ := newRedis(t)
	sink := newFakeSink()
	sink.batchErr = errors.New("batch failed")

	bad := entry(7)
	sink.rejectIDs[bad.Result.ID] = true
	require.NoError(t, repository.NewResultQueue(rdb).Push(context.Background(), bad))

	w := NewResultWorker(sink, rdb, 1, zerolog.Nop())
	w.retryDelay = time.Hour
	stop := startResultWorker(t, w)

	assert.Eventually(t, func() bool { return sink.triesFor(bad.Result.ID) == 1 }, 3*time.Second, 10*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, sink.triesFor(bad.Result.ID), "requeued result retried without waiting")

	// Cancelling interrupts the backoff.
	stop()
}

func TestResultWorker_DeadLettersAfterMaxAttempts(t *testing.T) {
	rdb, _ := newRedis(t)
	sink := newFakeSink()
	sink.batchErr = errors.New("batch failed")
	ctx := context.Background()

	bad := entry(9)
	sink.rejectIDs[bad.Result.ID] = true
	require.NoError(t, repository.NewResultQueue(rdb).Push(ctx, bad))

	w := NewResultWorker(sink, rdb, 1, zerolog.Nop())
	w.retryDelay = 10 * time.Millisecond
	w.maxAttempts = 3
	stop := startResultWorker(t, w)

	assert.Eventually(t, func() bool {
		n, _ := rdb.LLen(ctx, config.DeadResultsQueue).Result()
		return n == 1
	}, 3*time.Second, 10*time.Millisecond)
	stop()

	assert.Equal(t, 3, sink.triesFor(bad.Result.ID))

	n, err := rdb.LLen(ctx, config.PersistResultsQueue).Result()
	require.NoError(t, err)
	assert.Zero(t, n)

	raw, err := rdb.LIndex(ctx, config.DeadResultsQueue, 0).Result()
	require.NoError(t, err)
	var dead repository.ResultEntry
	require.NoError(t, json.Unmarshal([]byte(raw), &dead))
	assert.Equal(t, bad.Result.ID, dead.Result.ID)
	assert.Equal(t, 3, dead.Attempts)
}

type fakeIndex struct {
	due []uuid.UUID
	err error
}

func (f *fakeIndex) DueSessions(context.Context, time.Time, int64) ([]uuid.UUID, error) {
	return f.due, f.err
}

type fakeSubmitter struct {
	mu    sync.Mutex
	calls []uuid.UUID
	fail  uuid.UUID
}

func (f *fakeSubmitter) SubmitExpired(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	if id == f.fail {
		return false, errors.New("corrupt")
	}
	return true, nil
}

func TestExpiryWorker_Tick(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	sub := &fakeSubmitter{fail: b}
	w := NewExpiryWorker(&fakeIndex{due: []uuid.UUID{a, b, c}}, sub, 5*time.Second, zerolog.Nop())

	assert.Equal(t, time.Second, w.interval)
	assert.Equal(t, 2, w.Tick(context.Background()))
	assert.Equal(t, []uuid.UUID{a, b, c}, sub.calls)

	w = NewExpiryWorker(&fakeIndex{err: errors.New("down")}, sub, 0, zerolog.Nop())
	assert.Zero(t, w.Tick(context.Background()))
}

func TestExpiryWorker_StartStopsOnCancel(t *testing.T) {
	sub := &fakeSubmitter{}
	w := NewExpiryWorker(&fakeIndex{due: []uuid.UUID{uuid.New()}}, sub, 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		sub.mu.Lock()
		defer sub.mu.Unlock()
		return len(sub.calls) > 0
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
