package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/litmusq-backend/internal/config"
	"github.com/stemsi/litmusq-backend/internal/quiz"
	"github.com/stemsi/litmusq-backend/internal/repository"
)

const (
	ResultBatchTimeout = 2 * time.Second
	ResultPollTimeout  = 1 * time.Second
	ResultRetryDelay   = 5 * time.Second
	ResultMaxAttempts  = 5
)

// ResultSink is where queued results end up.
type ResultSink interface {
	AppendBatch(ctx context.Context, entries []repository.ResultEntry) error
	AppendResult(ctx context.Context, userID int, r *quiz.Result) error
}

// ResultWorker drains persist_results_queue into the Progress Store in batches.
type ResultWorker struct {
	sink        ResultSink
	rdb         *redis.Client
	batchSize   int
	retryDelay  time.Duration
	maxAttempts int
	log         zerolog.Logger
}

func NewResultWorker(sink ResultSink, rdb *redis.Client, batchSize int, log zerolog.Logger) *ResultWorker {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &ResultWorker{
		sink:        sink,
		rdb:         rdb,
		batchSize:   batchSize,
		retryDelay:  ResultRetryDelay,
		maxAttempts: ResultMaxAttempts,
		log:         log.With().Str("component", "result_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *ResultWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ResultWorker started")

	batch := make([]repository.ResultEntry, 0, w.batchSize)
	lastFlush := time.Now()

	for {
		// Should flush?
		if len(batch) > 0 &&
			(len(batch) >= w.batchSize || time.Since(lastFlush) >= ResultBatchTimeout) {

			requeued := w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()

			if requeued > 0 {
				w.log.Warn().Int("count", requeued).Dur("delay", w.retryDelay).Msg("Results requeued, backing off")
				w.backoff(ctx)
			}
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			w.drain(context.Background())
			return

		default:
			item, err := w.rdb.BLPop(ctx, ResultPollTimeout, config.PersistResultsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			if e, ok := w.decode(item[1]); ok {
				batch = append(batch, e)
			}
		}
	}
}

func (w *ResultWorker) decode(raw string) (repository.ResultEntry, bool) {
	var e repository.ResultEntry
	if err := json.Unmarshal([]byte(raw), &e); err != nil || e.Result == nil {
		w.log.Error().Err(err).Msg("Invalid result payload")
		return e, false
	}
	return e, true
}

// ----------------------------------------------------------------
// Batch insert with per-row fallback
// ----------------------------------------------------------------

// flushSafe returns how many entries went back on the queue.
func (w *ResultWorker) flushSafe(ctx context.Context, batch []repository.ResultEntry) int {
	if len(batch) == 0 {
		return 0
	}

	if err := w.sink.AppendBatch(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("size", len(batch)).Msg("batch result insert failed, using fallback")

		requeued := 0
		for _, e := range batch {
			if err := w.sink.AppendResult(ctx, e.UserID, e.Result); err != nil {
				w.log.Error().Err(err).
					Int("user_id", e.UserID).
					Str("result_id", e.Result.ID.String()).
					Int("attempts", e.Attempts+1).
					Msg("AppendResult failed")
				if w.requeue(ctx, e) {
					requeued++
				}
			}
		}
		return requeued
	}

	w.log.Debug().Int("size", len(batch)).Msg("Results persisted")
	return 0
}

// requeue pushes e back for another attempt, or onto the dead list once it
// has used up maxAttempts. It reports whether e was requeued.
func (w *ResultWorker) requeue(ctx context.Context, e repository.ResultEntry) bool {
	e.Attempts++
	raw, _ := json.Marshal(e)

	if e.Attempts >= w.maxAttempts {
		w.log.Error().
			Int("user_id", e.UserID).
			Str("result_id", e.Result.ID.String()).
			Int("attempts", e.Attempts).
			Msg("Giving up on result, moved to dead list")
		w.rdb.RPush(ctx, config.DeadResultsQueue, raw)
		return false
	}

	w.rdb.RPush(ctx, config.PersistResultsQueue, raw)
	return true
}

func (w *ResultWorker) backoff(ctx context.Context) {
	t := time.NewTimer(w.retryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// drain persists whatever is still queued at shutdown, one batch at a time.
func (w *ResultWorker) drain(ctx context.Context) {
	drained := 0
	for {
		items, err := w.rdb.LPopCount(ctx, config.PersistResultsQueue, w.batchSize).Result()
		if err != nil || len(items) == 0 {
			break
		}

		batch := make([]repository.ResultEntry, 0, len(items))
		for _, raw := range items {
			if e, ok := w.decode(raw); ok {
				batch = append(batch, e)
			}
		}

		if err := w.sink.AppendBatch(ctx, batch); err != nil {
			// Left for the next start; a failed batch does not count as an attempt.
			w.log.Error().Err(err).Msg("Drain persist error")
			for _, e := range batch {
				raw, _ := json.Marshal(e)
				w.rdb.RPush(ctx, config.PersistResultsQueue, raw)
			}
			break
		}
		drained += len(batch)
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining results")
	}
}
