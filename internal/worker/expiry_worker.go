package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ExpiryScanLimit bounds how many overdue sessions one tick submits.
const ExpiryScanLimit = 100

// DeadlineIndex lists timed sessions whose deadline has passed.
type DeadlineIndex interface {
	DueSessions(ctx context.Context, now time.Time, limit int64) ([]uuid.UUID, error)
}

// ExpirySubmitter ends a session whose deadline has passed.
type ExpirySubmitter interface {
	SubmitExpired(ctx context.Context, id uuid.UUID) (bool, error)
}

// ExpiryWorker submits timed sessions once their deadline passes, so a
// session ends on time even when nobody is looking at it.
type ExpiryWorker struct {
	index     DeadlineIndex
	submitter ExpirySubmitter
	interval  time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// NewExpiryWorker creates a new ExpiryWorker polling every interval.
func NewExpiryWorker(index DeadlineIndex, submitter ExpirySubmitter, interval time.Duration, log zerolog.Logger) *ExpiryWorker {
	if interval <= 0 || interval > time.Second {
		interval = time.Second
	}
	return &ExpiryWorker{
		index:     index,
		submitter: submitter,
		interval:  interval,
		now:       time.Now,
		log:       log.With().Str("component", "expiry_worker").Logger(),
	}
}

// Start begins the polling loop. Call in a goroutine.
func (w *ExpiryWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("ExpiryWorker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("ExpiryWorker stopped")
			return
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick submits every session that is due now and returns how many it ended.
func (w *ExpiryWorker) Tick(ctx context.Context) int {
	ids, err := w.index.DueSessions(ctx, w.now(), ExpiryScanLimit)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Msg("Deadline scan failed")
		}
		return 0
	}

	ended := 0
	for _, id := range ids {
		ok, err := w.submitter.SubmitExpired(ctx, id)
		if err != nil {
			w.log.Error().Err(err).Str("session_id", id.String()).Msg("Auto-submit failed")
			continue
		}
		if ok {
			ended++
		}
	}

	if ended > 0 {
		w.log.Info().Int("count", ended).Msg("Auto-submitted expired sessions")
	}
	return ended
}
