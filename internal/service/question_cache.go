package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/litmusq-backend/internal/config"
	"github.com/stemsi/litmusq-backend/internal/quiz"
)

// CachedQuestionSource keeps loaded banks in Redis so starting a session
// does not hit PostgreSQL every time.
type CachedQuestionSource struct {
	inner QuestionSource
	rdb   *redis.Client
	ttl   time.Duration
	log   zerolog.Logger
}

// NewCachedQuestionSource wraps inner with a Redis cache.
func NewCachedQuestionSource(inner QuestionSource, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *CachedQuestionSource {
	return &CachedQuestionSource{
		inner: inner,
		rdb:   rdb,
		ttl:   ttl,
		log:   log.With().Str("component", "question_cache").Logger(),
	}
}

// LoadQuestions serves a bank from cache, falling back to the wrapped source.
func (c *CachedQuestionSource) LoadQuestions(ctx context.Context, bankID uuid.UUID) ([]quiz.QuestionRecord, error) {
	key := config.CacheKey.BankQuestionsKey(bankID.String())

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var qs []quiz.QuestionRecord
		if err := json.Unmarshal(raw, &qs); err == nil {
			return qs, nil
		}
		c.log.Warn().Str("bank_id", bankID.String()).Msg("Discarding undecodable cache entry")
	case !errors.Is(err, redis.Nil):
		// Redis trouble should not stop a session from starting.
		c.log.Warn().Err(err).Msg("Bank cache read failed")
	}

	qs, err := c.inner.LoadQuestions(ctx, bankID)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(qs); err == nil {
		if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.log.Warn().Err(err).Msg("Bank cache write failed")
		}
	}
	return qs, nil
}

// Invalidate drops a bank from the cache.
func (c *CachedQuestionSource) Invalidate(ctx context.Context, bankID uuid.UUID) error {
	return c.rdb.Del(ctx, config.CacheKey.BankQuestionsKey(bankID.String())).Err()
}
