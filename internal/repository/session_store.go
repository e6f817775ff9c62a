package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/litmusq-backend/internal/config"
	"github.com/stemsi/litmusq-backend/internal/quiz"
)

var (
	// ErrSessionMissing is returned when no snapshot exists for a session id.
	ErrSessionMissing = errors.New("session not found in store")
	// ErrSessionBusy is returned when a session kept changing under an update.
	ErrSessionBusy = errors.New("session is being modified concurrently")
)

const maxUpdateRetries = 5

// StoredSession is the value kept in Redis for a live session.
type StoredSession struct {
	UserID   int           `json:"user_id"`
	Snapshot quiz.Snapshot `json:"snapshot"`
}

// SessionStore keeps live session snapshots in Redis, together with a
// sorted set of deadlines for timed sessions that are still open.
type SessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSessionStore creates a SessionStore whose snapshots expire after ttl.
func NewSessionStore(rdb *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{rdb: rdb, ttl: ttl}
}

// Save writes the snapshot and keeps the deadline index in step with it.
func (s *SessionStore) Save(ctx context.Context, st *StoredSession) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		s.queueSave(ctx, pipe, st, raw)
		return nil
	})
	return err
}

func (s *SessionStore) queueSave(ctx context.Context, pipe redis.Pipeliner, st *StoredSession, raw []byte) {
	id := st.Snapshot.ID.String()
	pipe.Set(ctx, config.CacheKey.SessionKey(id), raw, s.ttl)

	deadlines := config.CacheKey.SessionDeadlinesKey()
	if st.Snapshot.Deadline != nil && !st.Snapshot.Submitted {
		pipe.ZAdd(ctx, deadlines, redis.Z{Score: float64(st.Snapshot.Deadline.UnixMilli()), Member: id})
	} else {
		pipe.ZRem(ctx, deadlines, id)
	}

	active := config.CacheKey.UserActiveSessionKey(st.UserID)
	if st.Snapshot.Submitted {
		pipe.Del(ctx, active)
	} else {
		pipe.Set(ctx, active, id, s.ttl)
	}
}

// Load reads a session. Returns ErrSessionMissing when it expired or never existed.
func (s *SessionStore) Load(ctx context.Context, id uuid.UUID) (*StoredSession, error) {
	return s.load(ctx, s.rdb, id)
}

func (s *SessionStore) load(ctx context.Context, c redis.Cmdable, id uuid.UUID) (*StoredSession, error) {
	raw, err := c.Get(ctx, config.CacheKey.SessionKey(id.String())).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionMissing
	}
	if err != nil {
		return nil, err
	}

	var st StoredSession
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &st, nil
}

// Update loads a session, lets fn change it and writes it back atomically.
// A write from another actor in between makes the update start over.
// When fn returns an error nothing is written and the error is returned.
func (s *SessionStore) Update(ctx context.Context, id uuid.UUID, fn func(st *StoredSession) error) error {
	key := config.CacheKey.SessionKey(id.String())

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			st, err := s.load(ctx, tx, id)
			if err != nil {
				return err
			}
			if err := fn(st); err != nil {
				return err
			}
			raw, err := json.Marshal(st)
			if err != nil {
				return fmt.Errorf("encode session: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				s.queueSave(ctx, pipe, st, raw)
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrSessionBusy
}

// ActiveSession returns the user's unfinished session, if any.
func (s *SessionStore) ActiveSession(ctx context.Context, userID int) (uuid.UUID, bool, error) {
	val, err := s.rdb.Get(ctx, config.CacheKey.UserActiveSessionKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	id, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("invalid active session id %q: %w", val, err)
	}
	return id, true, nil
}

// DueSessions returns up to limit open sessions whose deadline is at or before now.
func (s *SessionStore) DueSessions(ctx context.Context, now time.Time, limit int64) ([]uuid.UUID, error) {
	members, err := s.rdb.ZRangeByScore(ctx, config.CacheKey.SessionDeadlinesKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			// Unparseable members can never be submitted; drop them.
			s.rdb.ZRem(ctx, config.CacheKey.SessionDeadlinesKey(), m)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// DeadlineStats reports how many timed sessions are tracked and how many of
// them are already past their deadline.
func (s *SessionStore) DeadlineStats(ctx context.Context, now time.Time) (tracked, overdue int64, err error) {
	key := config.CacheKey.SessionDeadlinesKey()
	pipe := s.rdb.Pipeline()
	card := pipe.ZCard(ctx, key)
	due := pipe.ZCount(ctx, key, "-inf", strconv.FormatInt(now.UnixMilli(), 10))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}
	return card.Val(), due.Val(), nil
}

// Delete drops a session snapshot and its deadline entry.
func (s *SessionStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, config.CacheKey.SessionKey(id.String()))
		pipe.ZRem(ctx, config.CacheKey.SessionDeadlinesKey(), id.String())
		return nil
	})
	return err
}

// ForgetDeadline removes a session from the deadline index.
func (s *SessionStore) ForgetDeadline(ctx context.Context, id uuid.UUID) error {
	return s.rdb.ZRem(ctx, config.CacheKey.SessionDeadlinesKey(), id.String()).Err()
}

// Publish announces a session event to stream subscribers.
func (s *SessionStore) Publish(ctx context.Context, id uuid.UUID, event any) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.rdb.Publish(ctx, config.CacheKey.SessionChannel(id.String()), raw).Err()
}

// Subscribe listens for events about one session. The caller closes the PubSub.
func (s *SessionStore) Subscribe(ctx context.Context, id uuid.UUID) *redis.PubSub {
	return s.rdb.Subscribe(ctx, config.CacheKey.SessionChannel(id.String()))
}

// ResultQueue hands scored results to the result worker.
type ResultQueue struct {
	rdb *redis.Client
}

// NewResultQueue creates a new ResultQueue.
func NewResultQueue(rdb *redis.Client) *ResultQueue {
	return &ResultQueue{rdb: rdb}
}

// Push enqueues an entry for persistence.
func (q *ResultQueue) Push(ctx context.Context, e ResultEntry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return q.rdb.RPush(ctx, config.PersistResultsQueue, raw).Err()
}

// Len reports how many results are waiting for the worker.
func (q *ResultQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, config.PersistResultsQueue).Result()
}
