package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SessionKey returns the cache key holding a quiz session snapshot
func (r *CacheKeyStruct) SessionKey(sessionID string) string {
	return fmt.Sprintf("quiz:session:%s", sessionID)
}

// SessionDeadlinesKey returns the sorted set of timed sessions scored by deadline (unix milliseconds)
func (r *CacheKeyStruct) SessionDeadlinesKey() string {
	return "quiz:session_deadlines"
}

// UserActiveSessionKey returns the cache key pointing at a user's unfinished session
func (r *CacheKeyStruct) UserActiveSessionKey(userID int) string {
	return fmt.Sprintf("user:%d:active_session", userID)
}

// BankQuestionsKey returns the cache key for a question bank's loaded questions
func (r *CacheKeyStruct) BankQuestionsKey(bankID string) string {
	return fmt.Sprintf("bank:%s:questions", bankID)
}

// SessionChannel returns the Redis PubSub channel announcing changes to a session
func (r *CacheKeyStruct) SessionChannel(sessionID string) string {
	return fmt.Sprintf("quiz:session:%s:events", sessionID)
}

var CacheKey = NewCacheKeyStruct()

// PersistResultsQueue is the Redis list the result worker drains into PostgreSQL.
const PersistResultsQueue = "persist_results_queue"

// DeadResultsQueue holds results the worker gave up on after repeated insert failures.
const DeadResultsQueue = "persist_results_dead"
