package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ExamPaperKey returns the cache key for an exam's catalog snapshot
// (questions, options and answer key).
func (r *CacheKeyStruct) ExamPaperKey(examID int64) string {
	return fmt.Sprintf("exam:%d:paper", examID)
}

// ExpirySweepLockKey returns the key of the lock held by the replica that
// currently runs the expiry sweep.
func (r *CacheKeyStruct) ExpirySweepLockKey() string {
	return "worker:expiry_sweep:lock"
}

// AttemptEventsChannel returns the Redis PubSub channel on which attempt
// lifecycle events for an exam are published.
func (r *CacheKeyStruct) AttemptEventsChannel(examID int64) string {
	return fmt.Sprintf("exam:%d:attempt_events", examID)
}

var CacheKey = NewCacheKeyStruct()
