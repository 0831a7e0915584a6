package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pragati/exam-engine/internal/config"
	"github.com/pragati/exam-engine/internal/model"
	"github.com/redis/go-redis/v9"
)

// PaperCache keeps catalog snapshots in Redis so starting an attempt does
// not hit the catalog tables on every request.
type PaperCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPaperCache creates a new PaperCache.
func NewPaperCache(rdb *redis.Client, ttl time.Duration) *PaperCache {
	return &PaperCache{rdb: rdb, ttl: ttl}
}

// GetPaper returns the cached snapshot or ErrCacheMiss.
func (c *PaperCache) GetPaper(ctx context.Context, examID int64) (*model.PaperSnapshot, error) {
	data, err := c.rdb.Get(ctx, config.CacheKey.ExamPaperKey(examID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("get paper: %w", err)
	}

	var paper model.PaperSnapshot
	if err := json.Unmarshal(data, &paper); err != nil {
		return nil, fmt.Errorf("unmarshal paper: %w", err)
	}
	return &paper, nil
}

// SetPaper stores a snapshot with the configured TTL.
func (c *PaperCache) SetPaper(ctx context.Context, paper *model.PaperSnapshot) error {
	data, err := json.Marshal(paper)
	if err != nil {
		return fmt.Errorf("marshal paper: %w", err)
	}
	if err := c.rdb.Set(ctx, config.CacheKey.ExamPaperKey(paper.Exam.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache paper: %w", err)
	}
	return nil
}

// DeletePaper drops the cached snapshot of an exam.
func (c *PaperCache) DeletePaper(ctx context.Context, examID int64) error {
	return c.rdb.Del(ctx, config.CacheKey.ExamPaperKey(examID)).Err()
}
