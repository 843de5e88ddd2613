// Package sweep tracks jobs that are still waiting on an executor callback.
// Tracking ids live in a Redis sorted set scored by a deadline; the sweeper
// binary pops due entries and resolves them by fetching the executor's result
// directly, covering webhooks that were lost or badly delayed.
package sweep

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const pendingKey = "jobs:pending"

// Kind distinguishes the two job families a tracked id can belong to.
type Kind string

const (
	KindTraining Kind = "train"
	KindImage    Kind = "image"
)

// Entry is one due job popped from the pending set.
type Entry struct {
	Kind       Kind
	TrackingID string
}

// Tracker records pending tracking ids. A nil Tracker is valid and turns all
// operations into no-ops, so the lifecycle works without Redis.
type Tracker struct {
	rdb *redis.Client
}

func NewTracker(rdb *redis.Client) *Tracker {
	if rdb == nil {
		return nil
	}
	return &Tracker{rdb: rdb}
}

// Add registers a tracking id with the given sweep deadline.
func (t *Tracker) Add(ctx context.Context, kind Kind, trackingID string, deadline time.Time) error {
	if t == nil {
		return nil
	}
	member := member(kind, trackingID)
	if err := t.rdb.ZAdd(ctx, pendingKey, redis.Z{Score: float64(deadline.Unix()), Member: member}).Err(); err != nil {
		return fmt.Errorf("sweep: add %s: %w", member, err)
	}
	return nil
}

// Remove drops a tracking id, called on every terminal transition.
func (t *Tracker) Remove(ctx context.Context, kind Kind, trackingID string) error {
	if t == nil {
		return nil
	}
	member := member(kind, trackingID)
	if err := t.rdb.ZRem(ctx, pendingKey, member).Err(); err != nil {
		return fmt.Errorf("sweep: remove %s: %w", member, err)
	}
	return nil
}

// PopDue removes and returns up to limit entries whose deadline has passed.
// Entries for jobs that are still running should be re-added with a new
// deadline by the caller.
func (t *Tracker) PopDue(ctx context.Context, now time.Time, limit int) ([]Entry, error) {
	if t == nil {
		return nil, nil
	}
	opt := &redis.ZRangeBy{Min: "-inf", Max: fmt.Sprintf("%d", now.Unix()), Count: int64(limit)}
	members, err := t.rdb.ZRangeByScore(ctx, pendingKey, opt).Result()
	if err != nil {
		return nil, fmt.Errorf("sweep: range due: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}
	removed := make([]any, len(members))
	for i, m := range members {
		removed[i] = m
	}
	if err := t.rdb.ZRem(ctx, pendingKey, removed...).Err(); err != nil {
		return nil, fmt.Errorf("sweep: pop due: %w", err)
	}

	entries := make([]Entry, 0, len(members))
	for _, m := range members {
		kind, id, ok := strings.Cut(m, ":")
		if !ok {
			continue
		}
		entries = append(entries, Entry{Kind: Kind(kind), TrackingID: id})
	}
	return entries, nil
}

func member(kind Kind, trackingID string) string {
	return string(kind) + ":" + trackingID
}
