// Package activity keeps a capped, newest-first list of engine events
// per account in Redis.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/neuralforge/platform/pkg/account"
	"github.com/neuralforge/platform/pkg/common/models"
	"github.com/neuralforge/platform/pkg/observability/metrics"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "activity:"
	seenPrefix = "activity:seen:"
	seenTTL    = 24 * time.Hour
)

type Feed struct {
	client redis.Cmdable
	limit  int64
}

func NewFeed(client redis.Cmdable, limit int) *Feed {
	if limit <= 0 {
		limit = 200
	}
	return &Feed{client: client, limit: int64(limit)}
}

// Key is the Redis list holding a's feed.
func Key(a string) string { return keyPrefix + a }

// EntryFor is the feed entry stored for ev.
func EntryFor(ev models.Event) models.ActivityEntry {
	return models.ActivityEntry{
		EventID:   ev.ID,
		Sequence:  ev.Sequence,
		Type:      ev.Type,
		Caller:    ev.Caller,
		Data:      ev.Data,
		Timestamp: ev.Timestamp,
	}
}

// Targets lists the distinct user accounts ev belongs to. Module
// accounts have no feed.
func Targets(ev models.Event) []string {
	seen := make(map[string]struct{}, len(ev.Accounts))
	var out []string
	for _, a := range ev.Accounts {
		if a == "" || account.Account(a).IsModule() {
			continue
		}
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}

// Record appends ev to the feed of every account it concerns. A
// redelivered event is recognised by its ID and skipped.
func (f *Feed) Record(ctx context.Context, ev models.Event) error {
	targets := Targets(ev)
	if len(targets) == 0 {
		return nil
	}
	payload, err := json.Marshal(EntryFor(ev))
	if err != nil {
		return fmt.Errorf("marshal activity entry: %w", err)
	}

	seenKey := seenPrefix + ev.ID
	fresh, err := f.client.SetNX(ctx, seenKey, ev.Sequence, seenTTL).Result()
	if err != nil {
		return fmt.Errorf("dedupe %s: %w", ev.ID, err)
	}
	if !fresh {
		return nil
	}

	_, err = f.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, a := range targets {
			pipe.LPush(ctx, Key(a), payload)
			pipe.LTrim(ctx, Key(a), 0, f.limit-1)
		}
		return nil
	})
	if err != nil {
		// Let the redelivery write it.
		f.client.Del(ctx, seenKey)
		return fmt.Errorf("record %s: %w", ev.ID, err)
	}
	metrics.ObserveActivity(len(targets))
	return nil
}

// Recent returns up to limit entries for a, newest first.
func (f *Feed) Recent(ctx context.Context, a string, limit int) ([]models.ActivityEntry, error) {
	if limit <= 0 || int64(limit) > f.limit {
		limit = int(f.limit)
	}
	raw, err := f.client.LRange(ctx, Key(a), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read activity for %s: %w", a, err)
	}
	entries := make([]models.ActivityEntry, 0, len(raw))
	for _, item := range raw {
		var entry models.ActivityEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("decode activity entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
