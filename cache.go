package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// LeaderboardCache memoises the overall leaderboard of a group. Entries are
// stored under a per-group version; Invalidate bumps the version, so rows
// computed before an invalidation can never be served after it. A reader
// takes the version before querying the database and writes under it.
type LeaderboardCache interface {
	// Version reports the group's current cache version. ok is false when
	// the cache is unusable and the caller should neither read nor write.
	Version(ctx context.Context, groupID string) (v int64, ok bool)
	Get(ctx context.Context, groupID string, version int64) ([]LeaderboardRow, bool)
	Set(ctx context.Context, groupID string, version int64, rows []LeaderboardRow)
	Invalidate(ctx context.Context, groupIDs ...string)
}

type nopCache struct{}

func (nopCache) Version(context.Context, string) (int64, bool)               { return 0, false }
func (nopCache) Get(context.Context, string, int64) ([]LeaderboardRow, bool) { return nil, false }
func (nopCache) Set(context.Context, string, int64, []LeaderboardRow)        {}
func (nopCache) Invalidate(context.Context, ...string)                       {}

type RedisLeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLeaderboardCache(client *redis.Client, ttl time.Duration) *RedisLeaderboardCache {
	return &RedisLeaderboardCache{client: client, ttl: ttl}
}

func leaderboardVersionKey(groupID string) string {
	return "leaderboard:" + groupID + ":version"
}

func leaderboardKey(groupID string, version int64) string {
	return "leaderboard:" + groupID + ":overall:" + strconv.FormatInt(version, 10)
}

func (r *RedisLeaderboardCache) Version(ctx context.Context, groupID string) (int64, bool) {
	v, err := r.client.Get(ctx, leaderboardVersionKey(groupID)).Int64()
	switch {
	case err == redis.Nil:
		return 0, true
	case err != nil:
		slog.Warn("leaderboard version read failed", "group_id", groupID, "error", err)
		return 0, false
	}
	return v, true
}

func (r *RedisLeaderboardCache) Get(ctx context.Context, groupID string, version int64) ([]LeaderboardRow, bool) {
	raw, err := r.client.Get(ctx, leaderboardKey(groupID, version)).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("leaderboard cache read failed", "group_id", groupID, "error", err)
		}
		return nil, false
	}
	var rows []LeaderboardRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, false
	}
	return rows, true
}

func (r *RedisLeaderboardCache) Set(ctx context.Context, groupID string, version int64, rows []LeaderboardRow) {
	raw, err := json.Marshal(rows)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, leaderboardKey(groupID, version), raw, r.ttl).Err(); err != nil {
		slog.Warn("leaderboard cache write failed", "group_id", groupID, "error", err)
	}
}

// Invalidate bumps each group's version. Superseded entries expire by TTL.
func (r *RedisLeaderboardCache) Invalidate(ctx context.Context, groupIDs ...string) {
	if len(groupIDs) == 0 {
		return
	}
	_, err := r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, g := range groupIDs {
			p.Incr(ctx, leaderboardVersionKey(g))
		}
		return nil
	})
	if err != nil {
		slog.Warn("leaderboard cache invalidation failed", "error", err)
	}
}
