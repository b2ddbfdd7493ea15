package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"codingescape/internal/escape"
)

// LeaderboardCache keeps each player's best time per difficulty in a Redis ZSET
type LeaderboardCache interface {
	// Record stores the entry if the board is warm or being rebuilt and it beats
	// the player's cached best. Reports whether the cache changed.
	Record(ctx context.Context, difficulty string, entry LeaderboardEntry) (bool, error)
	// GetTop returns the fastest entries; warm is false when the board must be rebuilt
	GetTop(ctx context.Context, difficulty string, limit int) (entries []LeaderboardEntry, warm bool, err error)
	// BeginRebuild empties the board and keeps accepting records until Warm.
	// Call it before reading the store.
	BeginRebuild(ctx context.Context, difficulty string) error
	// Warm merges the store's best times into the board and marks it warm
	Warm(ctx context.Context, difficulty string, entries []LeaderboardEntry) error
	Remove(ctx context.Context, userID string) error
}

// LeaderboardEntry is one player's best run
type LeaderboardEntry struct {
	UserID     string    `json:"userId"`
	TimeTaken  int       `json:"timeTaken"`
	FinishedAt time.Time `json:"finishedAt"`
	Rank       int       `json:"rank"`
}

// recordScript lowers a player's score and writes the row in one step.
// KEYS: board, rows, warm marker, rebuild marker. ARGV: score, user, row, force.
var recordScript = redis.NewScript(`
if ARGV[4] ~= "1" and redis.call("EXISTS", KEYS[3]) == 0 and redis.call("EXISTS", KEYS[4]) == 0 then
	return 0
end
if redis.call("ZADD", KEYS[1], "LT", "CH", ARGV[1], ARGV[2]) == 0 then
	return 0
end
redis.call("HSET", KEYS[2], ARGV[2], ARGV[3])
return 1
`)

type leaderboardCache struct {
	client     *redis.Client
	warmTTL    time.Duration
	rebuildTTL time.Duration
}

// NewLeaderboardCache creates a new leaderboard cache
func NewLeaderboardCache(client *redis.Client) LeaderboardCache {
	return &leaderboardCache{
		client:     client,
		warmTTL:    time.Hour, // board is rebuilt from the store after this
		rebuildTTL: 30 * time.Second,
	}
}

func (c *leaderboardCache) key(difficulty string) string {
	return fmt.Sprintf("lb:%s", difficulty)
}

func (c *leaderboardCache) rowsKey(difficulty string) string {
	return fmt.Sprintf("lb:%s:rows", difficulty)
}

func (c *leaderboardCache) warmKey(difficulty string) string {
	return fmt.Sprintf("lb:%s:warm", difficulty)
}

func (c *leaderboardCache) rebuildKey(difficulty string) string {
	return fmt.Sprintf("lb:%s:rebuild", difficulty)
}

func (c *leaderboardCache) record(ctx context.Context, difficulty string, entry LeaderboardEntry, force bool) (bool, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return false, err
	}
	flag := "0"
	if force {
		flag = "1"
	}
	keys := []string{c.key(difficulty), c.rowsKey(difficulty), c.warmKey(difficulty), c.rebuildKey(difficulty)}
	changed, err := recordScript.Run(ctx, c.client, keys, entry.TimeTaken, entry.UserID, data, flag).Int()
	return changed == 1, err
}

func (c *leaderboardCache) isWarm(ctx context.Context, difficulty string) (bool, error) {
	n, err := c.client.Exists(ctx, c.warmKey(difficulty)).Result()
	return n == 1, err
}

func (c *leaderboardCache) Record(ctx context.Context, difficulty string, entry LeaderboardEntry) (bool, error) {
	return c.record(ctx, difficulty, entry, false)
}

func (c *leaderboardCache) GetTop(ctx context.Context, difficulty string, limit int) ([]LeaderboardEntry, bool, error) {
	warm, err := c.isWarm(ctx, difficulty)
	if err != nil || !warm {
		return nil, false, err
	}

	results, err := c.client.ZRangeWithScores(ctx, c.key(difficulty), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, false, err
	}
	if len(results) == 0 {
		return []LeaderboardEntry{}, true, nil
	}

	ids := make([]string, len(results))
	for i, z := range results {
		ids[i] = z.Member.(string)
	}
	rows, err := c.client.HMGet(ctx, c.rowsKey(difficulty), ids...).Result()
	if err != nil {
		return nil, false, err
	}

	entries := make([]LeaderboardEntry, len(results))
	for i, z := range results {
		entry := LeaderboardEntry{UserID: ids[i]}
		if raw, ok := rows[i].(string); ok {
			_ = json.Unmarshal([]byte(raw), &entry)
		}
		entry.UserID = ids[i]
		entry.TimeTaken = int(z.Score)
		entry.Rank = i + 1
		entries[i] = entry
	}
	return entries, true, nil
}

func (c *leaderboardCache) BeginRebuild(ctx context.Context, difficulty string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, c.rebuildKey(difficulty), "1", c.rebuildTTL)
		pipe.Del(ctx, c.key(difficulty), c.rowsKey(difficulty))
		return nil
	})
	return err
}

// Warm never clears the board, so records that landed during the rebuild stay
func (c *leaderboardCache) Warm(ctx context.Context, difficulty string, entries []LeaderboardEntry) error {
	for _, e := range entries {
		if _, err := c.record(ctx, difficulty, e, true); err != nil {
			return err
		}
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, c.warmKey(difficulty), "1", c.warmTTL)
		pipe.Del(ctx, c.rebuildKey(difficulty))
		return nil
	})
	return err
}

func (c *leaderboardCache) Remove(ctx context.Context, userID string) error {
	_, err := c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, d := range escape.Difficulties {
			pipe.ZRem(ctx, c.key(string(d)), userID)
			pipe.HDel(ctx, c.rowsKey(string(d)), userID)
		}
		return nil
	})
	return err
}
