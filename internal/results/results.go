// Package results publishes the outcome of finished games.
package results

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
)

// Score is one player's final result.
type Score struct {
	Addr  string `json:"addr"`
	Name  string `json:"name"`
	ID    int    `json:"id"`
	Score int    `json:"score"`
}

// Result describes a finished game.
type Result struct {
	RunID      string    `json:"runId"`
	Room       string    `json:"room"`
	Ticks      int       `json:"ticks"`
	FinishedAt time.Time `json:"finishedAt"`
	Scores     []Score   `json:"scores"`
}

// Recorder receives every finished game.
type Recorder interface {
	Record(ctx context.Context, r *Result) error
}

// RedisRecorder pushes results onto a capped Redis list and publishes them
// on a channel for live listeners.
type RedisRecorder struct {
	pool    *redis.Pool
	key     string
	channel string
	keep    int
}

const defaultKeep = 1000

func NewRedisRecorder(pool *redis.Pool, key, channel string) *RedisRecorder {
	return &RedisRecorder{pool: pool, key: key, channel: channel, keep: defaultKeep}
}

// NewRedisPool dials addr lazily, the way the pool is meant to be shared
// for the process lifetime.
func NewRedisPool(addr string) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     4,
		IdleTimeout: 4 * time.Minute,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", addr,
				redis.DialConnectTimeout(2*time.Second),
				redis.DialReadTimeout(2*time.Second),
				redis.DialWriteTimeout(2*time.Second),
			)
		},
	}
}

func (rr *RedisRecorder) Record(ctx context.Context, r *Result) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	conn, err := rr.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("redis connection: %w", err)
	}
	defer conn.Close()

	conn.Send("MULTI")
	conn.Send("LPUSH", rr.key, payload)
	conn.Send("LTRIM", rr.key, 0, rr.keep-1)
	if rr.channel != "" {
		conn.Send("PUBLISH", rr.channel, payload)
	}
	if _, err := conn.Do("EXEC"); err != nil {
		return fmt.Errorf("store result %s: %w", r.RunID, err)
	}
	return nil
}

// Recent returns up to n of the latest results, newest first.
func (rr *RedisRecorder) Recent(ctx context.Context, n int) ([]Result, error) {
	conn, err := rr.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("redis connection: %w", err)
	}
	defer conn.Close()

	raw, err := redis.ByteSlices(conn.Do("LRANGE", rr.key, 0, n-1))
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	out := make([]Result, 0, len(raw))
	for _, b := range raw {
		var r Result
		if err := json.Unmarshal(b, &r); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}

// Close releases pooled connections.
func (rr *RedisRecorder) Close() error {
	return rr.pool.Close()
}
