// Package publish fans pipeline snapshots out to Redis.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rustyeddy/srtrader/pipeline"
)

// Client is the subset of *redis.Client the publisher uses.
type Client interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Options configures a Redis publisher.
type Options struct {
	Channel   string
	LatestKey string

	// After MaxFailures consecutive errors publishing pauses for
	// RetryAfter. Defaults 3 and 30s.
	MaxFailures int
	RetryAfter  time.Duration

	// Timeout bounds each snapshot write. Defaults to 500ms.
	Timeout time.Duration

	// OnError, when set, is called for every failed publish.
	OnError func(error)

	Logger zerolog.Logger
}

// Redis publishes every snapshot on a channel and keeps the latest one
// under a key. It degrades to a no-op while Redis is unreachable.
type Redis struct {
	client Client
	opts   Options
	log    zerolog.Logger

	mu        sync.Mutex
	failures  int
	pausedTil time.Time
	now       func() time.Time
}

// Dial connects to Redis and verifies connectivity. Commands are not
// retried.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   -1,
		DialTimeout:  time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func NewRedis(client Client, opts Options) *Redis {
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = 3
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = 30 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 500 * time.Millisecond
	}
	return &Redis{
		client: client,
		opts:   opts,
		log:    opts.Logger.With().Str("component", "redis-publish").Logger(),
		now:    time.Now,
	}
}

func (r *Redis) OnSnapshot(ctx context.Context, s pipeline.Snapshot) error {
	if r.paused() {
		return nil
	}

	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	if r.opts.Channel != "" {
		if err := r.client.Publish(ctx, r.opts.Channel, payload).Err(); err != nil {
			return r.fail(fmt.Errorf("publish %s: %w", r.opts.Channel, err))
		}
	}
	if r.opts.LatestKey != "" {
		if err := r.client.Set(ctx, r.opts.LatestKey, payload, 0).Err(); err != nil {
			return r.fail(fmt.Errorf("set %s: %w", r.opts.LatestKey, err))
		}
	}

	r.mu.Lock()
	if r.failures >= r.opts.MaxFailures {
		r.log.Info().Msg("redis recovered")
	}
	r.failures = 0
	r.mu.Unlock()
	return nil
}

func (r *Redis) paused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.now().Before(r.pausedTil)
}

func (r *Redis) fail(err error) error {
	if r.opts.OnError != nil {
		r.opts.OnError(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures++
	if r.failures >= r.opts.MaxFailures {
		r.pausedTil = r.now().Add(r.opts.RetryAfter)
		r.log.Warn().Err(err).Int("failures", r.failures).Dur("retry_in", r.opts.RetryAfter).Msg("redis unavailable, pausing")
	}
	return err
}
