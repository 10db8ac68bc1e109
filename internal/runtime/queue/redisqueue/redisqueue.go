// Package redisqueue implements queue.Client on Redis (or Valkey) sorted sets,
// the layout the orchestrator reads and writes natively.
package redisqueue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	errorspkg "github.com/drblury/actionflow/internal/runtime/errors"
	"github.com/drblury/actionflow/internal/runtime/jsoncodec"
	"github.com/drblury/actionflow/internal/runtime/queue"
)

const (
	// HeartbeatHash maps topic names to their last heartbeat.
	HeartbeatHash = "org.deltafi.action-queue.heartbeat"
	// LongRunningTasksHash maps "class:action:did" to "[start, heartbeat]".
	LongRunningTasksHash = "org.deltafi.action-queue.long-running-tasks"

	defaultPollTimeout = 5 * time.Second
)

// Options configures a Client.
type Options struct {
	// URL is either a redis:// URL or a bare host:port address.
	URL      string
	Password string
	DB       int
	// PollTimeout bounds each blocking pop so Take observes cancellation.
	PollTimeout time.Duration
}

// Client is a queue.Client backed by Redis.
type Client struct {
	rdb         redis.UniversalClient
	pollTimeout time.Duration
	now         func() time.Time
}

var _ queue.Client = (*Client)(nil)

// New connects to Redis using opts. The connection is established lazily.
func New(opts Options) (*Client, error) {
	ro, err := redisOptions(opts)
	if err != nil {
		return nil, err
	}
	return NewWithClient(redis.NewClient(ro), opts.PollTimeout), nil
}

// NewWithClient wraps an existing go-redis client.
func NewWithClient(rdb redis.UniversalClient, pollTimeout time.Duration) *Client {
	if pollTimeout <= 0 {
		pollTimeout = defaultPollTimeout
	}
	return &Client{rdb: rdb, pollTimeout: pollTimeout, now: time.Now}
}

func redisOptions(opts Options) (*redis.Options, error) {
	if opts.URL == "" {
		return nil, errors.New("redisqueue: URL is required")
	}
	if !strings.Contains(opts.URL, "://") {
		return &redis.Options{Addr: opts.URL, Password: opts.Password, DB: opts.DB}, nil
	}
	ro, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("redisqueue: parse URL: %w", err)
	}
	if opts.Password != "" {
		ro.Password = opts.Password
	}
	if opts.DB != 0 {
		ro.DB = opts.DB
	}
	return ro, nil
}

// Take pops the oldest member of the topic's sorted set, blocking until one
// is available or ctx is done.
func (c *Client) Take(ctx context.Context, topic string) ([]byte, error) {
	if topic == "" {
		return nil, errorspkg.ErrTopicRequired
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := c.rdb.BZPopMin(ctx, c.pollTimeout, topic).Result()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case errors.Is(err, redis.ErrClosed):
			return nil, errorspkg.ErrQueueClosed
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("redisqueue: take %s: %w", topic, err)
		}
		member, ok := res.Member.(string)
		if !ok {
			return nil, fmt.Errorf("redisqueue: take %s: unexpected member type %T", topic, res.Member)
		}
		return []byte(member), nil
	}
}

// Put adds payload to the topic scored by the current time in epoch
// milliseconds. An identical payload already queued is left in place.
func (c *Client) Put(ctx context.Context, topic string, payload []byte) error {
	if topic == "" {
		return errorspkg.ErrTopicRequired
	}
	z := redis.Z{Score: float64(c.now().UnixMilli()), Member: string(payload)}
	if err := c.rdb.ZAddNX(ctx, topic, z).Err(); err != nil {
		return c.wrap("put "+topic, err)
	}
	return nil
}

// Heartbeat records the current time for topic.
func (c *Client) Heartbeat(ctx context.Context, topic string) error {
	if err := c.rdb.HSet(ctx, HeartbeatHash, topic, c.now().Format(time.RFC3339Nano)).Err(); err != nil {
		return c.wrap("heartbeat "+topic, err)
	}
	return nil
}

// RecordLongRunningTask stores the execution start and the current time.
func (c *Client) RecordLongRunningTask(ctx context.Context, exec queue.ActionExecution) error {
	value, err := jsoncodec.Marshal([]string{
		exec.StartTime.Format(time.RFC3339Nano),
		c.now().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("redisqueue: encode long-running task: %w", err)
	}
	if err := c.rdb.HSet(ctx, LongRunningTasksHash, exec.Key(), string(value)).Err(); err != nil {
		return c.wrap("record long-running task", err)
	}
	return nil
}

// RemoveLongRunningTask deletes the execution's long-running record.
func (c *Client) RemoveLongRunningTask(ctx context.Context, exec queue.ActionExecution) error {
	if err := c.rdb.HDel(ctx, LongRunningTasksHash, exec.Key()).Err(); err != nil {
		return c.wrap("remove long-running task", err)
	}
	return nil
}

// LongRunningTask is the stored form of a long-running execution.
type LongRunningTask struct {
	StartTime time.Time
	Heartbeat time.Time
}

// LongRunningTasks lists the recorded long-running executions by key.
// Malformed entries are skipped.
func (c *Client) LongRunningTasks(ctx context.Context) (map[string]LongRunningTask, error) {
	all, err := c.rdb.HGetAll(ctx, LongRunningTasksHash).Result()
	if err != nil {
		return nil, c.wrap("list long-running tasks", err)
	}
	out := make(map[string]LongRunningTask, len(all))
	for key, raw := range all {
		var times []time.Time
		if err := jsoncodec.Unmarshal([]byte(raw), &times); err != nil || len(times) != 2 {
			continue
		}
		out[key] = LongRunningTask{StartTime: times[0], Heartbeat: times[1]}
	}
	return out, nil
}

// Close releases the underlying connections.
func (c *Client) Close() error {
	err := c.rdb.Close()
	if errors.Is(err, redis.ErrClosed) {
		return nil
	}
	return err
}

func (c *Client) wrap(op string, err error) error {
	if errors.Is(err, redis.ErrClosed) {
		return errorspkg.ErrQueueClosed
	}
	return fmt.Errorf("redisqueue: %s: %w", op, err)
}
