package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Config names the broker layout.
type Config struct {
	Prefix       string
	DefaultQueue string
	ResultTTL    time.Duration
	// ShutdownGrace is how long Stop lets running tasks finish before
	// cancelling them. Cancelled tasks go back on their queue.
	ShutdownGrace time.Duration
}

func (c Config) withDefaults() Config {
	if c.Prefix == "" {
		c.Prefix = "edushop"
	}
	if c.DefaultQueue == "" {
		c.DefaultQueue = "tasks"
	}
	if c.ResultTTL <= 0 {
		c.ResultTTL = 24 * time.Hour
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = 10 * time.Second
	}
	return c
}

// Client enqueues tasks and reads their results.
type Client struct {
	backend  *backend
	registry *Registry
	cfg      Config
}

// NewClient builds a producer. registry may be nil; when set, its options
// pick the queue and retry budget for each task name.
func NewClient(rdb *redis.Client, registry *Registry, cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{backend: newBackend(rdb, cfg.Prefix, cfg.ResultTTL), registry: registry, cfg: cfg}
}

// Enqueue publishes name with args and returns the new task id.
func (c *Client) Enqueue(ctx context.Context, name string, args interface{}) (string, error) {
	return c.EnqueueIn(ctx, name, args, 0)
}

// EnqueueIn publishes name to run no earlier than delay from now.
func (c *Client) EnqueueIn(ctx context.Context, name string, args interface{}, delay time.Duration) (string, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("task %s: encode args: %w", name, err)
	}
	queue := c.cfg.DefaultQueue
	maxRetries := 0
	if c.registry != nil {
		if opts, ok := c.registry.Options(name); ok {
			if opts.Queue != "" {
				queue = opts.Queue
			}
			maxRetries = opts.MaxRetries
		}
	}

	env := Envelope{
		ID:         uuid.NewString(),
		Name:       name,
		Args:       raw,
		MaxRetries: maxRetries,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := c.backend.setStatus(ctx, env.ID, name, StatusPending); err != nil {
		return "", fmt.Errorf("task %s: record: %w", name, err)
	}
	if delay > 0 {
		err = c.backend.schedule(ctx, queue, env, env.EnqueuedAt.Add(delay))
	} else {
		err = c.backend.push(ctx, queue, env)
	}
	if err != nil {
		return "", fmt.Errorf("task %s: publish: %w", name, err)
	}
	return env.ID, nil
}

// Status returns the stored result for id. Unknown ids are PENDING.
func (c *Client) Status(ctx context.Context, id string) (Result, error) {
	return c.backend.read(ctx, id)
}

// Queue is the producer surface services depend on.
type Queue interface {
	Enqueuer
	Status(ctx context.Context, id string) (Result, error)
}

var _ Queue = (*Client)(nil)
