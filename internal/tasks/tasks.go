// Package tasks runs named background jobs over a Redis list broker with a
// Redis hash result backend.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Status is the lifecycle state recorded in the result backend.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusStarted Status = "STARTED"
	StatusRetry   Status = "RETRY"
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

// Ready reports whether the task has finished, successfully or not.
func (s Status) Ready() bool { return s == StatusSuccess || s == StatusFailure }

// Envelope is the broker message.
type Envelope struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Args       json.RawMessage `json:"args"`
	Attempt    int             `json:"attempt"`
	MaxRetries int             `json:"max_retries"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Task is handed to a Handler for one execution attempt.
type Task struct {
	ID      string
	Name    string
	Args    json.RawMessage
	Attempt int

	backend *backend
}

// Bind decodes the task arguments into dst.
func (t *Task) Bind(dst interface{}) error {
	if len(t.Args) == 0 {
		return nil
	}
	if err := json.Unmarshal(t.Args, dst); err != nil {
		return fmt.Errorf("task %s: decode args: %w", t.Name, err)
	}
	return nil
}

// Progress records a human readable progress note on the result.
func (t *Task) Progress(ctx context.Context, info string) {
	if t.backend != nil {
		_ = t.backend.setInfo(ctx, t.ID, info)
	}
}

// Handler executes a task and returns a JSON-serialisable result.
type Handler func(ctx context.Context, t *Task) (interface{}, error)

// Options tune retries and limits per task name.
type Options struct {
	Queue      string
	MaxRetries int
	RetryDelay time.Duration
	// Backoff multiplies RetryDelay by 2^attempt when set.
	Backoff   bool
	TimeLimit time.Duration
}

type registration struct {
	handler Handler
	opts    Options
}

// Registry maps task names to handlers.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]registration
}

func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]registration)}
}

// Register binds name to handler. Registering a name twice replaces it.
func (r *Registry) Register(name string, handler Handler, opts Options) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[name] = registration{handler: handler, opts: opts}
}

func (r *Registry) lookup(name string) (registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.tasks[name]
	return reg, ok
}

// Options returns the options registered for name.
func (r *Registry) Options(name string) (Options, bool) {
	reg, ok := r.lookup(name)
	return reg.opts, ok
}

// Names lists registered task names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Queues lists the distinct queues referenced by registrations plus def.
func (r *Registry) Queues(def string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := map[string]bool{def: true}
	queues := []string{def}
	for _, reg := range r.tasks {
		if reg.opts.Queue != "" && !seen[reg.opts.Queue] {
			seen[reg.opts.Queue] = true
			queues = append(queues, reg.opts.Queue)
		}
	}
	sort.Strings(queues[1:])
	return queues
}

// retryDelay returns the countdown before the given retry attempt (1-based).
func (o Options) retryDelay(attempt int) time.Duration {
	delay := o.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}
	if o.Backoff && attempt > 1 {
		delay <<= uint(attempt - 1)
	}
	return delay
}
