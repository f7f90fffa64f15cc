package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/EduShopX/edushop/internal/app/system"
	"github.com/EduShopX/edushop/pkg/logger"
)

// ErrNoRetry marks a failure that must not be retried.
var ErrNoRetry = errors.New("task failed permanently")

// FailureHook runs after a task exhausts its retries.
type FailureHook func(ctx context.Context, env Envelope, err error)

// Observer receives one call per finished attempt.
type Observer func(name string, status Status, duration time.Duration)

// Worker consumes queues with a fixed pool of goroutines.
type Worker struct {
	backend     *backend
	registry    *Registry
	defQueue    string
	queues      []string
	concurrency int
	pollTimeout time.Duration
	promoteTick time.Duration
	grace       time.Duration
	log         *logger.Logger
	onFailure   FailureHook
	observer    Observer

	mu          sync.Mutex
	stopPolling context.CancelFunc
	stopTasks   context.CancelFunc
	wg          sync.WaitGroup
	running     bool
}

var _ system.Service = (*Worker)(nil)

// NewWorker builds a worker over every queue the registry references when
// it starts.
func NewWorker(rdb *redis.Client, registry *Registry, cfg Config, concurrency int, log *logger.Logger) *Worker {
	cfg = cfg.withDefaults()
	if log == nil {
		log = logger.NewDefault("worker")
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	w := &Worker{
		backend:     newBackend(rdb, cfg.Prefix, cfg.ResultTTL),
		registry:    registry,
		defQueue:    cfg.DefaultQueue,
		concurrency: concurrency,
		pollTimeout: time.Second,
		promoteTick: 500 * time.Millisecond,
		grace:       cfg.ShutdownGrace,
		log:         log,
	}
	w.onFailure = w.logFailure
	return w
}

// OnFailure replaces the failure hook.
func (w *Worker) OnFailure(hook FailureHook) {
	if hook != nil {
		w.onFailure = hook
	}
}

// WithObserver registers a per-attempt callback, typically metrics.
func (w *Worker) WithObserver(fn Observer) { w.observer = fn }

func (w *Worker) Name() string { return "task-worker" }

func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	// Cancelling ctx only stops polling. Handlers keep taskCtx until Stop
	// runs out of grace.
	taskCtx, stopTasks := context.WithCancel(context.WithoutCancel(ctx))
	pollCtx, stopPolling := context.WithCancel(ctx)
	w.stopPolling, w.stopTasks = stopPolling, stopTasks
	w.running = true
	w.queues = w.registry.Queues(w.defQueue)
	w.mu.Unlock()

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go func(slot int) {
			defer w.wg.Done()
			w.consume(pollCtx, taskCtx, slot)
		}(i)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.promoteTick)
		defer ticker.Stop()
		for {
			select {
			case <-pollCtx.Done():
				return
			case now := <-ticker.C:
				if _, err := w.backend.promoteDue(pollCtx, now); err != nil && pollCtx.Err() == nil {
					w.log.WithError(err).Warn("promote delayed tasks failed")
				}
			}
		}
	}()

	w.log.WithFields(map[string]interface{}{
		"queues":      w.queues,
		"concurrency": w.concurrency,
		"tasks":       w.registry.Names(),
	}).Info("task worker started")
	return nil
}

func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	stopPolling, stopTasks := w.stopPolling, w.stopTasks
	w.running = false
	w.stopPolling, w.stopTasks = nil, nil
	w.mu.Unlock()

	stopPolling()
	defer stopTasks()

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.wg.Wait()
	}()

	grace := time.NewTimer(w.grace)
	defer grace.Stop()
	select {
	case <-done:
	case <-grace.C:
		w.log.WithField("grace", w.grace.String()).Warn("tasks still running; cancelling and requeueing")
		stopTasks()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	case <-ctx.Done():
		stopTasks()
		select {
		case <-done:
		case <-time.After(time.Second):
		}
		return ctx.Err()
	}

	w.log.Info("task worker stopped")
	return nil
}

func (w *Worker) consume(ctx, taskCtx context.Context, slot int) {
	keys := make([]string, len(w.queues))
	for i, q := range w.queues {
		keys[i] = w.backend.queueKey(q)
	}
	for ctx.Err() == nil {
		res, err := w.backend.rdb.BRPop(ctx, w.pollTimeout, keys...).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.log.WithError(err).WithField("slot", slot).Warn("broker pop failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.pollTimeout):
			}
			continue
		}
		// res is [key, payload].
		queue := res[0][len(w.backend.queueKey("")):]
		var env Envelope
		if err := json.Unmarshal([]byte(res[1]), &env); err != nil {
			w.log.WithError(err).Warn("discarding undecodable task")
			continue
		}
		w.Execute(taskCtx, queue, env)
	}
}

// Execute runs one attempt of env and records the outcome. It is exported
// so tests and the inline runner can drive a single task. A handler that
// fails because ctx was cancelled is put back on queue with its attempt
// count unchanged.
func (w *Worker) Execute(ctx context.Context, queue string, env Envelope) {
	entry := w.log.WithFields(map[string]interface{}{"task_id": env.ID, "task": env.Name, "attempt": env.Attempt})
	// Outcomes are recorded even after ctx is cancelled.
	store := context.WithoutCancel(ctx)

	reg, ok := w.registry.lookup(env.Name)
	if !ok {
		err := fmt.Errorf("unregistered task %q", env.Name)
		entry.WithError(err).Error("task rejected")
		_ = w.backend.setFailure(store, env.ID, StatusFailure, err)
		return
	}
	_ = w.backend.setStatus(store, env.ID, env.Name, StatusStarted)

	start := time.Now()
	result, err := w.run(ctx, reg, env)
	elapsed := time.Since(start)

	if err != nil && ctx.Err() != nil {
		_ = w.backend.setFailure(store, env.ID, StatusRetry, fmt.Errorf("interrupted by worker shutdown: %w", err))
		if qerr := w.backend.requeue(store, queue, env); qerr != nil {
			entry.WithError(qerr).Error("requeue interrupted task failed")
		}
		w.observe(env.Name, StatusRetry, elapsed)
		entry.WithError(err).Warn("task interrupted; requeued")
		return
	}

	if err == nil {
		if err := w.backend.setSuccess(store, env.ID, result); err != nil {
			entry.WithError(err).Warn("store task result failed")
		}
		w.observe(env.Name, StatusSuccess, elapsed)
		entry.WithField("duration_ms", elapsed.Milliseconds()).Info("task succeeded")
		return
	}

	maxRetries := reg.opts.MaxRetries
	if env.MaxRetries > maxRetries {
		maxRetries = env.MaxRetries
	}
	if !errors.Is(err, ErrNoRetry) && env.Attempt < maxRetries {
		env.Attempt++
		delay := reg.opts.retryDelay(env.Attempt)
		_ = w.backend.setFailure(store, env.ID, StatusRetry, err)
		if serr := w.backend.schedule(store, queue, env, time.Now().Add(delay)); serr != nil {
			entry.WithError(serr).Error("schedule retry failed")
		}
		w.observe(env.Name, StatusRetry, elapsed)
		entry.WithError(err).WithField("retry_in", delay.String()).Warn("task failed; retrying")
		return
	}

	_ = w.backend.setFailure(store, env.ID, StatusFailure, err)
	w.observe(env.Name, StatusFailure, elapsed)
	w.onFailure(store, env, err)
}

func (w *Worker) run(ctx context.Context, reg registration, env Envelope) (result interface{}, err error) {
	if reg.opts.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, reg.opts.TimeLimit)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	task := &Task{ID: env.ID, Name: env.Name, Args: env.Args, Attempt: env.Attempt, backend: w.backend}
	return reg.handler(ctx, task)
}

func (w *Worker) observe(name string, status Status, d time.Duration) {
	if w.observer != nil {
		w.observer(name, status, d)
	}
}

func (w *Worker) logFailure(_ context.Context, env Envelope, err error) {
	w.log.WithError(err).WithFields(map[string]interface{}{
		"task_id": env.ID,
		"task":    env.Name,
		"attempt": env.Attempt,
	}).Error("task failed")
}
