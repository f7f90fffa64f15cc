package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/EduShopX/edushop/internal/app/system"
	"github.com/EduShopX/edushop/pkg/logger"
)

// Enqueuer is the producer side used by the beat.
type Enqueuer interface {
	Enqueue(ctx context.Context, name string, args interface{}) (string, error)
}

// Beat enqueues tasks on cron schedules.
type Beat struct {
	cron     *cron.Cron
	enqueuer Enqueuer
	log      *logger.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
	running bool
}

var _ system.Service = (*Beat)(nil)

// NewBeat uses five-field cron expressions in UTC.
func NewBeat(enqueuer Enqueuer, log *logger.Logger) *Beat {
	if log == nil {
		log = logger.NewDefault("beat")
	}
	return &Beat{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		enqueuer: enqueuer,
		log:      log,
		entries:  make(map[string]cron.EntryID),
	}
}

// Schedule enqueues task with args whenever spec fires.
func (b *Beat) Schedule(spec, task string, args interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.entries[task]; exists {
		return fmt.Errorf("task %s already scheduled", task)
	}
	id, err := b.cron.AddFunc(spec, func() {
		ctx := context.Background()
		taskID, err := b.enqueuer.Enqueue(ctx, task, args)
		if err != nil {
			b.log.WithError(err).WithField("task", task).Error("scheduled enqueue failed")
			return
		}
		b.log.WithFields(map[string]interface{}{"task": task, "task_id": taskID}).Info("scheduled task enqueued")
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", task, err)
	}
	b.entries[task] = id
	return nil
}

// Scheduled lists task names with their next fire time.
func (b *Beat) Scheduled() map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]string, len(b.entries))
	for task, id := range b.entries {
		out[task] = b.cron.Entry(id).Next.String()
	}
	return out
}

func (b *Beat) Name() string { return "task-beat" }

func (b *Beat) Start(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return nil
	}
	b.cron.Start()
	b.running = true
	b.log.WithField("entries", len(b.entries)).Info("beat started")
	return nil
}

func (b *Beat) Stop(ctx context.Context) error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return nil
	}
	b.running = false
	b.mu.Unlock()

	stopped := b.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	b.log.Info("beat stopped")
	return nil
}
