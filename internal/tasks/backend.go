package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Result is the stored outcome of a task.
type Result struct {
	ID        string          `json:"task_id"`
	Name      string          `json:"name,omitempty"`
	Status    Status          `json:"status"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	Info      string          `json:"info,omitempty"`
	UpdatedAt time.Time       `json:"updated_at,omitempty"`
}

// Decode unmarshals the stored result into dst.
func (r Result) Decode(dst interface{}) error {
	if len(r.Result) == 0 {
		return errors.New("task has no result")
	}
	return json.Unmarshal(r.Result, dst)
}

// backend owns the Redis key layout shared by clients and workers.
type backend struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func newBackend(rdb *redis.Client, prefix string, ttl time.Duration) *backend {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &backend{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (b *backend) queueKey(queue string) string { return b.prefix + ":queue:" + queue }

func (b *backend) delayedKey() string { return b.prefix + ":delayed" }

func (b *backend) resultKey(id string) string { return b.prefix + ":task:" + id }

func (b *backend) write(ctx context.Context, id string, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)
	key := b.resultKey(id)
	pipe := b.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, b.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (b *backend) setStatus(ctx context.Context, id, name string, status Status) error {
	return b.write(ctx, id, map[string]interface{}{"name": name, "status": string(status)})
}

func (b *backend) setInfo(ctx context.Context, id, info string) error {
	return b.write(ctx, id, map[string]interface{}{"info": info})
}

func (b *backend) setSuccess(ctx context.Context, id string, result interface{}) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return b.write(ctx, id, map[string]interface{}{"status": string(StatusSuccess), "result": string(raw), "error": ""})
}

func (b *backend) setFailure(ctx context.Context, id string, status Status, cause error) error {
	return b.write(ctx, id, map[string]interface{}{"status": string(status), "error": cause.Error()})
}

// read returns PENDING for ids the backend has never seen.
func (b *backend) read(ctx context.Context, id string) (Result, error) {
	fields, err := b.rdb.HGetAll(ctx, b.resultKey(id)).Result()
	if err != nil {
		return Result{}, err
	}
	res := Result{ID: id, Status: StatusPending}
	if len(fields) == 0 {
		return res, nil
	}
	if v := fields["status"]; v != "" {
		res.Status = Status(v)
	}
	res.Name = fields["name"]
	res.Error = fields["error"]
	res.Info = fields["info"]
	if v := fields["result"]; v != "" {
		res.Result = json.RawMessage(v)
	}
	if v := fields["updated_at"]; v != "" {
		res.UpdatedAt, _ = time.Parse(time.RFC3339Nano, v)
	}
	return res, nil
}

func (b *backend) push(ctx context.Context, queue string, env Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.rdb.LPush(ctx, b.queueKey(queue), raw).Err()
}

// requeue puts env back at the consuming end of its queue.
func (b *backend) requeue(ctx context.Context, queue string, env Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.rdb.RPush(ctx, b.queueKey(queue), raw).Err()
}

// schedule parks env in the delayed set until at.
func (b *backend) schedule(ctx context.Context, queue string, env Envelope, at time.Time) error {
	raw, err := json.Marshal(delayedEntry{Queue: queue, Envelope: env})
	if err != nil {
		return err
	}
	return b.rdb.ZAdd(ctx, b.delayedKey(), &redis.Z{Score: float64(at.UnixMilli()), Member: string(raw)}).Err()
}

type delayedEntry struct {
	Queue    string   `json:"queue"`
	Envelope Envelope `json:"envelope"`
}

// promoteDue moves due delayed entries onto their queues. ZREM decides the
// winner when several workers promote concurrently.
func (b *backend) promoteDue(ctx context.Context, now time.Time) (int, error) {
	members, err := b.rdb.ZRangeByScore(ctx, b.delayedKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   formatScore(now),
		Count: 100,
	}).Result()
	if err != nil {
		return 0, err
	}
	moved := 0
	for _, member := range members {
		removed, err := b.rdb.ZRem(ctx, b.delayedKey(), member).Result()
		if err != nil {
			return moved, err
		}
		if removed == 0 {
			continue
		}
		var entry delayedEntry
		if err := json.Unmarshal([]byte(member), &entry); err != nil {
			continue
		}
		if err := b.push(ctx, entry.Queue, entry.Envelope); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}

func formatScore(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
