// Package taskstest provides an in-memory task queue for service tests.
package taskstest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/EduShopX/edushop/internal/tasks"
)

// Call is one recorded Enqueue.
type Call struct {
	ID   string
	Name string
	Args json.RawMessage
}

// Recorder implements tasks.Queue without a broker. Results can be seeded
// with SetResult to drive status endpoints.
type Recorder struct {
	mu      sync.Mutex
	calls   []Call
	results map[string]tasks.Result
	// Err, when set, is returned from Enqueue.
	Err error
}

var _ tasks.Queue = (*Recorder)(nil)

func New() *Recorder {
	return &Recorder{results: make(map[string]tasks.Result)}
}

func (r *Recorder) Enqueue(_ context.Context, name string, args interface{}) (string, error) {
	if r.Err != nil {
		return "", r.Err
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	id := fmt.Sprintf("task-%d", len(r.calls)+1)
	r.calls = append(r.calls, Call{ID: id, Name: name, Args: raw})
	return id, nil
}

// Status returns the seeded result for id, PENDING otherwise. Name is
// filled from the recorded Enqueue.
func (r *Recorder) Status(_ context.Context, id string) (tasks.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.results[id]
	if !ok {
		res = tasks.Result{ID: id, Status: tasks.StatusPending}
	}
	for _, c := range r.calls {
		if c.ID == id {
			res.Name = c.Name
			break
		}
	}
	return res, nil
}

// SetResult stores a finished result for id.
func (r *Recorder) SetResult(id string, status tasks.Status, value interface{}) {
	raw, _ := json.Marshal(value)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[id] = tasks.Result{ID: id, Status: status, Result: raw}
}

// Calls returns the recorded enqueues named name, or all when name is empty.
func (r *Recorder) Calls(name string) []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Call
	for _, c := range r.calls {
		if name == "" || c.Name == name {
			out = append(out, c)
		}
	}
	return out
}
