package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yungbote/galaxychat-backend/internal/platform/logger"
)

var ErrDraining = errors.New("task registry is draining")

// Registry runs detached work that must outlive the request that started it and
// lets shutdown wait for it.
type Registry struct {
	log *logger.Logger

	mu       sync.Mutex
	wg       sync.WaitGroup
	draining bool
	running  int
}

func NewRegistry(baseLog *logger.Logger) *Registry {
	return &Registry{log: baseLog.With("component", "TaskRegistry")}
}

// Go runs fn in its own goroutine with a context that keeps ctx's values but not
// its cancellation, bounded by timeout. Panics and errors are logged.
func (r *Registry) Go(ctx context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	if r.draining {
		r.mu.Unlock()
		r.log.Warn("Task rejected during drain", "task", name)
		return ErrDraining
	}
	r.running++
	r.wg.Add(1)
	r.mu.Unlock()

	tctx := context.WithoutCancel(ctx)
	var cancel context.CancelFunc = func() {}
	if timeout > 0 {
		tctx, cancel = context.WithTimeout(tctx, timeout)
	}

	go func() {
		defer r.wg.Done()
		defer cancel()
		defer func() {
			r.mu.Lock()
			r.running--
			r.mu.Unlock()
		}()
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error("Task panic", "task", name, "panic", fmt.Sprint(rec))
			}
		}()

		start := time.Now()
		if err := fn(tctx); err != nil {
			r.log.Warn("Task failed", "task", name, "error", err, "duration", time.Since(start).String())
			return
		}
		r.log.Debug("Task done", "task", name, "duration", time.Since(start).String())
	}()
	return nil
}

// Running reports the number of tasks in flight.
func (r *Registry) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Drain stops accepting tasks and waits for in-flight ones or ctx.
func (r *Registry) Drain(ctx context.Context) error {
	r.mu.Lock()
	r.draining = true
	n := r.running
	r.mu.Unlock()

	if n > 0 {
		r.log.Info("Draining tasks", "running", n)
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		r.log.Warn("Task drain timed out", "running", r.Running())
		return ctx.Err()
	}
}
