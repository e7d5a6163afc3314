package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/AI-Template-SDK/senso-visibility/internal/models"
)

const cancelledMessage = "Analysis cancelled by user"

// RunHandle is the state of one analysis run. The starter owns it; callers
// read progress, cancel, or wait for the run to finish.
type RunHandle struct {
	ID        string
	Request   models.RunRequest
	StartedAt time.Time

	status    atomic.Value // models.RunStatus
	cancelled atomic.Bool
	stop      chan struct{}
	stopOnce  sync.Once
	done      chan struct{}

	mu       sync.Mutex
	progress models.Progress
	err      error
	sink     ProgressSink
}

func newRunHandle(req models.RunRequest, sink ProgressSink) *RunHandle {
	h := &RunHandle{
		ID:        uuid.New().String(),
		Request:   req,
		StartedAt: time.Now().UTC(),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		sink:      sink,
	}
	h.status.Store(models.StatusIdle)
	h.progress = models.Progress{RunID: h.ID, Status: models.StatusIdle}
	return h
}

// Status is safe to call from any goroutine.
func (h *RunHandle) Status() models.RunStatus {
	return h.status.Load().(models.RunStatus)
}

// Progress returns a copy of the latest progress.
func (h *RunHandle) Progress() models.Progress {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.progress
}

// Err is the failure that ended the run, if any.
func (h *RunHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Cancel asks the run to stop before its next prompt. The prompt in flight
// finishes normally.
func (h *RunHandle) Cancel() {
	h.cancelled.Store(true)
	h.stopOnce.Do(func() { close(h.stop) })
}

func (h *RunHandle) Cancelled() bool {
	return h.cancelled.Load()
}

// Done is closed when the run reaches a terminal state.
func (h *RunHandle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the run finishes or ctx ends.
func (h *RunHandle) Wait(ctx context.Context) (models.Progress, error) {
	select {
	case <-h.done:
		return h.Progress(), h.Err()
	case <-ctx.Done():
		return h.Progress(), ctx.Err()
	}
}

// sleep waits d, returning false if the run was cancelled meanwhile.
func (h *RunHandle) sleep(d time.Duration) bool {
	if d <= 0 {
		return !h.Cancelled()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return !h.Cancelled()
	case <-h.stop:
		return false
	}
}

func (h *RunHandle) update(p models.Progress) {
	p.RunID = h.ID
	h.mu.Lock()
	h.progress = p
	sink := h.sink
	h.mu.Unlock()

	h.status.Store(p.Status)
	if sink != nil {
		sink(p)
	}
}

func (h *RunHandle) finish(err error) {
	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
	close(h.done)
}
