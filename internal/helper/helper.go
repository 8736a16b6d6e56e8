// Package helper runs the backend side of a task widget: it owns the task
// service, answers poll requests, and applies status updates.
//
// Requests are handled concurrently. Each reply is delivered on the outbound
// channel; replies for different requests may arrive in any order, which is
// why updates carry a request id.
package helper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nibzard/taskmirror/internal/logging"
	"github.com/nibzard/taskmirror/internal/message"
	"github.com/nibzard/taskmirror/internal/tasks"
)

// DefaultTimeout bounds one backend request.
const DefaultTimeout = 15 * time.Second

// Authenticator produces a ready task service.
type Authenticator func(ctx context.Context) (tasks.Service, error)

// Option configures a Helper.
type Option func(*Helper)

// WithLogger sets the helper's logger.
func WithLogger(l *log.Logger) Option {
	return func(h *Helper) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(h *Helper) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// Helper serves one widget.
type Helper struct {
	auth    Authenticator
	timeout time.Duration
	logger  *log.Logger

	mu             sync.Mutex
	service        tasks.Service
	authenticating bool

	// updates holds, per task id, the channel closed when the latest queued
	// update of that task has finished. Updates of one task reach the
	// service in arrival order.
	seqMu   sync.Mutex
	updates map[string]chan struct{}

	wg sync.WaitGroup
}

// New returns a helper that authenticates with auth on MODULE_READY.
func New(auth Authenticator, opts ...Option) *Helper {
	h := &Helper{
		auth:    auth,
		timeout: DefaultTimeout,
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run handles messages from in until it is closed or ctx is done, then
// waits for in-flight requests to finish. Requests run concurrently, except
// that updates of the same task run one at a time in arrival order.
func (h *Helper) Run(ctx context.Context, in <-chan message.Message, out chan<- message.Message) error {
	defer h.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-in:
			if !ok {
				return nil
			}
			var prev <-chan struct{}
			var done chan struct{}
			upd, isUpdate := m.(message.UpdateTask)
			if isUpdate {
				prev, done = h.sequence(upd.TaskID)
			}
			h.wg.Add(1)
			go func() {
				defer h.wg.Done()
				if prev != nil {
					select {
					case <-prev:
					case <-ctx.Done():
						h.release(upd.TaskID, done)
						return
					}
				}
				if reply := h.Handle(ctx, m); reply != nil {
					select {
					case out <- reply:
					case <-ctx.Done():
					}
				}
				if isUpdate {
					h.release(upd.TaskID, done)
				}
			}()
		}
	}
}

// sequence queues an update of taskID behind the previous one. It returns
// the channel to wait on (nil when nothing is in flight) and the channel to
// release once this update is done.
func (h *Helper) sequence(taskID string) (<-chan struct{}, chan struct{}) {
	h.seqMu.Lock()
	defer h.seqMu.Unlock()
	if h.updates == nil {
		h.updates = make(map[string]chan struct{})
	}
	prev := h.updates[taskID]
	done := make(chan struct{})
	h.updates[taskID] = done
	if prev == nil {
		return nil, done
	}
	return prev, done
}

func (h *Helper) release(taskID string, done chan struct{}) {
	h.seqMu.Lock()
	defer h.seqMu.Unlock()
	close(done)
	if h.updates[taskID] == done {
		delete(h.updates, taskID)
	}
}

// Handle processes one message and returns the reply, or nil when there is
// nothing to send back.
func (h *Helper) Handle(ctx context.Context, m message.Message) message.Message {
	if m == nil {
		return nil
	}
	switch m := m.(type) {
	case message.ModuleReady:
		return h.moduleReady(ctx)
	case message.RequestUpdate:
		return h.requestUpdate(ctx, m)
	case message.UpdateTask:
		return h.updateTask(ctx, m)
	default:
		h.logger.Warn("ignoring unexpected message", "notification", m.Notification())
		return nil
	}
}

// Ready reports whether a task service is available.
func (h *Helper) Ready() bool {
	return h.currentService() != nil
}

func (h *Helper) currentService() tasks.Service {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.service
}

func (h *Helper) moduleReady(ctx context.Context) message.Message {
	h.mu.Lock()
	if h.service != nil {
		h.mu.Unlock()
		h.logger.Debug("task service already available")
		return message.ServiceReady{}
	}
	if h.authenticating {
		h.mu.Unlock()
		h.logger.Debug("authentication already in progress")
		return nil
	}
	h.authenticating = true
	h.mu.Unlock()

	svc, err := h.authenticate(ctx)

	h.mu.Lock()
	h.authenticating = false
	if err == nil {
		h.service = svc
	}
	h.mu.Unlock()

	if err != nil {
		h.logger.Error("task service unavailable", "err", err)
		return nil
	}
	h.logger.Info("task service ready")
	return message.ServiceReady{}
}

func (h *Helper) authenticate(ctx context.Context) (tasks.Service, error) {
	if h.auth == nil {
		return nil, tasks.NewError(tasks.KindCapability, "", fmt.Errorf("no authenticator configured"))
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	svc, err := h.auth(ctx)
	if err != nil {
		return nil, tasks.NewError(tasks.KindCapability, "", err)
	}
	if svc == nil {
		return nil, tasks.NewError(tasks.KindCapability, "", fmt.Errorf("authenticator returned no service"))
	}
	return svc, nil
}

func (h *Helper) requestUpdate(ctx context.Context, req message.RequestUpdate) message.Message {
	svc := h.currentService()
	if svc == nil {
		h.logger.Warn("refresh required: task service not ready", "list", req.ListID)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	snap, err := svc.List(ctx, req.Criteria())
	if err != nil {
		h.logger.Error("listing tasks failed", "list", req.ListID, "err", err)
		return message.UpdateError{ListID: req.ListID, Err: err.Error()}
	}
	if snap.ListID == "" {
		snap.ListID = req.ListID
	}
	h.logger.Debug("listed tasks", "list", snap.ListID, "count", len(snap.Tasks))
	return message.UpdateData{ListID: snap.ListID, Items: snap.Tasks}
}

func (h *Helper) updateTask(ctx context.Context, req message.UpdateTask) message.Message {
	fail := func(err error) message.Message {
		return message.TaskUpdateError{TaskID: req.TaskID, RequestID: req.RequestID, Err: err.Error()}
	}

	svc := h.currentService()
	if svc == nil {
		h.logger.Warn("update dropped: task service not ready", "task", req.TaskID, "request", req.RequestID)
		return fail(tasks.ErrServiceNotReady)
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	task, err := svc.Update(ctx, tasks.UpdateRequest{ListID: req.ListID, TaskID: req.TaskID, Status: req.Status})
	if err != nil {
		h.logger.Error("updating task failed", "task", req.TaskID, "request", req.RequestID, "err", err)
		return fail(err)
	}
	h.logger.Info("task updated", "task", req.TaskID, "status", task.Status, "request", req.RequestID)
	return message.TaskUpdated{TaskID: req.TaskID, Status: task.Status, RequestID: req.RequestID, Updated: task.Updated}
}
