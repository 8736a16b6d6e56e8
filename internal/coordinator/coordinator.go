// Package coordinator keeps the local mirror of a remote task list.
//
// A Coordinator owns three things: the authoritative snapshot from the last
// successful poll, the set of pending optimistic mutations, and the merged
// view built from the two. It is not safe for concurrent use; every method
// must be called from the display's event loop. Network calls never run here:
// methods return the outbound message and the caller ships it.
package coordinator

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/nibzard/taskmirror/internal/message"
	"github.com/nibzard/taskmirror/internal/tasks"
)

// State is the lifecycle state of a coordinator.
type State int

const (
	StateUninitialized State = iota
	StateAwaitingCapability
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAwaitingCapability:
		return "awaiting capability"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// ListConfig selects the list to mirror and how to poll it.
type ListConfig struct {
	ListID        string
	MaxResults    int
	ShowCompleted bool
	ShowHidden    bool
}

// PendingMutation is an optimistic status change awaiting confirmation.
type PendingMutation struct {
	RequestID        string
	TaskID           string
	PreviousStatus   tasks.Status
	PreviousUpdated  *time.Time
	RequestedStatus  tasks.Status
	RequestedUpdated *time.Time
	RequestTime      time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithRequestIDs overrides the request id generator.
func WithRequestIDs(next func() string) Option {
	return func(c *Coordinator) {
		if next != nil {
			c.nextID = next
		}
	}
}

// Coordinator mirrors one task list. Create it when the widget mounts and
// Close it when the widget is torn down.
type Coordinator struct {
	cfg      ListConfig
	state    State
	disabled bool

	authoritative *tasks.Snapshot
	view          *tasks.Snapshot
	pending       map[string]PendingMutation

	subscribers []func(tasks.Snapshot)

	logger *log.Logger
	now    func() time.Time
	nextID func() string
}

// New creates a coordinator in StateUninitialized.
func New(opts ...Option) *Coordinator {
	c := &Coordinator{
		state:   StateUninitialized,
		pending: make(map[string]PendingMutation),
		logger:  log.NewWithOptions(io.Discard, log.Options{}),
		now:     time.Now,
		nextID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize validates the list configuration. Without a list id the
// coordinator stays in StateAwaitingCapability for good and a configuration
// error is returned; this is not fatal.
func (c *Coordinator) Initialize(cfg ListConfig) error {
	if c.state != StateUninitialized {
		return fmt.Errorf("coordinator already initialized (state %s)", c.state)
	}
	c.cfg = cfg
	c.state = StateAwaitingCapability
	if cfg.ListID == "" {
		c.disabled = true
		err := tasks.NewError(tasks.KindConfiguration, "", tasks.ErrNoListID)
		c.logger.Error("config list_id required; task sync disabled")
		return err
	}
	return nil
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	return c.state
}

// Disabled reports whether Initialize found no list id.
func (c *Coordinator) Disabled() bool {
	return c.disabled
}

// Subscribe registers fn to receive every published view.
func (c *Coordinator) Subscribe(fn func(tasks.Snapshot)) {
	if fn != nil {
		c.subscribers = append(c.subscribers, fn)
	}
}

// OnCapabilityReady moves the coordinator to StateReady and returns the
// first poll request. It returns false if the coordinator is disabled or
// not initialized.
func (c *Coordinator) OnCapabilityReady() (message.RequestUpdate, bool) {
	if c.disabled || c.state == StateUninitialized {
		c.logger.Warn("capability ready ignored", "state", c.state, "disabled", c.disabled)
		return message.RequestUpdate{}, false
	}
	if c.state != StateReady {
		c.state = StateReady
		c.logger.Info("task service ready", "list", c.cfg.ListID)
	}
	return c.Poll()
}

// Poll returns the request for one poll of the list.
func (c *Coordinator) Poll() (message.RequestUpdate, bool) {
	if c.state != StateReady {
		return message.RequestUpdate{}, false
	}
	criteria := tasks.Criteria{
		ListID:        c.cfg.ListID,
		MaxResults:    c.cfg.MaxResults,
		ShowCompleted: c.cfg.ShowCompleted,
		ShowHidden:    c.cfg.ShowHidden,
	}.Normalize()
	return message.RequestUpdate{
		ListID:        criteria.ListID,
		MaxResults:    criteria.MaxResults,
		ShowCompleted: criteria.ShowCompleted,
		ShowHidden:    criteria.ShowHidden,
	}, true
}

// ApplySnapshot replaces the authoritative snapshot with a poll result,
// overlays unresolved mutations, and publishes the merged view. Snapshots
// for other lists are ignored.
func (c *Coordinator) ApplySnapshot(data message.UpdateData) bool {
	if c.disabled || data.ListID != c.cfg.ListID {
		return false
	}
	snap, dropped := data.Snapshot().Dedupe()
	if dropped > 0 {
		c.logger.Warn("dropped duplicate task ids from snapshot", "count", dropped)
	}
	if len(snap.Tasks) == 0 {
		c.logger.Info("no tasks found", "list", snap.ListID)
	}
	c.authoritative = &snap
	c.rebuild()
	c.publish()
	return true
}

// ApplyFetchError records a failed poll. The previous snapshot and all
// pending mutations are kept; the next scheduled poll retries.
func (c *Coordinator) ApplyFetchError(e message.UpdateError) error {
	if e.ListID != "" && e.ListID != c.cfg.ListID {
		return nil
	}
	err := tasks.NewError(tasks.KindTransientFetch, "", errors.New(e.Err))
	c.logger.Warn("poll failed; keeping previous snapshot", "list", c.cfg.ListID, "err", e.Err, "pending", len(c.pending))
	return err
}

// RequestToggle flips the effective status of a task, publishes the new
// view, and returns the update to send to the helper.
//
// If the task already has a pending mutation, the new request replaces it
// and keeps the original previous status, so a rollback always lands on the
// last confirmed state.
func (c *Coordinator) RequestToggle(taskID string) (message.UpdateTask, error) {
	if c.view == nil {
		return message.UpdateTask{}, fmt.Errorf("toggle %s: no tasks loaded", taskID)
	}
	current := c.view.GetTask(taskID)
	if current == nil {
		return message.UpdateTask{}, fmt.Errorf("toggle %s: %w", taskID, tasks.ErrTaskNotFound)
	}

	now := c.now()
	requested := current.Status.Toggle()
	mut := PendingMutation{
		RequestID:        c.nextID(),
		TaskID:           taskID,
		PreviousStatus:   current.Status,
		PreviousUpdated:  cloneTime(current.Updated),
		RequestedStatus:  requested,
		RequestedUpdated: &now,
		RequestTime:      now,
	}
	if prev, ok := c.pending[taskID]; ok {
		mut.PreviousStatus = prev.PreviousStatus
		mut.PreviousUpdated = cloneTime(prev.PreviousUpdated)
		c.logger.Debug("superseding pending mutation", "task", taskID, "old_request", prev.RequestID, "new_request", mut.RequestID)
	}
	c.pending[taskID] = mut

	c.rebuild()
	c.publish()

	c.logger.Info("toggling task", "task", taskID, "title", current.Title, "status", requested, "request", mut.RequestID)
	return message.UpdateTask{
		ListID:    c.cfg.ListID,
		TaskID:    taskID,
		Status:    requested,
		RequestID: mut.RequestID,
	}, nil
}

// ConfirmUpdate resolves a pending mutation after the remote accepted it.
// The remote's updated time replaces the local one when present.
// Confirmations for superseded requests are ignored.
func (c *Coordinator) ConfirmUpdate(u message.TaskUpdated) bool {
	mut, ok := c.current(u.TaskID, u.RequestID)
	if !ok {
		return false
	}
	delete(c.pending, u.TaskID)
	updated := mut.RequestedUpdated
	if u.Updated != nil {
		updated = u.Updated
	}
	c.fold(u.TaskID, mut.RequestedStatus, updated)
	c.rebuild()
	if !sameTime(updated, mut.RequestedUpdated) {
		c.publish()
	}
	c.logger.Debug("task update confirmed", "task", u.TaskID, "request", u.RequestID)
	return true
}

// FailUpdate rolls a task back to its status and updated time from before
// the optimistic change, republishes, and returns a mutation error. Failures
// for superseded requests are ignored and return nil.
func (c *Coordinator) FailUpdate(e message.TaskUpdateError) error {
	mut, ok := c.current(e.TaskID, e.RequestID)
	if !ok {
		return nil
	}
	delete(c.pending, e.TaskID)
	c.fold(e.TaskID, mut.PreviousStatus, mut.PreviousUpdated)
	c.rebuild()
	c.publish()

	err := tasks.NewError(tasks.KindMutation, e.TaskID, errors.New(e.Err))
	c.logger.Error("task update failed; rolled back", "task", e.TaskID, "request", e.RequestID, "status", mut.PreviousStatus, "err", e.Err)
	return err
}

// View returns the merged view, or false before the first snapshot.
func (c *Coordinator) View() (tasks.Snapshot, bool) {
	if c.view == nil {
		return tasks.Snapshot{}, false
	}
	return c.view.Clone(), true
}

// Pending returns the unresolved mutation for a task, if any.
func (c *Coordinator) Pending(taskID string) (PendingMutation, bool) {
	m, ok := c.pending[taskID]
	return m, ok
}

// PendingCount returns the number of unresolved mutations.
func (c *Coordinator) PendingCount() int {
	return len(c.pending)
}

// Close drops the mirror and all subscribers.
func (c *Coordinator) Close() {
	c.authoritative = nil
	c.view = nil
	c.pending = make(map[string]PendingMutation)
	c.subscribers = nil
}

// current returns the pending mutation for taskID if requestID is still the
// latest request for it.
func (c *Coordinator) current(taskID, requestID string) (PendingMutation, bool) {
	mut, ok := c.pending[taskID]
	if !ok {
		c.logger.Debug("resolution for task without pending mutation", "task", taskID, "request", requestID)
		return PendingMutation{}, false
	}
	if mut.RequestID != requestID {
		c.logger.Debug("ignoring stale resolution", "task", taskID, "request", requestID, "current", mut.RequestID)
		return PendingMutation{}, false
	}
	return mut, true
}

// fold writes a resolved status into the authoritative snapshot.
func (c *Coordinator) fold(taskID string, status tasks.Status, updated *time.Time) {
	if c.authoritative == nil {
		return
	}
	next := c.authoritative.Clone()
	if t := next.GetTask(taskID); t != nil {
		t.Status = status
		t.Updated = cloneTime(updated)
	}
	c.authoritative = &next
}

// rebuild derives the view from the authoritative snapshot and the pending
// overlays. It never suspends, so a merge is always applied whole.
func (c *Coordinator) rebuild() {
	if c.authoritative == nil {
		c.view = nil
		return
	}
	view := c.authoritative.Clone()
	for i := range view.Tasks {
		if mut, ok := c.pending[view.Tasks[i].ID]; ok {
			view.Tasks[i].Status = mut.RequestedStatus
			view.Tasks[i].Updated = cloneTime(mut.RequestedUpdated)
		}
	}
	c.view = &view
}

func (c *Coordinator) publish() {
	if c.view == nil {
		return
	}
	for _, fn := range c.subscribers {
		fn(c.view.Clone())
	}
}

func cloneTime(ts *time.Time) *time.Time {
	if ts == nil {
		return nil
	}
	v := *ts
	return &v
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
