// Package tasks defines the task model shared across the display and its backends.
package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Status represents a task status.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// ParseStatus normalizes a status string. The Google Tasks wire value
// "needsAction" maps to StatusPending.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending", "needsaction", "":
		return StatusPending, nil
	case "completed":
		return StatusCompleted, nil
	default:
		return "", fmt.Errorf("unknown task status %q", s)
	}
}

// Toggle returns the logical inverse of s.
func (s Status) Toggle() Status {
	if s == StatusCompleted {
		return StatusPending
	}
	return StatusCompleted
}

// IsCompleted reports whether s is StatusCompleted.
func (s Status) IsCompleted() bool {
	return s == StatusCompleted
}

// Task represents a single task in a list.
type Task struct {
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Notes   string     `json:"notes,omitempty"`
	Due     *time.Time `json:"due,omitempty"`
	Status  Status     `json:"status"`
	Parent  string     `json:"parent,omitempty"`
	Updated *time.Time `json:"updated,omitempty"`
}

// IsZero returns true if the task is empty (has no ID).
func (t *Task) IsZero() bool {
	return t.ID == ""
}

// IsChild reports whether the task hangs under another task of the list.
func (t *Task) IsChild() bool {
	return t.Parent != ""
}

// Clone returns a copy of t that shares no pointers with it.
func (t Task) Clone() Task {
	t.Due = cloneTime(t.Due)
	t.Updated = cloneTime(t.Updated)
	return t
}

// UpdatedAt returns the last mutation time, or the zero time if unknown.
func (t *Task) UpdatedAt() time.Time {
	if t.Updated == nil {
		return time.Time{}
	}
	return *t.Updated
}

func cloneTime(ts *time.Time) *time.Time {
	if ts == nil {
		return nil
	}
	v := *ts
	return &v
}

// Snapshot is an ordered list of tasks as delivered by a source.
type Snapshot struct {
	ListID string `json:"id"`
	Tasks  []Task `json:"items"`
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{ListID: s.ListID}
	if s.Tasks != nil {
		out.Tasks = make([]Task, len(s.Tasks))
		for i := range s.Tasks {
			out.Tasks[i] = s.Tasks[i].Clone()
		}
	}
	return out
}

// Index returns the position of the task with the given id, or -1.
func (s Snapshot) Index(id string) int {
	for i := range s.Tasks {
		if s.Tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// GetTask returns a task by ID, or nil if not found. The returned pointer
// aliases the snapshot's storage.
func (s Snapshot) GetTask(id string) *Task {
	if i := s.Index(id); i >= 0 {
		return &s.Tasks[i]
	}
	return nil
}

// CountByStatus returns how many tasks have the given status.
func (s Snapshot) CountByStatus(status Status) int {
	n := 0
	for i := range s.Tasks {
		if s.Tasks[i].Status == status {
			n++
		}
	}
	return n
}

// Dedupe returns a copy of the snapshot keeping only the first task for
// each id. Sources should never send duplicates, but the mirror must hold
// exactly one task per id.
func (s Snapshot) Dedupe() (Snapshot, int) {
	out := Snapshot{ListID: s.ListID, Tasks: make([]Task, 0, len(s.Tasks))}
	seen := make(map[string]bool, len(s.Tasks))
	dropped := 0
	for _, t := range s.Tasks {
		if seen[t.ID] {
			dropped++
			continue
		}
		seen[t.ID] = true
		out.Tasks = append(out.Tasks, t.Clone())
	}
	return out, dropped
}

// Criteria are the filters passed to Service.List.
type Criteria struct {
	ListID        string
	MaxResults    int
	ShowCompleted bool
	ShowHidden    bool
}

// Normalize forces ShowHidden when ShowCompleted is set: the Google Tasks
// API does not surface completed items otherwise.
func (c Criteria) Normalize() Criteria {
	if c.ShowCompleted {
		c.ShowHidden = true
	}
	return c
}

// UpdateRequest asks a service to change the status of one task. The
// service keeps the task's title, notes, and due date.
type UpdateRequest struct {
	ListID string
	TaskID string
	Status Status
}

// Service is the remote task capability. Implementations perform network or
// disk I/O and must be safe to call from multiple goroutines.
type Service interface {
	List(ctx context.Context, criteria Criteria) (Snapshot, error)
	Update(ctx context.Context, req UpdateRequest) (Task, error)
}
