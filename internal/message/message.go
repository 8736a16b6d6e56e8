// Package message defines the notifications exchanged between a widget and
// its backend helper.
//
// Every notification is its own Go type implementing Message. Receivers
// dispatch with a type switch instead of comparing names:
//
//	switch m := msg.(type) {
//	case message.UpdateData:
//		...
//	case message.TaskUpdateError:
//		...
//	}
//
// The JSON envelope in codec.go carries the same notifications across a
// process boundary.
package message

import (
	"time"

	"github.com/nibzard/taskmirror/internal/tasks"
)

// Notification is the wire name of a message.
type Notification string

const (
	NotifyModuleReady     Notification = "MODULE_READY"
	NotifyServiceReady    Notification = "SERVICE_READY"
	NotifyRequestUpdate   Notification = "REQUEST_UPDATE"
	NotifyUpdateData      Notification = "UPDATE_DATA"
	NotifyUpdateError     Notification = "UPDATE_ERROR"
	NotifyUpdateTask      Notification = "UPDATE_TASK"
	NotifyTaskUpdated     Notification = "TASK_UPDATED"
	NotifyTaskUpdateError Notification = "TASK_UPDATE_ERROR"
)

// Message is a notification between a widget and its helper. The set of
// implementations is closed.
type Message interface {
	Notification() Notification
	sealed()
}

// ModuleReady is sent by the widget once a list id is configured.
type ModuleReady struct{}

// ServiceReady is sent by the helper once the task service is available.
type ServiceReady struct{}

// RequestUpdate asks the helper to poll the list now.
type RequestUpdate struct {
	ListID        string `json:"listId"`
	MaxResults    int    `json:"maxResults"`
	ShowCompleted bool   `json:"showCompleted"`
	ShowHidden    bool   `json:"showHidden"`
}

// Criteria converts the request into service criteria.
func (r RequestUpdate) Criteria() tasks.Criteria {
	return tasks.Criteria{
		ListID:        r.ListID,
		MaxResults:    r.MaxResults,
		ShowCompleted: r.ShowCompleted,
		ShowHidden:    r.ShowHidden,
	}.Normalize()
}

// UpdateData carries the authoritative snapshot of list ListID.
type UpdateData struct {
	ListID string       `json:"id"`
	Items  []tasks.Task `json:"items"`
}

// Snapshot returns the payload as a snapshot.
func (u UpdateData) Snapshot() tasks.Snapshot {
	return tasks.Snapshot{ListID: u.ListID, Tasks: u.Items}.Clone()
}

// UpdateError reports a failed poll of list ListID.
type UpdateError struct {
	ListID string `json:"id"`
	Err    string `json:"error"`
}

// UpdateTask asks the helper to change the status of one task. RequestID
// correlates the eventual TaskUpdated or TaskUpdateError.
type UpdateTask struct {
	ListID    string       `json:"listId"`
	TaskID    string       `json:"taskId"`
	Status    tasks.Status `json:"status"`
	RequestID string       `json:"requestId"`
}

// TaskUpdated confirms an UpdateTask.
type TaskUpdated struct {
	TaskID    string       `json:"taskId"`
	Status    tasks.Status `json:"status"`
	RequestID string       `json:"requestId"`
	Updated   *time.Time   `json:"updated,omitempty"`
}

// TaskUpdateError reports a failed UpdateTask.
type TaskUpdateError struct {
	TaskID    string `json:"taskId"`
	RequestID string `json:"requestId"`
	Err       string `json:"error"`
}

func (ModuleReady) Notification() Notification     { return NotifyModuleReady }
func (ServiceReady) Notification() Notification    { return NotifyServiceReady }
func (RequestUpdate) Notification() Notification   { return NotifyRequestUpdate }
func (UpdateData) Notification() Notification      { return NotifyUpdateData }
func (UpdateError) Notification() Notification     { return NotifyUpdateError }
func (UpdateTask) Notification() Notification      { return NotifyUpdateTask }
func (TaskUpdated) Notification() Notification     { return NotifyTaskUpdated }
func (TaskUpdateError) Notification() Notification { return NotifyTaskUpdateError }

func (ModuleReady) sealed()     {}
func (ServiceReady) sealed()    {}
func (RequestUpdate) sealed()   {}
func (UpdateData) sealed()      {}
func (UpdateError) sealed()     {}
func (UpdateTask) sealed()      {}
func (TaskUpdated) sealed()     {}
func (TaskUpdateError) sealed() {}
