// Package gtasks implements the task service on top of the Google Tasks API.
package gtasks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	tasksapi "google.golang.org/api/tasks/v1"

	"github.com/nibzard/taskmirror/internal/tasks"
)

// Google Tasks status values.
const (
	statusNeedsAction = "needsAction"
	statusCompleted   = "completed"
)

// Client is a tasks.Service backed by Google Tasks.
type Client struct {
	svc *tasksapi.Service
}

var _ tasks.Service = (*Client)(nil)

// NewClient builds a client from raw API options. Authenticate is the usual
// entry point; tests pass an endpoint and option.WithoutAuthentication.
func NewClient(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	svc, err := tasksapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating tasks service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// TaskList is one of the account's lists.
type TaskList struct {
	ID    string
	Title string
}

// Lists returns the task lists of the authenticated account.
func (c *Client) Lists(ctx context.Context) ([]TaskList, error) {
	res, err := c.svc.Tasklists.List().MaxResults(100).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("listing task lists: %w", err)
	}
	out := make([]TaskList, 0, len(res.Items))
	for _, l := range res.Items {
		out = append(out, TaskList{ID: l.Id, Title: l.Title})
	}
	return out, nil
}

// List fetches one page of tasks from criteria.ListID.
func (c *Client) List(ctx context.Context, criteria tasks.Criteria) (tasks.Snapshot, error) {
	if criteria.ListID == "" {
		return tasks.Snapshot{}, tasks.ErrNoListID
	}
	criteria = criteria.Normalize()

	call := c.svc.Tasks.List(criteria.ListID).
		ShowCompleted(criteria.ShowCompleted).
		ShowHidden(criteria.ShowHidden)
	if criteria.MaxResults > 0 {
		call = call.MaxResults(int64(criteria.MaxResults))
	}
	res, err := call.Context(ctx).Do()
	if err != nil {
		return tasks.Snapshot{}, tasks.NewError(tasks.KindTransientFetch, "", fmt.Errorf("listing tasks of %s: %w", criteria.ListID, err))
	}

	snap := tasks.Snapshot{ListID: criteria.ListID, Tasks: make([]tasks.Task, 0, len(res.Items))}
	for _, item := range res.Items {
		if item == nil || item.Deleted {
			continue
		}
		task, err := fromAPI(item)
		if err != nil {
			return tasks.Snapshot{}, tasks.NewError(tasks.KindTransientFetch, item.Id, err)
		}
		snap.Tasks = append(snap.Tasks, task)
	}
	return snap, nil
}

// Update changes the status of one task. The current task is fetched first
// so its title, notes, and due date are sent back unchanged.
func (c *Client) Update(ctx context.Context, req tasks.UpdateRequest) (tasks.Task, error) {
	if req.ListID == "" {
		return tasks.Task{}, tasks.NewError(tasks.KindMutation, req.TaskID, tasks.ErrNoListID)
	}

	current, err := c.svc.Tasks.Get(req.ListID, req.TaskID).Context(ctx).Do()
	if err != nil {
		if isNotFound(err) {
			err = fmt.Errorf("%w: %v", tasks.ErrTaskNotFound, err)
		}
		return tasks.Task{}, tasks.NewError(tasks.KindMutation, req.TaskID, fmt.Errorf("getting task: %w", err))
	}

	body := &tasksapi.Task{
		Id:     req.TaskID,
		Title:  current.Title,
		Notes:  current.Notes,
		Due:    current.Due,
		Status: toAPIStatus(req.Status),
	}
	updated, err := c.svc.Tasks.Update(req.ListID, req.TaskID, body).Context(ctx).Do()
	if err != nil {
		return tasks.Task{}, tasks.NewError(tasks.KindMutation, req.TaskID, fmt.Errorf("updating task: %w", err))
	}

	task, err := fromAPI(updated)
	if err != nil {
		return tasks.Task{}, tasks.NewError(tasks.KindMutation, req.TaskID, err)
	}
	return task, nil
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}

func fromAPI(item *tasksapi.Task) (tasks.Task, error) {
	status, err := tasks.ParseStatus(item.Status)
	if err != nil {
		return tasks.Task{}, err
	}
	due, err := parseTime(item.Due)
	if err != nil {
		return tasks.Task{}, fmt.Errorf("task %s due: %w", item.Id, err)
	}
	updated, err := parseTime(item.Updated)
	if err != nil {
		return tasks.Task{}, fmt.Errorf("task %s updated: %w", item.Id, err)
	}
	return tasks.Task{
		ID:      item.Id,
		Title:   item.Title,
		Notes:   item.Notes,
		Due:     due,
		Status:  status,
		Parent:  item.Parent,
		Updated: updated,
	}, nil
}

func toAPIStatus(s tasks.Status) string {
	if s.IsCompleted() {
		return statusCompleted
	}
	return statusNeedsAction
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
