// Package filetasks implements the task service on a local JSON file, so the
// display can run without a Google account.
//
// The file holds any number of lists:
//
//	{
//	  "schema_version": 1,
//	  "lists": [
//	    {"id": "today", "title": "Today", "tasks": [
//	      {"id": "t1", "title": "Buy milk", "status": "pending"}
//	    ]}
//	  ]
//	}
//
// Every read is validated against an embedded JSON Schema.
package filetasks

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/nibzard/taskmirror/internal/tasks"
)

// SchemaVersion is the only file version understood.
const SchemaVersion = 1

const schemaURL = "taskmirror-tasks.schema.json"

//go:embed schema.json
var schemaJSON string

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.AssertFormat = true
		if err := compiler.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("loading task file schema: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile(schemaURL)
	})
	return schema, schemaErr
}

// File is the on-disk document.
type File struct {
	SchemaVersion int    `json:"schema_version"`
	Lists         []List `json:"lists"`
}

// List is one named task list.
type List struct {
	ID    string       `json:"id"`
	Title string       `json:"title,omitempty"`
	Tasks []tasks.Task `json:"tasks"`
}

// list returns the list with the given id, or nil.
func (f *File) list(id string) *List {
	for i := range f.Lists {
		if f.Lists[i].ID == id {
			return &f.Lists[i]
		}
	}
	return nil
}

// ValidationError is one schema violation.
type ValidationError struct {
	Path string // JSON path to the error location
	Err  error
}

func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ValidationErrors collects every violation found in a file.
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return "invalid task file: " + strings.Join(msgs, "; ")
}

// Validate checks raw file contents against the schema.
func Validate(data []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse task file: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		ve, ok := err.(*jsonschema.ValidationError)
		if !ok {
			return err
		}
		var out ValidationErrors
		collectSchemaErrors(&out, ve)
		return out
	}
	return nil
}

func collectSchemaErrors(out *ValidationErrors, err *jsonschema.ValidationError) {
	if len(err.Causes) == 0 {
		*out = append(*out, &ValidationError{
			Path: jsonPointerToPath(err.InstanceLocation),
			Err:  fmt.Errorf("%s", err.Message),
		})
		return
	}
	for _, cause := range err.Causes {
		collectSchemaErrors(out, cause)
	}
}

// jsonPointerToPath turns "/lists/0/tasks/2/status" into "lists[0].tasks[2].status".
func jsonPointerToPath(ptr string) string {
	ptr = strings.TrimPrefix(strings.TrimPrefix(ptr, "#"), "/")
	var b strings.Builder
	for _, part := range strings.Split(ptr, "/") {
		if part == "" {
			continue
		}
		part = strings.NewReplacer("~1", "/", "~0", "~").Replace(part)
		if idx, err := strconv.Atoi(part); err == nil {
			fmt.Fprintf(&b, "[%d]", idx)
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(part)
	}
	return b.String()
}

// Load reads and validates a task file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task file: %w", err)
	}
	if err := Validate(data); err != nil {
		return nil, err
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse task file: %w", err)
	}
	for li := range f.Lists {
		for ti := range f.Lists[li].Tasks {
			t := &f.Lists[li].Tasks[ti]
			status, err := tasks.ParseStatus(string(t.Status))
			if err != nil {
				return nil, &ValidationError{Path: fmt.Sprintf("lists[%d].tasks[%d].status", li, ti), Err: err}
			}
			t.Status = status
		}
	}
	return &f, nil
}

// Save writes the file with 2-space indentation. The previous contents are
// replaced atomically.
func (f *File) Save(path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal task file: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tasks-*.json")
	if err != nil {
		return fmt.Errorf("write task file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write task file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write task file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write task file: %w", err)
	}
	return nil
}

// Store is a tasks.Service reading and writing one task file.
type Store struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

var _ tasks.Service = (*Store)(nil)

// Open returns a store for path after checking the file is valid.
func Open(path string) (*Store, error) {
	if _, err := Load(path); err != nil {
		return nil, err
	}
	return &Store{path: path, now: time.Now}, nil
}

// List returns the tasks of criteria.ListID in file order. Completed tasks are
// left out unless ShowCompleted is set; MaxResults caps the count when set.
func (s *Store) List(ctx context.Context, criteria tasks.Criteria) (tasks.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return tasks.Snapshot{}, err
	}
	if criteria.ListID == "" {
		return tasks.Snapshot{}, tasks.ErrNoListID
	}
	s.mu.Lock()
	f, err := Load(s.path)
	s.mu.Unlock()
	if err != nil {
		return tasks.Snapshot{}, tasks.NewError(tasks.KindTransientFetch, "", err)
	}

	l := f.list(criteria.ListID)
	if l == nil {
		return tasks.Snapshot{}, tasks.NewError(tasks.KindTransientFetch, "", fmt.Errorf("list %q not found in %s", criteria.ListID, s.path))
	}
	snap := tasks.Snapshot{ListID: l.ID, Tasks: make([]tasks.Task, 0, len(l.Tasks))}
	for _, t := range l.Tasks {
		if t.Status.IsCompleted() && !criteria.ShowCompleted {
			continue
		}
		if criteria.MaxResults > 0 && len(snap.Tasks) == criteria.MaxResults {
			break
		}
		snap.Tasks = append(snap.Tasks, t.Clone())
	}
	return snap, nil
}

// Update sets the status of one task and stamps its updated time. Title,
// notes, and due date are left untouched.
func (s *Store) Update(ctx context.Context, req tasks.UpdateRequest) (tasks.Task, error) {
	if err := ctx.Err(); err != nil {
		return tasks.Task{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := Load(s.path)
	if err != nil {
		return tasks.Task{}, tasks.NewError(tasks.KindMutation, req.TaskID, err)
	}
	l := f.list(req.ListID)
	if l == nil {
		return tasks.Task{}, tasks.NewError(tasks.KindMutation, req.TaskID, fmt.Errorf("list %q not found", req.ListID))
	}
	var task *tasks.Task
	for i := range l.Tasks {
		if l.Tasks[i].ID == req.TaskID {
			task = &l.Tasks[i]
			break
		}
	}
	if task == nil {
		return tasks.Task{}, tasks.NewError(tasks.KindMutation, req.TaskID, tasks.ErrTaskNotFound)
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	task.Status = req.Status
	task.Updated = &now
	if err := f.Save(s.path); err != nil {
		return tasks.Task{}, tasks.NewError(tasks.KindMutation, req.TaskID, err)
	}
	return task.Clone(), nil
}

// Example returns a starter file holding one list with a few tasks.
func Example(listID string) *File {
	if listID == "" {
		listID = "today"
	}
	done := time.Now().UTC().Truncate(time.Second)
	return &File{
		SchemaVersion: SchemaVersion,
		Lists: []List{{
			ID:    listID,
			Title: "Today",
			Tasks: []tasks.Task{
				{ID: "water-plants", Title: "Water the plants", Status: tasks.StatusPending},
				{ID: "groceries", Title: "Groceries", Notes: "milk\neggs", Status: tasks.StatusPending},
				{ID: "bread", Title: "Bread", Parent: "groceries", Status: tasks.StatusPending},
				{ID: "call-mum", Title: "Call mum", Status: tasks.StatusCompleted, Updated: &done},
			},
		}},
	}
}
