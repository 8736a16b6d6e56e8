package render

import (
	"sort"

	"github.com/nibzard/taskmirror/internal/tasks"
)

// Sort returns a copy of list ordered for display: pending tasks first in
// their original order, then completed tasks with the most recently updated
// first. Completed tasks without an updated time go last.
func Sort(list []tasks.Task) []tasks.Task {
	sorted := make([]tasks.Task, len(list))
	copy(sorted, list)
	sort.SliceStable(sorted, func(i, j int) bool {
		left, right := sorted[i], sorted[j]
		if left.Status.IsCompleted() != right.Status.IsCompleted() {
			return !left.Status.IsCompleted()
		}
		if !left.Status.IsCompleted() {
			return false
		}
		if left.Updated == nil || right.Updated == nil {
			return left.Updated != nil && right.Updated == nil
		}
		return left.Updated.After(*right.Updated)
	})
	return sorted
}

// Completion returns the fraction of completed tasks, or 0 for an empty list.
func Completion(list []tasks.Task) float64 {
	if len(list) == 0 {
		return 0
	}
	done := 0
	for _, t := range list {
		if t.Status.IsCompleted() {
			done++
		}
	}
	return float64(done) / float64(len(list))
}
