package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/nibzard/taskmirror/internal/tasks"
)

// Rect is an element's box in terminal cells. Coordinates are floats so
// animated offsets can be fractional between frames.
type Rect struct {
	X, Y, W, H float64
}

// LineKind tells the renderer how to style a line.
type LineKind int

const (
	LineTitle LineKind = iota
	LineNotes
	LineDate
	LineSeparator
)

// Line is one row of an element.
type Line struct {
	Kind LineKind
	Text string
}

// Element is the laid-out block for one task.
type Element struct {
	ID        string
	Completed bool
	Child     bool
	Lines     []Line
	Rect      Rect
}

// Tree is one committed layout.
type Tree struct {
	Elements []Element
	Height   int
	byID     map[string]int
}

// Get returns the element for id.
func (t *Tree) Get(id string) (Element, bool) {
	if t == nil {
		return Element{}, false
	}
	i, ok := t.byID[id]
	if !ok {
		return Element{}, false
	}
	return t.Elements[i], true
}

// LayoutOptions controls how tasks are laid out.
type LayoutOptions struct {
	Width      int
	Indent     int
	DateLayout string
	Ordinal    bool
}

const (
	iconPending   = "☐"
	iconCompleted = "☑"
)

// Build lays out already sorted tasks top to bottom.
func Build(list []tasks.Task, opts LayoutOptions) *Tree {
	if opts.Width <= 0 {
		opts.Width = 40
	}
	tree := &Tree{byID: make(map[string]int, len(list))}
	y := 0
	for i, t := range list {
		x := 0
		if t.IsChild() {
			x = opts.Indent
		}
		w := opts.Width - x
		if w < 1 {
			w = 1
		}

		icon := iconPending
		if t.Status.IsCompleted() {
			icon = iconCompleted
		}
		lines := []Line{{Kind: LineTitle, Text: fit(icon+" "+t.Title, w)}}
		if t.Notes != "" {
			for _, n := range strings.Split(t.Notes, "\n") {
				lines = append(lines, Line{Kind: LineNotes, Text: fit("  "+n, w)})
			}
		}
		if t.Due != nil {
			lines = append(lines, Line{Kind: LineDate, Text: fit("  "+FormatDue(*t.Due, opts.DateLayout, opts.Ordinal), w)})
		}
		if i < len(list)-1 && !list[i+1].IsChild() {
			lines = append(lines, Line{Kind: LineSeparator, Text: strings.Repeat("─", w)})
		}

		tree.byID[t.ID] = len(tree.Elements)
		tree.Elements = append(tree.Elements, Element{
			ID:        t.ID,
			Completed: t.Status.IsCompleted(),
			Child:     t.IsChild(),
			Lines:     lines,
			Rect:      Rect{X: float64(x), Y: float64(y), W: float64(w), H: float64(len(lines))},
		})
		y += len(lines)
	}
	tree.Height = y
	return tree
}

// FormatDue renders a due date in UTC. With ordinal set and a layout ending
// in the day of month, the day gets its English suffix ("May 1st").
func FormatDue(due time.Time, layout string, ordinal bool) string {
	if layout == "" {
		layout = "Jan 2"
	}
	due = due.UTC()
	s := due.Format(layout)
	if ordinal && strings.HasSuffix(layout, "2") {
		s += ordinalSuffix(due.Day())
	}
	return s
}

func ordinalSuffix(day int) string {
	if day%100 >= 11 && day%100 <= 13 {
		return "th"
	}
	switch day % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}

func fit(s string, w int) string {
	if runewidth.StringWidth(s) <= w {
		return s
	}
	return runewidth.Truncate(s, w, "…")
}

func (e Element) String() string {
	return fmt.Sprintf("%s@(%.1f,%.1f)", e.ID, e.Rect.X, e.Rect.Y)
}
