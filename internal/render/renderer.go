// Package render turns a task snapshot into terminal output and animates
// reorders between snapshots.
//
// Each Update captures where every element currently appears, commits the
// new layout, and inverts moved elements back to their old position. The
// inversion is drawn once and the transition to the new layout starts on the
// following frame.
package render

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/nibzard/taskmirror/internal/tasks"
)

// Options configures a Renderer.
type Options struct {
	Header   string
	Width    int
	Layout   LayoutOptions
	Duration time.Duration
	Epsilon  float64
}

// Styles used when drawing.
type Styles struct {
	Header    lipgloss.Style
	Dimmed    lipgloss.Style
	Title     lipgloss.Style
	Completed lipgloss.Style
	Selected  lipgloss.Style
	Notes     lipgloss.Style
	Date      lipgloss.Style
	Separator lipgloss.Style
	BarFill   lipgloss.Style
	BarEmpty  lipgloss.Style
}

// DefaultStyles returns the built-in palette.
func DefaultStyles() Styles {
	return Styles{
		Header:    lipgloss.NewStyle().Bold(true).Underline(true),
		Dimmed:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Title:     lipgloss.NewStyle().Foreground(lipgloss.Color("15")),
		Completed: lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Strikethrough(true),
		Selected:  lipgloss.NewStyle().Background(lipgloss.Color("63")).Foreground(lipgloss.Color("0")),
		Notes:     lipgloss.NewStyle().Foreground(lipgloss.Color("248")).Italic(true),
		Date:      lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		Separator: lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
		BarFill:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		BarEmpty:  lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
	}
}

// Renderer draws the merged view of one task list.
type Renderer struct {
	opts     Options
	styles   Styles
	animator *Animator

	loaded bool
	tasks  []tasks.Task
	tree   *Tree
}

// New creates a renderer in the loading state.
func New(opts Options) *Renderer {
	if opts.Width <= 0 {
		opts.Width = 40
	}
	if opts.Layout.Indent == 0 {
		opts.Layout.Indent = 2
	}
	opts.Layout.Width = opts.Width
	return &Renderer{
		opts:     opts,
		styles:   DefaultStyles(),
		animator: NewAnimator(opts.Duration, opts.Epsilon),
	}
}

// Animator exposes the animator driving reorders.
func (r *Renderer) Animator() *Animator {
	return r.animator
}

// Update commits a new snapshot and starts reorder animations for elements
// whose visual position changed. It returns the ids that will animate.
func (r *Renderer) Update(snap tasks.Snapshot, now time.Time) []string {
	prev := r.animator.Capture(r.tree, now)
	r.loaded = true
	r.tasks = Sort(snap.Tasks)
	r.tree = Build(r.tasks, r.opts.Layout)
	return r.animator.Invert(prev, r.tree)
}

// Resize re-lays out the current tasks for a new width without animating.
func (r *Renderer) Resize(width int) {
	if width <= 0 || width == r.opts.Width {
		return
	}
	r.opts.Width = width
	r.opts.Layout.Width = width
	if r.loaded {
		r.tree = Build(r.tasks, r.opts.Layout)
	}
}

// Frame advances animations.
func (r *Renderer) Frame(now time.Time) {
	r.animator.Frame(now)
}

// NeedsFrame reports whether another frame is required.
func (r *Renderer) NeedsFrame() bool {
	return r.animator.NeedsFrame()
}

// Order returns task ids in display order.
func (r *Renderer) Order() []string {
	ids := make([]string, len(r.tasks))
	for i, t := range r.tasks {
		ids[i] = t.ID
	}
	return ids
}

// Tree returns the committed layout.
func (r *Renderer) Tree() *Tree {
	return r.tree
}

// headerRows is the number of rows drawn above the task canvas.
func (r *Renderer) headerRows() int {
	if r.opts.Header == "" {
		return 0
	}
	return 2
}

// HitTest maps a row of the rendered view to the task whose title is drawn
// there. Notes, dates and separators do not hit.
func (r *Renderer) HitTest(row int) (string, bool) {
	if r.tree == nil {
		return "", false
	}
	y := row - r.headerRows()
	for _, e := range r.tree.Elements {
		line := y - int(e.Rect.Y)
		if line < 0 || line >= len(e.Lines) {
			continue
		}
		if e.Lines[line].Kind != LineTitle {
			return "", false
		}
		return e.ID, true
	}
	return "", false
}

// View draws the list at now. selected highlights one task; pass "" for none.
func (r *Renderer) View(now time.Time, selected string) string {
	var b strings.Builder
	if r.opts.Header != "" {
		b.WriteString(r.styles.Header.Render(r.opts.Header))
		b.WriteString("\n\n")
	}

	switch {
	case !r.loaded:
		b.WriteString(r.styles.Dimmed.Render("LOADING"))
		b.WriteString("\n")
		return b.String()
	case len(r.tasks) == 0:
		b.WriteString(r.styles.Dimmed.Render("EMPTY"))
		b.WriteString("\n")
		return b.String()
	}

	for _, row := range r.canvas(now, selected) {
		b.WriteString(row)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(r.progressBar(Completion(r.tasks)))
	b.WriteString("\n")
	return b.String()
}

// canvas places every element at its layout position plus its animated
// offset. Later elements overwrite earlier ones where they overlap.
func (r *Renderer) canvas(now time.Time, selected string) []string {
	rows := make([]string, r.tree.Height)
	for _, e := range r.tree.Elements {
		off := r.animator.Offset(e.ID, now)
		top := int(math.Round(e.Rect.Y + off.Y))
		left := int(math.Round(e.Rect.X + off.X))
		if left < 0 {
			left = 0
		}
		pad := strings.Repeat(" ", left)
		for k, line := range e.Lines {
			row := top + k
			if row < 0 || row >= len(rows) {
				continue
			}
			rows[row] = pad + r.styleLine(e, line, e.ID == selected)
		}
	}
	return rows
}

func (r *Renderer) styleLine(e Element, line Line, selected bool) string {
	switch line.Kind {
	case LineTitle:
		style := r.styles.Title
		if e.Completed {
			style = r.styles.Completed
		}
		if selected {
			style = r.styles.Selected
		}
		return style.Render(line.Text)
	case LineNotes:
		return r.styles.Notes.Render(line.Text)
	case LineDate:
		return r.styles.Date.Render(line.Text)
	case LineSeparator:
		return r.styles.Separator.Render(line.Text)
	default:
		return line.Text
	}
}

func (r *Renderer) progressBar(frac float64) string {
	label := fmt.Sprintf(" %3.0f%%", frac*100)
	width := r.opts.Width - len(label)
	if width < 1 {
		width = 1
	}
	filled := int(math.Round(frac * float64(width)))
	return r.styles.BarFill.Render(strings.Repeat("█", filled)) +
		r.styles.BarEmpty.Render(strings.Repeat("░", width-filled)) +
		label
}
