package render

import (
	"math"
	"time"
)

// Position is an element's visual top-left corner.
type Position struct {
	X, Y float64
}

// PositionRecord maps task ids to visual positions captured before a
// re-render.
type PositionRecord map[string]Position

// Style is the animation state of one element. Offset is the translation
// applied on top of the element's layout position.
type Style struct {
	From      Position
	Playing   bool
	StartedAt time.Time
}

// FrameFunc runs on the next animation frame.
type FrameFunc func(now time.Time)

// Animator moves elements from their old visual positions to their new
// layout positions. Frame callbacks queued with RequestFrame run on the next
// Frame call, after the inverted layout has been drawn once.
type Animator struct {
	Duration time.Duration
	Epsilon  float64
	Easing   CubicBezier

	styles map[string]*Style
	queue  []FrameFunc
}

// NewAnimator returns an animator with the given transition duration and
// movement threshold in cells.
func NewAnimator(duration time.Duration, epsilon float64) *Animator {
	return &Animator{
		Duration: duration,
		Epsilon:  epsilon,
		Easing:   Standard,
		styles:   make(map[string]*Style),
	}
}

// Offset returns the translation of id at now.
func (a *Animator) Offset(id string, now time.Time) Position {
	s, ok := a.styles[id]
	if !ok {
		return Position{}
	}
	if !s.Playing {
		return s.From
	}
	if a.Duration <= 0 {
		return Position{}
	}
	p := float64(now.Sub(s.StartedAt)) / float64(a.Duration)
	remain := 1 - a.Easing.At(p)
	return Position{X: s.From.X * remain, Y: s.From.Y * remain}
}

// Capture records the visual position of every element in tree, including
// any offset still in flight.
func (a *Animator) Capture(tree *Tree, now time.Time) PositionRecord {
	rec := make(PositionRecord)
	if tree == nil {
		return rec
	}
	for _, e := range tree.Elements {
		off := a.Offset(e.ID, now)
		rec[e.ID] = Position{X: e.Rect.X + off.X, Y: e.Rect.Y + off.Y}
	}
	return rec
}

// Invert applies the delta between the captured positions and the committed
// tree to every element that moved more than Epsilon on either axis, then
// queues the transition to start on the next frame. It returns the ids that
// will animate.
func (a *Animator) Invert(prev PositionRecord, tree *Tree) []string {
	next := make(map[string]*Style, len(tree.Elements))
	var moved []string
	for _, e := range tree.Elements {
		old, ok := prev[e.ID]
		if !ok {
			continue
		}
		dx := old.X - e.Rect.X
		dy := old.Y - e.Rect.Y
		if math.Abs(dx) <= a.Epsilon && math.Abs(dy) <= a.Epsilon {
			continue
		}
		next[e.ID] = &Style{From: Position{X: dx, Y: dy}}
		moved = append(moved, e.ID)
	}
	a.styles = next
	if len(moved) > 0 {
		a.RequestFrame(func(now time.Time) { a.play(moved, now) })
	}
	return moved
}

func (a *Animator) play(ids []string, now time.Time) {
	for _, id := range ids {
		if s, ok := a.styles[id]; ok && !s.Playing {
			s.Playing = true
			s.StartedAt = now
		}
	}
}

// RequestFrame queues fn for the next frame.
func (a *Animator) RequestFrame(fn FrameFunc) {
	a.queue = append(a.queue, fn)
}

// Frame runs queued callbacks and drops finished transitions.
func (a *Animator) Frame(now time.Time) {
	queue := a.queue
	a.queue = nil
	for _, fn := range queue {
		fn(now)
	}
	for id, s := range a.styles {
		if s.Playing && now.Sub(s.StartedAt) >= a.Duration {
			delete(a.styles, id)
		}
	}
}

// NeedsFrame reports whether callbacks are queued or a transition is running.
func (a *Animator) NeedsFrame() bool {
	return len(a.queue) > 0 || len(a.styles) > 0
}

// Style returns the current style of id.
func (a *Animator) Style(id string) (Style, bool) {
	s, ok := a.styles[id]
	if !ok {
		return Style{}, false
	}
	return *s, true
}
