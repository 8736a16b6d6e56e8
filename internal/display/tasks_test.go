package display

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nibzard/taskmirror/internal/config"
	"github.com/nibzard/taskmirror/internal/message"
	"github.com/nibzard/taskmirror/internal/tasks"
	"github.com/nibzard/taskmirror/internal/widget"
)

type recordingLink struct {
	sent []message.Message
	err  error
}

func (r *recordingLink) Send(ctx context.Context, m message.Message) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, m)
	return nil
}

func (r *recordingLink) last() message.Message {
	if len(r.sent) == 0 {
		return nil
	}
	return r.sent[len(r.sent)-1]
}

type harness struct {
	t     *testing.T
	w     *Tasks
	link  *recordingLink
	now   time.Time
	ticks []time.Duration
}

func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()
	cfg := config.Default()
	cfg.ListID = "L"
	cfg.Header = ""
	if mutate != nil {
		mutate(cfg)
	}
	h := &harness{t: t, link: &recordingLink{}, now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	n := 0
	w, err := New(widget.Env{Name: "tasks", Config: cfg, Link: h.link},
		WithClock(func() time.Time { return h.now }),
		WithTicker(func(d time.Duration, fn func(time.Time) tea.Msg) tea.Cmd {
			h.ticks = append(h.ticks, d)
			at := h.now.Add(d)
			return func() tea.Msg { return fn(at) }
		}),
		WithRequestIDs(func() string {
			n++
			return fmt.Sprintf("req-%d", n)
		}),
	)
	if err != nil {
		t.Fatal(err)
	}
	h.w = w
	return h
}

// run executes cmd and every command batched inside it, returning the
// messages produced. Produced messages are not fed back.
func run(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, run(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

func (h *harness) inbound(m message.Message) []tea.Msg {
	return run(h.w.Update(widget.Inbound{Widget: "tasks", Message: m}))
}

func (h *harness) ready(items ...tasks.Task) {
	h.t.Helper()
	run(h.w.Init())
	h.inbound(message.ServiceReady{})
	h.inbound(message.UpdateData{ListID: "L", Items: items})
}

func find[T any](msgs []tea.Msg) (T, bool) {
	for _, m := range msgs {
		if v, ok := m.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func ts(h int) *time.Time {
	t := time.Date(2024, 3, 1, h, 0, 0, 0, time.UTC)
	return &t
}

func TestNewRequiresLink(t *testing.T) {
	if _, err := New(widget.Env{}); err == nil {
		t.Error("expected error without link")
	}
}

func TestRegister(t *testing.T) {
	reg := widget.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatal(err)
	}
	w, err := reg.Build(Kind, widget.Env{Name: "today", Link: &recordingLink{}})
	if err != nil {
		t.Fatal(err)
	}
	if w.Name() != "today" {
		t.Errorf("Name = %q", w.Name())
	}
}

func TestInitWithoutListID(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.ListID = "" })
	if cmd := h.w.Init(); cmd != nil {
		t.Error("Init should not contact the helper without a list id")
	}
	if len(h.link.sent) != 0 {
		t.Errorf("sent %v", h.link.sent)
	}
	view := h.w.View(40)
	if !strings.Contains(view, "LOADING") || !strings.Contains(view, "list_id required") {
		t.Errorf("view = %q", view)
	}
}

func TestStartupSequence(t *testing.T) {
	h := newHarness(t, nil)

	run(h.w.Init())
	if _, ok := h.link.last().(message.ModuleReady); !ok {
		t.Fatalf("Init sent %#v, want ModuleReady", h.link.last())
	}

	msgs := h.inbound(message.ServiceReady{})
	req, ok := h.link.last().(message.RequestUpdate)
	if !ok {
		t.Fatalf("ServiceReady sent %#v, want RequestUpdate", h.link.last())
	}
	if req.ListID != "L" || !req.ShowHidden {
		t.Errorf("request = %+v", req)
	}
	tick, ok := find[pollTickMsg](msgs)
	if !ok {
		t.Fatal("no poll timer armed")
	}
	if h.ticks[len(h.ticks)-1] != 10*time.Second {
		t.Errorf("poll interval = %v", h.ticks[len(h.ticks)-1])
	}

	// A repeated SERVICE_READY polls but does not start a second timer.
	before := len(h.ticks)
	msgs = h.inbound(message.ServiceReady{})
	if _, ok := find[pollTickMsg](msgs); ok || len(h.ticks) != before {
		t.Error("second ServiceReady armed another timer")
	}

	// The armed tick polls and re-arms.
	sent := len(h.link.sent)
	msgs = run(h.w.Update(tick))
	if len(h.link.sent) != sent+1 {
		t.Errorf("tick did not poll")
	}
	next, ok := find[pollTickMsg](msgs)
	if !ok || next.gen == tick.gen {
		t.Errorf("tick did not re-arm with a new generation")
	}

	// The superseded tick is dropped.
	sent = len(h.link.sent)
	if cmd := h.w.Update(tick); cmd != nil || len(h.link.sent) != sent {
		t.Error("stale tick was not ignored")
	}
}

func TestSnapshotRendersSorted(t *testing.T) {
	h := newHarness(t, nil)
	h.ready(
		tasks.Task{ID: "a", Title: "Old done", Status: tasks.StatusCompleted, Updated: ts(8)},
		tasks.Task{ID: "b", Title: "Pending", Status: tasks.StatusPending},
		tasks.Task{ID: "c", Title: "New done", Status: tasks.StatusCompleted, Updated: ts(10)},
	)
	order := strings.Join(h.w.Renderer().Order(), ",")
	if order != "b,c,a" {
		t.Errorf("order = %s, want b,c,a", order)
	}
	view := h.w.View(40)
	if !strings.Contains(view, "Pending") || !strings.Contains(view, "67%") {
		t.Errorf("view = %q", view)
	}
}

func TestSnapshotForOtherListIgnored(t *testing.T) {
	h := newHarness(t, nil)
	h.ready()
	h.inbound(message.UpdateData{ListID: "other", Items: []tasks.Task{{ID: "x", Title: "X"}}})
	if len(h.w.Renderer().Order()) != 0 {
		t.Error("snapshot for another list was applied")
	}
	if !strings.Contains(h.w.View(40), "EMPTY") {
		t.Error("expected EMPTY view")
	}
}

func TestToggleRoundTrip(t *testing.T) {
	h := newHarness(t, nil)
	h.ready(
		tasks.Task{ID: "a", Title: "First", Status: tasks.StatusPending},
		tasks.Task{ID: "b", Title: "Second", Status: tasks.StatusPending},
	)

	// Select and toggle the first task from the keyboard.
	h.w.Update(tea.KeyMsg{Type: tea.KeyDown})
	if h.w.Selected() != "a" {
		t.Fatalf("selected = %q", h.w.Selected())
	}
	msgs := run(h.w.Update(tea.KeyMsg{Type: tea.KeyEnter}))

	upd, ok := h.link.last().(message.UpdateTask)
	if !ok {
		t.Fatalf("toggle sent %#v", h.link.last())
	}
	if upd.TaskID != "a" || upd.Status != tasks.StatusCompleted || upd.RequestID != "req-1" {
		t.Errorf("update = %+v", upd)
	}
	// The completed task moves below the pending one, so a frame is scheduled.
	if _, ok := find[frameMsg](msgs); !ok {
		t.Error("no animation frame scheduled after reorder")
	}
	if got := strings.Join(h.w.Renderer().Order(), ","); got != "b,a" {
		t.Errorf("optimistic order = %s", got)
	}

	h.inbound(message.TaskUpdated{TaskID: "a", Status: tasks.StatusCompleted, RequestID: "req-1"})
	if h.w.Coordinator().PendingCount() != 0 {
		t.Error("confirmation did not resolve the mutation")
	}
}

func TestToggleFailureRollsBack(t *testing.T) {
	h := newHarness(t, nil)
	h.ready(tasks.Task{ID: "a", Title: "Only", Status: tasks.StatusPending})

	run(h.w.Update(widget.Click{Row: 0}))
	view, _ := h.w.Coordinator().View()
	if view.Tasks[0].Status != tasks.StatusCompleted {
		t.Fatal("click did not toggle optimistically")
	}

	h.inbound(message.TaskUpdateError{TaskID: "a", RequestID: "req-1", Err: "quota"})
	view, _ = h.w.Coordinator().View()
	if view.Tasks[0].Status != tasks.StatusPending {
		t.Error("failure did not roll back")
	}
	if !strings.Contains(h.w.View(40), "could not update task") {
		t.Error("failure not surfaced in view")
	}
}

func TestSendErrorRollsBackUpdate(t *testing.T) {
	h := newHarness(t, nil)
	h.ready(tasks.Task{ID: "a", Title: "Only", Status: tasks.StatusPending})

	h.link.err = errors.New("link down")
	msgs := run(h.w.Update(widget.Click{Row: 0}))
	se, ok := find[widget.SendError](msgs)
	if !ok {
		t.Fatal("expected SendError")
	}
	run(h.w.Update(se))

	view, _ := h.w.Coordinator().View()
	if view.Tasks[0].Status != tasks.StatusPending {
		t.Error("undeliverable update was not rolled back")
	}
}

func TestFetchErrorKeepsView(t *testing.T) {
	h := newHarness(t, nil)
	h.ready(tasks.Task{ID: "a", Title: "Kept", Status: tasks.StatusPending})
	h.inbound(message.UpdateError{ListID: "L", Err: "503"})

	view := h.w.View(40)
	if !strings.Contains(view, "Kept") || !strings.Contains(view, "retrying") {
		t.Errorf("view = %q", view)
	}
}

func TestFramesRunUntilAnimationEnds(t *testing.T) {
	h := newHarness(t, nil)
	h.ready(
		tasks.Task{ID: "a", Title: "First", Status: tasks.StatusPending},
		tasks.Task{ID: "b", Title: "Second", Status: tasks.StatusPending},
	)
	msgs := run(h.w.Update(widget.Click{Row: 0}))
	frame, ok := find[frameMsg](msgs)
	if !ok {
		t.Fatal("no frame scheduled")
	}

	// First frame starts the transition and asks for another.
	msgs = run(h.w.Update(frame))
	if _, ok := find[frameMsg](msgs); !ok {
		t.Fatal("animation stopped after its first frame")
	}

	// A frame past the duration ends the loop.
	done := frameMsg{widget: "tasks", at: frame.at.Add(time.Second)}
	if cmd := h.w.Update(done); cmd != nil {
		t.Error("frame loop did not stop after the transition")
	}
	if h.w.Renderer().NeedsFrame() {
		t.Error("renderer still animating")
	}
}

func TestPollKeyBeforeReady(t *testing.T) {
	h := newHarness(t, nil)
	run(h.w.Init())
	if cmd := h.w.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")}); cmd != nil {
		t.Error("poll before SERVICE_READY should do nothing")
	}
}

func TestMessagesForOtherWidgetsIgnored(t *testing.T) {
	h := newHarness(t, nil)
	run(h.w.Init())
	if cmd := h.w.Update(widget.Inbound{Widget: "other", Message: message.ServiceReady{}}); cmd != nil {
		t.Error("inbound for another widget was handled")
	}
	if cmd := h.w.Update(pollTickMsg{widget: "other", gen: 0}); cmd != nil {
		t.Error("tick for another widget was handled")
	}
}

func TestCloseStopsPolling(t *testing.T) {
	h := newHarness(t, nil)
	run(h.w.Init())
	msgs := h.inbound(message.ServiceReady{})
	tick, _ := find[pollTickMsg](msgs)
	h.w.Close()

	sent := len(h.link.sent)
	if cmd := h.w.Update(tick); cmd != nil || len(h.link.sent) != sent {
		t.Error("tick after Close still polled")
	}
}
