// Package display implements the task list widget: it mirrors one list
// through a coordinator, polls the helper on a timer, and animates reorders.
package display

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/nibzard/taskmirror/internal/config"
	"github.com/nibzard/taskmirror/internal/coordinator"
	"github.com/nibzard/taskmirror/internal/logging"
	"github.com/nibzard/taskmirror/internal/message"
	"github.com/nibzard/taskmirror/internal/render"
	"github.com/nibzard/taskmirror/internal/tasks"
	"github.com/nibzard/taskmirror/internal/widget"
)

// Kind is the registry name of the task list widget.
const Kind = "tasks"

// frameInterval paces animation frames.
const frameInterval = 16 * time.Millisecond

// Register adds the task list widget to r.
func Register(r *widget.Registry) error {
	return r.Register(Kind, Factory)
}

// Factory builds a task list widget for the host registry.
func Factory(env widget.Env) (widget.Widget, error) {
	return New(env)
}

// pollTickMsg fires when the poll timer of one widget elapses. Ticks from a
// superseded timer carry an old generation and are dropped.
type pollTickMsg struct {
	widget string
	gen    int
}

// frameMsg drives one animation frame.
type frameMsg struct {
	widget string
	at     time.Time
}

// TickFunc schedules fn after d. It matches tea.Tick.
type TickFunc func(d time.Duration, fn func(time.Time) tea.Msg) tea.Cmd

// Option configures a Tasks widget.
type Option func(*Tasks)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(w *Tasks) {
		if now != nil {
			w.now = now
		}
	}
}

// WithTicker overrides how timers are scheduled.
func WithTicker(tick TickFunc) Option {
	return func(w *Tasks) {
		if tick != nil {
			w.tick = tick
		}
	}
}

// WithRequestIDs overrides how mutation request ids are generated.
func WithRequestIDs(next func() string) Option {
	return func(w *Tasks) {
		w.coordOpts = append(w.coordOpts, coordinator.WithRequestIDs(next))
	}
}

// Tasks is the task list widget.
type Tasks struct {
	name   string
	cfg    *config.Config
	logger *log.Logger
	link   widget.Sender

	ctx    context.Context
	cancel context.CancelFunc

	coordOpts []coordinator.Option
	coord     *coordinator.Coordinator
	renderer  *render.Renderer

	now  func() time.Time
	tick TickFunc

	pollGen   int
	polling   bool
	animating bool
	selected  string
	status    string
	statusSty lipgloss.Style
}

// New creates an unmounted task list widget.
func New(env widget.Env, opts ...Option) (*Tasks, error) {
	if env.Link == nil {
		return nil, errors.New("task widget requires a helper link")
	}
	cfg := env.Config
	if cfg == nil {
		cfg = config.Default()
	}
	name := env.Name
	if name == "" {
		name = Kind
	}

	w := &Tasks{
		name:      name,
		cfg:       cfg,
		logger:    logging.Component(env.Logger, name),
		link:      env.Link,
		now:       time.Now,
		tick:      tea.Tick,
		statusSty: lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
	}
	if env.Logger == nil {
		w.logger = logging.Discard()
	}
	for _, opt := range opts {
		opt(w)
	}
	w.ctx, w.cancel = context.WithCancel(context.Background())

	w.coord = coordinator.New(append([]coordinator.Option{
		coordinator.WithLogger(logging.Component(w.logger, "coordinator")),
		coordinator.WithClock(w.now),
	}, w.coordOpts...)...)
	w.renderer = render.New(render.Options{
		Header: cfg.Header,
		Layout: render.LayoutOptions{
			DateLayout: cfg.DateFormat,
			Ordinal:    cfg.DateOrdinal,
		},
		Duration: cfg.AnimationDuration,
		Epsilon:  cfg.AnimationEpsilon,
	})
	w.coord.Subscribe(w.onView)
	return w, nil
}

// Name returns the mount name.
func (w *Tasks) Name() string {
	return w.name
}

// Init validates the list configuration and announces the widget to its
// helper. Without a list id the widget stays in its loading state.
func (w *Tasks) Init() tea.Cmd {
	err := w.coord.Initialize(coordinator.ListConfig{
		ListID:        w.cfg.ListID,
		MaxResults:    w.cfg.MaxResults,
		ShowCompleted: w.cfg.ShowCompleted,
		ShowHidden:    w.cfg.ShowHidden,
	})
	if err != nil {
		w.status = "list_id required: set it in taskmirror.toml or TASKMIRROR_LIST_ID"
		return nil
	}
	return w.send(message.ModuleReady{})
}

// Update handles one event from the host loop.
func (w *Tasks) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case widget.Inbound:
		if msg.Widget != w.name {
			return nil
		}
		return w.handleInbound(msg.Message)
	case pollTickMsg:
		if msg.widget != w.name || msg.gen != w.pollGen {
			return nil
		}
		return tea.Batch(w.poll(), w.armPoll())
	case frameMsg:
		if msg.widget != w.name {
			return nil
		}
		w.renderer.Frame(msg.at)
		if w.renderer.NeedsFrame() {
			return w.frame()
		}
		w.animating = false
		return nil
	case widget.Click:
		if id, ok := w.renderer.HitTest(msg.Row); ok {
			w.selected = id
			return w.toggle(id)
		}
		return nil
	case widget.SendError:
		return w.handleSendError(msg)
	case tea.WindowSizeMsg:
		w.renderer.Resize(msg.Width)
		return nil
	case tea.KeyMsg:
		return w.handleKey(msg)
	}
	return nil
}

func (w *Tasks) handleInbound(m message.Message) tea.Cmd {
	switch m := m.(type) {
	case message.ServiceReady:
		req, ok := w.coord.OnCapabilityReady()
		if !ok {
			return nil
		}
		w.status = ""
		if w.polling {
			return w.send(req)
		}
		w.polling = true
		return tea.Batch(w.send(req), w.armPoll())
	case message.UpdateData:
		if !w.coord.ApplySnapshot(m) {
			return nil
		}
		w.status = ""
		return w.animate()
	case message.UpdateError:
		if err := w.coord.ApplyFetchError(m); err != nil {
			w.status = "sync failed; retrying"
		}
		return nil
	case message.TaskUpdated:
		w.coord.ConfirmUpdate(m)
		return nil
	case message.TaskUpdateError:
		if err := w.coord.FailUpdate(m); err != nil {
			w.status = fmt.Sprintf("could not update task: %s", m.Err)
		}
		return w.animate()
	default:
		w.logger.Warn("ignoring unexpected message", "notification", m.Notification())
		return nil
	}
}

// handleSendError turns an undeliverable update into a rollback; other
// messages are retried by the next poll.
func (w *Tasks) handleSendError(e widget.SendError) tea.Cmd {
	w.logger.Error("helper unreachable", "notification", e.Message.Notification(), "err", e.Err)
	upd, ok := e.Message.(message.UpdateTask)
	if !ok {
		return nil
	}
	if err := w.coord.FailUpdate(message.TaskUpdateError{
		TaskID:    upd.TaskID,
		RequestID: upd.RequestID,
		Err:       e.Err.Error(),
	}); err != nil {
		w.status = "helper unreachable; change reverted"
	}
	return w.animate()
}

func (w *Tasks) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "up", "k":
		w.moveSelection(-1)
	case "down", "j":
		w.moveSelection(1)
	case "enter", " ":
		if w.selected != "" {
			return w.toggle(w.selected)
		}
	case "r":
		return w.poll()
	}
	return nil
}

func (w *Tasks) moveSelection(delta int) {
	order := w.renderer.Order()
	if len(order) == 0 {
		w.selected = ""
		return
	}
	idx := indexOf(order, w.selected)
	if idx < 0 {
		w.selected = order[0]
		return
	}
	idx += delta
	if idx < 0 {
		idx = 0
	}
	if idx >= len(order) {
		idx = len(order) - 1
	}
	w.selected = order[idx]
}

func (w *Tasks) toggle(id string) tea.Cmd {
	upd, err := w.coord.RequestToggle(id)
	if err != nil {
		w.logger.Warn("toggle ignored", "task", id, "err", err)
		return nil
	}
	return tea.Batch(w.animate(), w.send(upd))
}

func (w *Tasks) poll() tea.Cmd {
	req, ok := w.coord.Poll()
	if !ok {
		return nil
	}
	return w.send(req)
}

// armPoll starts a new poll timer generation; older ticks become no-ops.
func (w *Tasks) armPoll() tea.Cmd {
	w.pollGen++
	gen, name := w.pollGen, w.name
	return w.tick(w.cfg.PollInterval(), func(time.Time) tea.Msg {
		return pollTickMsg{widget: name, gen: gen}
	})
}

// animate starts the frame loop when the renderer has work queued.
func (w *Tasks) animate() tea.Cmd {
	if w.animating || !w.renderer.NeedsFrame() {
		return nil
	}
	w.animating = true
	return w.frame()
}

func (w *Tasks) frame() tea.Cmd {
	name := w.name
	return w.tick(frameInterval, func(t time.Time) tea.Msg {
		return frameMsg{widget: name, at: t}
	})
}

func (w *Tasks) send(m message.Message) tea.Cmd {
	return widget.SendCmd(w.ctx, w.link, m)
}

// onView receives every published view from the coordinator.
func (w *Tasks) onView(snap tasks.Snapshot) {
	moved := w.renderer.Update(snap, w.now())
	if len(moved) > 0 {
		w.logger.Debug("animating reorder", "moved", len(moved))
	}
	if w.selected != "" && snap.Index(w.selected) < 0 {
		w.selected = ""
	}
}

// View draws the widget.
func (w *Tasks) View(width int) string {
	w.renderer.Resize(width)
	out := w.renderer.View(w.now(), w.selected)
	if w.status != "" {
		out = strings.TrimRight(out, "\n") + "\n" + w.statusSty.Render(w.status) + "\n"
	}
	return out
}

// Close stops timers and drops the mirror.
func (w *Tasks) Close() {
	w.pollGen++
	w.polling = false
	w.cancel()
	w.coord.Close()
}

// Selected returns the highlighted task id.
func (w *Tasks) Selected() string {
	return w.selected
}

// Coordinator exposes the widget's mirror.
func (w *Tasks) Coordinator() *coordinator.Coordinator {
	return w.coord
}

// Renderer exposes the widget's renderer.
func (w *Tasks) Renderer() *render.Renderer {
	return w.renderer
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
