// Package ui hosts mounted widgets in a full-screen terminal program.
package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/nibzard/taskmirror/internal/logging"
	"github.com/nibzard/taskmirror/internal/message"
	"github.com/nibzard/taskmirror/internal/widget"
)

// Source delivers a widget's inbound helper messages. The channel is
// closed when the helper stops.
type Source interface {
	Receive() <-chan message.Message
}

// Mount pairs a widget with the source of its helper replies.
type Mount struct {
	Widget widget.Widget
	Source Source
}

type inboundMsg struct {
	widget string
	msg    message.Message
}

type sourceClosedMsg struct {
	widget string
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithLogger sets the host logger.
func WithLogger(l *log.Logger) HostOption {
	return func(h *Host) {
		if l != nil {
			h.logger = l
		}
	}
}

// Host is the root tea.Model. It routes helper replies to their widget by
// name, keys to the focused widget, and clicks to the widget under the
// pointer. Everything else is broadcast.
type Host struct {
	mounts []Mount
	logger *log.Logger

	width  int
	height int
	focus  int

	// tops[i] is the first screen row of widget i in the last View.
	tops    []int
	heights []int

	closed map[string]bool
	footer lipgloss.Style
}

// NewHost returns a host for the given mounts, drawn top to bottom.
func NewHost(mounts []Mount, opts ...HostOption) *Host {
	h := &Host{
		mounts: mounts,
		logger: logging.Discard(),
		width:  40,
		closed: make(map[string]bool),
		footer: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Init starts every widget and begins draining each helper source.
func (h *Host) Init() tea.Cmd {
	cmds := make([]tea.Cmd, 0, 2*len(h.mounts))
	for _, m := range h.mounts {
		cmds = append(cmds, m.Widget.Init())
		if m.Source != nil {
			cmds = append(cmds, waitForInbound(m.Widget.Name(), m.Source.Receive()))
		}
	}
	return tea.Batch(cmds...)
}

func waitForInbound(name string, ch <-chan message.Message) tea.Cmd {
	return func() tea.Msg {
		m, ok := <-ch
		if !ok {
			return sourceClosedMsg{widget: name}
		}
		return inboundMsg{widget: name, msg: m}
	}
}

// Update implements tea.Model.
func (h *Host) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return h, tea.Quit
		case "tab":
			if len(h.mounts) > 0 {
				h.focus = (h.focus + 1) % len(h.mounts)
			}
			return h, nil
		}
		if w := h.focused(); w != nil {
			return h, w.Update(msg)
		}
		return h, nil
	case tea.MouseMsg:
		return h, h.click(msg)
	case tea.WindowSizeMsg:
		h.width, h.height = msg.Width, msg.Height
		return h, h.broadcast(msg)
	case inboundMsg:
		m, ok := h.mount(msg.widget)
		if !ok {
			return h, nil
		}
		cmd := m.Widget.Update(widget.Inbound{Widget: msg.widget, Message: msg.msg})
		return h, tea.Batch(cmd, waitForInbound(msg.widget, m.Source.Receive()))
	case sourceClosedMsg:
		h.closed[msg.widget] = true
		h.logger.Warn("helper stopped", "widget", msg.widget)
		return h, nil
	}
	return h, h.broadcast(msg)
}

func (h *Host) click(msg tea.MouseMsg) tea.Cmd {
	if msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
		return nil
	}
	for i, top := range h.tops {
		if msg.Y >= top && msg.Y < top+h.heights[i] {
			h.focus = i
			return h.mounts[i].Widget.Update(widget.Click{Row: msg.Y - top})
		}
	}
	return nil
}

func (h *Host) broadcast(msg tea.Msg) tea.Cmd {
	cmds := make([]tea.Cmd, 0, len(h.mounts))
	for _, m := range h.mounts {
		cmds = append(cmds, m.Widget.Update(msg))
	}
	return tea.Batch(cmds...)
}

func (h *Host) focused() widget.Widget {
	if h.focus < 0 || h.focus >= len(h.mounts) {
		return nil
	}
	return h.mounts[h.focus].Widget
}

func (h *Host) mount(name string) (Mount, bool) {
	for _, m := range h.mounts {
		if m.Widget.Name() == name {
			return m, true
		}
	}
	return Mount{}, false
}

// View implements tea.Model. Widgets are stacked with one blank row
// between them.
func (h *Host) View() string {
	var b strings.Builder
	h.tops = h.tops[:0]
	h.heights = h.heights[:0]
	row := 0
	for i, m := range h.mounts {
		if i > 0 {
			b.WriteString("\n")
			row++
		}
		out := strings.TrimRight(m.Widget.View(h.width), "\n")
		n := strings.Count(out, "\n") + 1
		h.tops = append(h.tops, row)
		h.heights = append(h.heights, n)
		b.WriteString(out)
		b.WriteString("\n")
		row += n
	}
	b.WriteString("\n")
	b.WriteString(h.footer.Render(h.helpLine()))
	return b.String()
}

func (h *Host) helpLine() string {
	line := "↑/↓ select · enter toggle · r refresh · q quit"
	if len(h.mounts) > 1 {
		line += " · tab focus"
	}
	offline := make([]string, 0, len(h.closed))
	for name := range h.closed {
		offline = append(offline, name)
	}
	sort.Strings(offline)
	for _, name := range offline {
		line += fmt.Sprintf(" · %s offline", name)
	}
	return line
}

// Close tears down every widget.
func (h *Host) Close() {
	for _, m := range h.mounts {
		m.Widget.Close()
	}
}

// Run drives the host until the user quits or ctx is done.
func Run(ctx context.Context, h *Host) error {
	if !IsTTY(os.Stdout) {
		return fmt.Errorf("display requires a TTY")
	}
	defer h.Close()
	program := tea.NewProgram(h, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// IsTTY returns true if w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
