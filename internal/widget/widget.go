// Package widget defines the contract between the display host and the
// widgets it mounts.
//
// A widget lives entirely on the host's event loop: Init, Update, View and
// Close are never called concurrently. Anything that blocks goes through a
// tea.Cmd or through the widget's Link to its backend helper.
package widget

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/nibzard/taskmirror/internal/config"
	"github.com/nibzard/taskmirror/internal/message"
)

// Widget is a mounted display component.
type Widget interface {
	// Name is the unique mount name; inbound helper messages are routed by it.
	Name() string
	Init() tea.Cmd
	Update(msg tea.Msg) tea.Cmd
	View(width int) string
	Close()
}

// Sender delivers messages to a widget's helper.
type Sender interface {
	Send(ctx context.Context, m message.Message) error
}

// Inbound wraps a helper message addressed to one widget.
type Inbound struct {
	Widget  string
	Message message.Message
}

// Click is a left click on a widget, translated to the widget's own rows.
type Click struct {
	Row int
}

// Env is what a factory receives when the host mounts a widget.
type Env struct {
	Name   string
	Config *config.Config
	Logger *log.Logger
	Link   Sender
}

// Factory builds a widget for a mount.
type Factory func(env Env) (Widget, error)

// SendCmd returns a command that ships m over s. Delivery failures come
// back as SendError.
func SendCmd(ctx context.Context, s Sender, m message.Message) tea.Cmd {
	return func() tea.Msg {
		if err := s.Send(ctx, m); err != nil {
			return SendError{Message: m, Err: err}
		}
		return nil
	}
}

// SendError reports a message that could not be delivered to the helper.
type SendError struct {
	Message message.Message
	Err     error
}

func (e SendError) Error() string {
	return "sending " + string(e.Message.Notification()) + ": " + e.Err.Error()
}
