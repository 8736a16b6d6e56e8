package helper

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nibzard/taskmirror/internal/logging"
	"github.com/nibzard/taskmirror/internal/message"
)

// ErrLinkClosed is returned by Send after Close.
var ErrLinkClosed = errors.New("helper link closed")

// linkBuffer is the capacity of each direction of a link.
const linkBuffer = 16

// killGrace is how long a spawned helper gets to exit after SIGTERM.
const killGrace = 5 * time.Second

// Link is a widget's connection to its helper. Messages sent with Send reach
// the helper; replies arrive on Receive. The receive channel is closed when
// the helper stops.
type Link struct {
	to   chan message.Message
	from chan message.Message
	done chan struct{}

	mu     sync.RWMutex
	closed bool
	err    error
}

func newLink() *Link {
	return &Link{
		to:   make(chan message.Message, linkBuffer),
		from: make(chan message.Message, linkBuffer),
		done: make(chan struct{}),
	}
}

// InProcess runs h in a goroutine and links to it.
func InProcess(ctx context.Context, h *Helper) *Link {
	l := newLink()
	go func() {
		err := h.Run(ctx, l.to, l.from)
		l.finish(err)
	}()
	return l
}

// Send delivers m to the helper.
func (l *Link) Send(ctx context.Context, m message.Message) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrLinkClosed
	}
	select {
	case l.to <- m:
		return nil
	case <-l.done:
		return ErrLinkClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive returns the channel of helper replies.
func (l *Link) Receive() <-chan message.Message {
	return l.from
}

// Done is closed once the helper has stopped.
func (l *Link) Done() <-chan struct{} {
	return l.done
}

// Err returns why the helper stopped, after Done is closed.
func (l *Link) Err() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.err
}

// Close stops sending and waits for the helper to drain.
func (l *Link) Close() error {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.to)
	}
	l.mu.Unlock()
	<-l.done
	return l.Err()
}

func (l *Link) finish(err error) {
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	l.mu.Lock()
	l.err = err
	l.mu.Unlock()
	close(l.from)
	close(l.done)
}

// Spawn starts an out-of-process helper and links to it over its stdin and
// stdout. The child's stderr is forwarded to logger.
func Spawn(ctx context.Context, logger *log.Logger, path string, args ...string) (*Link, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = killGrace

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting helper %s: %w", path, err)
	}

	l := newLink()
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			logger.Warn("helper stderr", "line", scanner.Text())
		}
	}()
	go func() {
		defer stdin.Close()
		if err := message.WriteStream(ctx, stdin, l.to); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("writing to helper", "err", err)
		}
	}()
	go func() {
		readErr := message.ReadStream(ctx, stdout, l.from, func(err error) {
			logger.Warn("undecodable helper message", "err", err)
		})
		waitErr := cmd.Wait()
		if readErr != nil && !errors.Is(readErr, context.Canceled) {
			l.finish(readErr)
			return
		}
		if waitErr != nil && ctx.Err() == nil {
			l.finish(fmt.Errorf("helper exited: %w", waitErr))
			return
		}
		l.finish(nil)
	}()
	return l, nil
}

// Serve runs h over a byte stream, reading requests from r and writing
// replies to w. It returns when r is exhausted and every request has been
// answered, or when ctx is done.
func Serve(ctx context.Context, h *Helper, r io.Reader, w io.Writer, logger *log.Logger) error {
	if logger == nil {
		logger = logging.Discard()
	}
	in := make(chan message.Message, linkBuffer)
	out := make(chan message.Message, linkBuffer)

	readErr := make(chan error, 1)
	go func() {
		defer close(in)
		readErr <- message.ReadStream(ctx, r, in, func(err error) {
			logger.Warn("undecodable request", "err", err)
		})
	}()

	runErr := make(chan error, 1)
	go func() {
		defer close(out)
		runErr <- h.Run(ctx, in, out)
	}()

	if err := message.WriteStream(ctx, w, out); err != nil {
		return err
	}
	if err := <-runErr; err != nil {
		return err
	}
	return <-readErr
}
