// Package notify delivers human-readable change messages to chat recipients.
//
// Notifier is a bus subscriber. Delivery goes through a Sender so the chat
// transport stays outside this module; WriterSender prints to a stream.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/danieljhkim/watchguard/internal/bus"
)

// DefaultOrigin is appended to every message as "- Added via <origin>".
const DefaultOrigin = "watchguard"

// sendTimeout bounds one Send call.
const sendTimeout = 10 * time.Second

// Sender delivers one message to one recipient.
type Sender interface {
	Send(ctx context.Context, recipient, text string) error
}

// WriterSender writes messages to w, one block per recipient.
type WriterSender struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSender creates a WriterSender.
func NewWriterSender(w io.Writer) *WriterSender {
	return &WriterSender{w: w}
}

// Send writes "[recipient]" followed by text.
func (s *WriterSender) Send(_ context.Context, recipient, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.w, "[%s]\n%s\n\n", recipient, text)
	return err
}

// Notifier formats events and sends them to every recipient.
type Notifier struct {
	sender     Sender
	recipients func() []string
	origin     string
	logger     *zap.Logger
}

// New creates a Notifier. recipients is consulted on every event so that
// edits to the recipient list take effect without a restart.
func New(sender Sender, recipients func() []string, origin string, logger *zap.Logger) *Notifier {
	if origin == "" {
		origin = DefaultOrigin
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		sender:     sender,
		recipients: recipients,
		origin:     origin,
		logger:     logger,
	}
}

// Handle is the bus.Handler. Per-recipient failures are joined into the
// returned error; the bus logs it.
func (n *Notifier) Handle(event bus.Event) error {
	text := Format(event, n.origin)
	if text == "" {
		return nil
	}

	recipients := n.recipients()
	if len(recipients) == 0 {
		n.logger.Debug("no recipients configured", zap.String("event", event.String()))
		return nil
	}

	var errs []error
	for _, r := range recipients {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		err := n.sender.Send(ctx, r, text)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("send to %s: %w", r, err))
		}
	}
	return errors.Join(errs...)
}
