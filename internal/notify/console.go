package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/JonMunkholm/ExamSeat/internal/core"
	"github.com/JonMunkholm/ExamSeat/internal/logging"
)

// Console logs messages instead of sending them. It is the dry-run sender
// used when no mail key is configured.
type Console struct {
	subjPrefix string

	mu   sync.Mutex
	sent []core.EmailMessage
}

var _ core.EmailSender = (*Console)(nil)

func NewConsole(appName string) *Console {
	return &Console{subjPrefix: "[" + appName + "] "}
}

func (c *Console) Send(ctx context.Context, msg core.EmailMessage) error {
	if msg.ToAddress == "" {
		return ErrNoRecipient
	}
	logging.FromContext(ctx).Info("email (dry run)",
		slog.String("to", msg.ToAddress),
		slog.String("subject", c.subjPrefix+msg.Subject),
		slog.Int("text_bytes", len(msg.Text)),
	)

	c.mu.Lock()
	c.sent = append(c.sent, msg)
	c.mu.Unlock()
	return nil
}

// Sent returns a copy of everything passed to Send.
func (c *Console) Sent() []core.EmailMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]core.EmailMessage(nil), c.sent...)
}
