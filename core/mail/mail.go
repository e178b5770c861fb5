// Package mail renders transactional mail from templates and hands the
// result to a pluggable sender.
package mail

import (
	"context"
	"strings"

	"github.com/consumedhq/consumed/core/logger"
)

// Message is a rendered mail ready for delivery.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers rendered messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Build renders a template by substituting `{placeholder}` markers.
func Build(template string, placeholders map[string]string) string {
	pairs := make([]string, 0, len(placeholders)*2)
	for key, value := range placeholders {
		pairs = append(pairs, "{"+key+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// LogSender writes mail to the log instead of delivering it. Used in
// development and test environments.
type LogSender struct{}

// Send implements Sender.
func (LogSender) Send(ctx context.Context, msg Message) error {
	logger.FromContext(ctx).WithField("to", msg.To).Infoln("mail:", msg.Subject)
	return nil
}
