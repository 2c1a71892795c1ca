// Package notify sends best-effort operational alert emails when a sync or
// batch reaches a terminal failure state. Failure to send here must never
// fail the pipeline operation that triggered it.
package notify

import (
	"context"
	"fmt"

	"github.com/haloestate/leadpipe/internal/platform/logger"
	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

type Notifier struct {
	client *resend.Client
	from   string
	to     string
	log    *logger.Logger
}

// New returns a Notifier. If apiKey or to is empty, alerts are silently
// dropped (logged at debug) rather than erroring — ops alerting is a
// convenience, not a pipeline dependency.
func New(apiKey, from, to string, log *logger.Logger) *Notifier {
	var client *resend.Client
	if apiKey != "" {
		client = resend.NewClient(apiKey)
	}
	return &Notifier{client: client, from: from, to: to, log: log}
}

// OpsAlert sends a plain-text alert about a failed sync or batch. Errors
// are logged and swallowed; callers should not branch on them.
func (n *Notifier) OpsAlert(ctx context.Context, subject, body string) {
	if n.client == nil || n.to == "" {
		n.log.Debug("ops alert suppressed: notifier not configured", zap.String("subject", subject))
		return
	}

	_, err := n.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    n.from,
		To:      []string{n.to},
		Subject: fmt.Sprintf("[leadpipe] %s", subject),
		Text:    body,
	})
	if err != nil {
		n.log.Warn("ops alert failed to send", zap.Error(err), zap.String("subject", subject))
	}
}
