package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	pkglogger "github.com/spokehq/gearvault/pkg/logger"
)

// AWSSESNotifier sends security notification emails via AWS SES.
// Notifications are best effort: failures are logged, never surfaced to the
// client, and never block the auth operation that triggered them.
type AWSSESNotifier struct {
	sesClient   *ses.Client
	fromAddress string
	logger      *slog.Logger
}

// NewAWSSESNotifier creates a new AWS SES notifier
func NewAWSSESNotifier(region, fromAddress string, logger *slog.Logger) (*AWSSESNotifier, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESNotifier{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		logger:      logger,
	}, nil
}

// NotifySecurityEvent sends a security notification asynchronously. The send
// runs on its own context with a bounded timeout so it outlives the request
// that triggered it without blocking it.
func (n *AWSSESNotifier) NotifySecurityEvent(_ context.Context, email, subject, body string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		textBody := fmt.Sprintf(`%s

If you made this change, no action is needed. If you did not, change your password and review your account security settings right away.

This is an automated security notification. Please do not reply to this email.
`, body)

		input := &ses.SendEmailInput{
			Source: aws.String(n.fromAddress),
			Destination: &types.Destination{
				ToAddresses: []string{email},
			},
			Message: &types.Message{
				Subject: &types.Content{
					Data: aws.String(subject),
				},
				Body: &types.Body{
					Text: &types.Content{
						Data: aws.String(textBody),
					},
				},
			},
		}

		if _, err := n.sesClient.SendEmail(ctx, input); err != nil {
			n.logger.Error("failed to send security notification",
				slog.String("email", pkglogger.SanitizedEmail(email)),
				slog.String("subject", subject),
				slog.Any("error", err))
			return
		}

		n.logger.Info("security notification sent",
			slog.String("email", pkglogger.SanitizedEmail(email)),
			slog.String("subject", subject))
	}()
}

// NoopNotifier satisfies SecurityNotifier when no email backend is
// configured (local development).
type NoopNotifier struct {
	logger *slog.Logger
}

// NewNoopNotifier creates a notifier that only logs
func NewNoopNotifier(logger *slog.Logger) *NoopNotifier {
	return &NoopNotifier{logger: logger}
}

// NotifySecurityEvent logs the event instead of sending an email
func (n *NoopNotifier) NotifySecurityEvent(_ context.Context, email, subject, _ string) {
	n.logger.Info("security notification skipped (no email backend)",
		slog.String("email", pkglogger.SanitizedEmail(email)),
		slog.String("subject", subject))
}
