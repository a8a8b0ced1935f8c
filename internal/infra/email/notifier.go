package email

import (
	"context"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"
)

// SMTPNotifier alerts the configured ops address when a segmentation request
// fails permanently.
type SMTPNotifier struct {
	host   string
	port   int
	from   string
	to     string
	logger *zap.Logger
}

func NewSMTPNotifier(host string, port int, from, to string, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{host: host, port: port, from: from, to: to, logger: logger}
}

func (n *SMTPNotifier) NotifyFailure(_ context.Context, jobID string, errorMsg string) error {
	addr := fmt.Sprintf("%s:%d", n.host, n.port)

	subject := fmt.Sprintf("Segmentation request failed [Job %s]", jobID)
	body := fmt.Sprintf(
		"A video segmentation request failed and returned an error to the caller.\r\n\r\n"+
			"Job ID: %s\r\n"+
			"Error: %s\r\n",
		jobID, errorMsg,
	)

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		n.from, n.to, subject, body,
	)

	err := smtp.SendMail(addr, nil, n.from, []string{n.to}, []byte(msg))
	if err != nil {
		n.logger.Error("failed to send failure notification email",
			zap.String("job_id", jobID),
			zap.Error(err),
		)
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("failure notification email sent", zap.String("job_id", jobID))
	return nil
}
