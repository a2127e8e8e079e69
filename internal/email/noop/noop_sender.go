package noop

import (
	"context"

	"go.uber.org/zap"

	"cardsync/internal/domain"
	"cardsync/internal/email"
	"cardsync/internal/logging"
	"cardsync/internal/port"
)

type noopSender struct {
	logger *zap.Logger
}

// NewNoopSender creates an EmailSender that only logs the summary.
func NewNoopSender(logger *zap.Logger) port.EmailSender {
	return &noopSender{logger: logging.OrNop(logger)}
}

func (s *noopSender) SendRunSummary(_ context.Context, recipients []string, summary domain.RunSummaryMail) error {
	if len(recipients) == 0 {
		return nil
	}
	s.logger.Info("[NOOP EMAIL] run summary",
		zap.Strings("to", recipients),
		zap.String("subject", email.SummarySubject(summary)),
		zap.String("body", email.SummaryText(summary)),
	)
	return nil
}
