package port

import (
	"context"

	"cardsync/internal/domain"
)

// EmailSender defines the contract for sending run summary mails.
type EmailSender interface {
	SendRunSummary(ctx context.Context, recipients []string, summary domain.RunSummaryMail) error
}
