package port

import (
	"context"

	"cardsync/internal/domain"
)

// Extractor turns one image into a record. Failures are reported as error
// records, never as a returned error.
type Extractor interface {
	Extract(ctx context.Context, image domain.Image) domain.Record
}
