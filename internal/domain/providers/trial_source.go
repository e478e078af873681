package providers

import (
	"context"

	"github.com/zatekoja/trialmatch/internal/domain/entities"
)

// TrialSource is a remote registry that can be searched by condition.
type TrialSource interface {
	// FetchTrials returns up to limit trials matching condition and status,
	// normalized into trial table rows.
	FetchTrials(ctx context.Context, condition, status string, limit int) ([]entities.Trial, error)
}
