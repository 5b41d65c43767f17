package usecases

import (
	"context"
	"fmt"

	"github.com/sophialabs/apitrail/internal/domain/group"
	"github.com/sophialabs/apitrail/internal/infrastructure/ports"
	"github.com/sophialabs/apitrail/internal/infrastructure/services"
)

// DefaultGroupLimit is the number of groups served when the caller gives none.
const DefaultGroupLimit = 50

// recordsPerGroup bounds how many records are scanned per requested group.
const recordsPerGroup = 10

// ListGroupsUseCase returns the most recent groups for the snapshot endpoint.
type ListGroupsUseCase struct {
	repo   group.Repository
	logger ports.Logger
}

// NewListGroupsUseCase creates a new use case.
func NewListGroupsUseCase(repo group.Repository, logger ports.Logger) *ListGroupsUseCase {
	return &ListGroupsUseCase{repo: repo, logger: logger}
}

// Execute returns up to limit groups, newest first. A non-positive limit means DefaultGroupLimit.
func (uc *ListGroupsUseCase) Execute(ctx context.Context, limit int) ([]group.Group, error) {
	if limit <= 0 {
		limit = DefaultGroupLimit
	}

	records, err := uc.repo.FindRecent(ctx, limit*recordsPerGroup)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent events: %w", err)
	}

	groups := services.BuildRecentGroups(records, limit)
	uc.logger.Debug("listed groups", "records", len(records), "groups", len(groups))
	return groups, nil
}
