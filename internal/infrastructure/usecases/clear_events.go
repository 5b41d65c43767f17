package usecases

import (
	"context"
	"fmt"

	"github.com/sophialabs/apitrail/internal/domain/group"
	"github.com/sophialabs/apitrail/internal/domain/trace"
	"github.com/sophialabs/apitrail/internal/infrastructure/ports"
)

// ClearEventsUseCase deletes every recorded event.
type ClearEventsUseCase struct {
	repo    group.Repository
	updates *trace.RingBuffer
	logger  ports.Logger
}

// NewClearEventsUseCase creates a new use case. updates may be nil.
func NewClearEventsUseCase(repo group.Repository, updates *trace.RingBuffer, logger ports.Logger) *ClearEventsUseCase {
	return &ClearEventsUseCase{repo: repo, updates: updates, logger: logger}
}

// Execute removes all records. Already connected followers keep what they have.
func (uc *ClearEventsUseCase) Execute(ctx context.Context) error {
	if err := uc.repo.DeleteAll(ctx); err != nil {
		return fmt.Errorf("failed to clear events: %w", err)
	}
	if uc.updates != nil {
		uc.updates.Reset()
	}
	uc.logger.Info("cleared all events")
	return nil
}
