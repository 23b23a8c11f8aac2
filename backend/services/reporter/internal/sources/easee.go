package sources

import (
	"context"
	"time"

	"go.uber.org/zap"

	"vaeva/backend/services/reporter/internal/models"
)

// EaseeSource is registered so easee sites validate, but session export is not supported yet.
type EaseeSource struct {
	logger *zap.Logger
}

// NewEaseeSource builds source.
func NewEaseeSource(logger *zap.Logger) *EaseeSource {
	return &EaseeSource{logger: logger}
}

// FetchSessions returns no sessions.
func (s *EaseeSource) FetchSessions(_ context.Context, _, _ time.Time) ([]models.RawSession, error) {
	s.logger.Info("easee session export not supported, site skipped")
	return nil, nil
}
