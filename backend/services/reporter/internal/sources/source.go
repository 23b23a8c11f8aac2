package sources

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"vaeva/backend/services/reporter/internal/config"
	"vaeva/backend/services/reporter/internal/models"
)

// ErrUnknownVendor is a configuration error for a site whose type has no source.
var ErrUnknownVendor = fmt.Errorf("%w: unknown site type", config.ErrConfig)

// SessionSource fetches raw charging sessions of one site.
type SessionSource interface {
	FetchSessions(ctx context.Context, begin, end time.Time) ([]models.RawSession, error)
}

// WallboxAPIFactory builds an authenticated-on-demand Wallbox API for a site.
type WallboxAPIFactory func(site models.Site) WallboxAPI

// Factory selects the source implementation by vendor type.
type Factory struct {
	newWallbox WallboxAPIFactory
	logger     *zap.Logger
}

// NewFactory returns a source factory.
func NewFactory(newWallbox WallboxAPIFactory, logger *zap.Logger) *Factory {
	return &Factory{newWallbox: newWallbox, logger: logger}
}

// ForSite returns the source for site or ErrUnknownVendor.
func (f *Factory) ForSite(site models.Site) (SessionSource, error) {
	logger := f.logger.With(zap.String("site", site.ID), zap.String("type", string(site.Type)))
	switch site.Type {
	case models.VendorWallbox:
		return NewWallboxSource(f.newWallbox(site), logger), nil
	case models.VendorEasee:
		return NewEaseeSource(logger), nil
	default:
		return nil, fmt.Errorf("%w %q for site %q", ErrUnknownVendor, site.Type, site.ID)
	}
}
