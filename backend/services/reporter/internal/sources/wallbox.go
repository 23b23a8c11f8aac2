package sources

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"vaeva/backend/services/reporter/internal/clients"
	"vaeva/backend/services/reporter/internal/models"
)

// WallboxAPI is the subset of the Wallbox cloud API the source needs.
type WallboxAPI interface {
	Authenticate(ctx context.Context) error
	ListChargers(ctx context.Context) ([]string, error)
	ListSessions(ctx context.Context, chargerID string, begin, end time.Time) ([]clients.WallboxSession, error)
}

// WallboxSource reads sessions of every charger on a Wallbox account.
type WallboxSource struct {
	api    WallboxAPI
	logger *zap.Logger
}

// NewWallboxSource builds source.
func NewWallboxSource(api WallboxAPI, logger *zap.Logger) *WallboxSource {
	return &WallboxSource{api: api, logger: logger}
}

// FetchSessions authenticates, walks all chargers and maps their sessions.
func (s *WallboxSource) FetchSessions(ctx context.Context, begin, end time.Time) ([]models.RawSession, error) {
	if err := s.api.Authenticate(ctx); err != nil {
		return nil, err
	}

	chargers, err := s.api.ListChargers(ctx)
	if err != nil {
		return nil, err
	}

	var out []models.RawSession
	for _, charger := range chargers {
		sessions, err := s.api.ListSessions(ctx, charger, begin, end)
		if err != nil {
			return nil, err
		}
		s.logger.Debug("fetched charger sessions", zap.String("charger", charger), zap.Int("count", len(sessions)))
		for _, ws := range sessions {
			out = append(out, mapWallboxSession(charger, ws))
		}
	}
	return out, nil
}

func mapWallboxSession(charger string, ws clients.WallboxSession) models.RawSession {
	sec, frac := math.Modf(ws.Start)
	return models.RawSession{
		ChargerID:   charger,
		Email:       ws.UserEmail,
		Badge:       string(ws.UserRFID),
		Start:       time.Unix(int64(sec), int64(frac*1e9)),
		DurationSec: ws.Time,
		EnergyTotal: ws.Energy,
		EnergyGreen: ws.GreenEnergy,
		Cost:        ws.Cost,
	}
}
