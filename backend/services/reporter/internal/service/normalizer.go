package service

import (
	"errors"
	"math"
	"slices"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"vaeva/backend/services/reporter/internal/identity"
	"vaeva/backend/services/reporter/internal/models"
)

// Fixed precision for every derived value.
const (
	QuantityPlaces int32 = 3
	AmountPlaces   int32 = 2
	SpeedPlaces    int32 = 2
)

var (
	// ErrUnresolvedUser means neither email nor badge matched a configured user.
	ErrUnresolvedUser = errors.New("normalizer: session contact matches no user")
	// ErrZeroDuration means charging speed is undefined for the record.
	ErrZeroDuration = errors.New("normalizer: zero session duration")
)

// Normalizer turns raw vendor records into sessions attributed to users.
type Normalizer struct {
	index  *identity.Index
	logger *zap.Logger
}

// NewNormalizer builds normalizer.
func NewNormalizer(index *identity.Index, logger *zap.Logger) *Normalizer {
	return &Normalizer{index: index, logger: logger}
}

// Normalize resolves the user and applies rounding. Grid energy is total minus green.
func (n *Normalizer) Normalize(siteID string, raw models.RawSession) (models.Session, error) {
	userID, ok := n.index.Resolve(raw.Email, raw.Badge)
	if !ok {
		return models.Session{}, ErrUnresolvedUser
	}
	if raw.DurationSec <= 0 {
		return models.Session{}, ErrZeroDuration
	}

	speed := raw.EnergyTotal / raw.DurationSec * 3600

	return models.Session{
		SiteID:        siteID,
		ChargerID:     raw.ChargerID,
		UserID:        userID,
		Email:         raw.Email,
		Badge:         raw.Badge,
		Date:          raw.Start,
		DurationSec:   int64(math.Round(raw.DurationSec)),
		QuantityTotal: round(raw.EnergyTotal, QuantityPlaces),
		QuantityGrid:  round(raw.EnergyTotal-raw.EnergyGreen, QuantityPlaces),
		QuantityGreen: round(raw.EnergyGreen, QuantityPlaces),
		Amount:        round(raw.Cost, AmountPlaces),
		Speed:         round(speed, SpeedPlaces),
	}, nil
}

// SortSessions orders sessions by start time; equal starts keep their order.
func SortSessions(sessions []models.Session) {
	slices.SortStableFunc(sessions, func(a, b models.Session) int {
		return a.Date.Compare(b.Date)
	})
}

// round uses the shortest decimal representation of v and rounds half away from zero.
func round(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}
