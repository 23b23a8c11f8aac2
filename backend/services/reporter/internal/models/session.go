package models

import "time"

// RawSession is one vendor record before user resolution and rounding.
type RawSession struct {
	ChargerID   string
	Email       string
	Badge       string
	Start       time.Time
	DurationSec float64 // fractional seconds as reported by the vendor
	EnergyTotal float64
	EnergyGreen float64
	Cost        float64
}

// Session is a normalized charging event attributed to a configured user.
type Session struct {
	SiteID        string    `json:"site"`
	ChargerID     string    `json:"charger"`
	UserID        string    `json:"user"`
	Email         string    `json:"email"`
	Badge         string    `json:"badge"`
	Date          time.Time `json:"date"`
	DurationSec   int64     `json:"duration"`
	QuantityTotal float64   `json:"quantity_total"`
	QuantityGrid  float64   `json:"quantity_grid"`
	QuantityGreen float64   `json:"quantity_green"`
	Amount        float64   `json:"amount"`
	Speed         float64   `json:"speed"`
}

// Fields exposes the session to templates with snake_case keys.
func (s Session) Fields() map[string]any {
	return map[string]any{
		"site":           s.SiteID,
		"charger":        s.ChargerID,
		"user":           s.UserID,
		"email":          s.Email,
		"badge":          s.Badge,
		"date":           s.Date,
		"duration":       s.DurationSec,
		"quantity_total": s.QuantityTotal,
		"quantity_grid":  s.QuantityGrid,
		"quantity_green": s.QuantityGreen,
		"amount":         s.Amount,
		"speed":          s.Speed,
	}
}

// Totals are summed session quantities for one render pass.
type Totals struct {
	Count         int     `json:"count"`
	QuantityTotal float64 `json:"quantity_total"`
	QuantityGrid  float64 `json:"quantity_grid"`
	QuantityGreen float64 `json:"quantity_green"`
	Amount        float64 `json:"amount"`
}

// Fields exposes totals to templates with snake_case keys.
func (t Totals) Fields() map[string]any {
	return map[string]any{
		"count":          t.Count,
		"quantity_total": t.QuantityTotal,
		"quantity_grid":  t.QuantityGrid,
		"quantity_green": t.QuantityGreen,
		"amount":         t.Amount,
	}
}
