package service

import (
	"github.com/shopspring/decimal"

	"vaeva/backend/services/reporter/internal/models"
)

// ComputeTotals sums already rounded session values and rounds the sums to the same precision.
func ComputeTotals(sessions []models.Session) models.Totals {
	var total, grid, green, amount decimal.Decimal
	for _, s := range sessions {
		total = total.Add(decimal.NewFromFloat(s.QuantityTotal))
		grid = grid.Add(decimal.NewFromFloat(s.QuantityGrid))
		green = green.Add(decimal.NewFromFloat(s.QuantityGreen))
		amount = amount.Add(decimal.NewFromFloat(s.Amount))
	}
	return models.Totals{
		Count:         len(sessions),
		QuantityTotal: total.Round(QuantityPlaces).InexactFloat64(),
		QuantityGrid:  grid.Round(QuantityPlaces).InexactFloat64(),
		QuantityGreen: green.Round(QuantityPlaces).InexactFloat64(),
		Amount:        amount.Round(AmountPlaces).InexactFloat64(),
	}
}
