package billing

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-mess/internal/store"
)

// Compute returns present×daily + nonVeg×surcharge + fixed, rounded to two places.
// It depends only on its arguments, so identical inputs always produce identical amounts.
func Compute(t store.AttendanceTotals, r RateConfig) decimal.Decimal {
	present := decimal.NewFromInt(int64(t.PresentDays))
	nonVeg := decimal.NewFromInt(int64(t.NonVegDays))
	return present.Mul(r.DailyRate).
		Add(nonVeg.Mul(r.NonVegRate)).
		Add(r.Total()).
		Round(2)
}
