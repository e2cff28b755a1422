package billing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-mess/internal/store"
)

var (
	// ErrMissingRate is returned when daily_rate or nv_plate_rate is omitted.
	ErrMissingRate = errors.New("missing rate")
	// ErrNegativeRate is returned for any rate below zero.
	ErrNegativeRate = errors.New("negative rate")
	// ErrInvalidRate is returned for a rate the bill snapshot cannot store exactly:
	// more than two decimal places or above store.MaxRate.
	ErrInvalidRate = fmt.Errorf("rate must have at most %d decimal places and not exceed %s",
		store.MoneyScale, store.MaxRate.StringFixed(store.MoneyScale))
)

// FixedCharges are the period-flat costs added to every bill.
type FixedCharges struct {
	RoomRent             decimal.Decimal
	WaterCharges         decimal.Decimal
	ElectricityCharges   decimal.Decimal
	EstablishmentCharges decimal.Decimal
}

// DefaultFixedCharges returns the standard charges applied when a caller omits them.
func DefaultFixedCharges() FixedCharges {
	return FixedCharges{
		RoomRent:             decimal.NewFromInt(150),
		WaterCharges:         decimal.NewFromInt(125),
		ElectricityCharges:   decimal.NewFromInt(150),
		EstablishmentCharges: decimal.NewFromInt(275),
	}
}

// Total sums the four fixed charges.
func (f FixedCharges) Total() decimal.Decimal {
	return f.RoomRent.Add(f.WaterCharges).Add(f.ElectricityCharges).Add(f.EstablishmentCharges)
}

// RateConfig is the fully resolved set of rates a generation run bills with.
type RateConfig struct {
	DailyRate  decimal.Decimal
	NonVegRate decimal.Decimal
	FixedCharges
}

// Snapshot converts the config into the values persisted alongside each bill.
func (r RateConfig) Snapshot() store.RateSnapshot {
	return store.RateSnapshot{
		DailyRate:            r.DailyRate,
		NonVegRate:           r.NonVegRate,
		RoomRent:             r.RoomRent,
		WaterCharges:         r.WaterCharges,
		ElectricityCharges:   r.ElectricityCharges,
		EstablishmentCharges: r.EstablishmentCharges,
	}
}

// RateInput is the caller-supplied rate set. Values decode from JSON numbers or numeric
// strings; nil means the field was omitted.
type RateInput struct {
	DailyRate            *decimal.Decimal `json:"daily_rate"`
	NonVegRate           *decimal.Decimal `json:"nv_plate_rate"`
	RoomRent             *decimal.Decimal `json:"room_rent,omitempty"`
	WaterCharges         *decimal.Decimal `json:"water_charges,omitempty"`
	ElectricityCharges   *decimal.Decimal `json:"electricity_charges,omitempty"`
	EstablishmentCharges *decimal.Decimal `json:"establishment_charges,omitempty"`
}

// Resolve validates the input and fills omitted fixed charges from defaults.
// The daily and non-veg rates are never defaulted.
func (in RateInput) Resolve(defaults FixedCharges) (RateConfig, error) {
	if in.DailyRate == nil {
		return RateConfig{}, rateError("daily_rate", ErrMissingRate)
	}
	if in.NonVegRate == nil {
		return RateConfig{}, rateError("nv_plate_rate", ErrMissingRate)
	}
	cfg := RateConfig{DailyRate: *in.DailyRate, NonVegRate: *in.NonVegRate, FixedCharges: defaults}
	for _, f := range []struct {
		in  *decimal.Decimal
		dst *decimal.Decimal
	}{
		{in.RoomRent, &cfg.RoomRent},
		{in.WaterCharges, &cfg.WaterCharges},
		{in.ElectricityCharges, &cfg.ElectricityCharges},
		{in.EstablishmentCharges, &cfg.EstablishmentCharges},
	} {
		if f.in != nil {
			*f.dst = *f.in
		}
	}
	for _, f := range []struct {
		name string
		v    decimal.Decimal
	}{
		{"daily_rate", cfg.DailyRate},
		{"nv_plate_rate", cfg.NonVegRate},
		{"room_rent", cfg.RoomRent},
		{"water_charges", cfg.WaterCharges},
		{"electricity_charges", cfg.ElectricityCharges},
		{"establishment_charges", cfg.EstablishmentCharges},
	} {
		if f.v.IsNegative() {
			return RateConfig{}, rateError(f.name, ErrNegativeRate)
		}
		if !storable(f.v) {
			return RateConfig{}, rateError(f.name, ErrInvalidRate)
		}
	}
	return cfg, nil
}

// storable reports whether v survives a round trip through a rate snapshot column,
// so the persisted rates reproduce the billed amount.
func storable(v decimal.Decimal) bool {
	return v.Equal(v.Truncate(store.MoneyScale)) && v.LessThanOrEqual(store.MaxRate)
}

type fieldError struct {
	field string
	err   error
}

func (e *fieldError) Error() string { return e.field + ": " + e.err.Error() }
func (e *fieldError) Unwrap() error { return e.err }

func rateError(field string, err error) error {
	return &fieldError{field: field, err: err}
}
