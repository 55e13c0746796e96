package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Observation is one raw point of a provider series.
type Observation struct {
	Date       string
	Value      string
	StatusCode string
}

// Parse validates the observation. Holidays and weekends come back with
// empty, "NaN" or zero values and fail with ErrInvalidObservation.
func (o Observation) Parse() (time.Time, decimal.Decimal, error) {
	d, err := time.Parse(ProviderDateLayout, strings.TrimSpace(o.Date))
	if err != nil {
		return time.Time{}, decimal.Decimal{}, fmt.Errorf("%w: date %q", ErrInvalidObservation, o.Date)
	}
	v, err := decimal.NewFromString(strings.TrimSpace(o.Value))
	if err != nil {
		return time.Time{}, decimal.Decimal{}, fmt.Errorf("%w: value %q on %s", ErrInvalidObservation, o.Value, o.Date)
	}
	if !v.IsPositive() {
		return time.Time{}, decimal.Decimal{}, fmt.Errorf("%w: non-positive value %s on %s", ErrInvalidObservation, v, o.Date)
	}
	return d, v, nil
}
