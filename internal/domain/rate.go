package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RatePrecision is the number of fractional digits kept for stored rates.
const RatePrecision int32 = 8

type SourceType int

const (
	SourceProvider SourceType = iota + 1
	SourceDerived
)

func (s SourceType) String() string {
	switch s {
	case SourceProvider:
		return "PROVIDER"
	case SourceDerived:
		return "DERIVED"
	default:
		return "UNKNOWN"
	}
}

func ParseSourceType(s string) (SourceType, error) {
	switch s {
	case "PROVIDER":
		return SourceProvider, nil
	case "DERIVED":
		return SourceDerived, nil
	default:
		return 0, fmt.Errorf("unknown source type %q", s)
	}
}

func (s SourceType) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *SourceType) UnmarshalText(b []byte) error {
	v, err := ParseSourceType(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ChainLink records one contributing rate of a derived value.
type ChainLink struct {
	Pair string          `json:"pair"`
	Rate decimal.Decimal `json:"rate"`
}

// DailyRate is one observation per (RateDate, Pair).
type DailyRate struct {
	RateDate        time.Time
	Pair            Pair
	Rate            decimal.Decimal
	SourceType      SourceType
	SourceLabel     string
	IsIndirect      bool
	ConversionChain []ChainLink
	CreatedAt       time.Time
}

// Validate rejects non-positive rates and derived rows without a chain.
func (r DailyRate) Validate() error {
	if !r.Pair.Valid() {
		return fmt.Errorf("%w: %s", ErrUnsupportedPair, r.Pair)
	}
	if !r.Rate.IsPositive() {
		return fmt.Errorf("%w: rate %s must be positive", ErrInvalidObservation, r.Rate)
	}
	switch r.SourceType {
	case SourceProvider:
		if r.IsIndirect {
			return fmt.Errorf("provider rate %s %s cannot be indirect", r.Pair, r.RateDate.Format(DateLayout))
		}
	case SourceDerived:
		if !r.IsIndirect || len(r.ConversionChain) == 0 {
			return fmt.Errorf("derived rate %s %s needs a conversion chain", r.Pair, r.RateDate.Format(DateLayout))
		}
	default:
		return fmt.Errorf("unknown source type %d", r.SourceType)
	}
	return nil
}

// SameValue reports whether the mutable fields of r and o are equal.
func (r DailyRate) SameValue(o DailyRate) bool {
	if !r.Rate.Equal(o.Rate) || r.SourceType != o.SourceType || r.SourceLabel != o.SourceLabel ||
		r.IsIndirect != o.IsIndirect || len(r.ConversionChain) != len(o.ConversionChain) {
		return false
	}
	for i := range r.ConversionChain {
		if r.ConversionChain[i].Pair != o.ConversionChain[i].Pair || !r.ConversionChain[i].Rate.Equal(o.ConversionChain[i].Rate) {
			return false
		}
	}
	return true
}

type UpsertOutcome int

const (
	Inserted UpsertOutcome = iota + 1
	Updated
	Unchanged
)

func (o UpsertOutcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	case Unchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// RateQuery narrows a rate listing; zero From/To are open bounds and
// Limit <= 0 means no cap.
type RateQuery struct {
	From  time.Time
	To    time.Time
	Limit int
}
