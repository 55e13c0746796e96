package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// Currency is an ISO-4217 style three letter code. CLF (Unidad de Fomento) is
// treated as a currency even though it is a unit of account.
type Currency string

const (
	CLP Currency = "CLP"
	CLF Currency = "CLF"
	USD Currency = "USD"
	EUR Currency = "EUR"
)

var currencyRe = regexp.MustCompile(`^[A-Z]{3}$`)

func (c Currency) Valid() bool { return currencyRe.MatchString(string(c)) }

// Pair is a directional (from, to) rate: 1 From is worth Rate To.
type Pair struct {
	From Currency
	To   Currency
}

func NewPair(from, to Currency) Pair { return Pair{From: from, To: to} }

// String renders the pair label used by the catalog and by pair filters.
func (p Pair) String() string { return string(p.From) + "/" + string(p.To) }

func (p Pair) Valid() bool { return p.From.Valid() && p.To.Valid() && p.From != p.To }

// ParsePair parses "USD/CLP" (case-insensitive) into a Pair.
func ParsePair(s string) (Pair, error) {
	from, to, ok := strings.Cut(strings.ToUpper(strings.TrimSpace(s)), "/")
	if !ok {
		return Pair{}, fmt.Errorf("%w: %q", ErrUnsupportedPair, s)
	}
	p := Pair{From: Currency(from), To: Currency(to)}
	if !p.Valid() {
		return Pair{}, fmt.Errorf("%w: %q", ErrUnsupportedPair, s)
	}
	return p, nil
}
