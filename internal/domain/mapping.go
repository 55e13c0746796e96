package domain

import "fmt"

// SeriesMapping binds a provider series to the pair it publishes.
type SeriesMapping struct {
	SeriesID    string
	Pair        Pair
	DisplayName string
}

func (m SeriesMapping) Label() string { return m.Pair.String() }

// PivotChain derives Target = Leg / Base for dates where both direct rates
// exist. Leg and Base share the quote currency (the pivot).
type PivotChain struct {
	Leg    Pair
	Base   Pair
	Target Pair
}

func (c PivotChain) Validate() error {
	if c.Leg.To != c.Base.To {
		return fmt.Errorf("pivot chain %s / %s: legs do not share a quote currency", c.Leg, c.Base)
	}
	if c.Target != NewPair(c.Leg.From, c.Base.From) {
		return fmt.Errorf("pivot chain target %s does not match %s/%s", c.Target, c.Leg.From, c.Base.From)
	}
	return nil
}

// Catalog is the static pair configuration.
type Catalog struct {
	Mappings []SeriesMapping
	Pivot    PivotChain
}

// Default series of the Banco Central de Chile statistics database.
var DefaultCatalog = Catalog{
	Mappings: []SeriesMapping{
		{SeriesID: "F073.TCO.PRE.Z.D", Pair: NewPair(USD, CLP), DisplayName: "Dólar observado"},
		{SeriesID: "F072.CLP.EUR.N.O.D", Pair: NewPair(EUR, CLP), DisplayName: "Euro"},
		{SeriesID: "F073.UFF.PRE.Z.D", Pair: NewPair(CLF, CLP), DisplayName: "Unidad de Fomento"},
	},
	Pivot: PivotChain{
		Leg:    NewPair(CLF, CLP),
		Base:   NewPair(USD, CLP),
		Target: NewPair(CLF, USD),
	},
}

// Select returns the mappings whose label is in labels. A nil slice selects
// every mapping; an empty non-nil slice selects none.
func (c Catalog) Select(labels []string) []SeriesMapping {
	if labels == nil {
		return append([]SeriesMapping(nil), c.Mappings...)
	}
	allow := make(map[string]bool, len(labels))
	for _, l := range labels {
		allow[l] = true
	}
	var out []SeriesMapping
	for _, m := range c.Mappings {
		if allow[m.Label()] {
			out = append(out, m)
		}
	}
	return out
}

func (c Catalog) Validate() error {
	seen := map[Pair]bool{}
	for _, m := range c.Mappings {
		if m.SeriesID == "" || !m.Pair.Valid() {
			return fmt.Errorf("invalid mapping %q %s", m.SeriesID, m.Pair)
		}
		if seen[m.Pair] {
			return fmt.Errorf("duplicate mapping for %s", m.Pair)
		}
		seen[m.Pair] = true
	}
	return c.Pivot.Validate()
}
