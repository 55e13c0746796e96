package provider

import (
	"context"
	"hash/fnv"
	"time"

	"bcchrates-service/internal/application"
	"bcchrates-service/internal/domain"

	"github.com/shopspring/decimal"
)

var _ application.RateSource = (*Fake)(nil)

var fakeBase = map[string]decimal.Decimal{
	"F073.TCO.PRE.Z.D":   decimal.RequireFromString("950.00"),
	"F072.CLP.EUR.N.O.D": decimal.RequireFromString("1010.00"),
	"F073.UFF.PRE.Z.D":   decimal.RequireFromString("38000.00"),
}

// Fake serves deterministic weekday observations so the service can run
// without provider credentials.
type Fake struct {
	Now func() time.Time
}

func NewFake() *Fake { return &Fake{Now: time.Now} }

func (f *Fake) FetchSeries(_ context.Context, seriesID string, start, end time.Time) ([]domain.Observation, error) {
	base, ok := fakeBase[seriesID]
	if !ok {
		return nil, &domain.UpstreamError{Series: seriesID, Code: -50, Message: "unknown series"}
	}
	if end.IsZero() {
		end = f.Now()
	}
	if start.IsZero() {
		start = end.AddDate(0, 0, -30)
	}
	var out []domain.Observation
	for d := domain.Day(start); !d.After(domain.Day(end)); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		out = append(out, domain.Observation{
			Date:       d.Format(domain.ProviderDateLayout),
			Value:      base.Add(jitter(seriesID, d)).StringFixed(2),
			StatusCode: "OK",
		})
	}
	return out, nil
}

// jitter returns a stable offset in [-5, 5) for a series and day.
func jitter(series string, d time.Time) decimal.Decimal {
	h := fnv.New32a()
	_, _ = h.Write([]byte(series + d.Format(domain.DateLayout)))
	return decimal.New(int64(h.Sum32()%1000)-500, -2)
}
