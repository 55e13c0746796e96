package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"bcchrates-service/internal/application"
	"bcchrates-service/internal/domain"
	"bcchrates-service/internal/infrastructure/httpx"
	"bcchrates-service/internal/infrastructure/logx"

	"go.uber.org/zap"
)

// DefaultBCChBaseURL is the Banco Central de Chile statistics REST endpoint.
const DefaultBCChBaseURL = "https://si3.bcentral.cl/SieteRestWS/SieteRestWS.ashx"

// BCCh fetches observation series from the central bank statistics API.
type BCCh struct {
	BaseURL  string
	User     string
	Password string
	Client   *httpx.Client
}

var _ application.RateSource = (*BCCh)(nil)

type bcchResp struct {
	Codigo      int    `json:"Codigo"`
	Descripcion string `json:"Descripcion"`
	Series      struct {
		DescripEsp string `json:"descripEsp"`
		DescripIng string `json:"descripIng"`
		SeriesID   string `json:"seriesId"`
		Obs        []struct {
			IndexDateString string `json:"indexDateString"`
			Value           string `json:"value"`
			StatusCode      string `json:"statusCode"`
		} `json:"Obs"`
	} `json:"Series"`
}

// FetchSeries returns the raw observations of one series. Zero start or end
// leave the bound to the provider. Failures are reported as
// *domain.UpstreamError and never retried here.
func (p *BCCh) FetchSeries(ctx context.Context, seriesID string, start, end time.Time) ([]domain.Observation, error) {
	if p.BaseURL == "" || p.User == "" || p.Password == "" {
		return nil, &domain.UpstreamError{Series: seriesID, Message: "missing configuration"}
	}
	u, err := url.Parse(p.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("bcch: invalid base url: %w", err)
	}
	q := u.Query()
	q.Set("user", p.User)
	q.Set("pass", p.Password)
	q.Set("function", "GetSeries")
	q.Set("timeseries", seriesID)
	if !start.IsZero() {
		q.Set("firstdate", start.Format(domain.DateLayout))
	}
	if !end.IsZero() {
		q.Set("lastdate", end.Format(domain.DateLayout))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("bcch: create request: %w", err)
	}
	client := p.Client
	if client == nil {
		client = &httpx.Client{}
	}

	log := logx.L().With(zap.String("provider", "bcch"), zap.String("series", seriesID))
	began := time.Now()
	var body bcchResp
	if err := client.DoJSON(ctx, req, &body); err != nil {
		log.Warn("provider.fetch_failed", zap.Error(err), zap.Duration("elapsed", time.Since(began)))
		ue := &domain.UpstreamError{Series: seriesID, Err: err}
		var se *httpx.StatusError
		if errors.As(err, &se) {
			ue.HTTPStatus = se.Code
			ue.Message = se.Body
		}
		return nil, ue
	}
	if body.Codigo != 0 {
		log.Warn("provider.rejected", zap.Int("code", body.Codigo), zap.String("description", body.Descripcion))
		return nil, &domain.UpstreamError{Series: seriesID, Code: body.Codigo, Message: body.Descripcion}
	}

	out := make([]domain.Observation, 0, len(body.Series.Obs))
	for _, o := range body.Series.Obs {
		out = append(out, domain.Observation{Date: o.IndexDateString, Value: o.Value, StatusCode: o.StatusCode})
	}
	log.Debug("provider.fetched", zap.Int("observations", len(out)), zap.Duration("elapsed", time.Since(began)))
	return out, nil
}
