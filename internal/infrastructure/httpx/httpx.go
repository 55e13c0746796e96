package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string { return fmt.Sprintf("status %d", e.Code) }

// Client decodes JSON responses. With MaxElapsed > 0 transport errors and
// 5xx responses are retried with exponential backoff until it elapses;
// the zero value performs exactly one attempt.
type Client struct {
	HTTP       *http.Client
	Token      string
	MaxElapsed time.Duration
}

func (c *Client) DoJSON(ctx context.Context, req *http.Request, out any) error {
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	req.Header.Set("Accept", "application/json")
	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}

	op := func() error {
		resp, err := hc.Do(req.WithContext(ctx))
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			se := &StatusError{Code: resp.StatusCode, Body: string(b)}
			if resp.StatusCode >= 500 {
				return se
			}
			return backoff.Permanent(se)
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil
	}

	if c.MaxElapsed <= 0 {
		err := op()
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return perm.Err
		}
		return err
	}
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 200 * time.Millisecond
	exp.MaxInterval = 1 * time.Second
	exp.MaxElapsedTime = c.MaxElapsed
	return backoff.Retry(op, backoff.WithContext(exp, ctx))
}
