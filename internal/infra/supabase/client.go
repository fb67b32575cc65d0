// Package supabase implements the persistence ports on Supabase: debts,
// payments, receipts and contacts through PostgREST, receipt files through
// Supabase Storage.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/boddenberg/finplan-bfa-go/internal/domain"
	"github.com/boddenberg/finplan-bfa-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

// Client wraps HTTP calls to the Supabase REST and Storage APIs.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	cb             *gobreaker.CircuitBreaker
	cfg            resilience.Config
	logger         *zap.Logger
}

// NewClient creates a Supabase client.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		cb:             cb,
		cfg:            cfg,
		logger:         logger,
	}
}

// statusError is a non-2xx answer from Supabase.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("supabase returned status %d: %s", e.Status, e.Body)
}

// isDomainError reports errors that describe the data, not the backend.
// They are neither retried nor counted by the circuit breaker.
func isDomainError(err error) bool {
	var (
		nf       *domain.ErrNotFound
		conflict *domain.ErrConflict
		invalid  *domain.ErrValidation
	)
	return errors.As(err, &nf) || errors.As(err, &conflict) || errors.As(err, &invalid)
}

// execute runs fn behind the circuit breaker with retries. Domain errors
// pass through unchanged; backend failures become ErrExternalService or
// ErrCircuitOpen.
func (c *Client) execute(ctx context.Context, op string, fn func() error) error {
	var domainErr error
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			err := fn()
			if err != nil && isDomainError(err) {
				domainErr = err
				return nil
			}
			domainErr = nil
			return err
		})
	})
	if domainErr != nil {
		return domainErr
	}
	if err == nil {
		return nil
	}
	if resilience.IsBreakerOpen(err) {
		return &domain.ErrCircuitOpen{Service: "supabase"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.ErrTimeout{Operation: "supabase/" + op}
	}
	return &domain.ErrExternalService{Service: "supabase/" + op, Err: err}
}

// send performs one authenticated request. A 404 or 204 yields a nil body,
// a 409 becomes ErrConflict.
func (c *Client) send(ctx context.Context, method, url string, payload any, header http.Header) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		switch p := payload.(type) {
		case []byte:
			reader = bytes.NewReader(p)
		default:
			jsonBody, err := json.Marshal(payload)
			if err != nil {
				return nil, err
			}
			reader = bytes.NewReader(jsonBody)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		c.logger.Error("supabase: failed to create request",
			zap.String("method", method),
			zap.String("url", url),
			zap.Error(err),
		)
		return nil, err
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.serviceRoleKey))
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("method", method),
			zap.String("url", url),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		c.logger.Error("supabase: failed to read response body",
			zap.String("method", method),
			zap.String("url", url),
			zap.Error(err),
		)
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent:
		return nil, nil
	case resp.StatusCode == http.StatusConflict:
		return nil, &domain.ErrConflict{Message: string(body)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		c.logger.Warn("supabase: non-2xx response",
			zap.String("method", method),
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, &statusError{Status: resp.StatusCode, Body: string(body)}
	}

	c.logger.Debug("supabase: request OK",
		zap.String("method", method),
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
	)
	return body, nil
}

// Ping checks that PostgREST answers.
func (c *Client) Ping(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Supabase.Ping")
	defer span.End()

	return c.execute(ctx, "ping", func() error {
		_, err := c.doRequest(ctx, http.MethodGet, "debts?select=id&limit=1")
		return err
	})
}
