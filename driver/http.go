package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

var ErrUnexpectedStatus = errors.New("unexpected response status")

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned %d", e.Method, e.Path, e.Code)
}

func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}

type BreakerSettings struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

// APIClient issues JSON GET requests against the stock/catalog service.
// Every call runs through a circuit breaker; 4xx answers do not count as failures.
type APIClient struct {
	baseURL *url.URL
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  *zap.Logger
}

func NewAPIClient(baseURL string, timeout time.Duration, bs BreakerSettings, logger *zap.Logger) (*APIClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api base url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid api base url %q: scheme must be http or https", baseURL)
	}

	st := gobreaker.Settings{
		Name:        "catalog-api-cb",
		MaxRequests: 1,
		Timeout:     bs.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= bs.ConsecutiveFailures
		},
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &APIClient{
		baseURL: u,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: gobreaker.NewCircuitBreaker[[]byte](st),
		logger:  logger,
	}, nil
}

// GetJSON performs GET baseURL/path and decodes the body into out.
func (c *APIClient) GetJSON(ctx context.Context, path string, out any) error {
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.get(ctx, path)
	})
	if err != nil {
		return err
	}

	if err = json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response of %s: %w", path, err)
	}
	return nil
}

func (c *APIClient) get(ctx context.Context, path string) ([]byte, error) {
	target := c.baseURL.JoinPath(path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("api request failed", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response of %s: %w", path, err)
	}

	c.logger.Debug("api request",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Method: http.MethodGet, Path: path, Code: resp.StatusCode}
	}
	return body, nil
}

func isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code < http.StatusInternalServerError
	}
	return false
}
