// Package circuitbreaker wraps outbound HTTP calls to the external solver
// engine with a gobreaker circuit breaker, so a struggling engine degrades
// to the local fallback instead of piling up blocked requests.
package circuitbreaker

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// HTTPClient wraps an HTTP client with circuit breaker protection.
type HTTPClient struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
}

// Settings configures the HTTP client's breaker.
type Settings struct {
	Name             string
	Timeout          time.Duration
	MaxRequests      uint32
	Interval         time.Duration
	BreakerTimeout   time.Duration
	FailureThreshold uint32
}

// DefaultSettings returns sane defaults for an external optimization
// engine: a handful of half-open probes, a short cooldown.
func DefaultSettings(name string) Settings {
	return Settings{
		Name:             name,
		Timeout:          30 * time.Second,
		MaxRequests:      3,
		Interval:         60 * time.Second,
		BreakerTimeout:   30 * time.Second,
		FailureThreshold: 5,
	}
}

// NewHTTPClient builds an HTTPClient whose breaker trips after
// FailureThreshold consecutive failures.
func NewHTTPClient(settings Settings, log *zap.Logger) *HTTPClient {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("solver engine circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &HTTPClient{
		client:  &http.Client{Timeout: settings.Timeout},
		breaker: cb,
		log:     log,
	}
}

// Do executes req through the breaker. 5xx responses count as failures.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			return resp, fmt.Errorf("solver engine returned status %d", resp.StatusCode)
		}
		return resp, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			c.log.Warn("solver engine circuit breaker open, request blocked",
				zap.String("url", req.URL.String()))
		}
		return nil, err
	}
	return result.(*http.Response), nil
}

// Post performs a POST request with circuit breaker protection.
func (c *HTTPClient) Post(ctx context.Context, url, contentType string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	return c.Do(req)
}

// State reports the breaker's current state, surfaced on health checks.
func (c *HTTPClient) State() string {
	return c.breaker.State().String()
}
