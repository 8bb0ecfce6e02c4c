package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	domainErrors "github.com/tokoraya/checkout/internal/domain/errors"
	"github.com/tokoraya/checkout/internal/infrastructure/observability"
)

// ClientConfig holds the gateway connection settings.
type ClientConfig struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
	BreakerTimeout time.Duration
}

// Client talks to the external payment gateway over HTTP and implements
// Adapter. All calls go through a circuit breaker; once the gateway trips
// it, generation fails fast as a network failure until the cooldown ends.
type Client struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker[*GenerateResponse]
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// NewClient creates a gateway client. metrics may be nil.
func NewClient(cfg ClientConfig, metrics *observability.Metrics, logger zerolog.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Authorization", "Bearer "+cfg.APIKey).
		SetHeader("Content-Type", "application/json")

	breakerTimeout := cfg.BreakerTimeout
	if breakerTimeout <= 0 {
		breakerTimeout = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[*GenerateResponse](gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 10,
		Interval:    60 * time.Second,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			// Gateway rejections are business outcomes, not gateway health.
			return err == nil || isRejection(err)
		},
	})

	return &Client{
		http:    http,
		breaker: breaker,
		metrics: metrics,
		logger:  logger.With().Str("component", "gateway").Logger(),
	}
}

// GenerateCode asks the gateway for a payment code. Installment term is
// passed only for card payments; the caller enforces that by leaving the
// field zero for other methods.
func (c *Client) GenerateCode(ctx context.Context, req GenerateRequest) (*NormalizedResult, error) {
	if req.Method != "cc" {
		req.InstallmentTerm = 0
	}

	resp, err := c.breaker.Execute(func() (*GenerateResponse, error) {
		return c.post(ctx, "generate", "/v1/payment-codes", req)
	})
	if err != nil {
		return nil, c.mapBreakerErr(err)
	}

	result, err := Normalize(resp)
	if err != nil {
		c.logger.Error().Err(err).Str("invoice_id", req.InvoiceID).Msg("unrecognized gateway response")
		return nil, err
	}
	return result, nil
}

// SubmitCard completes the two-step direct card flow.
func (c *Client) SubmitCard(ctx context.Context, req SubmitRequest) (*NormalizedResult, error) {
	resp, err := c.breaker.Execute(func() (*GenerateResponse, error) {
		return c.post(ctx, "submit_card", "/v1/cards/submit", req)
	})
	if err != nil {
		return nil, c.mapBreakerErr(err)
	}
	return Normalize(resp)
}

func (c *Client) post(ctx context.Context, op, path string, body any) (*GenerateResponse, error) {
	var out GenerateResponse
	var errBody ErrorPayload

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&errBody).
		Post(path)

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "network_error"
	case resp.IsError():
		outcome = "rejected"
	}
	c.observe(op, outcome, time.Since(start))

	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrNetworkFailure, err)
	}
	if resp.IsError() {
		return nil, &Error{Code: errBody.Code, Message: errBody.RawMessage()}
	}
	return &out, nil
}

func (c *Client) observe(op, outcome string, d time.Duration) {
	if c.metrics == nil {
		return
	}
	c.metrics.GatewayRequestDuration.WithLabelValues(op, outcome).Observe(d.Seconds())
}

func (c *Client) mapBreakerErr(err error) error {
	switch err {
	case gobreaker.ErrOpenState, gobreaker.ErrTooManyRequests:
		return fmt.Errorf("%w: %v", domainErrors.ErrNetworkFailure, err)
	}
	return err
}

func isRejection(err error) bool {
	var gwErr *Error
	return errors.As(err, &gwErr)
}
