package account

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/tokoraya/checkout/internal/domain/checkout"
	domainErrors "github.com/tokoraya/checkout/internal/domain/errors"
	"github.com/tokoraya/checkout/pkg/retry"
)

// ClientConfig holds the account-service connection settings.
type ClientConfig struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
}

// Client reads invoices, orders and wallet state from the account service
// and fires the wallet debit. The checkout core never writes invoices
// directly; it only observes paid-status transitions.
type Client struct {
	http   *resty.Client
	logger zerolog.Logger
}

func NewClient(cfg ClientConfig, logger zerolog.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Authorization", "Bearer "+cfg.APIKey)

	return &Client{
		http:   http,
		logger: logger.With().Str("component", "account-client").Logger(),
	}
}

type invoiceDTO struct {
	ID        string     `json:"id"`
	Amount    int64      `json:"amount"`
	Type      string     `json:"type"`
	CreatedAt time.Time  `json:"created_at"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
}

type orderDTO struct {
	Number          string        `json:"number"`
	ShippingCountry string        `json:"shipping_country"`
	BillingCountry  string        `json:"billing_country"`
	Items           []lineItemDTO `json:"items"`
}

type lineItemDTO struct {
	SKU      string `json:"sku"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
}

type balanceDTO struct {
	Balance int64 `json:"balance"`
}

type statusDTO struct {
	Status string `json:"status"`
}

// paidStatus is the single literal the status check compares against.
const paidStatus = "paid"

// GetInvoice fetches the invoice. Read-only, so transient failures are
// retried with backoff.
func (c *Client) GetInvoice(ctx context.Context, invoiceID string) (*checkout.Invoice, error) {
	cfg := retry.DefaultConfig()
	cfg.OnRetry = func(attempt uint, err error) {
		c.logger.Warn().Uint("attempt", attempt).Err(err).Str("invoice_id", invoiceID).Msg("retrying invoice fetch")
	}

	return retry.DoWithResult(ctx, cfg, func() (*checkout.Invoice, error) {
		var dto invoiceDTO
		resp, err := c.http.R().
			SetContext(ctx).
			SetResult(&dto).
			Get("/v1/invoices/" + invoiceID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domainErrors.ErrNetworkFailure, err)
		}
		if resp.StatusCode() == 404 {
			return nil, retry.Unrecoverable(domainErrors.ErrInvoiceNotFound)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("%w: invoice fetch status %d", domainErrors.ErrNetworkFailure, resp.StatusCode())
		}
		return &checkout.Invoice{
			ID:        dto.ID,
			Amount:    dto.Amount,
			Type:      checkout.InvoiceType(dto.Type),
			CreatedAt: dto.CreatedAt,
			PaidAt:    dto.PaidAt,
		}, nil
	})
}

// GetOrder fetches the order attached to an invoice. A topup invoice has
// no order; that comes back as (nil, nil).
func (c *Client) GetOrder(ctx context.Context, invoiceID string) (*checkout.Order, error) {
	var dto orderDTO
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&dto).
		Get("/v1/invoices/" + invoiceID + "/order")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrNetworkFailure, err)
	}
	if resp.StatusCode() == 404 {
		return nil, nil
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: order fetch status %d", domainErrors.ErrNetworkFailure, resp.StatusCode())
	}

	items := make([]checkout.LineItem, 0, len(dto.Items))
	for _, it := range dto.Items {
		items = append(items, checkout.LineItem{SKU: it.SKU, Name: it.Name, Quantity: it.Quantity, Price: it.Price})
	}
	return &checkout.Order{
		Number:          dto.Number,
		ShippingCountry: dto.ShippingCountry,
		BillingCountry:  dto.BillingCountry,
		Items:           items,
	}, nil
}

// WalletBalance returns the customer's current wallet balance.
func (c *Client) WalletBalance(ctx context.Context, customerID string) (int64, error) {
	var dto balanceDTO
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&dto).
		Get("/v1/wallets/" + customerID + "/balance")
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domainErrors.ErrNetworkFailure, err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("%w: balance fetch status %d", domainErrors.ErrNetworkFailure, resp.StatusCode())
	}
	return dto.Balance, nil
}

// DebitWallet debits the invoice amount from the wallet and settles the
// invoice. Fire-to-completion: never retried here, the user re-attempts
// manually on failure.
func (c *Client) DebitWallet(ctx context.Context, customerID, invoiceID string, amount int64) error {
	body := map[string]any{"invoice_id": invoiceID, "amount": amount}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post("/v1/wallets/" + customerID + "/debit")
	if err != nil {
		return fmt.Errorf("%w: %v", domainErrors.ErrNetworkFailure, err)
	}
	if resp.StatusCode() == 422 {
		return domainErrors.ErrInsufficientFunds
	}
	if resp.IsError() {
		return fmt.Errorf("%w: wallet debit status %d", domainErrors.ErrNetworkFailure, resp.StatusCode())
	}
	return nil
}

// InvoicePaid checks whether the invoice has been settled.
func (c *Client) InvoicePaid(ctx context.Context, invoiceID string) (bool, error) {
	var dto statusDTO
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&dto).
		Get("/v1/invoices/" + invoiceID + "/status")
	if err != nil {
		return false, fmt.Errorf("%w: %v", domainErrors.ErrNetworkFailure, err)
	}
	if resp.IsError() {
		return false, fmt.Errorf("%w: status check %d", domainErrors.ErrNetworkFailure, resp.StatusCode())
	}
	return dto.Status == paidStatus, nil
}
