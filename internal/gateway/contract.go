package gateway

import (
	"context"
	"fmt"

	domainErrors "github.com/tokoraya/checkout/internal/domain/errors"
)

// GenerateRequest carries everything the gateway needs to issue a payment
// code for an invoice.
type GenerateRequest struct {
	InvoiceID       string `json:"invoice_id"`
	Method          string `json:"method"`
	Bank            string `json:"bank,omitempty"`
	InstallmentTerm int    `json:"installment_term,omitempty"`
	CardToken       string `json:"card_token,omitempty"`
	SaveCard        bool   `json:"save_card,omitempty"`
}

// GenerateResponse is the gateway's wire shape. One endpoint answers with
// heterogeneous field sets; normalization sorts them into a single tagged
// instruction. Tolerate unknown fields: the gateway adds them unannounced.
type GenerateResponse struct {
	CCDirect      bool     `json:"cc_direct,omitempty"`
	MerchantRefNo string   `json:"merchant_ref_no,omitempty"`
	Reference     string   `json:"reference,omitempty"`
	SessionToken  string   `json:"session_token,omitempty"`
	RedirectURL   string   `json:"redirect_url,omitempty"`
	VANumber      string   `json:"va_number,omitempty"`
	VABank        string   `json:"va_bank,omitempty"`
	VAList        []VAItem `json:"va_list,omitempty"`
	QRCode        string   `json:"qr_code,omitempty"`
	CCFormURL     string   `json:"cc_form_url,omitempty"`
	WaitingCC     bool     `json:"waiting_cc,omitempty"`
	ExpiredAt     string   `json:"expired_at,omitempty"`
}

// VAItem is one entry of a multi-bank virtual account response.
type VAItem struct {
	Bank string `json:"bank"`
	VA   string `json:"va"`
}

// merchantRef returns whichever reference field the gateway populated.
func (r *GenerateResponse) merchantRef() string {
	if r.MerchantRefNo != "" {
		return r.MerchantRefNo
	}
	return r.Reference
}

// SubmitRequest is the direct card submission. MerchantRef and
// SessionToken are the opaque values issued by the two-step signal and are
// replayed unchanged.
type SubmitRequest struct {
	MerchantRef  string `json:"merchant_ref_no"`
	SessionToken string `json:"session_token"`
	CardNumber   string `json:"card_number"`
	ExpiryMonth  int    `json:"expiry_month"`
	ExpiryYear   int    `json:"expiry_year"` // four digits
	CVV          string `json:"cvv"`
}

// ErrorPayload is the gateway's error body.
type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Err     string `json:"error,omitempty"`
}

// RawMessage picks the display text from the error body: the first
// non-empty of code, message and error, except that a human-readable
// message wins over the machine code when both are present. The code still
// travels separately for classification.
func (e ErrorPayload) RawMessage() string {
	if e.Code != "" && e.Message != "" {
		return e.Message
	}
	for _, s := range []string{e.Code, e.Message, e.Err} {
		if s != "" {
			return s
		}
	}
	return ""
}

// Error is a classified-ready gateway rejection.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway rejected: %s (%s)", e.Message, e.Code)
	}
	return fmt.Sprintf("gateway rejected: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return domainErrors.ErrGatewayRejected
}

// Adapter is the single seam against the external payment gateway.
type Adapter interface {
	// GenerateCode asks the gateway for a payment code and returns the
	// normalized result.
	GenerateCode(ctx context.Context, req GenerateRequest) (*NormalizedResult, error)
	// SubmitCard completes the two-step direct card flow.
	SubmitCard(ctx context.Context, req SubmitRequest) (*NormalizedResult, error)
}
