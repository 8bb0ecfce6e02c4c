package controller

import (
	"github.com/tokoraya/checkout/internal/domain/checkout"
	"github.com/tokoraya/checkout/internal/service"
)

// --- Request DTOs ---
// These DTOs handle HTTP/JSON concerns (string enums, validation tags).
// Controllers convert these to domain types before calling business logic.

// OpenSessionRequest holds the input for opening a checkout session.
type OpenSessionRequest struct {
	CustomerID string `json:"customer_id" validate:"required"`
}

// SelectMethodRequest holds the chosen payment method.
type SelectMethodRequest struct {
	Method string `json:"method" validate:"required,oneof=va cc qris manual wallet"`
}

// SelectBankRequest holds the chosen virtual-account bank.
type SelectBankRequest struct {
	Bank string `json:"bank" validate:"required"`
}

// SelectCardRequest holds the card token choice and payment terms.
type SelectCardRequest struct {
	CardToken       string `json:"card_token" validate:"required"`
	InstallmentTerm int    `json:"installment_term" validate:"oneof=0 3 6 12"`
	SaveCard        bool   `json:"save_card"`
}

// SubmitCardRequest carries raw card fields for a direct-entry authorization.
type SubmitCardRequest struct {
	Number string `json:"number" validate:"required"`
	Expiry string `json:"expiry" validate:"required"`
	CVV    string `json:"cvv" validate:"required"`
}

// --- Response DTOs ---

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// SessionResponse renders the full session state for the client.
type SessionResponse struct {
	InvoiceID             string                         `json:"invoice_id"`
	Methods               []checkout.PaymentMethodOption `json:"methods"`
	Selection             checkout.Selection             `json:"selection"`
	Instruction           *checkout.Instruction          `json:"instruction,omitempty"`
	CardAuthState         string                         `json:"card_auth_state,omitempty"`
	AwaitingWalletConfirm bool                           `json:"awaiting_wallet_confirm"`
	Busy                  bool                           `json:"busy"`
	Paid                  bool                           `json:"paid"`
	LastError             *service.ClassifiedError       `json:"last_error,omitempty"`
}

// StatusResponse reports the outcome of a manual status check.
type StatusResponse struct {
	Paid    bool `json:"paid"`
	Pending bool `json:"pending"`
}

// AttemptResponse renders one recorded generation attempt.
type AttemptResponse struct {
	Method    string `json:"method"`
	Bank      string `json:"bank,omitempty"`
	Outcome   string `json:"outcome"`
	ErrorCode string `json:"error_code,omitempty"`
	CreatedAt string `json:"created_at"`
}

// FromSnapshot converts an orchestrator snapshot into the API shape.
func FromSnapshot(snap service.Snapshot) SessionResponse {
	resp := SessionResponse{
		InvoiceID:             snap.InvoiceID,
		Methods:               snap.Methods,
		Selection:             snap.Selection,
		AwaitingWalletConfirm: snap.AwaitingWalletConfirm,
		Busy:                  snap.Busy,
		Paid:                  snap.Paid,
		LastError:             snap.LastError,
	}
	if !snap.Instruction.IsZero() {
		in := snap.Instruction
		resp.Instruction = &in
	}
	if snap.CardAuth.State != checkout.CardNotStarted {
		resp.CardAuthState = string(snap.CardAuth.State)
	}
	return resp
}

// FromAttempts converts recorded attempts into the API shape.
func FromAttempts(attempts []service.Attempt) []AttemptResponse {
	out := make([]AttemptResponse, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, AttemptResponse{
			Method:    string(a.Method),
			Bank:      a.Bank,
			Outcome:   a.Outcome,
			ErrorCode: a.ErrorCode,
			CreatedAt: a.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return out
}
