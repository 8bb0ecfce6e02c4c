package service

import (
	"context"
	"time"

	"github.com/tokoraya/checkout/internal/domain/checkout"
	"github.com/tokoraya/checkout/internal/gateway"
)

// AccountService is the slice of the account/invoice service the checkout
// core depends on. Implemented by account.Client.
type AccountService interface {
	GetInvoice(ctx context.Context, invoiceID string) (*checkout.Invoice, error)
	GetOrder(ctx context.Context, invoiceID string) (*checkout.Order, error)
	WalletBalance(ctx context.Context, customerID string) (int64, error)
	DebitWallet(ctx context.Context, customerID, invoiceID string, amount int64) error
	InvoicePaid(ctx context.Context, invoiceID string) (bool, error)
}

// Gateway is the seam against the external payment gateway.
type Gateway = gateway.Adapter

// Attempt is one audit record of a generation or wallet debit.
type Attempt struct {
	InvoiceID string
	Method    checkout.Method
	Bank      string
	Outcome   string // "instruction", "card_form", "redirect", "paid", "rejected", "network_error"
	ErrorCode string
	CreatedAt time.Time
}

// AttemptRecorder persists attempts for the back office. Best effort: a
// failed write never affects the checkout flow.
type AttemptRecorder interface {
	Record(ctx context.Context, a Attempt) error
}

// SnapshotStore persists session snapshots so a reloaded page resumes
// where it left off.
type SnapshotStore interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context, invoiceID string) (*Snapshot, error)
	Delete(ctx context.Context, invoiceID string) error
}

// EventType tags orchestrator events for the presentation layer.
type EventType string

const (
	EventInstructionReady     EventType = "instruction_ready"
	EventCardFormShown        EventType = "card_form_shown"
	EventRedirect             EventType = "redirect"
	EventWalletConfirmNeeded  EventType = "wallet_confirm_needed"
	EventPaymentFailed        EventType = "payment_failed"
	EventStillPending         EventType = "still_pending"
	EventPaidOrder            EventType = "paid_order"
	EventPaidTopup            EventType = "paid_topup"
)

// Event is a state transition announcement. The orchestrator emits events
// instead of sharing mutable state with the presentation layer.
type Event struct {
	Type        EventType             `json:"type"`
	InvoiceID   string                `json:"invoice_id"`
	OrderNumber string                `json:"order_number,omitempty"`
	RedirectURL string                `json:"redirect_url,omitempty"`
	Error       *ClassifiedError      `json:"error,omitempty"`
	Instruction *checkout.Instruction `json:"instruction,omitempty"`
}
