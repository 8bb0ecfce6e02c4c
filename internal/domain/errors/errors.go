package errors

import (
	"errors"
	"fmt"
)

var (
	// Invoice errors
	ErrInvoiceNotFound = errors.New("invoice not found")
	ErrInvoicePaid     = errors.New("invoice already paid")
	ErrInvoiceExpired  = errors.New("invoice has expired")

	// Selection errors
	ErrMethodNotOffered = errors.New("payment method not offered for this invoice")
	ErrNoMethodSelected = errors.New("no payment method selected")
	ErrBankRequired     = errors.New("bank selection required for this method")
	ErrBankNotSupported = errors.New("method does not take a bank selection")

	ErrCardOptionsNotApplicable = errors.New("card options only apply to the card method")

	// Generation errors
	ErrBusy                 = errors.New("a generation is already in flight")
	ErrInsufficientFunds    = errors.New("wallet balance below invoice amount")
	ErrGatewayRejected      = errors.New("payment rejected by gateway")
	ErrNetworkFailure       = errors.New("network failure reaching upstream")
	ErrUnrecognizedResponse = errors.New("unrecognized gateway response shape")

	// Card flow errors
	ErrCardFlowNotActive = errors.New("card authorization flow not active")

	// Wallet errors
	ErrWalletConfirmNotPending = errors.New("no wallet debit awaiting confirmation")

	// Poller errors
	ErrNoActiveInstruction = errors.New("no active payment instruction")

	// Session errors
	ErrSessionClosed = errors.New("checkout session closed")
)

// DomainError wraps errors with a stable code and a user-facing message.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a client-side validation failure. It is caught
// before any network call and never mutates selection state.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
