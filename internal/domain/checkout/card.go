package checkout

import (
	"strconv"
	"strings"

	domainErrors "github.com/tokoraya/checkout/internal/domain/errors"
)

// CardAuthState tracks the two-step direct card flow.
type CardAuthState string

const (
	CardNotStarted       CardAuthState = "not_started"
	CardFormShown        CardAuthState = "form_shown"
	CardSubmitting       CardAuthState = "submitting"
	CardRedirectRequired CardAuthState = "redirect_required"
	CardInstructionReady CardAuthState = "instruction_ready"
)

// CardAuthorization holds the gateway credentials issued when the two-step
// flow begins. MerchantRef and SessionToken are opaque and must be replayed
// verbatim on submission.
type CardAuthorization struct {
	State        CardAuthState `json:"state"`
	MerchantRef  string        `json:"merchant_ref,omitempty"`
	SessionToken string        `json:"session_token,omitempty"`
}

// CardForm is the raw user input for a direct card submission.
type CardForm struct {
	Number string
	Expiry string // MM/YY
	CVV    string
}

// CardSubmission is the validated, transform-applied payload sent to the
// gateway.
type CardSubmission struct {
	Number      string
	ExpiryMonth int
	ExpiryYear  int // four digits
	CVV         string
}

// Validate checks the form client-side and applies the expiry transform.
// Card number must be 13–19 digits after stripping separators, expiry must
// be MM/YY with both parts exactly two digits and the month in 01–12, and
// the CVV at least 3 digits. A two-digit year expands to 2000+YY; that is
// fixed policy, not configuration.
func (f CardForm) Validate() (CardSubmission, error) {
	number := stripSeparators(f.Number)
	if !digitsOnly(number) {
		return CardSubmission{}, domainErrors.NewValidationError("card_number", "must contain only digits")
	}
	if len(number) < 13 || len(number) > 19 {
		return CardSubmission{}, domainErrors.NewValidationError("card_number", "must be 13 to 19 digits")
	}

	parts := strings.Split(f.Expiry, "/")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return CardSubmission{}, domainErrors.NewValidationError("expiry", "must be in MM/YY format")
	}
	month, err := strconv.Atoi(parts[0])
	if err != nil || month < 1 || month > 12 {
		return CardSubmission{}, domainErrors.NewValidationError("expiry", "month must be between 01 and 12")
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return CardSubmission{}, domainErrors.NewValidationError("expiry", "year must be two digits")
	}

	if len(f.CVV) < 3 || !digitsOnly(f.CVV) {
		return CardSubmission{}, domainErrors.NewValidationError("cvv", "must be at least 3 digits")
	}

	return CardSubmission{
		Number:      number,
		ExpiryMonth: month,
		ExpiryYear:  2000 + year,
		CVV:         f.CVV,
	}, nil
}

func stripSeparators(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, s)
}

func digitsOnly(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
