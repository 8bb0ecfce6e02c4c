package service

import (
	"fmt"
	"strings"
)

// ClassifiedError is the user-facing rendering of an upstream failure.
type ClassifiedError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Classifier maps upstream gateway failure codes to a stable taxonomy and
// fixed user-facing text. The mapping is exact, not heuristic.
type Classifier struct {
	table                map[string]string
	genericMessage       string
	minInstallmentAmount int64
}

// NewClassifier builds the classifier. minInstallmentAmount feeds the
// installment guidance message.
func NewClassifier(minInstallmentAmount int64) *Classifier {
	return &Classifier{
		table: map[string]string{
			"below_minimum_amount":   "The amount is below the minimum transactable amount.",
			"do_not_honor":           "The card was declined by the issuing bank. Please try another card.",
			"incomplete_credentials": "Payment details are incomplete. Check your entries and try again.",
			"invalid_card_number":    "The card number is not valid.",
			"expired_card":           "The card has expired.",
			"insufficient_limit":     "The card has insufficient limit for this transaction.",
			"issuer_unavailable":     "The issuing bank is temporarily unavailable. Please try again shortly.",
		},
		genericMessage:       "Payment could not be processed. Please try again or choose another method.",
		minInstallmentAmount: minInstallmentAmount,
	}
}

// Classify resolves an upstream code/message pair to user-facing text.
// Table lookup happens first; unknown codes fall back to the raw upstream
// message, then to the generic message. The installment override is
// textual matching on the already-resolved message and runs last, only
// when an installment term is selected.
func (c *Classifier) Classify(code, rawMessage string, installmentTerm int) ClassifiedError {
	message, known := c.table[code]
	if !known {
		message = rawMessage
		if message == "" {
			message = c.genericMessage
		}
	}

	if installmentTerm > 0 && mentionsAmount(message) {
		message = fmt.Sprintf(
			"Installment payments require a minimum transaction of %d per charge. Reduce the term or pay in full.",
			c.minInstallmentAmount,
		)
	}

	outCode := code
	if outCode == "" {
		outCode = "gateway_rejected"
	}
	return ClassifiedError{Code: outCode, Message: message}
}

// NetworkError is the fixed text for transport-level failures.
func (c *Classifier) NetworkError() ClassifiedError {
	return ClassifiedError{
		Code:    "network_failure",
		Message: "We could not reach the payment service. Check your connection and try again.",
	}
}

func mentionsAmount(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "installment") || strings.Contains(lower, "amount")
}
