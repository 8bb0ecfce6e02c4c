package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_KnownCode(t *testing.T) {
	c := NewClassifier(500000)

	got := c.Classify("do_not_honor", "DO NOT HONOR", 0)

	assert.Equal(t, "do_not_honor", got.Code)
	assert.Equal(t, "The card was declined by the issuing bank. Please try another card.", got.Message)
}

func TestClassify_UnknownCodeFallsBackToRawMessage(t *testing.T) {
	c := NewClassifier(500000)

	got := c.Classify("weird_new_code", "Something odd happened upstream.", 0)

	assert.Equal(t, "weird_new_code", got.Code)
	assert.Equal(t, "Something odd happened upstream.", got.Message)
}

func TestClassify_EmptyEverythingUsesGeneric(t *testing.T) {
	c := NewClassifier(500000)

	got := c.Classify("", "", 0)

	assert.Equal(t, "gateway_rejected", got.Code)
	assert.Equal(t, "Payment could not be processed. Please try again or choose another method.", got.Message)
}

func TestClassify_InstallmentOverrideOnAmountMessage(t *testing.T) {
	c := NewClassifier(500000)

	got := c.Classify("below_minimum_amount", "", 6)

	assert.Contains(t, got.Message, "500000")
	assert.Contains(t, got.Message, "Reduce the term or pay in full")
}

func TestClassify_NoOverrideWithoutInstallmentTerm(t *testing.T) {
	c := NewClassifier(500000)

	got := c.Classify("below_minimum_amount", "", 0)

	assert.Equal(t, "The amount is below the minimum transactable amount.", got.Message)
}

func TestClassify_OverrideMatchesResolvedMessageNotRaw(t *testing.T) {
	c := NewClassifier(500000)

	// Known code resolves to fixed text with no amount wording; the raw
	// upstream message must not re-trigger the override.
	got := c.Classify("do_not_honor", "installment amount too low", 6)
	assert.Equal(t, "The card was declined by the issuing bank. Please try another card.", got.Message)

	// Unknown code keeps the raw message, which does mention installments.
	got = c.Classify("odd_code", "Installment rejected by issuer", 6)
	assert.Contains(t, got.Message, "500000")
}

func TestNetworkError_FixedText(t *testing.T) {
	c := NewClassifier(500000)

	got := c.NetworkError()

	assert.Equal(t, "network_failure", got.Code)
	assert.Equal(t, "We could not reach the payment service. Check your connection and try again.", got.Message)
}
