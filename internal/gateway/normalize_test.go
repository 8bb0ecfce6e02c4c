package gateway

import (
	"errors"
	"testing"
	"time"

	"github.com/tokoraya/checkout/internal/domain/checkout"
	domainErrors "github.com/tokoraya/checkout/internal/domain/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_TwoStepCardSignal(t *testing.T) {
	resp := &GenerateResponse{CCDirect: true, MerchantRefNo: "ref-1", SessionToken: "tok-1"}

	result, err := Normalize(resp)
	require.NoError(t, err)
	assert.True(t, result.TwoStepCard)
	assert.Equal(t, "ref-1", result.MerchantRef)
	assert.Equal(t, "tok-1", result.SessionToken)
	assert.True(t, result.Instruction.IsZero())
}

func TestNormalize_TwoStepCardFallsBackToReference(t *testing.T) {
	resp := &GenerateResponse{CCDirect: true, Reference: "ref-2", SessionToken: "tok-2"}

	result, err := Normalize(resp)
	require.NoError(t, err)
	assert.Equal(t, "ref-2", result.MerchantRef)
}

func TestNormalize_TwoStepCardMissingCredentials(t *testing.T) {
	for _, resp := range []*GenerateResponse{
		{CCDirect: true, SessionToken: "tok"},
		{CCDirect: true, MerchantRefNo: "ref"},
	} {
		_, err := Normalize(resp)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domainErrors.ErrUnrecognizedResponse))
	}
}

func TestNormalize_VASingle(t *testing.T) {
	resp := &GenerateResponse{VANumber: "88081234567890", VABank: "bca"}

	result, err := Normalize(resp)
	require.NoError(t, err)
	va, ok := result.Instruction.VASingle()
	require.True(t, ok)
	assert.Equal(t, "88081234567890", va.Number)
	assert.Equal(t, "bca", va.Bank)
}

func TestNormalize_InstructionWinsOverRedirect(t *testing.T) {
	// A response carrying both a redirect URL and a VA number must resolve
	// to the VA instruction, never the redirect.
	resp := &GenerateResponse{RedirectURL: "https://gw.test/pay", VANumber: "88081234567890", VABank: "bca"}

	result, err := Normalize(resp)
	require.NoError(t, err)
	assert.Equal(t, checkout.InstructionVASingle, result.Instruction.Kind())
}

func TestNormalize_VAList(t *testing.T) {
	resp := &GenerateResponse{VAList: []VAItem{
		{Bank: "bca", VA: "111"},
		{Bank: "bni", VA: "222"},
	}}

	result, err := Normalize(resp)
	require.NoError(t, err)
	list, ok := result.Instruction.VAList()
	require.True(t, ok)
	require.Len(t, list, 2)
	assert.Equal(t, "bni", list[1].Bank)
	assert.Equal(t, "222", list[1].Number)
}

func TestNormalize_QR(t *testing.T) {
	resp := &GenerateResponse{QRCode: "data:image/png;base64,abc"}

	result, err := Normalize(resp)
	require.NoError(t, err)
	image, ok := result.Instruction.QRImage()
	require.True(t, ok)
	assert.Equal(t, "data:image/png;base64,abc", image)
}

func TestNormalize_CardIframe(t *testing.T) {
	resp := &GenerateResponse{CCFormURL: "https://gw.test/form", SessionToken: "tok"}

	result, err := Normalize(resp)
	require.NoError(t, err)
	form, ok := result.Instruction.CardForm()
	require.True(t, ok)
	assert.Equal(t, "https://gw.test/form", form.FormURL)
	assert.Equal(t, "tok", form.SessionToken)
}

func TestNormalize_SessionTokenAloneIsCardIframe(t *testing.T) {
	resp := &GenerateResponse{SessionToken: "tok"}

	result, err := Normalize(resp)
	require.NoError(t, err)
	assert.Equal(t, checkout.InstructionCardIframe, result.Instruction.Kind())
}

func TestNormalize_CardWaiting(t *testing.T) {
	resp := &GenerateResponse{WaitingCC: true, RedirectURL: "https://gw.test/wait"}

	result, err := Normalize(resp)
	require.NoError(t, err)
	assert.Equal(t, checkout.InstructionCardWaiting, result.Instruction.Kind())
	url, ok := result.Instruction.RedirectURL()
	require.True(t, ok)
	assert.Equal(t, "https://gw.test/wait", url)
}

func TestNormalize_PureRedirectIsResidual(t *testing.T) {
	resp := &GenerateResponse{RedirectURL: "https://gw.test/pay"}

	result, err := Normalize(resp)
	require.NoError(t, err)
	assert.Equal(t, checkout.InstructionRedirect, result.Instruction.Kind())
	assert.False(t, result.Instruction.Pollable())
}

func TestNormalize_EmptyResponse(t *testing.T) {
	_, err := Normalize(&GenerateResponse{})
	assert.True(t, errors.Is(err, domainErrors.ErrUnrecognizedResponse))
}

func TestNormalize_CarriesExpiry(t *testing.T) {
	resp := &GenerateResponse{VANumber: "123", VABank: "bca", ExpiredAt: "2026-09-01T10:00:00Z"}

	result, err := Normalize(resp)
	require.NoError(t, err)
	expiry, ok := result.Instruction.ExpiredAt()
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC), expiry.UTC())
}

func TestErrorPayload_RawMessage(t *testing.T) {
	tests := []struct {
		name     string
		payload  ErrorPayload
		expected string
	}{
		{"message wins over code when both set", ErrorPayload{Code: "do_not_honor", Message: "Do not honor"}, "Do not honor"},
		{"code alone", ErrorPayload{Code: "do_not_honor"}, "do_not_honor"},
		{"message alone", ErrorPayload{Message: "Do not honor"}, "Do not honor"},
		{"error field as last resort", ErrorPayload{Err: "upstream blew up"}, "upstream blew up"},
		{"all empty", ErrorPayload{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.payload.RawMessage())
		})
	}
}

func TestNormalize_IgnoresMalformedExpiry(t *testing.T) {
	resp := &GenerateResponse{VANumber: "123", VABank: "bca", ExpiredAt: "tomorrow"}

	result, err := Normalize(resp)
	require.NoError(t, err)
	_, ok := result.Instruction.ExpiredAt()
	assert.False(t, ok)
}
