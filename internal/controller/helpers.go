package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	domainErrors "github.com/tokoraya/checkout/internal/domain/errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

var validate = validator.New()

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{domainErrors.ErrInvoiceNotFound, http.StatusNotFound, "not_found"},
	{domainErrors.ErrInvoicePaid, http.StatusConflict, "already_paid"},
	{domainErrors.ErrInvoiceExpired, http.StatusGone, "invoice_expired"},
	{domainErrors.ErrMethodNotOffered, http.StatusUnprocessableEntity, "method_not_offered"},
	{domainErrors.ErrNoMethodSelected, http.StatusUnprocessableEntity, "no_method_selected"},
	{domainErrors.ErrBankRequired, http.StatusUnprocessableEntity, "bank_required"},
	{domainErrors.ErrBankNotSupported, http.StatusUnprocessableEntity, "bank_not_supported"},
	{domainErrors.ErrCardOptionsNotApplicable, http.StatusUnprocessableEntity, "card_options_not_applicable"},
	{domainErrors.ErrBusy, http.StatusConflict, "request_in_flight"},
	{domainErrors.ErrInsufficientFunds, http.StatusUnprocessableEntity, "insufficient_funds"},
	{domainErrors.ErrGatewayRejected, http.StatusUnprocessableEntity, "gateway_rejected"},
	{domainErrors.ErrNetworkFailure, http.StatusBadGateway, "gateway_unreachable"},
	{domainErrors.ErrUnrecognizedResponse, http.StatusBadGateway, "gateway_unreachable"},
	{domainErrors.ErrCardFlowNotActive, http.StatusConflict, "card_flow_not_active"},
	{domainErrors.ErrWalletConfirmNotPending, http.StatusConflict, "wallet_confirm_not_pending"},
	{domainErrors.ErrNoActiveInstruction, http.StatusConflict, "no_active_instruction"},
	{domainErrors.ErrSessionClosed, http.StatusGone, "session_closed"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}

	var validationErr *domainErrors.ValidationError
	if errors.As(err, &validationErr) {
		resp.Code = "validation_error"
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			resp.Code = m.code
			writeJSON(w, m.status, resp)
			return
		}
	}

	var domainErr *domainErrors.DomainError
	if errors.As(err, &domainErr) {
		resp.Code = domainErr.Code
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	log.Error().Err(err).Msg("unhandled error in handler")
	resp.Code = "internal_error"
	resp.Error = "internal server error"
	writeJSON(w, http.StatusInternalServerError, resp)
}

func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domainErrors.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	if err := validate.Struct(dst); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			return domainErrors.NewValidationError(ve[0].Field(), ve[0].Tag()+" validation failed")
		}
		return domainErrors.NewValidationError("body", err.Error())
	}
	return nil
}
