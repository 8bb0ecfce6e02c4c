package controller

import (
	"context"
	"net/http"

	"github.com/tokoraya/checkout/internal/domain/checkout"
	domainErrors "github.com/tokoraya/checkout/internal/domain/errors"
	"github.com/tokoraya/checkout/internal/service"

	"github.com/go-chi/chi/v5"
)

// AttemptLister reads recorded generation attempts for the back office view.
type AttemptLister interface {
	ListByInvoice(ctx context.Context, invoiceID string, limit int) ([]service.Attempt, error)
}

// CheckoutController handles checkout session HTTP requests.
type CheckoutController struct {
	manager  *service.Manager
	attempts AttemptLister
}

// NewCheckoutController creates a new CheckoutController.
func NewCheckoutController(manager *service.Manager, attempts AttemptLister) *CheckoutController {
	return &CheckoutController{manager: manager, attempts: attempts}
}

// Open handles POST /api/v1/checkout/{invoiceID}
func (h *CheckoutController) Open(w http.ResponseWriter, r *http.Request) {
	var req OpenSessionRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	orch, err := h.manager.Open(r.Context(), chi.URLParam(r, "invoiceID"), req.CustomerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, FromSnapshot(orch.State()))
}

// Get handles GET /api/v1/checkout/{invoiceID}
func (h *CheckoutController) Get(w http.ResponseWriter, r *http.Request) {
	orch := h.session(w, r)
	if orch == nil {
		return
	}
	writeJSON(w, http.StatusOK, FromSnapshot(orch.State()))
}

// SelectMethod handles POST /api/v1/checkout/{invoiceID}/method
func (h *CheckoutController) SelectMethod(w http.ResponseWriter, r *http.Request) {
	orch := h.session(w, r)
	if orch == nil {
		return
	}

	var req SelectMethodRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := orch.SelectMethod(r.Context(), checkout.Method(req.Method)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromSnapshot(orch.State()))
}

// SelectBank handles POST /api/v1/checkout/{invoiceID}/bank
func (h *CheckoutController) SelectBank(w http.ResponseWriter, r *http.Request) {
	orch := h.session(w, r)
	if orch == nil {
		return
	}

	var req SelectBankRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := orch.SelectBank(r.Context(), req.Bank); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromSnapshot(orch.State()))
}

// SelectCard handles POST /api/v1/checkout/{invoiceID}/card
func (h *CheckoutController) SelectCard(w http.ResponseWriter, r *http.Request) {
	orch := h.session(w, r)
	if orch == nil {
		return
	}

	var req SelectCardRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := orch.SelectCard(r.Context(), req.CardToken, req.InstallmentTerm, req.SaveCard); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromSnapshot(orch.State()))
}

// Generate handles POST /api/v1/checkout/{invoiceID}/generate
func (h *CheckoutController) Generate(w http.ResponseWriter, r *http.Request) {
	orch := h.session(w, r)
	if orch == nil {
		return
	}
	if err := orch.Generate(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromSnapshot(orch.State()))
}

// SubmitCard handles POST /api/v1/checkout/{invoiceID}/card/submit
func (h *CheckoutController) SubmitCard(w http.ResponseWriter, r *http.Request) {
	orch := h.session(w, r)
	if orch == nil {
		return
	}

	var req SubmitCardRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	form := checkout.CardForm{Number: req.Number, Expiry: req.Expiry, CVV: req.CVV}
	if err := orch.SubmitCard(r.Context(), form); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromSnapshot(orch.State()))
}

// ConfirmWallet handles POST /api/v1/checkout/{invoiceID}/wallet/confirm
func (h *CheckoutController) ConfirmWallet(w http.ResponseWriter, r *http.Request) {
	orch := h.session(w, r)
	if orch == nil {
		return
	}
	if err := orch.ConfirmWalletDebit(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromSnapshot(orch.State()))
}

// CheckStatus handles POST /api/v1/checkout/{invoiceID}/status
func (h *CheckoutController) CheckStatus(w http.ResponseWriter, r *http.Request) {
	orch := h.session(w, r)
	if orch == nil {
		return
	}
	result, err := orch.CheckStatus(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Paid: result.Paid, Pending: result.Pending})
}

// ListAttempts handles GET /api/v1/checkout/{invoiceID}/attempts
func (h *CheckoutController) ListAttempts(w http.ResponseWriter, r *http.Request) {
	attempts, err := h.attempts.ListByInvoice(r.Context(), chi.URLParam(r, "invoiceID"), 50)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromAttempts(attempts))
}

// CloseSession handles DELETE /api/v1/checkout/{invoiceID}
func (h *CheckoutController) CloseSession(w http.ResponseWriter, r *http.Request) {
	h.manager.CloseSession(r.Context(), chi.URLParam(r, "invoiceID"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *CheckoutController) session(w http.ResponseWriter, r *http.Request) *service.Orchestrator {
	orch := h.manager.Get(chi.URLParam(r, "invoiceID"))
	if orch == nil {
		writeError(w, domainErrors.ErrSessionClosed)
		return nil
	}
	return orch
}
