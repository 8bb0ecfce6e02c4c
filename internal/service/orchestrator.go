package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tokoraya/checkout/internal/domain/checkout"
	domainErrors "github.com/tokoraya/checkout/internal/domain/errors"
	"github.com/tokoraya/checkout/internal/gateway"
	"github.com/tokoraya/checkout/internal/infrastructure/observability"
)

// Config holds the orchestrator's tunables.
type Config struct {
	PollInterval  time.Duration
	InvoiceWindow time.Duration // coarse payment window, 24h in production
	Merchant      checkout.MerchantSettings
}

// Deps wires the orchestrator's collaborators. Recorder, Snapshots and
// Metrics may be nil; the orchestrator degrades to not recording.
type Deps struct {
	Gateway    Gateway
	Accounts   AccountService
	Classifier *Classifier
	Recorder   AttemptRecorder
	Snapshots  SnapshotStore
	Metrics    *observability.Metrics
	Logger     zerolog.Logger
}

// Snapshot is the orchestrator's externally visible state. The
// presentation layer renders snapshots and events; it never touches the
// orchestrator's fields.
type Snapshot struct {
	InvoiceID             string                         `json:"invoice_id"`
	CustomerID            string                         `json:"customer_id"`
	Methods               []checkout.PaymentMethodOption `json:"methods"`
	Selection             checkout.Selection             `json:"selection"`
	Instruction           checkout.Instruction           `json:"instruction"`
	CardAuth              checkout.CardAuthorization     `json:"card_auth"`
	AwaitingWalletConfirm bool                           `json:"awaiting_wallet_confirm"`
	Busy                  bool                           `json:"busy"`
	Paid                  bool                           `json:"paid"`
	LastError             *ClassifiedError               `json:"last_error,omitempty"`
}

// StatusResult is the outcome of a status check. Pending is informational,
// not an error; it is only ever set for manual checks.
type StatusResult struct {
	Paid    bool `json:"paid"`
	Pending bool `json:"pending"`
}

// Orchestrator owns one checkout session for one invoice. All commands are
// safe for concurrent use, but the model is one logical actor driving one
// instance; the busy flag keeps at most one upstream call outstanding.
type Orchestrator struct {
	cfg  Config
	deps Deps

	mu         sync.Mutex
	invoice    *checkout.Invoice
	order      *checkout.Order
	customerID string
	balance    int64
	options    []checkout.PaymentMethodOption

	selection      checkout.Selection
	instruction    checkout.Instruction
	cardAuth       checkout.CardAuthorization
	awaitingWallet bool
	busy           bool
	paid           bool
	closed         bool
	lastErr        *ClassifiedError

	// epoch invalidates in-flight upstream results once the user moves on.
	epoch  uint64
	poller *poller

	events chan Event
	logger zerolog.Logger
}

// NewOrchestrator loads the invoice context, resolves the offered methods
// once, and restores a previous session snapshot if one exists.
func NewOrchestrator(ctx context.Context, invoiceID, customerID string, cfg Config, deps Deps) (*Orchestrator, error) {
	inv, err := deps.Accounts.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("load invoice: %w", err)
	}

	var ord *checkout.Order
	if inv.Type == checkout.InvoiceOrder {
		ord, err = deps.Accounts.GetOrder(ctx, invoiceID)
		if err != nil {
			return nil, fmt.Errorf("load order: %w", err)
		}
	}

	balance, err := deps.Accounts.WalletBalance(ctx, customerID)
	if err != nil {
		// Balance only matters at generate time; a failed lookup must not
		// block the page. Sufficiency is re-checked by the debit itself.
		deps.Logger.Warn().Err(err).Str("invoice_id", invoiceID).Msg("wallet balance lookup failed")
		balance = 0
	}

	o := &Orchestrator{
		cfg:        cfg,
		deps:       deps,
		invoice:    inv,
		order:      ord,
		customerID: customerID,
		balance:    balance,
		options:    checkout.ResolveMethods(inv, ord, cfg.Merchant),
		paid:       inv.IsPaid(),
		events:     make(chan Event, 16),
		logger:     deps.Logger.With().Str("component", "orchestrator").Str("invoice_id", invoiceID).Logger(),
	}

	o.restore(ctx)
	return o, nil
}

// restore resumes a snapshotted session: selection, instruction, card
// state. A still-active pollable instruction restarts the poller.
func (o *Orchestrator) restore(ctx context.Context) {
	if o.deps.Snapshots == nil {
		return
	}
	snap, err := o.deps.Snapshots.Load(ctx, o.invoice.ID)
	if err != nil {
		o.logger.Warn().Err(err).Msg("session snapshot load failed")
		return
	}
	if snap == nil {
		return
	}

	o.mu.Lock()
	o.selection = snap.Selection
	o.instruction = snap.Instruction
	o.cardAuth = snap.CardAuth
	o.awaitingWallet = snap.AwaitingWalletConfirm
	o.lastErr = snap.LastError
	shouldPoll := !o.paid && o.instruction.Pollable()
	o.mu.Unlock()

	if shouldPoll {
		o.startPoller()
	}
}

// Events exposes the orchestrator's event stream. Slow consumers lose
// events; the snapshot always carries the authoritative state.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// State returns the current session snapshot.
func (o *Orchestrator) State() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	return Snapshot{
		InvoiceID:             o.invoice.ID,
		CustomerID:            o.customerID,
		Methods:               o.options,
		Selection:             o.selection,
		Instruction:           o.instruction,
		CardAuth:              o.cardAuth,
		AwaitingWalletConfirm: o.awaitingWallet,
		Busy:                  o.busy,
		Paid:                  o.paid,
		LastError:             o.lastErr,
	}
}

// SelectMethod sets the payment method. It clears the bank selection, any
// active instruction, the card flow and the last error — even when the
// same method is reselected. No network call.
func (o *Orchestrator) SelectMethod(ctx context.Context, m checkout.Method) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return domainErrors.ErrSessionClosed
	}
	if !checkout.Offered(o.options, m) {
		o.mu.Unlock()
		return domainErrors.ErrMethodNotOffered
	}

	o.selection = o.selection.Reset(m)
	o.instruction = checkout.Instruction{}
	o.cardAuth = checkout.CardAuthorization{State: checkout.CardNotStarted}
	o.awaitingWallet = false
	o.lastErr = nil
	o.epoch++
	p := o.detachPollerLocked()
	o.mu.Unlock()

	if p != nil {
		p.stop()
	}
	o.saveSnapshot(ctx)
	return nil
}

// SelectBank sets the bank sub-option. Only valid for methods that take
// one.
func (o *Orchestrator) SelectBank(ctx context.Context, bank string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return domainErrors.ErrSessionClosed
	}
	if !o.selection.Method.RequiresBank() {
		return domainErrors.ErrBankNotSupported
	}
	if !checkout.BankOffered(o.options, o.selection.Method, bank) {
		return domainErrors.NewValidationError("bank", "unknown bank "+bank)
	}
	o.selection.Bank = bank
	return nil
}

// SelectCard sets the saved-card token ("new" for a fresh card), the
// installment term and the save-card preference. Card method only.
func (o *Orchestrator) SelectCard(ctx context.Context, token string, installmentTerm int, saveCard bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return domainErrors.ErrSessionClosed
	}
	if o.selection.Method != checkout.MethodCard {
		return domainErrors.ErrCardOptionsNotApplicable
	}
	switch installmentTerm {
	case 0, 3, 6, 12:
	default:
		return domainErrors.NewValidationError("installment_term", "must be 0, 3, 6 or 12")
	}
	if token == "" {
		token = checkout.CardTokenNew
	}
	o.selection.CardToken = token
	o.selection.InstallmentTerm = installmentTerm
	o.selection.SaveCard = saveCard && token == checkout.CardTokenNew
	return nil
}

// Generate produces a payment instruction for the current selection. At
// most one generation is outstanding; a second call while busy fails fast.
func (o *Orchestrator) Generate(ctx context.Context) error {
	o.mu.Lock()
	if err := o.generatePreconditionsLocked(); err != nil {
		o.mu.Unlock()
		return err
	}
	o.busy = true
	o.lastErr = nil
	sel := o.selection
	epoch := o.epoch
	amount := o.invoice.Amount
	balance := o.balance
	o.mu.Unlock()

	defer o.clearBusy()

	switch sel.Method {
	case checkout.MethodWallet:
		return o.generateWallet(ctx, amount, balance)
	case checkout.MethodManual:
		return o.generateManual(ctx, amount)
	default:
		return o.generateViaGateway(ctx, sel, epoch)
	}
}

func (o *Orchestrator) generatePreconditionsLocked() error {
	if o.closed {
		return domainErrors.ErrSessionClosed
	}
	if o.paid {
		return domainErrors.ErrInvoicePaid
	}
	if o.busy {
		return domainErrors.ErrBusy
	}
	if !o.selection.Method.Valid() {
		return domainErrors.ErrNoMethodSelected
	}
	if o.selection.Method.RequiresBank() && o.selection.Bank == "" {
		return domainErrors.ErrBankRequired
	}
	if time.Now().After(o.invoice.ExpiredAt(o.cfg.InvoiceWindow)) {
		return domainErrors.ErrInvoiceExpired
	}
	return nil
}

// generateWallet checks funds locally and gates the debit behind an
// explicit confirmation. No gateway call is made.
func (o *Orchestrator) generateWallet(ctx context.Context, amount, balance int64) error {
	if balance < amount {
		return domainErrors.ErrInsufficientFunds
	}

	o.mu.Lock()
	o.awaitingWallet = true
	o.mu.Unlock()

	o.emit(Event{Type: EventWalletConfirmNeeded, InvoiceID: o.invoice.ID})
	o.saveSnapshot(ctx)
	return nil
}

// generateManual synthesizes the instruction from the merchant's own bank
// accounts. No network call.
func (o *Orchestrator) generateManual(ctx context.Context, amount int64) error {
	accounts := o.cfg.Merchant.ManualTransferBanks
	if len(accounts) == 0 {
		return domainErrors.ErrMethodNotOffered
	}

	targets := make([]string, 0, len(accounts))
	for _, a := range accounts {
		targets = append(targets, fmt.Sprintf("%s %s (%s)", a.Bank, a.Number, a.Holder))
	}
	in := checkout.NewManualInstruction(checkout.ManualTransfer{
		BankTarget: strings.Join(targets, "; "),
		Amount:     amount,
		Reference:  o.invoice.ID,
	})

	o.activateInstruction(ctx, in)
	o.recordAttempt(ctx, "instruction", "")
	return nil
}

func (o *Orchestrator) generateViaGateway(ctx context.Context, sel checkout.Selection, epoch uint64) error {
	req := gateway.GenerateRequest{
		InvoiceID: o.invoice.ID,
		Method:    string(sel.Method),
		Bank:      sel.Bank,
	}
	if sel.Method == checkout.MethodCard {
		req.InstallmentTerm = sel.InstallmentTerm
		req.CardToken = sel.CardToken
		req.SaveCard = sel.SaveCard
	}

	result, err := o.deps.Gateway.GenerateCode(ctx, req)

	o.mu.Lock()
	stale := o.epoch != epoch || o.closed
	o.mu.Unlock()
	if stale {
		// The user moved on while the call was in flight; the result is
		// discarded, the call itself ran to completion.
		o.logger.Debug().Msg("discarding stale generation result")
		return nil
	}

	if err != nil {
		classified := o.classify(err, sel.InstallmentTerm)
		o.mu.Lock()
		o.lastErr = &classified
		o.mu.Unlock()
		o.emit(Event{Type: EventPaymentFailed, InvoiceID: o.invoice.ID, Error: &classified})
		o.recordAttempt(ctx, attemptOutcome(err), classified.Code)
		o.countGeneration(string(sel.Method), attemptOutcome(err))
		return err
	}

	switch {
	case result.TwoStepCard:
		o.mu.Lock()
		o.cardAuth = checkout.CardAuthorization{
			State:        checkout.CardFormShown,
			MerchantRef:  result.MerchantRef,
			SessionToken: result.SessionToken,
		}
		o.mu.Unlock()
		o.emit(Event{Type: EventCardFormShown, InvoiceID: o.invoice.ID})
		o.recordAttempt(ctx, "card_form", "")
		o.countGeneration(string(sel.Method), "card_form")

	case result.Instruction.Kind() == checkout.InstructionRedirect:
		url, _ := result.Instruction.RedirectURL()
		o.mu.Lock()
		o.instruction = result.Instruction
		o.mu.Unlock()
		o.emit(Event{Type: EventRedirect, InvoiceID: o.invoice.ID, RedirectURL: url})
		o.recordAttempt(ctx, "redirect", "")
		o.countGeneration(string(sel.Method), "redirect")

	default:
		o.activateInstruction(ctx, result.Instruction)
		o.recordAttempt(ctx, "instruction", "")
		o.countGeneration(string(sel.Method), "instruction")
	}

	o.saveSnapshot(ctx)
	return nil
}

// ConfirmWalletDebit fires the wallet debit after the user's explicit
// confirmation. On success the invoice is paid and the session ends; on
// failure the error is surfaced and the user may confirm again.
func (o *Orchestrator) ConfirmWalletDebit(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return domainErrors.ErrSessionClosed
	}
	if !o.awaitingWallet {
		o.mu.Unlock()
		return domainErrors.ErrWalletConfirmNotPending
	}
	if o.busy {
		o.mu.Unlock()
		return domainErrors.ErrBusy
	}
	o.busy = true
	amount := o.invoice.Amount
	o.mu.Unlock()

	defer o.clearBusy()

	if err := o.deps.Accounts.DebitWallet(ctx, o.customerID, o.invoice.ID, amount); err != nil {
		classified := o.classifyWalletErr(err)
		o.mu.Lock()
		o.lastErr = &classified
		o.mu.Unlock()
		o.emit(Event{Type: EventPaymentFailed, InvoiceID: o.invoice.ID, Error: &classified})
		o.recordAttempt(ctx, attemptOutcome(err), classified.Code)
		return err
	}

	o.mu.Lock()
	o.awaitingWallet = false
	o.mu.Unlock()
	o.recordAttempt(ctx, "paid", "")
	o.handlePaid(ctx)
	return nil
}

// CheckStatus runs a manual "verify now" check. It always executes, even
// while an automatic check is in flight, and reports a non-error pending
// result when the invoice is still unpaid. Transport failures are
// swallowed and reported as pending.
func (o *Orchestrator) CheckStatus(ctx context.Context) (*StatusResult, error) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil, domainErrors.ErrSessionClosed
	}
	if o.paid {
		o.mu.Unlock()
		return &StatusResult{Paid: true}, nil
	}
	if !o.instruction.Pollable() {
		o.mu.Unlock()
		return nil, domainErrors.ErrNoActiveInstruction
	}
	o.mu.Unlock()

	paid, err := o.deps.Accounts.InvoicePaid(ctx, o.invoice.ID)
	if err != nil {
		o.logger.Warn().Err(err).Msg("manual status check failed")
		o.countPoll("manual", "error")
		return &StatusResult{Pending: true}, nil
	}
	if !paid {
		o.emit(Event{Type: EventStillPending, InvoiceID: o.invoice.ID})
		o.countPoll("manual", "pending")
		return &StatusResult{Pending: true}, nil
	}

	o.countPoll("manual", "paid")
	o.handlePaid(ctx)
	return &StatusResult{Paid: true}, nil
}

// Close ends the session: the poller stops deterministically, further
// commands fail. In-flight upstream mutations run to completion and their
// results are discarded.
func (o *Orchestrator) Close(ctx context.Context) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.epoch++
	p := o.detachPollerLocked()
	o.mu.Unlock()

	if p != nil {
		p.stop()
	}
	o.saveSnapshot(ctx)
}

// --- internals ---

// activateInstruction installs a new active instruction and starts the
// status poller. Exactly one instruction is active at a time; the caller
// has already discarded any prior one.
func (o *Orchestrator) activateInstruction(ctx context.Context, in checkout.Instruction) {
	o.mu.Lock()
	o.instruction = in
	o.mu.Unlock()

	o.emit(Event{Type: EventInstructionReady, InvoiceID: o.invoice.ID, Instruction: &in})
	o.saveSnapshot(ctx)
	o.startPoller()
}

func (o *Orchestrator) startPoller() {
	o.mu.Lock()
	if o.poller != nil || o.closed || o.paid {
		o.mu.Unlock()
		return
	}
	p := newPoller(o.cfg.PollInterval, o.pollCheck, o.logger)
	o.poller = p
	o.mu.Unlock()

	p.start()
}

// pollCheck is one automatic poller tick. Failures are swallowed: polling
// is best-effort and the next tick retries.
func (o *Orchestrator) pollCheck(ctx context.Context) bool {
	o.mu.Lock()
	settled := o.paid || o.closed
	o.mu.Unlock()
	if settled {
		return true
	}

	paid, err := o.deps.Accounts.InvoicePaid(ctx, o.invoice.ID)
	if err != nil {
		o.logger.Warn().Err(err).Msg("status poll failed, retrying next tick")
		o.countPoll("auto", "error")
		return false
	}
	if !paid {
		o.countPoll("auto", "pending")
		return false
	}
	o.countPoll("auto", "paid")
	o.handlePaid(ctx)
	return true
}

// handlePaid performs the terminal transition and emits the navigation
// event: wallet credited for topups, order paid otherwise.
func (o *Orchestrator) handlePaid(ctx context.Context) {
	o.mu.Lock()
	if o.paid {
		o.mu.Unlock()
		return
	}
	o.paid = true
	now := time.Now()
	o.invoice.PaidAt = &now
	p := o.detachPollerLocked()
	topup := o.invoice.Type == checkout.InvoiceTopup
	var orderNumber string
	if o.order != nil {
		orderNumber = o.order.Number
	}
	o.mu.Unlock()

	// handlePaid may be running inside the poller goroutine itself, so the
	// loop is cancelled without waiting for it to exit.
	if p != nil {
		p.halt()
	}

	if topup {
		o.emit(Event{Type: EventPaidTopup, InvoiceID: o.invoice.ID})
	} else {
		o.emit(Event{Type: EventPaidOrder, InvoiceID: o.invoice.ID, OrderNumber: orderNumber})
	}
	o.logger.Info().Bool("topup", topup).Msg("invoice paid")
	o.saveSnapshot(ctx)
}

func (o *Orchestrator) detachPollerLocked() *poller {
	p := o.poller
	o.poller = nil
	return p
}

func (o *Orchestrator) clearBusy() {
	o.mu.Lock()
	o.busy = false
	o.mu.Unlock()
}

func (o *Orchestrator) classify(err error, installmentTerm int) ClassifiedError {
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		return o.deps.Classifier.Classify(gwErr.Code, gwErr.Message, installmentTerm)
	}
	return o.deps.Classifier.NetworkError()
}

func (o *Orchestrator) classifyWalletErr(err error) ClassifiedError {
	if errors.Is(err, domainErrors.ErrInsufficientFunds) {
		return ClassifiedError{Code: "insufficient_funds", Message: "Your wallet balance is not enough for this invoice."}
	}
	return o.deps.Classifier.NetworkError()
}

func (o *Orchestrator) emit(ev Event) {
	select {
	case o.events <- ev:
	default:
		o.logger.Debug().Str("event", string(ev.Type)).Msg("event dropped, consumer behind")
	}
}

func (o *Orchestrator) saveSnapshot(ctx context.Context) {
	if o.deps.Snapshots == nil {
		return
	}
	if err := o.deps.Snapshots.Save(ctx, o.State()); err != nil {
		o.logger.Warn().Err(err).Msg("session snapshot save failed")
	}
}

func (o *Orchestrator) recordAttempt(ctx context.Context, outcome, errorCode string) {
	if o.deps.Recorder == nil {
		return
	}
	o.mu.Lock()
	a := Attempt{
		InvoiceID: o.invoice.ID,
		Method:    o.selection.Method,
		Bank:      o.selection.Bank,
		Outcome:   outcome,
		ErrorCode: errorCode,
		CreatedAt: time.Now(),
	}
	o.mu.Unlock()
	if err := o.deps.Recorder.Record(ctx, a); err != nil {
		o.logger.Warn().Err(err).Msg("attempt record failed")
	}
}

func (o *Orchestrator) countGeneration(method, outcome string) {
	if o.deps.Metrics == nil {
		return
	}
	o.deps.Metrics.GenerationsTotal.WithLabelValues(method, outcome).Inc()
}

func (o *Orchestrator) countPoll(trigger, result string) {
	if o.deps.Metrics == nil {
		return
	}
	o.deps.Metrics.StatusPollsTotal.WithLabelValues(trigger, result).Inc()
}

func attemptOutcome(err error) string {
	if errors.Is(err, domainErrors.ErrNetworkFailure) {
		return "network_error"
	}
	return "rejected"
}
