package service

import (
	"context"

	"github.com/tokoraya/checkout/internal/domain/checkout"
	domainErrors "github.com/tokoraya/checkout/internal/domain/errors"
	"github.com/tokoraya/checkout/internal/gateway"
)

// SubmitCard drives the form-shown -> submitting transition of the direct
// card flow. Client-side validation runs first; a validation failure keeps
// the form shown and never reaches the network. The merchant reference and
// session token captured at the two-step signal are replayed verbatim.
func (o *Orchestrator) SubmitCard(ctx context.Context, form checkout.CardForm) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return domainErrors.ErrSessionClosed
	}
	if o.cardAuth.State != checkout.CardFormShown {
		o.mu.Unlock()
		return domainErrors.ErrCardFlowNotActive
	}
	if o.busy {
		o.mu.Unlock()
		return domainErrors.ErrBusy
	}

	submission, err := form.Validate()
	if err != nil {
		// Local error: the form stays shown and populated for correction.
		o.mu.Unlock()
		return err
	}

	o.cardAuth.State = checkout.CardSubmitting
	o.busy = true
	auth := o.cardAuth
	term := o.selection.InstallmentTerm
	epoch := o.epoch
	o.mu.Unlock()

	defer o.clearBusy()

	result, err := o.deps.Gateway.SubmitCard(ctx, gateway.SubmitRequest{
		MerchantRef:  auth.MerchantRef,
		SessionToken: auth.SessionToken,
		CardNumber:   submission.Number,
		ExpiryMonth:  submission.ExpiryMonth,
		ExpiryYear:   submission.ExpiryYear,
		CVV:          submission.CVV,
	})

	o.mu.Lock()
	stale := o.epoch != epoch || o.closed
	o.mu.Unlock()
	if stale {
		o.logger.Debug().Msg("discarding stale card submission result")
		return nil
	}

	if err != nil {
		return o.rejectCard(ctx, err, term)
	}

	switch {
	case result.TwoStepCard:
		// The gateway signalled the flow we are already in; nothing usable
		// came back, so surface it as a rejection.
		return o.rejectCard(ctx, domainErrors.ErrUnrecognizedResponse, term)

	case result.Instruction.Kind() == checkout.InstructionRedirect:
		// Step-up authentication: control passes to the issuing bank.
		url, _ := result.Instruction.RedirectURL()
		o.mu.Lock()
		o.cardAuth.State = checkout.CardRedirectRequired
		o.instruction = result.Instruction
		o.mu.Unlock()
		o.emit(Event{Type: EventRedirect, InvoiceID: o.invoice.ID, RedirectURL: url})
		o.recordAttempt(ctx, "redirect", "")
		o.countGeneration(string(checkout.MethodCard), "redirect")
		o.saveSnapshot(ctx)
		return nil

	default:
		// No step-up required: the instruction is live and polling starts.
		o.mu.Lock()
		o.cardAuth.State = checkout.CardInstructionReady
		o.mu.Unlock()
		o.activateInstruction(ctx, result.Instruction)
		o.recordAttempt(ctx, "instruction", "")
		o.countGeneration(string(checkout.MethodCard), "instruction")
		return nil
	}
}

// rejectCard returns the sub-machine to form-shown with a classified
// error; the form stays populated for correction.
func (o *Orchestrator) rejectCard(ctx context.Context, err error, installmentTerm int) error {
	classified := o.classify(err, installmentTerm)

	o.mu.Lock()
	o.cardAuth.State = checkout.CardFormShown
	o.lastErr = &classified
	o.mu.Unlock()

	o.emit(Event{Type: EventPaymentFailed, InvoiceID: o.invoice.ID, Error: &classified})
	o.recordAttempt(ctx, attemptOutcome(err), classified.Code)
	o.countGeneration(string(checkout.MethodCard), attemptOutcome(err))
	o.saveSnapshot(ctx)
	return err
}
