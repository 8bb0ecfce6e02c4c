package gateway

import (
	"time"

	"github.com/tokoraya/checkout/internal/domain/checkout"
	domainErrors "github.com/tokoraya/checkout/internal/domain/errors"
)

// NormalizedResult is what the orchestrator consumes. Either the two-step
// card signal fired (TwoStepCard with the credentials to replay later), or
// Instruction holds a usable payment instruction.
type NormalizedResult struct {
	TwoStepCard  bool
	MerchantRef  string
	SessionToken string
	Instruction  checkout.Instruction
}

// Normalize sorts the gateway's heterogeneous response into exactly one
// variant. The order of checks is load-bearing: a response carrying both a
// redirect URL and an instruction field (VA number, VA list, QR, card form,
// session token) must resolve to the instruction, never to a pure redirect.
// Pure redirect is the residual case when all five are absent.
func Normalize(resp *GenerateResponse) (*NormalizedResult, error) {
	if resp.CCDirect {
		ref := resp.merchantRef()
		if ref == "" || resp.SessionToken == "" {
			return nil, domainErrors.NewDomainError(
				"bad_cc_direct",
				"two-step card signal missing reference or session token",
				domainErrors.ErrUnrecognizedResponse,
			)
		}
		return &NormalizedResult{TwoStepCard: true, MerchantRef: ref, SessionToken: resp.SessionToken}, nil
	}

	if in, ok := normalizeInstruction(resp); ok {
		return &NormalizedResult{Instruction: withExpiry(in, resp.ExpiredAt)}, nil
	}

	if resp.RedirectURL != "" {
		return &NormalizedResult{Instruction: withExpiry(checkout.NewRedirectInstruction(resp.RedirectURL), resp.ExpiredAt)}, nil
	}

	return nil, domainErrors.ErrUnrecognizedResponse
}

func normalizeInstruction(resp *GenerateResponse) (checkout.Instruction, bool) {
	switch {
	case resp.VANumber != "":
		return checkout.NewVASingleInstruction(checkout.VirtualAccount{
			Bank:   resp.VABank,
			Number: resp.VANumber,
		}), true
	case len(resp.VAList) > 0:
		list := make([]checkout.VirtualAccount, 0, len(resp.VAList))
		for _, item := range resp.VAList {
			list = append(list, checkout.VirtualAccount{Bank: item.Bank, Number: item.VA})
		}
		return checkout.NewVAListInstruction(list), true
	case resp.QRCode != "":
		return checkout.NewQRInstruction(resp.QRCode), true
	case resp.CCFormURL != "" || resp.SessionToken != "":
		return checkout.NewCardIframeInstruction(checkout.CardIframe{
			FormURL:      resp.CCFormURL,
			SessionToken: resp.SessionToken,
		}), true
	case resp.WaitingCC && resp.RedirectURL != "":
		return checkout.NewCardWaitingInstruction(resp.RedirectURL), true
	}
	return checkout.Instruction{}, false
}

func withExpiry(in checkout.Instruction, expiredAt string) checkout.Instruction {
	if expiredAt == "" {
		return in
	}
	t, err := time.Parse(time.RFC3339, expiredAt)
	if err != nil {
		return in
	}
	return in.WithExpiry(t)
}
