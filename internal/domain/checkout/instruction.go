package checkout

import (
	"encoding/json"
	"fmt"
	"time"
)

// InstructionKind discriminates the payment instruction variants.
type InstructionKind string

const (
	InstructionManual      InstructionKind = "manual"
	InstructionVASingle    InstructionKind = "virtual_account_single"
	InstructionVAList      InstructionKind = "virtual_account_list"
	InstructionQR          InstructionKind = "qr"
	InstructionCardIframe  InstructionKind = "card_iframe"
	InstructionCardWaiting InstructionKind = "card_waiting"
	InstructionRedirect    InstructionKind = "external_redirect"
)

// ManualTransfer tells the user which merchant account to transfer to.
type ManualTransfer struct {
	BankTarget string `json:"bank_target"`
	Amount     int64  `json:"amount"`
	Reference  string `json:"reference"`
}

// VirtualAccount is one bank/number pair the user can pay into.
type VirtualAccount struct {
	Bank   string `json:"bank"`
	Number string `json:"number"`
}

// CardIframe points the user at the gateway's hosted card form.
type CardIframe struct {
	FormURL      string `json:"form_url,omitempty"`
	SessionToken string `json:"session_token,omitempty"`
}

// Instruction is the normalized result of generating a payment code. It is
// a tagged union: exactly one variant is populated, selected by kind.
// Construct only through the New*Instruction functions so an instruction
// can never hold an ambiguous shape.
type Instruction struct {
	kind      InstructionKind
	manual    *ManualTransfer
	vaSingle  *VirtualAccount
	vaList    []VirtualAccount
	qrImage   string
	card      *CardIframe
	redirect  string
	expiredAt *time.Time
}

func NewManualInstruction(t ManualTransfer) Instruction {
	return Instruction{kind: InstructionManual, manual: &t}
}

func NewVASingleInstruction(va VirtualAccount) Instruction {
	return Instruction{kind: InstructionVASingle, vaSingle: &va}
}

func NewVAListInstruction(list []VirtualAccount) Instruction {
	return Instruction{kind: InstructionVAList, vaList: list}
}

func NewQRInstruction(image string) Instruction {
	return Instruction{kind: InstructionQR, qrImage: image}
}

func NewCardIframeInstruction(c CardIframe) Instruction {
	return Instruction{kind: InstructionCardIframe, card: &c}
}

// NewCardWaitingInstruction is the legacy fallback: the gateway accepted
// the card but only handed back a redirect to a waiting page.
func NewCardWaitingInstruction(redirectURL string) Instruction {
	return Instruction{kind: InstructionCardWaiting, redirect: redirectURL}
}

func NewRedirectInstruction(url string) Instruction {
	return Instruction{kind: InstructionRedirect, redirect: url}
}

// Kind returns the variant tag. The zero Instruction has an empty kind and
// is treated everywhere as "no active instruction".
func (in Instruction) Kind() InstructionKind { return in.kind }

// IsZero reports whether no instruction is active.
func (in Instruction) IsZero() bool { return in.kind == "" }

// Pollable reports whether the instruction leaves the session waiting on a
// payment that the status poller can observe. Pure redirects hand control
// to the gateway, so there is nothing local to poll.
func (in Instruction) Pollable() bool {
	return !in.IsZero() && in.kind != InstructionRedirect
}

func (in Instruction) Manual() (ManualTransfer, bool) {
	if in.kind != InstructionManual {
		return ManualTransfer{}, false
	}
	return *in.manual, true
}

func (in Instruction) VASingle() (VirtualAccount, bool) {
	if in.kind != InstructionVASingle {
		return VirtualAccount{}, false
	}
	return *in.vaSingle, true
}

func (in Instruction) VAList() ([]VirtualAccount, bool) {
	if in.kind != InstructionVAList {
		return nil, false
	}
	return in.vaList, true
}

func (in Instruction) QRImage() (string, bool) {
	if in.kind != InstructionQR {
		return "", false
	}
	return in.qrImage, true
}

func (in Instruction) CardForm() (CardIframe, bool) {
	if in.kind != InstructionCardIframe {
		return CardIframe{}, false
	}
	return *in.card, true
}

func (in Instruction) RedirectURL() (string, bool) {
	if in.kind != InstructionRedirect && in.kind != InstructionCardWaiting {
		return "", false
	}
	return in.redirect, true
}

// ExpiredAt returns the expiry the gateway attached, if any.
func (in Instruction) ExpiredAt() (time.Time, bool) {
	if in.expiredAt == nil {
		return time.Time{}, false
	}
	return *in.expiredAt, true
}

// WithExpiry returns a copy carrying the gateway-reported expiry.
func (in Instruction) WithExpiry(t time.Time) Instruction {
	in.expiredAt = &t
	return in
}

// instructionJSON is the envelope used for session snapshots.
type instructionJSON struct {
	Kind      InstructionKind  `json:"kind"`
	Manual    *ManualTransfer  `json:"manual,omitempty"`
	VASingle  *VirtualAccount  `json:"va_single,omitempty"`
	VAList    []VirtualAccount `json:"va_list,omitempty"`
	QRImage   string           `json:"qr_image,omitempty"`
	Card      *CardIframe      `json:"card,omitempty"`
	Redirect  string           `json:"redirect,omitempty"`
	ExpiredAt *time.Time       `json:"expired_at,omitempty"`
}

func (in Instruction) MarshalJSON() ([]byte, error) {
	return json.Marshal(instructionJSON{
		Kind:      in.kind,
		Manual:    in.manual,
		VASingle:  in.vaSingle,
		VAList:    in.vaList,
		QRImage:   in.qrImage,
		Card:      in.card,
		Redirect:  in.redirect,
		ExpiredAt: in.expiredAt,
	})
}

func (in *Instruction) UnmarshalJSON(data []byte) error {
	var env instructionJSON
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	switch env.Kind {
	case "", InstructionManual, InstructionVASingle, InstructionVAList,
		InstructionQR, InstructionCardIframe, InstructionCardWaiting, InstructionRedirect:
	default:
		return fmt.Errorf("unknown instruction kind %q", env.Kind)
	}
	in.kind = env.Kind
	in.manual = env.Manual
	in.vaSingle = env.VASingle
	in.vaList = env.VAList
	in.qrImage = env.QRImage
	in.card = env.Card
	in.redirect = env.Redirect
	in.expiredAt = env.ExpiredAt
	return nil
}
