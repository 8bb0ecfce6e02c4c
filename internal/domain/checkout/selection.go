package checkout

// Method identifies a payment rail.
type Method string

const (
	MethodVA     Method = "va"
	MethodCard   Method = "cc"
	MethodQRIS   Method = "qris"
	MethodManual Method = "manual"
	MethodWallet Method = "wallet"
)

// RequiresBank reports whether the method needs a bank sub-option before
// a payment code can be generated.
func (m Method) RequiresBank() bool {
	return m == MethodVA
}

// Valid reports whether m is a known payment method.
func (m Method) Valid() bool {
	switch m {
	case MethodVA, MethodCard, MethodQRIS, MethodManual, MethodWallet:
		return true
	}
	return false
}

// BankOption is a selectable bank for virtual-account payments.
type BankOption struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// PaymentMethodOption is one entry in the ordered method list offered to
// the user. Computed once per invoice load and immutable afterwards.
type PaymentMethodOption struct {
	Method Method       `json:"method"`
	Label  string       `json:"label"`
	Banks  []BankOption `json:"banks,omitempty"`
}

// CardTokenNew selects entry of a fresh card instead of a saved token.
const CardTokenNew = "new"

// Selection holds the user's current checkout choices. Mutated only by
// explicit commands; changing the method resets everything downstream.
type Selection struct {
	Method          Method `json:"method"`
	Bank            string `json:"bank,omitempty"`
	CardToken       string `json:"card_token,omitempty"`
	InstallmentTerm int    `json:"installment_term"`
	SaveCard        bool   `json:"save_card"`
}

// Reset returns a selection holding only the given method, with every
// sub-choice back at its default.
func (s Selection) Reset(m Method) Selection {
	sel := Selection{Method: m}
	if m == MethodCard {
		sel.CardToken = CardTokenNew
	}
	return sel
}

// ReadyToGenerate reports whether the selection satisfies the
// preconditions for generating a payment code.
func (s Selection) ReadyToGenerate() bool {
	if !s.Method.Valid() {
		return false
	}
	if s.Method.RequiresBank() && s.Bank == "" {
		return false
	}
	return true
}
