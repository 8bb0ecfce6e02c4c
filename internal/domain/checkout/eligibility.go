package checkout

import "strings"

// MerchantSettings is the slice of merchant configuration the resolver and
// the manual-transfer instruction need. Loaded from config, not fetched.
type MerchantSettings struct {
	HomeCountry         string
	ManualTransferBanks []ManualBankAccount
	VABanks             []BankOption
}

// ManualBankAccount is a merchant-owned account for manual transfers.
type ManualBankAccount struct {
	Bank   string
	Number string
	Holder string
}

// ManualTransferEnabled reports whether the merchant accepts manual bank
// transfers at all.
func (m MerchantSettings) ManualTransferEnabled() bool {
	return len(m.ManualTransferBanks) > 0
}

// ResolveMethods computes the ordered list of payment methods offered for
// an invoice. Pure function of its inputs: no clock, no network.
//
// International shoppers (shipping country set and not the home country,
// falling back to billing country when shipping is absent) get cards only.
// Domestic shoppers start from {va, cc, qris}; manual transfer is appended
// when the merchant enables it, and the wallet is prepended unless the
// invoice is itself a wallet top-up.
func ResolveMethods(inv *Invoice, ord *Order, settings MerchantSettings) []PaymentMethodOption {
	if isInternational(ord, settings.HomeCountry) {
		return []PaymentMethodOption{cardOption()}
	}

	methods := []PaymentMethodOption{
		{Method: MethodVA, Label: "Virtual Account", Banks: settings.VABanks},
		cardOption(),
		{Method: MethodQRIS, Label: "QRIS"},
	}
	if settings.ManualTransferEnabled() {
		methods = append(methods, PaymentMethodOption{Method: MethodManual, Label: "Bank Transfer"})
	}
	if inv.Type != InvoiceTopup {
		methods = append([]PaymentMethodOption{{Method: MethodWallet, Label: "Wallet"}}, methods...)
	}
	return methods
}

func cardOption() PaymentMethodOption {
	return PaymentMethodOption{Method: MethodCard, Label: "Credit Card"}
}

// isInternational decides locale from the shipping country, falling back to
// billing when shipping is absent. Unknown or empty is treated as domestic.
func isInternational(ord *Order, homeCountry string) bool {
	if ord == nil {
		return false
	}
	country := ord.ShippingCountry
	if country == "" {
		country = ord.BillingCountry
	}
	if country == "" {
		return false
	}
	return !strings.EqualFold(country, homeCountry)
}

// Offered reports whether the method appears in the resolved list.
func Offered(options []PaymentMethodOption, m Method) bool {
	for _, o := range options {
		if o.Method == m {
			return true
		}
	}
	return false
}

// BankOffered reports whether the bank code is a sub-option of the method.
func BankOffered(options []PaymentMethodOption, m Method, bank string) bool {
	for _, o := range options {
		if o.Method != m {
			continue
		}
		for _, b := range o.Banks {
			if b.Code == bank {
				return true
			}
		}
	}
	return false
}
