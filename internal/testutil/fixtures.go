package testutil

import (
	"time"

	"github.com/tokoraya/checkout/internal/domain/checkout"
)

func NewTestInvoice(id string, amount int64, invoiceType checkout.InvoiceType) *checkout.Invoice {
	return &checkout.Invoice{
		ID:        id,
		Amount:    amount,
		Type:      invoiceType,
		CreatedAt: time.Now(),
	}
}

func NewPaidInvoice(id string, amount int64, invoiceType checkout.InvoiceType) *checkout.Invoice {
	inv := NewTestInvoice(id, amount, invoiceType)
	paidAt := time.Now()
	inv.PaidAt = &paidAt
	return inv
}

func NewTestOrder(number, shippingCountry, billingCountry string) *checkout.Order {
	return &checkout.Order{
		Number:          number,
		ShippingCountry: shippingCountry,
		BillingCountry:  billingCountry,
		Items: []checkout.LineItem{
			{SKU: "COF-ARB-1KG", Name: "Arabica beans 1kg", Quantity: 2, Price: 95000},
		},
	}
}

func TestMerchantSettings() checkout.MerchantSettings {
	return checkout.MerchantSettings{
		HomeCountry: "ID",
		VABanks: []checkout.BankOption{
			{Code: "bca", Name: "BCA"},
			{Code: "bni", Name: "BNI"},
			{Code: "mandiri", Name: "Mandiri"},
		},
		ManualTransferBanks: []checkout.ManualBankAccount{
			{Bank: "BCA", Number: "2040451998", Holder: "PT Tokoraya Niaga"},
		},
	}
}
