package checkout

import (
	"time"
)

// InvoiceType distinguishes wallet top-ups from regular order invoices.
type InvoiceType string

const (
	InvoiceTopup InvoiceType = "topup"
	InvoiceOrder InvoiceType = "order"
)

// Invoice is the billable amount the checkout session drives to a paid
// state. It is owned by the account service; the core only reads it and
// observes the PaidAt transition.
type Invoice struct {
	ID        string
	Amount    int64
	Type      InvoiceType
	CreatedAt time.Time
	PaidAt    *time.Time
}

// IsPaid reports whether the invoice has reached its terminal paid state.
func (i *Invoice) IsPaid() bool {
	return i.PaidAt != nil
}

// ExpiredAt returns the end of the payment window for this invoice.
func (i *Invoice) ExpiredAt(window time.Duration) time.Time {
	return i.CreatedAt.Add(window)
}

// Order carries the routing context for an order invoice. Absent for
// topup invoices. Read-only to the checkout core.
type Order struct {
	Number          string
	ShippingCountry string
	BillingCountry  string
	Items           []LineItem
}

// LineItem is a single purchased item on an order.
type LineItem struct {
	SKU      string
	Name     string
	Quantity int
	Price    int64
}
