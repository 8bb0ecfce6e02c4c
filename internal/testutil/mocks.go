package testutil

import (
	"context"
	"sync"

	"github.com/tokoraya/checkout/internal/domain/checkout"
	domainErrors "github.com/tokoraya/checkout/internal/domain/errors"
	"github.com/tokoraya/checkout/internal/gateway"
	"github.com/tokoraya/checkout/internal/service"
)

// --- Account Service Mock ---

// MockAccountService is a mock implementation of service.AccountService.
type MockAccountService struct {
	mu      sync.Mutex
	Invoice *checkout.Invoice
	Order   *checkout.Order
	Balance int64
	Paid    bool
	debits  int

	GetInvoiceFunc    func(ctx context.Context, invoiceID string) (*checkout.Invoice, error)
	GetOrderFunc      func(ctx context.Context, invoiceID string) (*checkout.Order, error)
	WalletBalanceFunc func(ctx context.Context, customerID string) (int64, error)
	DebitWalletFunc   func(ctx context.Context, customerID, invoiceID string, amount int64) error
	InvoicePaidFunc   func(ctx context.Context, invoiceID string) (bool, error)
}

func NewMockAccountService(inv *checkout.Invoice, ord *checkout.Order) *MockAccountService {
	return &MockAccountService{Invoice: inv, Order: ord}
}

func (m *MockAccountService) GetInvoice(ctx context.Context, invoiceID string) (*checkout.Invoice, error) {
	if m.GetInvoiceFunc != nil {
		return m.GetInvoiceFunc(ctx, invoiceID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Invoice == nil {
		return nil, domainErrors.ErrInvoiceNotFound
	}
	inv := *m.Invoice
	return &inv, nil
}

func (m *MockAccountService) GetOrder(ctx context.Context, invoiceID string) (*checkout.Order, error) {
	if m.GetOrderFunc != nil {
		return m.GetOrderFunc(ctx, invoiceID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Order == nil {
		return nil, nil
	}
	ord := *m.Order
	return &ord, nil
}

func (m *MockAccountService) WalletBalance(ctx context.Context, customerID string) (int64, error) {
	if m.WalletBalanceFunc != nil {
		return m.WalletBalanceFunc(ctx, customerID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Balance, nil
}

func (m *MockAccountService) DebitWallet(ctx context.Context, customerID, invoiceID string, amount int64) error {
	if m.DebitWalletFunc != nil {
		return m.DebitWalletFunc(ctx, customerID, invoiceID, amount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Balance < amount {
		return domainErrors.ErrInsufficientFunds
	}
	m.Balance -= amount
	m.Paid = true
	m.debits++
	return nil
}

func (m *MockAccountService) InvoicePaid(ctx context.Context, invoiceID string) (bool, error) {
	if m.InvoicePaidFunc != nil {
		return m.InvoicePaidFunc(ctx, invoiceID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Paid, nil
}

// SetPaid flips the paid flag, simulating an out-of-band settlement.
func (m *MockAccountService) SetPaid(paid bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Paid = paid
}

// Debits reports how many wallet debits went through.
func (m *MockAccountService) Debits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.debits
}

// --- Gateway Mock ---

// MockGateway is a mock implementation of the gateway adapter.
type MockGateway struct {
	mu          sync.Mutex
	generates   int
	submissions int

	GenerateCodeFunc func(ctx context.Context, req gateway.GenerateRequest) (*gateway.NormalizedResult, error)
	SubmitCardFunc   func(ctx context.Context, req gateway.SubmitRequest) (*gateway.NormalizedResult, error)
}

func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

func (m *MockGateway) GenerateCode(ctx context.Context, req gateway.GenerateRequest) (*gateway.NormalizedResult, error) {
	m.mu.Lock()
	m.generates++
	m.mu.Unlock()
	if m.GenerateCodeFunc != nil {
		return m.GenerateCodeFunc(ctx, req)
	}
	in := checkout.NewVASingleInstruction(checkout.VirtualAccount{Bank: req.Bank, Number: "88081234567890"})
	return &gateway.NormalizedResult{Instruction: in}, nil
}

func (m *MockGateway) SubmitCard(ctx context.Context, req gateway.SubmitRequest) (*gateway.NormalizedResult, error) {
	m.mu.Lock()
	m.submissions++
	m.mu.Unlock()
	if m.SubmitCardFunc != nil {
		return m.SubmitCardFunc(ctx, req)
	}
	in := checkout.NewRedirectInstruction("https://gateway.test/3ds")
	return &gateway.NormalizedResult{Instruction: in}, nil
}

func (m *MockGateway) Generates() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generates
}

func (m *MockGateway) Submissions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submissions
}

// --- Attempt Recorder Mock ---

// MockRecorder collects recorded attempts in memory.
type MockRecorder struct {
	mu       sync.Mutex
	attempts []service.Attempt

	RecordFunc func(ctx context.Context, a service.Attempt) error
}

func NewMockRecorder() *MockRecorder {
	return &MockRecorder{}
}

func (m *MockRecorder) Record(ctx context.Context, a service.Attempt) error {
	if m.RecordFunc != nil {
		return m.RecordFunc(ctx, a)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, a)
	return nil
}

func (m *MockRecorder) Attempts() []service.Attempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]service.Attempt, len(m.attempts))
	copy(out, m.attempts)
	return out
}

// --- Snapshot Store Mock ---

// MockSnapshotStore keeps session snapshots in a map.
type MockSnapshotStore struct {
	mu        sync.Mutex
	snapshots map[string]service.Snapshot

	SaveFunc   func(ctx context.Context, snap service.Snapshot) error
	LoadFunc   func(ctx context.Context, invoiceID string) (*service.Snapshot, error)
	DeleteFunc func(ctx context.Context, invoiceID string) error
}

func NewMockSnapshotStore() *MockSnapshotStore {
	return &MockSnapshotStore{snapshots: make(map[string]service.Snapshot)}
}

func (m *MockSnapshotStore) Save(ctx context.Context, snap service.Snapshot) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, snap)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[snap.InvoiceID] = snap
	return nil
}

func (m *MockSnapshotStore) Load(ctx context.Context, invoiceID string) (*service.Snapshot, error) {
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx, invoiceID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snapshots[invoiceID]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (m *MockSnapshotStore) Delete(ctx context.Context, invoiceID string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, invoiceID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snapshots, invoiceID)
	return nil
}
