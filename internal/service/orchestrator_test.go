package service_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tokoraya/checkout/internal/domain/checkout"
	domainErrors "github.com/tokoraya/checkout/internal/domain/errors"
	"github.com/tokoraya/checkout/internal/gateway"
	"github.com/tokoraya/checkout/internal/service"
	"github.com/tokoraya/checkout/internal/testutil"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Test Helpers ---

type orchestratorEnv struct {
	orch      *service.Orchestrator
	accounts  *testutil.MockAccountService
	gateway   *testutil.MockGateway
	recorder  *testutil.MockRecorder
	snapshots *testutil.MockSnapshotStore
}

func testConfig() service.Config {
	return service.Config{
		PollInterval:  time.Hour, // keep automatic ticks out of test timing
		InvoiceWindow: 24 * time.Hour,
		Merchant:      testutil.TestMerchantSettings(),
	}
}

func setupOrchestrator(t *testing.T, inv *checkout.Invoice, ord *checkout.Order, balance int64) *orchestratorEnv {
	t.Helper()

	accounts := testutil.NewMockAccountService(inv, ord)
	accounts.Balance = balance
	gw := testutil.NewMockGateway()
	recorder := testutil.NewMockRecorder()
	snapshots := testutil.NewMockSnapshotStore()

	orch, err := service.NewOrchestrator(context.Background(), inv.ID, "cust-1", testConfig(), service.Deps{
		Gateway:    gw,
		Accounts:   accounts,
		Classifier: service.NewClassifier(500000),
		Recorder:   recorder,
		Snapshots:  snapshots,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { orch.Close(context.Background()) })

	return &orchestratorEnv{orch: orch, accounts: accounts, gateway: gw, recorder: recorder, snapshots: snapshots}
}

// drainEvents collects everything currently buffered on the event stream.
func drainEvents(orch *service.Orchestrator) []service.Event {
	var out []service.Event
	for {
		select {
		case ev := <-orch.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func eventTypes(events []service.Event) []service.EventType {
	types := make([]service.EventType, 0, len(events))
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	return types
}

func selectVA(t *testing.T, orch *service.Orchestrator, bank string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, orch.SelectMethod(ctx, checkout.MethodVA))
	require.NoError(t, orch.SelectBank(ctx, bank))
}

// --- Session Open Tests ---

func TestNewOrchestrator_ResolvesMethodsOnce(t *testing.T) {
	inv := testutil.NewTestInvoice("inv-1", 200000, checkout.InvoiceOrder)
	env := setupOrchestrator(t, inv, testutil.NewTestOrder("ORD-100", "ID", "ID"), 0)

	snap := env.orch.State()
	require.NotEmpty(t, snap.Methods)
	assert.Equal(t, checkout.MethodWallet, snap.Methods[0].Method)
	assert.False(t, snap.Paid)
}

func TestNewOrchestrator_InvoiceNotFound(t *testing.T) {
	accounts := testutil.NewMockAccountService(nil, nil)

	_, err := service.NewOrchestrator(context.Background(), "missing", "cust-1", testConfig(), service.Deps{
		Gateway:    testutil.NewMockGateway(),
		Accounts:   accounts,
		Classifier: service.NewClassifier(500000),
		Logger:     zerolog.Nop(),
	})
	assert.True(t, errors.Is(err, domainErrors.ErrInvoiceNotFound))
}

func TestNewOrchestrator_BalanceLookupFailureDoesNotBlock(t *testing.T) {
	inv := testutil.NewTestInvoice("inv-1", 200000, checkout.InvoiceOrder)
	accounts := testutil.NewMockAccountService(inv, nil)
	accounts.WalletBalanceFunc = func(ctx context.Context, customerID string) (int64, error) {
		return 0, errors.New("account service down")
	}

	orch, err := service.NewOrchestrator(context.Background(), inv.ID, "cust-1", testConfig(), service.Deps{
		Gateway:    testutil.NewMockGateway(),
		Accounts:   accounts,
		Classifier: service.NewClassifier(500000),
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	orch.Close(context.Background())
}

// --- Selection Tests ---

func TestSelectMethod_NotOffered(t *testing.T) {
	inv := testutil.NewTestInvoice("inv-1", 200000, checkout.InvoiceTopup)
	env := setupOrchestrator(t, inv, nil, 0)

	// Topup invoices never offer the wallet.
	err := env.orch.SelectMethod(context.Background(), checkout.MethodWallet)
	assert.True(t, errors.Is(err, domainErrors.ErrMethodNotOffered))
}

func TestSelectMethod_ClearsDownstreamState(t *testing.T) {
	inv := testutil.NewTestInvoice("inv-1", 200000, checkout.InvoiceOrder)
	env := setupOrchestrator(t, inv, testutil.NewTestOrder("ORD-100", "ID", "ID"), 0)
	ctx := context.Background()

	selectVA(t, env.orch, "bca")
	require.NoError(t, env.orch.Generate(ctx))
	require.False(t, env.orch.State().Instruction.IsZero())

	// Reselecting, even the same method, discards the active instruction.
	require.NoError(t, env.orch.SelectMethod(ctx, checkout.MethodVA))

	snap := env.orch.State()
	assert.True(t, snap.Instruction.IsZero())
	assert.Empty(t, snap.Selection.Bank)
	assert.Nil(t, snap.LastError)
}

func TestSelectMethod_Idempotent(t *testing.T) {
	inv := testutil.NewTestInvoice("inv-1", 200000, checkout.InvoiceOrder)
	env := setupOrchestrator(t, inv, nil, 0)
	ctx := context.Background()

	require.NoError(t, env.orch.SelectMethod(ctx, checkout.MethodVA))
	once := env.orch.State()

	require.NoError(t, env.orch.SelectMethod(ctx, checkout.MethodVA))
	assert.Equal(t, once, env.orch.State())
}

func TestSelectBank_RequiresVAMethod(t *testing.T) {
	inv := testutil.NewTestInvoice("inv-1", 200000, checkout.InvoiceOrder)
	env := setupOrchestrator(t, inv, nil, 0)
	ctx := context.Background()

	require.NoError(t, env.orch.SelectMethod(ctx, checkout.MethodQRIS))
	err := env.orch.SelectBank(ctx, "bca")
	assert.True(t, errors.Is(err, domainErrors.ErrBankNotSupported))
}

func TestSelectBank_UnknownBank(t *testing.T) {
	inv := testutil.NewTestInvoice("inv-1", 200000, checkout.InvoiceOrder)
	env := setupOrchestrator(t, inv, nil, 0)
	ctx := context.Background()

	require.NoError(t, env.orch.SelectMethod(ctx, checkout.MethodVA))
	err := env.orch.SelectBank(ctx, "permata")

	var validationErr *domainErrors.ValidationError
	assert.True(t, errors.As(err, &validationErr))
}

func TestSelectCard_DefaultsToNewToken(t *testing.T) {
	inv := testutil.NewTestInvoice("inv-1", 200000, checkout.InvoiceOrder)
	env := setupOrchestrator(t, inv, nil, 0)
	ctx := context.Background()

	require.NoError(t, env.orch.SelectMethod(ctx, checkout.MethodCard))
	require.NoError(t, env.orch.SelectCard(ctx, "", 0, true))

	snap := env.orch.State()
	assert.Equal(t, checkout.CardTokenNew, snap.Selection.CardToken)
	assert.True(t, snap.Selection.SaveCard)
}

func TestSelectCard_SavedTokenNeverSaved(t *testing.T) {
	inv := testutil.NewTestInvoice("inv-1", 200000, checkout.InvoiceOrder)
	env := setupOrchestrator(t, inv, nil, 0)
	ctx := context.Background()

	require.NoError(t, env.orch.SelectMethod(ctx, checkout.MethodCard))
	require.NoError(t, env.orch.SelectCard(ctx, "tok-saved", 3, true))

	assert.False(t, env.orch.State().Selection.SaveCard)
}

func TestSelectCard_RequiresCardMethod(t *testing.T) {
	inv := testutil.NewTestInvoice("inv-1", 200000, checkout.InvoiceOrder)
	env := setupOrchestrator(t, inv, nil, 0)
	ctx := context.Background()

	require.NoError(t, env.orch.SelectMethod(ctx, checkout.MethodVA))
	err := env.orch.SelectCard(ctx, "", 0, false)
	assert.True(t, errors.Is(err, domainErrors.ErrCardOptionsNotApplicable))
}

func TestSelectCard_RejectsBadInstallmentTerm(t *testing.T) {
	inv := testutil.NewTestInvoice("inv-1", 200000, checkout.InvoiceOrder)
	env := setupOrchestrator(t, inv, nil, 0)
	ctx := context.Background()

	require.NoError(t, env.orch.SelectMethod(ctx, checkout.MethodCard))
	err := env.orch.SelectCard(ctx, "", 9, false)
	assert.Error(t, err)
}

// --- Generate Tests ---

func TestGenerate_RequiresMethod(t *testing.T) {
	inv := testutil.NewTestInvoice("inv-1", 200000, checkout.InvoiceOrder)
	env := setupOrchestrator(t, inv, nil, 0)

	err := env.orch.Generate(context.Background())
	assert.True(t, errors.Is(err, domainErrors.ErrNoMethodSelected))
}

func TestGenerate_VARequiresBank(t *testing.T) {
	inv := testutil.NewTestInvoice("inv-1", 200000, checkout.InvoiceOrder)
	env := setupOrchestrator(t, inv, nil, 0)
	ctx := context.Background()

	require.NoError(t, env.orch.SelectMethod(ctx, checkout.MethodVA))
	err := env.orch.Generate(ctx)
	assert.True(t, errors.Is(err, domainErrors.ErrBankRequired))
}

func TestGenerate_ExpiredInvoice(t *testing.T) {
	inv := testutil.NewTestInvoice("inv-1", 200000, checkout.InvoiceOrder)
	inv.CreatedAt = time.Now().Add(-25 * time.Hour)
	env := setupOrchestrator(t, inv, nil, 0)

	selectVA(t, env.orch, "bca")
	err := env.orch.Generate(context.Background())
	assert.True(t, errors.Is(err, domainErrors.ErrInvoiceExpired))
}

func TestGenerate_PaidInvoice(t *testing.T) {
	inv := testutil.NewPaidInvoice("inv-1", 200000, checkout.InvoiceOrder)
	env := setupOrchestrator(t, inv, nil, 0)

	err := env.orch.Generate(context.Background())
	assert.True(t, errors.Is(err, domainErrors.ErrInvoicePaid))
}

func TestGenerate_VAInstruction(t *testing.T) {
	inv := testutil.NewTestInvoice("inv-1", 200000, checkout.InvoiceOrder)
	env := setupOrchestrator(t, inv, testutil.NewTestOrder("ORD-100", "ID", "ID"), 0)
	ctx := context.Background()

	selectVA(t, env.orch, "bca")
	require.NoError(t, env.orch.Generate(ctx))

	snap := env.orch.State()
	va, ok := snap.Instruction.VASingle()
	require.True(t, ok)
	assert.Equal(t, "88081234567890", va.Number)
	assert.Equal(t, "bca", va.Bank)

	types := eventTypes(drainEvents(env.orch))
	assert.Contains(t, types, service.EventInstructionReady)

	attempts := env.recorder.Attempts()
	require.Len(t, attempts, 1)
	assert.Equal(t, "instruction", attempts[0].Outcome)
	assert.Equal(t, checkout.MethodVA, attempts[0].Method)
}

func TestGenerate_BusySuppressesSecondCall(t *testing.T) {
	inv := testutil.NewTestInvoice("inv-1", 200000, checkout.InvoiceOrder)
	env := setupOrchestrator(t, inv, nil, 0)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	env.gateway.GenerateCodeFunc = func(ctx context.Context, req gateway.GenerateRequest) (*gateway.NormalizedResult, error) {
		close(started)
		<-release
		in := checkout.NewVASingleInstruction(checkout.VirtualAccount{Bank: req.Bank, Number: "123"})
		return &gateway.NormalizedResult{Instruction: in}, nil
	}

	selectVA(t, env.orch, "bca")

	firstDone := make(chan error, 1)
	go func() { firstDone <- env.orch.Generate(ctx) }()
	<-started

	err := env.orch.Generate(ctx)
	assert.True(t, errors.Is(err, domainErrors.ErrBusy))

	close(release)
	require.NoError(t, <-firstDone)
	assert.Equal(t, 1, env.gateway.Generates())
}

func TestGenerate_StaleResultDiscardedAfterReselect(t *testing.T) {
	inv := testutil.NewTestInvoice("inv-1", 200000, checkout.InvoiceOrder)
	env := setupOrchestrator(t, inv, nil, 0)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	env.gateway.GenerateCodeFunc = func(ctx context.Context, req gateway.GenerateRequest) (*gateway.NormalizedResult, error) {
		close(started)
		<-release
		in := checkout.NewVASingleInstruction(checkout.VirtualAccount{Bank: "bca", Number: "stale"})
		return &gateway.NormalizedResult{Instruction: in}, nil
	}

	selectVA(t, env.orch, "bca")

	done := make(chan error, 1)
	go func() { done <- env.orch.Generate(ctx) }()
	<-started

	// User switches method while the call is in flight.
	require.NoError(t, env.orch.SelectMethod(ctx, checkout.MethodQRIS))
	close(release)
	require.NoError(t, <-done)

	snap := env.orch.State()
	assert.True(t, snap.Instruction.IsZero(), "stale result must be discarded")
	assert.Equal(t, checkout.MethodQRIS, snap.Selection.Method)
}

func TestGenerate_GatewayRejection(t *testing.T) {
	inv := testutil.NewTestInvoice("inv-1", 200000, checkout.InvoiceOrder)
	env := setupOrchestrator(t, inv, nil, 0)
	ctx := context.Background()

	env.gateway.GenerateCodeFunc = func(ctx context.Context, req gateway.GenerateRequest) (*gateway.NormalizedResult, error) {
		return nil, &gateway.Error{Code: "do_not_honor", Message: "DO NOT HONOR"}
	}

	selectVA(t, env.orch, "bca")
	err := env.orch.Generate(ctx)
	require.Error(t, err)

	snap := env.orch.State()
	require.NotNil(t, snap.LastError)
	assert.Equal(t, "do_not_honor", snap.LastError.Code)
	assert.True(t, snap.Instruction.IsZero())

	types := eventTypes(drainEvents(env.orch))
	assert.Contains(t, types, service.EventPaymentFailed)

	attempts := env.recorder.Attempts()
	require.Len(t, attempts, 1)
	assert.Equal(t, "rejected", attempts[0].Outcome)
}

func TestGenerate_NetworkFailure(t *testing.T) {
	inv := testutil.NewTestInvoice("inv-1", 200000, checkout.InvoiceOrder)
	env := setupOrchestrator(t, inv, nil, 0)

	env.gateway.GenerateCodeFunc = func(ctx context.Context, req gateway.GenerateRequest) (*gateway.NormalizedResult, error) {
		return nil, domainErrors.ErrNetworkFailure
	}

	selectVA(t, env.orch, "bca")
	err := env.orch.Generate(context.Background())
	require.Error(t, err)

	snap := env.orch.State()
	require.NotNil(t, snap.LastError)
	assert.Equal(t, "network_failure", snap.LastError.Code)

	attempts := env.recorder.Attempts()
	require.Len(t, attempts, 1)
	assert.Equal(t, "network_error", attempts[0].Outcome)
}

func TestGenerate_RedirectDoesNotStartPolling(t *testing.T) {
	inv := testutil.NewTestInvoice("inv-1", 200000, checkout.InvoiceOrder)
	env := setupOrchestrator(t, inv, nil, 0)
	ctx := context.Background()

	env.gateway.GenerateCodeFunc = func(ctx context.Context, req gateway.GenerateRequest) (*gateway.NormalizedResult, error) {
		return &gateway.NormalizedResult{Instruction: checkout.NewRedirectInstruction("https://gw.test/pay")}, nil
	}

	require.NoError(t, env.orch.SelectMethod(ctx, checkout.MethodQRIS))
	require.NoError(t, env.orch.Generate(ctx))

	types := eventTypes(drainEvents(env.orch))
	assert.Contains(t, types, service.EventRedirect)
	assert.NotContains(t, types, service.EventInstructionReady)

	// Nothing local to poll: manual checks are rejected too.
	_, err := env.orch.CheckStatus(ctx)
	assert.True(t, errors.Is(err, domainErrors.ErrNoActiveInstruction))
}

func TestGenerate_ManualTransferIsLocal(t *testing.T) {
	inv := testutil.NewTestInvoice("inv-1", 150000, checkout.InvoiceOrder)
	env := setupOrchestrator(t, inv, nil, 0)
	ctx := context.Background()

	require.NoError(t, env.orch.SelectMethod(ctx, checkout.MethodManual))
	require.NoError(t, env.orch.Generate(ctx))

	snap := env.orch.State()
	m, ok := snap.Instruction.Manual()
	require.True(t, ok)
	assert.Contains(t, m.BankTarget, "2040451998")
	assert.Equal(t, int64(150000), m.Amount)
	assert.Equal(t, "inv-1", m.Reference)
	assert.Equal(t, 0, env.gateway.Generates(), "manual transfer never calls the gateway")
}

// --- Wallet Tests ---

func TestGenerate_WalletInsufficientFundsIsLocal(t *testing.T) {
	inv := testutil.NewTestInvoice("inv-1", 200000, checkout.InvoiceOrder)
	env := setupOrchestrator(t, inv, testutil.NewTestOrder("ORD-100", "ID", "ID"), 100000)
	ctx := context.Background()

	require.NoError(t, env.orch.SelectMethod(ctx, checkout.MethodWallet))
	err := env.orch.Generate(ctx)

	assert.True(t, errors.Is(err, domainErrors.ErrInsufficientFunds))
	assert.Equal(t, 0, env.gateway.Generates())
	assert.Equal(t, 0, env.accounts.Debits())
	assert.False(t, env.orch.State().AwaitingWalletConfirm)
}

func TestWallet_ConfirmationGate(t *testing.T) {
	inv := testutil.NewTestInvoice("inv-1", 200000, checkout.InvoiceOrder)
	env := setupOrchestrator(t, inv, testutil.NewTestOrder("ORD-100", "ID", "ID"), 500000)
	ctx := context.Background()

	require.NoError(t, env.orch.SelectMethod(ctx, checkout.MethodWallet))
	require.NoError(t, env.orch.Generate(ctx))

	snap := env.orch.State()
	assert.True(t, snap.AwaitingWalletConfirm)
	assert.Equal(t, 0, env.accounts.Debits(), "no debit before explicit confirmation")

	types := eventTypes(drainEvents(env.orch))
	assert.Contains(t, types, service.EventWalletConfirmNeeded)

	require.NoError(t, env.orch.ConfirmWalletDebit(ctx))
	assert.Equal(t, 1, env.accounts.Debits())

	snap = env.orch.State()
	assert.True(t, snap.Paid)
	assert.False(t, snap.AwaitingWalletConfirm)

	types = eventTypes(drainEvents(env.orch))
	assert.Contains(t, types, service.EventPaidOrder)
}

func TestConfirmWalletDebit_WithoutPendingConfirmation(t *testing.T) {
	inv := testutil.NewTestInvoice("inv-1", 200000, checkout.InvoiceOrder)
	env := setupOrchestrator(t, inv, nil, 500000)

	err := env.orch.ConfirmWalletDebit(context.Background())
	assert.True(t, errors.Is(err, domainErrors.ErrWalletConfirmNotPending))
}

func TestConfirmWalletDebit_FailureKeepsConfirmationPending(t *testing.T) {
	inv := testutil.NewTestInvoice("inv-1", 200000, checkout.InvoiceOrder)
	env := setupOrchestrator(t, inv, nil, 500000)
	ctx := context.Background()

	env.accounts.DebitWalletFunc = func(ctx context.Context, customerID, invoiceID string, amount int64) error {
		return domainErrors.ErrInsufficientFunds
	}

	require.NoError(t, env.orch.SelectMethod(ctx, checkout.MethodWallet))
	require.NoError(t, env.orch.Generate(ctx))

	err := env.orch.ConfirmWalletDebit(ctx)
	require.Error(t, err)

	snap := env.orch.State()
	assert.True(t, snap.AwaitingWalletConfirm, "user may retry the confirmation")
	require.NotNil(t, snap.LastError)
	assert.Equal(t, "insufficient_funds", snap.LastError.Code)
}

// --- Status Tests ---

func TestCheckStatus_PendingThenPaid(t *testing.T) {
	inv := testutil.NewTestInvoice("inv-1", 200000, checkout.InvoiceOrder)
	env := setupOrchestrator(t, inv, testutil.NewTestOrder("ORD-100", "ID", "ID"), 0)
	ctx := context.Background()

	selectVA(t, env.orch, "bca")
	require.NoError(t, env.orch.Generate(ctx))
	drainEvents(env.orch)

	result, err := env.orch.CheckStatus(ctx)
	require.NoError(t, err)
	assert.True(t, result.Pending)
	assert.False(t, result.Paid)

	types := eventTypes(drainEvents(env.orch))
	assert.Contains(t, types, service.EventStillPending)

	env.accounts.SetPaid(true)

	result, err = env.orch.CheckStatus(ctx)
	require.NoError(t, err)
	assert.True(t, result.Paid)

	events := drainEvents(env.orch)
	require.Len(t, events, 1)
	assert.Equal(t, service.EventPaidOrder, events[0].Type)
	assert.Equal(t, "ORD-100", events[0].OrderNumber)
}

func TestCheckStatus_TopupEmitsTopupEvent(t *testing.T) {
	inv := testutil.NewTestInvoice("inv-1", 50000, checkout.InvoiceTopup)
	env := setupOrchestrator(t, inv, nil, 0)
	ctx := context.Background()

	selectVA(t, env.orch, "bca")
	require.NoError(t, env.orch.Generate(ctx))
	drainEvents(env.orch)

	env.accounts.SetPaid(true)
	result, err := env.orch.CheckStatus(ctx)
	require.NoError(t, err)
	require.True(t, result.Paid)

	types := eventTypes(drainEvents(env.orch))
	assert.Contains(t, types, service.EventPaidTopup)
}

func TestCheckStatus_TransportFailureReportsPending(t *testing.T) {
	inv := testutil.NewTestInvoice("inv-1", 200000, checkout.InvoiceOrder)
	env := setupOrchestrator(t, inv, nil, 0)
	ctx := context.Background()

	selectVA(t, env.orch, "bca")
	require.NoError(t, env.orch.Generate(ctx))

	env.accounts.InvoicePaidFunc = func(ctx context.Context, invoiceID string) (bool, error) {
		return false, errors.New("timeout")
	}

	result, err := env.orch.CheckStatus(ctx)
	require.NoError(t, err, "transport failures are swallowed")
	assert.True(t, result.Pending)
}

func TestCheckStatus_NoInstruction(t *testing.T) {
	inv := testutil.NewTestInvoice("inv-1", 200000, checkout.InvoiceOrder)
	env := setupOrchestrator(t, inv, nil, 0)

	_, err := env.orch.CheckStatus(context.Background())
	assert.True(t, errors.Is(err, domainErrors.ErrNoActiveInstruction))
}

func TestAutomaticPolling_DetectsPayment(t *testing.T) {
	inv := testutil.NewTestInvoice("inv-1", 200000, checkout.InvoiceOrder)

	accounts := testutil.NewMockAccountService(inv, testutil.NewTestOrder("ORD-100", "ID", "ID"))
	cfg := testConfig()
	cfg.PollInterval = 20 * time.Millisecond

	orch, err := service.NewOrchestrator(context.Background(), inv.ID, "cust-1", cfg, service.Deps{
		Gateway:    testutil.NewMockGateway(),
		Accounts:   accounts,
		Classifier: service.NewClassifier(500000),
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	defer orch.Close(context.Background())

	ctx := context.Background()
	require.NoError(t, orch.SelectMethod(ctx, checkout.MethodVA))
	require.NoError(t, orch.SelectBank(ctx, "bca"))
	require.NoError(t, orch.Generate(ctx))
	drainEvents(orch)

	accounts.SetPaid(true)

	require.Eventually(t, func() bool {
		return orch.State().Paid
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAutomaticPolling_StopsAfterManualCheckFindsPaid(t *testing.T) {
	inv := testutil.NewTestInvoice("inv-1", 200000, checkout.InvoiceOrder)
	accounts := testutil.NewMockAccountService(inv, testutil.NewTestOrder("ORD-100", "ID", "ID"))

	var statusCalls atomic.Int32
	accounts.InvoicePaidFunc = func(ctx context.Context, invoiceID string) (bool, error) {
		statusCalls.Add(1)
		return true, nil
	}

	cfg := testConfig()
	cfg.PollInterval = 20 * time.Millisecond

	orch, err := service.NewOrchestrator(context.Background(), inv.ID, "cust-1", cfg, service.Deps{
		Gateway:    testutil.NewMockGateway(),
		Accounts:   accounts,
		Classifier: service.NewClassifier(500000),
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	defer orch.Close(context.Background())

	ctx := context.Background()
	require.NoError(t, orch.SelectMethod(ctx, checkout.MethodVA))
	require.NoError(t, orch.SelectBank(ctx, "bca"))
	require.NoError(t, orch.Generate(ctx))

	// The manual check settles the invoice before any automatic tick does.
	result, err := orch.CheckStatus(ctx)
	require.NoError(t, err)
	require.True(t, result.Paid)

	// Give an automatic tick already in flight time to finish, then assert
	// the poller has gone quiet for good.
	time.Sleep(50 * time.Millisecond)
	settled := statusCalls.Load()
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, settled, statusCalls.Load(), "no status checks may run once the invoice is paid")

	orch.Close(ctx)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, settled, statusCalls.Load(), "no status checks may run after close")
}

// --- Session Lifecycle Tests ---

func TestClose_RejectsFurtherCommands(t *testing.T) {
	inv := testutil.NewTestInvoice("inv-1", 200000, checkout.InvoiceOrder)
	env := setupOrchestrator(t, inv, nil, 0)
	ctx := context.Background()

	env.orch.Close(ctx)

	assert.True(t, errors.Is(env.orch.SelectMethod(ctx, checkout.MethodQRIS), domainErrors.ErrSessionClosed))
	assert.True(t, errors.Is(env.orch.Generate(ctx), domainErrors.ErrSessionClosed))
	_, err := env.orch.CheckStatus(ctx)
	assert.True(t, errors.Is(err, domainErrors.ErrSessionClosed))
}

func TestSnapshotRestore_ResumesSelectionAndInstruction(t *testing.T) {
	inv := testutil.NewTestInvoice("inv-1", 200000, checkout.InvoiceOrder)
	env := setupOrchestrator(t, inv, testutil.NewTestOrder("ORD-100", "ID", "ID"), 0)
	ctx := context.Background()

	selectVA(t, env.orch, "bca")
	require.NoError(t, env.orch.Generate(ctx))

	// A fresh orchestrator over the same snapshot store resumes the session.
	restored, err := service.NewOrchestrator(ctx, inv.ID, "cust-1", testConfig(), service.Deps{
		Gateway:    env.gateway,
		Accounts:   env.accounts,
		Classifier: service.NewClassifier(500000),
		Snapshots:  env.snapshots,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	defer restored.Close(ctx)

	snap := restored.State()
	assert.Equal(t, checkout.MethodVA, snap.Selection.Method)
	assert.Equal(t, "bca", snap.Selection.Bank)
	va, ok := snap.Instruction.VASingle()
	require.True(t, ok)
	assert.Equal(t, "88081234567890", va.Number)
}
