package usecase_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.uber.org/mock/gomock"

	"github.com/iller75/BybitMover/internal/domain"
	"github.com/iller75/BybitMover/internal/usecase"
	"github.com/iller75/BybitMover/internal/usecase/mocks"
)

var (
	mainAccount = domain.Account{UID: "main", Role: domain.RoleMain}
	subAccount  = domain.Account{UID: "sub-1", Role: domain.RoleSub}
	subAccount2 = domain.Account{UID: "sub-2", Role: domain.RoleSub}
)

type engineOptions struct {
	percentage   string
	threshold    string
	minRemaining string
	marginCheck  bool
	maxMargin    string
	subs         []domain.Account
	lock         usecase.SweepLock
}

func defaultOptions() engineOptions {
	return engineOptions{
		percentage:   "50",
		threshold:    "20",
		minRemaining: "50",
		maxMargin:    "50",
		subs:         []domain.Account{subAccount},
	}
}

type engineFixture struct {
	gateway *mocks.FakeGateway
	ledger  *mocks.FakeLedger
	tracker *usecase.BalanceTracker
	engine  *usecase.ProfitEngine
}

func newEngineFixture(t *testing.T, opts engineOptions, gateway usecase.Gateway) *engineFixture {
	t.Helper()

	fake, _ := gateway.(*mocks.FakeGateway)
	logger := zerolog.Nop()
	ledger := mocks.NewFakeLedger()
	tracker := usecase.NewBalanceTracker(gateway, logger)
	guards := usecase.NewGuardEvaluator(gateway, usecase.GuardConfig{
		MarginCheckEnabled:   opts.marginCheck,
		MaxMarginUsedPercent: decimal.RequireFromString(opts.maxMargin),
		MinRemainingBalance:  decimal.RequireFromString(opts.minRemaining),
	}, logger)
	executor := usecase.NewTransferExecutor(gateway, mocks.NewSequenceIDGenerator("transfer"), logger)

	engine := usecase.NewProfitEngine(usecase.ProfitEngineConfig{
		MainAccount:        mainAccount,
		SubAccounts:        opts.subs,
		ProfitPercentage:   decimal.RequireFromString(opts.percentage),
		MinProfitThreshold: decimal.RequireFromString(opts.threshold),
		Tracker:            tracker,
		Guards:             guards,
		Executor:           executor,
		Ledger:             ledger,
		IDGen:              mocks.NewSequenceIDGenerator("id"),
		Lock:               opts.lock,
		Logger:             logger,
	})

	return &engineFixture{
		gateway: fake,
		ledger:  ledger,
		tracker: tracker,
		engine:  engine,
	}
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestProfitEngine_ScenarioA_SweepAndCarryForward(t *testing.T) {
	ctx := context.Background()
	gw := mocks.NewFakeGateway()
	f := newEngineFixture(t, defaultOptions(), gw)

	gw.SetBalance(subAccount.UID, d("100"))
	f.tracker.Initialize(ctx, []domain.Account{subAccount})
	gw.SetBalance(subAccount.UID, d("150"))

	report := f.engine.RunCycle(ctx)

	if len(report.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(report.Results))
	}
	res := report.Results[0]
	if res.Outcome != usecase.OutcomeSwept {
		t.Fatalf("expected swept, got %s (%v)", res.Outcome, res.Err)
	}
	if !res.Amount.Equal(d("25")) {
		t.Errorf("expected transfer of 25, got %s", res.Amount)
	}
	if got := f.tracker.InitialBalance(subAccount.UID); !got.Equal(d("125")) {
		t.Errorf("expected new baseline 125, got %s", got)
	}

	transfers := gw.Transfers()
	if len(transfers) != 1 {
		t.Fatalf("expected 1 transfer, got %d", len(transfers))
	}
	if transfers[0].From.UID != subAccount.UID || transfers[0].To.UID != mainAccount.UID {
		t.Errorf("unexpected transfer direction: %+v", transfers[0])
	}
	if transfers[0].IdempotencyKey == "" {
		t.Error("expected idempotency key to be set")
	}

	records, _ := f.ledger.List(ctx)
	if len(records) != 1 {
		t.Fatalf("expected 1 ledger record, got %d", len(records))
	}
	if records[0].FromAccount != subAccount.UID || records[0].ToAccount != mainAccount.UID || !records[0].Amount.Equal(d("25")) {
		t.Errorf("unexpected ledger record: %+v", records[0])
	}

	// Same balance again: only the unswept remainder counts as profit.
	intent, _ := f.engine.Decide(ctx, subAccount)
	if intent == nil {
		t.Fatal("expected intent for the carried-forward remainder")
	}
	if !intent.TotalProfit.Equal(d("25")) {
		t.Errorf("expected remainder profit 25, got %s", intent.TotalProfit)
	}
}

func TestProfitEngine_ScenarioB_RemainingBalanceGuard(t *testing.T) {
	ctx := context.Background()
	gw := mocks.NewFakeGateway()
	opts := defaultOptions()
	opts.minRemaining = "130"
	f := newEngineFixture(t, opts, gw)

	gw.SetBalance(subAccount.UID, d("100"))
	f.tracker.Initialize(ctx, []domain.Account{subAccount})
	gw.SetBalance(subAccount.UID, d("150"))

	report := f.engine.RunCycle(ctx)

	res := report.Results[0]
	if res.Outcome != usecase.OutcomeRemainingRejected {
		t.Fatalf("expected remaining balance rejection, got %s", res.Outcome)
	}
	if !errors.Is(res.Err, domain.ErrInsufficientRemainingBalance) {
		t.Errorf("expected ErrInsufficientRemainingBalance, got %v", res.Err)
	}
	if got := f.tracker.InitialBalance(subAccount.UID); !got.Equal(d("100")) {
		t.Errorf("expected baseline to stay 100, got %s", got)
	}
	if len(gw.Transfers()) != 0 {
		t.Error("expected no transfer")
	}
}

func TestProfitEngine_ScenarioC_BelowThresholdNoTransferCall(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)

	gomock.InOrder(
		gw.EXPECT().FetchBalance(gomock.Any(), subAccount).Return(d("100"), nil),
		gw.EXPECT().FetchBalance(gomock.Any(), subAccount).Return(d("115"), nil),
	)
	gw.EXPECT().SubmitTransfer(gomock.Any(), gomock.Any()).Times(0)

	f := newEngineFixture(t, defaultOptions(), gw)
	f.tracker.Initialize(ctx, []domain.Account{subAccount})

	report := f.engine.RunCycle(ctx)

	if report.Results[0].Outcome != usecase.OutcomeBelowThreshold {
		t.Fatalf("expected below threshold, got %s", report.Results[0].Outcome)
	}
	records, _ := f.ledger.List(ctx)
	if len(records) != 0 {
		t.Errorf("expected empty ledger, got %d records", len(records))
	}
}

func TestProfitEngine_Decide_ThresholdMonotonicity(t *testing.T) {
	tests := []struct {
		name       string
		current    string
		wantIntent bool
		wantAmount string
	}{
		{name: "loss", current: "90", wantIntent: false},
		{name: "no profit", current: "100", wantIntent: false},
		{name: "just below threshold", current: "119.99", wantIntent: false},
		{name: "exactly threshold", current: "120", wantIntent: false},
		{name: "just above threshold", current: "120.01", wantIntent: true, wantAmount: "10.005"},
		{name: "large profit", current: "300", wantIntent: true, wantAmount: "100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			gw := mocks.NewFakeGateway()
			f := newEngineFixture(t, defaultOptions(), gw)

			gw.SetBalance(subAccount.UID, d("100"))
			f.tracker.Initialize(ctx, []domain.Account{subAccount})
			gw.SetBalance(subAccount.UID, d(tt.current))

			intent, outcome := f.engine.Decide(ctx, subAccount)

			if !tt.wantIntent {
				if intent != nil {
					t.Fatalf("expected no intent, got %+v", intent)
				}
				if outcome != usecase.OutcomeBelowThreshold {
					t.Errorf("expected below threshold outcome, got %s", outcome)
				}
				return
			}

			if intent == nil {
				t.Fatalf("expected intent, got outcome %s", outcome)
			}
			if !intent.Amount.Equal(d(tt.wantAmount)) {
				t.Errorf("expected amount %s, got %s", tt.wantAmount, intent.Amount)
			}
			wantProfit := d(tt.current).Sub(d("100"))
			if !intent.TotalProfit.Equal(wantProfit) {
				t.Errorf("expected profit %s, got %s", wantProfit, intent.TotalProfit)
			}
		})
	}
}

func TestProfitEngine_Decide_RoundsDownToTransferPrecision(t *testing.T) {
	ctx := context.Background()
	gw := mocks.NewFakeGateway()
	opts := defaultOptions()
	opts.percentage = "33.33"
	f := newEngineFixture(t, opts, gw)

	gw.SetBalance(subAccount.UID, d("100"))
	f.tracker.Initialize(ctx, []domain.Account{subAccount})
	gw.SetBalance(subAccount.UID, d("130.55555"))

	intent, _ := f.engine.Decide(ctx, subAccount)
	if intent == nil {
		t.Fatal("expected intent")
	}
	if !intent.Amount.Equal(d("10.1841")) {
		t.Errorf("expected 10.1841, got %s", intent.Amount)
	}
}

func TestProfitEngine_GuardConjunction(t *testing.T) {
	tests := []struct {
		name          string
		positionValue string
		minRemaining  string
		wantOutcome   usecase.Outcome
	}{
		{name: "both pass", positionValue: "10", minRemaining: "50", wantOutcome: usecase.OutcomeSwept},
		{name: "margin fails", positionValue: "100", minRemaining: "50", wantOutcome: usecase.OutcomeMarginRejected},
		{name: "remaining fails", positionValue: "10", minRemaining: "130", wantOutcome: usecase.OutcomeRemainingRejected},
		{name: "both fail", positionValue: "100", minRemaining: "130", wantOutcome: usecase.OutcomeMarginRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			gw := mocks.NewFakeGateway()
			opts := defaultOptions()
			opts.marginCheck = true
			opts.minRemaining = tt.minRemaining
			f := newEngineFixture(t, opts, gw)

			gw.SetBalance(subAccount.UID, d("100"))
			gw.SetPositions(subAccount.UID, []domain.Position{{Symbol: "BTCUSDT", Value: d(tt.positionValue)}})
			f.tracker.Initialize(ctx, []domain.Account{subAccount})
			gw.SetBalance(subAccount.UID, d("150"))

			report := f.engine.RunCycle(ctx)

			if got := report.Results[0].Outcome; got != tt.wantOutcome {
				t.Fatalf("expected %s, got %s", tt.wantOutcome, got)
			}

			swept := tt.wantOutcome == usecase.OutcomeSwept
			if got := len(gw.Transfers()); (got == 1) != swept {
				t.Errorf("unexpected transfer count %d", got)
			}
			wantBaseline := d("100")
			if swept {
				wantBaseline = d("125")
			}
			if got := f.tracker.InitialBalance(subAccount.UID); !got.Equal(wantBaseline) {
				t.Errorf("expected baseline %s, got %s", wantBaseline, got)
			}
		})
	}
}

func TestProfitEngine_MarginGuardShortCircuits(t *testing.T) {
	ctx := context.Background()
	gw := mocks.NewFakeGateway()
	opts := defaultOptions()
	opts.marginCheck = true
	f := newEngineFixture(t, opts, gw)

	gw.FetchPositionsFunc = func(ctx context.Context, account domain.Account) ([]domain.Position, error) {
		return nil, errors.New("positions endpoint down")
	}
	gw.SetBalance(subAccount.UID, d("100"))
	f.tracker.Initialize(ctx, []domain.Account{subAccount})
	gw.SetBalance(subAccount.UID, d("150"))

	report := f.engine.RunCycle(ctx)

	res := report.Results[0]
	if res.Outcome != usecase.OutcomeMarginRejected {
		t.Fatalf("expected margin rejection, got %s", res.Outcome)
	}
	if !errors.Is(res.Err, domain.ErrMarginCheckUnavailable) {
		t.Errorf("expected ErrMarginCheckUnavailable, got %v", res.Err)
	}
	if errors.Is(res.Err, domain.ErrInsufficientRemainingBalance) {
		t.Error("remaining balance guard should not have been evaluated")
	}
}

func TestProfitEngine_TransferFailureKeepsBaseline(t *testing.T) {
	ctx := context.Background()
	gw := mocks.NewFakeGateway()
	f := newEngineFixture(t, defaultOptions(), gw)

	gw.SetBalance(subAccount.UID, d("100"))
	f.tracker.Initialize(ctx, []domain.Account{subAccount})
	gw.SetBalance(subAccount.UID, d("150"))

	gw.SubmitTransferFunc = func(ctx context.Context, req domain.TransferRequest) error {
		return errors.New("retCode 131001")
	}

	report := f.engine.RunCycle(ctx)
	if report.Results[0].Outcome != usecase.OutcomeTransferFailed {
		t.Fatalf("expected transfer failure, got %s", report.Results[0].Outcome)
	}
	if got := f.tracker.InitialBalance(subAccount.UID); !got.Equal(d("100")) {
		t.Errorf("expected baseline 100, got %s", got)
	}
	records, _ := f.ledger.List(ctx)
	if len(records) != 0 {
		t.Fatalf("expected no ledger record, got %d", len(records))
	}

	// Next cycle retries the same unswept profit.
	gw.SubmitTransferFunc = nil
	report = f.engine.RunCycle(ctx)
	if report.Results[0].Outcome != usecase.OutcomeSwept {
		t.Fatalf("expected retry to sweep, got %s", report.Results[0].Outcome)
	}

	transfers := gw.Transfers()
	if len(transfers) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(transfers))
	}
	if transfers[0].IdempotencyKey == transfers[1].IdempotencyKey {
		t.Error("expected a fresh transfer id per attempt")
	}
}

func TestProfitEngine_LedgerFailureStillResetsBaseline(t *testing.T) {
	ctx := context.Background()
	gw := mocks.NewFakeGateway()
	f := newEngineFixture(t, defaultOptions(), gw)

	f.ledger.AppendFunc = func(ctx context.Context, record *domain.TransferRecord) error {
		return errors.New("disk full")
	}

	gw.SetBalance(subAccount.UID, d("100"))
	f.tracker.Initialize(ctx, []domain.Account{subAccount})
	gw.SetBalance(subAccount.UID, d("150"))

	report := f.engine.RunCycle(ctx)

	if report.Results[0].Outcome != usecase.OutcomeSwept {
		t.Fatalf("expected swept, got %s", report.Results[0].Outcome)
	}
	if got := f.tracker.InitialBalance(subAccount.UID); !got.Equal(d("125")) {
		t.Errorf("expected baseline 125 after confirmed transfer, got %s", got)
	}
}

func TestProfitEngine_AccountFailureDoesNotStopCycle(t *testing.T) {
	ctx := context.Background()
	gw := mocks.NewFakeGateway()
	opts := defaultOptions()
	opts.subs = []domain.Account{subAccount, subAccount2}
	f := newEngineFixture(t, opts, gw)

	gw.SetBalance(subAccount.UID, d("100"))
	gw.SetBalance(subAccount2.UID, d("200"))
	f.tracker.Initialize(ctx, opts.subs)

	gw.SetBalance(subAccount2.UID, d("300"))
	gw.FetchBalanceFunc = func(ctx context.Context, account domain.Account) (decimal.Decimal, error) {
		if account.UID == subAccount.UID {
			return decimal.Zero, errors.New("timeout")
		}
		return d("300"), nil
	}

	report := f.engine.RunCycle(ctx)

	if len(report.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(report.Results))
	}
	if report.Results[0].Outcome != usecase.OutcomeBalanceUnavailable {
		t.Errorf("expected first account unavailable, got %s", report.Results[0].Outcome)
	}
	if report.Results[1].Outcome != usecase.OutcomeSwept {
		t.Errorf("expected second account swept, got %s", report.Results[1].Outcome)
	}
	if report.Swept() != 1 || !report.TotalSwept().Equal(d("50")) {
		t.Errorf("unexpected cycle totals: swept=%d total=%s", report.Swept(), report.TotalSwept())
	}
	if got := f.tracker.InitialBalance(subAccount.UID); !got.Equal(d("100")) {
		t.Errorf("expected failed account baseline untouched, got %s", got)
	}
}

func TestProfitEngine_ZeroPercentageSkips(t *testing.T) {
	ctx := context.Background()
	gw := mocks.NewFakeGateway()
	opts := defaultOptions()
	opts.percentage = "0"
	f := newEngineFixture(t, opts, gw)

	gw.SetBalance(subAccount.UID, d("100"))
	f.tracker.Initialize(ctx, []domain.Account{subAccount})
	gw.SetBalance(subAccount.UID, d("150"))

	report := f.engine.RunCycle(ctx)

	if report.Results[0].Outcome != usecase.OutcomeZeroAmount {
		t.Fatalf("expected zero amount, got %s", report.Results[0].Outcome)
	}
	if len(gw.Transfers()) != 0 {
		t.Error("expected no transfer for zero amount")
	}
}

func TestProfitEngine_LockHeldElsewhere(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	lock := mocks.NewMockSweepLock(ctrl)
	lock.EXPECT().Acquire(gomock.Any(), subAccount.UID, usecase.DefaultSweepLockTTL).Return(false, nil)

	gw := mocks.NewFakeGateway()
	opts := defaultOptions()
	opts.lock = lock
	f := newEngineFixture(t, opts, gw)

	gw.SetBalance(subAccount.UID, d("100"))
	f.tracker.Initialize(ctx, []domain.Account{subAccount})
	gw.SetBalance(subAccount.UID, d("150"))

	report := f.engine.RunCycle(ctx)

	if report.Results[0].Outcome != usecase.OutcomeLocked {
		t.Fatalf("expected locked, got %s", report.Results[0].Outcome)
	}
	if len(gw.Transfers()) != 0 {
		t.Error("expected no transfer while locked")
	}
}

func TestProfitEngine_LockReleasedAfterSweep(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	lock := mocks.NewMockSweepLock(ctrl)
	gomock.InOrder(
		lock.EXPECT().Acquire(gomock.Any(), subAccount.UID, gomock.Any()).Return(true, nil),
		lock.EXPECT().Release(gomock.Any(), subAccount.UID).Return(nil),
	)

	gw := mocks.NewFakeGateway()
	opts := defaultOptions()
	opts.lock = lock
	f := newEngineFixture(t, opts, gw)

	gw.SetBalance(subAccount.UID, d("100"))
	f.tracker.Initialize(ctx, []domain.Account{subAccount})
	gw.SetBalance(subAccount.UID, d("150"))

	if got := f.engine.RunCycle(ctx).Results[0].Outcome; got != usecase.OutcomeSwept {
		t.Fatalf("expected swept, got %s", got)
	}
}

func TestProfitEngine_RecordsMetrics(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	rec := mocks.NewMockMetricsRecorder(ctrl)

	rec.EXPECT().ObserveBalance(subAccount.UID, gomock.Any(), gomock.Any())
	rec.EXPECT().ObserveTransfer(subAccount.UID, gomock.Cond(func(x any) bool {
		return x.(decimal.Decimal).Equal(d("25"))
	}))
	rec.EXPECT().ObserveOutcome(subAccount.UID, usecase.OutcomeSwept)
	rec.EXPECT().ObserveCycle(gomock.Any())

	gw := mocks.NewFakeGateway()
	logger := zerolog.Nop()
	tracker := usecase.NewBalanceTracker(gw, logger)
	engine := usecase.NewProfitEngine(usecase.ProfitEngineConfig{
		MainAccount:        mainAccount,
		SubAccounts:        []domain.Account{subAccount},
		ProfitPercentage:   d("50"),
		MinProfitThreshold: d("20"),
		Tracker:            tracker,
		Guards:             usecase.NewGuardEvaluator(gw, usecase.GuardConfig{MinRemainingBalance: d("50")}, logger),
		Executor:           usecase.NewTransferExecutor(gw, mocks.NewSequenceIDGenerator("t"), logger),
		Ledger:             mocks.NewFakeLedger(),
		IDGen:              mocks.NewSequenceIDGenerator("id"),
		Metrics:            rec,
		Logger:             logger,
	})

	gw.SetBalance(subAccount.UID, d("100"))
	tracker.Initialize(ctx, []domain.Account{subAccount})
	gw.SetBalance(subAccount.UID, d("150"))

	engine.RunCycle(ctx)
}

func TestProfitEngine_CyclesNeverInterleave(t *testing.T) {
	ctx := context.Background()
	gw := mocks.NewFakeGateway()
	opts := defaultOptions()
	opts.subs = []domain.Account{subAccount, subAccount2}
	f := newEngineFixture(t, opts, gw)

	var inFlight, maxInFlight int32
	gw.FetchBalanceFunc = func(ctx context.Context, account domain.Account) (decimal.Decimal, error) {
		n := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		return d("100"), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.engine.RunCycle(ctx)
		}()
	}
	wg.Wait()

	if maxInFlight != 1 {
		t.Fatalf("expected strictly sequential balance reads, saw %d concurrent", maxInFlight)
	}
}
