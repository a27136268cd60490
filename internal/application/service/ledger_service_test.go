package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/utility-ledger/internal/application/ingest"
	"github.com/eshaffer321/utility-ledger/internal/domain/ledger"
	"github.com/eshaffer321/utility-ledger/internal/domain/responsibility"
	"github.com/eshaffer321/utility-ledger/internal/domain/validator"
	"github.com/eshaffer321/utility-ledger/internal/infrastructure/storage"
)

// seedLedger ingests two bills, three payments and one orphan-free ledger
func seedLedger(t *testing.T) (*storage.MockRepository, *LedgerService) {
	t.Helper()
	repo := storage.NewMockRepository()
	engine := ingest.NewEngine(repo, ingest.Config{}, nil)

	_, err := engine.Run(context.Background(), ledger.Snapshot{
		AccountBalance: "$40.00",
		Ledger: []ledger.Entry{
			{Type: "bill", BillCycleDate: "2024-01-15", BillTotal: "$100.00"},
			{Type: "bill", BillCycleDate: "2024-02-15", BillTotal: "$100.00"},
			{Type: "payment", BillCycleDate: "2024-01-20", Amount: "$60.00", Description: "Payment A"},
			{Type: "payment", BillCycleDate: "2024-01-21", Amount: "$40.00", Description: "Payment B"},
			{Type: "payment", BillCycleDate: "2024-02-20", Amount: "$60.00", Description: "Payment C"},
		},
	})
	require.NoError(t, err)
	return repo, NewLedgerService(repo, nil)
}

func TestLedgerService_Ledger(t *testing.T) {
	_, svc := seedLedger(t)

	view, err := svc.Ledger(context.Background())
	require.NoError(t, err)
	require.NotNil(t, view.Balance)
	assert.Equal(t, "$40.00", view.Balance.BalanceRaw)
	require.Len(t, view.Bills, 2)
	assert.Equal(t, "2024-01-15", view.Bills[0].CycleDate)
	assert.Len(t, view.Bills[0].Payments, 2)
	assert.Len(t, view.Bills[1].Payments, 1)
	assert.Empty(t, view.Orphans)
}

func TestLedgerService_Ledger_EmptyStore(t *testing.T) {
	svc := NewLedgerService(storage.NewMockRepository(), nil)

	view, err := svc.Ledger(context.Background())
	require.NoError(t, err)
	assert.Nil(t, view.Balance)
	assert.Empty(t, view.Bills)
	assert.NotNil(t, view.Orphans)
}

func TestLedgerService_Summary(t *testing.T) {
	repo, svc := seedLedger(t)
	ctx := context.Background()

	alex, err := svc.CreatePayee(ctx, "Alex", true)
	require.NoError(t, err)
	sam, err := svc.CreatePayee(ctx, "Sam", false)
	require.NoError(t, err)
	_, err = svc.SetResponsibilities(ctx, map[int64]float64{alex.ID: 50, sam.ID: 50})
	require.NoError(t, err)

	payments, err := repo.ListPayments(ctx, storage.PaymentFilter{})
	require.NoError(t, err)
	for _, p := range payments {
		payee := alex.ID
		if p.Description == "Payment B" {
			payee = sam.ID
		}
		_, err := repo.UpdateAttribution(ctx, p.ID, ledger.Attribution{Status: ledger.StatusConfirmed, PayeeID: &payee, Method: ledger.MethodManual})
		require.NoError(t, err)
	}

	report, err := svc.Summary(ctx)
	require.NoError(t, err)
	require.Len(t, report.Bills, 2)
	assert.Equal(t, responsibility.BillPaid, report.Bills[0].Status)

	require.Len(t, report.Payees, 2)
	// Alex paid 120 of a 100 share, Sam paid 40 of a 100 share
	assert.Equal(t, 20.0, report.Payees[0].Balance)
	assert.Equal(t, responsibility.BalanceCredit, report.Payees[0].Status)
	assert.Equal(t, -60.0, report.Payees[1].Balance)
	assert.Equal(t, responsibility.BalanceOwes, report.Payees[1].Status)
}

func TestLedgerService_Summary_ConcurrentCallers(t *testing.T) {
	_, svc := seedLedger(t)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report, err := svc.Summary(context.Background())
			if err == nil && len(report.Bills) != 2 {
				err = errors.New("wrong bill count")
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestLedgerService_Summary_StorageError(t *testing.T) {
	repo := storage.NewMockRepository()
	repo.SnapshotErr = errors.New("boom")
	svc := NewLedgerService(repo, nil)

	_, err := svc.Summary(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestLedgerService_BillPayments(t *testing.T) {
	repo, svc := seedLedger(t)
	ctx := context.Background()

	bills, err := repo.ListBills(ctx)
	require.NoError(t, err)

	out, err := svc.BillPayments(ctx, bills[0].ID)
	require.NoError(t, err)
	assert.Len(t, out.Bill.Payments, 2)
	require.NotNil(t, out.Summary)
	assert.Equal(t, 100.0, out.Summary.TotalPaid)

	_, err = svc.BillPayments(ctx, 9999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLedgerService_ReassignAndUnlock(t *testing.T) {
	repo, svc := seedLedger(t)
	ctx := context.Background()

	bills, err := repo.ListBills(ctx)
	require.NoError(t, err)
	payments, err := repo.ListPayments(ctx, storage.PaymentFilter{BillID: &bills[1].ID})
	require.NoError(t, err)
	require.Len(t, payments, 1)

	moved, err := svc.ReassignPayment(ctx, payments[0].ID, &bills[0].ID)
	require.NoError(t, err)
	assert.True(t, moved.ManualBillLock)
	assert.Equal(t, bills[0].ID, *moved.BillID)

	orphaned, err := svc.ReassignPayment(ctx, payments[0].ID, nil)
	require.NoError(t, err)
	assert.Nil(t, orphaned.BillID)

	view, err := svc.Ledger(ctx)
	require.NoError(t, err)
	assert.Len(t, view.Orphans, 1)

	unlocked, err := svc.UnlockPayment(ctx, payments[0].ID)
	require.NoError(t, err)
	assert.False(t, unlocked.ManualBillLock)

	_, err = svc.ReassignPayment(ctx, payments[0].ID, int64Ptr(9999))
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = svc.UnlockPayment(ctx, 9999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLedgerService_SetPaymentOrder(t *testing.T) {
	repo, svc := seedLedger(t)
	ctx := context.Background()

	bills, err := repo.ListBills(ctx)
	require.NoError(t, err)
	payments, err := repo.ListPayments(ctx, storage.PaymentFilter{BillID: &bills[0].ID})
	require.NoError(t, err)
	require.Len(t, payments, 2)

	out, err := svc.SetPaymentOrder(ctx, bills[0].ID, []int64{payments[1].ID, payments[0].ID})
	require.NoError(t, err)
	assert.Equal(t, payments[1].ID, out.Bill.Payments[0].ID)

	_, err = svc.SetPaymentOrder(ctx, bills[0].ID, []int64{payments[0].ID, payments[0].ID})
	var verr *validator.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = svc.SetPaymentOrder(ctx, 9999, []int64{payments[0].ID})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLedgerService_SetResponsibilities_Validation(t *testing.T) {
	_, svc := seedLedger(t)
	ctx := context.Background()

	alex, err := svc.CreatePayee(ctx, "Alex", false)
	require.NoError(t, err)
	sam, err := svc.CreatePayee(ctx, "Sam", false)
	require.NoError(t, err)

	_, err = svc.SetResponsibilities(ctx, map[int64]float64{alex.ID: 70, sam.ID: 20})
	var verr *validator.ValidationError
	require.ErrorAs(t, err, &verr)

	payees, err := svc.ListPayees(ctx)
	require.NoError(t, err)
	for _, p := range payees {
		assert.Zero(t, p.ResponsibilityPercent, "nothing is written when validation fails")
	}

	_, err = svc.SetResponsibilities(ctx, map[int64]float64{alex.ID: 50, 9999: 50})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Partial update merged with stored values
	_, err = svc.SetResponsibilities(ctx, map[int64]float64{alex.ID: 100})
	require.NoError(t, err)
	_, err = svc.SetResponsibilities(ctx, map[int64]float64{alex.ID: 60})
	require.ErrorAs(t, err, &verr)

	payees, err = svc.SetResponsibilities(ctx, map[int64]float64{alex.ID: 60, sam.ID: 40})
	require.NoError(t, err)
	assert.Equal(t, 60.0, payees[0].ResponsibilityPercent)
}

func TestLedgerService_PayeesAndCards(t *testing.T) {
	svc := NewLedgerService(storage.NewMockRepository(), nil)
	ctx := context.Background()

	_, err := svc.CreatePayee(ctx, "  ", false)
	var verr *validator.ValidationError
	require.ErrorAs(t, err, &verr)

	alex, err := svc.CreatePayee(ctx, "Alex", true)
	require.NoError(t, err)
	sam, err := svc.CreatePayee(ctx, "Sam", false)
	require.NoError(t, err)

	_, err = svc.CreatePayee(ctx, "Alex", false)
	assert.ErrorIs(t, err, storage.ErrConflict)

	def, err := svc.SetDefaultPayee(ctx, sam.ID)
	require.NoError(t, err)
	assert.True(t, def.IsDefault)

	_, err = svc.AddCard(ctx, alex.ID, "12a4", "")
	require.ErrorAs(t, err, &verr)

	card, err := svc.AddCard(ctx, alex.ID, "1234", "Visa")
	require.NoError(t, err)
	assert.Equal(t, alex.ID, card.PayeeID)

	require.NoError(t, svc.RemoveCard(ctx, "1234"))
	assert.ErrorIs(t, svc.RemoveCard(ctx, "1234"), storage.ErrNotFound)
}

func TestLedgerService_PaymentsAndUnverified(t *testing.T) {
	repo, svc := seedLedger(t)
	ctx := context.Background()

	bills, err := repo.ListBills(ctx)
	require.NoError(t, err)

	byBill, err := svc.Payments(ctx, PaymentQuery{BillID: &bills[0].ID})
	require.NoError(t, err)
	assert.Len(t, byBill, 2)

	_, err = svc.Payments(ctx, PaymentQuery{BillID: int64Ptr(9999)})
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = svc.Payments(ctx, PaymentQuery{PayeeID: int64Ptr(9999)})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	unverified, err := svc.Unverified(ctx)
	require.NoError(t, err)
	assert.Len(t, unverified, 3)
}

func TestLedgerService_Wipe(t *testing.T) {
	repo, svc := seedLedger(t)
	ctx := context.Background()

	result, err := svc.Wipe(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.PaymentsDeleted)
	assert.Equal(t, int64(2), result.BillsDeleted)
	assert.True(t, repo.WipeCalled)

	view, err := svc.Ledger(ctx)
	require.NoError(t, err)
	assert.Empty(t, view.Bills)
}

func int64Ptr(v int64) *int64 { return &v }

// slowPayeeRepo widens the gap between reading payees and writing them
type slowPayeeRepo struct {
	*storage.MockRepository
}

func (r slowPayeeRepo) ListPayees(ctx context.Context) ([]*ledger.PayeeUser, error) {
	time.Sleep(30 * time.Millisecond)
	return r.MockRepository.ListPayees(ctx)
}

func TestLedgerService_SetResponsibilities_ConcurrentPartialUpdates(t *testing.T) {
	repo := storage.NewMockRepository()
	svc := NewLedgerService(slowPayeeRepo{repo}, nil)
	ctx := context.Background()

	alex, err := svc.CreatePayee(ctx, "Alex", true)
	require.NoError(t, err)
	sam, err := svc.CreatePayee(ctx, "Sam", false)
	require.NoError(t, err)
	kim, err := svc.CreatePayee(ctx, "Kim", false)
	require.NoError(t, err)
	_, err = svc.SetResponsibilities(ctx, map[int64]float64{alex.ID: 50, sam.ID: 50})
	require.NoError(t, err)

	updates := []map[int64]float64{
		{alex.ID: 0, kim.ID: 50},
		{sam.ID: 0, kim.ID: 50},
	}
	errs := make([]error, len(updates))
	var wg sync.WaitGroup
	for i, u := range updates {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.SetResponsibilities(ctx, u)
		}()
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			var verr *validator.ValidationError
			assert.ErrorAs(t, err, &verr)
			failed++
		}
	}
	assert.Equal(t, 1, failed, "the second update merges over the first and no longer sums to 100")

	payees, err := repo.ListPayees(ctx)
	require.NoError(t, err)
	sum := 0.0
	for _, p := range payees {
		sum += p.ResponsibilityPercent
	}
	assert.InDelta(t, 100.0, sum, 0.001)
}

// ctxRepo fails ledger reads once the caller's context is done
type ctxRepo struct {
	*storage.MockRepository
}

func (r ctxRepo) LedgerSnapshot(ctx context.Context) (*storage.LedgerData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.MockRepository.LedgerSnapshot(ctx)
}

func TestLedgerService_Summary_IgnoresCallerCancellation(t *testing.T) {
	svc := NewLedgerService(ctxRepo{storage.NewMockRepository()}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Bills)
}

func TestLedgerService_Wipe_RefusedWhileSyncing(t *testing.T) {
	repo, svc := seedLedger(t)
	blocker := newBlockingIngester()
	syncs := NewSyncService(blocker, repo, nil)
	svc.UseSyncLock(syncs)

	errCh := make(chan error, 1)
	go func() {
		_, err := syncs.Sync(context.Background(), SourceScheduler, testSnapshot())
		errCh <- err
	}()
	select {
	case <-blocker.started:
	case <-time.After(2 * time.Second):
		t.Fatal("sync never started")
	}

	_, err := svc.Wipe(context.Background())
	assert.ErrorIs(t, err, ErrSyncInProgress)

	bills, err := repo.ListBills(context.Background())
	require.NoError(t, err)
	assert.Len(t, bills, 2, "nothing is deleted while a sync runs")

	close(blocker.release)
	require.NoError(t, <-errCh)

	result, err := svc.Wipe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.BillsDeleted)
}
