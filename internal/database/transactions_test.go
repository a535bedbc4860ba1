package database

import (
	"context"
	"errors"
	"sync"
	"testing"

	"rebate-ledger-go/internal/models"
	"rebate-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

func TestPostWalletTransaction_Credit(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	user := createUser(t, service, "ib@example.com", models.RoleIB, nil)
	wallet := fundWallet(t, service, user.Id, models.WalletRebate, "")

	amount := decimal.RequireFromString("12.34")
	result, err := service.PostWalletTransaction(ctx, store.PostWalletParams{
		WalletId: wallet.Id,
		Type:     models.TypeRebateIn,
		Amount:   amount,
	})
	if err != nil {
		t.Fatalf("PostWalletTransaction failed: %v", err)
	}

	if result.UserId != user.Id {
		t.Errorf("Expected userId %d, got %d", user.Id, result.UserId)
	}
	if result.Category != models.CategoryRebateWallet {
		t.Errorf("Expected category %s, got %s", models.CategoryRebateWallet, result.Category)
	}
	if !result.OldWalletAmount.IsZero() {
		t.Errorf("Expected old amount 0, got %s", result.OldWalletAmount.String())
	}
	if !result.NewWalletAmount.Equal(amount) {
		t.Errorf("Expected new amount %s, got %s", amount.String(), result.NewWalletAmount.String())
	}
	if result.Status != models.StatusSuccessful || result.ApprovedAt == nil {
		t.Errorf("Expected successful approved row, got %s approved=%v", result.Status, result.ApprovedAt)
	}
	if result.WalletVersion != 2 {
		t.Errorf("Expected wallet version 2, got %d", result.WalletVersion)
	}

	updated, err := service.GetWallet(ctx, wallet.Id)
	if err != nil {
		t.Fatalf("GetWallet failed: %v", err)
	}
	if !updated.Balance.Equal(amount) {
		t.Errorf("Expected balance %s, got %s", amount.String(), updated.Balance.String())
	}
}

func TestPostWalletTransaction_InsufficientBalance(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	user := createUser(t, service, "ib@example.com", models.RoleIB, nil)
	wallet := fundWallet(t, service, user.Id, models.WalletRebate, "30")

	_, err := service.PostWalletTransaction(ctx, store.PostWalletParams{
		WalletId: wallet.Id,
		Type:     models.TypeWithdrawal,
		Amount:   decimal.NewFromInt(50),
		Status:   models.StatusProcessing,
	})
	if !errors.Is(err, store.ErrInsufficientBalance) {
		t.Fatalf("Expected ErrInsufficientBalance, got %v", err)
	}

	history, err := service.GetTransactionHistory(ctx, user.Id, 10, 0)
	if err != nil {
		t.Fatalf("GetTransactionHistory failed: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("Expected only the funding row, got %d rows", len(history))
	}

	after, err := service.GetWallet(ctx, wallet.Id)
	if err != nil {
		t.Fatalf("GetWallet failed: %v", err)
	}
	if !after.Balance.Equal(decimal.NewFromInt(30)) || after.Version != wallet.Version {
		t.Errorf("Wallet changed: balance=%s version=%d", after.Balance.String(), after.Version)
	}
}

func TestPostWalletTransaction_RejectsNonPositive(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	user := createUser(t, service, "ib@example.com", models.RoleIB, nil)
	wallet := fundWallet(t, service, user.Id, models.WalletRebate, "")

	for _, amount := range []string{"0", "-5"} {
		_, err := service.PostWalletTransaction(context.Background(), store.PostWalletParams{
			WalletId: wallet.Id,
			Type:     models.TypeRebateIn,
			Amount:   decimal.RequireFromString(amount),
		})
		if !errors.Is(err, store.ErrInvalidAmount) {
			t.Errorf("amount %s: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

func TestPostWalletTransaction_ChargesReduceNetAmount(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	user := createUser(t, service, "ib@example.com", models.RoleIB, nil)
	wallet := fundWallet(t, service, user.Id, models.WalletRebate, "100")

	result, err := service.PostWalletTransaction(context.Background(), store.PostWalletParams{
		WalletId: wallet.Id,
		Type:     models.TypeWithdrawal,
		Amount:   decimal.NewFromInt(40),
		Charges:  decimal.NewFromInt(2),
		Status:   models.StatusProcessing,
	})
	if err != nil {
		t.Fatalf("PostWalletTransaction failed: %v", err)
	}
	if !result.TransactionAmount.Equal(decimal.NewFromInt(38)) {
		t.Errorf("Expected net 38, got %s", result.TransactionAmount.String())
	}
	if !result.NewWalletAmount.Equal(decimal.NewFromInt(60)) {
		t.Errorf("Expected wallet debited by gross 40, got %s", result.NewWalletAmount.String())
	}
	if result.ApprovedAt != nil {
		t.Error("Expected processing row to have no approval time")
	}
}

func TestPostWalletTransaction_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	user := createUser(t, service, "ib@example.com", models.RoleIB, nil)
	wallet := fundWallet(t, service, user.Id, models.WalletRebate, "50")

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.PostWalletTransaction(ctx, store.PostWalletParams{
				WalletId: wallet.Id,
				Type:     models.TypeRebateOut,
				Amount:   decimal.NewFromInt(10),
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else if !errors.Is(err, store.ErrInsufficientBalance) && !errors.Is(err, store.ErrConcurrentModification) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 5 {
		t.Errorf("Expected 5 successful debits, got %d", succeeded)
	}
	after, err := service.GetWallet(ctx, wallet.Id)
	if err != nil {
		t.Fatalf("GetWallet failed: %v", err)
	}
	if !after.Balance.IsZero() {
		t.Errorf("Expected balance 0, got %s", after.Balance.String())
	}
	if err := service.ReconcileWallet(ctx, wallet.Id); err != nil {
		t.Errorf("ReconcileWallet failed: %v", err)
	}
}

func TestResolveTransaction_RefundRestoresBalance(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	user := createUser(t, service, "ib@example.com", models.RoleIB, nil)
	wallet := fundWallet(t, service, user.Id, models.WalletRebate, "100")

	pending, err := service.PostWalletTransaction(ctx, store.PostWalletParams{
		WalletId: wallet.Id,
		Type:     models.TypeWithdrawal,
		Amount:   decimal.NewFromInt(40),
		Status:   models.StatusProcessing,
	})
	if err != nil {
		t.Fatalf("PostWalletTransaction failed: %v", err)
	}

	resolved, err := service.ResolveTransaction(ctx, store.ResolveTransactionParams{
		TransactionId: pending.Id,
		Status:        models.StatusRejected,
		Refund:        true,
		HandledBy:     7,
		Remarks:       "bank details invalid",
	})
	if err != nil {
		t.Fatalf("ResolveTransaction failed: %v", err)
	}

	if resolved.Status != models.StatusRejected {
		t.Errorf("Expected rejected, got %s", resolved.Status)
	}
	if !resolved.OldWalletAmount.Equal(decimal.NewFromInt(60)) || !resolved.NewWalletAmount.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected refund 60 -> 100, got %s -> %s", resolved.OldWalletAmount.String(), resolved.NewWalletAmount.String())
	}
	if resolved.HandledBy != 7 || resolved.Remarks != "bank details invalid" {
		t.Errorf("Unexpected handler/remarks: %d %q", resolved.HandledBy, resolved.Remarks)
	}

	after, err := service.GetWallet(ctx, wallet.Id)
	if err != nil {
		t.Fatalf("GetWallet failed: %v", err)
	}
	if !after.Balance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected balance 100, got %s", after.Balance.String())
	}
	if err := service.ReconcileWallet(ctx, wallet.Id); err != nil {
		t.Errorf("ReconcileWallet failed: %v", err)
	}
}

func TestResolveTransaction_OnlyFromProcessing(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	user := createUser(t, service, "ib@example.com", models.RoleIB, nil)
	wallet := fundWallet(t, service, user.Id, models.WalletRebate, "100")

	pending, err := service.PostWalletTransaction(ctx, store.PostWalletParams{
		WalletId: wallet.Id,
		Type:     models.TypeWithdrawal,
		Amount:   decimal.NewFromInt(10),
		Status:   models.StatusProcessing,
	})
	if err != nil {
		t.Fatalf("PostWalletTransaction failed: %v", err)
	}

	if _, err := service.ResolveTransaction(ctx, store.ResolveTransactionParams{
		TransactionId: pending.Id,
		Status:        models.StatusSuccessful,
		TicketId:      "T-1",
	}); err != nil {
		t.Fatalf("first resolve failed: %v", err)
	}

	_, err = service.ResolveTransaction(ctx, store.ResolveTransactionParams{
		TransactionId: pending.Id,
		Status:        models.StatusRejected,
		Refund:        true,
	})
	if !errors.Is(err, store.ErrInvalidAction) {
		t.Fatalf("Expected ErrInvalidAction, got %v", err)
	}

	after, err := service.GetWallet(ctx, wallet.Id)
	if err != nil {
		t.Fatalf("GetWallet failed: %v", err)
	}
	if !after.Balance.Equal(decimal.NewFromInt(90)) {
		t.Errorf("Expected balance 90, got %s", after.Balance.String())
	}
}

func TestGetTransactionHistory_Pagination(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	user := createUser(t, service, "ib@example.com", models.RoleIB, nil)
	wallet := fundWallet(t, service, user.Id, models.WalletRebate, "")

	for i := 1; i <= 5; i++ {
		if _, err := service.PostWalletTransaction(ctx, store.PostWalletParams{
			WalletId: wallet.Id,
			Type:     models.TypeRebateIn,
			Amount:   decimal.NewFromInt(int64(i)),
		}); err != nil {
			t.Fatalf("PostWalletTransaction failed: %v", err)
		}
	}

	page, err := service.GetTransactionHistory(ctx, user.Id, 2, 1)
	if err != nil {
		t.Fatalf("GetTransactionHistory failed: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(page))
	}
	// newest first: amounts 5,4,3,... offset 1 -> 4,3
	if !page[0].Amount.Equal(decimal.NewFromInt(4)) || !page[1].Amount.Equal(decimal.NewFromInt(3)) {
		t.Errorf("Unexpected page: %s, %s", page[0].Amount.String(), page[1].Amount.String())
	}
}
