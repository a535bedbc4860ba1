package database

import (
	"context"
	"errors"
	"testing"

	"rebate-ledger-go/internal/models"
	"rebate-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

func TestEnsureWallet_Idempotent(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	user := createUser(t, service, "ib@example.com", models.RoleIB, nil)

	first, err := service.EnsureWallet(ctx, user.Id, models.WalletRebate)
	if err != nil {
		t.Fatalf("EnsureWallet failed: %v", err)
	}
	second, err := service.EnsureWallet(ctx, user.Id, models.WalletRebate)
	if err != nil {
		t.Fatalf("EnsureWallet failed: %v", err)
	}

	if first.Id != second.Id {
		t.Errorf("Expected the same wallet, got %d and %d", first.Id, second.Id)
	}
	if !first.Balance.IsZero() || first.Version != 1 {
		t.Errorf("Expected empty wallet at version 1, got %s@%d", first.Balance.String(), first.Version)
	}
}

func TestEnsureWallet_UnknownType(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	user := createUser(t, service, "ib@example.com", models.RoleIB, nil)
	_, err := service.EnsureWallet(context.Background(), user.Id, models.WalletType("cash_wallet"))
	if !errors.Is(err, store.ErrInvalidAction) {
		t.Errorf("Expected ErrInvalidAction, got %v", err)
	}
}

func TestGetUserWallets(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	user := createUser(t, service, "ib@example.com", models.RoleIB, nil)
	fundWallet(t, service, user.Id, models.WalletRebate, "5")
	fundWallet(t, service, user.Id, models.WalletBonus, "")

	wallets, err := service.GetUserWallets(ctx, user.Id)
	if err != nil {
		t.Fatalf("GetUserWallets failed: %v", err)
	}
	if len(wallets) != 2 {
		t.Fatalf("Expected 2 wallets, got %d", len(wallets))
	}
	// ordered by type: bonus_wallet, rebate_wallet
	if wallets[0].Type != models.WalletBonus || wallets[1].Type != models.WalletRebate {
		t.Errorf("Unexpected order: %s, %s", wallets[0].Type, wallets[1].Type)
	}
	if !wallets[1].Balance.Equal(decimal.NewFromInt(5)) {
		t.Errorf("Expected rebate balance 5, got %s", wallets[1].Balance.String())
	}
}

func TestGetUserWallet_NotFound(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	user := createUser(t, service, "ib@example.com", models.RoleIB, nil)
	_, err := service.GetUserWallet(context.Background(), user.Id, models.WalletBonus)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestReconcileWallet_EmptyWallet(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	user := createUser(t, service, "ib@example.com", models.RoleIB, nil)
	wallet := fundWallet(t, service, user.Id, models.WalletRebate, "")

	if err := service.ReconcileWallet(context.Background(), wallet.Id); err != nil {
		t.Errorf("ReconcileWallet failed on empty wallet: %v", err)
	}
}

func TestReconcileWallet_DetectsDrift(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	user := createUser(t, service, "ib@example.com", models.RoleIB, nil)
	wallet := fundWallet(t, service, user.Id, models.WalletRebate, "25")

	if err := service.ReconcileWallet(ctx, wallet.Id); err != nil {
		t.Fatalf("ReconcileWallet failed before drift: %v", err)
	}

	// Simulate an out-of-band write that bypasses the ledger.
	if _, err := service.db.ExecContext(ctx, "UPDATE wallets SET balance = '26' WHERE id = ?", wallet.Id); err != nil {
		t.Fatalf("Failed to tamper with wallet: %v", err)
	}

	err := service.ReconcileWallet(ctx, wallet.Id)
	if !errors.Is(err, store.ErrBalanceMismatch) {
		t.Errorf("Expected ErrBalanceMismatch, got %v", err)
	}
}
