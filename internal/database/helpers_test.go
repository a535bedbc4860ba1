package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"rebate-ledger-go/internal/models"
	"rebate-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

var testSymbolGroups = []string{"forex", "stocks", "indices", "commodities", "metals", "cryptocurrency"}

// setupTestDb opens a file-backed database so every pooled connection sees
// the same data.
func setupTestDb(t *testing.T) (*Service, func()) {
	t.Helper()

	cfg := models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		PingTimeout:  5 * time.Second,
		BusyTimeout:  5 * time.Second,
	}
	service, err := NewService(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	if err := service.SeedCatalog(context.Background(), []string{"standard", "premium"}, testSymbolGroups); err != nil {
		t.Fatalf("Failed to seed catalog: %v", err)
	}

	return service, service.Close
}

func createUser(t *testing.T, s *Service, email string, role models.Role, upline *models.User) *models.User {
	t.Helper()

	params := store.CreateUserParams{Name: email, Email: email, Role: role}
	if upline != nil {
		params.UplineId = &upline.Id
	}
	user, err := s.CreateUser(context.Background(), params)
	if err != nil {
		t.Fatalf("CreateUser(%s) failed: %v", email, err)
	}
	return user
}

// setRates gives an IB the same rate on every cell of the catalog.
func setRates(t *testing.T, s *Service, user *models.User, amount int64) {
	t.Helper()

	ctx := context.Background()
	types, err := s.ListAccountTypes(ctx)
	if err != nil {
		t.Fatalf("ListAccountTypes failed: %v", err)
	}
	groups, err := s.ListSymbolGroups(ctx)
	if err != nil {
		t.Fatalf("ListSymbolGroups failed: %v", err)
	}

	var rates []store.AllocationRate
	for _, at := range types {
		for _, sg := range groups {
			rates = append(rates, store.AllocationRate{AccountTypeId: at.Id, SymbolGroupId: sg.Id, Amount: decimal.NewFromInt(amount)})
		}
	}
	if err := s.UpdateAllocations(ctx, store.UpdateAllocationsParams{UserId: user.Id, Rates: rates, EditedBy: 1}); err != nil {
		t.Fatalf("UpdateAllocations failed: %v", err)
	}
}

func fundWallet(t *testing.T, s *Service, userId int64, walletType models.WalletType, amount string) *models.Wallet {
	t.Helper()

	ctx := context.Background()
	wallet, err := s.EnsureWallet(ctx, userId, walletType)
	if err != nil {
		t.Fatalf("EnsureWallet failed: %v", err)
	}
	if amount != "" {
		_, err = s.PostWalletTransaction(ctx, store.PostWalletParams{
			WalletId: wallet.Id,
			Type:     models.TypeRebateIn,
			Amount:   decimal.RequireFromString(amount),
		})
		if err != nil {
			t.Fatalf("funding wallet failed: %v", err)
		}
	}
	wallet, err = s.GetWallet(ctx, wallet.Id)
	if err != nil {
		t.Fatalf("GetWallet failed: %v", err)
	}
	return wallet
}
