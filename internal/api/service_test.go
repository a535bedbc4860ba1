package api

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"rebate-ledger-go/internal/database"
	"rebate-ledger-go/internal/ledger"
	"rebate-ledger-go/internal/models"
	"rebate-ledger-go/internal/platform"
	"rebate-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type downPlatform struct{}

func (downPlatform) GetUser(context.Context, int64) (*platform.AccountState, error) {
	return nil, platform.ErrUnreachable
}

func (downPlatform) CreateTrade(context.Context, platform.TradeRequest) (*platform.TradeResult, error) {
	return nil, errors.New("dial tcp 10.0.0.7:443: connection refused")
}

func setupService(t *testing.T) (*LedgerService, *database.Service, *models.User) {
	t.Helper()
	ctx := context.Background()

	db, err := database.NewService(ctx, models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "api.db"),
		MaxOpenConns: 2,
		PingTimeout:  5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.SeedCatalog(ctx, []string{"standard"}, []string{"forex"}))
	user, err := db.CreateUser(ctx, store.CreateUserParams{Name: "ib", Email: "ib@example.com", Role: models.RoleIB})
	require.NoError(t, err)

	return NewLedgerService(db, ledger.NewEngine(db, downPlatform{})), db, user
}

func TestHealthCheck(t *testing.T) {
	svc, _, _ := setupService(t)
	assert.NoError(t, svc.HealthCheck(context.Background()))
}

func TestAdjustWallet_ResultShapes(t *testing.T) {
	svc, db, user := setupService(t)
	ctx := context.Background()
	wallet, err := db.EnsureWallet(ctx, user.Id, models.WalletRebate)
	require.NoError(t, err)

	ok, err := svc.AdjustWallet(ctx, ledger.WalletAdjustmentRequest{
		WalletId: wallet.Id, Action: models.TypeRebateIn, Amount: decimal.NewFromInt(25),
	})
	require.NoError(t, err)
	assert.True(t, ok.Success)
	assert.True(t, ok.NewBalance.Equal(decimal.NewFromInt(25)))

	invalid, err := svc.AdjustWallet(ctx, ledger.WalletAdjustmentRequest{WalletId: wallet.Id, Action: "gift"})
	require.NoError(t, err)
	assert.False(t, invalid.Success)
	assert.Contains(t, invalid.Fields, "action")
	assert.Contains(t, invalid.Fields, "amount")

	short, err := svc.AdjustWallet(ctx, ledger.WalletAdjustmentRequest{
		WalletId: wallet.Id, Action: models.TypeRebateOut, Amount: decimal.NewFromInt(30),
	})
	require.NoError(t, err)
	assert.False(t, short.Success)
	assert.Contains(t, short.Error, store.ErrInsufficientBalance.Error())

	balances, err := svc.GetUserBalances(ctx, user.Id)
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.True(t, balances[0].Balance.Equal(decimal.NewFromInt(25)))
	assert.NoError(t, svc.ReconcileUser(ctx, user.Id))
}

func TestAdjustAccount_HidesPlatformDetails(t *testing.T) {
	svc, db, user := setupService(t)
	ctx := context.Background()
	_, err := db.CreateTradingAccount(ctx, store.TradingAccountParams{UserId: user.Id, MetaLogin: 7001, AccountTypeId: 1})
	require.NoError(t, err)

	result, err := svc.AdjustAccount(ctx, ledger.AccountAdjustmentRequest{
		MetaLogin: 7001, Action: models.TypeBalanceIn, Amount: decimal.NewFromInt(5),
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, ledger.ErrAdjustmentFailed.Error(), result.Error)
	assert.NotContains(t, result.Error, "10.0.0.7")
}

func TestWithdrawalRoundTrip(t *testing.T) {
	svc, db, user := setupService(t)
	ctx := context.Background()
	wallet, err := db.EnsureWallet(ctx, user.Id, models.WalletRebate)
	require.NoError(t, err)
	_, err = svc.AdjustWallet(ctx, ledger.WalletAdjustmentRequest{WalletId: wallet.Id, Action: models.TypeRebateIn, Amount: decimal.NewFromInt(50)})
	require.NoError(t, err)

	requested, err := svc.RequestWithdrawal(ctx, ledger.WithdrawalRequest{WalletId: wallet.Id, Amount: decimal.NewFromInt(20)})
	require.NoError(t, err)
	require.True(t, requested.Success)

	rejected, err := svc.ResolveWithdrawal(ctx, requested.TransactionId, 1, false, "duplicate request")
	require.NoError(t, err)
	assert.True(t, rejected.Success)
	assert.True(t, rejected.NewBalance.Equal(decimal.NewFromInt(50)))

	again, err := svc.ResolveWithdrawal(ctx, requested.TransactionId, 1, true, "")
	require.NoError(t, err)
	assert.False(t, again.Success)

	history, err := svc.GetTransactionHistory(ctx, user.Id, 1, 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}
