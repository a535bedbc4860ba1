package database

import (
	"context"
	"testing"
	"time"

	"rebate-ledger-go/internal/models"
	"rebate-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountTransaction_OpenAndComplete(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	user := createUser(t, service, "trader@example.com", models.RoleMember, nil)
	_, err := service.CreateTradingAccount(ctx, store.TradingAccountParams{UserId: user.Id, MetaLogin: 81001, AccountTypeId: 1})
	require.NoError(t, err)
	require.NoError(t, service.UpdateTradingAccountSnapshot(ctx, store.AccountSnapshot{
		MetaLogin: 81001,
		Balance:   decimal.NewFromInt(100),
		Credit:    decimal.NewFromInt(20),
		Equity:    decimal.NewFromInt(120),
	}))

	opened, err := service.OpenAccountTransaction(ctx, store.AccountTransactionParams{
		MetaLogin: 81001,
		Type:      models.TypeCreditIn,
		Amount:    decimal.NewFromInt(30),
		HandledBy: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, opened.Status)
	assert.Equal(t, models.CategoryTradingAccount, opened.Category)
	assert.True(t, opened.OldWalletAmount.Equal(decimal.NewFromInt(20)), "credit before")
	assert.True(t, opened.NewWalletAmount.Equal(decimal.NewFromInt(50)), "credit after")
	assert.Nil(t, opened.WalletId)

	completed, err := service.CompleteAccountTransaction(ctx, store.CompleteAccountTransactionParams{
		TransactionId: opened.Id,
		TicketId:      "900001",
		Balance:       decimal.NewFromInt(100),
		Credit:        decimal.NewFromInt(50),
		Equity:        decimal.NewFromInt(150),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccessful, completed.Status)
	assert.Equal(t, "900001", completed.TicketId)
	assert.NotNil(t, completed.ApprovedAt)

	account, err := service.GetTradingAccount(ctx, 81001)
	require.NoError(t, err)
	assert.True(t, account.Credit.Equal(decimal.NewFromInt(50)))
	assert.True(t, account.Equity.Equal(decimal.NewFromInt(150)))
	assert.NotNil(t, account.RefreshedAt)
}

func TestAccountTransaction_Guards(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	user := createUser(t, service, "trader@example.com", models.RoleMember, nil)
	_, err := service.CreateTradingAccount(ctx, store.TradingAccountParams{UserId: user.Id, MetaLogin: 81002, AccountTypeId: 1})
	require.NoError(t, err)

	_, err = service.OpenAccountTransaction(ctx, store.AccountTransactionParams{
		MetaLogin: 81002, Type: models.TypeBalanceOut, Amount: decimal.NewFromInt(1),
	})
	assert.ErrorIs(t, err, store.ErrInsufficientBalance)

	_, err = service.OpenAccountTransaction(ctx, store.AccountTransactionParams{
		MetaLogin: 81002, Type: models.TypeBonus, Amount: decimal.NewFromInt(1),
	})
	assert.ErrorIs(t, err, store.ErrInvalidAction)

	require.NoError(t, service.SetTradingAccountActive(ctx, 81002, false))
	_, err = service.OpenAccountTransaction(ctx, store.AccountTransactionParams{
		MetaLogin: 81002, Type: models.TypeBalanceIn, Amount: decimal.NewFromInt(1),
	})
	assert.ErrorIs(t, err, store.ErrInactiveAccount)

	active, err := service.GetActiveTradingAccounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestSumClosedTradeLots_Window(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	user := createUser(t, service, "trader@example.com", models.RoleMember, nil)
	_, err := service.CreateTradingAccount(ctx, store.TradingAccountParams{UserId: user.Id, MetaLogin: 81003, AccountTypeId: 1})
	require.NoError(t, err)

	from := time.Date(2026, 10, 5, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)
	inside := from.Add(36 * time.Hour)
	outside := to.Add(time.Second)
	atEnd := to

	deals := []store.TradeHistoryParams{
		{MetaLogin: 81003, DealId: "d1", Symbol: "EURUSD", TradeLots: decimal.RequireFromString("1.25"), Status: models.TradeStatusClosed, ClosedAt: &inside},
		{MetaLogin: 81003, DealId: "d2", Symbol: "XAUUSD", TradeLots: decimal.RequireFromString("0.75"), Status: models.TradeStatusClosed, ClosedAt: &from},
		{MetaLogin: 81003, DealId: "d3", Symbol: "EURUSD", TradeLots: decimal.NewFromInt(9), Status: models.TradeStatusClosed, ClosedAt: &outside},
		{MetaLogin: 81003, DealId: "d4", Symbol: "EURUSD", TradeLots: decimal.NewFromInt(9), Status: models.TradeStatusClosed, ClosedAt: &atEnd},
		{MetaLogin: 81003, DealId: "d5", Symbol: "EURUSD", TradeLots: decimal.NewFromInt(9), Status: "open"},
	}
	for _, d := range deals {
		require.NoError(t, service.RecordTradeHistory(ctx, d))
	}

	total, err := service.SumClosedTradeLots(ctx, []int64{user.Id}, from, to)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(2)), "got %s", total)
}
