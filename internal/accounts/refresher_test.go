package accounts

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"rebate-ledger-go/internal/database"
	"rebate-ledger-go/internal/models"
	"rebate-ledger-go/internal/platform"
	"rebate-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlatform struct {
	mu          sync.Mutex
	unreachable map[int64]bool
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *fakePlatform) GetUser(ctx context.Context, metaLogin int64) (*platform.AccountState, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxInFlight.Load()
		if n <= seen || f.maxInFlight.CompareAndSwap(seen, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	down := f.unreachable[metaLogin]
	f.mu.Unlock()
	if down {
		return nil, platform.ErrUnreachable
	}
	return &platform.AccountState{
		MetaLogin: metaLogin,
		Balance:   decimal.NewFromInt(metaLogin),
		Credit:    decimal.NewFromInt(1),
		Equity:    decimal.NewFromInt(metaLogin + 1),
	}, nil
}

func setup(t *testing.T, logins ...int64) *database.Service {
	t.Helper()
	ctx := context.Background()

	db, err := database.NewService(ctx, models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "accounts.db"),
		MaxOpenConns: 4,
		PingTimeout:  5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.SeedCatalog(ctx, []string{"standard"}, []string{"forex"}))
	user, err := db.CreateUser(ctx, store.CreateUserParams{Name: "u", Email: "u@example.com"})
	require.NoError(t, err)
	for _, login := range logins {
		_, err := db.CreateTradingAccount(ctx, store.TradingAccountParams{UserId: user.Id, MetaLogin: login, AccountTypeId: 1})
		require.NoError(t, err)
	}
	return db
}

func TestRefreshAll(t *testing.T) {
	ctx := context.Background()
	db := setup(t, 101, 102, 103, 104, 105, 106)
	p := &fakePlatform{unreachable: map[int64]bool{103: true}}
	r := NewRefresher(db, p, models.RebateConfig{RefreshConcurrency: 2, RefreshAccountTimeout: time.Second})

	summary, err := r.RefreshAll(ctx)
	assert.ErrorIs(t, err, platform.ErrUnreachable)
	assert.Equal(t, Summary{Total: 6, Refreshed: 5, Deactivated: 1}, summary)
	assert.LessOrEqual(t, p.maxInFlight.Load(), int32(2))

	refreshed, err := db.GetTradingAccount(ctx, 105)
	require.NoError(t, err)
	assert.True(t, refreshed.Balance.Equal(decimal.NewFromInt(105)))
	assert.NotNil(t, refreshed.RefreshedAt)

	down, err := db.GetTradingAccount(ctx, 103)
	require.NoError(t, err)
	assert.False(t, down.Active)

	active, err := db.GetActiveTradingAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 5)
}

func TestRefreshAll_CancelledBatchDoesNotDeactivate(t *testing.T) {
	db := setup(t, 201, 202)
	p := &fakePlatform{unreachable: map[int64]bool{201: true, 202: true}}
	r := NewRefresher(db, p, models.RebateConfig{RefreshConcurrency: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.RefreshAll(ctx)
	assert.Error(t, err)

	active, err := db.GetActiveTradingAccounts(context.Background())
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestRefreshOne(t *testing.T) {
	db := setup(t, 301)
	r := NewRefresher(db, &fakePlatform{}, models.RebateConfig{})

	require.NoError(t, r.RefreshOne(context.Background(), 301))
	account, err := db.GetTradingAccount(context.Background(), 301)
	require.NoError(t, err)
	assert.True(t, account.Equity.Equal(decimal.NewFromInt(302)))
}
