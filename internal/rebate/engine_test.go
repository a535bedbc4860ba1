package rebate

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"rebate-ledger-go/internal/database"
	"rebate-ledger-go/internal/models"
	"rebate-ledger-go/internal/store"
	"rebate-ledger-go/internal/validation"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	db     *database.Service
	engine *Engine
	root   *models.User
}

// newFixture builds root(IB, every cell = 10) with the catalog seeded.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := database.NewService(ctx, models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "rebate.db"),
		MaxOpenConns: 2,
		PingTimeout:  5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.SeedCatalog(ctx, []string{"standard"}, []string{"forex", "stocks", "indices", "commodities", "metals", "cryptocurrency"}))
	root, err := db.CreateUser(ctx, store.CreateUserParams{Name: "root", Email: "root@example.com", Role: models.RoleIB})
	require.NoError(t, err)

	var rates []store.AllocationRate
	for sg := int64(1); sg <= 6; sg++ {
		rates = append(rates, store.AllocationRate{AccountTypeId: 1, SymbolGroupId: sg, Amount: decimal.NewFromInt(10)})
	}
	require.NoError(t, db.UpdateAllocations(ctx, store.UpdateAllocationsParams{UserId: root.Id, Rates: rates}))

	return &fixture{db: db, engine: NewEngine(db, models.RebateConfig{SyncChunkSize: 4}), root: root}
}

func (f *fixture) member(t *testing.T, email string, upline *models.User) *models.User {
	t.Helper()
	u, err := f.db.CreateUser(context.Background(), store.CreateUserParams{Name: email, Email: email, UplineId: &upline.Id})
	require.NoError(t, err)
	return u
}

func rate(sg, amount int64) ProposedRate {
	return ProposedRate{AccountTypeId: 1, SymbolGroupId: sg, Amount: decimal.NewFromInt(amount)}
}

func TestUpgradeToIB_RejectsRateAboveUpline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.member(t, "m@example.com", f.root)

	err := f.engine.UpgradeToIB(ctx, RatesRequest{UserId: m.Id, Rates: []ProposedRate{rate(1, 12)}})
	fields, ok := validation.Fields(err)
	require.True(t, ok, "expected a validation error, got %v", err)
	assert.Contains(t, fields, "rates[0].amount")

	unchanged, err := f.db.GetUserById(ctx, m.Id)
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, unchanged.Role)
	rows, err := f.db.GetAllocations(ctx, m.Id)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestUpgradeToIB_AcceptsRateWithinUpline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.member(t, "m@example.com", f.root)

	require.NoError(t, f.engine.UpgradeToIB(ctx, RatesRequest{UserId: m.Id, Rates: []ProposedRate{rate(1, 8)}, EditedBy: 1}))

	got, err := f.db.GetAllocation(ctx, m.Id, 1, 1)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(8)))

	rows, err := f.db.GetAllocations(ctx, m.Id)
	require.NoError(t, err)
	assert.Len(t, rows, 6)

	upline, err := f.engine.UplineRate(ctx, m.Id, 1, 1)
	require.NoError(t, err)
	assert.True(t, upline.Equal(decimal.NewFromInt(10)))

	assert.ErrorIs(t, f.engine.UpgradeToIB(ctx, RatesRequest{UserId: m.Id}), store.ErrAlreadyIB)
}

func TestUpgradeToIB_ReportsEveryBadField(t *testing.T) {
	f := newFixture(t)
	m := f.member(t, "m@example.com", f.root)

	err := f.engine.UpgradeToIB(context.Background(), RatesRequest{
		UserId: m.Id,
		Rates: []ProposedRate{
			rate(1, 5),
			rate(2, -1),
			rate(1, 4),
			{AccountTypeId: 1, SymbolGroupId: 99, Amount: decimal.NewFromInt(1)},
		},
	})
	fields, ok := validation.Fields(err)
	require.True(t, ok, "expected a validation error, got %v", err)
	assert.NotContains(t, fields, "rates[0].amount")
	assert.Equal(t, "must be at least 0", fields["rates[1].amount"])
	assert.Equal(t, "duplicates rates[0]", fields["rates[2].amount"])
	assert.Contains(t, fields, "rates[3].amount")
}

func TestUpdateRates_FloorFromDownline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mid := f.member(t, "mid@example.com", f.root)
	require.NoError(t, f.engine.UpgradeToIB(ctx, RatesRequest{UserId: mid.Id, Rates: []ProposedRate{rate(1, 8), rate(2, 8)}}))
	a := f.member(t, "a@example.com", mid)
	b := f.member(t, "b@example.com", mid)
	require.NoError(t, f.engine.UpgradeToIB(ctx, RatesRequest{UserId: a.Id, Rates: []ProposedRate{rate(1, 3)}}))
	require.NoError(t, f.engine.UpgradeToIB(ctx, RatesRequest{UserId: b.Id, Rates: []ProposedRate{rate(1, 6), rate(2, 2)}}))

	rollup, err := f.engine.ComputeDownlineRollup(ctx, mid.Id, 1)
	require.NoError(t, err)
	require.Len(t, rollup, 6)
	assert.True(t, rollup[0].Amount.Equal(decimal.NewFromInt(6)), "max, not sum: %s", rollup[0].Amount)
	assert.True(t, rollup[1].Amount.Equal(decimal.NewFromInt(2)))

	err = f.engine.UpdateRates(ctx, RatesRequest{UserId: mid.Id, Rates: []ProposedRate{rate(1, 5)}})
	fields, ok := validation.Fields(err)
	require.True(t, ok, "expected a validation error, got %v", err)
	assert.Contains(t, fields["rates[0].amount"], "downline")

	require.NoError(t, f.engine.UpdateRates(ctx, RatesRequest{UserId: mid.Id, Rates: []ProposedRate{rate(1, 6)}}))
}

func TestSyncMissingAllocations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The root already has all six cells.
	inserted, err := f.engine.SyncMissingAllocations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)

	require.NoError(t, f.db.SeedCatalog(ctx, []string{"premium"}, nil))
	inserted, err = f.engine.SyncMissingAllocations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, inserted)

	inserted, err = f.engine.SyncMissingAllocations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)
}

func TestUplineRate_Root(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.UplineRate(context.Background(), f.root.Id, 1, 1)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRatesRequest_MissingUserKeepsFieldErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := RatesRequest{Rates: []ProposedRate{rate(1, -1)}}

	for name, call := range map[string]func(context.Context, RatesRequest) error{
		"upgrade": f.engine.UpgradeToIB,
		"update":  f.engine.UpdateRates,
	} {
		err := call(ctx, req)
		assert.NotErrorIs(t, err, store.ErrNotFound, name)
		fields, ok := validation.Fields(err)
		require.True(t, ok, "%s: expected a validation error, got %v", name, err)
		assert.Equal(t, "is required", fields["user_id"], name)
		assert.Equal(t, "must be at least 0", fields["rates[0].amount"], name)
	}
}
