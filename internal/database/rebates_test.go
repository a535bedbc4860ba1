package database

import (
	"context"
	"testing"

	"rebate-ledger-go/internal/models"
	"rebate-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpgradeToIB_WritesFullRowSet(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	root := createUser(t, service, "root@example.com", models.RoleIB, nil)
	setRates(t, service, root, 10)
	member := createUser(t, service, "member@example.com", models.RoleMember, root)

	err := service.UpgradeToIB(ctx, store.UpgradeToIBParams{
		UserId:   member.Id,
		Rates:    []store.AllocationRate{{AccountTypeId: 1, SymbolGroupId: 1, Amount: decimal.NewFromInt(8)}},
		EditedBy: 1,
	})
	require.NoError(t, err)

	promoted, err := service.GetUserById(ctx, member.Id)
	require.NoError(t, err)
	assert.Equal(t, models.RoleIB, promoted.Role)

	rows, err := service.GetAllocations(ctx, member.Id)
	require.NoError(t, err)
	assert.Len(t, rows, 12)
	for _, r := range rows {
		if r.AccountTypeId == 1 && r.SymbolGroupId == 1 {
			assert.True(t, r.Amount.Equal(decimal.NewFromInt(8)), "got %s", r.Amount)
		} else {
			assert.True(t, r.Amount.IsZero(), "cell %d/%d got %s", r.AccountTypeId, r.SymbolGroupId, r.Amount)
		}
	}

	wallet, err := service.GetUserWallet(ctx, member.Id, models.WalletRebate)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.IsZero())
}

func TestUpgradeToIB_Guards(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	root := createUser(t, service, "root@example.com", models.RoleIB, nil)
	setRates(t, service, root, 10)
	member := createUser(t, service, "member@example.com", models.RoleMember, root)

	err := service.UpgradeToIB(ctx, store.UpgradeToIBParams{
		UserId: member.Id,
		Rates:  []store.AllocationRate{{AccountTypeId: 1, SymbolGroupId: 1, Amount: decimal.NewFromInt(12)}},
	})
	assert.ErrorIs(t, err, store.ErrRateExceedsCeiling)

	unchanged, err := service.GetUserById(ctx, member.Id)
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, unchanged.Role)
	rows, err := service.GetAllocations(ctx, member.Id)
	require.NoError(t, err)
	assert.Empty(t, rows)

	require.NoError(t, service.UpgradeToIB(ctx, store.UpgradeToIBParams{UserId: member.Id}))
	assert.ErrorIs(t, service.UpgradeToIB(ctx, store.UpgradeToIBParams{UserId: member.Id}), store.ErrAlreadyIB)
}

func TestUpdateAllocations_CeilingAndFloor(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	root := createUser(t, service, "root@example.com", models.RoleIB, nil)
	setRates(t, service, root, 10)
	mid := createUser(t, service, "mid@example.com", models.RoleMember, root)
	require.NoError(t, service.UpgradeToIB(ctx, store.UpgradeToIBParams{
		UserId: mid.Id,
		Rates:  []store.AllocationRate{{AccountTypeId: 1, SymbolGroupId: 1, Amount: decimal.NewFromInt(8)}},
	}))
	leaf := createUser(t, service, "leaf@example.com", models.RoleMember, mid)
	require.NoError(t, service.UpgradeToIB(ctx, store.UpgradeToIBParams{
		UserId: leaf.Id,
		Rates:  []store.AllocationRate{{AccountTypeId: 1, SymbolGroupId: 1, Amount: decimal.NewFromInt(5)}},
	}))

	cell := func(amount int64) []store.AllocationRate {
		return []store.AllocationRate{{AccountTypeId: 1, SymbolGroupId: 1, Amount: decimal.NewFromInt(amount)}}
	}

	err := service.UpdateAllocations(ctx, store.UpdateAllocationsParams{UserId: mid.Id, Rates: cell(11)})
	assert.ErrorIs(t, err, store.ErrRateExceedsCeiling)

	err = service.UpdateAllocations(ctx, store.UpdateAllocationsParams{UserId: mid.Id, Rates: cell(4)})
	assert.ErrorIs(t, err, store.ErrRateBelowFloor)

	require.NoError(t, service.UpdateAllocations(ctx, store.UpdateAllocationsParams{UserId: mid.Id, Rates: cell(6), EditedBy: 3}))
	allocation, err := service.GetAllocation(ctx, mid.Id, 1, 1)
	require.NoError(t, err)
	assert.True(t, allocation.Amount.Equal(decimal.NewFromInt(6)))
	assert.Equal(t, int64(3), allocation.EditedBy)

	downline, err := service.GetDirectDownlineAllocations(ctx, mid.Id, 1)
	require.NoError(t, err)
	assert.Len(t, downline, 6)

	member := createUser(t, service, "plain@example.com", models.RoleMember, root)
	err = service.UpdateAllocations(ctx, store.UpdateAllocationsParams{UserId: member.Id, Rates: cell(1)})
	assert.ErrorIs(t, err, store.ErrNotIB)
}

func TestInsertMissingAllocations_Idempotent(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createUser(t, service, "ib1@example.com", models.RoleIB, nil)
	createUser(t, service, "ib2@example.com", models.RoleIB, nil)
	createUser(t, service, "member@example.com", models.RoleMember, nil)

	inserted, err := service.InsertMissingAllocations(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 24, inserted)

	again, err := service.InsertMissingAllocations(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, again)

	// A new symbol group is backfilled for every IB.
	require.NoError(t, service.SeedCatalog(ctx, nil, []string{"energies"}))
	inserted, err = service.InsertMissingAllocations(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, inserted)
}
