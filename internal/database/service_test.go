package database

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"rebate-ledger-go/internal/models"
	"rebate-ledger-go/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewService_ValidatesConfig(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name string
		cfg  models.DatabaseConfig
	}{
		{"empty path", models.DatabaseConfig{MaxOpenConns: 1, PingTimeout: time.Second}},
		{"no connections", models.DatabaseConfig{Path: "x.db", PingTimeout: time.Second}},
		{"negative idle", models.DatabaseConfig{Path: "x.db", MaxOpenConns: 1, MaxIdleConns: -1, PingTimeout: time.Second}},
		{"no ping timeout", models.DatabaseConfig{Path: "x.db", MaxOpenConns: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewService(ctx, tc.cfg)
			assert.Error(t, err)
		})
	}
}

func TestDsn(t *testing.T) {
	got := dsn(models.DatabaseConfig{Path: "/tmp/ledger.db", BusyTimeout: 2 * time.Second})
	assert.True(t, strings.HasPrefix(got, "/tmp/ledger.db?"))
	assert.Contains(t, got, "_txlock=immediate")
	assert.Contains(t, got, "_busy_timeout=2000")
	assert.Contains(t, got, "_foreign_keys=on")
}

func TestPostWalletTransaction_RollsBackOnQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := newService(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM wallets\s+WHERE id = \?`).
		WithArgs(int64(9)).
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	_, err = service.PostWalletTransaction(context.Background(), store.PostWalletParams{
		WalletId: 9,
		Type:     models.TypeRebateIn,
		Amount:   decimal.NewFromInt(1),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostWalletTransaction_VersionConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := newService(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM wallets\s+WHERE id = \?`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "type", "balance", "version", "created_at", "updated_at"}).
			AddRow(int64(3), int64(1), "rebate_wallet", "10", int64(4), now, now))
	mock.ExpectQuery(`INSERT INTO transactions`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "transaction_number", "user_id", "category", "transaction_type", "wallet_id", "meta_login",
			"amount", "transaction_charges", "transaction_amount", "old_wallet_amount", "new_wallet_amount", "wallet_version",
			"ticket_id", "status", "remarks", "handle_by", "approved_at", "created_at", "updated_at",
		}).AddRow(int64(1), "n", int64(1), "rebate_wallet", "rebate_in", int64(3), nil,
			"5", "0", "5", "10", "15", int64(5), "", "successful", "", int64(0), now, now, now))
	mock.ExpectExec(`UPDATE wallets`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), int64(3), int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err = service.PostWalletTransaction(context.Background(), store.PostWalletParams{
		WalletId: 3,
		Type:     models.TypeRebateIn,
		Amount:   decimal.NewFromInt(5),
	})
	assert.ErrorIs(t, err, store.ErrConcurrentModification)
	assert.NoError(t, mock.ExpectationsWereMet())
}
