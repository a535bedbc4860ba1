package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rebate-ledger-go/internal/models"
	"rebate-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// EnsureWallet returns the user's wallet of the given type, creating an
// empty one on first use.
func (s *Service) EnsureWallet(ctx context.Context, userId int64, walletType models.WalletType) (*models.Wallet, error) {
	if !walletType.Valid() {
		return nil, fmt.Errorf("%w: unknown wallet type %q", store.ErrInvalidAction, walletType)
	}

	var wallet *models.Wallet
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getUserById(ctx, tx, userId); err != nil {
			return err
		}
		w, err := ensureWallet(ctx, tx, userId, walletType, s.now())
		wallet = w
		return err
	})
	return wallet, err
}

func ensureWallet(ctx context.Context, tx *sql.Tx, userId int64, walletType models.WalletType, now time.Time) (*models.Wallet, error) {
	if _, err := tx.ExecContext(ctx, queryInsertWallet, userId, string(walletType), now, now); err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}
	w, err := scanWallet(tx.QueryRowContext(ctx, queryGetUserWallet, userId, string(walletType)))
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}
	return w, nil
}

func (s *Service) GetWallet(ctx context.Context, walletId int64) (*models.Wallet, error) {
	return getWallet(ctx, s.db, walletId)
}

func getWallet(ctx context.Context, q querier, walletId int64) (*models.Wallet, error) {
	w, err := scanWallet(q.QueryRowContext(ctx, queryGetWallet, walletId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: wallet %d", store.ErrNotFound, walletId)
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return w, nil
}

func (s *Service) GetUserWallet(ctx context.Context, userId int64, walletType models.WalletType) (*models.Wallet, error) {
	w, err := scanWallet(s.db.QueryRowContext(ctx, queryGetUserWallet, userId, string(walletType)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s for user %d", store.ErrNotFound, walletType, userId)
		}
		zap.L().Error("Failed to get wallet", zap.Int64("user_id", userId), zap.String("type", string(walletType)), zap.Error(err))
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	zap.L().Debug("Retrieved wallet",
		zap.Int64("user_id", userId),
		zap.String("type", string(walletType)),
		zap.String("balance", w.Balance.String()))
	return w, nil
}

// GetUserWallets returns every wallet a user holds
func (s *Service) GetUserWallets(ctx context.Context, userId int64) ([]models.Wallet, error) {
	zap.L().Debug("Getting all wallets", zap.Int64("user_id", userId))
	return getUserWallets(ctx, s.db, userId)
}

func getUserWallets(ctx context.Context, q querier, userId int64) ([]models.Wallet, error) {
	rows, err := q.QueryContext(ctx, queryGetUserWallets, userId)
	if err != nil {
		return nil, fmt.Errorf("failed to get wallets: %w", err)
	}
	defer closeRows(rows)

	var wallets []models.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wallet: %w", err)
		}
		wallets = append(wallets, *w)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during wallet row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating wallet rows: %w", err)
	}
	return wallets, nil
}

// ReconcileWallet verifies that the wallet balance equals the post-balance
// of its highest-versioned ledger row and that the versions agree.
func (s *Service) ReconcileWallet(ctx context.Context, walletId int64) error {
	zap.L().Info("Reconciling wallet", zap.Int64("wallet_id", walletId))

	wallet, err := getWallet(ctx, s.db, walletId)
	if err != nil {
		return err
	}

	var ledgerBalance decimal.Decimal
	var ledgerVersion int64
	err = s.db.QueryRowContext(ctx, queryGetLatestWalletTransaction, walletId).Scan(&ledgerBalance, &ledgerVersion)
	if errors.Is(err, sql.ErrNoRows) {
		// A wallet with no ledger rows must still be in its initial state.
		ledgerBalance, ledgerVersion = decimal.Zero, 1
	} else if err != nil {
		return fmt.Errorf("failed to read wallet ledger: %w", err)
	}

	// Check if balances match (exact decimal comparison)
	if !wallet.Balance.Equal(ledgerBalance) || wallet.Version != ledgerVersion {
		zap.L().Error("Wallet reconciliation failed",
			zap.Int64("wallet_id", walletId),
			zap.String("wallet_balance", wallet.Balance.String()),
			zap.String("ledger_balance", ledgerBalance.String()),
			zap.Int64("wallet_version", wallet.Version),
			zap.Int64("ledger_version", ledgerVersion),
			zap.String("difference", wallet.Balance.Sub(ledgerBalance).String()))
		return fmt.Errorf("%w: wallet=%s@v%d, ledger=%s@v%d", store.ErrBalanceMismatch,
			wallet.Balance.String(), wallet.Version, ledgerBalance.String(), ledgerVersion)
	}

	zap.L().Info("Wallet reconciliation successful",
		zap.Int64("wallet_id", walletId),
		zap.String("balance", wallet.Balance.String()),
		zap.Int64("version", wallet.Version))
	return nil
}
