package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rebate-ledger-go/internal/models"
	"rebate-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PostWalletTransaction atomically updates a wallet balance and records the
// transaction that moved it.
func (s *Service) PostWalletTransaction(ctx context.Context, params store.PostWalletParams) (*models.Transaction, error) {
	zap.L().Info("Posting wallet transaction",
		zap.Int64("wallet_id", params.WalletId),
		zap.String("type", string(params.Type)),
		zap.String("amount", params.Amount.String()),
		zap.String("status", string(params.Status)))

	var transaction *models.Transaction
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		t, err := postWallet(ctx, tx, params, s.now())
		transaction = t
		return err
	})
	if err != nil {
		zap.L().Warn("Wallet transaction rejected",
			zap.Int64("wallet_id", params.WalletId),
			zap.String("type", string(params.Type)),
			zap.Error(err))
		return nil, err
	}

	zap.L().Info("Transaction processed successfully",
		zap.Int64("transaction_id", transaction.Id),
		zap.Int64("wallet_id", params.WalletId),
		zap.String("old_balance", transaction.OldWalletAmount.String()),
		zap.String("new_balance", transaction.NewWalletAmount.String()),
		zap.Int64("wallet_version", transaction.WalletVersion))
	return transaction, nil
}

// postWallet is the shared ledger core: read the wallet, check funds, insert
// the audit row, then move the balance under the version check.
func postWallet(ctx context.Context, tx *sql.Tx, params store.PostWalletParams, now time.Time) (*models.Transaction, error) {
	if !params.Amount.IsPositive() {
		return nil, store.ErrInvalidAmount
	}
	if params.Charges.IsNegative() || params.Charges.GreaterThan(params.Amount) {
		return nil, fmt.Errorf("%w: charges %s exceed amount", store.ErrInvalidAmount, params.Charges.String())
	}
	if !params.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown transaction type %q", store.ErrInvalidAction, params.Type)
	}
	status := params.Status
	if status == "" {
		status = models.StatusSuccessful
	}

	wallet, err := getWallet(ctx, tx, params.WalletId)
	if err != nil {
		return nil, err
	}

	oldBalance := wallet.Balance
	var newBalance decimal.Decimal
	if params.Type.IsDebit() {
		if oldBalance.LessThan(params.Amount) {
			return nil, fmt.Errorf("%w: balance %s, requested %s",
				store.ErrInsufficientBalance, oldBalance.String(), params.Amount.String())
		}
		newBalance = oldBalance.Sub(params.Amount)
	} else {
		newBalance = oldBalance.Add(params.Amount)
	}

	var approvedAt *time.Time
	if status == models.StatusSuccessful {
		approvedAt = &now
	}

	transaction, err := scanTransaction(tx.QueryRowContext(ctx, queryInsertTransaction,
		uuid.New().String(), wallet.UserId, string(wallet.Type.Category()), string(params.Type),
		wallet.Id, nullInt64(params.MetaLogin),
		params.Amount, params.Charges, params.Amount.Sub(params.Charges), oldBalance, newBalance, wallet.Version+1,
		"", string(status), params.Remarks, params.HandledBy, nullTime(approvedAt), now, now))
	if err != nil {
		return nil, fmt.Errorf("failed to insert transaction: %w", err)
	}

	// Update wallet balance (with optimistic locking)
	if err := updateWalletBalance(ctx, tx, wallet, newBalance, now); err != nil {
		return nil, err
	}
	return transaction, nil
}

func updateWalletBalance(ctx context.Context, tx *sql.Tx, wallet *models.Wallet, newBalance decimal.Decimal, now time.Time) error {
	result, err := tx.ExecContext(ctx, queryUpdateWalletBalance, newBalance, now, wallet.Id, wallet.Version)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("balance update failed - %w", store.ErrConcurrentModification)
	}
	return nil
}

// ResolveTransaction finalizes a processing row. With Refund set the debited
// amount goes back to the wallet and the row is rewritten to describe the
// refund's balance movement.
func (s *Service) ResolveTransaction(ctx context.Context, params store.ResolveTransactionParams) (*models.Transaction, error) {
	zap.L().Info("Resolving transaction",
		zap.Int64("transaction_id", params.TransactionId),
		zap.String("status", string(params.Status)),
		zap.Bool("refund", params.Refund))

	switch params.Status {
	case models.StatusSuccessful, models.StatusRejected, models.StatusFailed:
	default:
		return nil, fmt.Errorf("%w: cannot resolve to %q", store.ErrInvalidAction, params.Status)
	}
	if params.Refund && params.Status == models.StatusSuccessful {
		return nil, fmt.Errorf("%w: successful transactions are not refunded", store.ErrInvalidAction)
	}

	var resolved *models.Transaction
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		t, err := getTransaction(ctx, tx, params.TransactionId)
		if err != nil {
			return err
		}
		if t.Status != models.StatusProcessing {
			return fmt.Errorf("%w: transaction %d is %s", store.ErrInvalidAction, t.Id, t.Status)
		}

		now := s.now()
		if params.Refund {
			if t.WalletId == nil || !t.TransactionType.IsDebit() {
				return fmt.Errorf("%w: transaction %d did not debit a wallet", store.ErrInvalidAction, t.Id)
			}
			wallet, err := getWallet(ctx, tx, *t.WalletId)
			if err != nil {
				return err
			}
			refunded := wallet.Balance.Add(t.Amount)
			if _, err := tx.ExecContext(ctx, queryRefundTransaction, wallet.Balance, refunded, wallet.Version+1, t.Id); err != nil {
				return fmt.Errorf("failed to record refund: %w", err)
			}
			if err := updateWalletBalance(ctx, tx, wallet, refunded, now); err != nil {
				return err
			}
		}

		ticket := t.TicketId
		if params.TicketId != "" {
			ticket = params.TicketId
		}
		remarks := t.Remarks
		if params.Remarks != "" {
			remarks = params.Remarks
		}
		result, err := tx.ExecContext(ctx, queryResolveTransaction,
			string(params.Status), ticket, params.HandledBy, remarks, now, now, t.Id)
		if err != nil {
			return fmt.Errorf("failed to resolve transaction: %w", err)
		}
		if n, err := result.RowsAffected(); err != nil {
			return fmt.Errorf("failed to check rows affected: %w", err)
		} else if n == 0 {
			return fmt.Errorf("resolve failed - %w", store.ErrConcurrentModification)
		}

		resolved, err = getTransaction(ctx, tx, t.Id)
		return err
	})
	if err != nil {
		zap.L().Warn("Failed to resolve transaction", zap.Int64("transaction_id", params.TransactionId), zap.Error(err))
		return nil, err
	}

	zap.L().Info("Transaction resolved",
		zap.Int64("transaction_id", resolved.Id),
		zap.String("status", string(resolved.Status)),
		zap.String("new_balance", resolved.NewWalletAmount.String()))
	return resolved, nil
}

func (s *Service) GetTransaction(ctx context.Context, transactionId int64) (*models.Transaction, error) {
	return getTransaction(ctx, s.db, transactionId)
}

func getTransaction(ctx context.Context, q querier, transactionId int64) (*models.Transaction, error) {
	t, err := scanTransaction(q.QueryRowContext(ctx, queryGetTransaction, transactionId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: transaction %d", store.ErrNotFound, transactionId)
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return t, nil
}

// GetTransactionHistory returns paginated transaction history for a user
func (s *Service) GetTransactionHistory(ctx context.Context, userId int64, limit, offset int) ([]models.Transaction, error) {
	zap.L().Debug("Getting transaction history",
		zap.Int64("user_id", userId),
		zap.Int("limit", limit),
		zap.Int("offset", offset))

	rows, err := s.db.QueryContext(ctx, queryGetTransactionHistory, userId, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}
	defer closeRows(rows)

	var transactions []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *t)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during transaction row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}

	return transactions, nil
}
