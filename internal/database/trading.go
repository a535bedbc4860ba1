package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rebate-ledger-go/internal/models"
	"rebate-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (s *Service) CreateTradingAccount(ctx context.Context, params store.TradingAccountParams) (*models.TradingAccount, error) {
	var account *models.TradingAccount
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getUserById(ctx, tx, params.UserId); err != nil {
			return err
		}
		now := s.now()
		a, err := scanTradingAccount(tx.QueryRowContext(ctx, queryInsertTradingAccount,
			params.UserId, params.MetaLogin, params.AccountTypeId, now, now))
		if err != nil {
			return fmt.Errorf("unable to insert trading account: %w", err)
		}
		account = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Trading account registered",
		zap.Int64("user_id", params.UserId),
		zap.Int64("meta_login", params.MetaLogin))
	return account, nil
}

func (s *Service) GetTradingAccount(ctx context.Context, metaLogin int64) (*models.TradingAccount, error) {
	return getTradingAccount(ctx, s.db, metaLogin)
}

func getTradingAccount(ctx context.Context, q querier, metaLogin int64) (*models.TradingAccount, error) {
	a, err := scanTradingAccount(q.QueryRowContext(ctx, queryGetTradingAccount, metaLogin))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: trading account %d", store.ErrNotFound, metaLogin)
		}
		return nil, fmt.Errorf("unable to query trading account: %w", err)
	}
	return a, nil
}

func (s *Service) GetActiveTradingAccounts(ctx context.Context) ([]models.TradingAccount, error) {
	rows, err := s.db.QueryContext(ctx, queryGetActiveTradingAccounts)
	if err != nil {
		return nil, fmt.Errorf("unable to query trading accounts: %w", err)
	}
	defer closeRows(rows)

	var accounts []models.TradingAccount
	for rows.Next() {
		a, err := scanTradingAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan trading account: %w", err)
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trading account rows: %w", err)
	}
	return accounts, nil
}

func (s *Service) UpdateTradingAccountSnapshot(ctx context.Context, snapshot store.AccountSnapshot) error {
	now := s.now()
	result, err := s.db.ExecContext(ctx, queryUpdateTradingAccountSnapshot,
		snapshot.Balance, snapshot.Credit, snapshot.Equity, now, now, snapshot.MetaLogin)
	if err != nil {
		return fmt.Errorf("unable to update trading account: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	} else if n == 0 {
		return fmt.Errorf("%w: trading account %d", store.ErrNotFound, snapshot.MetaLogin)
	}
	return nil
}

func (s *Service) SetTradingAccountActive(ctx context.Context, metaLogin int64, active bool) error {
	result, err := s.db.ExecContext(ctx, querySetTradingAccountActive, active, s.now(), metaLogin)
	if err != nil {
		return fmt.Errorf("unable to update trading account: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	} else if n == 0 {
		return fmt.Errorf("%w: trading account %d", store.ErrNotFound, metaLogin)
	}

	zap.L().Info("Trading account status changed", zap.Int64("meta_login", metaLogin), zap.Bool("active", active))
	return nil
}

func isAccountAdjustment(t models.TransactionType) bool {
	switch t {
	case models.TypeDeposit, models.TypeWithdrawal, models.TypeBalanceIn, models.TypeBalanceOut,
		models.TypeCreditIn, models.TypeCreditOut:
		return true
	}
	return false
}

// OpenAccountTransaction writes a processing row describing the balance (or
// credit) movement an adjustment is about to make on the platform. The local
// mirror is not touched until the platform confirms.
func (s *Service) OpenAccountTransaction(ctx context.Context, params store.AccountTransactionParams) (*models.Transaction, error) {
	if !params.Amount.IsPositive() {
		return nil, store.ErrInvalidAmount
	}
	if !isAccountAdjustment(params.Type) {
		return nil, fmt.Errorf("%w: %q is not an account adjustment", store.ErrInvalidAction, params.Type)
	}

	var transaction *models.Transaction
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		account, err := getTradingAccount(ctx, tx, params.MetaLogin)
		if err != nil {
			return err
		}
		if !account.Active {
			return fmt.Errorf("%w: %d", store.ErrInactiveAccount, params.MetaLogin)
		}

		current := account.Balance
		if params.Type.TouchesCredit() {
			current = account.Credit
		}
		var next decimal.Decimal
		if params.Type.IsDebit() {
			if current.LessThan(params.Amount) {
				return fmt.Errorf("%w: account holds %s, requested %s",
					store.ErrInsufficientBalance, current.String(), params.Amount.String())
			}
			next = current.Sub(params.Amount)
		} else {
			next = current.Add(params.Amount)
		}

		now := s.now()
		metaLogin := account.MetaLogin
		transaction, err = scanTransaction(tx.QueryRowContext(ctx, queryInsertTransaction,
			uuid.New().String(), account.UserId, string(models.CategoryTradingAccount), string(params.Type),
			nil, metaLogin,
			params.Amount, decimal.Zero, params.Amount, current, next, 0,
			"", string(models.StatusProcessing), params.Remarks, params.HandledBy, nil, now, now))
		if err != nil {
			return fmt.Errorf("failed to insert transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Account adjustment opened",
		zap.Int64("transaction_id", transaction.Id),
		zap.Int64("meta_login", params.MetaLogin),
		zap.String("type", string(params.Type)),
		zap.String("amount", params.Amount.String()))
	return transaction, nil
}

// CompleteAccountTransaction marks an adjustment successful and stores the
// platform-reported balances on both the row and the account mirror.
func (s *Service) CompleteAccountTransaction(ctx context.Context, params store.CompleteAccountTransactionParams) (*models.Transaction, error) {
	var completed *models.Transaction
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		t, err := getTransaction(ctx, tx, params.TransactionId)
		if err != nil {
			return err
		}
		if t.Status != models.StatusProcessing || t.MetaLogin == nil {
			return fmt.Errorf("%w: transaction %d cannot be completed", store.ErrInvalidAction, t.Id)
		}

		reported := params.Balance
		if t.TransactionType.TouchesCredit() {
			reported = params.Credit
		}

		now := s.now()
		if _, err := tx.ExecContext(ctx, queryCompleteAccountTransaction, params.TicketId, reported, now, now, t.Id); err != nil {
			return fmt.Errorf("failed to complete transaction: %w", err)
		}
		if _, err := tx.ExecContext(ctx, queryUpdateTradingAccountSnapshot,
			params.Balance, params.Credit, params.Equity, now, now, *t.MetaLogin); err != nil {
			return fmt.Errorf("unable to update trading account: %w", err)
		}

		completed, err = getTransaction(ctx, tx, t.Id)
		return err
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Account adjustment completed",
		zap.Int64("transaction_id", completed.Id),
		zap.String("ticket_id", completed.TicketId),
		zap.String("new_balance", completed.NewWalletAmount.String()))
	return completed, nil
}

// RecordTradeHistory upserts a deal by its platform deal id.
func (s *Service) RecordTradeHistory(ctx context.Context, params store.TradeHistoryParams) error {
	_, err := s.db.ExecContext(ctx, queryInsertTradeHistory,
		params.MetaLogin, params.DealId, params.Symbol, params.TradeLots, params.Status,
		nullTime(params.ClosedAt), s.now())
	if err != nil {
		return fmt.Errorf("unable to record trade history: %w", err)
	}
	return nil
}
