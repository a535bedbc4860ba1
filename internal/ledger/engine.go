/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package ledger

import (
	"context"
	"errors"
	"fmt"

	"rebate-ledger-go/internal/models"
	"rebate-ledger-go/internal/platform"
	"rebate-ledger-go/internal/store"
	"rebate-ledger-go/internal/validation"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrAdjustmentFailed is the only error callers see when the trading
// platform rejects or cannot be reached for an adjustment.
var ErrAdjustmentFailed = errors.New("adjustment failed, please try again later")

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Platform is the part of the trading platform bridge the ledger drives.
type Platform interface {
	GetUser(ctx context.Context, metaLogin int64) (*platform.AccountState, error)
	CreateTrade(ctx context.Context, trade platform.TradeRequest) (*platform.TradeResult, error)
}

type WalletAdjustmentRequest struct {
	WalletId  int64                  `json:"wallet_id" validate:"required"`
	Action    models.TransactionType `json:"action" validate:"required,oneof=rebate_in rebate_out bonus penalty_fee"`
	Amount    decimal.Decimal        `json:"amount" validate:"gt=0"`
	Remarks   string                 `json:"remarks"`
	HandledBy int64                  `json:"handled_by"`
}

type WithdrawalRequest struct {
	WalletId  int64           `json:"wallet_id" validate:"required"`
	Amount    decimal.Decimal `json:"amount" validate:"gt=0"`
	Charges   decimal.Decimal `json:"charges" validate:"gte=0"`
	Remarks   string          `json:"remarks"`
	HandledBy int64           `json:"handled_by"`
}

type AccountAdjustmentRequest struct {
	MetaLogin int64                  `json:"meta_login" validate:"required"`
	Action    models.TransactionType `json:"action" validate:"required,oneof=balance_in balance_out credit_in credit_out"`
	Amount    decimal.Decimal        `json:"amount" validate:"gt=0"`
	Comment   string                 `json:"comment"`
	HandledBy int64                  `json:"handled_by"`
}

type TransferRequest struct {
	WalletId  int64           `json:"wallet_id" validate:"required"`
	MetaLogin int64           `json:"meta_login" validate:"required"`
	Amount    decimal.Decimal `json:"amount" validate:"gt=0"`
	HandledBy int64           `json:"handled_by"`
}

// TransferResult pairs the wallet debit with the account credit it funded.
type TransferResult struct {
	WalletTransaction  *models.Transaction
	AccountTransaction *models.Transaction
}

type Engine struct {
	store    store.Store
	platform Platform
}

func NewEngine(s store.Store, p Platform) *Engine {
	return &Engine{store: s, platform: p}
}

// WalletAdjustment applies one admin credit or debit to a wallet.
func (e *Engine) WalletAdjustment(ctx context.Context, req WalletAdjustmentRequest) (*models.Transaction, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	zap.L().Info("Wallet adjustment requested",
		zap.Int64("wallet_id", req.WalletId),
		zap.String("action", string(req.Action)),
		zap.String("amount", req.Amount.String()),
		zap.Int64("handled_by", req.HandledBy))

	return e.store.PostWalletTransaction(ctx, store.PostWalletParams{
		WalletId:  req.WalletId,
		Type:      req.Action,
		Amount:    req.Amount,
		Status:    models.StatusSuccessful,
		Remarks:   req.Remarks,
		HandledBy: req.HandledBy,
	})
}

// RequestWithdrawal debits the wallet now and leaves the row processing
// until an admin approves or rejects it.
func (e *Engine) RequestWithdrawal(ctx context.Context, req WithdrawalRequest) (*models.Transaction, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if req.Charges.GreaterThan(req.Amount) {
		verr := validation.New()
		verr.Add("charges", "must not exceed amount")
		return nil, verr
	}

	return e.store.PostWalletTransaction(ctx, store.PostWalletParams{
		WalletId:  req.WalletId,
		Type:      models.TypeWithdrawal,
		Amount:    req.Amount,
		Charges:   req.Charges,
		Status:    models.StatusProcessing,
		Remarks:   req.Remarks,
		HandledBy: req.HandledBy,
	})
}

func (e *Engine) ApproveWithdrawal(ctx context.Context, transactionId, handledBy int64) (*models.Transaction, error) {
	if err := e.requireWithdrawal(ctx, transactionId); err != nil {
		return nil, err
	}
	return e.store.ResolveTransaction(ctx, store.ResolveTransactionParams{
		TransactionId: transactionId,
		Status:        models.StatusSuccessful,
		HandledBy:     handledBy,
	})
}

// RejectWithdrawal refunds the wallet on the same transaction row.
func (e *Engine) RejectWithdrawal(ctx context.Context, transactionId, handledBy int64, remarks string) (*models.Transaction, error) {
	if err := e.requireWithdrawal(ctx, transactionId); err != nil {
		return nil, err
	}
	return e.store.ResolveTransaction(ctx, store.ResolveTransactionParams{
		TransactionId: transactionId,
		Status:        models.StatusRejected,
		Refund:        true,
		HandledBy:     handledBy,
		Remarks:       remarks,
	})
}

func (e *Engine) requireWithdrawal(ctx context.Context, transactionId int64) error {
	t, err := e.store.GetTransaction(ctx, transactionId)
	if err != nil {
		return err
	}
	if t.TransactionType != models.TypeWithdrawal || t.WalletId == nil {
		return fmt.Errorf("%w: transaction %d is not a wallet withdrawal", store.ErrInvalidAction, transactionId)
	}
	return nil
}

// AccountAdjustment moves balance or credit on a trading account through the
// platform. The platform is called exactly once; a failure leaves a failed
// row and the caller must start a new adjustment.
func (e *Engine) AccountAdjustment(ctx context.Context, req AccountAdjustmentRequest) (*models.Transaction, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	opened, err := e.store.OpenAccountTransaction(ctx, store.AccountTransactionParams{
		MetaLogin: req.MetaLogin,
		Type:      req.Action,
		Amount:    req.Amount,
		Remarks:   req.Comment,
		HandledBy: req.HandledBy,
	})
	if err != nil {
		return nil, err
	}

	return e.executeTrade(ctx, opened, platform.TradeRequest{
		MetaLogin: req.MetaLogin,
		Type:      req.Action,
		Amount:    req.Amount,
		Comment:   req.Comment,
	})
}

// TransferToAccount moves funds from a wallet to one of the owner's trading
// accounts. The wallet debit is refunded on its own row if the platform
// does not confirm the deposit.
func (e *Engine) TransferToAccount(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	wallet, err := e.store.GetWallet(ctx, req.WalletId)
	if err != nil {
		return nil, err
	}
	account, err := e.store.GetTradingAccount(ctx, req.MetaLogin)
	if err != nil {
		return nil, err
	}
	if account.UserId != wallet.UserId {
		return nil, fmt.Errorf("%w: account %d does not belong to the wallet owner", store.ErrInvalidAction, req.MetaLogin)
	}
	if !account.Active {
		return nil, fmt.Errorf("%w: %d", store.ErrInactiveAccount, req.MetaLogin)
	}

	metaLogin := req.MetaLogin
	debit, err := e.store.PostWalletTransaction(ctx, store.PostWalletParams{
		WalletId:  wallet.Id,
		Type:      models.TypeTransferToAccount,
		Amount:    req.Amount,
		Status:    models.StatusProcessing,
		MetaLogin: &metaLogin,
		HandledBy: req.HandledBy,
	})
	if err != nil {
		return nil, err
	}

	credit, err := e.store.OpenAccountTransaction(ctx, store.AccountTransactionParams{
		MetaLogin: req.MetaLogin,
		Type:      models.TypeBalanceIn,
		Amount:    req.Amount,
		Remarks:   "transfer from " + string(wallet.Type),
		HandledBy: req.HandledBy,
	})
	if err != nil {
		return nil, multierr.Append(err, e.refund(ctx, debit, req.HandledBy))
	}

	completed, err := e.executeTrade(ctx, credit, platform.TradeRequest{
		MetaLogin: req.MetaLogin,
		Type:      models.TypeBalanceIn,
		Amount:    req.Amount,
		Comment:   "transfer from " + string(wallet.Type),
	})
	if err != nil {
		return nil, multierr.Append(err, e.refund(ctx, debit, req.HandledBy))
	}

	debit, err = e.store.ResolveTransaction(ctx, store.ResolveTransactionParams{
		TransactionId: debit.Id,
		Status:        models.StatusSuccessful,
		TicketId:      completed.TicketId,
		HandledBy:     req.HandledBy,
	})
	if err != nil {
		return nil, fmt.Errorf("platform credited ticket %s but the wallet row was not finalized: %w", completed.TicketId, err)
	}
	return &TransferResult{WalletTransaction: debit, AccountTransaction: completed}, nil
}

func (e *Engine) refund(ctx context.Context, debit *models.Transaction, handledBy int64) error {
	_, err := e.store.ResolveTransaction(ctx, store.ResolveTransactionParams{
		TransactionId: debit.Id,
		Status:        models.StatusFailed,
		Refund:        true,
		HandledBy:     handledBy,
		Remarks:       "refunded: trading account was not credited",
	})
	if err != nil {
		zap.L().Error("Unable to refund wallet debit", zap.Int64("transaction_id", debit.Id), zap.Error(err))
	}
	return err
}

// executeTrade sends an opened account row to the platform and records the
// outcome on it.
func (e *Engine) executeTrade(ctx context.Context, opened *models.Transaction, trade platform.TradeRequest) (*models.Transaction, error) {
	result, tradeErr := e.platform.CreateTrade(ctx, trade)
	if tradeErr != nil {
		zap.L().Error("Platform trade failed",
			zap.Int64("transaction_id", opened.Id),
			zap.Int64("meta_login", trade.MetaLogin),
			zap.String("type", string(trade.Type)),
			zap.Error(tradeErr))

		if _, err := e.store.ResolveTransaction(ctx, store.ResolveTransactionParams{
			TransactionId: opened.Id,
			Status:        models.StatusFailed,
			HandledBy:     opened.HandledBy,
			Remarks:       "platform rejected the adjustment",
		}); err != nil {
			zap.L().Error("Unable to mark transaction failed", zap.Int64("transaction_id", opened.Id), zap.Error(err))
		}
		e.checkReachable(ctx, trade.MetaLogin)
		return nil, ErrAdjustmentFailed
	}

	completed, err := e.store.CompleteAccountTransaction(ctx, store.CompleteAccountTransactionParams{
		TransactionId: opened.Id,
		TicketId:      result.Ticket,
		Balance:       result.Balance,
		Credit:        result.Credit,
		Equity:        result.Equity,
	})
	if err != nil {
		return nil, fmt.Errorf("platform accepted ticket %s but the row was not completed: %w", result.Ticket, err)
	}
	return completed, nil
}

// checkReachable polls the account once and deactivates it when the
// platform cannot produce it.
func (e *Engine) checkReachable(ctx context.Context, metaLogin int64) {
	if _, err := e.platform.GetUser(ctx, metaLogin); err != nil {
		zap.L().Warn("Trading account unreachable, marking inactive",
			zap.Int64("meta_login", metaLogin),
			zap.Error(err))
		if err := e.store.SetTradingAccountActive(ctx, metaLogin, false); err != nil {
			zap.L().Error("Unable to deactivate trading account", zap.Int64("meta_login", metaLogin), zap.Error(err))
		}
	}
}

// ReconcileUser checks every wallet the user owns and reports all drift.
func (e *Engine) ReconcileUser(ctx context.Context, userId int64) error {
	wallets, err := e.store.GetUserWallets(ctx, userId)
	if err != nil {
		return err
	}

	var errs error
	for _, w := range wallets {
		if err := e.store.ReconcileWallet(ctx, w.Id); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("wallet %d: %w", w.Id, err))
		}
	}
	return errs
}

// History returns one page of a user's transactions, newest first. Pages
// start at 1.
func (e *Engine) History(ctx context.Context, userId int64, page, pageSize int) ([]models.TransactionRecord, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	rows, err := e.store.GetTransactionHistory(ctx, userId, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}

	records := make([]models.TransactionRecord, 0, len(rows))
	for _, t := range rows {
		records = append(records, models.TransactionRecord{
			Id:                t.Id,
			TransactionNumber: t.TransactionNumber,
			Category:          t.Category,
			Type:              t.TransactionType,
			Amount:            t.Amount,
			OldAmount:         t.OldWalletAmount,
			NewAmount:         t.NewWalletAmount,
			Status:            t.Status,
			TicketId:          t.TicketId,
			CreatedAt:         t.CreatedAt,
		})
	}
	return records, nil
}
