package api

import (
	"context"

	"rebate-ledger-go/internal/ledger"
	"rebate-ledger-go/internal/models"

	"go.uber.org/zap"
)

func (s *LedgerService) RequestWithdrawal(ctx context.Context, req ledger.WithdrawalRequest) (*models.AdjustmentResult, error) {
	zap.L().Info("Processing withdrawal request",
		zap.Int64("wallet_id", req.WalletId),
		zap.String("amount", req.Amount.String()),
		zap.String("charges", req.Charges.String()))

	t, err := s.ledger.RequestWithdrawal(ctx, req)
	if err != nil {
		zap.L().Warn("Withdrawal request rejected", zap.Int64("wallet_id", req.WalletId), zap.Error(err))
		return failure(err), nil
	}
	return success(t), nil
}

// ResolveWithdrawal approves or rejects a processing withdrawal. Rejection
// refunds the wallet.
func (s *LedgerService) ResolveWithdrawal(ctx context.Context, transactionId, handledBy int64, approve bool, remarks string) (*models.AdjustmentResult, error) {
	zap.L().Info("Resolving withdrawal",
		zap.Int64("transaction_id", transactionId),
		zap.Bool("approve", approve),
		zap.Int64("handled_by", handledBy))

	var (
		t   *models.Transaction
		err error
	)
	if approve {
		t, err = s.ledger.ApproveWithdrawal(ctx, transactionId, handledBy)
	} else {
		t, err = s.ledger.RejectWithdrawal(ctx, transactionId, handledBy, remarks)
	}
	if err != nil {
		zap.L().Error("Withdrawal resolution failed",
			zap.Int64("transaction_id", transactionId),
			zap.Error(err))
		return failure(err), nil
	}

	zap.L().Info("Withdrawal resolved",
		zap.Int64("transaction_id", t.Id),
		zap.String("status", string(t.Status)),
		zap.String("new_balance", t.NewWalletAmount.String()))
	return success(t), nil
}
