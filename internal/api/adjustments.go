package api

import (
	"context"

	"rebate-ledger-go/internal/ledger"
	"rebate-ledger-go/internal/models"

	"go.uber.org/zap"
)

func (s *LedgerService) AdjustWallet(ctx context.Context, req ledger.WalletAdjustmentRequest) (*models.AdjustmentResult, error) {
	t, err := s.ledger.WalletAdjustment(ctx, req)
	if err != nil {
		zap.L().Warn("Wallet adjustment failed",
			zap.Int64("wallet_id", req.WalletId),
			zap.String("action", string(req.Action)),
			zap.Error(err))
		return failure(err), nil
	}
	return success(t), nil
}

// AdjustAccount applies a balance or credit change on a trading account.
// Platform failures surface only as the generic adjustment error.
func (s *LedgerService) AdjustAccount(ctx context.Context, req ledger.AccountAdjustmentRequest) (*models.AdjustmentResult, error) {
	t, err := s.ledger.AccountAdjustment(ctx, req)
	if err != nil {
		return failure(err), nil
	}
	return success(t), nil
}

func (s *LedgerService) TransferToAccount(ctx context.Context, req ledger.TransferRequest) (*models.AdjustmentResult, error) {
	result, err := s.ledger.TransferToAccount(ctx, req)
	if err != nil {
		return failure(err), nil
	}

	zap.L().Info("Wallet transferred to trading account",
		zap.Int64("wallet_id", req.WalletId),
		zap.Int64("meta_login", req.MetaLogin),
		zap.String("ticket_id", result.WalletTransaction.TicketId))
	return success(result.WalletTransaction), nil
}
