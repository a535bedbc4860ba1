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

package api

import (
	"context"
	"fmt"

	"rebate-ledger-go/internal/models"

	"go.uber.org/zap"
)

// GetUserBalances returns every wallet balance of a user
func (s *LedgerService) GetUserBalances(ctx context.Context, userId int64) ([]models.WalletBalance, error) {
	if userId <= 0 {
		return nil, fmt.Errorf("user_id is required")
	}

	wallets, err := s.db.GetUserWallets(ctx, userId)
	if err != nil {
		zap.L().Error("Failed to get user wallets", zap.Int64("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve balances")
	}

	result := make([]models.WalletBalance, len(wallets))
	for i, w := range wallets {
		result[i] = models.WalletBalance{
			WalletId: w.Id,
			Type:     w.Type,
			Balance:  w.Balance,
		}
	}

	return result, nil
}

// GetTransactionHistory returns one page of a user's transactions
func (s *LedgerService) GetTransactionHistory(ctx context.Context, userId int64, page, pageSize int) ([]models.TransactionRecord, error) {
	if userId <= 0 {
		return nil, fmt.Errorf("user_id is required")
	}

	records, err := s.ledger.History(ctx, userId, page, pageSize)
	if err != nil {
		zap.L().Error("Failed to get transaction history",
			zap.Int64("user_id", userId),
			zap.Int("page", page),
			zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve transaction history")
	}

	return records, nil
}

// ReconcileUser verifies each of the user's wallets against its ledger
func (s *LedgerService) ReconcileUser(ctx context.Context, userId int64) error {
	if err := s.ledger.ReconcileUser(ctx, userId); err != nil {
		zap.L().Error("Wallet reconciliation failed", zap.Int64("user_id", userId), zap.Error(err))
		return err
	}
	return nil
}
