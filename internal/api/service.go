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
	"errors"
	"fmt"

	"rebate-ledger-go/internal/ledger"
	"rebate-ledger-go/internal/models"
	"rebate-ledger-go/internal/store"
	"rebate-ledger-go/internal/validation"
)

// LedgerService provides minimal API
type LedgerService struct {
	db     store.Store
	ledger *ledger.Engine
}

func NewLedgerService(db store.Store, ledgerEngine *ledger.Engine) *LedgerService {
	return &LedgerService{
		db:     db,
		ledger: ledgerEngine,
	}
}

func (s *LedgerService) HealthCheck(ctx context.Context) error {
	_, err := s.db.ListAccountTypes(ctx)
	if err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// failure turns an engine error into a result. Validation errors keep their
// field map; anything else is reported by its message.
func failure(err error) *models.AdjustmentResult {
	if fields, ok := validation.Fields(err); ok {
		return &models.AdjustmentResult{
			Success: false,
			Error:   "validation failed",
			Fields:  fields,
		}
	}
	if errors.Is(err, ledger.ErrAdjustmentFailed) {
		return &models.AdjustmentResult{Success: false, Error: ledger.ErrAdjustmentFailed.Error()}
	}
	return &models.AdjustmentResult{Success: false, Error: err.Error()}
}

func success(t *models.Transaction) *models.AdjustmentResult {
	return &models.AdjustmentResult{
		Success:       true,
		TransactionId: t.Id,
		UserId:        t.UserId,
		Amount:        t.Amount,
		NewBalance:    t.NewWalletAmount,
	}
}
