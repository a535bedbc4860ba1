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

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// WalletBalance represents a user's balance for a specific wallet
type WalletBalance struct {
	WalletId int64           `json:"wallet_id"`
	Type     WalletType      `json:"type"`
	Balance  decimal.Decimal `json:"balance"`
}

// TransactionRecord represents a transaction in the user's history
type TransactionRecord struct {
	Id                int64           `json:"id"`
	TransactionNumber string          `json:"transaction_number"`
	Category          Category        `json:"category"`
	Type              TransactionType `json:"type"`
	Amount            decimal.Decimal `json:"amount"`
	OldAmount         decimal.Decimal `json:"old_amount"`
	NewAmount         decimal.Decimal `json:"new_amount"`
	Status            Status          `json:"status"`
	TicketId          string          `json:"ticket_id,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// AdjustmentResult represents the result of a balance-affecting operation
type AdjustmentResult struct {
	Success       bool              `json:"success"`
	TransactionId int64             `json:"transaction_id,omitempty"`
	UserId        int64             `json:"user_id,omitempty"`
	Amount        decimal.Decimal   `json:"amount,omitempty"`
	NewBalance    decimal.Decimal   `json:"new_balance,omitempty"`
	Error         string            `json:"error,omitempty"`
	Fields        map[string]string `json:"fields,omitempty"`
}

// GroupRate is one symbol group's rate within an account type
type GroupRate struct {
	SymbolGroupId int64           `json:"symbol_group_id"`
	Amount        decimal.Decimal `json:"amount"`
}
