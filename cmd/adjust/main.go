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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"rebate-ledger-go/internal/common"
	"rebate-ledger-go/internal/config"
	"rebate-ledger-go/internal/ledger"
	"rebate-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Wallet actions need --email, account actions need --meta-login.
var walletActions = map[models.TransactionType]bool{
	models.TypeRebateIn:   true,
	models.TypeRebateOut:  true,
	models.TypeBonus:      true,
	models.TypePenaltyFee: true,
}

func main() {
	ctx := context.Background()

	actionFlag := flag.String("action", "", "rebate_in, rebate_out, bonus, penalty_fee, balance_in, balance_out, credit_in or credit_out")
	emailFlag := flag.String("email", "", "Wallet owner's email (wallet actions)")
	walletFlag := flag.String("wallet", "", "Wallet type (defaults to bonus_wallet for bonus, rebate_wallet otherwise)")
	loginFlag := flag.Int64("meta-login", 0, "Trading account login (account actions)")
	amountFlag := flag.String("amount", "", "Amount (required)")
	remarksFlag := flag.String("remarks", "", "Remarks or platform comment")
	handledByFlag := flag.Int64("handled-by", 0, "Operator user id")
	flag.Parse()

	action := models.TransactionType(*actionFlag)
	amount, err := decimal.NewFromString(*amountFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid amount format: %v\n", err)
		os.Exit(2)
	}
	if walletActions[action] && *emailFlag == "" {
		fmt.Fprintln(os.Stderr, "Wallet actions need --email")
		os.Exit(2)
	}
	if !walletActions[action] && *loginFlag <= 0 {
		fmt.Fprintln(os.Stderr, "Account actions need --meta-login")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger(cfg.LogMode)
	defer loggerCleanup()

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	var result *models.AdjustmentResult
	if walletActions[action] {
		user, err := services.DbService.GetUserByEmail(ctx, *emailFlag)
		if err != nil {
			zap.L().Fatal("User not found", zap.String("email", *emailFlag), zap.Error(err))
		}

		walletType := models.WalletType(*walletFlag)
		if walletType == "" {
			walletType = models.WalletRebate
			if action == models.TypeBonus {
				walletType = models.WalletBonus
			}
		}
		wallet, err := services.DbService.EnsureWallet(ctx, user.Id, walletType)
		if err != nil {
			zap.L().Fatal("Failed to open wallet", zap.String("wallet", string(walletType)), zap.Error(err))
		}

		result, err = services.Api.AdjustWallet(ctx, ledger.WalletAdjustmentRequest{
			WalletId:  wallet.Id,
			Action:    action,
			Amount:    amount,
			Remarks:   *remarksFlag,
			HandledBy: *handledByFlag,
		})
		if err != nil {
			zap.L().Fatal("Wallet adjustment failed", zap.Error(err))
		}
	} else {
		result, err = services.Api.AdjustAccount(ctx, ledger.AccountAdjustmentRequest{
			MetaLogin: *loginFlag,
			Action:    action,
			Amount:    amount,
			Comment:   *remarksFlag,
			HandledBy: *handledByFlag,
		})
		if err != nil {
			zap.L().Fatal("Account adjustment failed", zap.Error(err))
		}
	}

	common.PrintAdjustmentResult(string(action), result)
	if !result.Success {
		os.Exit(1)
	}
}
