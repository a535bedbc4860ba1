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

type withdrawalFlags struct {
	action     string
	email      string
	walletType string
	amount     decimal.Decimal
	charges    decimal.Decimal
	txId       int64
	handledBy  int64
	remarks    string
}

func parseAndValidateFlags() (*withdrawalFlags, error) {
	actionFlag := flag.String("action", "request", "request, approve or reject")
	emailFlag := flag.String("email", "", "User email (request)")
	walletFlag := flag.String("wallet", string(models.WalletRebate), "Wallet type to withdraw from (request)")
	amountFlag := flag.String("amount", "", "Amount to withdraw (request)")
	chargesFlag := flag.String("charges", "0", "Fee deducted from the payout (request)")
	txFlag := flag.Int64("tx", 0, "Withdrawal transaction id (approve, reject)")
	handledByFlag := flag.Int64("handled-by", 0, "Operator user id")
	remarksFlag := flag.String("remarks", "", "Remarks stored on the transaction")
	flag.Parse()

	f := &withdrawalFlags{
		action:     *actionFlag,
		email:      *emailFlag,
		walletType: *walletFlag,
		txId:       *txFlag,
		handledBy:  *handledByFlag,
		remarks:    *remarksFlag,
	}

	switch f.action {
	case "request":
		if f.email == "" || *amountFlag == "" {
			return nil, fmt.Errorf("request needs --email and --amount")
		}
		if !models.WalletType(f.walletType).Valid() {
			return nil, fmt.Errorf("unknown wallet type: %s", f.walletType)
		}
		amount, err := decimal.NewFromString(*amountFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid amount format: %w", err)
		}
		charges, err := decimal.NewFromString(*chargesFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid charges format: %w", err)
		}
		f.amount = amount
		f.charges = charges
	case "approve", "reject":
		if f.txId <= 0 {
			return nil, fmt.Errorf("%s needs --tx", f.action)
		}
	default:
		return nil, fmt.Errorf("unknown action: %s", f.action)
	}
	return f, nil
}

func requestWithdrawal(ctx context.Context, services *common.Services, f *withdrawalFlags) (*models.AdjustmentResult, error) {
	user, err := services.DbService.GetUserByEmail(ctx, f.email)
	if err != nil {
		return nil, fmt.Errorf("user not found for email %s: %w", f.email, err)
	}
	wallet, err := services.DbService.GetUserWallet(ctx, user.Id, models.WalletType(f.walletType))
	if err != nil {
		return nil, fmt.Errorf("user %s has no %s: %w", f.email, f.walletType, err)
	}

	common.PrintHeader("WITHDRAWAL REQUEST", common.DefaultWidth)
	fmt.Printf("User:              %s (%s)\n", user.Name, user.Email)
	fmt.Printf("Wallet:            %s (%d)\n", wallet.Type, wallet.Id)
	fmt.Printf("Current Balance:   %s\n", wallet.Balance.StringFixed(2))
	fmt.Printf("Withdrawal Amount: %s\n", f.amount.StringFixed(2))
	fmt.Printf("Charges:           %s\n", f.charges.StringFixed(2))
	fmt.Printf("Payout:            %s\n", f.amount.Sub(f.charges).StringFixed(2))
	common.PrintSeparator("=", common.DefaultWidth)
	fmt.Println()

	return services.Api.RequestWithdrawal(ctx, ledger.WithdrawalRequest{
		WalletId:  wallet.Id,
		Amount:    f.amount,
		Charges:   f.charges,
		Remarks:   f.remarks,
		HandledBy: f.handledBy,
	})
}

func main() {
	ctx := context.Background()

	f, err := parseAndValidateFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
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
	switch f.action {
	case "request":
		result, err = requestWithdrawal(ctx, services, f)
	case "approve":
		result, err = services.Api.ResolveWithdrawal(ctx, f.txId, f.handledBy, true, f.remarks)
	case "reject":
		result, err = services.Api.ResolveWithdrawal(ctx, f.txId, f.handledBy, false, f.remarks)
	}
	if err != nil {
		common.Failure("%v", err)
		os.Exit(1)
	}

	common.PrintAdjustmentResult("Withdrawal "+f.action, result)
	if !result.Success {
		os.Exit(1)
	}
}
