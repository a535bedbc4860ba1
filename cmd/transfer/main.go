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

func main() {
	ctx := context.Background()

	emailFlag := flag.String("email", "", "Wallet owner's email (required)")
	walletFlag := flag.String("wallet", string(models.WalletRebate), "Wallet type to debit")
	loginFlag := flag.Int64("meta-login", 0, "Trading account to credit (required)")
	amountFlag := flag.String("amount", "", "Amount to transfer (required)")
	handledByFlag := flag.Int64("handled-by", 0, "Operator user id")
	flag.Parse()

	if *emailFlag == "" || *loginFlag <= 0 || *amountFlag == "" {
		fmt.Fprintln(os.Stderr, "Flags are required: --email, --meta-login and --amount")
		os.Exit(2)
	}
	amount, err := decimal.NewFromString(*amountFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid amount format: %v\n", err)
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

	user, err := services.DbService.GetUserByEmail(ctx, *emailFlag)
	if err != nil {
		zap.L().Fatal("User not found", zap.String("email", *emailFlag), zap.Error(err))
	}
	wallet, err := services.DbService.GetUserWallet(ctx, user.Id, models.WalletType(*walletFlag))
	if err != nil {
		zap.L().Fatal("Wallet not found", zap.String("wallet", *walletFlag), zap.Error(err))
	}

	zap.L().Info("Transferring wallet funds to trading account",
		zap.Int64("user_id", user.Id),
		zap.Int64("wallet_id", wallet.Id),
		zap.Int64("meta_login", *loginFlag),
		zap.String("amount", amount.String()))

	result, err := services.Api.TransferToAccount(ctx, ledger.TransferRequest{
		WalletId:  wallet.Id,
		MetaLogin: *loginFlag,
		Amount:    amount,
		HandledBy: *handledByFlag,
	})
	if err != nil {
		zap.L().Fatal("Transfer failed", zap.Error(err))
	}

	common.PrintAdjustmentResult("Transfer", result)
	if !result.Success {
		os.Exit(1)
	}
}
