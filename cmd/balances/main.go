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

	"rebate-ledger-go/internal/api"
	"rebate-ledger-go/internal/common"
	"rebate-ledger-go/internal/config"
	"rebate-ledger-go/internal/ledger"
	"rebate-ledger-go/internal/models"

	"go.uber.org/zap"
)

type balanceStats struct {
	totalUsers        int
	totalBalances     int
	usersWithBalances int
}

func formatTicketId(ticketId string) string {
	if ticketId == "" {
		return "none"
	}
	if len(ticketId) > 8 {
		return ticketId[:8] + "..."
	}
	return ticketId
}

func printBalance(balance models.WalletBalance, isLast bool) {
	symbol := common.BoxPrefix(isLast)
	fmt.Printf("%s %-15s: %20s (wallet %d)\n",
		symbol,
		balance.Type,
		balance.Balance.StringFixed(2),
		balance.WalletId)
}

func printHistory(records []models.TransactionRecord, isLast bool) {
	prefix := common.BoxDetailPrefix(isLast)
	for _, r := range records {
		amount := r.Amount.StringFixed(2)
		if r.Type.IsDebit() {
			amount = r.Amount.Neg().StringFixed(2)
		}
		fmt.Printf("%s   #%-6d %-20s %12s  %-10s ticket: %s  %s\n",
			prefix,
			r.Id,
			r.Type,
			common.Amount(amount),
			r.Status,
			formatTicketId(r.TicketId),
			r.CreatedAt.Format("2006-01-02 15:04:05"))
	}
}

func printUserHeader(user common.UserInfo, balanceCount int) {
	fmt.Printf("\n┌─ User: %s (%s)\n", user.Name, user.Email)
	fmt.Printf("│  ID: %d  Role: %s  Path: %s\n", user.Id, user.Role, user.HierarchyList)
	fmt.Printf("│  Wallets: %d\n", balanceCount)
	common.PrintBoxSeparator(78)
}

func processUser(ctx context.Context, user common.UserInfo, apiService *api.LedgerService, historySize int) (int, error) {
	balances, err := apiService.GetUserBalances(ctx, user.Id)
	if err != nil {
		return 0, fmt.Errorf("failed to get balances: %w", err)
	}

	if len(balances) == 0 {
		return 0, nil
	}

	printUserHeader(user, len(balances))
	for i, balance := range balances {
		isLast := i == len(balances)-1 && historySize == 0
		printBalance(balance, isLast)
	}

	if historySize > 0 {
		records, err := apiService.GetTransactionHistory(ctx, user.Id, 1, historySize)
		if err != nil {
			return len(balances), fmt.Errorf("failed to get history: %w", err)
		}
		printHistory(records, true)
	}

	if err := apiService.ReconcileUser(ctx, user.Id); err != nil {
		common.Failure("Wallets of user %d do not match their ledger: %v", user.Id, err)
	}

	return len(balances), nil
}

func processUsersAndGenerateReport(ctx context.Context, users []common.UserInfo, apiService *api.LedgerService, historySize int, logger *zap.Logger) balanceStats {
	stats := balanceStats{}

	for _, user := range users {
		stats.totalUsers++

		balanceCount, err := processUser(ctx, user, apiService, historySize)
		if err != nil {
			logger.Error("Failed to process user",
				zap.Int64("user_id", user.Id),
				zap.String("user_name", user.Name),
				zap.Error(err))
			continue
		}

		if balanceCount > 0 {
			stats.usersWithBalances++
			stats.totalBalances += balanceCount
		}
	}

	return stats
}

func main() {
	ctx := context.Background()

	emailFlag := flag.String("email", "", "Filter by specific user email (optional)")
	historyFlag := flag.Int("history", 0, "Number of recent transactions to list per user")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	logger, loggerCleanup := common.InitializeLogger(cfg.LogMode)
	defer loggerCleanup()

	logger.Info("Starting balance query")

	// Read-only: the trading platform is not needed
	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	apiService := api.NewLedgerService(dbService, ledger.NewEngine(dbService, nil))

	users, err := common.InitializeUsers(ctx, dbService, *emailFlag, logger)
	if err != nil {
		logger.Fatal("Failed to initialize users", zap.Error(err))
	}

	common.PrintHeader("USER BALANCE REPORT", common.DefaultWidth)

	stats := processUsersAndGenerateReport(ctx, users, apiService, *historyFlag, logger)

	summary := fmt.Sprintf("SUMMARY: %d users with wallets (%d total wallets across %d users queried)",
		stats.usersWithBalances, stats.totalBalances, stats.totalUsers)
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("Balance query completed",
		zap.Int("users_queried", stats.totalUsers),
		zap.Int("users_with_balances", stats.usersWithBalances),
		zap.Int("total_balances", stats.totalBalances))
}
