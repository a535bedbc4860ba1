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
	"errors"
	"flag"
	"fmt"
	"regexp"

	"rebate-ledger-go/internal/common"
	"rebate-ledger-go/internal/config"
	"rebate-ledger-go/internal/models"
	"rebate-ledger-go/internal/store"

	"go.uber.org/zap"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if len(name) < 2 {
		return fmt.Errorf("name must be at least 2 characters")
	}
	return nil
}

func resolveAccountType(ctx context.Context, db store.Store, name string) (int64, error) {
	types, err := db.ListAccountTypes(ctx)
	if err != nil {
		return 0, err
	}
	for _, t := range types {
		if t.Name == name {
			return t.Id, nil
		}
	}
	return 0, fmt.Errorf("%w: account type %s", store.ErrNotFound, name)
}

func main() {
	ctx := context.Background()

	nameFlag := flag.String("name", "", "User's full name (required)")
	emailFlag := flag.String("email", "", "User's email address (required)")
	uplineFlag := flag.String("upline", "", "Upline's email address (required)")
	roleFlag := flag.String("role", string(models.RoleMember), "Role: member, agent, admin or super-admin")
	loginFlag := flag.Int64("meta-login", 0, "Trading account login to register (optional)")
	accountTypeFlag := flag.String("account-type", "", "Account type of --meta-login")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger(cfg.LogMode)
	defer loggerCleanup()

	if *nameFlag == "" || *emailFlag == "" || *uplineFlag == "" {
		zap.L().Fatal("Flags are required: --name, --email and --upline")
	}
	if err := validateName(*nameFlag); err != nil {
		zap.L().Fatal("Invalid name", zap.Error(err))
	}
	if err := validateEmail(*emailFlag); err != nil {
		zap.L().Fatal("Invalid email", zap.Error(err))
	}

	// IBs are made through the upgrade tool so their rates get checked.
	role := models.Role(*roleFlag)
	if role == models.RoleIB || !role.Valid() {
		zap.L().Fatal("Invalid role", zap.String("role", *roleFlag))
	}

	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	upline, err := dbService.GetUserByEmail(ctx, *uplineFlag)
	if err != nil {
		zap.L().Fatal("Failed to find upline", zap.String("email", *uplineFlag), zap.Error(err))
	}

	user, err := dbService.CreateUser(ctx, store.CreateUserParams{
		Name:     *nameFlag,
		Email:    *emailFlag,
		Role:     role,
		UplineId: &upline.Id,
	})
	if err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			zap.L().Fatal("User already exists with this email", zap.String("email", *emailFlag))
		}
		zap.L().Fatal("Failed to create user", zap.Error(err))
	}

	if _, err := dbService.EnsureWallet(ctx, user.Id, models.WalletRebate); err != nil {
		zap.L().Fatal("Failed to create rebate wallet", zap.Error(err))
	}

	var account *models.TradingAccount
	if *loginFlag > 0 {
		accountTypeId, err := resolveAccountType(ctx, dbService, *accountTypeFlag)
		if err != nil {
			zap.L().Fatal("Invalid account type", zap.String("account_type", *accountTypeFlag), zap.Error(err))
		}
		account, err = dbService.CreateTradingAccount(ctx, store.TradingAccountParams{
			UserId:        user.Id,
			MetaLogin:     *loginFlag,
			AccountTypeId: accountTypeId,
		})
		if err != nil {
			zap.L().Fatal("Failed to register trading account", zap.Error(err))
		}
	}

	fmt.Println()
	common.PrintHeader("USER CREATED", common.DefaultWidth)
	fmt.Printf("ID:        %d\n", user.Id)
	fmt.Printf("Name:      %s\n", user.Name)
	fmt.Printf("Email:     %s\n", user.Email)
	fmt.Printf("Role:      %s\n", user.Role)
	fmt.Printf("Upline:    %s (%d)\n", upline.Email, upline.Id)
	fmt.Printf("Hierarchy: %s\n", user.HierarchyList)
	if account != nil {
		fmt.Printf("Account:   %d\n", account.MetaLogin)
	}
	common.PrintSeparator("=", common.DefaultWidth)
	fmt.Println()

	zap.L().Info("User created successfully", zap.Int64("id", user.Id))
}
