package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"rebate-ledger-go/internal/common"
	"rebate-ledger-go/internal/config"
	"rebate-ledger-go/internal/models"
	"rebate-ledger-go/internal/rebate"
	"rebate-ledger-go/internal/store"

	"go.uber.org/zap"
)

// catalogIds resolves catalog names to the ids the database assigned them.
func catalogIds(ctx context.Context, db store.Store) (map[string]int64, map[string]int64, error) {
	accountTypes, err := db.ListAccountTypes(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list account types: %w", err)
	}
	symbolGroups, err := db.ListSymbolGroups(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list symbol groups: %w", err)
	}

	typeIds := make(map[string]int64, len(accountTypes))
	for _, t := range accountTypes {
		typeIds[t.Name] = t.Id
	}
	groupIds := make(map[string]int64, len(symbolGroups))
	for _, g := range symbolGroups {
		groupIds[g.Name] = g.Id
	}
	return typeIds, groupIds, nil
}

// getOrCreateRoot returns the root IB, creating it on first run
func getOrCreateRoot(ctx context.Context, db store.Store, name, email string) (*models.User, bool, error) {
	user, err := db.GetUserByEmail(ctx, email)
	if err == nil {
		if !user.IsRoot() {
			return nil, false, fmt.Errorf("user %s exists but is not the root of the tree", email)
		}
		zap.L().Info("Using existing root user", zap.Int64("user_id", user.Id), zap.String("email", email))
		return user, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	user, err = db.CreateUser(ctx, store.CreateUserParams{
		Name:  name,
		Email: email,
		Role:  models.RoleIB,
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to create root user: %w", err)
	}
	return user, true, nil
}

func rootRates(catalog *config.Catalog, typeIds, groupIds map[string]int64) []rebate.ProposedRate {
	matrix := catalog.RootMatrix()
	rates := make([]rebate.ProposedRate, 0, len(matrix))
	for _, accountType := range catalog.AccountTypes {
		for _, symbolGroup := range catalog.SymbolGroups {
			amount, ok := matrix[config.CellKey{AccountType: accountType, SymbolGroup: symbolGroup}]
			if !ok {
				continue
			}
			rates = append(rates, rebate.ProposedRate{
				AccountTypeId: typeIds[accountType],
				SymbolGroupId: groupIds[symbolGroup],
				Amount:        amount,
			})
		}
	}
	return rates
}

func main() {
	ctx := context.Background()

	rootNameFlag := flag.String("root-name", "Company", "Name of the root IB")
	rootEmailFlag := flag.String("root-email", "", "Email of the root IB (required)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger(cfg.LogMode)
	defer loggerCleanup()

	if *rootEmailFlag == "" {
		zap.L().Fatal("--root-email is required")
	}

	catalog, err := config.LoadCatalog(cfg.Database.CatalogFile)
	if err != nil {
		zap.L().Fatal("Failed to load catalog", zap.String("file", cfg.Database.CatalogFile), zap.Error(err))
	}
	zap.L().Info("Catalog loaded",
		zap.Int("account_types", len(catalog.AccountTypes)),
		zap.Int("symbol_groups", len(catalog.SymbolGroups)),
		zap.Int("root_rates", len(catalog.RootRates)))

	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	if err := dbService.SeedCatalog(ctx, catalog.AccountTypes, catalog.SymbolGroups); err != nil {
		zap.L().Fatal("Failed to seed catalog", zap.Error(err))
	}

	typeIds, groupIds, err := catalogIds(ctx, dbService)
	if err != nil {
		zap.L().Fatal("Failed to resolve catalog", zap.Error(err))
	}

	root, created, err := getOrCreateRoot(ctx, dbService, *rootNameFlag, *rootEmailFlag)
	if err != nil {
		zap.L().Fatal("Failed to prepare root user", zap.Error(err))
	}

	for _, walletType := range []models.WalletType{models.WalletRebate, models.WalletBonus} {
		if _, err := dbService.EnsureWallet(ctx, root.Id, walletType); err != nil {
			zap.L().Fatal("Failed to create root wallet", zap.String("type", string(walletType)), zap.Error(err))
		}
	}

	rebates := rebate.NewEngine(dbService, cfg.Rebate)
	rates := rootRates(catalog, typeIds, groupIds)
	if err := rebates.UpdateRates(ctx, rebate.RatesRequest{UserId: root.Id, Rates: rates, EditedBy: root.Id}); err != nil {
		zap.L().Fatal("Failed to apply root rates", zap.Error(err))
	}

	inserted, err := rebates.SyncMissingAllocations(ctx)
	if err != nil {
		zap.L().Fatal("Failed to backfill allocations", zap.Error(err))
	}

	common.PrintHeader("SETUP COMPLETE", common.DefaultWidth)
	fmt.Printf("Root:          %s (%s)\n", root.Name, root.Email)
	fmt.Printf("Root ID:       %d\n", root.Id)
	fmt.Printf("Account types: %d\n", len(typeIds))
	fmt.Printf("Symbol groups: %d\n", len(groupIds))
	fmt.Printf("Root rates:    %d\n", len(rates))
	fmt.Printf("Backfilled:    %d\n", inserted)
	common.PrintSeparator("=", common.DefaultWidth)
	if created {
		common.Success("Root IB created")
	} else {
		common.Warn("Root IB already existed, rates re-applied")
	}
}
