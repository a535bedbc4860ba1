package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"rebate-ledger-go/internal/common"
	"rebate-ledger-go/internal/config"
	"rebate-ledger-go/internal/models"
	"rebate-ledger-go/internal/rebate"
	"rebate-ledger-go/internal/store"
	"rebate-ledger-go/internal/validation"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// parseRates reads "accountType:symbolGroup=amount" pairs separated by commas.
func parseRates(list string, typeIds, groupIds map[string]int64) ([]rebate.ProposedRate, error) {
	var rates []rebate.ProposedRate
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		cell, amountText, ok := strings.Cut(item, "=")
		if !ok {
			return nil, fmt.Errorf("rate %q: expected accountType:symbolGroup=amount", item)
		}
		accountType, symbolGroup, ok := strings.Cut(cell, ":")
		if !ok {
			return nil, fmt.Errorf("rate %q: expected accountType:symbolGroup=amount", item)
		}
		typeId, ok := typeIds[accountType]
		if !ok {
			return nil, fmt.Errorf("rate %q: unknown account type %s", item, accountType)
		}
		groupId, ok := groupIds[symbolGroup]
		if !ok {
			return nil, fmt.Errorf("rate %q: unknown symbol group %s", item, symbolGroup)
		}
		amount, err := decimal.NewFromString(amountText)
		if err != nil {
			return nil, fmt.Errorf("rate %q: %w", item, err)
		}
		rates = append(rates, rebate.ProposedRate{AccountTypeId: typeId, SymbolGroupId: groupId, Amount: amount})
	}
	if len(rates) == 0 {
		return nil, fmt.Errorf("no rates given")
	}
	return rates, nil
}

func catalogIds(ctx context.Context, db store.Store) (map[string]int64, map[string]int64, error) {
	accountTypes, err := db.ListAccountTypes(ctx)
	if err != nil {
		return nil, nil, err
	}
	symbolGroups, err := db.ListSymbolGroups(ctx)
	if err != nil {
		return nil, nil, err
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

func reportValidation(err error) {
	fields, ok := validation.Fields(err)
	if !ok {
		common.Failure("%v", err)
		return
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	common.Failure("Rates rejected")
	for _, k := range keys {
		fmt.Printf("  %-20s %s\n", k+":", fields[k])
	}
}

func printRollup(ctx context.Context, engine *rebate.Engine, db store.Store, user *models.User) error {
	accountTypes, err := db.ListAccountTypes(ctx)
	if err != nil {
		return err
	}
	symbolGroups, err := db.ListSymbolGroups(ctx)
	if err != nil {
		return err
	}
	groupNames := make(map[int64]string, len(symbolGroups))
	for _, g := range symbolGroups {
		groupNames[g.Id] = g.Name
	}

	common.PrintHeader(fmt.Sprintf("DOWNLINE ROLL-UP: %s", user.Email), common.DefaultWidth)
	for i, t := range accountTypes {
		rollup, err := engine.ComputeDownlineRollup(ctx, user.Id, t.Id)
		if err != nil {
			return err
		}
		isLast := i == len(accountTypes)-1
		fmt.Printf("%s %s\n", common.BoxPrefix(isLast), t.Name)
		for _, r := range rollup {
			fmt.Printf("%s   %-15s %s\n", common.BoxDetailPrefix(isLast), groupNames[r.SymbolGroupId], r.Amount.String())
		}
	}
	common.PrintSeparator("=", common.DefaultWidth)
	return nil
}

func main() {
	ctx := context.Background()

	actionFlag := flag.String("action", "", "upgrade, set-rates, transfer-upline, retire or rollup")
	emailFlag := flag.String("email", "", "Target user's email (required)")
	ratesFlag := flag.String("rates", "", "Rates as accountType:symbolGroup=amount,... (upgrade, set-rates)")
	uplineFlag := flag.String("upline", "", "New upline's email (transfer-upline)")
	editedByFlag := flag.Int64("edited-by", 0, "Operator user id")
	flag.Parse()

	if *actionFlag == "" || *emailFlag == "" {
		fmt.Fprintln(os.Stderr, "Flags are required: --action and --email")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger(cfg.LogMode)
	defer loggerCleanup()

	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	engine := rebate.NewEngine(dbService, cfg.Rebate)

	user, err := dbService.GetUserByEmail(ctx, *emailFlag)
	if err != nil {
		zap.L().Fatal("User not found", zap.String("email", *emailFlag), zap.Error(err))
	}

	switch *actionFlag {
	case "upgrade", "set-rates":
		typeIds, groupIds, err := catalogIds(ctx, dbService)
		if err != nil {
			zap.L().Fatal("Failed to read catalog", zap.Error(err))
		}
		rates, err := parseRates(*ratesFlag, typeIds, groupIds)
		if err != nil {
			zap.L().Fatal("Invalid --rates", zap.Error(err))
		}
		req := rebate.RatesRequest{UserId: user.Id, Rates: rates, EditedBy: *editedByFlag}
		if *actionFlag == "upgrade" {
			err = engine.UpgradeToIB(ctx, req)
		} else {
			err = engine.UpdateRates(ctx, req)
		}
		if err != nil {
			reportValidation(err)
			os.Exit(1)
		}
		common.Success("%d rates saved for %s", len(rates), user.Email)

	case "transfer-upline":
		upline, err := dbService.GetUserByEmail(ctx, *uplineFlag)
		if err != nil {
			zap.L().Fatal("Upline not found", zap.String("email", *uplineFlag), zap.Error(err))
		}
		result, err := dbService.TransferUpline(ctx, user.Id, upline.Id, *editedByFlag)
		if err != nil {
			common.Failure("%v", err)
			os.Exit(1)
		}
		common.PrintHeader("UPLINE TRANSFERRED", common.DefaultWidth)
		fmt.Printf("User:              %s (%d)\n", user.Email, result.UserId)
		fmt.Printf("New upline:        %s (%d)\n", upline.Email, result.NewUplineId)
		fmt.Printf("Descendants moved: %d\n", result.DescendantsMoved)
		fmt.Printf("Allocations reset: %d\n", result.AllocationsReset)
		common.PrintSeparator("=", common.DefaultWidth)

	case "retire":
		if err := dbService.RetireUser(ctx, user.Id, *editedByFlag); err != nil {
			common.Failure("%v", err)
			os.Exit(1)
		}
		common.Success("User %s retired", user.Email)

	case "rollup":
		if err := printRollup(ctx, engine, dbService, user); err != nil {
			zap.L().Fatal("Failed to compute roll-up", zap.Error(err))
		}

	default:
		fmt.Fprintf(os.Stderr, "Unknown action: %s\n", *actionFlag)
		os.Exit(2)
	}
}
