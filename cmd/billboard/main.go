package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"rebate-ledger-go/internal/common"
	"rebate-ledger-go/internal/config"
	"rebate-ledger-go/internal/settlement"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func mustDecimal(name, value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid --%s: %v\n", name, err)
		os.Exit(2)
	}
	return d
}

func main() {
	ctx := context.Background()

	actionFlag := flag.String("action", "", "create, bonuses or run-due")
	emailFlag := flag.String("email", "", "Profile owner's email (create)")
	modeFlag := flag.String("mode", "personal_sales", "personal_sales or group_sales")
	categoryFlag := flag.String("category", "gross_deposit", "gross_deposit, net_deposit or trade_volume")
	targetFlag := flag.String("target", "", "Target amount (create)")
	rateFlag := flag.String("rate", "0", "Bonus rate: percent of sales, or a flat amount for trade_volume")
	thresholdFlag := flag.String("threshold", "0", "Minimum achieved percentage before a bonus is paid")
	periodFlag := flag.String("period", "", "every_sunday, every_second_sunday or first_sunday_of_every_month")
	profileFlag := flag.Int64("profile", 0, "Profile id (bonuses)")
	flag.Parse()

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

	job, err := settlement.NewJob(dbService, cfg.Settlement)
	if err != nil {
		zap.L().Fatal("Failed to initialize settlement", zap.Error(err))
	}

	switch *actionFlag {
	case "create":
		user, err := dbService.GetUserByEmail(ctx, *emailFlag)
		if err != nil {
			zap.L().Fatal("User not found", zap.String("email", *emailFlag), zap.Error(err))
		}
		profile, err := job.CreateProfile(ctx, settlement.ProfileRequest{
			UserId:                    user.Id,
			SalesCalculationMode:      *modeFlag,
			SalesCategory:             *categoryFlag,
			TargetAmount:              mustDecimal("target", *targetFlag),
			BonusRate:                 mustDecimal("rate", *rateFlag),
			BonusCalculationThreshold: mustDecimal("threshold", *thresholdFlag),
			CalculationPeriod:         *periodFlag,
		})
		if err != nil {
			common.Failure("%v", err)
			os.Exit(1)
		}
		common.PrintHeader("BILLBOARD PROFILE CREATED", common.DefaultWidth)
		fmt.Printf("Profile:     %d\n", profile.Id)
		fmt.Printf("User:        %s\n", user.Email)
		fmt.Printf("Scope:       %s / %s\n", profile.SalesCalculationMode, profile.SalesCategory)
		fmt.Printf("Target:      %s\n", profile.TargetAmount.String())
		fmt.Printf("Period:      %s\n", profile.CalculationPeriod)
		fmt.Printf("Next payout: %s\n", profile.NextPayoutAt.In(job.Location()).Format(time.RFC3339))
		common.PrintSeparator("=", common.DefaultWidth)

	case "bonuses":
		bonuses, err := dbService.GetBillboardBonuses(ctx, *profileFlag)
		if err != nil {
			zap.L().Fatal("Failed to list bonuses", zap.Int64("profile_id", *profileFlag), zap.Error(err))
		}
		common.PrintHeader(fmt.Sprintf("BONUSES FOR PROFILE %d", *profileFlag), common.WideWidth)
		for i, b := range bonuses {
			fmt.Printf("%s %s  achieved %12s (%6s%%)  bonus %10s  window %s .. %s\n",
				common.BoxPrefix(i == len(bonuses)-1),
				b.BonusMonth,
				b.AchievedAmount.StringFixed(2),
				b.AchievedPercentage.StringFixed(2),
				common.Amount(b.BonusAmount.StringFixed(2)),
				b.WindowStart.In(job.Location()).Format("2006-01-02"),
				b.WindowEnd.In(job.Location()).Format("2006-01-02"))
		}
		common.PrintSeparator("=", common.WideWidth)

	case "run-due":
		summary, err := job.RunDue(ctx, time.Now().In(job.Location()))
		common.PrintHeader("BILLBOARD SETTLEMENT", common.DefaultWidth)
		fmt.Printf("Due:     %d\n", summary.Due)
		fmt.Printf("Settled: %d\n", summary.Settled)
		fmt.Printf("Paid:    %d\n", summary.Paid)
		fmt.Printf("Skipped: %d\n", summary.Skipped)
		fmt.Printf("Failed:  %d\n", summary.Failed)
		common.PrintSeparator("=", common.DefaultWidth)
		if err != nil {
			common.Failure("%v", err)
			os.Exit(1)
		}

	default:
		fmt.Fprintf(os.Stderr, "Unknown action: %s\n", *actionFlag)
		os.Exit(2)
	}
}
