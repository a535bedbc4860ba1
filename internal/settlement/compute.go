package settlement

import (
	"context"
	"fmt"

	"rebate-ledger-go/internal/models"
	"rebate-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

type Category int

const (
	GrossDeposit Category = iota
	NetDeposit
	TradeVolume
)

func ParseCategory(s string) (Category, error) {
	switch s {
	case "gross_deposit":
		return GrossDeposit, nil
	case "net_deposit":
		return NetDeposit, nil
	case "trade_volume":
		return TradeVolume, nil
	}
	return 0, fmt.Errorf("unknown sales category %q", s)
}

func (c Category) String() string {
	switch c {
	case NetDeposit:
		return "net_deposit"
	case TradeVolume:
		return "trade_volume"
	default:
		return "gross_deposit"
	}
}

type Mode int

const (
	PersonalSales Mode = iota
	GroupSales
)

func ParseMode(s string) (Mode, error) {
	switch s {
	case "personal_sales":
		return PersonalSales, nil
	case "group_sales":
		return GroupSales, nil
	}
	return 0, fmt.Errorf("unknown sales calculation mode %q", s)
}

func (m Mode) String() string {
	if m == GroupSales {
		return "group_sales"
	}
	return "personal_sales"
}

var (
	depositTypes    = []models.TransactionType{models.TypeDeposit, models.TypeBalanceIn}
	withdrawalTypes = []models.TransactionType{models.TypeWithdrawal, models.TypeBalanceOut, models.TypeRebateOut}
	hundred         = decimal.NewFromInt(100)
)

// Result is what a profile achieved over one window.
type Result struct {
	Achieved   decimal.Decimal
	Percentage decimal.Decimal
	Bonus      decimal.Decimal
}

// Compute derives a profile's result from stored transactions and trades
// only, so calling it twice over the same window gives the same answer.
func Compute(ctx context.Context, s store.Store, profile models.BillboardProfile, window Window) (Result, error) {
	if err := window.validate(); err != nil {
		return Result{}, err
	}
	mode, err := ParseMode(profile.SalesCalculationMode)
	if err != nil {
		return Result{}, err
	}
	category, err := ParseCategory(profile.SalesCategory)
	if err != nil {
		return Result{}, err
	}

	userIds := []int64{profile.UserId}
	if mode == GroupSales {
		children, err := s.GetChildrenIds(ctx, profile.UserId)
		if err != nil {
			return Result{}, fmt.Errorf("unable to load downline: %w", err)
		}
		userIds = append(userIds, children...)
	}

	var achieved decimal.Decimal
	switch category {
	case GrossDeposit, NetDeposit:
		achieved, err = s.SumTransactions(ctx, userIds, depositTypes, window.Start, window.End)
		if err != nil {
			return Result{}, err
		}
		if category == NetDeposit {
			out, err := s.SumTransactions(ctx, userIds, withdrawalTypes, window.Start, window.End)
			if err != nil {
				return Result{}, err
			}
			achieved = achieved.Sub(out)
		}
	case TradeVolume:
		achieved, err = s.SumClosedTradeLots(ctx, userIds, window.Start, window.End)
		if err != nil {
			return Result{}, err
		}
	}

	return evaluate(category, profile, achieved), nil
}

// evaluate applies the percentage, bonus formula and threshold gate.
func evaluate(category Category, profile models.BillboardProfile, achieved decimal.Decimal) Result {
	result := Result{Achieved: achieved, Percentage: decimal.Zero, Bonus: decimal.Zero}
	exact := decimal.Zero
	if profile.TargetAmount.IsPositive() {
		exact = achieved.Mul(hundred).Div(profile.TargetAmount)
	}
	// Only the stored snapshot is rounded; the threshold sees the exact ratio.
	result.Percentage = exact.Round(2)

	if exact.LessThan(profile.BonusCalculationThreshold) {
		return result
	}

	if category == TradeVolume {
		result.Bonus = profile.BonusRate
	} else {
		result.Bonus = achieved.Mul(profile.BonusRate).Div(hundred).Round(2)
	}
	if result.Bonus.IsNegative() {
		result.Bonus = decimal.Zero
	}
	return result
}
