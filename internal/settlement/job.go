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

package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rebate-ledger-go/internal/models"
	"rebate-ledger-go/internal/store"
	"rebate-ledger-go/internal/validation"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ProfileRequest configures a new sales bonus.
type ProfileRequest struct {
	UserId                    int64           `json:"user_id" validate:"required"`
	SalesCalculationMode      string          `json:"sales_calculation_mode" validate:"required,oneof=personal_sales group_sales"`
	SalesCategory             string          `json:"sales_category" validate:"required,oneof=gross_deposit net_deposit trade_volume"`
	TargetAmount              decimal.Decimal `json:"target_amount" validate:"gt=0"`
	BonusRate                 decimal.Decimal `json:"bonus_rate" validate:"gte=0"`
	BonusCalculationThreshold decimal.Decimal `json:"bonus_calculation_threshold" validate:"gte=0"`
	CalculationPeriod         string          `json:"calculation_period" validate:"omitempty,oneof=every_sunday every_second_sunday first_sunday_of_every_month"`
}

// Summary counts the outcome of one RunDue pass.
type Summary struct {
	Due     int
	Settled int
	Paid    int
	Skipped int
	Failed  int
}

type Job struct {
	store store.Store
	loc   *time.Location
	now   func() time.Time
}

func NewJob(s store.Store, cfg models.SettlementConfig) (*Job, error) {
	loc := time.UTC
	if cfg.Timezone != "" {
		var err error
		if loc, err = time.LoadLocation(cfg.Timezone); err != nil {
			return nil, fmt.Errorf("invalid settlement timezone %q: %w", cfg.Timezone, err)
		}
	}
	return &Job{store: s, loc: loc, now: time.Now}, nil
}

// Location is the time zone windows are computed in.
func (j *Job) Location() *time.Location {
	return j.loc
}

// CreateProfile validates a profile and schedules its first payout from the
// period rule.
func (j *Job) CreateProfile(ctx context.Context, req ProfileRequest) (*models.BillboardProfile, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	period, err := ParsePeriod(req.CalculationPeriod)
	if err != nil {
		return nil, err
	}

	return j.store.CreateBillboardProfile(ctx, store.CreateBillboardProfileParams{
		UserId:                    req.UserId,
		SalesCalculationMode:      req.SalesCalculationMode,
		SalesCategory:             req.SalesCategory,
		TargetAmount:              req.TargetAmount,
		BonusRate:                 req.BonusRate,
		BonusCalculationThreshold: req.BonusCalculationThreshold,
		CalculationPeriod:         period.String(),
		NextPayoutAt:              period.Next(j.now().In(j.loc)).UTC(),
	})
}

// RunDue settles every profile whose payout date is on or before today.
// Each profile is settled for the date it was due, so a missed day is
// caught up one period per run. Failures are collected and never stop the
// remaining profiles.
func (j *Job) RunDue(ctx context.Context, today time.Time) (Summary, error) {
	until := startOfDay(today.In(j.loc)).AddDate(0, 0, 1)
	profiles, err := j.store.GetDueBillboardProfiles(ctx, until)
	if err != nil {
		return Summary{}, fmt.Errorf("unable to load due profiles: %w", err)
	}

	summary := Summary{Due: len(profiles)}
	var errs error
	for _, profile := range profiles {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}

		result, err := j.Settle(ctx, profile)
		switch {
		case errors.Is(err, store.ErrAlreadySettled):
			summary.Skipped++
			zap.L().Info("Profile already settled by another run", zap.Int64("profile_id", profile.Id))
		case err != nil:
			summary.Failed++
			errs = multierr.Append(errs, fmt.Errorf("profile %d: %w", profile.Id, err))
			zap.L().Error("Billboard settlement failed",
				zap.Int64("profile_id", profile.Id),
				zap.Int64("user_id", profile.UserId),
				zap.Error(err))
		default:
			summary.Settled++
			if result.Transaction != nil {
				summary.Paid++
			}
		}
	}

	zap.L().Info("Billboard settlement run complete",
		zap.Time("today", today),
		zap.Int("due", summary.Due),
		zap.Int("settled", summary.Settled),
		zap.Int("paid", summary.Paid),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed))
	return summary, errs
}

// Settle computes and posts one firing of a profile, advancing its
// next_payout_at by one period.
func (j *Job) Settle(ctx context.Context, profile models.BillboardProfile) (*store.SettleBillboardResult, error) {
	period, err := ParsePeriod(profile.CalculationPeriod)
	if err != nil {
		return nil, err
	}

	asOf := profile.NextPayoutAt.In(j.loc)
	window, err := period.Window(asOf)
	if err != nil {
		return nil, err
	}
	result, err := Compute(ctx, j.store, profile, window)
	if err != nil {
		return nil, err
	}

	next := period.Next(asOf)
	if !next.After(asOf) {
		return nil, fmt.Errorf("%w: next payout %s does not follow %s", ErrInvalidWindow, next, asOf)
	}

	zap.L().Debug("Billboard result computed",
		zap.Int64("profile_id", profile.Id),
		zap.Time("window_start", window.Start),
		zap.Time("window_end", window.End),
		zap.String("achieved", result.Achieved.String()),
		zap.String("percentage", result.Percentage.String()),
		zap.String("bonus", result.Bonus.String()))

	return j.store.SettleBillboard(ctx, store.SettleBillboardParams{
		ProfileId:            profile.Id,
		ExpectedNextPayoutAt: profile.NextPayoutAt,
		NewNextPayoutAt:      next.UTC(),
		Bonus: models.BillboardBonus{
			BillboardProfileId: profile.Id,
			UserId:             profile.UserId,
			TargetAmount:       profile.TargetAmount,
			AchievedAmount:     result.Achieved,
			AchievedPercentage: result.Percentage,
			BonusRate:          profile.BonusRate,
			BonusAmount:        result.Bonus,
			WindowStart:        window.Start.UTC(),
			WindowEnd:          window.End.UTC(),
			BonusMonth:         period.BonusMonth(next),
		},
	})
}
