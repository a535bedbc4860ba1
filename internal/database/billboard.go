package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rebate-ledger-go/internal/models"
	"rebate-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateBillboardProfile stores a sales-bonus profile and makes sure the
// user has a bonus wallet to be paid into.
func (s *Service) CreateBillboardProfile(ctx context.Context, params store.CreateBillboardProfileParams) (*models.BillboardProfile, error) {
	var profile *models.BillboardProfile
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getUserById(ctx, tx, params.UserId); err != nil {
			return err
		}
		now := s.now()
		p, err := scanBillboardProfile(tx.QueryRowContext(ctx, queryInsertBillboardProfile,
			params.UserId, params.SalesCalculationMode, params.SalesCategory,
			params.TargetAmount, params.BonusRate, params.BonusCalculationThreshold,
			params.CalculationPeriod, params.NextPayoutAt.UTC(), now, now))
		if err != nil {
			return fmt.Errorf("unable to insert billboard profile: %w", err)
		}
		if _, err := ensureWallet(ctx, tx, params.UserId, models.WalletBonus, now); err != nil {
			return err
		}
		profile = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Billboard profile created",
		zap.Int64("profile_id", profile.Id),
		zap.Int64("user_id", profile.UserId),
		zap.String("category", profile.SalesCategory),
		zap.Time("next_payout_at", profile.NextPayoutAt))
	return profile, nil
}

func (s *Service) GetBillboardProfile(ctx context.Context, profileId int64) (*models.BillboardProfile, error) {
	p, err := scanBillboardProfile(s.db.QueryRowContext(ctx, queryGetBillboardProfile, profileId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: billboard profile %d", store.ErrNotFound, profileId)
		}
		return nil, fmt.Errorf("unable to query billboard profile: %w", err)
	}
	return p, nil
}

// GetDueBillboardProfiles returns the profiles of active users whose
// next_payout_at falls before until.
func (s *Service) GetDueBillboardProfiles(ctx context.Context, until time.Time) ([]models.BillboardProfile, error) {
	rows, err := s.db.QueryContext(ctx, queryGetDueBillboardProfiles, until.UTC())
	if err != nil {
		return nil, fmt.Errorf("unable to query due profiles: %w", err)
	}
	defer closeRows(rows)

	var profiles []models.BillboardProfile
	for rows.Next() {
		p, err := scanBillboardProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan billboard profile: %w", err)
		}
		profiles = append(profiles, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating billboard profile rows: %w", err)
	}
	return profiles, nil
}

func (s *Service) GetBillboardBonuses(ctx context.Context, profileId int64) ([]models.BillboardBonus, error) {
	rows, err := s.db.QueryContext(ctx, queryGetBillboardBonuses, profileId)
	if err != nil {
		return nil, fmt.Errorf("unable to query billboard bonuses: %w", err)
	}
	defer closeRows(rows)

	var bonuses []models.BillboardBonus
	for rows.Next() {
		b, err := scanBillboardBonus(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan billboard bonus: %w", err)
		}
		bonuses = append(bonuses, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating billboard bonus rows: %w", err)
	}
	return bonuses, nil
}

// SumTransactions totals the successful transactions of the given types that
// were approved in [from, to).
func (s *Service) SumTransactions(ctx context.Context, userIds []int64, types []models.TransactionType, from, to time.Time) (decimal.Decimal, error) {
	if len(userIds) == 0 || len(types) == 0 {
		return decimal.Zero, nil
	}

	args := make([]any, 0, len(userIds)+len(types)+2)
	for _, id := range userIds {
		args = append(args, id)
	}
	for _, t := range types {
		args = append(args, string(t))
	}
	args = append(args, from.UTC(), to.UTC())

	query := `
		SELECT amount
		FROM transactions
		WHERE status = 'successful'
		  AND user_id IN (` + placeholders(len(userIds)) + `)
		  AND transaction_type IN (` + placeholders(len(types)) + `)
		  AND approved_at >= ? AND approved_at < ?`

	return s.sumDecimalColumn(ctx, query, args...)
}

// SumClosedTradeLots totals lots of closed deals on the users' trading
// accounts with closed_at in [from, to).
func (s *Service) SumClosedTradeLots(ctx context.Context, userIds []int64, from, to time.Time) (decimal.Decimal, error) {
	if len(userIds) == 0 {
		return decimal.Zero, nil
	}

	args := make([]any, 0, len(userIds)+3)
	for _, id := range userIds {
		args = append(args, id)
	}
	args = append(args, models.TradeStatusClosed, from.UTC(), to.UTC())

	query := `
		SELECT th.trade_lots
		FROM trade_histories th
		JOIN trading_accounts ta ON ta.meta_login = th.meta_login
		WHERE ta.user_id IN (` + placeholders(len(userIds)) + `)
		  AND th.status = ?
		  AND th.closed_at >= ? AND th.closed_at < ?`

	return s.sumDecimalColumn(ctx, query, args...)
}

// sumDecimalColumn adds up a TEXT money column in Go; SQLite SUM would go
// through floating point.
func (s *Service) sumDecimalColumn(ctx context.Context, query string, args ...any) (decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unable to query sum: %w", err)
	}
	defer closeRows(rows)

	total := decimal.Zero
	for rows.Next() {
		var v decimal.Decimal
		if err := rows.Scan(&v); err != nil {
			return decimal.Zero, fmt.Errorf("unable to scan amount: %w", err)
		}
		total = total.Add(v)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("error iterating amount rows: %w", err)
	}
	return total, nil
}

// SettleBillboard records one settlement firing. The profile advance acts as
// a compare-and-set so a period is paid at most once; the bonus credit and the
// bonus snapshot commit with it.
func (s *Service) SettleBillboard(ctx context.Context, params store.SettleBillboardParams) (*store.SettleBillboardResult, error) {
	result := &store.SettleBillboardResult{}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.now()
		res, err := tx.ExecContext(ctx, queryAdvanceBillboardProfile,
			params.NewNextPayoutAt.UTC(), now, params.ProfileId, params.ExpectedNextPayoutAt.UTC())
		if err != nil {
			return fmt.Errorf("unable to advance billboard profile: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("failed to check rows affected: %w", err)
		} else if n == 0 {
			return fmt.Errorf("%w: profile %d", store.ErrAlreadySettled, params.ProfileId)
		}

		bonus := params.Bonus
		if bonus.BonusAmount.IsPositive() {
			wallet, err := ensureWallet(ctx, tx, bonus.UserId, models.WalletBonus, now)
			if err != nil {
				return err
			}
			t, err := postWallet(ctx, tx, store.PostWalletParams{
				WalletId: wallet.Id,
				Type:     models.TypeBonus,
				Amount:   bonus.BonusAmount,
				Status:   models.StatusSuccessful,
				Remarks:  fmt.Sprintf("billboard bonus %s", bonus.BonusMonth),
			}, now)
			if err != nil {
				return err
			}
			result.Transaction = t
			bonus.TransactionId = &t.Id
		}

		inserted, err := scanBillboardBonus(tx.QueryRowContext(ctx, queryInsertBillboardBonus,
			params.ProfileId, bonus.UserId, bonus.TargetAmount, bonus.AchievedAmount, bonus.AchievedPercentage,
			bonus.BonusRate, bonus.BonusAmount, bonus.WindowStart.UTC(), bonus.WindowEnd.UTC(), bonus.BonusMonth,
			nullInt64(bonus.TransactionId), now))
		if err != nil {
			return fmt.Errorf("unable to insert billboard bonus: %w", err)
		}
		result.Bonus = *inserted
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Billboard profile settled",
		zap.Int64("profile_id", params.ProfileId),
		zap.String("bonus_month", result.Bonus.BonusMonth),
		zap.String("achieved", result.Bonus.AchievedAmount.String()),
		zap.String("bonus", result.Bonus.BonusAmount.String()),
		zap.Time("next_payout_at", params.NewNextPayoutAt))
	return result, nil
}
