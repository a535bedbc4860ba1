package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"rebate-ledger-go/internal/models"
	"rebate-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultSyncChunkSize = 500

func (s *Service) GetAllocations(ctx context.Context, userId int64) ([]models.RebateAllocation, error) {
	return getAllocations(ctx, s.db, userId)
}

func getAllocations(ctx context.Context, q querier, userId int64) ([]models.RebateAllocation, error) {
	rows, err := q.QueryContext(ctx, queryGetAllocations, userId)
	if err != nil {
		return nil, fmt.Errorf("unable to query allocations: %w", err)
	}
	defer closeRows(rows)

	var out []models.RebateAllocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan allocation: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating allocation rows: %w", err)
	}
	return out, nil
}

func (s *Service) GetAllocation(ctx context.Context, userId, accountTypeId, symbolGroupId int64) (*models.RebateAllocation, error) {
	a, err := scanAllocation(s.db.QueryRowContext(ctx, queryGetAllocation, userId, accountTypeId, symbolGroupId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: allocation user=%d account_type=%d symbol_group=%d",
				store.ErrNotFound, userId, accountTypeId, symbolGroupId)
		}
		return nil, fmt.Errorf("unable to query allocation: %w", err)
	}
	return a, nil
}

// GetDirectDownlineAllocations returns the rows of userId's direct IB
// children for one account type.
func (s *Service) GetDirectDownlineAllocations(ctx context.Context, userId, accountTypeId int64) ([]models.RebateAllocation, error) {
	rows, err := s.db.QueryContext(ctx, queryGetDirectDownlineAllocations, userId, accountTypeId)
	if err != nil {
		return nil, fmt.Errorf("unable to query downline allocations: %w", err)
	}
	defer closeRows(rows)

	var out []models.RebateAllocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan allocation: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating allocation rows: %w", err)
	}
	return out, nil
}

func allocationMap(rows []models.RebateAllocation) map[store.AllocationKey]decimal.Decimal {
	out := make(map[store.AllocationKey]decimal.Decimal, len(rows))
	for _, r := range rows {
		out[store.AllocationKey{AccountTypeId: r.AccountTypeId, SymbolGroupId: r.SymbolGroupId}] = r.Amount
	}
	return out
}

// childIBFloors returns, per cell, the highest rate held by a direct IB child.
func childIBFloors(ctx context.Context, tx *sql.Tx, userId int64) (map[store.AllocationKey]decimal.Decimal, error) {
	rows, err := tx.QueryContext(ctx, queryGetChildIBAllocations, userId)
	if err != nil {
		return nil, fmt.Errorf("unable to query child allocations: %w", err)
	}
	defer closeRows(rows)

	floors := make(map[store.AllocationKey]decimal.Decimal)
	for rows.Next() {
		var key store.AllocationKey
		var amount decimal.Decimal
		if err := rows.Scan(&key.AccountTypeId, &key.SymbolGroupId, &amount); err != nil {
			return nil, fmt.Errorf("unable to scan child allocation: %w", err)
		}
		if current, ok := floors[key]; !ok || amount.GreaterThan(current) {
			floors[key] = amount
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating child allocation rows: %w", err)
	}
	return floors, nil
}

// UpgradeToIB promotes a member or agent to IB and writes one allocation row
// for every cell their upline holds. Cells missing from params.Rates get 0.
func (s *Service) UpgradeToIB(ctx context.Context, params store.UpgradeToIBParams) error {
	zap.L().Info("Upgrading user to IB",
		zap.Int64("user_id", params.UserId),
		zap.Int("rates", len(params.Rates)),
		zap.Int64("edited_by", params.EditedBy))

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		user, err := getUserById(ctx, tx, params.UserId)
		if err != nil {
			return err
		}
		if user.Role == models.RoleIB {
			return store.ErrAlreadyIB
		}
		if user.Role != models.RoleMember && user.Role != models.RoleAgent {
			return fmt.Errorf("%w: role %s cannot be promoted", store.ErrInvalidAction, user.Role)
		}
		if user.IsRoot() {
			return fmt.Errorf("%w: user %d has no upline", store.ErrInvalidAction, user.Id)
		}

		uplineRows, err := getAllocations(ctx, tx, *user.UplineId)
		if err != nil {
			return err
		}
		ceiling := allocationMap(uplineRows)

		proposed := make(map[store.AllocationKey]decimal.Decimal, len(params.Rates))
		for _, rate := range params.Rates {
			limit, ok := ceiling[rate.Key()]
			if !ok {
				return fmt.Errorf("%w: upline has no rate for account_type=%d symbol_group=%d",
					store.ErrRateExceedsCeiling, rate.AccountTypeId, rate.SymbolGroupId)
			}
			if rate.Amount.IsNegative() {
				return fmt.Errorf("%w: negative rate", store.ErrInvalidAmount)
			}
			if rate.Amount.GreaterThan(limit) {
				return fmt.Errorf("%w: %s > %s", store.ErrRateExceedsCeiling, rate.Amount.String(), limit.String())
			}
			proposed[rate.Key()] = rate.Amount
		}

		now := s.now()
		if _, err := tx.ExecContext(ctx, queryUpdateUserRole, string(models.RoleIB), now, user.Id); err != nil {
			return fmt.Errorf("unable to update role: %w", err)
		}

		for _, row := range uplineRows {
			key := store.AllocationKey{AccountTypeId: row.AccountTypeId, SymbolGroupId: row.SymbolGroupId}
			amount, ok := proposed[key]
			if !ok {
				amount = decimal.Zero
			}
			if _, err := tx.ExecContext(ctx, queryUpsertAllocation,
				user.Id, row.AccountTypeId, row.SymbolGroupId, amount, params.EditedBy, now, now); err != nil {
				return fmt.Errorf("unable to write allocation: %w", err)
			}
		}

		if _, err := ensureWallet(ctx, tx, user.Id, models.WalletRebate, now); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		zap.L().Warn("IB upgrade failed", zap.Int64("user_id", params.UserId), zap.Error(err))
		return err
	}

	zap.L().Info("User upgraded to IB", zap.Int64("user_id", params.UserId))
	return nil
}

// UpdateAllocations edits an existing IB's rates. Each new rate must stay at
// or below the upline's and at or above every direct IB child's.
func (s *Service) UpdateAllocations(ctx context.Context, params store.UpdateAllocationsParams) error {
	zap.L().Info("Updating allocations",
		zap.Int64("user_id", params.UserId),
		zap.Int("rates", len(params.Rates)))

	return s.withTx(ctx, func(tx *sql.Tx) error {
		user, err := getUserById(ctx, tx, params.UserId)
		if err != nil {
			return err
		}
		if user.Role != models.RoleIB {
			return store.ErrNotIB
		}

		var ceiling map[store.AllocationKey]decimal.Decimal
		if !user.IsRoot() {
			uplineRows, err := getAllocations(ctx, tx, *user.UplineId)
			if err != nil {
				return err
			}
			ceiling = allocationMap(uplineRows)
		}
		floors, err := childIBFloors(ctx, tx, user.Id)
		if err != nil {
			return err
		}

		now := s.now()
		for _, rate := range params.Rates {
			if rate.Amount.IsNegative() {
				return fmt.Errorf("%w: negative rate", store.ErrInvalidAmount)
			}
			if ceiling != nil {
				limit, ok := ceiling[rate.Key()]
				if !ok || rate.Amount.GreaterThan(limit) {
					return fmt.Errorf("%w: account_type=%d symbol_group=%d",
						store.ErrRateExceedsCeiling, rate.AccountTypeId, rate.SymbolGroupId)
				}
			}
			if floor, ok := floors[rate.Key()]; ok && rate.Amount.LessThan(floor) {
				return fmt.Errorf("%w: %s < %s", store.ErrRateBelowFloor, rate.Amount.String(), floor.String())
			}
			if _, err := tx.ExecContext(ctx, queryUpsertAllocation,
				user.Id, rate.AccountTypeId, rate.SymbolGroupId, rate.Amount, params.EditedBy, now, now); err != nil {
				return fmt.Errorf("unable to write allocation: %w", err)
			}
		}
		return nil
	})
}

type missingAllocation struct {
	userId, accountTypeId, symbolGroupId int64
}

// InsertMissingAllocations backfills a zero-rate row for every (IB, account
// type, symbol group) cell that has none, chunkSize rows per statement.
// Re-running it inserts nothing.
func (s *Service) InsertMissingAllocations(ctx context.Context, chunkSize int) (int, error) {
	if chunkSize <= 0 {
		chunkSize = defaultSyncChunkSize
	}

	missing, err := s.findMissingAllocations(ctx)
	if err != nil {
		return 0, err
	}
	if len(missing) == 0 {
		zap.L().Debug("No missing allocations")
		return 0, nil
	}

	inserted := 0
	for start := 0; start < len(missing); start += chunkSize {
		end := start + chunkSize
		if end > len(missing) {
			end = len(missing)
		}
		n, err := s.insertAllocationChunk(ctx, missing[start:end])
		if err != nil {
			return inserted, err
		}
		inserted += n
	}

	zap.L().Info("Inserted missing allocations",
		zap.Int("candidates", len(missing)),
		zap.Int("inserted", inserted),
		zap.Int("chunk_size", chunkSize))
	return inserted, nil
}

func (s *Service) findMissingAllocations(ctx context.Context) ([]missingAllocation, error) {
	rows, err := s.db.QueryContext(ctx, queryFindMissingAllocations)
	if err != nil {
		return nil, fmt.Errorf("unable to query missing allocations: %w", err)
	}
	defer closeRows(rows)

	var out []missingAllocation
	for rows.Next() {
		var m missingAllocation
		if err := rows.Scan(&m.userId, &m.accountTypeId, &m.symbolGroupId); err != nil {
			return nil, fmt.Errorf("unable to scan missing allocation: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating missing allocation rows: %w", err)
	}
	return out, nil
}

func (s *Service) insertAllocationChunk(ctx context.Context, chunk []missingAllocation) (int, error) {
	now := s.now()
	tuples := make([]string, 0, len(chunk))
	args := make([]any, 0, len(chunk)*5)
	for _, m := range chunk {
		tuples = append(tuples, "(?, ?, ?, '0', 0, ?, ?)")
		args = append(args, m.userId, m.accountTypeId, m.symbolGroupId, now, now)
	}

	var inserted int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, queryInsertMissingAllocationsPrefix+strings.Join(tuples, ", "), args...)
		if err != nil {
			return fmt.Errorf("unable to insert allocation chunk: %w", err)
		}
		inserted, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check rows affected: %w", err)
		}
		return nil
	})
	return int(inserted), err
}
