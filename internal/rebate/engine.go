package rebate

import (
	"context"
	"fmt"
	"sort"

	"rebate-ledger-go/internal/models"
	"rebate-ledger-go/internal/store"
	"rebate-ledger-go/internal/validation"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProposedRate is one requested cell of an IB's rate matrix.
type ProposedRate struct {
	AccountTypeId int64           `json:"account_type_id" validate:"required"`
	SymbolGroupId int64           `json:"symbol_group_id" validate:"required"`
	Amount        decimal.Decimal `json:"amount" validate:"gte=0"`
}

type RatesRequest struct {
	UserId   int64          `json:"user_id" validate:"required"`
	Rates    []ProposedRate `json:"rates" validate:"dive"`
	EditedBy int64          `json:"edited_by"`
}

type Engine struct {
	store     store.Store
	chunkSize int
}

func NewEngine(s store.Store, cfg models.RebateConfig) *Engine {
	return &Engine{store: s, chunkSize: cfg.SyncChunkSize}
}

func (r ProposedRate) key() store.AllocationKey {
	return store.AllocationKey{AccountTypeId: r.AccountTypeId, SymbolGroupId: r.SymbolGroupId}
}

func toAllocationRates(rates []ProposedRate) []store.AllocationRate {
	out := make([]store.AllocationRate, 0, len(rates))
	for _, r := range rates {
		out = append(out, store.AllocationRate{AccountTypeId: r.AccountTypeId, SymbolGroupId: r.SymbolGroupId, Amount: r.Amount})
	}
	return out
}

// UpgradeToIB promotes a member or agent. Every proposed rate is checked
// against the direct upline first; a *validation.Error lists each bad field
// and nothing is written.
func (e *Engine) UpgradeToIB(ctx context.Context, req RatesRequest) error {
	verr := validation.New()
	if err := validation.Struct(req); err != nil {
		fields, ok := validation.Fields(err)
		if !ok {
			return err
		}
		for k, v := range fields {
			verr.Add(k, v)
		}
		if _, missing := fields["user_id"]; missing {
			return verr
		}
	}

	user, err := e.store.GetUserById(ctx, req.UserId)
	if err != nil {
		return err
	}
	if user.Role == models.RoleIB {
		return store.ErrAlreadyIB
	}
	if user.IsRoot() {
		return fmt.Errorf("%w: user %d has no upline", store.ErrInvalidAction, user.Id)
	}

	ceiling, err := e.allocationMap(ctx, *user.UplineId)
	if err != nil {
		return err
	}
	checkRates(verr, req.Rates, ceiling, nil)
	if err := verr.OrNil(); err != nil {
		zap.L().Info("IB upgrade rejected by validation",
			zap.Int64("user_id", req.UserId),
			zap.Int("fields", len(verr.Fields)))
		return err
	}

	return e.store.UpgradeToIB(ctx, store.UpgradeToIBParams{
		UserId:   req.UserId,
		Rates:    toAllocationRates(req.Rates),
		EditedBy: req.EditedBy,
	})
}

// UpdateRates edits an existing IB's matrix. Rates stay within
// [max of direct IB children, upline rate].
func (e *Engine) UpdateRates(ctx context.Context, req RatesRequest) error {
	verr := validation.New()
	if err := validation.Struct(req); err != nil {
		fields, ok := validation.Fields(err)
		if !ok {
			return err
		}
		for k, v := range fields {
			verr.Add(k, v)
		}
		if _, missing := fields["user_id"]; missing {
			return verr
		}
	}

	user, err := e.store.GetUserById(ctx, req.UserId)
	if err != nil {
		return err
	}
	if user.Role != models.RoleIB {
		return store.ErrNotIB
	}

	var ceiling map[store.AllocationKey]decimal.Decimal
	if !user.IsRoot() {
		if ceiling, err = e.allocationMap(ctx, *user.UplineId); err != nil {
			return err
		}
	}

	floors := make(map[store.AllocationKey]decimal.Decimal)
	seen := make(map[int64]bool)
	for _, r := range req.Rates {
		if seen[r.AccountTypeId] {
			continue
		}
		seen[r.AccountTypeId] = true
		rollup, err := e.ComputeDownlineRollup(ctx, user.Id, r.AccountTypeId)
		if err != nil {
			return err
		}
		for _, g := range rollup {
			floors[store.AllocationKey{AccountTypeId: r.AccountTypeId, SymbolGroupId: g.SymbolGroupId}] = g.Amount
		}
	}

	checkRates(verr, req.Rates, ceiling, floors)
	if err := verr.OrNil(); err != nil {
		return err
	}

	return e.store.UpdateAllocations(ctx, store.UpdateAllocationsParams{
		UserId:   req.UserId,
		Rates:    toAllocationRates(req.Rates),
		EditedBy: req.EditedBy,
	})
}

// checkRates records a field error for every rate that is duplicated, has no
// upline cell, exceeds its ceiling or falls under its floor. A nil ceiling
// means the user is the root and has none.
func checkRates(verr *validation.Error, rates []ProposedRate, ceiling, floors map[store.AllocationKey]decimal.Decimal) {
	seen := make(map[store.AllocationKey]int, len(rates))
	for i, r := range rates {
		field := fmt.Sprintf("rates[%d].amount", i)
		if first, dup := seen[r.key()]; dup {
			verr.Add(field, fmt.Sprintf("duplicates rates[%d]", first))
			continue
		}
		seen[r.key()] = i

		if ceiling != nil {
			limit, ok := ceiling[r.key()]
			if !ok {
				verr.Add(field, "upline has no rate for this account type and symbol group")
				continue
			}
			if r.Amount.GreaterThan(limit) {
				verr.Add(field, "must not exceed the upline rate of "+limit.String())
				continue
			}
		}
		if floor, ok := floors[r.key()]; ok && r.Amount.LessThan(floor) {
			verr.Add(field, "must not be below the downline rate of "+floor.String())
		}
	}
}

func (e *Engine) allocationMap(ctx context.Context, userId int64) (map[store.AllocationKey]decimal.Decimal, error) {
	rows, err := e.store.GetAllocations(ctx, userId)
	if err != nil {
		return nil, err
	}
	out := make(map[store.AllocationKey]decimal.Decimal, len(rows))
	for _, r := range rows {
		out[store.AllocationKey{AccountTypeId: r.AccountTypeId, SymbolGroupId: r.SymbolGroupId}] = r.Amount
	}
	return out, nil
}

// SyncMissingAllocations gives every IB a zero row for each catalog cell it
// lacks and returns how many were inserted.
func (e *Engine) SyncMissingAllocations(ctx context.Context) (int, error) {
	inserted, err := e.store.InsertMissingAllocations(ctx, e.chunkSize)
	if err != nil {
		zap.L().Error("Allocation sync failed", zap.Int("inserted", inserted), zap.Error(err))
		return inserted, err
	}
	zap.L().Info("Allocation sync complete", zap.Int("inserted", inserted))
	return inserted, nil
}

// ComputeDownlineRollup returns, per symbol group, the highest rate held by
// any direct IB child for the account type.
func (e *Engine) ComputeDownlineRollup(ctx context.Context, userId, accountTypeId int64) ([]models.GroupRate, error) {
	rows, err := e.store.GetDirectDownlineAllocations(ctx, userId, accountTypeId)
	if err != nil {
		return nil, err
	}

	best := make(map[int64]decimal.Decimal)
	for _, r := range rows {
		if current, ok := best[r.SymbolGroupId]; !ok || r.Amount.GreaterThan(current) {
			best[r.SymbolGroupId] = r.Amount
		}
	}

	out := make([]models.GroupRate, 0, len(best))
	for groupId, amount := range best {
		out = append(out, models.GroupRate{SymbolGroupId: groupId, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SymbolGroupId < out[j].SymbolGroupId })
	return out, nil
}

// UplineRate returns the direct upline's rate for one cell. Levels are never
// skipped: a missing cell on the direct upline is store.ErrNotFound.
func (e *Engine) UplineRate(ctx context.Context, userId, accountTypeId, symbolGroupId int64) (decimal.Decimal, error) {
	user, err := e.store.GetUserById(ctx, userId)
	if err != nil {
		return decimal.Zero, err
	}
	if user.IsRoot() {
		return decimal.Zero, fmt.Errorf("%w: user %d has no upline", store.ErrNotFound, userId)
	}
	row, err := e.store.GetAllocation(ctx, *user.UplineId, accountTypeId, symbolGroupId)
	if err != nil {
		return decimal.Zero, err
	}
	return row.Amount, nil
}
