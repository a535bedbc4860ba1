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

package accounts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rebate-ledger-go/internal/models"
	"rebate-ledger-go/internal/platform"
	"rebate-ledger-go/internal/store"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Platform reads account state from the trading platform.
type Platform interface {
	GetUser(ctx context.Context, metaLogin int64) (*platform.AccountState, error)
}

type Summary struct {
	Total       int
	Refreshed   int
	Deactivated int
}

// Refresher mirrors platform balances into the local trading accounts.
type Refresher struct {
	store       store.Store
	platform    Platform
	concurrency int
	timeout     time.Duration
}

func NewRefresher(s store.Store, p Platform, cfg models.RebateConfig) *Refresher {
	concurrency := cfg.RefreshConcurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	timeout := cfg.RefreshAccountTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Refresher{store: s, platform: p, concurrency: concurrency, timeout: timeout}
}

// RefreshAll walks every active account with bounded concurrency. A failing
// account is deactivated and reported, and the rest of the batch still runs.
func (r *Refresher) RefreshAll(ctx context.Context) (Summary, error) {
	accounts, err := r.store.GetActiveTradingAccounts(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("unable to list trading accounts: %w", err)
	}

	var (
		mu      sync.Mutex
		summary = Summary{Total: len(accounts)}
		errs    error
	)

	// The group only bounds concurrency: every closure returns nil and
	// per-account failures are collected in errs.
	g := new(errgroup.Group)
	g.SetLimit(r.concurrency)
	for _, account := range accounts {
		metaLogin := account.MetaLogin
		g.Go(func() error {
			deactivated, err := r.refresh(ctx, metaLogin)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("account %d: %w", metaLogin, err))
				if deactivated {
					summary.Deactivated++
				}
				return nil
			}
			summary.Refreshed++
			return nil
		})
	}
	_ = g.Wait()

	zap.L().Info("Trading account refresh complete",
		zap.Int("total", summary.Total),
		zap.Int("refreshed", summary.Refreshed),
		zap.Int("deactivated", summary.Deactivated))
	return summary, errs
}

// RefreshOne refreshes a single account by login.
func (r *Refresher) RefreshOne(ctx context.Context, metaLogin int64) error {
	_, err := r.refresh(ctx, metaLogin)
	return err
}

func (r *Refresher) refresh(ctx context.Context, metaLogin int64) (bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	state, err := r.platform.GetUser(callCtx, metaLogin)
	if err != nil {
		// A cancelled batch says nothing about the account itself.
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		zap.L().Warn("Unable to refresh trading account, marking inactive",
			zap.Int64("meta_login", metaLogin),
			zap.Error(err))
		if serr := r.store.SetTradingAccountActive(ctx, metaLogin, false); serr != nil {
			return false, multierr.Append(err, serr)
		}
		return true, err
	}

	return false, r.store.UpdateTradingAccountSnapshot(ctx, store.AccountSnapshot{
		MetaLogin: metaLogin,
		Balance:   state.Balance,
		Credit:    state.Credit,
		Equity:    state.Equity,
	})
}
