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
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"rebate-ledger-go/internal/common"
	"rebate-ledger-go/internal/config"
	"rebate-ledger-go/internal/scheduler"

	"go.uber.org/zap"
)

const (
	jobSettlement     = "billboard-settlement"
	jobRebateSync     = "rebate-sync"
	jobAccountRefresh = "account-refresh"
)

func registerJobs(s *scheduler.Scheduler, services *common.Services, settlementAt, rebateSyncAt string, refreshEvery time.Duration) error {
	loc := services.Settlement.Location()

	settlementSchedule, err := scheduler.DailyAt(settlementAt, loc)
	if err != nil {
		return err
	}
	if err := s.Add(jobSettlement, settlementSchedule, func(ctx context.Context) error {
		summary, err := services.Settlement.RunDue(ctx, time.Now().In(loc))
		zap.L().Info("Billboard settlement finished",
			zap.Int("due", summary.Due),
			zap.Int("settled", summary.Settled),
			zap.Int("paid", summary.Paid),
			zap.Int("skipped", summary.Skipped),
			zap.Int("failed", summary.Failed))
		return err
	}); err != nil {
		return err
	}

	syncSchedule, err := scheduler.DailyAt(rebateSyncAt, loc)
	if err != nil {
		return err
	}
	if err := s.Add(jobRebateSync, syncSchedule, func(ctx context.Context) error {
		inserted, err := services.Rebates.SyncMissingAllocations(ctx)
		zap.L().Info("Rebate allocation sync finished", zap.Int("inserted", inserted))
		return err
	}); err != nil {
		return err
	}

	return s.Add(jobAccountRefresh, scheduler.Every(refreshEvery), func(ctx context.Context) error {
		_, err := services.Refresher.RefreshAll(ctx)
		return err
	})
}

func main() {
	runNow := flag.String("run-now", "", "Comma-separated jobs to trigger once at startup (billboard-settlement, rebate-sync, account-refresh)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger(cfg.LogMode)
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting rebate ledger scheduler")

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	s := scheduler.New(cfg.Scheduler)
	if err := registerJobs(s, services, cfg.Scheduler.SettlementAt, cfg.Scheduler.RebateSyncAt, cfg.Scheduler.AccountRefreshInterval); err != nil {
		zap.L().Fatal("Failed to register jobs", zap.Error(err))
	}

	s.Start(ctx)

	if *runNow != "" {
		for _, name := range strings.Split(*runNow, ",") {
			if err := s.Trigger(strings.TrimSpace(name)); err != nil {
				zap.L().Error("Failed to trigger job", zap.String("job", name), zap.Error(err))
			}
		}
	}

	zap.L().Info("Scheduler running",
		zap.String("settlement_at", cfg.Scheduler.SettlementAt),
		zap.String("rebate_sync_at", cfg.Scheduler.RebateSyncAt),
		zap.Duration("account_refresh_interval", cfg.Scheduler.AccountRefreshInterval),
		zap.String("timezone", services.Settlement.Location().String()))
	zap.L().Info("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zap.L().Info("Shutdown signal received, stopping scheduler...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("Scheduler stopped gracefully")
	case <-shutdownCtx.Done():
		zap.L().Warn("Forced shutdown after timeout")
	}
}
