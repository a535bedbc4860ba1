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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"rebate-ledger-go/internal/models"
)

func Load() (*models.Config, error) {
	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	busyTimeout, err := getEnvDuration("DB_BUSY_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	requestTimeout, err := getEnvDuration("PLATFORM_REQUEST_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}

	tickInterval, err := getEnvDuration("SCHEDULER_TICK_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}

	refreshInterval, err := getEnvDuration("ACCOUNT_REFRESH_INTERVAL", 6*time.Hour)
	if err != nil {
		return nil, err
	}

	jobTimeout, err := getEnvDuration("JOB_TIMEOUT", 30*time.Minute)
	if err != nil {
		return nil, err
	}

	refreshAccountTimeout, err := getEnvDuration("REFRESH_ACCOUNT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	return &models.Config{
		LogMode: getEnvString("LOG_MODE", "release"),
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "rebate.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
			BusyTimeout:     busyTimeout,
			CatalogFile:     getEnvString("CATALOG_FILE", "catalog.yaml"),
		},
		Platform: models.PlatformConfig{
			BaseUrl:        getEnvString("PLATFORM_BASE_URL", ""),
			ApiKey:         getEnvString("PLATFORM_API_KEY", ""),
			RequestTimeout: requestTimeout,
			RatePerSecond:  getEnvFloat("PLATFORM_RATE_PER_SECOND", 10),
			Burst:          getEnvInt("PLATFORM_BURST", 5),
		},
		Scheduler: models.SchedulerConfig{
			TickInterval:           tickInterval,
			SettlementAt:           getEnvString("SETTLEMENT_AT", "08:00"),
			RebateSyncAt:           getEnvString("REBATE_SYNC_AT", "00:30"),
			AccountRefreshInterval: refreshInterval,
			JobTimeout:             jobTimeout,
		},
		Settlement: models.SettlementConfig{
			Timezone: getEnvString("SETTLEMENT_TIMEZONE", "UTC"),
		},
		Rebate: models.RebateConfig{
			SyncChunkSize:         getEnvInt("REBATE_SYNC_CHUNK_SIZE", 500),
			RefreshConcurrency:    getEnvInt("REFRESH_CONCURRENCY", 8),
			RefreshAccountTimeout: refreshAccountTimeout,
		},
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
