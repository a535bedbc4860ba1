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

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"rebate-ledger-go/internal/models"
	"rebate-ledger-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.Store.
var _ store.Store = (*Service)(nil)

type Service struct {
	db  *sql.DB
	now func() time.Time
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// Set connection timeouts and limits
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := newService(db)
	if err := service.initSchema(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

func newService(db *sql.DB) *Service {
	return &Service{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// dsn builds the go-sqlite3 connection string. Write transactions start with
// BEGIN IMMEDIATE so concurrent writers to the same wallet row are serialized
// before any balance is read.
func dsn(cfg models.DatabaseConfig) string {
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	params := []string{
		"_journal_mode=WAL",
		"_synchronous=NORMAL",
		"_cache_size=1000",
		"_foreign_keys=on",
		"_txlock=immediate",
		fmt.Sprintf("_busy_timeout=%d", busy.Milliseconds()),
	}
	return cfg.Path + "?" + strings.Join(params, "&")
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

// Ping is used by health checks.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// withTx runs fn inside one database transaction. Inside fn only tx may be
// used; touching s.db would need a second pooled connection.
func (s *Service) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Service) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

const schema = `
	-- Affiliate tree. hierarchy_list is the materialized ancestor path "-1-2-3-".
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		role TEXT NOT NULL DEFAULT 'member',
		upline_id INTEGER REFERENCES users(id),
		hierarchy_list TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		deleted_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_users_upline_id ON users(upline_id);
	CREATE INDEX IF NOT EXISTS idx_users_hierarchy_list ON users(hierarchy_list);
	CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);

	CREATE TABLE IF NOT EXISTS groups (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS group_has_users (
		group_id INTEGER NOT NULL REFERENCES groups(id),
		user_id INTEGER NOT NULL UNIQUE REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS account_types (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS symbol_groups (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);

	-- Money columns are TEXT decimal strings; never REAL.
	CREATE TABLE IF NOT EXISTS rebate_allocations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id),
		account_type_id INTEGER NOT NULL REFERENCES account_types(id),
		symbol_group_id INTEGER NOT NULL REFERENCES symbol_groups(id),
		amount TEXT NOT NULL DEFAULT '0',
		edited_by INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE(user_id, account_type_id, symbol_group_id)
	);

	CREATE INDEX IF NOT EXISTS idx_rebate_allocations_user ON rebate_allocations(user_id);

	-- Wallets (current state - hot data)
	CREATE TABLE IF NOT EXISTS wallets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id),
		type TEXT NOT NULL,
		balance TEXT NOT NULL DEFAULT '0',
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE(user_id, type)
	);

	-- Transactions (audit trail - cold data)
	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		transaction_number TEXT NOT NULL UNIQUE,
		user_id INTEGER NOT NULL REFERENCES users(id),
		category TEXT NOT NULL,
		transaction_type TEXT NOT NULL,
		wallet_id INTEGER REFERENCES wallets(id),
		meta_login INTEGER,
		amount TEXT NOT NULL,
		transaction_charges TEXT NOT NULL DEFAULT '0',
		transaction_amount TEXT NOT NULL,
		old_wallet_amount TEXT NOT NULL DEFAULT '0',
		new_wallet_amount TEXT NOT NULL DEFAULT '0',
		wallet_version INTEGER NOT NULL DEFAULT 0,
		ticket_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		remarks TEXT NOT NULL DEFAULT '',
		handle_by INTEGER NOT NULL DEFAULT 0,
		approved_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_user_id ON transactions(user_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_wallet_version ON transactions(wallet_id, wallet_version);
	CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions(status);
	CREATE INDEX IF NOT EXISTS idx_transactions_type_approved ON transactions(transaction_type, approved_at);

	CREATE TABLE IF NOT EXISTS trading_accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id),
		meta_login INTEGER NOT NULL UNIQUE,
		account_type_id INTEGER NOT NULL REFERENCES account_types(id),
		balance TEXT NOT NULL DEFAULT '0',
		credit TEXT NOT NULL DEFAULT '0',
		equity TEXT NOT NULL DEFAULT '0',
		active BOOLEAN NOT NULL DEFAULT 1,
		refreshed_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_trading_accounts_user ON trading_accounts(user_id);

	-- Externally fed deal history
	CREATE TABLE IF NOT EXISTS trade_histories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		meta_login INTEGER NOT NULL,
		deal_id TEXT NOT NULL UNIQUE,
		symbol TEXT NOT NULL,
		trade_lots TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL,
		closed_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_trade_histories_login_closed ON trade_histories(meta_login, closed_at);

	CREATE TABLE IF NOT EXISTS billboard_profiles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id),
		sales_calculation_mode TEXT NOT NULL,
		sales_category TEXT NOT NULL,
		target_amount TEXT NOT NULL,
		bonus_rate TEXT NOT NULL,
		bonus_calculation_threshold TEXT NOT NULL,
		calculation_period TEXT NOT NULL DEFAULT '',
		next_payout_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_billboard_profiles_next_payout ON billboard_profiles(next_payout_at);

	-- One row per settlement firing (append-only)
	CREATE TABLE IF NOT EXISTS billboard_bonuses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		billboard_profile_id INTEGER NOT NULL REFERENCES billboard_profiles(id),
		user_id INTEGER NOT NULL REFERENCES users(id),
		target_amount TEXT NOT NULL,
		achieved_amount TEXT NOT NULL,
		achieved_percentage TEXT NOT NULL,
		bonus_rate TEXT NOT NULL,
		bonus_amount TEXT NOT NULL,
		window_start TIMESTAMP NOT NULL,
		window_end TIMESTAMP NOT NULL,
		bonus_month TEXT NOT NULL,
		transaction_id INTEGER REFERENCES transactions(id),
		created_at TIMESTAMP NOT NULL,
		UNIQUE(billboard_profile_id, window_start)
	);
	`
