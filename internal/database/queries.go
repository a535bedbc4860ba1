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

const (
	userColumns = `id, name, email, role, upline_id, hierarchy_list, created_at, updated_at, deleted_at`

	// User queries
	queryGetActiveUsers = `
		SELECT ` + userColumns + `
		FROM users
		WHERE deleted_at IS NULL
		ORDER BY id`

	queryInsertUser = `
		INSERT INTO users (name, email, role, upline_id, hierarchy_list, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING ` + userColumns

	queryGetUserById = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = ? AND deleted_at IS NULL`

	queryGetUserByEmail = `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = ? AND deleted_at IS NULL`

	queryCountUsersByEmail = `
		SELECT COUNT(*) FROM users WHERE email = ?`

	queryGetSubtree = `
		SELECT id, role, hierarchy_list
		FROM users
		WHERE hierarchy_list LIKE ? || '%'
		ORDER BY id`

	queryGetActiveSubtreeIds = `
		SELECT id
		FROM users
		WHERE hierarchy_list LIKE ? || '%' AND deleted_at IS NULL
		ORDER BY id`

	queryGetDirectChildren = `
		SELECT ` + userColumns + `
		FROM users
		WHERE upline_id = ? AND deleted_at IS NULL
		ORDER BY id`

	queryUpdateUserPath = `
		UPDATE users SET hierarchy_list = ?, updated_at = ? WHERE id = ?`

	queryUpdateUserUpline = `
		UPDATE users SET upline_id = ?, hierarchy_list = ?, updated_at = ? WHERE id = ?`

	queryUpdateUserRole = `
		UPDATE users SET role = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`

	querySoftDeleteUser = `
		UPDATE users SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`

	// Group queries
	queryInsertGroup = `
		INSERT INTO groups (name, created_at) VALUES (?, ?)
		RETURNING id, name, created_at`

	queryGetUserGroupId = `
		SELECT group_id FROM group_has_users WHERE user_id = ?`

	queryUpsertGroupMember = `
		INSERT INTO group_has_users (group_id, user_id) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET group_id = excluded.group_id`

	queryDeleteGroupMember = `
		DELETE FROM group_has_users WHERE user_id = ?`

	// Catalog queries
	queryInsertAccountType = `
		INSERT OR IGNORE INTO account_types (name) VALUES (?)`

	queryInsertSymbolGroup = `
		INSERT OR IGNORE INTO symbol_groups (name) VALUES (?)`

	queryListAccountTypes = `
		SELECT id, name FROM account_types ORDER BY id`

	queryListSymbolGroups = `
		SELECT id, name FROM symbol_groups ORDER BY id`

	// Rebate allocation queries
	allocationColumns = `id, user_id, account_type_id, symbol_group_id, amount, edited_by, created_at, updated_at`

	queryGetAllocations = `
		SELECT ` + allocationColumns + `
		FROM rebate_allocations
		WHERE user_id = ?
		ORDER BY account_type_id, symbol_group_id`

	queryGetAllocation = `
		SELECT ` + allocationColumns + `
		FROM rebate_allocations
		WHERE user_id = ? AND account_type_id = ? AND symbol_group_id = ?`

	queryGetDirectDownlineAllocations = `
		SELECT r.id, r.user_id, r.account_type_id, r.symbol_group_id, r.amount, r.edited_by, r.created_at, r.updated_at
		FROM rebate_allocations r
		JOIN users u ON u.id = r.user_id
		WHERE u.upline_id = ? AND u.role = 'ib' AND u.deleted_at IS NULL AND r.account_type_id = ?
		ORDER BY r.user_id, r.symbol_group_id`

	queryGetChildIBAllocations = `
		SELECT r.account_type_id, r.symbol_group_id, r.amount
		FROM rebate_allocations r
		JOIN users u ON u.id = r.user_id
		WHERE u.upline_id = ? AND u.role = 'ib' AND u.deleted_at IS NULL`

	queryUpsertAllocation = `
		INSERT INTO rebate_allocations (user_id, account_type_id, symbol_group_id, amount, edited_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, account_type_id, symbol_group_id)
		DO UPDATE SET amount = excluded.amount, edited_by = excluded.edited_by, updated_at = excluded.updated_at`

	queryResetAllocations = `
		UPDATE rebate_allocations SET amount = '0', edited_by = ?, updated_at = ? WHERE user_id = ?`

	queryDeleteAllocations = `
		DELETE FROM rebate_allocations WHERE user_id = ?`

	queryCountProcessingWalletTransactions = `
		SELECT COUNT(*) FROM transactions
		WHERE user_id = ? AND wallet_id IS NOT NULL AND status = 'processing'`

	queryFindMissingAllocations = `
		SELECT u.id, a.id, g.id
		FROM users u
		CROSS JOIN account_types a
		CROSS JOIN symbol_groups g
		LEFT JOIN rebate_allocations r
			ON r.user_id = u.id AND r.account_type_id = a.id AND r.symbol_group_id = g.id
		WHERE u.role = 'ib' AND u.deleted_at IS NULL AND r.id IS NULL
		ORDER BY u.id, a.id, g.id`

	// insert-or-ignore prefix; one "(?, ?, ?, '0', 0, ?, ?)" tuple is appended per row
	queryInsertMissingAllocationsPrefix = `
		INSERT OR IGNORE INTO rebate_allocations (user_id, account_type_id, symbol_group_id, amount, edited_by, created_at, updated_at)
		VALUES `

	// Wallet queries
	walletColumns = `id, user_id, type, balance, version, created_at, updated_at`

	queryInsertWallet = `
		INSERT OR IGNORE INTO wallets (user_id, type, balance, version, created_at, updated_at)
		VALUES (?, ?, '0', 1, ?, ?)`

	queryGetWallet = `
		SELECT ` + walletColumns + `
		FROM wallets
		WHERE id = ?`

	queryGetUserWallet = `
		SELECT ` + walletColumns + `
		FROM wallets
		WHERE user_id = ? AND type = ?`

	queryGetUserWallets = `
		SELECT ` + walletColumns + `
		FROM wallets
		WHERE user_id = ?
		ORDER BY type`

	queryUpdateWalletBalance = `
		UPDATE wallets
		SET balance = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`

	queryGetLatestWalletTransaction = `
		SELECT new_wallet_amount, wallet_version
		FROM transactions
		WHERE wallet_id = ? AND wallet_version > 0
		ORDER BY wallet_version DESC
		LIMIT 1`

	// Transaction queries
	transactionColumns = `id, transaction_number, user_id, category, transaction_type, wallet_id, meta_login,
		amount, transaction_charges, transaction_amount, old_wallet_amount, new_wallet_amount, wallet_version,
		ticket_id, status, remarks, handle_by, approved_at, created_at, updated_at`

	queryInsertTransaction = `
		INSERT INTO transactions (
			transaction_number, user_id, category, transaction_type, wallet_id, meta_login,
			amount, transaction_charges, transaction_amount, old_wallet_amount, new_wallet_amount, wallet_version,
			ticket_id, status, remarks, handle_by, approved_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING ` + transactionColumns

	queryGetTransaction = `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE id = ?`

	queryResolveTransaction = `
		UPDATE transactions
		SET status = ?, ticket_id = ?, handle_by = ?, remarks = ?, approved_at = ?, updated_at = ?
		WHERE id = ? AND status = 'processing'`

	queryRefundTransaction = `
		UPDATE transactions
		SET old_wallet_amount = ?, new_wallet_amount = ?, wallet_version = ?
		WHERE id = ?`

	queryCompleteAccountTransaction = `
		UPDATE transactions
		SET status = 'successful', ticket_id = ?, new_wallet_amount = ?, approved_at = ?, updated_at = ?
		WHERE id = ? AND status = 'processing'`

	queryGetTransactionHistory = `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT ? OFFSET ?`

	// Trading account queries
	tradingAccountColumns = `id, user_id, meta_login, account_type_id, balance, credit, equity, active, refreshed_at, created_at, updated_at`

	queryInsertTradingAccount = `
		INSERT INTO trading_accounts (user_id, meta_login, account_type_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING ` + tradingAccountColumns

	queryGetTradingAccount = `
		SELECT ` + tradingAccountColumns + `
		FROM trading_accounts
		WHERE meta_login = ?`

	queryGetActiveTradingAccounts = `
		SELECT ` + tradingAccountColumns + `
		FROM trading_accounts
		WHERE active = 1
		ORDER BY meta_login`

	queryUpdateTradingAccountSnapshot = `
		UPDATE trading_accounts
		SET balance = ?, credit = ?, equity = ?, refreshed_at = ?, updated_at = ?
		WHERE meta_login = ?`

	querySetTradingAccountActive = `
		UPDATE trading_accounts SET active = ?, updated_at = ? WHERE meta_login = ?`

	queryDeactivateUserTradingAccounts = `
		UPDATE trading_accounts SET active = 0, updated_at = ? WHERE user_id = ?`

	queryInsertTradeHistory = `
		INSERT INTO trade_histories (meta_login, deal_id, symbol, trade_lots, status, closed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(deal_id) DO UPDATE SET
			trade_lots = excluded.trade_lots, status = excluded.status, closed_at = excluded.closed_at`

	// Settlement queries
	billboardProfileColumns = `id, user_id, sales_calculation_mode, sales_category, target_amount, bonus_rate,
		bonus_calculation_threshold, calculation_period, next_payout_at, created_at, updated_at`

	queryInsertBillboardProfile = `
		INSERT INTO billboard_profiles (
			user_id, sales_calculation_mode, sales_category, target_amount, bonus_rate,
			bonus_calculation_threshold, calculation_period, next_payout_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING ` + billboardProfileColumns

	queryGetBillboardProfile = `
		SELECT ` + billboardProfileColumns + `
		FROM billboard_profiles
		WHERE id = ?`

	queryGetDueBillboardProfiles = `
		SELECT p.id, p.user_id, p.sales_calculation_mode, p.sales_category, p.target_amount, p.bonus_rate,
		       p.bonus_calculation_threshold, p.calculation_period, p.next_payout_at, p.created_at, p.updated_at
		FROM billboard_profiles p
		JOIN users u ON u.id = p.user_id
		WHERE p.next_payout_at < ? AND u.deleted_at IS NULL
		ORDER BY p.next_payout_at, p.id`

	queryAdvanceBillboardProfile = `
		UPDATE billboard_profiles
		SET next_payout_at = ?, updated_at = ?
		WHERE id = ? AND next_payout_at = ?`

	billboardBonusColumns = `id, billboard_profile_id, user_id, target_amount, achieved_amount, achieved_percentage,
		bonus_rate, bonus_amount, window_start, window_end, bonus_month, transaction_id, created_at`

	queryInsertBillboardBonus = `
		INSERT INTO billboard_bonuses (
			billboard_profile_id, user_id, target_amount, achieved_amount, achieved_percentage,
			bonus_rate, bonus_amount, window_start, window_end, bonus_month, transaction_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING ` + billboardBonusColumns

	queryGetBillboardBonuses = `
		SELECT ` + billboardBonusColumns + `
		FROM billboard_bonuses
		WHERE billboard_profile_id = ?
		ORDER BY window_start`
)
