package database

import (
	"database/sql"
	"strings"
	"time"

	"rebate-ledger-go/internal/models"

	"go.uber.org/zap"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		zap.L().Warn("Failed to close rows", zap.Error(err))
	}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: v.UTC(), Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	out := v.Int64
	return &out
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	out := v.Time
	return &out
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func scanUser(r rowScanner) (*models.User, error) {
	var user models.User
	var role string
	var upline sql.NullInt64
	var deleted sql.NullTime
	if err := r.Scan(&user.Id, &user.Name, &user.Email, &role, &upline, &user.HierarchyList,
		&user.CreatedAt, &user.UpdatedAt, &deleted); err != nil {
		return nil, err
	}
	user.Role = models.Role(role)
	user.UplineId = int64Ptr(upline)
	user.DeletedAt = timePtr(deleted)
	return &user, nil
}

func scanAllocation(r rowScanner) (*models.RebateAllocation, error) {
	var a models.RebateAllocation
	if err := r.Scan(&a.Id, &a.UserId, &a.AccountTypeId, &a.SymbolGroupId, &a.Amount, &a.EditedBy,
		&a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func scanWallet(r rowScanner) (*models.Wallet, error) {
	var w models.Wallet
	var walletType string
	if err := r.Scan(&w.Id, &w.UserId, &walletType, &w.Balance, &w.Version, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	w.Type = models.WalletType(walletType)
	return &w, nil
}

func scanTransaction(r rowScanner) (*models.Transaction, error) {
	var t models.Transaction
	var category, txType, status string
	var walletId, metaLogin sql.NullInt64
	var approvedAt sql.NullTime
	if err := r.Scan(&t.Id, &t.TransactionNumber, &t.UserId, &category, &txType, &walletId, &metaLogin,
		&t.Amount, &t.TransactionCharges, &t.TransactionAmount, &t.OldWalletAmount, &t.NewWalletAmount,
		&t.WalletVersion, &t.TicketId, &status, &t.Remarks, &t.HandledBy, &approvedAt,
		&t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Category = models.Category(category)
	t.TransactionType = models.TransactionType(txType)
	t.Status = models.Status(status)
	t.WalletId = int64Ptr(walletId)
	t.MetaLogin = int64Ptr(metaLogin)
	t.ApprovedAt = timePtr(approvedAt)
	return &t, nil
}

func scanTradingAccount(r rowScanner) (*models.TradingAccount, error) {
	var a models.TradingAccount
	var refreshed sql.NullTime
	if err := r.Scan(&a.Id, &a.UserId, &a.MetaLogin, &a.AccountTypeId, &a.Balance, &a.Credit, &a.Equity,
		&a.Active, &refreshed, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.RefreshedAt = timePtr(refreshed)
	return &a, nil
}

func scanBillboardProfile(r rowScanner) (*models.BillboardProfile, error) {
	var p models.BillboardProfile
	if err := r.Scan(&p.Id, &p.UserId, &p.SalesCalculationMode, &p.SalesCategory, &p.TargetAmount,
		&p.BonusRate, &p.BonusCalculationThreshold, &p.CalculationPeriod, &p.NextPayoutAt,
		&p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanBillboardBonus(r rowScanner) (*models.BillboardBonus, error) {
	var b models.BillboardBonus
	var transactionId sql.NullInt64
	if err := r.Scan(&b.Id, &b.BillboardProfileId, &b.UserId, &b.TargetAmount, &b.AchievedAmount,
		&b.AchievedPercentage, &b.BonusRate, &b.BonusAmount, &b.WindowStart, &b.WindowEnd,
		&b.BonusMonth, &transactionId, &b.CreatedAt); err != nil {
		return nil, err
	}
	b.TransactionId = int64Ptr(transactionId)
	return &b, nil
}
