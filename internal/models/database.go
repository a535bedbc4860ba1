package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleSuperAdmin Role = "super-admin"
	RoleAdmin      Role = "admin"
	RoleAgent      Role = "agent"
	RoleIB         Role = "ib"
	RoleMember     Role = "member"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleAgent, RoleIB, RoleMember:
		return true
	}
	return false
}

// User is a node of the affiliate tree
type User struct {
	Id            int64      `db:"id"`
	Name          string     `db:"name"`
	Email         string     `db:"email"`
	Role          Role       `db:"role"`
	UplineId      *int64     `db:"upline_id"`
	HierarchyList string     `db:"hierarchy_list"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
	DeletedAt     *time.Time `db:"deleted_at"`
}

// IsRoot reports whether the user sits at the top of the tree.
func (u User) IsRoot() bool {
	return u.UplineId == nil
}

type AccountType struct {
	Id   int64  `db:"id"`
	Name string `db:"name"`
}

type SymbolGroup struct {
	Id   int64  `db:"id"`
	Name string `db:"name"`
}

// RebateAllocation is one cell of a user's rebate rate matrix
type RebateAllocation struct {
	Id            int64           `db:"id"`
	UserId        int64           `db:"user_id"`
	AccountTypeId int64           `db:"account_type_id"`
	SymbolGroupId int64           `db:"symbol_group_id"`
	Amount        decimal.Decimal `db:"amount"`
	EditedBy      int64           `db:"edited_by"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

type WalletType string

const (
	WalletRebate WalletType = "rebate_wallet"
	WalletBonus  WalletType = "bonus_wallet"
)

func (w WalletType) Valid() bool {
	return w == WalletRebate || w == WalletBonus
}

// Category is the ledger category a wallet of this type posts under.
func (w WalletType) Category() Category {
	if w == WalletBonus {
		return CategoryBonusWallet
	}
	return CategoryRebateWallet
}

// Wallet holds current balance state (hot data)
type Wallet struct {
	Id        int64           `db:"id"`
	UserId    int64           `db:"user_id"`
	Type      WalletType      `db:"type"`
	Balance   decimal.Decimal `db:"balance"`
	Version   int64           `db:"version"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

type Category string

const (
	CategoryTradingAccount Category = "trading_account"
	CategoryWallet         Category = "wallet"
	CategoryBonusWallet    Category = "bonus_wallet"
	CategoryRebateWallet   Category = "rebate_wallet"
)

type TransactionType string

const (
	TypeDeposit           TransactionType = "deposit"
	TypeWithdrawal        TransactionType = "withdrawal"
	TypeBalanceIn         TransactionType = "balance_in"
	TypeBalanceOut        TransactionType = "balance_out"
	TypeCreditIn          TransactionType = "credit_in"
	TypeCreditOut         TransactionType = "credit_out"
	TypeRebateIn          TransactionType = "rebate_in"
	TypeRebateOut         TransactionType = "rebate_out"
	TypeBonus             TransactionType = "bonus"
	TypeTransferToAccount TransactionType = "transfer_to_account"
	TypeAccountToAccount  TransactionType = "account_to_account"
	TypePenaltyFee        TransactionType = "penalty_fee"
)

// IsDebit reports whether the type reduces the balance it is posted against.
func (t TransactionType) IsDebit() bool {
	switch t {
	case TypeWithdrawal, TypeBalanceOut, TypeCreditOut, TypeRebateOut, TypeTransferToAccount, TypePenaltyFee, TypeAccountToAccount:
		return true
	}
	return false
}

func (t TransactionType) Valid() bool {
	switch t {
	case TypeDeposit, TypeWithdrawal, TypeBalanceIn, TypeBalanceOut, TypeCreditIn, TypeCreditOut,
		TypeRebateIn, TypeRebateOut, TypeBonus, TypeTransferToAccount, TypeAccountToAccount, TypePenaltyFee:
		return true
	}
	return false
}

// TouchesCredit reports whether a trading-account adjustment moves credit rather than balance.
func (t TransactionType) TouchesCredit() bool {
	return t == TypeCreditIn || t == TypeCreditOut
}

type Status string

const (
	StatusProcessing Status = "processing"
	StatusSuccessful Status = "successful"
	StatusRejected   Status = "rejected"
	StatusFailed     Status = "failed"
)

// Transaction is the immutable audit record of a balance-affecting event (cold data).
// Old/NewWalletAmount hold the balance of the wallet or trading account the
// row was posted against, immediately before and after the mutation.
type Transaction struct {
	Id                 int64           `db:"id"`
	TransactionNumber  string          `db:"transaction_number"`
	UserId             int64           `db:"user_id"`
	Category           Category        `db:"category"`
	TransactionType    TransactionType `db:"transaction_type"`
	WalletId           *int64          `db:"wallet_id"`
	MetaLogin          *int64          `db:"meta_login"`
	Amount             decimal.Decimal `db:"amount"`
	TransactionCharges decimal.Decimal `db:"transaction_charges"`
	TransactionAmount  decimal.Decimal `db:"transaction_amount"`
	OldWalletAmount    decimal.Decimal `db:"old_wallet_amount"`
	NewWalletAmount    decimal.Decimal `db:"new_wallet_amount"`
	WalletVersion      int64           `db:"wallet_version"`
	TicketId           string          `db:"ticket_id"`
	Status             Status          `db:"status"`
	Remarks            string          `db:"remarks"`
	HandledBy          int64           `db:"handle_by"`
	ApprovedAt         *time.Time      `db:"approved_at"`
	CreatedAt          time.Time       `db:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at"`
}

// TradingAccount is the local mirror of an account on the trading platform
type TradingAccount struct {
	Id            int64           `db:"id"`
	UserId        int64           `db:"user_id"`
	MetaLogin     int64           `db:"meta_login"`
	AccountTypeId int64           `db:"account_type_id"`
	Balance       decimal.Decimal `db:"balance"`
	Credit        decimal.Decimal `db:"credit"`
	Equity        decimal.Decimal `db:"equity"`
	Active        bool            `db:"active"`
	RefreshedAt   *time.Time      `db:"refreshed_at"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

// TradeHistory is an externally fed deal record
type TradeHistory struct {
	Id        int64           `db:"id"`
	MetaLogin int64           `db:"meta_login"`
	DealId    string          `db:"deal_id"`
	Symbol    string          `db:"symbol"`
	TradeLots decimal.Decimal `db:"trade_lots"`
	Status    string          `db:"status"`
	ClosedAt  *time.Time      `db:"closed_at"`
	CreatedAt time.Time       `db:"created_at"`
}

const TradeStatusClosed = "closed"

// BillboardProfile is a user's sales-bonus configuration
type BillboardProfile struct {
	Id                        int64           `db:"id"`
	UserId                    int64           `db:"user_id"`
	SalesCalculationMode      string          `db:"sales_calculation_mode"`
	SalesCategory             string          `db:"sales_category"`
	TargetAmount              decimal.Decimal `db:"target_amount"`
	BonusRate                 decimal.Decimal `db:"bonus_rate"`
	BonusCalculationThreshold decimal.Decimal `db:"bonus_calculation_threshold"`
	CalculationPeriod         string          `db:"calculation_period"`
	NextPayoutAt              time.Time       `db:"next_payout_at"`
	CreatedAt                 time.Time       `db:"created_at"`
	UpdatedAt                 time.Time       `db:"updated_at"`
}

// BillboardBonus is the append-only snapshot of one settlement firing
type BillboardBonus struct {
	Id                 int64           `db:"id"`
	BillboardProfileId int64           `db:"billboard_profile_id"`
	UserId             int64           `db:"user_id"`
	TargetAmount       decimal.Decimal `db:"target_amount"`
	AchievedAmount     decimal.Decimal `db:"achieved_amount"`
	AchievedPercentage decimal.Decimal `db:"achieved_percentage"`
	BonusRate          decimal.Decimal `db:"bonus_rate"`
	BonusAmount        decimal.Decimal `db:"bonus_amount"`
	WindowStart        time.Time       `db:"window_start"`
	WindowEnd          time.Time       `db:"window_end"`
	BonusMonth         string          `db:"bonus_month"`
	TransactionId      *int64          `db:"transaction_id"`
	CreatedAt          time.Time       `db:"created_at"`
}

type Group struct {
	Id        int64     `db:"id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}
