package store

import (
	"context"
	"errors"
	"time"

	"rebate-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared by every backend and engine.
var (
	ErrNotFound               = errors.New("not found")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrEmailTaken             = errors.New("email already registered")
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrInvalidAction          = errors.New("invalid action")
	ErrSameUpline             = errors.New("new upline is the current upline")
	ErrHierarchyCycle         = errors.New("new upline is inside the user's own subtree")
	ErrRootRetirement         = errors.New("the root user cannot be retired")
	ErrWalletNotEmpty         = errors.New("wallet balance is not zero")
	ErrAlreadyIB              = errors.New("user is already an IB")
	ErrNotIB                  = errors.New("user is not an IB")
	ErrRateExceedsCeiling     = errors.New("rebate rate exceeds upline rate")
	ErrRateBelowFloor         = errors.New("rebate rate is below a downline rate")
	ErrInactiveAccount        = errors.New("trading account is inactive")
	ErrAlreadySettled         = errors.New("billboard profile already settled for this period")
	ErrBalanceMismatch        = errors.New("wallet balance does not match its ledger")
)

// CreateUserParams contains the parameters for adding a node to the tree.
type CreateUserParams struct {
	Name     string
	Email    string
	Role     models.Role
	UplineId *int64
}

// AllocationRate is one (account type, symbol group) rate.
type AllocationRate struct {
	AccountTypeId int64
	SymbolGroupId int64
	Amount        decimal.Decimal
}

// Key identifies the rate cell.
func (r AllocationRate) Key() AllocationKey {
	return AllocationKey{AccountTypeId: r.AccountTypeId, SymbolGroupId: r.SymbolGroupId}
}

type AllocationKey struct {
	AccountTypeId int64
	SymbolGroupId int64
}

// UpgradeToIBParams carries the complete row-set for a newly promoted IB.
type UpgradeToIBParams struct {
	UserId   int64
	Rates    []AllocationRate
	EditedBy int64
}

// UpdateAllocationsParams carries rate edits for an existing IB.
type UpdateAllocationsParams struct {
	UserId   int64
	Rates    []AllocationRate
	EditedBy int64
}

// TransferResult summarizes an upline transfer.
type TransferResult struct {
	UserId           int64
	OldUplineId      *int64
	NewUplineId      int64
	DescendantsMoved int
	AllocationsReset int64
	GroupId          *int64
}

// PostWalletParams describes one wallet balance mutation.
type PostWalletParams struct {
	WalletId  int64
	Type      models.TransactionType
	Amount    decimal.Decimal
	Charges   decimal.Decimal
	Status    models.Status
	MetaLogin *int64
	Remarks   string
	HandledBy int64
}

// ResolveTransactionParams moves a processing transaction to a final status.
// Refund re-credits the wallet the row was debited from, on the same row.
type ResolveTransactionParams struct {
	TransactionId int64
	Status        models.Status
	Refund        bool
	TicketId      string
	HandledBy     int64
	Remarks       string
}

// AccountTransactionParams opens a processing trading-account adjustment.
type AccountTransactionParams struct {
	MetaLogin int64
	Type      models.TransactionType
	Amount    decimal.Decimal
	Remarks   string
	HandledBy int64
}

// CompleteAccountTransactionParams records a platform-confirmed adjustment.
type CompleteAccountTransactionParams struct {
	TransactionId int64
	TicketId      string
	Balance       decimal.Decimal
	Credit        decimal.Decimal
	Equity        decimal.Decimal
}

// TradingAccountParams registers a trading account mirror.
type TradingAccountParams struct {
	UserId        int64
	MetaLogin     int64
	AccountTypeId int64
}

// AccountSnapshot is the platform-reported state of a trading account.
type AccountSnapshot struct {
	MetaLogin int64
	Balance   decimal.Decimal
	Credit    decimal.Decimal
	Equity    decimal.Decimal
}

// TradeHistoryParams records an externally fed deal.
type TradeHistoryParams struct {
	MetaLogin int64
	DealId    string
	Symbol    string
	TradeLots decimal.Decimal
	Status    string
	ClosedAt  *time.Time
}

// CreateBillboardProfileParams configures a sales bonus for a user.
type CreateBillboardProfileParams struct {
	UserId                    int64
	SalesCalculationMode      string
	SalesCategory             string
	TargetAmount              decimal.Decimal
	BonusRate                 decimal.Decimal
	BonusCalculationThreshold decimal.Decimal
	CalculationPeriod         string
	NextPayoutAt              time.Time
}

// SettleBillboardParams posts one settlement firing. The profile's
// next_payout_at must still equal ExpectedNextPayoutAt for the post to apply.
type SettleBillboardParams struct {
	ProfileId            int64
	ExpectedNextPayoutAt time.Time
	NewNextPayoutAt      time.Time
	Bonus                models.BillboardBonus
}

// SettleBillboardResult is what a settlement firing wrote.
type SettleBillboardResult struct {
	Bonus       models.BillboardBonus
	Transaction *models.Transaction
}

// Store defines the contract the engines rely on.
type Store interface {
	// --- Users & hierarchy ---
	CreateUser(ctx context.Context, params CreateUserParams) (*models.User, error)
	GetUserById(ctx context.Context, userId int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUsers(ctx context.Context) ([]models.User, error)
	GetChildrenIds(ctx context.Context, userId int64) ([]int64, error)
	GetDirectChildren(ctx context.Context, userId int64) ([]models.User, error)
	TransferUpline(ctx context.Context, userId, newUplineId, editedBy int64) (*TransferResult, error)
	RetireUser(ctx context.Context, userId, editedBy int64) error
	CreateGroup(ctx context.Context, name string) (*models.Group, error)
	AssignUserGroup(ctx context.Context, userId, groupId int64) error
	GetUserGroupId(ctx context.Context, userId int64) (*int64, error)

	// --- Catalog ---
	SeedCatalog(ctx context.Context, accountTypes, symbolGroups []string) error
	ListAccountTypes(ctx context.Context) ([]models.AccountType, error)
	ListSymbolGroups(ctx context.Context) ([]models.SymbolGroup, error)

	// --- Rebate allocations ---
	GetAllocations(ctx context.Context, userId int64) ([]models.RebateAllocation, error)
	GetAllocation(ctx context.Context, userId, accountTypeId, symbolGroupId int64) (*models.RebateAllocation, error)
	GetDirectDownlineAllocations(ctx context.Context, userId, accountTypeId int64) ([]models.RebateAllocation, error)
	UpgradeToIB(ctx context.Context, params UpgradeToIBParams) error
	UpdateAllocations(ctx context.Context, params UpdateAllocationsParams) error
	InsertMissingAllocations(ctx context.Context, chunkSize int) (int, error)

	// --- Wallets & ledger ---
	EnsureWallet(ctx context.Context, userId int64, walletType models.WalletType) (*models.Wallet, error)
	GetWallet(ctx context.Context, walletId int64) (*models.Wallet, error)
	GetUserWallet(ctx context.Context, userId int64, walletType models.WalletType) (*models.Wallet, error)
	GetUserWallets(ctx context.Context, userId int64) ([]models.Wallet, error)
	PostWalletTransaction(ctx context.Context, params PostWalletParams) (*models.Transaction, error)
	ResolveTransaction(ctx context.Context, params ResolveTransactionParams) (*models.Transaction, error)
	GetTransaction(ctx context.Context, transactionId int64) (*models.Transaction, error)
	GetTransactionHistory(ctx context.Context, userId int64, limit, offset int) ([]models.Transaction, error)
	ReconcileWallet(ctx context.Context, walletId int64) error

	// --- Trading accounts ---
	CreateTradingAccount(ctx context.Context, params TradingAccountParams) (*models.TradingAccount, error)
	GetTradingAccount(ctx context.Context, metaLogin int64) (*models.TradingAccount, error)
	GetActiveTradingAccounts(ctx context.Context) ([]models.TradingAccount, error)
	UpdateTradingAccountSnapshot(ctx context.Context, snapshot AccountSnapshot) error
	SetTradingAccountActive(ctx context.Context, metaLogin int64, active bool) error
	OpenAccountTransaction(ctx context.Context, params AccountTransactionParams) (*models.Transaction, error)
	CompleteAccountTransaction(ctx context.Context, params CompleteAccountTransactionParams) (*models.Transaction, error)
	RecordTradeHistory(ctx context.Context, params TradeHistoryParams) error

	// --- Settlement ---
	CreateBillboardProfile(ctx context.Context, params CreateBillboardProfileParams) (*models.BillboardProfile, error)
	GetBillboardProfile(ctx context.Context, profileId int64) (*models.BillboardProfile, error)
	GetDueBillboardProfiles(ctx context.Context, until time.Time) ([]models.BillboardProfile, error)
	GetBillboardBonuses(ctx context.Context, profileId int64) ([]models.BillboardBonus, error)
	SumTransactions(ctx context.Context, userIds []int64, types []models.TransactionType, from, to time.Time) (decimal.Decimal, error)
	SumClosedTradeLots(ctx context.Context, userIds []int64, from, to time.Time) (decimal.Decimal, error)
	SettleBillboard(ctx context.Context, params SettleBillboardParams) (*SettleBillboardResult, error)

	// --- Lifecycle ---
	Close()
}
