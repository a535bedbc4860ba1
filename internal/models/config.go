package models

import "time"

// Config represents the application configuration
type Config struct {
	LogMode    string
	Database   DatabaseConfig
	Platform   PlatformConfig
	Scheduler  SchedulerConfig
	Settlement SettlementConfig
	Rebate     RebateConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	BusyTimeout     time.Duration
	CatalogFile     string
}

// PlatformConfig holds trading platform bridge settings
type PlatformConfig struct {
	BaseUrl        string
	ApiKey         string
	RequestTimeout time.Duration
	RatePerSecond  float64
	Burst          int
}

// SchedulerConfig holds periodic job settings
type SchedulerConfig struct {
	TickInterval           time.Duration
	SettlementAt           string
	RebateSyncAt           string
	AccountRefreshInterval time.Duration
	JobTimeout             time.Duration
}

// SettlementConfig holds sales-bonus settlement settings
type SettlementConfig struct {
	Timezone string
}

// RebateConfig holds rebate allocation settings
type RebateConfig struct {
	SyncChunkSize         int
	RefreshConcurrency    int
	RefreshAccountTimeout time.Duration
}
