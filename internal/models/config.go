package models

import "time"

// Config represents the application configuration
type Config struct {
	Database   DatabaseConfig
	Ledger     LedgerConfig
	Settlement SettlementConfig
	Redis      RedisConfig
	Monitor    MonitorConfig
	Kafka      KafkaConfig
	Outbox     OutboxConfig
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
}

// LedgerConfig holds ledger engine settings
type LedgerConfig struct {
	Currency     string
	MaxRetries   int
	RetryBackoff time.Duration
}

// SettlementConfig holds revenue split and ownership claim settings
type SettlementConfig struct {
	SellerSharePercent  int    `yaml:"seller_share_percent"`
	ClaimRatioSharing   uint64 `yaml:"claim_ratio_sharing"`
	ClaimRatioNoSharing uint64 `yaml:"claim_ratio_no_sharing"`
}

// RedisConfig holds the optional distributed wallet lock settings.
// An empty Addr disables the lock.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

// MonitorConfig holds the periodic integrity monitor settings
type MonitorConfig struct {
	Interval time.Duration
}

// KafkaConfig holds the broker the outbox relay publishes to.
// No brokers disables the relay.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	ClientId string
}

// OutboxConfig holds the outbox relay settings
type OutboxConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
}
