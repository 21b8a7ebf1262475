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
	"strings"
	"time"

	"creator-ledger-go/internal/models"
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

	retryBackoff, err := getEnvDuration("LEDGER_RETRY_BACKOFF", 25*time.Millisecond)
	if err != nil {
		return nil, err
	}

	lockTTL, err := getEnvDuration("WALLET_LOCK_TTL", 10*time.Second)
	if err != nil {
		return nil, err
	}

	monitorInterval, err := getEnvDuration("MONITOR_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	outboxInterval, err := getEnvDuration("OUTBOX_INTERVAL", time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &models.Config{
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "ledger.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
			BusyTimeout:     busyTimeout,
		},
		Ledger: models.LedgerConfig{
			Currency:     getEnvString("LEDGER_CURRENCY", "USD"),
			MaxRetries:   getEnvInt("LEDGER_MAX_RETRIES", 3),
			RetryBackoff: retryBackoff,
		},
		Settlement: models.SettlementConfig{
			SellerSharePercent:  getEnvInt("SELLER_SHARE_PERCENT", 90),
			ClaimRatioSharing:   getEnvUint("CLAIM_RATIO_SHARING", 5),
			ClaimRatioNoSharing: getEnvUint("CLAIM_RATIO_NO_SHARING", 2),
		},
		Redis: models.RedisConfig{
			Addr:     getEnvString("REDIS_ADDR", ""),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			LockTTL:  lockTTL,
		},
		Monitor: models.MonitorConfig{
			Interval: monitorInterval,
		},
		Kafka: models.KafkaConfig{
			Brokers:  getEnvList("KAFKA_BROKERS"),
			Topic:    getEnvString("KAFKA_TOPIC", "ledger.transactions"),
			ClientId: getEnvString("KAFKA_CLIENT_ID", "creator-ledger"),
		},
		Outbox: models.OutboxConfig{
			Interval:   outboxInterval,
			BatchSize:  getEnvInt("OUTBOX_BATCH_SIZE", 100),
			MaxRetries: getEnvInt("OUTBOX_MAX_RETRIES", 10),
		},
	}

	if settingsFile := getEnvString("LEDGER_SETTINGS_FILE", ""); settingsFile != "" {
		settings, err := LoadSettings(settingsFile)
		if err != nil {
			return nil, err
		}
		settings.apply(&cfg.Settlement)
	}

	if err := validateSettlement(cfg.Settlement); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping empty items
func getEnvList(key string) []string {
	var items []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
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

func getEnvUint(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if uintValue, err := strconv.ParseUint(value, 10, 64); err == nil {
			return uintValue
		}
	}
	return defaultValue
}
