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

package common

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"creator-ledger-go/internal/database"
	"creator-ledger-go/internal/integrity"
	"creator-ledger-go/internal/ledger"
	"creator-ledger-go/internal/lock"
	"creator-ledger-go/internal/models"
	"creator-ledger-go/internal/settlement"
	"creator-ledger-go/internal/store"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Try to load .env file - if it doesn't exist, that's okay
	// Environment variables can be set via other means (shell export, docker, etc.)
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	DbService *database.Service
	Engine    *ledger.Engine
	Settler   *settlement.Settler
	Resolver  *settlement.Resolver
	Verifier  *integrity.Verifier
	Redis     *redis.Client
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices opens the database and wires the ledger engine,
// settlement and verifier on top of it. A configured Redis address adds the
// distributed wallet lock.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	settlementConfig := settlement.ConfigFromSettings(cfg.Settlement)
	if err := settlementConfig.Validate(); err != nil {
		dbService.Close()
		return nil, fmt.Errorf("invalid settlement config: %w", err)
	}

	services := &Services{DbService: dbService}

	var opts []ledger.Option
	if cfg.Redis.Addr != "" {
		zap.L().Info("Connecting to Redis for wallet locks", zap.String("addr", cfg.Redis.Addr))
		client, err := connectRedis(ctx, cfg.Redis)
		if err != nil {
			dbService.Close()
			return nil, err
		}
		services.Redis = client
		opts = append(opts, ledger.WithLocker(lock.NewRedisLocker(client, cfg.Redis.LockTTL)))
	}

	services.Engine = ledger.NewEngine(dbService, ledger.Config{
		Currency:   cfg.Ledger.Currency,
		EventTopic: cfg.Kafka.Topic,
		RetryPolicy: store.RetryPolicy{
			MaxRetries: cfg.Ledger.MaxRetries,
			Backoff:    cfg.Ledger.RetryBackoff,
		},
	}, opts...)
	services.Settler = settlement.NewSettler(services.Engine, dbService, settlementConfig)
	services.Resolver = settlement.NewResolver(dbService, settlementConfig)
	services.Verifier = integrity.NewVerifier(dbService)

	return services, nil
}

// InitializeDatabaseOnly initializes just the database service
// Useful for read-only operations like querying balances
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

func (cs *Services) Close() {
	if cs.Redis != nil {
		if err := cs.Redis.Close(); err != nil {
			zap.L().Warn("Failed to close Redis client", zap.Error(err))
		}
	}
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func connectRedis(ctx context.Context, cfg models.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("unable to reach redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
