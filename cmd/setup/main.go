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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"creator-ledger-go/internal/common"
	"creator-ledger-go/internal/config"
	"creator-ledger-go/internal/database"
	"creator-ledger-go/internal/store"

	"go.uber.org/zap"
)

type setupStats struct {
	created  int
	existing int
	failed   []string
}

func parseUserIds(raw string) []string {
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func createUserWallets(ctx context.Context, dbService *database.Service, userIds []string) setupStats {
	stats := setupStats{failed: []string{}}

	for _, userId := range userIds {
		if _, err := dbService.GetWalletByUser(ctx, userId); err == nil {
			fmt.Printf("✓ %s: wallet already exists\n", userId)
			stats.existing++
			continue
		} else if !errors.Is(err, store.ErrWalletNotFound) {
			zap.L().Error("Failed to look up wallet", zap.String("user_id", userId), zap.Error(err))
			stats.failed = append(stats.failed, userId)
			continue
		}

		wallet, err := dbService.CreateWallet(ctx, userId)
		if err != nil {
			zap.L().Error("Failed to create wallet", zap.String("user_id", userId), zap.Error(err))
			fmt.Printf("✗ %s: failed to create wallet\n", userId)
			stats.failed = append(stats.failed, userId)
			continue
		}

		fmt.Printf("✓ %s: %s\n", userId, wallet.Id)
		stats.created++
	}

	return stats
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	usersFlag := flag.String("users", "", "Comma-separated user ids to create wallets for (optional)")
	flag.Parse()

	logger.Info("Starting ledger setup")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Opening the database applies the schema
	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	common.PrintHeader("LEDGER SETUP", common.DefaultWidth)

	platform, err := dbService.EnsurePlatformWallet(ctx)
	if err != nil {
		logger.Fatal("Failed to ensure platform wallet", zap.Error(err))
	}
	fmt.Printf("Platform wallet: %s\n\n", platform.Id)

	stats := createUserWallets(ctx, dbService, parseUserIds(*usersFlag))

	summary := fmt.Sprintf("SUMMARY: %d wallets created, %d already existed, %d failed",
		stats.created, stats.existing, len(stats.failed))
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("Ledger setup completed",
		zap.String("platform_wallet_id", platform.Id),
		zap.Int("created", stats.created),
		zap.Int("existing", stats.existing),
		zap.Strings("failed", stats.failed))
}
