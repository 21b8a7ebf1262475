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
	"flag"
	"fmt"

	"creator-ledger-go/internal/common"
	"creator-ledger-go/internal/config"
	"creator-ledger-go/internal/ledger"
	"creator-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type balanceStats struct {
	totalWallets  int
	fundedWallets int
	totalFiat     decimal.Decimal
	totalTokens   uint64
}

func printWalletBalance(wallet common.WalletInfo, balance *models.Balance) {
	fmt.Printf("\n┌─ Wallet: %s\n", wallet.Label())
	fmt.Printf("│  ID: %s\n", wallet.Id)
	common.PrintBoxSeparator(78)
	fmt.Printf("%s %-15s: %20s\n", common.BoxPrefix(false), "Fiat", common.FormatMoney(balance.Fiat, balance.Currency))
	fmt.Printf("%s %-15s: %20d\n", common.BoxPrefix(true), "Tokens", balance.Tokens)
}

func processWalletsAndGenerateReport(ctx context.Context, wallets []common.WalletInfo, engine *ledger.Engine, logger *zap.Logger) balanceStats {
	stats := balanceStats{totalFiat: decimal.Zero}

	for _, wallet := range wallets {
		stats.totalWallets++

		balance, err := engine.GetBalance(ctx, wallet.Id)
		if err != nil {
			logger.Error("Failed to get balance",
				zap.String("wallet_id", wallet.Id),
				zap.String("user_id", wallet.UserId),
				zap.Error(err))
			continue
		}

		printWalletBalance(wallet, balance)

		if balance.Fiat.IsPositive() || balance.Tokens > 0 {
			stats.fundedWallets++
		}
		stats.totalFiat = stats.totalFiat.Add(balance.Fiat)
		stats.totalTokens += balance.Tokens
	}

	return stats
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	userFlag := flag.String("user", "", "Filter by specific user id (optional)")
	flag.Parse()

	logger.Info("Starting balance query")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	wallets, err := common.InitializeWallets(ctx, services.DbService, *userFlag, logger)
	if err != nil {
		logger.Fatal("Failed to initialize wallets", zap.Error(err))
	}

	common.PrintHeader("WALLET BALANCE REPORT", common.DefaultWidth)

	stats := processWalletsAndGenerateReport(ctx, wallets, services.Engine, logger)

	summary := fmt.Sprintf("SUMMARY: %d of %d wallets funded (%s, %d tokens in total)",
		stats.fundedWallets, stats.totalWallets,
		common.FormatMoney(stats.totalFiat, cfg.Ledger.Currency), stats.totalTokens)
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("Balance query completed",
		zap.Int("wallets_queried", stats.totalWallets),
		zap.Int("wallets_funded", stats.fundedWallets),
		zap.String("total_fiat", stats.totalFiat.StringFixed(2)),
		zap.Uint64("total_tokens", stats.totalTokens))
}
