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
	"regexp"

	"creator-ledger-go/internal/common"
	"creator-ledger-go/internal/config"

	"go.uber.org/zap"
)

var userIdRegex = regexp.MustCompile(`^[a-zA-Z0-9._@\-]+$`)

func validateUserId(userId string) error {
	if userId == "" {
		return fmt.Errorf("user id cannot be empty")
	}
	if !userIdRegex.MatchString(userId) {
		return fmt.Errorf("invalid user id format: %s", userId)
	}
	return nil
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	userFlag := flag.String("user", "", "User id to create a wallet for (required)")
	flag.Parse()

	if err := validateUserId(*userFlag); err != nil {
		logger.Fatal("Invalid user id", zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	wallet, err := dbService.CreateWallet(ctx, *userFlag)
	if err != nil {
		logger.Fatal("Failed to create wallet", zap.String("user_id", *userFlag), zap.Error(err))
	}

	common.PrintHeader("WALLET CREATED", common.DefaultWidth)
	fmt.Printf("User:      %s\n", *userFlag)
	fmt.Printf("Wallet ID: %s\n", wallet.Id)
	fmt.Printf("Created:   %s\n", wallet.CreatedAt.Format("2006-01-02 15:04:05"))
	common.PrintSeparator("=", common.DefaultWidth)

	logger.Info("Wallet created",
		zap.String("user_id", *userFlag),
		zap.String("wallet_id", wallet.Id))
}
