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

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	txFlag := flag.String("tx", "", "Id of the transaction to reverse (required)")
	reasonFlag := flag.String("reason", "", "Reason recorded on the reversal")
	actorFlag := flag.String("actor", "", "Id of the operator performing the reversal (required)")
	flag.Parse()

	if *txFlag == "" || *actorFlag == "" {
		logger.Fatal("Missing required flags: -tx and -actor")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	result, err := services.Engine.ReverseTransaction(ctx, *txFlag, *reasonFlag, *actorFlag)
	if err != nil {
		logger.Fatal("Failed to reverse transaction",
			zap.String("transaction_id", *txFlag),
			zap.Error(err))
	}

	common.PrintHeader("TRANSACTION REVERSED", common.DefaultWidth)
	fmt.Printf("Original: %s\n", *txFlag)
	fmt.Printf("Reversal: %s\n", result.Transaction.Id)
	fmt.Printf("Amount:   %s\n", common.FormatOptionalMoney(result.Transaction.FiatAmount, result.Transaction.Currency))
	fmt.Printf("Tokens:   %s\n", common.FormatOptionalTokens(result.Transaction.TokenAmount))
	common.PrintSeparator("=", common.DefaultWidth)

	logger.Info("Transaction reversed",
		zap.String("original_id", *txFlag),
		zap.String("reversal_id", result.Transaction.Id),
		zap.String("actor_id", *actorFlag))
}
