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
	"strings"

	"creator-ledger-go/internal/common"
	"creator-ledger-go/internal/config"
	"creator-ledger-go/internal/models"
	"creator-ledger-go/internal/store"

	"go.uber.org/zap"
)

func parseTypes(raw string) ([]models.TransactionType, error) {
	var types []models.TransactionType
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		t := models.TransactionType(part)
		if !t.Valid() {
			return nil, fmt.Errorf("unknown transaction type: %s", part)
		}
		types = append(types, t)
	}
	return types, nil
}

func printRecord(record models.TransactionRecord, isLast bool) {
	amount := common.FormatOptionalMoney(record.FiatAmount, record.Currency)
	if record.FiatAmount == nil {
		amount = common.FormatOptionalTokens(record.TokenAmount)
	}

	fmt.Printf("%s %s %-14s %-4s %18s  %-9s %s\n",
		common.BoxPrefix(isLast),
		record.CreatedAt.Format("2006-01-02 15:04:05"),
		record.Type,
		record.Direction,
		amount,
		record.Status,
		common.ShortId(record.Id))
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	userFlag := flag.String("user", "", "User id whose history to list (required)")
	typeFlag := flag.String("type", "", "Comma-separated transaction types to include (optional)")
	statusFlag := flag.String("status", "", "Only include transactions with this status (optional)")
	limitFlag := flag.Int("limit", 20, "Maximum number of transactions (at most 100)")
	offsetFlag := flag.Int("offset", 0, "Number of transactions to skip")
	flag.Parse()

	if *userFlag == "" {
		logger.Fatal("Missing required flag: -user")
	}

	types, err := parseTypes(*typeFlag)
	if err != nil {
		logger.Fatal("Invalid type filter", zap.Error(err))
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

	records, err := services.Engine.GetTransactionHistory(ctx, *userFlag, store.HistoryFilter{
		Types:  types,
		Status: models.TransactionStatus(strings.ToUpper(*statusFlag)),
		Limit:  *limitFlag,
		Offset: *offsetFlag,
	})
	if err != nil {
		logger.Fatal("Failed to get transaction history", zap.String("user_id", *userFlag), zap.Error(err))
	}

	common.PrintHeader("TRANSACTION HISTORY: "+*userFlag, common.DefaultWidth)
	for i, record := range records {
		printRecord(record, i == len(records)-1)
	}
	common.PrintFooter(fmt.Sprintf("SUMMARY: %d transactions", len(records)), common.DefaultWidth)

	logger.Info("History query completed",
		zap.String("user_id", *userFlag),
		zap.Int("count", len(records)))
}
