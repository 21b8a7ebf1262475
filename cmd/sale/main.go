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
	"creator-ledger-go/internal/money"
	"creator-ledger-go/internal/settlement"

	"go.uber.org/zap"
)

func printSettlement(result *settlement.SaleSettlement, currency string) {
	fmt.Printf("Seller share: %s\n", common.FormatMoney(result.Split.SellerShare, currency))
	fmt.Printf("Cut:          %s\n", common.FormatMoney(result.Split.CutShare, currency))
	if result.RoyaltySkipped {
		fmt.Println("Royalty:      retained by platform (creator has no wallet)")
	}
	fmt.Println()
	for i, leg := range result.Results {
		fmt.Printf("%s %-6s %s %s\n",
			common.BoxPrefix(i == len(result.Results)-1),
			leg.Transaction.Type,
			common.FormatOptionalMoney(leg.Transaction.FiatAmount, leg.Transaction.Currency),
			leg.Transaction.Id)
	}
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	assetFlag := flag.String("asset", "", "Asset id being sold (required)")
	buyerFlag := flag.String("buyer", "", "Buyer user id (required)")
	amountFlag := flag.String("amount", "", "Sale amount, e.g. 99.99 (required)")
	keyFlag := flag.String("key", "", "Idempotency key of the sale (required)")
	flag.Parse()

	if *assetFlag == "" || *buyerFlag == "" || *amountFlag == "" || *keyFlag == "" {
		logger.Fatal("Missing required flags: -asset, -buyer, -amount and -key")
	}

	amount, err := money.ParseFiat(*amountFlag)
	if err != nil {
		logger.Fatal("Invalid amount", zap.String("amount", *amountFlag), zap.Error(err))
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

	buyer, err := services.DbService.GetWalletByUser(ctx, *buyerFlag)
	if err != nil {
		logger.Fatal("Failed to find buyer wallet", zap.String("user_id", *buyerFlag), zap.Error(err))
	}

	result, err := services.Settler.SettleSale(ctx, settlement.SaleEvent{
		AssetId:        *assetFlag,
		SaleAmount:     amount,
		BuyerWalletId:  buyer.Id,
		BuyerUserId:    *buyerFlag,
		IdempotencyKey: *keyFlag,
	})
	if err != nil {
		logger.Fatal("Failed to settle sale", zap.String("asset_id", *assetFlag), zap.Error(err))
	}

	common.PrintHeader("SALE SETTLED: "+*assetFlag, common.DefaultWidth)
	printSettlement(result, cfg.Ledger.Currency)
	common.PrintFooter(fmt.Sprintf("SUMMARY: %d ledger transactions", len(result.Results)), common.DefaultWidth)

	logger.Info("Sale settled",
		zap.String("asset_id", *assetFlag),
		zap.String("buyer_id", *buyerFlag),
		zap.Int("legs", len(result.Results)))
}
