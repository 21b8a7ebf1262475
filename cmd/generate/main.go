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
	"creator-ledger-go/internal/settlement"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	userFlag := flag.String("user", "", "Creator user id (required)")
	assetFlag := flag.String("asset", "", "Asset id (optional, generated when empty)")
	sharingFlag := flag.Bool("sharing", false, "Creator has data sharing enabled")
	flag.Parse()

	if *userFlag == "" {
		logger.Fatal("Missing required flag: -user")
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

	decision, err := services.Resolver.RecordGeneration(ctx, settlement.GenerationEvent{
		UserId:             *userFlag,
		AssetId:            *assetFlag,
		DataSharingEnabled: *sharingFlag,
	})
	if err != nil {
		logger.Fatal("Failed to record generation", zap.String("user_id", *userFlag), zap.Error(err))
	}

	common.PrintHeader("GENERATION RECORDED", common.DefaultWidth)
	fmt.Printf("Asset:           %s\n", decision.AssetId)
	fmt.Printf("Ownership:       %s\n", decision.OwnershipType)
	fmt.Printf("Total generated: %d\n", decision.TotalGenerated)
	common.PrintSeparator("=", common.DefaultWidth)

	logger.Info("Generation recorded",
		zap.String("user_id", *userFlag),
		zap.String("asset_id", decision.AssetId),
		zap.String("ownership", string(decision.OwnershipType)))
}
