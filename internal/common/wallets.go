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

	"creator-ledger-go/internal/models"
	"creator-ledger-go/internal/store"

	"go.uber.org/zap"
)

// WalletInfo represents simplified wallet information for command-line utilities
type WalletInfo struct {
	Id     string
	UserId string
	Kind   models.WalletKind
}

// Label returns the user id, or "platform" for the platform wallet.
func (w WalletInfo) Label() string {
	if w.Kind == models.WalletKindPlatform {
		return "platform"
	}
	return w.UserId
}

// InitializeWallets retrieves wallets based on an optional user filter.
// If userFilter is provided, returns the single wallet of that user.
// If userFilter is empty, returns all wallets.
func InitializeWallets(ctx context.Context, dbService store.LedgerStore, userFilter string, logger *zap.Logger) ([]WalletInfo, error) {
	var wallets []WalletInfo

	if userFilter != "" {
		logger.Info("Looking up wallet by user", zap.String("user_id", userFilter))
		wallet, err := dbService.GetWalletByUser(ctx, userFilter)
		if err != nil {
			return nil, fmt.Errorf("wallet not found: %w", err)
		}
		wallets = append(wallets, toWalletInfo(wallet))
	} else {
		allWallets, err := dbService.ListWallets(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get wallets: %w", err)
		}
		for i := range allWallets {
			wallets = append(wallets, toWalletInfo(&allWallets[i]))
		}
	}

	logger.Info("Retrieved wallets", zap.Int("count", len(wallets)))
	return wallets, nil
}

func toWalletInfo(w *models.Wallet) WalletInfo {
	info := WalletInfo{Id: w.Id, Kind: w.Kind}
	if w.UserId != nil {
		info.UserId = *w.UserId
	}
	return info
}
