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

package ledger

import (
	"context"
	"errors"
	"fmt"

	"creator-ledger-go/internal/models"
	"creator-ledger-go/internal/store"

	"go.uber.org/zap"
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// GetBalance returns the current balances of walletId
func (e *Engine) GetBalance(ctx context.Context, walletId string) (*models.Balance, error) {
	zap.L().Debug("Getting balance", zap.String("wallet_id", walletId))

	wallet, err := e.store.GetWallet(ctx, walletId)
	if err != nil {
		return nil, fmt.Errorf("wallet %s: %w", walletId, err)
	}
	return e.balanceOf(wallet), nil
}

// GetUserBalance returns the current balances of userId's wallet
func (e *Engine) GetUserBalance(ctx context.Context, userId string) (*models.Balance, error) {
	zap.L().Debug("Getting user balance", zap.String("user_id", userId))

	wallet, err := e.store.GetWalletByUser(ctx, userId)
	if err != nil {
		return nil, fmt.Errorf("wallet of user %s: %w", userId, err)
	}
	return e.balanceOf(wallet), nil
}

func (e *Engine) balanceOf(wallet *models.Wallet) *models.Balance {
	return &models.Balance{
		WalletId: wallet.Id,
		Fiat:     wallet.FiatBalance,
		Tokens:   wallet.TokenBalance,
		Currency: e.config.Currency,
	}
}

// GetTransactionHistory returns the transactions userId initiated or whose
// wallet they touch, newest first
func (e *Engine) GetTransactionHistory(ctx context.Context, userId string, filter store.HistoryFilter) ([]models.TransactionRecord, error) {
	if userId == "" {
		return nil, fmt.Errorf("%w: user id is required", store.ErrInvalidTransaction)
	}

	if filter.Limit <= 0 {
		filter.Limit = DefaultHistoryLimit
	}
	if filter.Limit > MaxHistoryLimit {
		filter.Limit = MaxHistoryLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	// A user without a wallet can still have initiated transactions.
	var walletId string
	wallet, err := e.store.GetWalletByUser(ctx, userId)
	switch {
	case err == nil:
		walletId = wallet.Id
	case !errors.Is(err, store.ErrWalletNotFound):
		return nil, fmt.Errorf("wallet of user %s: %w", userId, err)
	}

	transactions, err := e.store.GetTransactionHistory(ctx, userId, filter)
	if err != nil {
		zap.L().Error("Failed to get transaction history",
			zap.String("user_id", userId),
			zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve transaction history: %w", err)
	}

	result := make([]models.TransactionRecord, len(transactions))
	for i, tx := range transactions {
		result[i] = models.TransactionRecord{
			Id:          tx.Id,
			Type:        tx.Type,
			Direction:   direction(&tx, walletId),
			FiatAmount:  tx.FiatAmount,
			TokenAmount: tx.TokenAmount,
			Currency:    tx.Currency,
			Status:      tx.Status,
			Description: tx.Description,
			CreatedAt:   tx.CreatedAt,
		}
	}

	return result, nil
}

func direction(tx *models.Transaction, walletId string) string {
	switch {
	case walletId == "":
		return models.DirectionNone
	case tx.ToWalletId != nil && *tx.ToWalletId == walletId:
		return models.DirectionIn
	case tx.FromWalletId != nil && *tx.FromWalletId == walletId:
		return models.DirectionOut
	}
	return models.DirectionNone
}
