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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"creator-ledger-go/internal/models"
	"creator-ledger-go/internal/money"
	"creator-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type scanner interface {
	Scan(dest ...any) error
}

func getWallet(ctx context.Context, q queryer, query string, args ...any) (*models.Wallet, error) {
	wallet, err := scanWallet(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrWalletNotFound
	}
	if err != nil {
		return nil, classifyError(err)
	}
	return wallet, nil
}

func scanWallet(row scanner) (*models.Wallet, error) {
	var (
		wallet                 models.Wallet
		userId                 sql.NullString
		kind                   string
		fiatStr, tokenStr      string
		createdStr, updatedStr string
	)
	if err := row.Scan(&wallet.Id, &userId, &kind, &fiatStr, &tokenStr, &wallet.Version, &createdStr, &updatedStr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan wallet: %w", err)
	}

	wallet.UserId = stringPtr(userId)
	wallet.Kind = models.WalletKind(kind)

	var err error
	if wallet.FiatBalance, err = money.ParseFiat(fiatStr); err != nil {
		return nil, fmt.Errorf("failed to parse fiat balance of wallet %s: %w", wallet.Id, err)
	}
	tokens, err := money.ParseTokens(tokenStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token balance of wallet %s: %w", wallet.Id, err)
	}
	wallet.TokenBalance = uint64(tokens)
	if wallet.CreatedAt, err = parseTime(createdStr); err != nil {
		return nil, err
	}
	if wallet.UpdatedAt, err = parseTime(updatedStr); err != nil {
		return nil, err
	}
	return &wallet, nil
}

// ledgerTx implements store.LedgerTx on top of one *sql.Tx.
type ledgerTx struct {
	tx *sql.Tx
}

func (t *ledgerTx) GetWallet(ctx context.Context, walletId string) (*models.Wallet, error) {
	return getWallet(ctx, t.tx, queryGetWallet, walletId)
}

func (t *ledgerTx) GetWalletByUser(ctx context.Context, userId string) (*models.Wallet, error) {
	return getWallet(ctx, t.tx, queryGetWalletByUser, userId)
}

// ApplyDelta changes a wallet's balances by the given deltas. A result below
// zero fails with store.ErrInsufficientFunds and nothing is written.
func (t *ledgerTx) ApplyDelta(ctx context.Context, walletId string, fiatDelta decimal.Decimal, tokenDelta money.TokenDelta) (*models.Wallet, error) {
	wallet, err := t.GetWallet(ctx, walletId)
	if err != nil {
		return nil, err
	}

	newFiat, err := money.ApplyFiat(wallet.FiatBalance, fiatDelta)
	if err != nil {
		zap.L().Warn("Rejected fiat debit",
			zap.String("wallet_id", walletId),
			zap.String("balance", money.FormatFiat(wallet.FiatBalance)),
			zap.String("delta", money.FormatFiat(fiatDelta)))
		return nil, fmt.Errorf("%w: wallet %s has %s, needs %s",
			store.ErrInsufficientFunds, walletId, money.FormatFiat(wallet.FiatBalance), money.FormatFiat(fiatDelta.Neg()))
	}

	newTokens, err := tokenDelta.Apply(money.Tokens(wallet.TokenBalance))
	switch {
	case errors.Is(err, money.ErrNegativeResult):
		zap.L().Warn("Rejected token debit",
			zap.String("wallet_id", walletId),
			zap.Uint64("balance", wallet.TokenBalance),
			zap.Uint64("delta", uint64(tokenDelta.Amount)))
		return nil, fmt.Errorf("%w: wallet %s has %d tokens, needs %d",
			store.ErrInsufficientFunds, walletId, wallet.TokenBalance, uint64(tokenDelta.Amount))
	case err != nil:
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidTransaction, err)
	}

	now := time.Now()
	result, err := t.tx.ExecContext(ctx, queryUpdateWalletBalance,
		money.FormatFiat(newFiat), newTokens.String(), formatTime(now), walletId, wallet.Version)
	if err != nil {
		return nil, classifyError(fmt.Errorf("failed to update wallet balance: %w", err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("%w: wallet %s changed at version %d", store.ErrSerializationConflict, walletId, wallet.Version)
	}

	wallet.FiatBalance = newFiat
	wallet.TokenBalance = uint64(newTokens)
	wallet.Version++
	wallet.UpdatedAt = now.UTC()
	return wallet, nil
}

func (t *ledgerTx) GetTransaction(ctx context.Context, transactionId string) (*models.Transaction, error) {
	return getTransaction(ctx, t.tx, queryGetTransaction, transactionId)
}

func (t *ledgerTx) GetTransactionByIdempotencyKey(ctx context.Context, key string) (*models.Transaction, error) {
	return getTransaction(ctx, t.tx, queryGetTransactionByIdempotencyKey, key)
}

func (t *ledgerTx) InsertTransaction(ctx context.Context, transaction *models.Transaction) error {
	return insertTransaction(ctx, t.tx, transaction)
}

func (t *ledgerTx) UpdateTransactionStatus(ctx context.Context, transactionId string, status models.TransactionStatus, metadata map[string]string) error {
	return updateTransactionStatus(ctx, t.tx, transactionId, status, metadata)
}

func (t *ledgerTx) LastEntryHash(ctx context.Context, walletId string) (*string, error) {
	return lastEntryHash(ctx, t.tx, walletId)
}

func (t *ledgerTx) InsertEntry(ctx context.Context, entry *models.LedgerEntry) error {
	return insertEntry(ctx, t.tx, entry)
}

func (t *ledgerTx) GetEntriesByTransaction(ctx context.Context, transactionId string) ([]models.LedgerEntry, error) {
	return listEntries(ctx, t.tx, queryGetEntriesByTransaction, transactionId)
}

func (t *ledgerTx) EnqueueOutbox(ctx context.Context, message *models.OutboxMessage) error {
	return insertOutbox(ctx, t.tx, message)
}
