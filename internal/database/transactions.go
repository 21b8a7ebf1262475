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
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"creator-ledger-go/internal/models"
	"creator-ledger-go/internal/money"
	"creator-ledger-go/internal/store"

	"go.uber.org/zap"
)

func insertTransaction(ctx context.Context, q queryer, transaction *models.Transaction) error {
	metadata, err := encodeMetadata(transaction.Metadata)
	if err != nil {
		return err
	}

	var fiatAmount, tokenAmount sql.NullString
	if transaction.FiatAmount != nil {
		fiatAmount = sql.NullString{String: money.FormatFiat(*transaction.FiatAmount), Valid: true}
	}
	if transaction.TokenAmount != nil {
		tokenAmount = sql.NullString{String: money.Tokens(*transaction.TokenAmount).String(), Valid: true}
	}

	err = q.QueryRowContext(ctx, queryInsertTransaction,
		transaction.Id, string(transaction.Type),
		nullString(transaction.FromWalletId), nullString(transaction.ToWalletId),
		transaction.UserId, nullString(transaction.AssetId),
		fiatAmount, tokenAmount, transaction.Currency, string(transaction.Status),
		nullString(transaction.IdempotencyKey), metadata, transaction.Description,
		formatTime(transaction.CreatedAt)).
		Scan(&transaction.Seq)
	if err != nil {
		return classifyError(fmt.Errorf("failed to insert transaction: %w", err))
	}
	return nil
}

func getTransaction(ctx context.Context, q queryer, query string, args ...any) (*models.Transaction, error) {
	transaction, err := scanTransaction(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrTransactionNotFound
	}
	if err != nil {
		return nil, classifyError(err)
	}
	return transaction, nil
}

func updateTransactionStatus(ctx context.Context, q queryer, transactionId string, status models.TransactionStatus, metadata map[string]string) error {
	encoded, err := encodeMetadata(metadata)
	if err != nil {
		return err
	}

	result, err := q.ExecContext(ctx, queryUpdateTransactionStatus, string(status), encoded, transactionId)
	if err != nil {
		return classifyError(fmt.Errorf("failed to update transaction status: %w", err))
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrTransactionNotFound
	}
	return nil
}

func scanTransaction(row scanner) (*models.Transaction, error) {
	var (
		transaction                            models.Transaction
		txType, status, metadata, createdStr   string
		fromWallet, toWallet, assetId, idemKey sql.NullString
		fiatAmount, tokenAmount                sql.NullString
	)
	err := row.Scan(&transaction.Seq, &transaction.Id, &txType, &fromWallet, &toWallet,
		&transaction.UserId, &assetId, &fiatAmount, &tokenAmount, &transaction.Currency,
		&status, &idemKey, &metadata, &transaction.Description, &createdStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	transaction.Type = models.TransactionType(txType)
	transaction.Status = models.TransactionStatus(status)
	transaction.FromWalletId = stringPtr(fromWallet)
	transaction.ToWalletId = stringPtr(toWallet)
	transaction.AssetId = stringPtr(assetId)
	transaction.IdempotencyKey = stringPtr(idemKey)

	if fiatAmount.Valid {
		amount, err := money.ParseFiat(fiatAmount.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse fiat amount of transaction %s: %w", transaction.Id, err)
		}
		transaction.FiatAmount = &amount
	}
	if tokenAmount.Valid {
		amount, err := money.ParseTokens(tokenAmount.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse token amount of transaction %s: %w", transaction.Id, err)
		}
		tokens := uint64(amount)
		transaction.TokenAmount = &tokens
	}

	if err := json.Unmarshal([]byte(metadata), &transaction.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata of transaction %s: %w", transaction.Id, err)
	}
	if transaction.CreatedAt, err = parseTime(createdStr); err != nil {
		return nil, err
	}
	return &transaction, nil
}

func encodeMetadata(metadata map[string]string) (string, error) {
	if len(metadata) == 0 {
		return "{}", nil
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(encoded), nil
}

// GetTransactionHistory returns the transactions that touch userId's wallet or
// were initiated by userId, newest first.
func (s *Service) GetTransactionHistory(ctx context.Context, userId string, filter store.HistoryFilter) ([]models.Transaction, error) {
	zap.L().Debug("Getting transaction history",
		zap.String("user_id", userId),
		zap.Int("types", len(filter.Types)),
		zap.String("status", string(filter.Status)),
		zap.Int("limit", filter.Limit),
		zap.Int("offset", filter.Offset))

	var query strings.Builder
	query.WriteString(queryTransactionHistoryBase)
	args := []any{userId, userId, userId}

	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		query.WriteString(" AND type IN (" + strings.Join(placeholders, ", ") + ")")
	}
	if filter.Status != "" {
		query.WriteString(" AND status = ?")
		args = append(args, string(filter.Status))
	}
	if !filter.Since.IsZero() {
		query.WriteString(" AND created_at >= ?")
		args = append(args, formatTime(filter.Since))
	}
	if !filter.Until.IsZero() {
		query.WriteString(" AND created_at < ?")
		args = append(args, formatTime(filter.Until))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query.WriteString(" ORDER BY seq DESC LIMIT ? OFFSET ?")
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}
	defer closeRows(rows)

	var transactions []models.Transaction
	for rows.Next() {
		transaction, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *transaction)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during transaction row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}

	return transactions, nil
}
