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

	"creator-ledger-go/internal/models"
	"creator-ledger-go/internal/money"

	"go.uber.org/zap"
)

func insertEntry(ctx context.Context, q queryer, entry *models.LedgerEntry) error {
	err := q.QueryRowContext(ctx, queryInsertEntry,
		entry.Id, entry.TransactionId, entry.WalletId, entry.UserId, string(entry.EntryType),
		money.FormatFiat(entry.FiatDebit), money.FormatFiat(entry.FiatCredit),
		money.Tokens(entry.TokenDebit).String(), money.Tokens(entry.TokenCredit).String(),
		money.FormatFiat(entry.FiatBalanceAfter), money.Tokens(entry.TokenBalanceAfter).String(),
		entry.EntryHash, nullString(entry.PreviousHash), entry.Description,
		formatTime(entry.CreatedAt)).
		Scan(&entry.Seq)
	if err != nil {
		return classifyError(fmt.Errorf("failed to insert ledger entry: %w", err))
	}
	return nil
}

// lastEntryHash returns the hash of the newest entry of walletId, or nil when
// the wallet has no entries yet.
func lastEntryHash(ctx context.Context, q queryer, walletId string) (*string, error) {
	var hash string
	err := q.QueryRowContext(ctx, queryLastEntryHash, walletId).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyError(fmt.Errorf("failed to read chain head: %w", err))
	}
	return &hash, nil
}

func listEntries(ctx context.Context, q queryer, query string, args ...any) ([]models.LedgerEntry, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyError(fmt.Errorf("failed to query ledger entries: %w", err))
	}
	defer closeRows(rows)

	var entries []models.LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during ledger entry row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating ledger entry rows: %w", err)
	}
	return entries, nil
}

func scanEntry(row scanner) (*models.LedgerEntry, error) {
	var (
		entry                   models.LedgerEntry
		entryType, createdStr   string
		fiatDebit, fiatCredit   string
		tokenDebit, tokenCredit string
		fiatAfter, tokenAfter   string
		previousHash            sql.NullString
	)
	err := row.Scan(&entry.Seq, &entry.Id, &entry.TransactionId, &entry.WalletId, &entry.UserId, &entryType,
		&fiatDebit, &fiatCredit, &tokenDebit, &tokenCredit, &fiatAfter, &tokenAfter,
		&entry.EntryHash, &previousHash, &entry.Description, &createdStr)
	if err != nil {
		return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
	}

	entry.EntryType = models.EntryType(entryType)
	entry.PreviousHash = stringPtr(previousHash)

	if entry.FiatDebit, err = money.ParseFiat(fiatDebit); err != nil {
		return nil, err
	}
	if entry.FiatCredit, err = money.ParseFiat(fiatCredit); err != nil {
		return nil, err
	}
	if entry.FiatBalanceAfter, err = money.ParseFiat(fiatAfter); err != nil {
		return nil, err
	}

	var tokens money.Tokens
	if tokens, err = money.ParseTokens(tokenDebit); err != nil {
		return nil, err
	}
	entry.TokenDebit = uint64(tokens)
	if tokens, err = money.ParseTokens(tokenCredit); err != nil {
		return nil, err
	}
	entry.TokenCredit = uint64(tokens)
	if tokens, err = money.ParseTokens(tokenAfter); err != nil {
		return nil, err
	}
	entry.TokenBalanceAfter = uint64(tokens)

	if entry.CreatedAt, err = parseTime(createdStr); err != nil {
		return nil, err
	}
	return &entry, nil
}
