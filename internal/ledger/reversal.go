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
	"time"

	"creator-ledger-go/internal/models"
	"creator-ledger-go/internal/store"

	"go.uber.org/zap"
)

// Metadata keys stamped on a reversed transaction.
const (
	MetaReversedBy      = "reversed_by"
	MetaReversalReason  = "reversal_reason"
	MetaReversedAt      = "reversed_at"
	MetaReversedByUser  = "reversed_by_user"
	MetaOriginalTxId    = "original_transaction_id"
	reversalKeyPrefix   = "reversal:"
	reversalDescription = "Reversal of %s: %s"
)

// ReverseTransaction refunds originalId with a REFUND moving the same amounts
// back, and marks the original REFUNDED in the same database transaction.
// A transaction can be reversed once.
func (e *Engine) ReverseTransaction(ctx context.Context, originalId, reason, actorId string) (*Result, error) {
	if actorId == "" {
		return nil, fmt.Errorf("%w: actor id is required", store.ErrInvalidTransaction)
	}

	zap.L().Info("Reversing transaction",
		zap.String("transaction_id", originalId),
		zap.String("reason", reason),
		zap.String("actor_id", actorId))

	// Read once outside the write transaction to know which wallets to lock.
	original, err := e.store.GetTransaction(ctx, originalId)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: %w", originalId, err)
	}

	release, err := e.locker.Acquire(ctx, walletIdsOf(original))
	if err != nil {
		return nil, fmt.Errorf("failed to lock wallets: %w", err)
	}
	defer release()

	var result *Result
	err = e.store.WithSerializableTransaction(ctx, e.config.RetryPolicy, func(tx store.LedgerTx) error {
		original, err := tx.GetTransaction(ctx, originalId)
		if err != nil {
			return fmt.Errorf("transaction %s: %w", originalId, err)
		}
		switch original.Status {
		case models.StatusRefunded:
			return fmt.Errorf("%w: %s", store.ErrAlreadyReversed, originalId)
		case models.StatusFailed:
			return fmt.Errorf("%w: %s failed and moved no value", store.ErrInvalidTransaction, originalId)
		}

		input := reversalInput(original, reason, actorId)
		if err := e.validate(&input); err != nil {
			return err
		}

		result, err = e.apply(ctx, tx, input)
		if err != nil {
			return err
		}

		metadata := make(map[string]string, len(original.Metadata)+4)
		for k, v := range original.Metadata {
			metadata[k] = v
		}
		metadata[MetaReversedBy] = result.Transaction.Id
		metadata[MetaReversalReason] = reason
		metadata[MetaReversedAt] = time.Now().UTC().Format(time.RFC3339Nano)
		metadata[MetaReversedByUser] = actorId

		if err := tx.UpdateTransactionStatus(ctx, originalId, models.StatusRefunded, metadata); err != nil {
			return err
		}
		original.Status = models.StatusRefunded
		original.Metadata = metadata
		return e.enqueueEvent(ctx, tx, EventTransactionStatusChanged, original)
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyReversed) {
			zap.L().Warn("Transaction already reversed", zap.String("transaction_id", originalId))
		}
		return nil, err
	}

	logResult(result)
	return result, nil
}

// reversalInput swaps the wallets of original and keeps its amounts.
func reversalInput(original *models.Transaction, reason, actorId string) TransactionInput {
	input := TransactionInput{
		Type:           models.TransactionRefund,
		UserId:         actorId,
		Currency:       original.Currency,
		IdempotencyKey: reversalKeyPrefix + original.Id,
		Metadata: map[string]string{
			MetaOriginalTxId:   original.Id,
			MetaReversalReason: reason,
		},
		Description: fmt.Sprintf(reversalDescription, original.Id, reason),
	}
	if original.ToWalletId != nil {
		input.FromWalletId = *original.ToWalletId
	}
	if original.FromWalletId != nil {
		input.ToWalletId = *original.FromWalletId
	}
	if original.AssetId != nil {
		input.AssetId = *original.AssetId
	}
	if original.FiatAmount != nil {
		input.FiatAmount = *original.FiatAmount
	}
	if original.TokenAmount != nil {
		input.TokenAmount = *original.TokenAmount
	}
	return input
}

func walletIdsOf(transaction *models.Transaction) []string {
	var ids []string
	if transaction.FromWalletId != nil {
		ids = append(ids, *transaction.FromWalletId)
	}
	if transaction.ToWalletId != nil {
		ids = append(ids, *transaction.ToWalletId)
	}
	return ids
}
