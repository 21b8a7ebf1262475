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
	"encoding/json"
	"fmt"
	"time"

	"creator-ledger-go/internal/models"
	"creator-ledger-go/internal/money"
	"creator-ledger-go/internal/store"
)

const DefaultEventTopic = "ledger.transactions"

// Event kinds written to the outbox
const (
	EventTransactionCreated       = "transaction.created"
	EventTransactionStatusChanged = "transaction.status_changed"
)

// TransactionEvent is the outbox payload describing a committed change.
type TransactionEvent struct {
	Event          string                   `json:"event"`
	TransactionId  string                   `json:"transaction_id"`
	Type           models.TransactionType   `json:"type"`
	Status         models.TransactionStatus `json:"status"`
	FromWalletId   *string                  `json:"from_wallet_id,omitempty"`
	ToWalletId     *string                  `json:"to_wallet_id,omitempty"`
	UserId         string                   `json:"user_id"`
	AssetId        *string                  `json:"asset_id,omitempty"`
	FiatAmount     *string                  `json:"fiat_amount,omitempty"`
	TokenAmount    *uint64                  `json:"token_amount,omitempty"`
	Currency       string                   `json:"currency"`
	IdempotencyKey *string                  `json:"idempotency_key,omitempty"`
	Metadata       map[string]string        `json:"metadata,omitempty"`
	OccurredAt     time.Time                `json:"occurred_at"`
}

func newTransactionEvent(kind string, transaction *models.Transaction) TransactionEvent {
	event := TransactionEvent{
		Event:          kind,
		TransactionId:  transaction.Id,
		Type:           transaction.Type,
		Status:         transaction.Status,
		FromWalletId:   transaction.FromWalletId,
		ToWalletId:     transaction.ToWalletId,
		UserId:         transaction.UserId,
		AssetId:        transaction.AssetId,
		TokenAmount:    transaction.TokenAmount,
		Currency:       transaction.Currency,
		IdempotencyKey: transaction.IdempotencyKey,
		Metadata:       transaction.Metadata,
		OccurredAt:     time.Now().UTC(),
	}
	if transaction.FiatAmount != nil {
		amount := money.FormatFiat(*transaction.FiatAmount)
		event.FiatAmount = &amount
	}
	return event
}

// enqueueEvent writes the event inside tx, so it commits or rolls back with
// the change it describes.
func (e *Engine) enqueueEvent(ctx context.Context, tx store.LedgerTx, kind string, transaction *models.Transaction) error {
	payload, err := json.Marshal(newTransactionEvent(kind, transaction))
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", kind, err)
	}
	return tx.EnqueueOutbox(ctx, &models.OutboxMessage{
		MessageKey: transaction.Id,
		Topic:      e.config.EventTopic,
		Payload:    string(payload),
	})
}
