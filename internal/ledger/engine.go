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
	"strings"
	"time"

	"creator-ledger-go/internal/hashchain"
	"creator-ledger-go/internal/lock"
	"creator-ledger-go/internal/models"
	"creator-ledger-go/internal/money"
	"creator-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultCurrency = "USD"

// Config carries the engine settings that would otherwise be process globals.
type Config struct {
	Currency    string
	RetryPolicy store.RetryPolicy
	// EventTopic is the broker topic recorded on outbox events.
	EventTopic string
}

// TransactionInput describes one value movement. An empty FromWalletId
// creates value (DEPOSIT, TOKEN_PURCHASE); an empty ToWalletId destroys it
// (SPEND). Currency must be empty or the ledger currency.
type TransactionInput struct {
	Type           models.TransactionType
	FromWalletId   string
	ToWalletId     string
	UserId         string
	AssetId        string
	FiatAmount     decimal.Decimal
	TokenAmount    uint64
	Currency       string
	IdempotencyKey string
	Metadata       map[string]string
	Description    string
	// Pending records the transaction as PENDING instead of COMPLETED.
	Pending bool
}

// Result is a committed (or replayed) transaction and its ledger entries.
type Result struct {
	Transaction *models.Transaction
	Entries     []models.LedgerEntry
	// Replayed is true when the idempotency key matched an earlier call and
	// nothing was written.
	Replayed bool
}

type Engine struct {
	store   store.LedgerStore
	builder *hashchain.Builder
	locker  lock.WalletLocker
	config  Config
}

type Option func(*Engine)

// WithLocker guards every call with a lock on the wallets it touches.
func WithLocker(locker lock.WalletLocker) Option {
	return func(e *Engine) { e.locker = locker }
}

// WithBuilder replaces the entry builder, mainly to pin the clock in tests.
func WithBuilder(builder *hashchain.Builder) Option {
	return func(e *Engine) { e.builder = builder }
}

func NewEngine(s store.LedgerStore, cfg Config, opts ...Option) *Engine {
	if cfg.Currency == "" {
		cfg.Currency = DefaultCurrency
	}
	if cfg.EventTopic == "" {
		cfg.EventTopic = DefaultEventTopic
	}
	if cfg.RetryPolicy.MaxRetries == 0 && cfg.RetryPolicy.Backoff == 0 {
		cfg.RetryPolicy = store.DefaultRetryPolicy()
	}

	e := &Engine{
		store:   s,
		builder: hashchain.NewBuilder(),
		locker:  lock.NoopLocker{},
		config:  cfg,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateTransaction records one transaction and its debit and credit entries
// atomically. A repeated idempotency key returns the original result.
func (e *Engine) CreateTransaction(ctx context.Context, input TransactionInput) (*Result, error) {
	results, err := e.CreateTransactions(ctx, []TransactionInput{input})
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// CreateTransactions records several transactions in one database
// transaction: either every one of them commits or none does.
func (e *Engine) CreateTransactions(ctx context.Context, inputs []TransactionInput) ([]*Result, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: no transactions given", store.ErrInvalidTransaction)
	}

	normalized := make([]TransactionInput, len(inputs))
	var walletIds []string
	for i, input := range inputs {
		if err := e.validate(&input); err != nil {
			return nil, err
		}
		normalized[i] = input
		walletIds = append(walletIds, input.FromWalletId, input.ToWalletId)
	}

	release, err := e.locker.Acquire(ctx, walletIds)
	if err != nil {
		return nil, fmt.Errorf("failed to lock wallets: %w", err)
	}
	defer release()

	var results []*Result
	run := func() error {
		return e.store.WithSerializableTransaction(ctx, e.config.RetryPolicy, func(tx store.LedgerTx) error {
			results = make([]*Result, len(normalized))
			for i := range normalized {
				result, err := e.apply(ctx, tx, normalized[i])
				if err != nil {
					return err
				}
				results[i] = result
			}
			return nil
		})
	}

	err = run()
	if errors.Is(err, store.ErrDuplicateTransaction) {
		// Another writer committed the same key between our lookup and insert;
		// the second pass finds it and replays.
		zap.L().Warn("Idempotency key collision, replaying", zap.Error(err))
		err = run()
	}
	if err != nil {
		return nil, err
	}

	for _, result := range results {
		logResult(result)
	}
	return results, nil
}

func (e *Engine) validate(input *TransactionInput) error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", store.ErrInvalidTransaction, fmt.Sprintf(format, args...))
	}

	if !input.Type.Valid() {
		return invalid("unknown transaction type %q", input.Type)
	}
	if input.UserId == "" {
		return invalid("user id is required")
	}
	if err := money.ValidateFiat(input.FiatAmount); err != nil {
		return invalid("%v", err)
	}
	if input.FiatAmount.IsZero() && input.TokenAmount == 0 {
		return invalid("a nonzero fiat or token amount is required")
	}
	if input.FromWalletId == "" && input.ToWalletId == "" {
		return invalid("a source or destination wallet is required")
	}
	if input.FromWalletId != "" && input.FromWalletId == input.ToWalletId {
		return invalid("source and destination wallet are the same")
	}

	switch input.Type {
	case models.TransactionDeposit, models.TransactionTokenPurchase:
		if input.FromWalletId != "" {
			return invalid("%s must not have a source wallet", input.Type)
		}
	case models.TransactionSpend:
		if input.ToWalletId != "" {
			return invalid("%s must not have a destination wallet", input.Type)
		}
	}

	if input.Currency == "" {
		input.Currency = e.config.Currency
	}
	if !strings.EqualFold(input.Currency, e.config.Currency) {
		return invalid("currency %s does not match ledger currency %s", input.Currency, e.config.Currency)
	}
	input.Currency = e.config.Currency
	return nil
}

// apply runs one transaction inside tx: idempotency check, transaction
// record, debit leg, credit leg.
func (e *Engine) apply(ctx context.Context, tx store.LedgerTx, input TransactionInput) (*Result, error) {
	if input.IdempotencyKey != "" {
		existing, err := tx.GetTransactionByIdempotencyKey(ctx, input.IdempotencyKey)
		switch {
		case err == nil:
			entries, err := tx.GetEntriesByTransaction(ctx, existing.Id)
			if err != nil {
				return nil, fmt.Errorf("failed to load entries of %s: %w", existing.Id, err)
			}
			return &Result{Transaction: existing, Entries: entries, Replayed: true}, nil
		case !errors.Is(err, store.ErrTransactionNotFound):
			return nil, fmt.Errorf("failed to check idempotency key: %w", err)
		}
	}

	// Resolve both wallets before writing anything.
	var from, to *models.Wallet
	var err error
	if input.FromWalletId != "" {
		if from, err = tx.GetWallet(ctx, input.FromWalletId); err != nil {
			return nil, fmt.Errorf("source wallet %s: %w", input.FromWalletId, err)
		}
	}
	if input.ToWalletId != "" {
		if to, err = tx.GetWallet(ctx, input.ToWalletId); err != nil {
			return nil, fmt.Errorf("destination wallet %s: %w", input.ToWalletId, err)
		}
	}

	transaction := newTransactionRecord(input)
	if err := tx.InsertTransaction(ctx, transaction); err != nil {
		return nil, err
	}

	var entries []models.LedgerEntry
	if from != nil {
		entry, err := e.leg(ctx, tx, transaction, from, models.EntryDebit, input)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	if to != nil {
		entry, err := e.leg(ctx, tx, transaction, to, models.EntryCredit, input)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}

	if err := e.enqueueEvent(ctx, tx, EventTransactionCreated, transaction); err != nil {
		return nil, err
	}

	return &Result{Transaction: transaction, Entries: entries}, nil
}

// leg applies one side of a transaction to wallet and appends its entry.
func (e *Engine) leg(ctx context.Context, tx store.LedgerTx, transaction *models.Transaction, wallet *models.Wallet, entryType models.EntryType, input TransactionInput) (*models.LedgerEntry, error) {
	fiatDelta := input.FiatAmount
	tokenDelta := money.Credit(input.TokenAmount)
	if entryType == models.EntryDebit {
		fiatDelta = fiatDelta.Neg()
		tokenDelta = money.Debit(input.TokenAmount)
	}

	updated, err := tx.ApplyDelta(ctx, wallet.Id, fiatDelta, tokenDelta)
	if err != nil {
		return nil, err
	}

	entry, err := e.builder.Build(ctx, tx, hashchain.EntryParams{
		TransactionId:     transaction.Id,
		WalletId:          wallet.Id,
		UserId:            transaction.UserId,
		EntryType:         entryType,
		FiatAmount:        input.FiatAmount,
		TokenAmount:       input.TokenAmount,
		FiatBalanceAfter:  updated.FiatBalance,
		TokenBalanceAfter: updated.TokenBalance,
		Description:       transaction.Description,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build %s entry: %w", entryType, err)
	}

	if err := tx.InsertEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func newTransactionRecord(input TransactionInput) *models.Transaction {
	transaction := &models.Transaction{
		Id:          uuid.New().String(),
		Type:        input.Type,
		UserId:      input.UserId,
		Currency:    input.Currency,
		Status:      models.StatusCompleted,
		Metadata:    input.Metadata,
		Description: input.Description,
		CreatedAt:   time.Now().UTC(),
	}
	if input.Pending {
		transaction.Status = models.StatusPending
	}
	if input.FromWalletId != "" {
		transaction.FromWalletId = &input.FromWalletId
	}
	if input.ToWalletId != "" {
		transaction.ToWalletId = &input.ToWalletId
	}
	if input.AssetId != "" {
		transaction.AssetId = &input.AssetId
	}
	if input.IdempotencyKey != "" {
		transaction.IdempotencyKey = &input.IdempotencyKey
	}
	if !input.FiatAmount.IsZero() {
		amount := input.FiatAmount
		transaction.FiatAmount = &amount
	}
	if input.TokenAmount > 0 {
		tokens := input.TokenAmount
		transaction.TokenAmount = &tokens
	}
	return transaction
}

func logResult(result *Result) {
	transaction := result.Transaction
	fields := []zap.Field{
		zap.String("transaction_id", transaction.Id),
		zap.String("type", string(transaction.Type)),
		zap.String("user_id", transaction.UserId),
		zap.String("status", string(transaction.Status)),
		zap.Int("entries", len(result.Entries)),
	}
	if transaction.FiatAmount != nil {
		fields = append(fields, zap.String("fiat_amount", money.FormatFiat(*transaction.FiatAmount)))
	}
	if transaction.TokenAmount != nil {
		fields = append(fields, zap.Uint64("token_amount", *transaction.TokenAmount))
	}
	if transaction.IdempotencyKey != nil {
		fields = append(fields, zap.String("idempotency_key", *transaction.IdempotencyKey))
	}

	if result.Replayed {
		zap.L().Warn("Idempotent replay, returning existing transaction", fields...)
		return
	}
	zap.L().Info("Transaction committed", fields...)
}
