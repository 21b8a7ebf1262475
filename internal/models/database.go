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

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type WalletKind string

const (
	WalletKindUser     WalletKind = "USER"
	WalletKindPlatform WalletKind = "PLATFORM"
)

type TransactionType string

const (
	TransactionDeposit       TransactionType = "DEPOSIT"
	TransactionSale          TransactionType = "SALE"
	TransactionFee           TransactionType = "FEE"
	TransactionRefund        TransactionType = "REFUND"
	TransactionTokenPurchase TransactionType = "TOKEN_PURCHASE"
	TransactionSpend         TransactionType = "SPEND"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionDeposit, TransactionSale, TransactionFee, TransactionRefund,
		TransactionTokenPurchase, TransactionSpend:
		return true
	}
	return false
}

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "PENDING"
	StatusCompleted TransactionStatus = "COMPLETED"
	StatusFailed    TransactionStatus = "FAILED"
	StatusRefunded  TransactionStatus = "REFUNDED"
)

type EntryType string

const (
	EntryDebit  EntryType = "DEBIT"
	EntryCredit EntryType = "CREDIT"
)

type OwnershipType string

const (
	OwnershipUser  OwnershipType = "USER"
	OwnershipAdmin OwnershipType = "ADMIN"
)

// Wallet holds the fiat and token balances of a user or of the platform.
// UserId is nil for the platform wallet.
type Wallet struct {
	Id           string          `db:"id"`
	UserId       *string         `db:"user_id"`
	Kind         WalletKind      `db:"kind"`
	FiatBalance  decimal.Decimal `db:"fiat_balance"`
	TokenBalance uint64          `db:"token_balance"`
	Version      int64           `db:"version"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

// Transaction is one logical financial event. Only Status and Metadata
// change after creation.
type Transaction struct {
	Id             string            `db:"id"`
	Seq            int64             `db:"seq"`
	Type           TransactionType   `db:"type"`
	FromWalletId   *string           `db:"from_wallet_id"`
	ToWalletId     *string           `db:"to_wallet_id"`
	UserId         string            `db:"user_id"`
	AssetId        *string           `db:"asset_id"`
	FiatAmount     *decimal.Decimal  `db:"fiat_amount"`
	TokenAmount    *uint64           `db:"token_amount"`
	Currency       string            `db:"currency"`
	Status         TransactionStatus `db:"status"`
	IdempotencyKey *string           `db:"idempotency_key"`
	Metadata       map[string]string `db:"metadata"`
	Description    string            `db:"description"`
	CreatedAt      time.Time         `db:"created_at"`
}

// LedgerEntry is one side of a transaction's effect on one wallet. UserId is
// the user who initiated the transaction, not the wallet owner.
type LedgerEntry struct {
	Id                string          `db:"id"`
	Seq               int64           `db:"seq"`
	TransactionId     string          `db:"transaction_id"`
	WalletId          string          `db:"wallet_id"`
	UserId            string          `db:"user_id"`
	EntryType         EntryType       `db:"entry_type"`
	FiatDebit         decimal.Decimal `db:"fiat_debit"`
	FiatCredit        decimal.Decimal `db:"fiat_credit"`
	TokenDebit        uint64          `db:"token_debit"`
	TokenCredit       uint64          `db:"token_credit"`
	FiatBalanceAfter  decimal.Decimal `db:"fiat_balance_after"`
	TokenBalanceAfter uint64          `db:"token_balance_after"`
	EntryHash         string          `db:"entry_hash"`
	PreviousHash      *string         `db:"previous_hash"`
	Description       string          `db:"description"`
	CreatedAt         time.Time       `db:"created_at"`
}

// FiatAmount returns the nonzero fiat side of the entry.
func (e *LedgerEntry) FiatAmount() decimal.Decimal {
	if e.EntryType == EntryDebit {
		return e.FiatDebit
	}
	return e.FiatCredit
}

// TokenAmount returns the nonzero token side of the entry.
func (e *LedgerEntry) TokenAmount() uint64 {
	if e.EntryType == EntryDebit {
		return e.TokenDebit
	}
	return e.TokenCredit
}

// GenerationCounter counts a user's generated assets and how many of them
// the platform claimed.
type GenerationCounter struct {
	UserId         string    `db:"user_id"`
	TotalGenerated uint64    `db:"total_generated"`
	AdminClaimed   uint64    `db:"admin_claimed"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// Asset carries the fields of a generated asset that settlement depends on.
type Asset struct {
	Id                  string        `db:"id"`
	CreatorUserId       string        `db:"creator_user_id"`
	OwnershipType       OwnershipType `db:"ownership_type"`
	ClaimedByPlatformAt *time.Time    `db:"claimed_by_platform_at"`
	CreatedAt           time.Time     `db:"created_at"`
}

type OutboxStatus string

const (
	OutboxPending OutboxStatus = "PENDING"
	OutboxSent    OutboxStatus = "SENT"
	OutboxFailed  OutboxStatus = "FAILED"
)

// OutboxMessage is a ledger event written in the same database transaction
// as the change it describes and relayed to the message broker afterwards.
type OutboxMessage struct {
	Id         int64        `db:"id"`
	MessageKey string       `db:"message_key"`
	Topic      string       `db:"topic"`
	Payload    string       `db:"payload"`
	Status     OutboxStatus `db:"status"`
	RetryCount int          `db:"retry_count"`
	CreatedAt  time.Time    `db:"created_at"`
	UpdatedAt  time.Time    `db:"updated_at"`
}
