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

// Balance represents the current balances of one wallet
type Balance struct {
	WalletId string          `json:"wallet_id"`
	Fiat     decimal.Decimal `json:"fiat"`
	Tokens   uint64          `json:"tokens"`
	Currency string          `json:"currency"`
}

// Directions of a transaction relative to the viewing user's wallet
const (
	DirectionIn   = "in"
	DirectionOut  = "out"
	DirectionNone = "none" // initiated by the user without touching their wallet
)

// TransactionRecord represents a transaction in the user's history
type TransactionRecord struct {
	Id          string            `json:"id"`
	Type        TransactionType   `json:"type"`
	Direction   string            `json:"direction"`
	FiatAmount  *decimal.Decimal  `json:"fiat_amount,omitempty"`
	TokenAmount *uint64           `json:"token_amount,omitempty"`
	Currency    string            `json:"currency"`
	Status      TransactionStatus `json:"status"`
	Description string            `json:"description,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}
