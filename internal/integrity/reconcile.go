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

package integrity

import (
	"context"
	"errors"
	"fmt"

	"creator-ledger-go/internal/models"
	"creator-ledger-go/internal/money"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrBalanceMismatch marks a wallet whose balance disagrees with its entries.
var ErrBalanceMismatch = errors.New("balance does not match ledger entries")

// Mismatch describes one wallet whose stored balance disagrees with what its
// entries imply.
type Mismatch struct {
	WalletId      string
	Field         string // fiat or tokens
	Stored        string
	FromEntries   string
	FromLastEntry string
}

type ReconcileReport struct {
	Checked    int
	Mismatches []Mismatch
}

// Err returns an error wrapping ErrBalanceMismatch when any wallet disagrees.
func (r *ReconcileReport) Err() error {
	if len(r.Mismatches) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d wallet(s)", ErrBalanceMismatch, len(r.Mismatches))
}

// Reconcile compares each wallet's stored balances with the sum of its
// entries' credits minus debits and with the balance snapshot of its latest
// entry. An empty walletId checks every wallet.
func (v *Verifier) Reconcile(ctx context.Context, walletId string) (*ReconcileReport, error) {
	zap.L().Info("Reconciling balances", zap.String("wallet_id", walletId))

	var wallets []models.Wallet
	if walletId == "" {
		all, err := v.store.ListWallets(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list wallets: %w", err)
		}
		wallets = all
	} else {
		wallet, err := v.store.GetWallet(ctx, walletId)
		if err != nil {
			return nil, fmt.Errorf("wallet %s: %w", walletId, err)
		}
		wallets = []models.Wallet{*wallet}
	}

	report := &ReconcileReport{}
	for i := range wallets {
		wallet := &wallets[i]
		entries, err := v.store.ListEntries(ctx, wallet.Id)
		if err != nil {
			return nil, fmt.Errorf("failed to load entries of wallet %s: %w", wallet.Id, err)
		}
		report.Checked++
		report.Mismatches = append(report.Mismatches, reconcileWallet(wallet, entries)...)
	}

	for _, m := range report.Mismatches {
		zap.L().Error("Balance reconciliation failed",
			zap.String("wallet_id", m.WalletId),
			zap.String("field", m.Field),
			zap.String("stored_balance", m.Stored),
			zap.String("calculated_balance", m.FromEntries),
			zap.String("last_entry_balance", m.FromLastEntry))
	}
	if len(report.Mismatches) == 0 {
		zap.L().Info("Balance reconciliation successful", zap.Int("wallets", report.Checked))
	}
	return report, nil
}

func reconcileWallet(wallet *models.Wallet, entries []models.LedgerEntry) []Mismatch {
	fiat := decimal.Zero
	var credits, debits uint64
	for i := range entries {
		fiat = fiat.Add(entries[i].FiatCredit).Sub(entries[i].FiatDebit)
		credits += entries[i].TokenCredit
		debits += entries[i].TokenDebit
	}

	lastFiat, lastTokens := decimal.Zero, uint64(0)
	if n := len(entries); n > 0 {
		lastFiat = entries[n-1].FiatBalanceAfter
		lastTokens = entries[n-1].TokenBalanceAfter
	}

	var mismatches []Mismatch
	if !wallet.FiatBalance.Equal(fiat) || !wallet.FiatBalance.Equal(lastFiat) {
		mismatches = append(mismatches, Mismatch{
			WalletId:      wallet.Id,
			Field:         "fiat",
			Stored:        money.FormatFiat(wallet.FiatBalance),
			FromEntries:   money.FormatFiat(fiat),
			FromLastEntry: money.FormatFiat(lastFiat),
		})
	}

	// Token sums are compared as credits == balance + debits to stay unsigned.
	balancePlusDebits, overflow := money.Tokens(wallet.TokenBalance).Add(money.Tokens(debits))
	if overflow != nil || uint64(balancePlusDebits) != credits || wallet.TokenBalance != lastTokens {
		mismatches = append(mismatches, Mismatch{
			WalletId:      wallet.Id,
			Field:         "tokens",
			Stored:        money.Tokens(wallet.TokenBalance).String(),
			FromEntries:   fmt.Sprintf("%d-%d", credits, debits),
			FromLastEntry: money.Tokens(lastTokens).String(),
		})
	}
	return mismatches
}
