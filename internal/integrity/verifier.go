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

// Package integrity audits the stored ledger: hash chains and the agreement
// between wallet balances and their entries.
package integrity

import (
	"context"
	"fmt"
	"strings"

	"creator-ledger-go/internal/hashchain"
	"creator-ledger-go/internal/models"
	"creator-ledger-go/internal/store"

	"go.uber.org/zap"
)

// Finding kinds
const (
	KindUnexpectedPrevious = "unexpected_previous_hash"
	KindBrokenLink         = "broken_link"
	KindHashMismatch       = "hash_mismatch"
)

// Finding locates one chain violation.
type Finding struct {
	EntryId  string
	WalletId string
	Kind     string
	Expected string
	Actual   string
}

func (f Finding) String() string {
	return fmt.Sprintf("entry %s (wallet %s): %s: expected %s, got %s",
		f.EntryId, f.WalletId, f.Kind, f.Expected, f.Actual)
}

type Report struct {
	Valid        bool
	Errors       []string
	Findings     []Finding
	CheckedCount int
}

// Err returns an error wrapping store.ErrIntegrityViolation when the report
// has findings.
func (r *Report) Err() error {
	if r.Valid {
		return nil
	}
	return fmt.Errorf("%w: %d finding(s): %s", store.ErrIntegrityViolation, len(r.Findings), strings.Join(r.Errors, "; "))
}

type Verifier struct {
	store store.LedgerStore
}

func NewVerifier(s store.LedgerStore) *Verifier {
	return &Verifier{store: s}
}

// VerifyChain checks every entry of walletId ("" for all wallets) in creation
// order. It never stops early; every violation found is in the report.
func (v *Verifier) VerifyChain(ctx context.Context, walletId string) (*Report, error) {
	zap.L().Info("Verifying ledger chain", zap.String("wallet_id", walletId))

	entries, err := v.store.ListEntries(ctx, walletId)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger entries: %w", err)
	}

	report := verifyEntries(entries)
	if !report.Valid {
		for _, finding := range report.Findings {
			zap.L().Error("Ledger integrity violation",
				zap.String("entry_id", finding.EntryId),
				zap.String("wallet_id", finding.WalletId),
				zap.String("kind", finding.Kind),
				zap.String("expected", finding.Expected),
				zap.String("actual", finding.Actual),
				zap.Error(store.ErrIntegrityViolation))
		}
		return report, nil
	}

	zap.L().Info("Ledger chain verified",
		zap.String("wallet_id", walletId),
		zap.Int("checked", report.CheckedCount))
	return report, nil
}

// verifyEntries expects entries in ascending seq order.
func verifyEntries(entries []models.LedgerEntry) *Report {
	report := &Report{CheckedCount: len(entries)}
	heads := make(map[string]string)

	add := func(f Finding) {
		report.Findings = append(report.Findings, f)
		report.Errors = append(report.Errors, f.String())
	}

	for i := range entries {
		entry := &entries[i]

		previous, seen := heads[entry.WalletId]
		switch {
		case !seen && entry.PreviousHash != nil:
			add(Finding{EntryId: entry.Id, WalletId: entry.WalletId, Kind: KindUnexpectedPrevious,
				Expected: "<none>", Actual: *entry.PreviousHash})
		case seen && entry.PreviousHash == nil:
			add(Finding{EntryId: entry.Id, WalletId: entry.WalletId, Kind: KindBrokenLink,
				Expected: previous, Actual: "<none>"})
		case seen && *entry.PreviousHash != previous:
			add(Finding{EntryId: entry.Id, WalletId: entry.WalletId, Kind: KindBrokenLink,
				Expected: previous, Actual: *entry.PreviousHash})
		}

		if recomputed := hashchain.EntryHash(entry); recomputed != entry.EntryHash {
			add(Finding{EntryId: entry.Id, WalletId: entry.WalletId, Kind: KindHashMismatch,
				Expected: recomputed, Actual: entry.EntryHash})
		}

		// Link against what is stored so one tampered entry yields one finding.
		heads[entry.WalletId] = entry.EntryHash
	}

	report.Valid = len(report.Findings) == 0
	return report
}
