// Package hashchain computes the per-wallet fingerprint chain of ledger
// entries.
//
// The hashed payload of an entry is the six fields below joined by "|":
//
//	transactionId|walletId|entryType|fiatAmount|tokenAmount|timestamp
//
// fiatAmount is the entry's fiat side with exactly two fraction digits
// ("0.00" when the entry moves no fiat), tokenAmount is the base-10 token
// side ("0" when none) and timestamp is the entry's creation time in UTC,
// formatted with time.RFC3339Nano. The entry hash is the lowercase hex
// SHA-256 of that payload. Each entry also stores the hash of the entry
// before it on the same wallet, or nil for a wallet's first entry.
package hashchain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"creator-ledger-go/internal/models"
	"creator-ledger-go/internal/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const separator = "|"

// TimestampLayout is the layout timestamps are hashed with.
const TimestampLayout = time.RFC3339Nano

// FormatTimestamp renders t the way it is hashed.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Payload returns the canonical serialization of the hashed entry fields.
func Payload(transactionId, walletId string, entryType models.EntryType, fiatAmount decimal.Decimal, tokenAmount uint64, createdAt time.Time) string {
	return strings.Join([]string{
		transactionId,
		walletId,
		string(entryType),
		money.FormatFiat(fiatAmount),
		strconv.FormatUint(tokenAmount, 10),
		FormatTimestamp(createdAt),
	}, separator)
}

// ComputeHash returns the hex SHA-256 of the entry's canonical payload.
func ComputeHash(transactionId, walletId string, entryType models.EntryType, fiatAmount decimal.Decimal, tokenAmount uint64, createdAt time.Time) string {
	sum := sha256.Sum256([]byte(Payload(transactionId, walletId, entryType, fiatAmount, tokenAmount, createdAt)))
	return hex.EncodeToString(sum[:])
}

// EntryHash recomputes the hash of a stored entry from its own fields.
func EntryHash(e *models.LedgerEntry) string {
	return ComputeHash(e.TransactionId, e.WalletId, e.EntryType, e.FiatAmount(), e.TokenAmount(), e.CreatedAt)
}

// HeadLookup returns the hash of the latest entry of a wallet, or nil.
type HeadLookup interface {
	LastEntryHash(ctx context.Context, walletId string) (*string, error)
}

// EntryParams are the inputs of one new entry.
type EntryParams struct {
	TransactionId     string
	WalletId          string
	UserId            string
	EntryType         models.EntryType
	FiatAmount        decimal.Decimal
	TokenAmount       uint64
	FiatBalanceAfter  decimal.Decimal
	TokenBalanceAfter uint64
	Description       string
}

// Builder produces ready-to-store entries. It never persists anything.
type Builder struct {
	now func() time.Time
}

// NewBuilder returns a Builder stamping entries with the wall clock.
func NewBuilder() *Builder {
	return &Builder{now: time.Now}
}

// NewBuilderWithClock returns a Builder using now for timestamps.
func NewBuilderWithClock(now func() time.Time) *Builder {
	return &Builder{now: now}
}

// Build links a new entry to the wallet's current chain head.
func (b *Builder) Build(ctx context.Context, heads HeadLookup, p EntryParams) (*models.LedgerEntry, error) {
	previous, err := heads.LastEntryHash(ctx, p.WalletId)
	if err != nil {
		return nil, err
	}

	// Drop the monotonic reading; the stored RFC3339Nano value must rehash identically.
	createdAt := b.now().UTC().Round(0)

	entry := &models.LedgerEntry{
		Id:                uuid.New().String(),
		TransactionId:     p.TransactionId,
		WalletId:          p.WalletId,
		UserId:            p.UserId,
		EntryType:         p.EntryType,
		FiatDebit:         decimal.Zero,
		FiatCredit:        decimal.Zero,
		FiatBalanceAfter:  p.FiatBalanceAfter,
		TokenBalanceAfter: p.TokenBalanceAfter,
		PreviousHash:      previous,
		Description:       p.Description,
		CreatedAt:         createdAt,
	}

	if p.EntryType == models.EntryDebit {
		entry.FiatDebit = p.FiatAmount
		entry.TokenDebit = p.TokenAmount
	} else {
		entry.FiatCredit = p.FiatAmount
		entry.TokenCredit = p.TokenAmount
	}

	entry.EntryHash = EntryHash(entry)
	return entry, nil
}
