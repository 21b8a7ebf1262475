package store

import (
	"context"
	"errors"
	"time"

	"creator-ledger-go/internal/models"
	"creator-ledger-go/internal/money"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across the ledger packages.
var (
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrWalletNotFound        = errors.New("wallet not found")
	ErrTransactionNotFound   = errors.New("transaction not found")
	ErrAssetNotFound         = errors.New("asset not found")
	ErrAlreadyReversed       = errors.New("transaction already reversed")
	ErrSerializationConflict = errors.New("serialization conflict")
	ErrIntegrityViolation    = errors.New("ledger integrity violation")
	ErrInvalidTransaction    = errors.New("invalid transaction")
	ErrDuplicateTransaction  = errors.New("duplicate transaction")
)

// HistoryFilter narrows a user's transaction history.
type HistoryFilter struct {
	Types  []models.TransactionType
	Status models.TransactionStatus
	Since  time.Time
	Until  time.Time
	Limit  int
	Offset int
}

// GenerationResult is the outcome of one atomic counter increment.
type GenerationResult struct {
	Counter     models.GenerationCounter
	TotalBefore uint64
	Asset       models.Asset
}

// ClaimDecider decides platform ownership from the pre-increment counter.
type ClaimDecider func(totalBefore uint64) bool

// LedgerTx is the view of the store inside one serializable transaction.
// Every balance change goes through ApplyDelta.
type LedgerTx interface {
	GetWallet(ctx context.Context, walletId string) (*models.Wallet, error)
	GetWalletByUser(ctx context.Context, userId string) (*models.Wallet, error)
	ApplyDelta(ctx context.Context, walletId string, fiatDelta decimal.Decimal, tokenDelta money.TokenDelta) (*models.Wallet, error)

	GetTransaction(ctx context.Context, transactionId string) (*models.Transaction, error)
	GetTransactionByIdempotencyKey(ctx context.Context, key string) (*models.Transaction, error)
	InsertTransaction(ctx context.Context, transaction *models.Transaction) error
	UpdateTransactionStatus(ctx context.Context, transactionId string, status models.TransactionStatus, metadata map[string]string) error

	LastEntryHash(ctx context.Context, walletId string) (*string, error)
	InsertEntry(ctx context.Context, entry *models.LedgerEntry) error
	GetEntriesByTransaction(ctx context.Context, transactionId string) ([]models.LedgerEntry, error)

	EnqueueOutbox(ctx context.Context, message *models.OutboxMessage) error
}

// LedgerStore defines the persistence contract consumed by the ledger core.
type LedgerStore interface {
	// --- Wallets ---
	CreateWallet(ctx context.Context, userId string) (*models.Wallet, error)
	EnsurePlatformWallet(ctx context.Context) (*models.Wallet, error)
	GetWallet(ctx context.Context, walletId string) (*models.Wallet, error)
	GetWalletByUser(ctx context.Context, userId string) (*models.Wallet, error)
	GetPlatformWallet(ctx context.Context) (*models.Wallet, error)
	ListWallets(ctx context.Context) ([]models.Wallet, error)

	// --- Transactions ---
	WithSerializableTransaction(ctx context.Context, policy RetryPolicy, fn func(tx LedgerTx) error) error
	GetTransaction(ctx context.Context, transactionId string) (*models.Transaction, error)
	GetTransactionByIdempotencyKey(ctx context.Context, key string) (*models.Transaction, error)
	GetEntriesByTransaction(ctx context.Context, transactionId string) ([]models.LedgerEntry, error)
	GetTransactionHistory(ctx context.Context, userId string, filter HistoryFilter) ([]models.Transaction, error)

	// --- Entries ---
	// ListEntries returns entries in ascending creation order. An empty
	// walletId lists every wallet's entries.
	ListEntries(ctx context.Context, walletId string) ([]models.LedgerEntry, error)

	// --- Generations ---
	RecordGeneration(ctx context.Context, userId, assetId string, decide ClaimDecider) (*GenerationResult, error)
	GetGenerationCounter(ctx context.Context, userId string) (*models.GenerationCounter, error)
	GetAsset(ctx context.Context, assetId string) (*models.Asset, error)

	// --- Outbox ---
	PendingOutbox(ctx context.Context, limit int) ([]models.OutboxMessage, error)
	MarkOutboxSent(ctx context.Context, id int64) error
	// MarkOutboxAttemptFailed counts a failed delivery and reports whether the
	// message reached maxRetries and is now FAILED.
	MarkOutboxAttemptFailed(ctx context.Context, id int64, maxRetries int) (bool, error)

	// --- Lifecycle ---
	Close()
}
