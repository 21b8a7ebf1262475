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
	"strings"
	"time"

	"creator-ledger-go/internal/models"
	"creator-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.LedgerStore.
var _ store.LedgerStore = (*Service)(nil)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Service struct {
	db *sql.DB
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// Set connection timeouts and limits
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			zap.L().Warn("Failed to close database after ping failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{db: db}
	if err := service.initSchema(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			zap.L().Warn("Failed to close database after schema failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

// dsn builds the driver connection string. _txlock=immediate makes every
// BeginTx take the write lock up front, so ledger transactions run one at a
// time against the file.
func dsn(cfg models.DatabaseConfig) string {
	return fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_txlock=immediate&_busy_timeout=%d",
		cfg.Path, cfg.BusyTimeout.Milliseconds())
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaLedger)
	return err
}

// WithSerializableTransaction runs fn inside one write transaction, retrying
// the whole attempt under policy when it loses a serialization conflict.
func (s *Service) WithSerializableTransaction(ctx context.Context, policy store.RetryPolicy, fn func(tx store.LedgerTx) error) error {
	return store.RetryOnConflict(ctx, policy, func(ctx context.Context) error {
		return s.runInTransaction(ctx, func(tx *sql.Tx) error {
			return fn(&ledgerTx{tx: tx})
		})
	})
}

func (s *Service) runInTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classifyError(fmt.Errorf("failed to begin transaction: %w", err))
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			zap.L().Warn("Failed to roll back transaction", zap.Error(err))
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return classifyError(fmt.Errorf("failed to commit transaction: %w", err))
	}
	committed = true
	return nil
}

// classifyError maps SQLite lock contention onto store.ErrSerializationConflict
// and idempotency key collisions onto store.ErrDuplicateTransaction.
func classifyError(err error) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}
	switch {
	case sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked:
		return fmt.Errorf("%w: %v", store.ErrSerializationConflict, err)
	case sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique && strings.Contains(sqliteErr.Error(), "idempotency_key"):
		return fmt.Errorf("%w: %v", store.ErrDuplicateTransaction, err)
	}
	return err
}

// --- Wallets ---

func (s *Service) CreateWallet(ctx context.Context, userId string) (*models.Wallet, error) {
	if userId == "" {
		return nil, fmt.Errorf("user id is required")
	}

	zap.L().Info("Creating wallet", zap.String("user_id", userId))

	walletId := uuid.New().String()
	now := formatTime(time.Now())
	if _, err := s.db.ExecContext(ctx, queryInsertWallet, walletId, userId, models.WalletKindUser, now, now); err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, fmt.Errorf("wallet for user %s already exists", userId)
		}
		zap.L().Error("Failed to insert wallet", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("unable to insert wallet: %w", err)
	}

	zap.L().Info("Wallet created successfully", zap.String("wallet_id", walletId), zap.String("user_id", userId))
	return s.GetWallet(ctx, walletId)
}

// EnsurePlatformWallet returns the platform wallet, creating it on first use.
func (s *Service) EnsurePlatformWallet(ctx context.Context) (*models.Wallet, error) {
	wallet, err := s.GetPlatformWallet(ctx)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, store.ErrWalletNotFound) {
		return nil, err
	}

	walletId := uuid.New().String()
	now := formatTime(time.Now())
	if _, err := s.db.ExecContext(ctx, queryInsertWallet, walletId, nil, models.WalletKindPlatform, now, now); err != nil {
		var sqliteErr sqlite3.Error
		if !errors.As(err, &sqliteErr) || sqliteErr.ExtendedCode != sqlite3.ErrConstraintUnique {
			return nil, fmt.Errorf("unable to insert platform wallet: %w", err)
		}
		// Lost the bootstrap race; someone else created it.
	} else {
		zap.L().Info("Platform wallet created", zap.String("wallet_id", walletId))
	}

	return s.GetPlatformWallet(ctx)
}

func (s *Service) GetWallet(ctx context.Context, walletId string) (*models.Wallet, error) {
	return getWallet(ctx, s.db, queryGetWallet, walletId)
}

func (s *Service) GetWalletByUser(ctx context.Context, userId string) (*models.Wallet, error) {
	return getWallet(ctx, s.db, queryGetWalletByUser, userId)
}

func (s *Service) GetPlatformWallet(ctx context.Context) (*models.Wallet, error) {
	return getWallet(ctx, s.db, queryGetPlatformWallet)
}

func (s *Service) ListWallets(ctx context.Context) ([]models.Wallet, error) {
	rows, err := s.db.QueryContext(ctx, queryListWallets)
	if err != nil {
		return nil, fmt.Errorf("unable to query wallets: %w", err)
	}
	defer closeRows(rows)

	var wallets []models.Wallet
	for rows.Next() {
		wallet, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, *wallet)
	}
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during wallet row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating wallet rows: %w", err)
	}
	return wallets, nil
}

// --- Transactions ---

func (s *Service) GetTransaction(ctx context.Context, transactionId string) (*models.Transaction, error) {
	return getTransaction(ctx, s.db, queryGetTransaction, transactionId)
}

func (s *Service) GetTransactionByIdempotencyKey(ctx context.Context, key string) (*models.Transaction, error) {
	return getTransaction(ctx, s.db, queryGetTransactionByIdempotencyKey, key)
}

func (s *Service) GetEntriesByTransaction(ctx context.Context, transactionId string) ([]models.LedgerEntry, error) {
	return listEntries(ctx, s.db, queryGetEntriesByTransaction, transactionId)
}

// --- Entries ---

func (s *Service) ListEntries(ctx context.Context, walletId string) ([]models.LedgerEntry, error) {
	if walletId == "" {
		return listEntries(ctx, s.db, queryListAllEntries)
	}
	return listEntries(ctx, s.db, queryListEntriesForWallet, walletId)
}

// --- helpers ---

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		zap.L().Warn("Failed to close rows", zap.Error(err))
	}
}
