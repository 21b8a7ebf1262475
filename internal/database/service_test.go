package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"creator-ledger-go/internal/models"
	"creator-ledger-go/internal/money"
	"creator-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func setupTestDb(t *testing.T) (*Service, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ledger.db")
	service, err := NewService(context.Background(), models.DatabaseConfig{
		Path:         path,
		MaxOpenConns: 8,
		MaxIdleConns: 2,
		PingTimeout:  time.Second,
		BusyTimeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(service.Close)

	return service, path
}

func TestNewService_InvalidConfig(t *testing.T) {
	ctx := context.Background()

	if _, err := NewService(ctx, models.DatabaseConfig{MaxOpenConns: 1, PingTimeout: time.Second}); err == nil {
		t.Errorf("Expected error for empty path")
	}
	if _, err := NewService(ctx, models.DatabaseConfig{Path: "x.db", PingTimeout: time.Second}); err == nil {
		t.Errorf("Expected error for zero max open connections")
	}
	if _, err := NewService(ctx, models.DatabaseConfig{Path: "x.db", MaxOpenConns: 1}); err == nil {
		t.Errorf("Expected error for zero ping timeout")
	}
}

func TestCreateWallet(t *testing.T) {
	service, _ := setupTestDb(t)
	ctx := context.Background()

	wallet, err := service.CreateWallet(ctx, "user1")
	if err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}
	if wallet.UserId == nil || *wallet.UserId != "user1" {
		t.Errorf("Expected user id user1, got %v", wallet.UserId)
	}
	if wallet.Kind != models.WalletKindUser {
		t.Errorf("Expected kind USER, got %s", wallet.Kind)
	}
	if !wallet.FiatBalance.IsZero() || wallet.TokenBalance != 0 {
		t.Errorf("Expected zero balances, got %s / %d", wallet.FiatBalance, wallet.TokenBalance)
	}

	byUser, err := service.GetWalletByUser(ctx, "user1")
	if err != nil {
		t.Fatalf("GetWalletByUser failed: %v", err)
	}
	if byUser.Id != wallet.Id {
		t.Errorf("Expected wallet %s, got %s", wallet.Id, byUser.Id)
	}

	if _, err := service.CreateWallet(ctx, "user1"); err == nil {
		t.Errorf("Expected error creating a second wallet for user1")
	}
}

func TestGetWallet_NotFound(t *testing.T) {
	service, _ := setupTestDb(t)

	_, err := service.GetWallet(context.Background(), "missing")
	if !errors.Is(err, store.ErrWalletNotFound) {
		t.Errorf("Expected ErrWalletNotFound, got %v", err)
	}
}

func TestEnsurePlatformWallet_Idempotent(t *testing.T) {
	service, _ := setupTestDb(t)
	ctx := context.Background()

	first, err := service.EnsurePlatformWallet(ctx)
	if err != nil {
		t.Fatalf("EnsurePlatformWallet failed: %v", err)
	}
	second, err := service.EnsurePlatformWallet(ctx)
	if err != nil {
		t.Fatalf("Second EnsurePlatformWallet failed: %v", err)
	}
	if first.Id != second.Id {
		t.Errorf("Expected the same platform wallet, got %s and %s", first.Id, second.Id)
	}
	if first.Kind != models.WalletKindPlatform || first.UserId != nil {
		t.Errorf("Expected a platform wallet with no user, got %+v", first)
	}

	wallets, err := service.ListWallets(ctx)
	if err != nil {
		t.Fatalf("ListWallets failed: %v", err)
	}
	if len(wallets) != 1 {
		t.Errorf("Expected 1 wallet, got %d", len(wallets))
	}
}

func TestApplyDelta(t *testing.T) {
	service, _ := setupTestDb(t)
	ctx := context.Background()

	wallet, err := service.CreateWallet(ctx, "user1")
	if err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}

	err = service.WithSerializableTransaction(ctx, store.DefaultRetryPolicy(), func(tx store.LedgerTx) error {
		_, err := tx.ApplyDelta(ctx, wallet.Id, decimal.RequireFromString("10.50"), money.Credit(40))
		return err
	})
	if err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	err = service.WithSerializableTransaction(ctx, store.DefaultRetryPolicy(), func(tx store.LedgerTx) error {
		_, err := tx.ApplyDelta(ctx, wallet.Id, decimal.RequireFromString("-0.50"), money.Debit(15))
		return err
	})
	if err != nil {
		t.Fatalf("Debit failed: %v", err)
	}

	updated, err := service.GetWallet(ctx, wallet.Id)
	if err != nil {
		t.Fatalf("GetWallet failed: %v", err)
	}
	if !updated.FiatBalance.Equal(decimal.RequireFromString("10.00")) {
		t.Errorf("Expected fiat 10.00, got %s", updated.FiatBalance)
	}
	if updated.TokenBalance != 25 {
		t.Errorf("Expected 25 tokens, got %d", updated.TokenBalance)
	}
	if updated.Version != wallet.Version+2 {
		t.Errorf("Expected version %d, got %d", wallet.Version+2, updated.Version)
	}
}

func TestApplyDelta_InsufficientFundsRollsBack(t *testing.T) {
	service, _ := setupTestDb(t)
	ctx := context.Background()

	wallet, err := service.CreateWallet(ctx, "user1")
	if err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}

	err = service.WithSerializableTransaction(ctx, store.DefaultRetryPolicy(), func(tx store.LedgerTx) error {
		if _, err := tx.ApplyDelta(ctx, wallet.Id, decimal.RequireFromString("5.00"), money.TokenDelta{}); err != nil {
			return err
		}
		_, err := tx.ApplyDelta(ctx, wallet.Id, decimal.Zero, money.Debit(1))
		return err
	})
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("Expected ErrInsufficientFunds, got %v", err)
	}

	unchanged, err := service.GetWallet(ctx, wallet.Id)
	if err != nil {
		t.Fatalf("GetWallet failed: %v", err)
	}
	if !unchanged.FiatBalance.IsZero() {
		t.Errorf("Expected rollback to leave fiat at 0, got %s", unchanged.FiatBalance)
	}
}

func TestInsertTransaction_RoundTrip(t *testing.T) {
	service, _ := setupTestDb(t)
	ctx := context.Background()

	wallet, err := service.CreateWallet(ctx, "user1")
	if err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}

	amount := decimal.RequireFromString("12.34")
	key := "deposit-1"
	transaction := &models.Transaction{
		Id:             uuid.New().String(),
		Type:           models.TransactionDeposit,
		ToWalletId:     &wallet.Id,
		UserId:         "user1",
		FiatAmount:     &amount,
		Currency:       "USD",
		Status:         models.StatusCompleted,
		IdempotencyKey: &key,
		Metadata:       map[string]string{"source": "test"},
		Description:    "deposit",
		CreatedAt:      time.Now(),
	}

	err = service.WithSerializableTransaction(ctx, store.DefaultRetryPolicy(), func(tx store.LedgerTx) error {
		return tx.InsertTransaction(ctx, transaction)
	})
	if err != nil {
		t.Fatalf("InsertTransaction failed: %v", err)
	}
	if transaction.Seq == 0 {
		t.Errorf("Expected seq to be assigned")
	}

	stored, err := service.GetTransaction(ctx, transaction.Id)
	if err != nil {
		t.Fatalf("GetTransaction failed: %v", err)
	}
	if stored.FiatAmount == nil || !stored.FiatAmount.Equal(amount) {
		t.Errorf("Expected amount %s, got %v", amount, stored.FiatAmount)
	}
	if stored.TokenAmount != nil {
		t.Errorf("Expected no token amount, got %d", *stored.TokenAmount)
	}
	if stored.Metadata["source"] != "test" {
		t.Errorf("Expected metadata source=test, got %v", stored.Metadata)
	}
	if !stored.CreatedAt.Equal(transaction.CreatedAt) {
		t.Errorf("Expected created_at %v, got %v", transaction.CreatedAt, stored.CreatedAt)
	}

	duplicate := *transaction
	duplicate.Id = uuid.New().String()
	err = service.WithSerializableTransaction(ctx, store.DefaultRetryPolicy(), func(tx store.LedgerTx) error {
		return tx.InsertTransaction(ctx, &duplicate)
	})
	if !errors.Is(err, store.ErrDuplicateTransaction) {
		t.Errorf("Expected ErrDuplicateTransaction, got %v", err)
	}
}

func TestLedgerEntries_AppendOnly(t *testing.T) {
	service, path := setupTestDb(t)
	ctx := context.Background()

	wallet, err := service.CreateWallet(ctx, "user1")
	if err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}

	transactionId := uuid.New().String()
	amount := decimal.RequireFromString("1.00")
	err = service.WithSerializableTransaction(ctx, store.DefaultRetryPolicy(), func(tx store.LedgerTx) error {
		head, err := tx.LastEntryHash(ctx, wallet.Id)
		if err != nil {
			return err
		}
		if head != nil {
			t.Errorf("Expected empty chain head, got %s", *head)
		}
		if err := tx.InsertTransaction(ctx, &models.Transaction{
			Id: transactionId, Type: models.TransactionDeposit, ToWalletId: &wallet.Id, UserId: "user1",
			FiatAmount: &amount, Currency: "USD", Status: models.StatusCompleted, CreatedAt: time.Now(),
		}); err != nil {
			return err
		}
		return tx.InsertEntry(ctx, &models.LedgerEntry{
			Id: uuid.New().String(), TransactionId: transactionId, WalletId: wallet.Id, UserId: "user1",
			EntryType: models.EntryCredit, FiatCredit: amount, FiatBalanceAfter: amount,
			EntryHash: "abc", CreatedAt: time.Now(),
		})
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	entries, err := service.ListEntries(ctx, wallet.Id)
	if err != nil {
		t.Fatalf("ListEntries failed: %v", err)
	}
	if len(entries) != 1 || entries[0].EntryHash != "abc" || !entries[0].FiatCredit.Equal(amount) {
		t.Fatalf("Unexpected entries: %+v", entries)
	}

	raw, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("Failed to open raw connection: %v", err)
	}
	defer raw.Close()

	if _, err := raw.Exec(`UPDATE ledger_entries SET entry_hash = 'x'`); err == nil {
		t.Errorf("Expected update of ledger entry to be rejected")
	}
	if _, err := raw.Exec(`DELETE FROM ledger_entries`); err == nil {
		t.Errorf("Expected delete of ledger entry to be rejected")
	}
}

func TestGetTransactionHistory_Filters(t *testing.T) {
	service, _ := setupTestDb(t)
	ctx := context.Background()

	wallet, err := service.CreateWallet(ctx, "user1")
	if err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}

	insert := func(txType models.TransactionType, userId string) {
		amount := decimal.RequireFromString("1.00")
		err := service.WithSerializableTransaction(ctx, store.DefaultRetryPolicy(), func(tx store.LedgerTx) error {
			return tx.InsertTransaction(ctx, &models.Transaction{
				Id: uuid.New().String(), Type: txType, ToWalletId: &wallet.Id, UserId: userId,
				FiatAmount: &amount, Currency: "USD", Status: models.StatusCompleted, CreatedAt: time.Now(),
			})
		})
		if err != nil {
			t.Fatalf("InsertTransaction failed: %v", err)
		}
	}
	insert(models.TransactionDeposit, "user1")
	insert(models.TransactionSale, "buyer")
	insert(models.TransactionDeposit, "user1")

	all, err := service.GetTransactionHistory(ctx, "user1", store.HistoryFilter{})
	if err != nil {
		t.Fatalf("GetTransactionHistory failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 transactions, got %d", len(all))
	}
	if all[0].Seq < all[1].Seq {
		t.Errorf("Expected newest first")
	}

	sales, err := service.GetTransactionHistory(ctx, "user1", store.HistoryFilter{Types: []models.TransactionType{models.TransactionSale}})
	if err != nil {
		t.Fatalf("GetTransactionHistory failed: %v", err)
	}
	if len(sales) != 1 || sales[0].UserId != "buyer" {
		t.Errorf("Expected the one sale touching user1's wallet, got %+v", sales)
	}

	page, err := service.GetTransactionHistory(ctx, "user1", store.HistoryFilter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("GetTransactionHistory failed: %v", err)
	}
	if len(page) != 1 {
		t.Errorf("Expected 1 transaction on second page, got %d", len(page))
	}

	future, err := service.GetTransactionHistory(ctx, "user1", store.HistoryFilter{Since: time.Now().Add(time.Hour)})
	if err != nil {
		t.Fatalf("GetTransactionHistory failed: %v", err)
	}
	if len(future) != 0 {
		t.Errorf("Expected no transactions after now, got %d", len(future))
	}
}

func TestRecordGeneration(t *testing.T) {
	service, _ := setupTestDb(t)
	ctx := context.Background()

	claimEvery := func(n uint64) store.ClaimDecider {
		return func(totalBefore uint64) bool { return totalBefore%n == 0 }
	}

	first, err := service.RecordGeneration(ctx, "user1", "", claimEvery(2))
	if err != nil {
		t.Fatalf("RecordGeneration failed: %v", err)
	}
	if first.TotalBefore != 0 || first.Counter.TotalGenerated != 1 {
		t.Errorf("Expected counter 0 -> 1, got %d -> %d", first.TotalBefore, first.Counter.TotalGenerated)
	}
	if first.Asset.OwnershipType != models.OwnershipAdmin || first.Counter.AdminClaimed != 1 {
		t.Errorf("Expected first asset claimed by platform, got %+v", first)
	}

	second, err := service.RecordGeneration(ctx, "user1", "asset-2", claimEvery(2))
	if err != nil {
		t.Fatalf("RecordGeneration failed: %v", err)
	}
	if second.Asset.OwnershipType != models.OwnershipUser || second.Asset.ClaimedByPlatformAt != nil {
		t.Errorf("Expected second asset owned by user, got %+v", second.Asset)
	}

	asset, err := service.GetAsset(ctx, "asset-2")
	if err != nil {
		t.Fatalf("GetAsset failed: %v", err)
	}
	if asset.CreatorUserId != "user1" || asset.OwnershipType != models.OwnershipUser {
		t.Errorf("Unexpected stored asset: %+v", asset)
	}

	counter, err := service.GetGenerationCounter(ctx, "user1")
	if err != nil {
		t.Fatalf("GetGenerationCounter failed: %v", err)
	}
	if counter.TotalGenerated != 2 || counter.AdminClaimed != 1 {
		t.Errorf("Expected counter 2/1, got %d/%d", counter.TotalGenerated, counter.AdminClaimed)
	}

	empty, err := service.GetGenerationCounter(ctx, "nobody")
	if err != nil {
		t.Fatalf("GetGenerationCounter failed: %v", err)
	}
	if empty.TotalGenerated != 0 {
		t.Errorf("Expected zero counter, got %d", empty.TotalGenerated)
	}

	if _, err := service.GetAsset(ctx, "missing"); !errors.Is(err, store.ErrAssetNotFound) {
		t.Errorf("Expected ErrAssetNotFound, got %v", err)
	}
}

func TestRecordGeneration_Concurrent(t *testing.T) {
	service, _ := setupTestDb(t)
	ctx := context.Background()

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.RecordGeneration(ctx, "user1", "", func(uint64) bool { return false })
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("RecordGeneration failed: %v", err)
		}
	}

	counter, err := service.GetGenerationCounter(ctx, "user1")
	if err != nil {
		t.Fatalf("GetGenerationCounter failed: %v", err)
	}
	if counter.TotalGenerated != workers {
		t.Errorf("Expected %d generations, got %d", workers, counter.TotalGenerated)
	}
}
