package settlement

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"creator-ledger-go/internal/database"
	"creator-ledger-go/internal/ledger"
	"creator-ledger-go/internal/models"
	"creator-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	db       *database.Service
	engine   *ledger.Engine
	settler  *Settler
	resolver *Resolver
	platform *models.Wallet
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := database.NewService(ctx, models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "ledger.db"),
		MaxOpenConns: 8,
		MaxIdleConns: 2,
		PingTimeout:  time.Second,
		BusyTimeout:  5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	platform, err := db.EnsurePlatformWallet(ctx)
	require.NoError(t, err)

	engine := ledger.NewEngine(db, ledger.Config{Currency: "USD"})
	return &fixture{
		db:       db,
		engine:   engine,
		settler:  NewSettler(engine, db, DefaultConfig()),
		resolver: NewResolver(db, DefaultConfig()),
		platform: platform,
	}
}

func (f *fixture) wallet(t *testing.T, userId string, fiat string) *models.Wallet {
	t.Helper()
	ctx := context.Background()

	wallet, err := f.db.CreateWallet(ctx, userId)
	require.NoError(t, err)
	if fiat != "" {
		_, err = f.engine.CreateTransaction(ctx, ledger.TransactionInput{
			Type:       models.TransactionDeposit,
			ToWalletId: wallet.Id,
			UserId:     userId,
			FiatAmount: decimal.RequireFromString(fiat),
		})
		require.NoError(t, err)
	}
	return wallet
}

func (f *fixture) fiat(t *testing.T, walletId string) string {
	t.Helper()
	balance, err := f.engine.GetBalance(context.Background(), walletId)
	require.NoError(t, err)
	return balance.Fiat.StringFixed(2)
}

func TestSettleSale_UserOwned(t *testing.T) {
	f := setupFixture(t)
	buyer := f.wallet(t, "buyer", "100.00")
	creator := f.wallet(t, "creator", "")

	settlement, err := f.settler.SettleSale(context.Background(), SaleEvent{
		AssetId:        "asset-1",
		SaleAmount:     decimal.RequireFromString("100.00"),
		BuyerWalletId:  buyer.Id,
		BuyerUserId:    "buyer",
		OwnershipType:  models.OwnershipUser,
		CreatorUserId:  "creator",
		IdempotencyKey: "order-1",
	})
	require.NoError(t, err)
	require.Len(t, settlement.Results, 2)

	assert.Equal(t, models.TransactionSale, settlement.Results[0].Transaction.Type)
	assert.Equal(t, models.TransactionFee, settlement.Results[1].Transaction.Type)
	assert.Equal(t, "0.00", f.fiat(t, buyer.Id))
	assert.Equal(t, "90.00", f.fiat(t, creator.Id))
	assert.Equal(t, "10.00", f.fiat(t, f.platform.Id))
}

func TestSettleSale_AdminOwned(t *testing.T) {
	f := setupFixture(t)
	buyer := f.wallet(t, "buyer", "100.00")
	creator := f.wallet(t, "creator", "")

	settlement, err := f.settler.SettleSale(context.Background(), SaleEvent{
		AssetId:        "asset-1",
		SaleAmount:     decimal.RequireFromString("100.00"),
		BuyerWalletId:  buyer.Id,
		BuyerUserId:    "buyer",
		OwnershipType:  models.OwnershipAdmin,
		CreatorUserId:  "creator",
		IdempotencyKey: "order-1",
	})
	require.NoError(t, err)
	require.Len(t, settlement.Results, 2)
	assert.False(t, settlement.RoyaltySkipped)

	assert.Equal(t, "0.00", f.fiat(t, buyer.Id))
	assert.Equal(t, "10.00", f.fiat(t, creator.Id))
	assert.Equal(t, "90.00", f.fiat(t, f.platform.Id))
}

func TestSettleSale_AdminOwnedWithoutCreatorWallet(t *testing.T) {
	f := setupFixture(t)
	buyer := f.wallet(t, "buyer", "50.00")

	settlement, err := f.settler.SettleSale(context.Background(), SaleEvent{
		AssetId:        "asset-1",
		SaleAmount:     decimal.RequireFromString("50.00"),
		BuyerWalletId:  buyer.Id,
		BuyerUserId:    "buyer",
		OwnershipType:  models.OwnershipAdmin,
		CreatorUserId:  "deleted-user",
		IdempotencyKey: "order-1",
	})
	require.NoError(t, err)
	assert.True(t, settlement.RoyaltySkipped)
	require.Len(t, settlement.Results, 1)
	assert.Equal(t, "50.00", f.fiat(t, f.platform.Id))
}

func TestSettleSale_ReplayKeepsSkippedRoyalty(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	buyer := f.wallet(t, "buyer", "50.00")

	event := SaleEvent{
		AssetId:        "asset-1",
		SaleAmount:     decimal.RequireFromString("50.00"),
		BuyerWalletId:  buyer.Id,
		BuyerUserId:    "buyer",
		OwnershipType:  models.OwnershipAdmin,
		CreatorUserId:  "late-creator",
		IdempotencyKey: "order-1",
	}
	first, err := f.settler.SettleSale(ctx, event)
	require.NoError(t, err)
	require.True(t, first.RoyaltySkipped)

	// The creator opens a wallet before the sale event is redelivered.
	creator := f.wallet(t, "late-creator", "")

	again, err := f.settler.SettleSale(ctx, event)
	require.NoError(t, err)
	assert.True(t, again.RoyaltySkipped)
	assert.Empty(t, again.Split.CutWalletId)
	require.Len(t, again.Results, 1)
	assert.True(t, again.Results[0].Replayed)
	assert.Equal(t, first.Results[0].Transaction.Id, again.Results[0].Transaction.Id)

	assert.Equal(t, "0.00", f.fiat(t, buyer.Id))
	assert.Equal(t, "50.00", f.fiat(t, f.platform.Id))
	assert.Equal(t, "0.00", f.fiat(t, creator.Id))

	_, err = f.db.GetTransactionByIdempotencyKey(ctx, "order-1:royalty")
	assert.ErrorIs(t, err, store.ErrTransactionNotFound)
}

func TestSettleSale_Idempotent(t *testing.T) {
	f := setupFixture(t)
	buyer := f.wallet(t, "buyer", "100.00")
	creator := f.wallet(t, "creator", "")

	event := SaleEvent{
		AssetId:        "asset-1",
		SaleAmount:     decimal.RequireFromString("40.00"),
		BuyerWalletId:  buyer.Id,
		BuyerUserId:    "buyer",
		OwnershipType:  models.OwnershipUser,
		CreatorUserId:  "creator",
		IdempotencyKey: "order-1",
	}
	_, err := f.settler.SettleSale(context.Background(), event)
	require.NoError(t, err)

	again, err := f.settler.SettleSale(context.Background(), event)
	require.NoError(t, err)
	require.Len(t, again.Results, 2)
	for _, result := range again.Results {
		assert.True(t, result.Replayed)
	}
	assert.Equal(t, "60.00", f.fiat(t, buyer.Id))
	assert.Equal(t, "36.00", f.fiat(t, creator.Id))
}

func TestSettleSale_InsufficientFundsSettlesNothing(t *testing.T) {
	f := setupFixture(t)
	buyer := f.wallet(t, "buyer", "95.00")
	creator := f.wallet(t, "creator", "")

	_, err := f.settler.SettleSale(context.Background(), SaleEvent{
		AssetId:        "asset-1",
		SaleAmount:     decimal.RequireFromString("100.00"),
		BuyerWalletId:  buyer.Id,
		BuyerUserId:    "buyer",
		OwnershipType:  models.OwnershipUser,
		CreatorUserId:  "creator",
		IdempotencyKey: "order-1",
	})
	require.ErrorIs(t, err, store.ErrInsufficientFunds)

	assert.Equal(t, "95.00", f.fiat(t, buyer.Id))
	assert.Equal(t, "0.00", f.fiat(t, creator.Id))
	assert.Equal(t, "0.00", f.fiat(t, f.platform.Id))
}

func TestSettleSale_OwnershipFromAsset(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	buyer := f.wallet(t, "buyer", "10.00")
	creator := f.wallet(t, "creator", "")

	// With sharing off the second generation is claimed by the platform.
	_, err := f.resolver.RecordGeneration(ctx, GenerationEvent{UserId: "creator", AssetId: "first"})
	require.NoError(t, err)
	decision, err := f.resolver.RecordGeneration(ctx, GenerationEvent{UserId: "creator", AssetId: "second"})
	require.NoError(t, err)
	require.True(t, decision.IsPlatformClaimed)

	_, err = f.settler.SettleSale(ctx, SaleEvent{
		AssetId:        "second",
		SaleAmount:     decimal.RequireFromString("10.00"),
		BuyerWalletId:  buyer.Id,
		BuyerUserId:    "buyer",
		IdempotencyKey: "order-2",
	})
	require.NoError(t, err)
	assert.Equal(t, "1.00", f.fiat(t, creator.Id))
	assert.Equal(t, "9.00", f.fiat(t, f.platform.Id))
}

func TestRecordGeneration_Cycling(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	var owners []models.OwnershipType
	for i := 0; i < 10; i++ {
		decision, err := f.resolver.RecordGeneration(ctx, GenerationEvent{UserId: "sharer", DataSharingEnabled: true})
		require.NoError(t, err)
		owners = append(owners, decision.OwnershipType)
		if decision.IsPlatformClaimed {
			assert.NotNil(t, decision.ClaimedByPlatformAt)
		}
	}

	user, admin := models.OwnershipUser, models.OwnershipAdmin
	assert.Equal(t, []models.OwnershipType{user, user, user, user, admin, user, user, user, user, admin}, owners)

	counter, err := f.db.GetGenerationCounter(ctx, "sharer")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), counter.TotalGenerated)
	assert.Equal(t, uint64(2), counter.AdminClaimed)
}

func TestRecordGeneration_PreferenceChangeOnlyAffectsFuture(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	first, err := f.resolver.RecordGeneration(ctx, GenerationEvent{UserId: "u", AssetId: "a1", DataSharingEnabled: true})
	require.NoError(t, err)
	assert.False(t, first.IsPlatformClaimed)

	// Sharing now off: generation 2 is every-2nd, so claimed.
	second, err := f.resolver.RecordGeneration(ctx, GenerationEvent{UserId: "u", AssetId: "a2"})
	require.NoError(t, err)
	assert.True(t, second.IsPlatformClaimed)

	asset, err := f.db.GetAsset(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, models.OwnershipUser, asset.OwnershipType)
	assert.Nil(t, asset.ClaimedByPlatformAt)
}

func TestConfirmPayment_Deposit(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	wallet := f.wallet(t, "user1", "")

	payment := PaymentConfirmation{
		UserId:            "user1",
		AmountMinorUnits:  2599,
		Currency:          "USD",
		ExternalPaymentId: "pi_123",
		Kind:              models.TransactionDeposit,
	}
	first, err := f.settler.ConfirmPayment(ctx, payment)
	require.NoError(t, err)
	second, err := f.settler.ConfirmPayment(ctx, payment)
	require.NoError(t, err)

	assert.Equal(t, first.Transaction.Id, second.Transaction.Id)
	assert.True(t, second.Replayed)
	assert.Equal(t, "25.99", f.fiat(t, wallet.Id))
}

func TestConfirmPayment_TokenPurchase(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	wallet := f.wallet(t, "user1", "")

	result, err := f.settler.ConfirmPayment(ctx, PaymentConfirmation{
		UserId:            "user1",
		AmountMinorUnits:  999,
		Currency:          "USD",
		ExternalPaymentId: "pi_456",
		Kind:              models.TransactionTokenPurchase,
		Tokens:            500,
	})
	require.NoError(t, err)
	assert.Equal(t, "9.99", result.Transaction.Metadata[MetaPaidAmount])
	assert.Nil(t, result.Transaction.FiatAmount)

	balance, err := f.engine.GetBalance(ctx, wallet.Id)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), balance.Tokens)
	assert.True(t, balance.Fiat.IsZero())
}

func TestConfirmPayment_Currency(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	wallet := f.wallet(t, "user1", "")

	_, err := f.settler.ConfirmPayment(ctx, PaymentConfirmation{
		UserId:            "user1",
		AmountMinorUnits:  1000,
		Currency:          "EUR",
		ExternalPaymentId: "pi_eur",
		Kind:              models.TransactionDeposit,
	})
	assert.ErrorIs(t, err, store.ErrInvalidTransaction)
	assert.Equal(t, "0.00", f.fiat(t, wallet.Id))

	_, err = f.db.GetTransactionByIdempotencyKey(ctx, "pi_eur")
	assert.ErrorIs(t, err, store.ErrTransactionNotFound)

	result, err := f.settler.ConfirmPayment(ctx, PaymentConfirmation{
		UserId:            "user1",
		AmountMinorUnits:  1000,
		Currency:          "EUR",
		ExternalPaymentId: "pi_eur_tokens",
		Kind:              models.TransactionTokenPurchase,
		Tokens:            100,
	})
	require.NoError(t, err)
	assert.Equal(t, "USD", result.Transaction.Currency)
	assert.Equal(t, "EUR", result.Transaction.Metadata[MetaPaidCurrency])
	assert.Equal(t, "0.00", f.fiat(t, wallet.Id))
}

func TestConfirmPayment_Errors(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	f.wallet(t, "user1", "")

	_, err := f.settler.ConfirmPayment(ctx, PaymentConfirmation{UserId: "nobody", AmountMinorUnits: 100, ExternalPaymentId: "x", Kind: models.TransactionDeposit})
	assert.ErrorIs(t, err, store.ErrWalletNotFound)

	_, err = f.settler.ConfirmPayment(ctx, PaymentConfirmation{UserId: "user1", AmountMinorUnits: 100, Kind: models.TransactionDeposit})
	assert.ErrorIs(t, err, store.ErrInvalidTransaction)

	_, err = f.settler.ConfirmPayment(ctx, PaymentConfirmation{UserId: "user1", AmountMinorUnits: 100, ExternalPaymentId: "y", Kind: models.TransactionSale})
	assert.ErrorIs(t, err, store.ErrInvalidTransaction)

	_, err = f.settler.ConfirmPayment(ctx, PaymentConfirmation{UserId: "user1", AmountMinorUnits: 100, ExternalPaymentId: "z", Kind: models.TransactionTokenPurchase})
	assert.ErrorIs(t, err, store.ErrInvalidTransaction)
}
