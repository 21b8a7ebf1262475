package ledger

import (
	"context"
	"testing"

	"creator-ledger-go/internal/models"
	"creator-ledger-go/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReverseTransaction_Sale(t *testing.T) {
	engine, db := setupTestEngine(t)
	ctx := context.Background()
	buyer := newWallet(t, db, "buyer")
	creator := newWallet(t, db, "creator")
	deposit(t, engine, buyer.Id, "buyer", "20.00")

	sale, err := engine.CreateTransaction(ctx, TransactionInput{
		Type:         models.TransactionSale,
		FromWalletId: buyer.Id,
		ToWalletId:   creator.Id,
		UserId:       "buyer",
		AssetId:      "asset-1",
		FiatAmount:   fiat("15.00"),
	})
	require.NoError(t, err)

	refund, err := engine.ReverseTransaction(ctx, sale.Transaction.Id, "chargeback", "admin")
	require.NoError(t, err)

	transaction := refund.Transaction
	assert.Equal(t, models.TransactionRefund, transaction.Type)
	require.NotNil(t, transaction.FromWalletId)
	require.NotNil(t, transaction.ToWalletId)
	assert.Equal(t, creator.Id, *transaction.FromWalletId)
	assert.Equal(t, buyer.Id, *transaction.ToWalletId)
	require.NotNil(t, transaction.FiatAmount)
	assert.True(t, transaction.FiatAmount.Equal(fiat("15.00")))
	require.NotNil(t, transaction.IdempotencyKey)
	assert.Equal(t, "reversal:"+sale.Transaction.Id, *transaction.IdempotencyKey)
	assert.Len(t, refund.Entries, 2)

	original, err := db.GetTransaction(ctx, sale.Transaction.Id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRefunded, original.Status)
	assert.Equal(t, transaction.Id, original.Metadata[MetaReversedBy])
	assert.Equal(t, "chargeback", original.Metadata[MetaReversalReason])
	assert.Equal(t, "admin", original.Metadata[MetaReversedByUser])
	assert.NotEmpty(t, original.Metadata[MetaReversedAt])

	buyerBalance, err := engine.GetBalance(ctx, buyer.Id)
	require.NoError(t, err)
	assert.True(t, buyerBalance.Fiat.Equal(fiat("20.00")))

	_, err = engine.ReverseTransaction(ctx, sale.Transaction.Id, "again", "admin")
	assert.ErrorIs(t, err, store.ErrAlreadyReversed)
}

func TestReverseTransaction_NotFound(t *testing.T) {
	engine, _ := setupTestEngine(t)

	_, err := engine.ReverseTransaction(context.Background(), "missing", "reason", "admin")
	assert.ErrorIs(t, err, store.ErrTransactionNotFound)
}

func TestReverseTransaction_InsufficientFundsLeavesOriginal(t *testing.T) {
	engine, db := setupTestEngine(t)
	ctx := context.Background()
	wallet := newWallet(t, db, "user1")
	dep := deposit(t, engine, wallet.Id, "user1", "8.00")

	_, err := engine.CreateTransaction(ctx, TransactionInput{
		Type: models.TransactionSpend, FromWalletId: wallet.Id, UserId: "user1", FiatAmount: fiat("5.00"),
	})
	require.NoError(t, err)

	_, err = engine.ReverseTransaction(ctx, dep.Transaction.Id, "fraud", "admin")
	require.ErrorIs(t, err, store.ErrInsufficientFunds)

	original, err := db.GetTransaction(ctx, dep.Transaction.Id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, original.Status)
}

func TestReverseTransaction_RequiresActor(t *testing.T) {
	engine, _ := setupTestEngine(t)

	_, err := engine.ReverseTransaction(context.Background(), "any", "reason", "")
	assert.ErrorIs(t, err, store.ErrInvalidTransaction)
}
