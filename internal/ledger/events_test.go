package ledger

import (
	"context"
	"encoding/json"
	"testing"

	"creator-ledger-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEvents(t *testing.T, messages []models.OutboxMessage) []TransactionEvent {
	t.Helper()
	events := make([]TransactionEvent, 0, len(messages))
	for _, message := range messages {
		var event TransactionEvent
		require.NoError(t, json.Unmarshal([]byte(message.Payload), &event))
		assert.Equal(t, DefaultEventTopic, message.Topic)
		assert.Equal(t, event.TransactionId, message.MessageKey)
		events = append(events, event)
	}
	return events
}

func TestEvents_WrittenWithTransaction(t *testing.T) {
	engine, db := setupTestEngine(t)
	ctx := context.Background()
	wallet := newWallet(t, db, "user1")

	input := TransactionInput{
		Type:           models.TransactionDeposit,
		ToWalletId:     wallet.Id,
		UserId:         "user1",
		FiatAmount:     fiat("10.00"),
		IdempotencyKey: "pay_1",
	}
	result, err := engine.CreateTransaction(ctx, input)
	require.NoError(t, err)

	// A replay writes nothing
	_, err = engine.CreateTransaction(ctx, input)
	require.NoError(t, err)

	messages, err := db.PendingOutbox(ctx, 10)
	require.NoError(t, err)
	events := decodeEvents(t, messages)
	require.Len(t, events, 1)

	event := events[0]
	assert.Equal(t, EventTransactionCreated, event.Event)
	assert.Equal(t, result.Transaction.Id, event.TransactionId)
	assert.Equal(t, models.TransactionDeposit, event.Type)
	require.NotNil(t, event.FiatAmount)
	assert.Equal(t, "10.00", *event.FiatAmount)
}

func TestEvents_NoneOnFailure(t *testing.T) {
	engine, db := setupTestEngine(t)
	ctx := context.Background()
	buyer := newWallet(t, db, "buyer")
	seller := newWallet(t, db, "seller")

	_, err := engine.CreateTransaction(ctx, TransactionInput{
		Type:         models.TransactionSale,
		FromWalletId: buyer.Id,
		ToWalletId:   seller.Id,
		UserId:       "buyer",
		FiatAmount:   fiat("5.00"),
	})
	require.Error(t, err)

	messages, err := db.PendingOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestEvents_Reversal(t *testing.T) {
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
		FiatAmount:   fiat("15.00"),
	})
	require.NoError(t, err)
	refund, err := engine.ReverseTransaction(ctx, sale.Transaction.Id, "chargeback", "admin")
	require.NoError(t, err)

	messages, err := db.PendingOutbox(ctx, 10)
	require.NoError(t, err)
	events := decodeEvents(t, messages)
	require.Len(t, events, 4)

	assert.Equal(t, EventTransactionCreated, events[2].Event)
	assert.Equal(t, refund.Transaction.Id, events[2].TransactionId)
	assert.Equal(t, EventTransactionStatusChanged, events[3].Event)
	assert.Equal(t, sale.Transaction.Id, events[3].TransactionId)
	assert.Equal(t, models.StatusRefunded, events[3].Status)
	assert.Equal(t, refund.Transaction.Id, events[3].Metadata[MetaReversedBy])
}
