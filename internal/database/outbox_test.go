package database

import (
	"context"
	"errors"
	"testing"

	"creator-ledger-go/internal/models"
	"creator-ledger-go/internal/store"
)

func TestOutbox_EnqueueAndDeliver(t *testing.T) {
	service, _ := setupTestDb(t)
	ctx := context.Background()

	err := service.WithSerializableTransaction(ctx, store.DefaultRetryPolicy(), func(tx store.LedgerTx) error {
		for _, key := range []string{"tx-1", "tx-2"} {
			message := &models.OutboxMessage{MessageKey: key, Topic: "ledger.transactions", Payload: `{"id":"` + key + `"}`}
			if err := tx.EnqueueOutbox(ctx, message); err != nil {
				return err
			}
			if message.Id == 0 {
				t.Errorf("Expected id to be assigned for %s", key)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	pending, err := service.PendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("PendingOutbox failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("Expected 2 pending messages, got %d", len(pending))
	}
	if pending[0].MessageKey != "tx-1" || pending[0].Status != models.OutboxPending {
		t.Errorf("Unexpected first message: %+v", pending[0])
	}

	if err := service.MarkOutboxSent(ctx, pending[0].Id); err != nil {
		t.Fatalf("MarkOutboxSent failed: %v", err)
	}

	pending, err = service.PendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("PendingOutbox failed: %v", err)
	}
	if len(pending) != 1 || pending[0].MessageKey != "tx-2" {
		t.Errorf("Expected only tx-2 pending, got %+v", pending)
	}
}

func TestOutbox_RolledBackWithTransaction(t *testing.T) {
	service, _ := setupTestDb(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := service.WithSerializableTransaction(ctx, store.DefaultRetryPolicy(), func(tx store.LedgerTx) error {
		if err := tx.EnqueueOutbox(ctx, &models.OutboxMessage{MessageKey: "k", Topic: "t", Payload: "{}"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got %v", err)
	}

	pending, err := service.PendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("PendingOutbox failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("Expected no pending messages after rollback, got %d", len(pending))
	}
}

func TestOutbox_AttemptFailedMarksFailed(t *testing.T) {
	service, _ := setupTestDb(t)
	ctx := context.Background()

	message := &models.OutboxMessage{MessageKey: "k", Topic: "t", Payload: "{}"}
	err := service.WithSerializableTransaction(ctx, store.DefaultRetryPolicy(), func(tx store.LedgerTx) error {
		return tx.EnqueueOutbox(ctx, message)
	})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	failed, err := service.MarkOutboxAttemptFailed(ctx, message.Id, 2)
	if err != nil || failed {
		t.Fatalf("Expected first failure to keep message pending, got failed=%v err=%v", failed, err)
	}
	failed, err = service.MarkOutboxAttemptFailed(ctx, message.Id, 2)
	if err != nil || !failed {
		t.Fatalf("Expected second failure to mark message failed, got failed=%v err=%v", failed, err)
	}

	pending, err := service.PendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("PendingOutbox failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("Expected failed message to leave the pending set, got %d", len(pending))
	}

	if _, err := service.MarkOutboxAttemptFailed(ctx, 9999, 2); err == nil {
		t.Errorf("Expected error for unknown message")
	}
}
