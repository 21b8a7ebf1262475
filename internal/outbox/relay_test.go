package outbox

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"creator-ledger-go/internal/database"
	"creator-ledger-go/internal/models"
	"creator-ledger-go/internal/store"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *database.Service {
	t.Helper()

	service, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "ledger.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 1,
		PingTimeout:  time.Second,
		BusyTimeout:  5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(service.Close)
	return service
}

func enqueue(t *testing.T, s *database.Service, keys ...string) {
	t.Helper()
	ctx := context.Background()
	err := s.WithSerializableTransaction(ctx, store.DefaultRetryPolicy(), func(tx store.LedgerTx) error {
		for _, key := range keys {
			message := &models.OutboxMessage{
				MessageKey: key,
				Topic:      "ledger.transactions",
				Payload:    fmt.Sprintf(`{"transaction_id":%q}`, key),
			}
			if err := tx.EnqueueOutbox(ctx, message); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

type flakyPublisher struct {
	failures  int
	published []string
}

func (p *flakyPublisher) Publish(_ context.Context, message models.OutboxMessage) error {
	if p.failures > 0 {
		p.failures--
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, message.MessageKey)
	return nil
}

func TestRelayPending_PublishesToKafka(t *testing.T) {
	s := setupTestStore(t)
	enqueue(t, s, "tx-1", "tx-2")

	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != `{"transaction_id":"tx-1"}` {
			return fmt.Errorf("unexpected payload %s", val)
		}
		return nil
	})
	producer.ExpectSendMessageAndSucceed()

	publisher := NewKafkaPublisher(producer)
	relay := NewRelay(RelayConfig{Store: s, Publisher: publisher})

	sent, err := relay.RelayPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, 2, relay.Stats().Sent)

	pending, err := s.PendingOutbox(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
	require.NoError(t, publisher.Close())
}

func TestRelayPending_KafkaFailureKeepsMessage(t *testing.T) {
	s := setupTestStore(t)
	enqueue(t, s, "tx-1", "tx-2")

	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	publisher := NewKafkaPublisher(producer)
	relay := NewRelay(RelayConfig{Store: s, Publisher: publisher, MaxRetries: 5})

	sent, err := relay.RelayPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Equal(t, 1, relay.Stats().Retried)

	pending, err := s.PendingOutbox(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 2, "later messages are held back behind the failed one")
	assert.Equal(t, "tx-1", pending[0].MessageKey)
	assert.Equal(t, 1, pending[0].RetryCount)
	require.NoError(t, publisher.Close())
}

func TestRelayPending_MarksFailedAfterMaxRetries(t *testing.T) {
	s := setupTestStore(t)
	enqueue(t, s, "tx-1", "tx-2")

	publisher := &flakyPublisher{failures: 2}
	relay := NewRelay(RelayConfig{Store: s, Publisher: publisher, MaxRetries: 2})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		sent, err := relay.RelayPending(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, sent)
	}
	assert.Equal(t, RelayStats{Retried: 1, Failed: 1}, relay.Stats())

	// tx-1 is FAILED now, so tx-2 goes through
	sent, err := relay.RelayPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{"tx-2"}, publisher.published)
}

func TestRelay_StartStop(t *testing.T) {
	s := setupTestStore(t)
	enqueue(t, s, "tx-1")

	publisher := &flakyPublisher{}
	relay := NewRelay(RelayConfig{Store: s, Publisher: publisher, Interval: 10 * time.Millisecond})

	relay.Start(context.Background())
	assert.Eventually(t, func() bool { return relay.Stats().Sent == 1 }, 2*time.Second, 5*time.Millisecond)
	relay.Stop()
}

func TestKafkaPublisher_CanceledContext(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	publisher := NewKafkaPublisher(producer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := publisher.Publish(ctx, models.OutboxMessage{Id: 1, Topic: "t", MessageKey: "k", Payload: "{}"})
	assert.ErrorIs(t, err, context.Canceled)
	require.NoError(t, publisher.Close())
}

func TestNewKafkaProducer_RequiresBrokers(t *testing.T) {
	_, err := NewKafkaProducer(models.KafkaConfig{})
	assert.Error(t, err)
}
