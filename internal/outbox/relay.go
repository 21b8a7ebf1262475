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

// Package outbox relays ledger events from the outbox table to Kafka.
package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"creator-ledger-go/internal/models"

	"go.uber.org/zap"
)

const (
	DefaultInterval   = time.Second
	DefaultBatchSize  = 100
	DefaultMaxRetries = 10
)

// Store is the part of the ledger store the relay reads and updates.
type Store interface {
	PendingOutbox(ctx context.Context, limit int) ([]models.OutboxMessage, error)
	MarkOutboxSent(ctx context.Context, id int64) error
	MarkOutboxAttemptFailed(ctx context.Context, id int64, maxRetries int) (bool, error)
}

// RelayConfig contains configuration for Relay
type RelayConfig struct {
	Store      Store
	Publisher  Publisher
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
}

// RelayStats counts deliveries since the relay started
type RelayStats struct {
	Sent    int
	Retried int
	Failed  int
}

// Relay polls the outbox and publishes pending messages in id order
type Relay struct {
	store      Store
	publisher  Publisher
	interval   time.Duration
	batchSize  int
	maxRetries int

	mutex sync.Mutex
	stats RelayStats

	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

func NewRelay(cfg RelayConfig) *Relay {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	return &Relay{
		store:      cfg.Store,
		publisher:  cfg.Publisher,
		interval:   cfg.Interval,
		batchSize:  cfg.BatchSize,
		maxRetries: cfg.MaxRetries,
		stopChan:   make(chan struct{}),
		doneChan:   make(chan struct{}),
	}
}

// Start begins relaying in the background
func (r *Relay) Start(ctx context.Context) {
	zap.L().Info("Starting outbox relay",
		zap.Duration("interval", r.interval),
		zap.Int("batch_size", r.batchSize),
		zap.Int("max_retries", r.maxRetries))
	go r.pollLoop(ctx)
}

// Stop gracefully stops the relay after the batch in flight
func (r *Relay) Stop() {
	zap.L().Info("Stopping outbox relay")
	r.stopOnce.Do(func() { close(r.stopChan) })
	<-r.doneChan
	zap.L().Info("Outbox relay stopped")
}

func (r *Relay) pollLoop(ctx context.Context) {
	defer close(r.doneChan)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := r.RelayPending(ctx); err != nil {
				zap.L().Error("Outbox relay round failed", zap.Error(err))
			}
		case <-r.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RelayPending publishes one batch of pending messages and returns how many
// were sent. A message that fails keeps its place; later messages of the
// batch are held back so the topic sees events in commit order.
func (r *Relay) RelayPending(ctx context.Context) (int, error) {
	messages, err := r.store.PendingOutbox(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending outbox messages: %w", err)
	}

	sent := 0
	for _, message := range messages {
		if err := r.publisher.Publish(ctx, message); err != nil {
			r.recordFailure(ctx, message, err)
			return sent, nil
		}

		if err := r.store.MarkOutboxSent(ctx, message.Id); err != nil {
			// Published but not marked: the next round publishes it again.
			return sent, fmt.Errorf("failed to mark outbox message %d sent: %w", message.Id, err)
		}
		sent++
		r.count(func(s *RelayStats) { s.Sent++ })

		zap.L().Debug("Outbox message published",
			zap.Int64("outbox_id", message.Id),
			zap.String("topic", message.Topic),
			zap.String("key", message.MessageKey))
	}
	return sent, nil
}

func (r *Relay) recordFailure(ctx context.Context, message models.OutboxMessage, publishErr error) {
	failed, err := r.store.MarkOutboxAttemptFailed(ctx, message.Id, r.maxRetries)
	if err != nil {
		zap.L().Error("Failed to record outbox retry",
			zap.Int64("outbox_id", message.Id),
			zap.Error(err))
		return
	}

	if failed {
		r.count(func(s *RelayStats) { s.Failed++ })
		zap.L().Error("Outbox message exceeded max retries, marked failed",
			zap.Int64("outbox_id", message.Id),
			zap.String("key", message.MessageKey),
			zap.Int("max_retries", r.maxRetries),
			zap.Error(publishErr))
		return
	}

	r.count(func(s *RelayStats) { s.Retried++ })
	zap.L().Warn("Outbox publish failed, will retry",
		zap.Int64("outbox_id", message.Id),
		zap.Int("retry_count", message.RetryCount+1),
		zap.Error(publishErr))
}

func (r *Relay) count(update func(*RelayStats)) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	update(&r.stats)
}

// Stats returns a snapshot of the delivery counters
func (r *Relay) Stats() RelayStats {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.stats
}
