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

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"creator-ledger-go/internal/common"
	"creator-ledger-go/internal/config"
	"creator-ledger-go/internal/outbox"

	"go.uber.org/zap"
)

func main() {
	onceFlag := flag.Bool("once", false, "Relay one batch and exit")
	flag.Parse()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting outbox relay", zap.Strings("brokers", cfg.Kafka.Brokers))

	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	producer, err := outbox.NewKafkaProducer(cfg.Kafka)
	if err != nil {
		zap.L().Fatal("Failed to connect to Kafka", zap.Error(err))
	}
	publisher := outbox.NewKafkaPublisher(producer)
	defer func() {
		if err := publisher.Close(); err != nil {
			zap.L().Warn("Failed to close Kafka producer", zap.Error(err))
		}
	}()

	relay := outbox.NewRelay(outbox.RelayConfig{
		Store:      dbService,
		Publisher:  publisher,
		Interval:   cfg.Outbox.Interval,
		BatchSize:  cfg.Outbox.BatchSize,
		MaxRetries: cfg.Outbox.MaxRetries,
	})

	if *onceFlag {
		sent, err := relay.RelayPending(ctx)
		if err != nil {
			zap.L().Fatal("Outbox relay failed", zap.Error(err))
		}
		zap.L().Info("Outbox batch relayed", zap.Int("sent", sent))
		return
	}

	relay.Start(ctx)
	zap.L().Info("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zap.L().Info("Shutdown signal received, stopping relay...")

	done := make(chan struct{})
	go func() {
		relay.Stop()
		close(done)
	}()

	select {
	case <-done:
		stats := relay.Stats()
		zap.L().Info("Relay stopped gracefully",
			zap.Int("sent", stats.Sent),
			zap.Int("retried", stats.Retried),
			zap.Int("failed", stats.Failed))
	case <-time.After(30 * time.Second):
		zap.L().Warn("Shutdown timeout exceeded, forcing exit")
		cancel()
	}
}
