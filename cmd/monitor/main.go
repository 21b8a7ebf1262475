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
	"creator-ledger-go/internal/monitor"

	"go.uber.org/zap"
)

func main() {
	intervalFlag := flag.Duration("interval", 0, "Override MONITOR_INTERVAL (optional)")
	flag.Parse()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting ledger integrity monitor")

	interval := cfg.Monitor.Interval
	if *intervalFlag > 0 {
		interval = *intervalFlag
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	m := monitor.NewMonitor(monitor.Config{
		Checker:  services.Verifier,
		Interval: interval,
		OnAlert: func(result monitor.Result) {
			for _, finding := range result.Findings {
				zap.L().Error("Chain violation", zap.String("finding", finding.String()))
			}
			for _, mismatch := range result.Mismatches {
				zap.L().Error("Balance mismatch",
					zap.String("wallet_id", mismatch.WalletId),
					zap.String("field", mismatch.Field),
					zap.String("stored", mismatch.Stored),
					zap.String("from_entries", mismatch.FromEntries))
			}
		},
	})

	if err := m.Start(ctx); err != nil {
		zap.L().Fatal("Failed to start monitor", zap.Error(err))
	}

	zap.L().Info("Monitor running", zap.Duration("interval", interval))
	zap.L().Info("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zap.L().Info("Shutdown signal received, stopping monitor...")

	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("Monitor stopped gracefully", zap.Int("rounds", m.Rounds()))
	case <-time.After(30 * time.Second):
		zap.L().Warn("Shutdown timeout exceeded, forcing exit")
		cancel()
	}
}
