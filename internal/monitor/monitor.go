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

// Package monitor periodically re-verifies the ledger hash chains and
// reconciles wallet balances against their entries.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"creator-ledger-go/internal/integrity"
	"creator-ledger-go/internal/store"

	"go.uber.org/zap"
)

// Checker is the part of integrity.Verifier the monitor drives.
type Checker interface {
	VerifyChain(ctx context.Context, walletId string) (*integrity.Report, error)
	Reconcile(ctx context.Context, walletId string) (*integrity.ReconcileReport, error)
}

// Config contains configuration for Monitor
type Config struct {
	Checker  Checker
	Interval time.Duration
	// OnAlert is called after a check that found a violation. Optional.
	OnAlert func(Result)
}

// Result is the outcome of one check round.
type Result struct {
	CheckedAt      time.Time
	EntriesChecked int
	WalletsChecked int
	Findings       []integrity.Finding
	Mismatches     []integrity.Mismatch
}

// Healthy reports whether the round found nothing wrong.
func (r Result) Healthy() bool {
	return len(r.Findings) == 0 && len(r.Mismatches) == 0
}

// Err returns an error wrapping store.ErrIntegrityViolation and/or
// integrity.ErrBalanceMismatch when the round was not healthy.
func (r Result) Err() error {
	var errs []error
	if len(r.Findings) > 0 {
		errs = append(errs, fmt.Errorf("%w: %d chain finding(s)", store.ErrIntegrityViolation, len(r.Findings)))
	}
	if len(r.Mismatches) > 0 {
		errs = append(errs, fmt.Errorf("%w: %d wallet(s)", integrity.ErrBalanceMismatch, len(r.Mismatches)))
	}
	return errors.Join(errs...)
}

// Monitor runs integrity checks on a fixed interval until stopped
type Monitor struct {
	checker  Checker
	interval time.Duration
	onAlert  func(Result)

	mutex   sync.RWMutex
	last    *Result
	rounds  int
	started bool

	// Control channels
	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

func NewMonitor(cfg Config) *Monitor {
	return &Monitor{
		checker:  cfg.Checker,
		interval: cfg.Interval,
		onAlert:  cfg.OnAlert,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start runs a first check synchronously, then keeps checking in the
// background. A failure to read the ledger on the first round is returned.
func (m *Monitor) Start(ctx context.Context) error {
	if m.interval <= 0 {
		return fmt.Errorf("monitor interval must be positive, got %v", m.interval)
	}

	zap.L().Info("Starting integrity monitor", zap.Duration("interval", m.interval))

	if _, err := m.Check(ctx); err != nil {
		return fmt.Errorf("initial integrity check failed: %w", err)
	}

	m.mutex.Lock()
	m.started = true
	m.mutex.Unlock()

	go m.pollLoop(ctx)
	return nil
}

// Stop gracefully stops the monitor and waits for the running round
func (m *Monitor) Stop() {
	m.mutex.RLock()
	started := m.started
	m.mutex.RUnlock()
	if !started {
		return
	}

	zap.L().Info("Stopping integrity monitor")
	m.stopOnce.Do(func() { close(m.stopChan) })
	<-m.doneChan
	zap.L().Info("Integrity monitor stopped")
}

func (m *Monitor) pollLoop(ctx context.Context) {
	defer close(m.doneChan)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := m.Check(ctx); err != nil {
				zap.L().Error("Integrity check round failed", zap.Error(err))
			}
		case <-m.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Check runs one round over every wallet. The returned error covers failures
// to read the ledger; violations are reported in the Result.
func (m *Monitor) Check(ctx context.Context) (*Result, error) {
	chain, err := m.checker.VerifyChain(ctx, "")
	if err != nil {
		return nil, err
	}
	balances, err := m.checker.Reconcile(ctx, "")
	if err != nil {
		return nil, err
	}

	result := Result{
		CheckedAt:      time.Now().UTC(),
		EntriesChecked: chain.CheckedCount,
		WalletsChecked: balances.Checked,
		Findings:       chain.Findings,
		Mismatches:     balances.Mismatches,
	}

	m.mutex.Lock()
	m.last = &result
	m.rounds++
	m.mutex.Unlock()

	if result.Healthy() {
		zap.L().Info("Integrity check passed",
			zap.Int("entries", result.EntriesChecked),
			zap.Int("wallets", result.WalletsChecked))
		return &result, nil
	}

	zap.L().Error("Integrity check found violations",
		zap.Int("chain_findings", len(result.Findings)),
		zap.Int("balance_mismatches", len(result.Mismatches)),
		zap.Error(result.Err()))
	if m.onAlert != nil {
		m.onAlert(result)
	}
	return &result, nil
}

// LastResult returns the most recent round, or nil before the first one.
func (m *Monitor) LastResult() *Result {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.last
}

// Rounds returns how many rounds completed.
func (m *Monitor) Rounds() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.rounds
}
