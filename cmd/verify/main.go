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
	"fmt"
	"os"

	"creator-ledger-go/internal/common"
	"creator-ledger-go/internal/config"
	"creator-ledger-go/internal/integrity"

	"go.uber.org/zap"
)

func printChainReport(report *integrity.Report) {
	fmt.Printf("Entries checked: %d\n", report.CheckedCount)
	if report.Valid {
		fmt.Println("✓ Hash chain intact")
		return
	}
	fmt.Printf("✗ %d chain violation(s)\n", len(report.Findings))
	for i, finding := range report.Findings {
		fmt.Printf("%s %s\n", common.BoxPrefix(i == len(report.Findings)-1), finding.String())
	}
}

func printReconcileReport(report *integrity.ReconcileReport) {
	fmt.Printf("\nWallets reconciled: %d\n", report.Checked)
	if len(report.Mismatches) == 0 {
		fmt.Println("✓ Balances match ledger entries")
		return
	}
	fmt.Printf("✗ %d balance mismatch(es)\n", len(report.Mismatches))
	for i, m := range report.Mismatches {
		fmt.Printf("%s wallet %s %s: stored %s, entries %s, last entry %s\n",
			common.BoxPrefix(i == len(report.Mismatches)-1),
			common.ShortId(m.WalletId), m.Field, m.Stored, m.FromEntries, m.FromLastEntry)
	}
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	walletFlag := flag.String("wallet", "", "Verify a single wallet id (optional, defaults to all wallets)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}

	common.PrintHeader("LEDGER INTEGRITY CHECK", common.DefaultWidth)

	chainReport, err := services.Verifier.VerifyChain(ctx, *walletFlag)
	if err != nil {
		services.Close()
		logger.Fatal("Failed to verify chain", zap.Error(err))
	}
	printChainReport(chainReport)

	reconcileReport, err := services.Verifier.Reconcile(ctx, *walletFlag)
	if err != nil {
		services.Close()
		logger.Fatal("Failed to reconcile balances", zap.Error(err))
	}
	printReconcileReport(reconcileReport)

	healthy := chainReport.Valid && len(reconcileReport.Mismatches) == 0
	summary := "SUMMARY: ledger is consistent"
	if !healthy {
		summary = "SUMMARY: ledger integrity check FAILED"
	}
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("Integrity check completed",
		zap.Bool("chain_valid", chainReport.Valid),
		zap.Int("entries_checked", chainReport.CheckedCount),
		zap.Int("balance_mismatches", len(reconcileReport.Mismatches)))

	services.Close()
	if !healthy {
		loggerCleanup()
		os.Exit(1)
	}
}
