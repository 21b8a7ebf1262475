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

	"creator-ledger-go/internal/common"
	"creator-ledger-go/internal/config"
	"creator-ledger-go/internal/models"
	"creator-ledger-go/internal/money"
	"creator-ledger-go/internal/settlement"

	"go.uber.org/zap"
)

// toMinorUnits converts a decimal amount string such as "12.50" into cents
func toMinorUnits(raw string) (int64, error) {
	amount, err := money.ParseFiat(raw)
	if err != nil {
		return 0, err
	}
	if err := money.ValidateFiat(amount); err != nil {
		return 0, err
	}
	if !amount.IsPositive() {
		return 0, fmt.Errorf("amount must be positive: %s", raw)
	}
	return amount.Shift(2).IntPart(), nil
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	userFlag := flag.String("user", "", "User id to credit (required)")
	amountFlag := flag.String("amount", "", "Amount paid, e.g. 12.50 (required)")
	currencyFlag := flag.String("currency", "", "Currency of the payment (defaults to the ledger currency)")
	paymentIdFlag := flag.String("payment-id", "", "External payment id, used as the idempotency key (required)")
	tokensFlag := flag.Uint64("tokens", 0, "Record a token purchase of this many tokens instead of a fiat deposit")
	flag.Parse()

	if *userFlag == "" || *amountFlag == "" || *paymentIdFlag == "" {
		logger.Fatal("Missing required flags: -user, -amount and -payment-id")
	}

	minorUnits, err := toMinorUnits(*amountFlag)
	if err != nil {
		logger.Fatal("Invalid amount", zap.String("amount", *amountFlag), zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	currency := *currencyFlag
	if currency == "" {
		currency = cfg.Ledger.Currency
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	payment := settlement.PaymentConfirmation{
		UserId:            *userFlag,
		AmountMinorUnits:  minorUnits,
		Currency:          currency,
		ExternalPaymentId: *paymentIdFlag,
		Kind:              models.TransactionDeposit,
	}
	if *tokensFlag > 0 {
		payment.Kind = models.TransactionTokenPurchase
		payment.Tokens = *tokensFlag
	}

	result, err := services.Settler.ConfirmPayment(ctx, payment)
	if err != nil {
		logger.Fatal("Failed to confirm payment",
			zap.String("user_id", *userFlag),
			zap.String("payment_id", *paymentIdFlag),
			zap.Error(err))
	}

	common.PrintHeader("PAYMENT CONFIRMED", common.DefaultWidth)
	fmt.Printf("Transaction: %s\n", result.Transaction.Id)
	fmt.Printf("Type:        %s\n", result.Transaction.Type)
	fmt.Printf("Fiat:        %s\n", common.FormatOptionalMoney(result.Transaction.FiatAmount, result.Transaction.Currency))
	fmt.Printf("Tokens:      %s\n", common.FormatOptionalTokens(result.Transaction.TokenAmount))
	if result.Replayed {
		fmt.Println("Replayed:    payment was already recorded")
	}
	common.PrintSeparator("=", common.DefaultWidth)

	logger.Info("Payment confirmed",
		zap.String("transaction_id", result.Transaction.Id),
		zap.String("payment_id", *paymentIdFlag),
		zap.Bool("replayed", result.Replayed))
}
