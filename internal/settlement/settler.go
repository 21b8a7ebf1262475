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

package settlement

import (
	"context"
	"errors"
	"fmt"

	"creator-ledger-go/internal/ledger"
	"creator-ledger-go/internal/models"
	"creator-ledger-go/internal/money"
	"creator-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Metadata keys written by settlement transactions.
const (
	MetaExternalPaymentId = "external_payment_id"
	MetaPaidAmount        = "paid_amount"
	MetaPaidCurrency      = "paid_currency"
	MetaSaleKey           = "sale_key"
	MetaLeg               = "leg"
	MetaRoyaltySkipped    = "royalty_skipped"
)

var saleLegNames = []string{"sale", "fee", "royalty"}

// SaleEvent is a completed marketplace purchase. OwnershipType and
// CreatorUserId are read from the asset record when left empty.
type SaleEvent struct {
	AssetId        string
	SaleAmount     decimal.Decimal
	BuyerWalletId  string
	BuyerUserId    string
	OwnershipType  models.OwnershipType
	CreatorUserId  string
	IdempotencyKey string
}

// SaleSettlement lists the ledger transactions a sale produced.
type SaleSettlement struct {
	Split          Split
	Results        []*ledger.Result
	RoyaltySkipped bool
}

// PaymentConfirmation is a verified payment gateway notification.
type PaymentConfirmation struct {
	UserId            string
	AmountMinorUnits  int64
	Currency          string
	ExternalPaymentId string
	// Kind is TransactionDeposit or TransactionTokenPurchase.
	Kind   models.TransactionType
	Tokens uint64
}

// Settler turns sales and payments into ledger transactions.
type Settler struct {
	engine *ledger.Engine
	store  store.LedgerStore
	config Config
}

func NewSettler(engine *ledger.Engine, s store.LedgerStore, cfg Config) *Settler {
	return &Settler{engine: engine, store: s, config: cfg}
}

// SettleSale records the sale legs in one atomic unit. For a USER asset the
// buyer pays the seller share to the creator and the fee to the platform.
// For an ADMIN asset the buyer pays the platform, which pays the creator's
// royalty; if the creator has no wallet the platform keeps the royalty.
func (s *Settler) SettleSale(ctx context.Context, event SaleEvent) (*SaleSettlement, error) {
	if event.IdempotencyKey == "" {
		return nil, fmt.Errorf("%w: sale idempotency key is required", store.ErrInvalidTransaction)
	}
	if event.BuyerWalletId == "" || event.BuyerUserId == "" {
		return nil, fmt.Errorf("%w: buyer wallet and user are required", store.ErrInvalidTransaction)
	}

	if event.OwnershipType == "" || event.CreatorUserId == "" {
		asset, err := s.store.GetAsset(ctx, event.AssetId)
		if err != nil {
			return nil, fmt.Errorf("asset %s: %w", event.AssetId, err)
		}
		if event.OwnershipType == "" {
			event.OwnershipType = asset.OwnershipType
		}
		if event.CreatorUserId == "" {
			event.CreatorUserId = asset.CreatorUserId
		}
	}

	platform, err := s.store.GetPlatformWallet(ctx)
	if err != nil {
		return nil, fmt.Errorf("platform wallet: %w", err)
	}

	var creatorWalletId string
	creator, err := s.store.GetWalletByUser(ctx, event.CreatorUserId)
	switch {
	case err == nil:
		creatorWalletId = creator.Id
	case !errors.Is(err, store.ErrWalletNotFound):
		return nil, fmt.Errorf("creator wallet: %w", err)
	}

	split, err := s.config.ComputeSaleSplit(event.SaleAmount, event.OwnershipType, creatorWalletId, platform.Id)
	if err != nil {
		return nil, err
	}

	settlement := &SaleSettlement{Split: split}
	replayed, err := s.replaySale(ctx, event.IdempotencyKey, settlement)
	if err != nil {
		return nil, err
	}
	if replayed {
		zap.L().Info("Sale already settled",
			zap.String("asset_id", event.AssetId),
			zap.String("idempotency_key", event.IdempotencyKey),
			zap.Int("legs", len(settlement.Results)))
		return settlement, nil
	}

	zap.L().Info("Settling sale",
		zap.String("asset_id", event.AssetId),
		zap.String("ownership", string(event.OwnershipType)),
		zap.String("sale_amount", money.FormatFiat(event.SaleAmount)),
		zap.String("seller_share", money.FormatFiat(split.SellerShare)),
		zap.String("cut_share", money.FormatFiat(split.CutShare)),
		zap.String("idempotency_key", event.IdempotencyKey))

	inputs := s.saleLegs(event, split, platform.Id, settlement)

	results, err := s.engine.CreateTransactions(ctx, inputs)
	if err != nil {
		zap.L().Error("Sale settlement failed",
			zap.String("asset_id", event.AssetId),
			zap.String("idempotency_key", event.IdempotencyKey),
			zap.Error(err))
		return nil, fmt.Errorf("failed to settle sale of asset %s: %w", event.AssetId, err)
	}

	settlement.Results = results
	return settlement, nil
}

// replaySale loads the legs of a sale settled under key. The legs of a sale
// commit together, so a stored sale leg means the set is complete and the
// sale is not rebuilt from the current wallets.
func (s *Settler) replaySale(ctx context.Context, key string, settlement *SaleSettlement) (bool, error) {
	for _, name := range saleLegNames {
		transaction, err := s.store.GetTransactionByIdempotencyKey(ctx, key+":"+name)
		if errors.Is(err, store.ErrTransactionNotFound) {
			if name == "sale" {
				return false, nil
			}
			continue
		}
		if err != nil {
			return false, fmt.Errorf("sale leg %s: %w", name, err)
		}

		entries, err := s.store.GetEntriesByTransaction(ctx, transaction.Id)
		if err != nil {
			return false, fmt.Errorf("entries of sale leg %s: %w", name, err)
		}
		settlement.Results = append(settlement.Results, &ledger.Result{Transaction: transaction, Entries: entries, Replayed: true})

		if name == "sale" && transaction.Metadata[MetaRoyaltySkipped] == "true" {
			settlement.RoyaltySkipped = true
			settlement.Split.CutWalletId = ""
		}
	}
	return true, nil
}

// saleLegs builds the ledger transactions of a sale. The ADMIN sale leg moves
// the full sale amount to the platform, which pays the creator's royalty in a
// separate leg.
func (s *Settler) saleLegs(event SaleEvent, split Split, platformWalletId string, settlement *SaleSettlement) []ledger.TransactionInput {
	leg := func(name string, txType models.TransactionType, from, to string, amount decimal.Decimal, description string) ledger.TransactionInput {
		return ledger.TransactionInput{
			Type:           txType,
			FromWalletId:   from,
			ToWalletId:     to,
			UserId:         event.BuyerUserId,
			AssetId:        event.AssetId,
			FiatAmount:     amount,
			IdempotencyKey: event.IdempotencyKey + ":" + name,
			Metadata:       map[string]string{MetaSaleKey: event.IdempotencyKey, MetaLeg: name},
			Description:    description,
		}
	}

	var inputs []ledger.TransactionInput
	switch event.OwnershipType {
	case models.OwnershipUser:
		inputs = append(inputs, leg("sale", models.TransactionSale, event.BuyerWalletId, split.SellerWalletId,
			split.SellerShare, "Sale of asset "+event.AssetId))
		if split.CutShare.IsPositive() {
			inputs = append(inputs, leg("fee", models.TransactionFee, event.BuyerWalletId, platformWalletId,
				split.CutShare, "Platform fee for asset "+event.AssetId))
		}

	case models.OwnershipAdmin:
		inputs = append(inputs, leg("sale", models.TransactionSale, event.BuyerWalletId, platformWalletId,
			event.SaleAmount, "Sale of platform asset "+event.AssetId))
		switch {
		case !split.CutShare.IsPositive():
		case split.CutWalletId == "":
			settlement.RoyaltySkipped = true
			inputs[0].Metadata[MetaRoyaltySkipped] = "true"
			zap.L().Warn("Creator wallet missing, platform retains royalty",
				zap.String("asset_id", event.AssetId),
				zap.String("creator_user_id", event.CreatorUserId),
				zap.String("royalty", money.FormatFiat(split.CutShare)))
		default:
			inputs = append(inputs, leg("royalty", models.TransactionSale, platformWalletId, split.CutWalletId,
				split.CutShare, "Creator royalty for asset "+event.AssetId))
		}
	}
	return inputs
}

// ConfirmPayment credits a confirmed payment to the user's wallet. The
// external payment id is the idempotency key, so redelivered webhooks replay.
// Token purchases may be paid in any currency; the paid amount and currency
// are kept in the metadata.
func (s *Settler) ConfirmPayment(ctx context.Context, payment PaymentConfirmation) (*ledger.Result, error) {
	if payment.ExternalPaymentId == "" {
		return nil, fmt.Errorf("%w: external payment id is required", store.ErrInvalidTransaction)
	}
	if payment.AmountMinorUnits <= 0 {
		return nil, fmt.Errorf("%w: payment amount must be positive, got %d", store.ErrInvalidTransaction, payment.AmountMinorUnits)
	}

	wallet, err := s.store.GetWalletByUser(ctx, payment.UserId)
	if err != nil {
		return nil, fmt.Errorf("wallet of user %s: %w", payment.UserId, err)
	}

	paid := money.FromMinorUnits(payment.AmountMinorUnits)
	input := ledger.TransactionInput{
		Type:           payment.Kind,
		ToWalletId:     wallet.Id,
		UserId:         payment.UserId,
		IdempotencyKey: payment.ExternalPaymentId,
		Metadata:       map[string]string{MetaExternalPaymentId: payment.ExternalPaymentId},
	}

	switch payment.Kind {
	case models.TransactionDeposit:
		// A deposit in another currency is rejected by the engine, wallets
		// hold the ledger currency only.
		input.FiatAmount = paid
		input.Currency = payment.Currency
		input.Description = "Deposit " + payment.ExternalPaymentId
	case models.TransactionTokenPurchase:
		if payment.Tokens == 0 {
			return nil, fmt.Errorf("%w: token purchase without tokens", store.ErrInvalidTransaction)
		}
		input.TokenAmount = payment.Tokens
		input.Metadata[MetaPaidAmount] = money.FormatFiat(paid)
		input.Metadata[MetaPaidCurrency] = payment.Currency
		input.Description = "Token purchase " + payment.ExternalPaymentId
	default:
		return nil, fmt.Errorf("%w: payment kind %q", store.ErrInvalidTransaction, payment.Kind)
	}

	result, err := s.engine.CreateTransaction(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm payment %s: %w", payment.ExternalPaymentId, err)
	}
	return result, nil
}
