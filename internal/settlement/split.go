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
	"fmt"

	"creator-ledger-go/internal/models"
	"creator-ledger-go/internal/money"
	"creator-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

// Split divides a sale. The seller share goes to the asset's owner: the
// creator for USER assets, the platform for ADMIN assets. The cut is the
// rest: the platform fee for USER assets, the creator royalty for ADMIN
// assets. CutWalletId is empty when the royalty has nowhere to go.
type Split struct {
	SellerShare    decimal.Decimal
	SellerWalletId string
	CutShare       decimal.Decimal
	CutWalletId    string
}

// ComputeSaleSplit splits saleAmount with the default percentages.
func ComputeSaleSplit(saleAmount decimal.Decimal, ownership models.OwnershipType, creatorWalletId, platformWalletId string) (Split, error) {
	return DefaultConfig().ComputeSaleSplit(saleAmount, ownership, creatorWalletId, platformWalletId)
}

// ComputeSaleSplit rounds each share half-up to the minor unit on its own,
// then moves any residual onto the larger share so the shares always add up
// to saleAmount.
func (c Config) ComputeSaleSplit(saleAmount decimal.Decimal, ownership models.OwnershipType, creatorWalletId, platformWalletId string) (Split, error) {
	if err := money.ValidateFiat(saleAmount); err != nil {
		return Split{}, fmt.Errorf("%w: sale amount: %v", store.ErrInvalidTransaction, err)
	}
	if !saleAmount.IsPositive() {
		return Split{}, fmt.Errorf("%w: sale amount must be positive", store.ErrInvalidTransaction)
	}

	seller := money.RoundHalfUp(money.Percent(saleAmount, c.SellerSharePercent))
	cut := money.RoundHalfUp(money.Percent(saleAmount, 100-c.SellerSharePercent))
	if residual := saleAmount.Sub(seller).Sub(cut); !residual.IsZero() {
		if seller.GreaterThanOrEqual(cut) {
			seller = seller.Add(residual)
		} else {
			cut = cut.Add(residual)
		}
	}

	split := Split{SellerShare: seller, CutShare: cut}
	switch ownership {
	case models.OwnershipUser:
		if creatorWalletId == "" {
			return Split{}, fmt.Errorf("%w: creator wallet", store.ErrWalletNotFound)
		}
		split.SellerWalletId = creatorWalletId
		split.CutWalletId = platformWalletId
	case models.OwnershipAdmin:
		split.SellerWalletId = platformWalletId
		split.CutWalletId = creatorWalletId
	default:
		return Split{}, fmt.Errorf("%w: unknown ownership type %q", store.ErrInvalidTransaction, ownership)
	}
	if platformWalletId == "" {
		return Split{}, fmt.Errorf("%w: platform wallet", store.ErrWalletNotFound)
	}
	return split, nil
}
