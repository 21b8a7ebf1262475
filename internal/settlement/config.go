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

// Package settlement decides who owns a generated asset and splits sale
// proceeds and payment confirmations into ledger transactions.
package settlement

import (
	"fmt"

	"creator-ledger-go/internal/models"
)

const (
	DefaultSellerSharePercent  = 90
	DefaultClaimRatioSharing   = 5
	DefaultClaimRatioNoSharing = 2
)

// Config holds the split percentage and the ownership claim ratios.
type Config struct {
	SellerSharePercent  int
	ClaimRatioSharing   uint64
	ClaimRatioNoSharing uint64
}

func DefaultConfig() Config {
	return Config{
		SellerSharePercent:  DefaultSellerSharePercent,
		ClaimRatioSharing:   DefaultClaimRatioSharing,
		ClaimRatioNoSharing: DefaultClaimRatioNoSharing,
	}
}

// ConfigFromSettings converts loaded settings, falling back to defaults for
// unset values.
func ConfigFromSettings(s models.SettlementConfig) Config {
	cfg := DefaultConfig()
	if s.SellerSharePercent != 0 {
		cfg.SellerSharePercent = s.SellerSharePercent
	}
	if s.ClaimRatioSharing != 0 {
		cfg.ClaimRatioSharing = s.ClaimRatioSharing
	}
	if s.ClaimRatioNoSharing != 0 {
		cfg.ClaimRatioNoSharing = s.ClaimRatioNoSharing
	}
	return cfg
}

func (c Config) Validate() error {
	if c.SellerSharePercent < 50 || c.SellerSharePercent > 100 {
		return fmt.Errorf("seller share percent must be between 50 and 100, got %d", c.SellerSharePercent)
	}
	if c.ClaimRatioSharing == 0 || c.ClaimRatioNoSharing == 0 {
		return fmt.Errorf("claim ratios must be positive, got %d and %d", c.ClaimRatioSharing, c.ClaimRatioNoSharing)
	}
	return nil
}
