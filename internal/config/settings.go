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

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"creator-ledger-go/internal/models"

	"gopkg.in/yaml.v2"
)

// Settings is the optional YAML settings file. Fields left out keep the
// values from the environment.
type Settings struct {
	Settlement *SettlementSettings `yaml:"settlement"`
}

type SettlementSettings struct {
	SellerSharePercent  *int    `yaml:"seller_share_percent"`
	ClaimRatioSharing   *uint64 `yaml:"claim_ratio_sharing"`
	ClaimRatioNoSharing *uint64 `yaml:"claim_ratio_no_sharing"`
}

func LoadSettings(settingsFile string) (*Settings, error) {
	var settingsPath string
	if filepath.IsAbs(settingsFile) {
		settingsPath = settingsFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		settingsPath = filepath.Join(wd, settingsFile)
	}

	data, err := os.ReadFile(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", settingsFile, err)
	}

	var settings Settings
	if err := yaml.UnmarshalStrict(data, &settings); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", settingsFile, err)
	}

	return &settings, nil
}

func (s *Settings) apply(cfg *models.SettlementConfig) {
	if s.Settlement == nil {
		return
	}
	if s.Settlement.SellerSharePercent != nil {
		cfg.SellerSharePercent = *s.Settlement.SellerSharePercent
	}
	if s.Settlement.ClaimRatioSharing != nil {
		cfg.ClaimRatioSharing = *s.Settlement.ClaimRatioSharing
	}
	if s.Settlement.ClaimRatioNoSharing != nil {
		cfg.ClaimRatioNoSharing = *s.Settlement.ClaimRatioNoSharing
	}
}

func validateSettlement(cfg models.SettlementConfig) error {
	if cfg.SellerSharePercent < 50 || cfg.SellerSharePercent > 100 {
		return fmt.Errorf("seller share percent must be between 50 and 100, got %d", cfg.SellerSharePercent)
	}
	if cfg.ClaimRatioSharing == 0 {
		return fmt.Errorf("claim ratio with data sharing must be positive")
	}
	if cfg.ClaimRatioNoSharing == 0 {
		return fmt.Errorf("claim ratio without data sharing must be positive")
	}
	return nil
}
