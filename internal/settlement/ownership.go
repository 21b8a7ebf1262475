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
	"fmt"
	"time"

	"creator-ledger-go/internal/models"
	"creator-ledger-go/internal/store"

	"go.uber.org/zap"
)

// ShouldPlatformClaim reports whether the next generation of a user who has
// generated totalBefore assets goes to the platform: every ClaimRatioSharing-th
// asset with data sharing on, every ClaimRatioNoSharing-th with it off.
func (c Config) ShouldPlatformClaim(dataSharingEnabled bool, totalBefore uint64) bool {
	ratio := c.ClaimRatioNoSharing
	if dataSharingEnabled {
		ratio = c.ClaimRatioSharing
	}
	if ratio == 0 {
		return false
	}
	return (totalBefore+1)%ratio == 0
}

// ShouldPlatformClaim applies the default claim ratios.
func ShouldPlatformClaim(dataSharingEnabled bool, totalBefore uint64) bool {
	return DefaultConfig().ShouldPlatformClaim(dataSharingEnabled, totalBefore)
}

type GenerationEvent struct {
	UserId             string
	AssetId            string
	DataSharingEnabled bool
}

type GenerationDecision struct {
	AssetId             string
	IsPlatformClaimed   bool
	OwnershipType       models.OwnershipType
	TotalGenerated      uint64
	ClaimedByPlatformAt *time.Time
}

// Resolver applies the ownership claim rule to new generations.
type Resolver struct {
	store  store.LedgerStore
	config Config
}

func NewResolver(s store.LedgerStore, cfg Config) *Resolver {
	return &Resolver{store: s, config: cfg}
}

// RecordGeneration counts the generation and persists the asset's owner. The
// counter read, the decision and the write happen in one database
// transaction, so concurrent generations of one user each see their own
// counter value. A decision is never revisited.
func (r *Resolver) RecordGeneration(ctx context.Context, event GenerationEvent) (*GenerationDecision, error) {
	if event.UserId == "" {
		return nil, fmt.Errorf("%w: user id is required", store.ErrInvalidTransaction)
	}

	result, err := r.store.RecordGeneration(ctx, event.UserId, event.AssetId, func(totalBefore uint64) bool {
		return r.config.ShouldPlatformClaim(event.DataSharingEnabled, totalBefore)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record generation for user %s: %w", event.UserId, err)
	}

	decision := &GenerationDecision{
		AssetId:             result.Asset.Id,
		IsPlatformClaimed:   result.Asset.OwnershipType == models.OwnershipAdmin,
		OwnershipType:       result.Asset.OwnershipType,
		TotalGenerated:      result.Counter.TotalGenerated,
		ClaimedByPlatformAt: result.Asset.ClaimedByPlatformAt,
	}

	if decision.IsPlatformClaimed {
		zap.L().Info("Asset claimed by platform",
			zap.String("user_id", event.UserId),
			zap.String("asset_id", decision.AssetId),
			zap.Bool("data_sharing", event.DataSharingEnabled),
			zap.Uint64("total_generated", decision.TotalGenerated))
	}
	return decision, nil
}
