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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"creator-ledger-go/internal/models"
	"creator-ledger-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RecordGeneration increments userId's generation counter and stores the new
// asset in one transaction. decide sees the counter value from before the
// increment; when it returns true the asset is owned by the platform.
func (s *Service) RecordGeneration(ctx context.Context, userId, assetId string, decide store.ClaimDecider) (*store.GenerationResult, error) {
	if userId == "" {
		return nil, fmt.Errorf("%w: user id is required", store.ErrInvalidTransaction)
	}
	if decide == nil {
		return nil, fmt.Errorf("claim decider is required")
	}
	if assetId == "" {
		assetId = uuid.New().String()
	}

	var result *store.GenerationResult
	err := store.RetryOnConflict(ctx, store.DefaultRetryPolicy(), func(ctx context.Context) error {
		return s.runInTransaction(ctx, func(tx *sql.Tx) error {
			var err error
			result, err = recordGeneration(ctx, tx, userId, assetId, decide)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Generation recorded",
		zap.String("user_id", userId),
		zap.String("asset_id", assetId),
		zap.String("ownership", string(result.Asset.OwnershipType)),
		zap.Uint64("total_generated", result.Counter.TotalGenerated),
		zap.Uint64("admin_claimed", result.Counter.AdminClaimed))
	return result, nil
}

func recordGeneration(ctx context.Context, tx *sql.Tx, userId, assetId string, decide store.ClaimDecider) (*store.GenerationResult, error) {
	now := time.Now().UTC()
	counter := models.GenerationCounter{UserId: userId, UpdatedAt: now}

	err := tx.QueryRowContext(ctx, queryIncrementGenerationCounter, userId, formatTime(now)).
		Scan(&counter.TotalGenerated, &counter.AdminClaimed)
	if err != nil {
		return nil, classifyError(fmt.Errorf("failed to increment generation counter: %w", err))
	}

	totalBefore := counter.TotalGenerated - 1
	asset := models.Asset{
		Id:            assetId,
		CreatorUserId: userId,
		OwnershipType: models.OwnershipUser,
		CreatedAt:     now,
	}

	var claimedAt sql.NullString
	if decide(totalBefore) {
		if err := tx.QueryRowContext(ctx, queryIncrementAdminClaimed, userId).Scan(&counter.AdminClaimed); err != nil {
			return nil, classifyError(fmt.Errorf("failed to increment admin claimed: %w", err))
		}
		asset.OwnershipType = models.OwnershipAdmin
		asset.ClaimedByPlatformAt = &now
		claimedAt = sql.NullString{String: formatTime(now), Valid: true}
	}

	if _, err := tx.ExecContext(ctx, queryInsertAsset,
		asset.Id, asset.CreatorUserId, string(asset.OwnershipType), claimedAt, formatTime(now)); err != nil {
		return nil, classifyError(fmt.Errorf("failed to insert asset: %w", err))
	}

	return &store.GenerationResult{Counter: counter, TotalBefore: totalBefore, Asset: asset}, nil
}

// GetGenerationCounter returns userId's counter. A user who never generated
// anything has a zero counter.
func (s *Service) GetGenerationCounter(ctx context.Context, userId string) (*models.GenerationCounter, error) {
	counter := models.GenerationCounter{UserId: userId}
	var updatedStr string
	err := s.db.QueryRowContext(ctx, queryGetGenerationCounter, userId).
		Scan(&counter.UserId, &counter.TotalGenerated, &counter.AdminClaimed, &updatedStr)
	if errors.Is(err, sql.ErrNoRows) {
		return &counter, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get generation counter: %w", err)
	}
	if counter.UpdatedAt, err = parseTime(updatedStr); err != nil {
		return nil, err
	}
	return &counter, nil
}

func (s *Service) GetAsset(ctx context.Context, assetId string) (*models.Asset, error) {
	var (
		asset                 models.Asset
		ownership, createdStr string
		claimedAt             sql.NullString
	)
	err := s.db.QueryRowContext(ctx, queryGetAsset, assetId).
		Scan(&asset.Id, &asset.CreatorUserId, &ownership, &claimedAt, &createdStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrAssetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}

	asset.OwnershipType = models.OwnershipType(ownership)
	if claimedAt.Valid {
		t, err := parseTime(claimedAt.String)
		if err != nil {
			return nil, err
		}
		asset.ClaimedByPlatformAt = &t
	}
	if asset.CreatedAt, err = parseTime(createdStr); err != nil {
		return nil, err
	}
	return &asset, nil
}
