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

	"go.uber.org/zap"
)

func insertOutbox(ctx context.Context, q queryer, message *models.OutboxMessage) error {
	now := time.Now().UTC()
	message.Status = models.OutboxPending
	message.CreatedAt = now
	message.UpdatedAt = now

	err := q.QueryRowContext(ctx, queryInsertOutbox,
		message.MessageKey, message.Topic, message.Payload, formatTime(now), formatTime(now)).
		Scan(&message.Id)
	if err != nil {
		return classifyError(fmt.Errorf("failed to enqueue outbox message: %w", err))
	}
	return nil
}

// PendingOutbox returns up to limit undelivered messages, oldest first
func (s *Service) PendingOutbox(ctx context.Context, limit int) ([]models.OutboxMessage, error) {
	rows, err := s.db.QueryContext(ctx, queryPendingOutbox, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending outbox messages: %w", err)
	}
	defer closeRows(rows)

	var messages []models.OutboxMessage
	for rows.Next() {
		var message models.OutboxMessage
		var status, createdAt, updatedAt string
		if err := rows.Scan(&message.Id, &message.MessageKey, &message.Topic, &message.Payload,
			&status, &message.RetryCount, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox message: %w", err)
		}
		message.Status = models.OutboxStatus(status)
		if message.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if message.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		zap.L().Error("Error during outbox row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating outbox rows: %w", err)
	}
	return messages, nil
}

func (s *Service) MarkOutboxSent(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, queryMarkOutboxSent, formatTime(time.Now()), id)
	if err != nil {
		return classifyError(fmt.Errorf("failed to mark outbox message %d sent: %w", id, err))
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("outbox message %d not found", id)
	}
	return nil
}

func (s *Service) MarkOutboxAttemptFailed(ctx context.Context, id int64, maxRetries int) (bool, error) {
	var status string
	err := s.db.QueryRowContext(ctx, queryIncrementOutboxRetry, maxRetries, formatTime(time.Now()), id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("outbox message %d not found", id)
	}
	if err != nil {
		return false, classifyError(fmt.Errorf("failed to record outbox retry for %d: %w", id, err))
	}
	return models.OutboxStatus(status) == models.OutboxFailed, nil
}
