package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"quadro/internal/domain"
	"quadro/internal/ports"
)

// MessageRepository persists task chat messages in SQLite. Sequence numbers
// come from the task_sequences counter table so they survive deletions and
// restarts without reuse.
type MessageRepository struct {
	db *gorm.DB
}

var _ ports.MessageRepository = (*MessageRepository)(nil)

// Append implements ports.MessageRepository
func (r *MessageRepository) Append(ctx context.Context, message domain.Message) (*domain.Message, error) {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.Status == "" {
		message.Status = domain.MessageQueued
	}

	var created MessageModel
	err := withRetry(func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var counter TaskSequenceModel
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("task_id = ?", message.TaskID).
				First(&counter).Error
			if err == gorm.ErrRecordNotFound {
				counter = TaskSequenceModel{TaskID: message.TaskID, NextSequence: 1}
				if err := tx.Create(&counter).Error; err != nil {
					return err
				}
			} else if err != nil {
				return err
			}

			created = MessageModel{
				Content:  message.Content,
				ID:       message.ID,
				Role:     string(message.Role),
				Sequence: counter.NextSequence,
				Status:   string(message.Status),
				TaskID:   message.TaskID,
			}
			if err := tx.Create(&created).Error; err != nil {
				return err
			}

			return tx.Model(&TaskSequenceModel{}).
				Where("task_id = ?", message.TaskID).
				Update("next_sequence", counter.NextSequence+1).Error
		})
	}, 3)
	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}

	result := messageModelToDomain(created)
	return &result, nil
}

// ListByTask implements ports.MessageRepository
func (r *MessageRepository) ListByTask(ctx context.Context, taskID string) ([]domain.Message, error) {
	var models []MessageModel
	err := withRetry(func() error {
		return r.db.WithContext(ctx).
			Where("task_id = ?", taskID).
			Order("sequence ASC").
			Find(&models).Error
	}, 3)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	messages := make([]domain.Message, len(models))
	for i, m := range models {
		messages[i] = messageModelToDomain(m)
	}
	return messages, nil
}

// UpdateStatus implements ports.MessageRepository
func (r *MessageRepository) UpdateStatus(ctx context.Context, id string, status domain.MessageStatus) error {
	return withRetry(func() error {
		return r.db.WithContext(ctx).Model(&MessageModel{}).
			Where("id = ?", id).
			Update("status", string(status)).Error
	}, 3)
}
