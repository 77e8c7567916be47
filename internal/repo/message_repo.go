// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// model, the append-only conversation log.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/maachbazar/maachbazar-bot/internal/domain"
)

// LogMessage appends one conversation turn for the user. channelMessageID is
// the external WhatsApp id (wamid) when known; pass nil otherwise.
func LogMessage(ctx context.Context, db *gorm.DB, phone, role, content string, channelMessageID *string) (*domain.Message, error) {
	m := &domain.Message{
		UserPhone:        phone,
		Role:             role,
		Content:          content,
		ChannelMessageID: channelMessageID,
		CreatedAt:        time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// RecentHistory returns up to limit of the user's most recent messages,
// reordered oldest-first for use as generation context.
func RecentHistory(ctx context.Context, db *gorm.DB, phone string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		return []domain.Message{}, nil
	}
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("user_phone = ?", phone).
		Order("id desc").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	// Query returns newest-first; the prompt wants chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// MessageIDByChannelID resolves an external WhatsApp message id (wamid) to
// the internal message id. Returns nil when the wamid is unknown, which the
// caller treats as "no idempotency constraint".
func MessageIDByChannelID(ctx context.Context, db *gorm.DB, channelMessageID string) (*uint, error) {
	var m domain.Message
	err := db.WithContext(ctx).
		Select("id").
		Where("channel_message_id = ?", channelMessageID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	id := m.ID
	return &id, nil
}

// MarkOrderPlaced flags the triggering message once an order has committed.
// Callers treat failures here as best-effort bookkeeping, never as a reason
// to unwind the order.
func MarkOrderPlaced(ctx context.Context, db *gorm.DB, messageID uint) error {
	return db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ?", messageID).
		Update("order_placed", true).Error
}
