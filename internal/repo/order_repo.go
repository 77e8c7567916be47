// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Order and
// OrderItem models, including the storage-level idempotency guarantee: the
// unique index on orders.message_id means that of two racing creates for the
// same triggering message, exactly one commits.
package repo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/maachbazar/maachbazar-bot/internal/domain"
)

// ErrDuplicate indicates that a unique index rejected an insert, e.g. an
// order already exists for the triggering message id.
var ErrDuplicate = errors.New("duplicate")

// isUniqueViolation sniffs a GORM error for a UNIQUE index violation.
// glebarez/sqlite often returns plain-text errors rather than typed ones.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}

// OrderExistsForMessage reports whether an order was already committed for
// the given internal message id.
func OrderExistsForMessage(ctx context.Context, db *gorm.DB, messageID uint) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("message_id = ?", messageID).
		Count(&n).Error
	return n > 0, err
}

// CreateOrder inserts the order header and returns ErrDuplicate when the
// unique index on message_id rejects it.
func CreateOrder(ctx context.Context, db *gorm.DB, o *domain.Order) error {
	if err := db.WithContext(ctx).Create(o).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// CreateOrderItems inserts the line items for an already-committed order.
func CreateOrderItems(ctx context.Context, db *gorm.DB, items []domain.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&items).Error
}

// CountOrders returns the total number of orders, for pagination.
func CountOrders(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Order{}).Count(&total).Error
	return total, err
}

// ListOrdersPage returns a page of orders with their items, most recent
// first, for the admin dashboard.
func ListOrdersPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Order, error) {
	var out []domain.Order
	err := db.WithContext(ctx).
		Preload("Items").
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListUserOrders returns the user's most recent orders with items.
func ListUserOrders(ctx context.Context, db *gorm.DB, phone string, limit int) ([]domain.Order, error) {
	var out []domain.Order
	err := db.WithContext(ctx).
		Preload("Items").
		Where("user_phone = ?", phone).
		Order("created_at desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateOrderStatus transitions an order and returns the updated row, or
// ErrNotFound when the order does not exist.
func UpdateOrderStatus(ctx context.Context, db *gorm.DB, orderID uint, status string) (*domain.Order, error) {
	res := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ?", orderID).
		Update("status", status)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	var o domain.Order
	if err := db.WithContext(ctx).Preload("Items").First(&o, "id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &o, nil
}
