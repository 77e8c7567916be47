// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the daily
// fish inventory maintained through the admin dashboard.
package repo

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/maachbazar/maachbazar-bot/internal/domain"
)

// fishCaser normalizes fish names ("rohu" -> "Rohu") so the unique index on
// inventory.name is not defeated by casing.
var fishCaser = cases.Title(language.English)

// NormalizeFishName trims and title-cases a fish name.
func NormalizeFishName(name string) string {
	return fishCaser.String(strings.TrimSpace(name))
}

// ListInventory returns the whole price list, available or not.
func ListInventory(ctx context.Context, db *gorm.DB) ([]domain.InventoryItem, error) {
	var out []domain.InventoryItem
	err := db.WithContext(ctx).Order("name asc").Find(&out).Error
	return out, err
}

// ListAvailableInventory returns only items currently on sale.
func ListAvailableInventory(ctx context.Context, db *gorm.DB) ([]domain.InventoryItem, error) {
	var out []domain.InventoryItem
	err := db.WithContext(ctx).
		Where("is_available = ?", true).
		Order("name asc").
		Find(&out).Error
	return out, err
}

// AddInventoryItem inserts a new fish onto the price list. It returns
// ErrDuplicate when the fish is already listed.
func AddInventoryItem(ctx context.Context, db *gorm.DB, name string, price int, available bool) (*domain.InventoryItem, error) {
	it := &domain.InventoryItem{
		Name:        NormalizeFishName(name),
		Price:       price,
		IsAvailable: available,
	}
	if err := db.WithContext(ctx).Create(it).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return it, nil
}

// UpdateInventoryItem sets price and availability by row id, or ErrNotFound.
func UpdateInventoryItem(ctx context.Context, db *gorm.DB, id uint, price int, available bool) error {
	res := db.WithContext(ctx).
		Model(&domain.InventoryItem{}).
		Where("id = ?", id).
		Updates(map[string]any{"price": price, "is_available": available})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePriceByName sets the price of a fish by name, or ErrNotFound.
func UpdatePriceByName(ctx context.Context, db *gorm.DB, name string, price int) error {
	res := db.WithContext(ctx).
		Model(&domain.InventoryItem{}).
		Where("name = ?", NormalizeFishName(name)).
		Update("price", price)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
