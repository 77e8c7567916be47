// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a user is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/maachbazar/maachbazar-bot/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// GetUser fetches a user by phone number, or ErrNotFound if missing.
func GetUser(ctx context.Context, db *gorm.DB, phone string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).First(&u, "phone = ?", phone).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetOrCreateUser looks up a user by phone and creates the row on first
// contact. The boolean result reports whether the user was just created.
func GetOrCreateUser(ctx context.Context, db *gorm.DB, phone string) (*domain.User, bool, error) {
	u, err := GetUser(ctx, db, phone)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	nu := &domain.User{
		Phone:        phone,
		OptIn:        true,
		LastActiveAt: time.Now().UTC(),
	}
	if cerr := db.WithContext(ctx).Create(nu).Error; cerr != nil {
		// Lost a race with a concurrent first contact: re-read.
		if u, rerr := GetUser(ctx, db, phone); rerr == nil {
			return u, false, nil
		}
		return nil, false, cerr
	}
	return nu, true, nil
}

// TouchUserActivity records the user's last inbound activity instant.
func TouchUserActivity(ctx context.Context, db *gorm.DB, phone string, now time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.User{}).
		Where("phone = ?", phone).
		Update("last_active_at", now.UTC()).Error
}

// UpdateUserLanguage persists the user's preferred reply language.
func UpdateUserLanguage(ctx context.Context, db *gorm.DB, phone, language string) error {
	return db.WithContext(ctx).
		Model(&domain.User{}).
		Where("phone = ?", phone).
		Update("language", language).Error
}

// UpdateUserAddress persists the user's delivery address.
func UpdateUserAddress(ctx context.Context, db *gorm.DB, phone, address string) error {
	return db.WithContext(ctx).
		Model(&domain.User{}).
		Where("phone = ?", phone).
		Update("address", address).Error
}

// GetConversationState returns the user's conversation state, or nil when the
// user is in the normal state (or does not exist).
func GetConversationState(ctx context.Context, db *gorm.DB, phone string) (*string, error) {
	u, err := GetUser(ctx, db, phone)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u.ConversationState, nil
}

// SetConversationState writes the user's conversation state. Passing nil
// clears the state.
func SetConversationState(ctx context.Context, db *gorm.DB, phone string, state *string) error {
	return db.WithContext(ctx).
		Model(&domain.User{}).
		Where("phone = ?", phone).
		Update("conversation_state", state).Error
}

// GetAddressUpdateCount returns the user's address-change counter, defaulting
// to 0 for unknown users.
func GetAddressUpdateCount(ctx context.Context, db *gorm.DB, phone string) (int, error) {
	u, err := GetUser(ctx, db, phone)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return u.AddressUpdateCount, nil
}

// IncrementAddressUpdateCount bumps the address-change counter by one.
// The increment happens inside the UPDATE so concurrent duplicate deliveries
// for the same user cannot lose a count.
func IncrementAddressUpdateCount(ctx context.Context, db *gorm.DB, phone string) error {
	return db.WithContext(ctx).
		Model(&domain.User{}).
		Where("phone = ?", phone).
		Update("address_update_count", gorm.Expr("address_update_count + 1")).Error
}

// ResetAddressUpdateCount sets the address-change counter back to zero.
// Called once per successfully committed order that carried an address.
func ResetAddressUpdateCount(ctx context.Context, db *gorm.DB, phone string) error {
	return db.WithContext(ctx).
		Model(&domain.User{}).
		Where("phone = ?", phone).
		Update("address_update_count", 0).Error
}

// ListOptInUsers returns users who receive the morning stock broadcast.
func ListOptInUsers(ctx context.Context, db *gorm.DB) ([]domain.User, error) {
	var out []domain.User
	err := db.WithContext(ctx).
		Where("opt_in = ?", true).
		Order("phone asc").
		Find(&out).Error
	return out, err
}
