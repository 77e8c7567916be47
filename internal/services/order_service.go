// Package services – OrderService
//
// This file implements the order ledger: the only component allowed to
// create orders. It owns the idempotency protocol (at most one order per
// triggering message), item validation, and the integer rounding policy for
// subtotals. Everything after the order header commits (line items, the
// address backfill, the order_placed mark) is bookkeeping that never
// unwinds the committed order.
package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/maachbazar/maachbazar-bot/internal/domain"
	"github.com/maachbazar/maachbazar-bot/internal/repo"
)

// OrderItemInput is one requested order line, already shape-validated by the
// dispatcher but range-checked again here before anything persists.
type OrderItemInput struct {
	FishName   string
	QuantityKg float64
	PricePerKg int
}

// OrderResult reports a committed order back to the caller.
type OrderResult struct {
	OrderID    uint
	TotalPrice int
}

// OrderService creates orders and order items against the ledger tables.
type OrderService struct {
	DB *gorm.DB
}

// Subtotal computes the integer price of one line: quantity × price per kg,
// rounded half up. The policy is fixed; callers must not re-round.
func Subtotal(quantityKg float64, pricePerKg int) int {
	return int(math.Floor(quantityKg*float64(pricePerKg) + 0.5))
}

// ExistsForMessage reports whether an order was already committed for the
// triggering message. A nil message id means no idempotency constraint.
func (s *OrderService) ExistsForMessage(ctx context.Context, messageID *uint) (bool, error) {
	if messageID == nil {
		return false, nil
	}
	exists, err := repo.OrderExistsForMessage(ctx, s.DB, *messageID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return exists, nil
}

// PlaceOrder commits an order for the user.
//
// Sequence:
//  1. idempotency pre-check on messageID (nil skips it)
//  2. validate every item (quantity > 0, price >= 0)
//  3. compute subtotals and total (round half up)
//  4. persist the header; a unique violation on message_id means a
//     concurrent duplicate won the race and yields ErrDuplicateOrder
//  5. persist items, backfill the user's address and reset the
//     address-change counter (when an address was given), and mark the
//     triggering message order_placed, all best-effort after the header
//
// Only a header failure is surfaced as ErrPersistence; the caller must never
// report success in that case.
func (s *OrderService) PlaceOrder(ctx context.Context, userPhone string, items []OrderItemInput, address *string, messageID *uint) (*OrderResult, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "PlaceOrder",
		trace.WithAttributes(
			attribute.String("user.phone", userPhone),
			attribute.Int("order.items", len(items)),
		),
	)
	defer span.End()

	exists, err := s.ExistsForMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateOrder
	}

	if len(items) == 0 {
		return nil, ErrInvalidItem
	}
	for _, it := range items {
		if it.QuantityKg <= 0 || it.PricePerKg < 0 {
			return nil, fmt.Errorf("%w: %q qty=%v price=%d", ErrInvalidItem, it.FishName, it.QuantityKg, it.PricePerKg)
		}
	}

	rows := make([]domain.OrderItem, 0, len(items))
	total := 0
	for _, it := range items {
		sub := Subtotal(it.QuantityKg, it.PricePerKg)
		total += sub
		rows = append(rows, domain.OrderItem{
			FishName:   it.FishName,
			QuantityKg: it.QuantityKg,
			PricePerKg: it.PricePerKg,
			Subtotal:   sub,
		})
	}

	order := &domain.Order{
		UserPhone:       userPhone,
		TotalPrice:      total,
		Status:          domain.OrderStatusPending,
		DeliveryAddress: address,
		MessageID:       messageID,
	}
	if err := repo.CreateOrder(ctx, s.DB, order); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrDuplicateOrder
		}
		return nil, fmt.Errorf("%w: create order: %v", ErrPersistence, err)
	}

	// The header is durable from here on. Sub-failures are logged, never
	// surfaced, so the user is not told a committed order failed.
	for i := range rows {
		rows[i].OrderID = order.ID
	}
	if err := repo.CreateOrderItems(ctx, s.DB, rows); err != nil {
		log.Error().Err(err).Uint("order_id", order.ID).Msg("order items not persisted")
	}

	if address != nil && *address != "" {
		if err := repo.UpdateUserAddress(ctx, s.DB, userPhone, *address); err != nil {
			log.Error().Err(err).Str("user", userPhone).Msg("address backfill failed")
		}
		if err := repo.ResetAddressUpdateCount(ctx, s.DB, userPhone); err != nil {
			log.Error().Err(err).Str("user", userPhone).Msg("address counter reset failed")
		}
	}

	if messageID != nil {
		if err := repo.MarkOrderPlaced(ctx, s.DB, *messageID); err != nil {
			log.Error().Err(err).Uint("message_id", *messageID).Msg("order_placed mark failed")
		}
	}

	span.SetAttributes(attribute.Int("order.total", total))
	return &OrderResult{OrderID: order.ID, TotalPrice: total}, nil
}
