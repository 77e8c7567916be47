// Package services – Dispatcher
//
// This file implements the tool-call dispatcher: the boundary where
// structured output from the generation model is allowed to touch the order
// ledger. The model's JSON arguments are untrusted input; they are decoded
// strictly (unknown fields rejected), shape-validated, and range-checked
// before anything persists. The dispatcher also owns the user-facing wording
// for the order outcomes, so callers never leak internal errors to the chat.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// OrderPlacer is the slice of the order ledger the dispatcher needs.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, userPhone string, items []OrderItemInput, address *string, messageID *uint) (*OrderResult, error)
}

// placeOrderArgs mirrors the place_order tool schema. Decoding is strict:
// an extra or misspelled field fails validation instead of being dropped.
type placeOrderArgs struct {
	Items   []placeOrderItem `json:"items"`
	Address *string          `json:"address,omitempty"`
}

type placeOrderItem struct {
	FishName   string  `json:"fish_name"`
	Quantity   float64 `json:"quantity"`
	PricePerKg int     `json:"price_per_kg"`
}

// DispatchResult is the outcome of executing a tool call.
type DispatchResult struct {
	// Reply is the user-facing message for this outcome.
	Reply string
	// OrderPlaced reports whether a new order was committed.
	OrderPlaced bool
	// NeedsAddress is set when the order was not placed because no delivery
	// address was available anywhere.
	NeedsAddress bool
}

// Dispatcher validates and executes place_order tool calls.
type Dispatcher struct {
	Orders OrderPlacer
}

// Dispatch executes a place_order tool call for the user.
//
// storedAddress is the address on the user profile, if any; it is used when
// the tool call does not carry one, so a purchase is never blocked on a
// redundant re-entry. When neither is available the dispatcher fails closed:
// no order, and a reply asking for the address.
//
// Errors: ErrToolCallValidation for malformed payloads, ErrInvalidItem for
// out-of-range values, ErrPersistence from the ledger. ErrDuplicateOrder is
// absorbed here into a neutral "already placed" reply.
func (d *Dispatcher) Dispatch(ctx context.Context, userPhone string, storedAddress *string, call ToolCallInput) (*DispatchResult, error) {
	tr := otel.Tracer("services/Dispatcher")
	ctx, span := tr.Start(ctx, "Dispatch",
		trace.WithAttributes(attribute.String("tool.name", call.Name)),
	)
	defer span.End()

	if call.Name != "place_order" {
		return nil, fmt.Errorf("%w: unsupported tool %q", ErrToolCallValidation, call.Name)
	}

	args, err := parsePlaceOrderArgs(call.Arguments)
	if err != nil {
		return nil, err
	}

	items := make([]OrderItemInput, 0, len(args.Items))
	for _, it := range args.Items {
		items = append(items, OrderItemInput{
			FishName:   it.FishName,
			QuantityKg: it.Quantity,
			PricePerKg: it.PricePerKg,
		})
	}

	// Prefer the explicit address from the tool call, fall back to the one
	// on file, and fail closed when there is neither.
	address := args.Address
	if address == nil || *address == "" {
		address = storedAddress
	}
	if address == nil || *address == "" {
		return &DispatchResult{
			Reply:        "Dada, I need your delivery address before placing the order. Please tap 'Change Address' and share it (include Floor, Block, Gali).",
			NeedsAddress: true,
		}, nil
	}

	res, err := d.Orders.PlaceOrder(ctx, userPhone, items, address, call.MessageID)
	if errors.Is(err, ErrDuplicateOrder) {
		// Benign: duplicate delivery of the same confirmation.
		return &DispatchResult{Reply: "This order is already placed, Dada! We are on it. 🐟"}, nil
	}
	if err != nil {
		return nil, err
	}

	return &DispatchResult{
		Reply: fmt.Sprintf(
			"Order placed successfully! Order ID: #%d. Total: ₹%d. Delivery to: %s. We will contact you shortly for delivery.",
			res.OrderID, res.TotalPrice, *address,
		),
		OrderPlaced: true,
	}, nil
}

// ToolCallInput is the dispatcher's view of a tool call: the name, the raw
// untrusted argument JSON, and, when resolvable, the internal id of the
// message that caused it (the idempotency key).
type ToolCallInput struct {
	Name      string
	Arguments []byte
	MessageID *uint
}

// parsePlaceOrderArgs strictly decodes and shape-validates the argument
// payload.
func parsePlaceOrderArgs(raw []byte) (*placeOrderArgs, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var args placeOrderArgs
	if err := dec.Decode(&args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrToolCallValidation, err)
	}
	if len(args.Items) == 0 {
		return nil, fmt.Errorf("%w: items missing", ErrToolCallValidation)
	}
	for i, it := range args.Items {
		if it.FishName == "" {
			return nil, fmt.Errorf("%w: item %d has no fish_name", ErrToolCallValidation, i)
		}
		if it.Quantity <= 0 || it.PricePerKg < 0 {
			return nil, fmt.Errorf("%w: item %d qty=%v price=%d", ErrInvalidItem, i, it.Quantity, it.PricePerKg)
		}
	}
	return &args, nil
}
