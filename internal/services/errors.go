// Package services implements the conversation orchestration engine: the
// order ledger, the tool-call dispatcher, and the state machine driving a
// WhatsApp commerce conversation. This file centralizes service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages happens at the orchestrator/dispatcher boundary,
// never by leaking them raw to the channel.
package services

import "errors"

var (
	// ErrDuplicateOrder indicates an order already exists for the triggering
	// message. Benign: the caller reports "already placed", not a failure.
	ErrDuplicateOrder = errors.New("order already placed for this message")

	// ErrInvalidItem is returned when an order line has a non-positive
	// quantity or a negative price.
	ErrInvalidItem = errors.New("order item is invalid")

	// ErrToolCallValidation is returned when the structured payload emitted
	// by the generation collaborator fails shape validation.
	ErrToolCallValidation = errors.New("tool call payload is malformed")

	// ErrPersistence wraps storage failures during order creation. It must
	// never be reported to the user as success.
	ErrPersistence = errors.New("persistence failure")

	// ErrGeneration wraps failures of the text-generation collaborator
	// (unreachable, timeout, empty response).
	ErrGeneration = errors.New("generation failure")

	// ErrChannelSend wraps outbound delivery failures.
	ErrChannelSend = errors.New("channel send failure")
)
