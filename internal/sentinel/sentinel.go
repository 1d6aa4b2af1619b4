// Package sentinel provides standardized error definitions for the trainstats system.
// This package centralizes all error types used across the trainstats components,
// ensuring consistent error handling and messaging throughout the application.
//
// The errors defined here cover:
// - Container lookups and merges (key not found, incompatible schemas)
// - Schema construction (invalid merge rules, unknown schemas)
// - Component initialization errors (nil clients, missing serializers)
//
// All errors are created using the ewrap package to provide enhanced error
// wrapping and context capabilities. Compare with errors.Is.
package sentinel

import (
	"github.com/hyp3rd/ewrap"
)

var (
	// ErrKeyNotFound is returned when a key is not present in a stats container.
	ErrKeyNotFound = ewrap.New("key not found")

	// ErrTypeMismatch is returned when two containers, or a container and a value, do not share a schema.
	ErrTypeMismatch = ewrap.New("type mismatch")

	// ErrNilContainer is returned when a nil container is passed where one is required.
	ErrNilContainer = ewrap.New("nil container")

	// ErrInvalidRule is returned when a merge rule does not apply to the kind of a schema field.
	ErrInvalidRule = ewrap.New("invalid merge rule")

	// ErrDuplicateKey is returned when a schema declares the same key twice.
	ErrDuplicateKey = ewrap.New("duplicate key")

	// ErrSchemaNotFound is returned when a schema name is not registered.
	ErrSchemaNotFound = ewrap.New("schema not found")

	// ErrParamCannotBeEmpty is returned when a parameter cannot be empty.
	ErrParamCannotBeEmpty = ewrap.New("param cannot be empty")

	// ErrSerializerNotFound is returned when a serializer is not found.
	ErrSerializerNotFound = ewrap.New("serializer not found")

	// ErrNilClient is returned when a nil client is passed to the exchange.
	ErrNilClient = ewrap.New("nil client")

	// ErrTimeoutOrCanceled is returned when a timeout or cancellation occurs.
	ErrTimeoutOrCanceled = ewrap.New("the operation timed out or was canceled")

	// ErrMgmtHTTPShutdownTimeout is returned when the management HTTP server fails to shutdown before context deadline.
	ErrMgmtHTTPShutdownTimeout = ewrap.New("management http shutdown timeout")
)
