// Package constants defines default configuration values for the trainstats
// system: rendering widths, codec names, and exchange and management server defaults.
package constants

import "time"

const (
	// PrintIndent is the width a key is left-justified to when a container is rendered.
	PrintIndent = 55
	// NestedIndent prefixes every line of a nested container's rendering.
	NestedIndent = "  "
	// DefaultCodec is the serializer used for snapshot files.
	DefaultCodec = "json"
	// ExchangeCodec is the serializer used for snapshots handed off through Redis.
	ExchangeCodec = "msgpack"
	// DefaultWorkers is the number of goroutines used to run worker functions.
	DefaultWorkers = 4
	// DefaultDrainInterval is how often the serve command drains the exchange.
	DefaultDrainInterval = 5 * time.Second
)
