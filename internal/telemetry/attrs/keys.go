// Package attrs defines telemetry attribute keys used across the trainstats
// middlewares, so metrics and traces share the same names.
package attrs

const (
	// AttrSchema is the schema name of the container involved in an operation.
	AttrSchema = "stats.schema"
	// AttrKeysCount is the number of keys recorded in a container.
	AttrKeysCount = "keys.count"
	// AttrStatKey is the key a metric data point was recorded for.
	AttrStatKey = "stats.key"
	// AttrNested reports whether the container carries a nested container.
	AttrNested = "stats.nested"
	// AttrMethod is the service method being measured.
	AttrMethod = "method"
)
