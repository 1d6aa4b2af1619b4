package exchange

import (
	"time"

	"github.com/hyp3rd/trainstats/internal/libs/serializer"
)

// Option configures an Exchange.
type Option func(*Exchange)

// WithSerializer sets the codec snapshots travel in. Publishers and the
// draining coordinator must agree on it.
func WithSerializer(ser serializer.ISerializer) Option {
	return func(ex *Exchange) {
		ex.ser = ser
	}
}

// WithKeyPrefix replaces the prefix of the per-job lists.
func WithKeyPrefix(prefix string) Option {
	return func(ex *Exchange) {
		if prefix != "" {
			ex.prefix = prefix
		}
	}
}

// WithTTL sets how long a job's lists survive without activity. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(ex *Exchange) {
		if ttl >= 0 {
			ex.ttl = ttl
		}
	}
}
