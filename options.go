package trainstats

// Option is a function type that can be used to configure the `Aggregator` struct.
type Option func(*Aggregator)

// WithWorkers sets how many worker functions Run executes concurrently.
// Values below one are ignored.
func WithWorkers(workers int) Option {
	return func(a *Aggregator) {
		if workers > 0 {
			a.workers = workers
		}
	}
}

// ApplyOptions applies the given options to the given aggregator.
func ApplyOptions(a *Aggregator, options ...Option) {
	for _, option := range options {
		option(a)
	}
}
