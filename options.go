package primary

// Option configures an Elector with optional dependencies.
type Option func(*electorOptions)

// electorOptions holds optional Elector configuration.
type electorOptions struct {
	logger    Logger
	metrics   MetricsCollector
	scheduler Scheduler
	clock     Clock
	identity  IdentityProvider
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation (compatible with zap.SugaredLogger)
//
// Returns:
//   - Option: Functional option for New
//
// Example:
//
//	logger := zap.NewExample().Sugar()
//	elector, err := primary.New(cfg, store, bus, primary.WithLogger(logger))
func WithLogger(logger Logger) Option {
	return func(o *electorOptions) {
		o.logger = logger
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for New
//
// Example:
//
//	metrics := primary.NewPrometheusMetrics(prometheus.DefaultRegisterer, "myapp")
//	elector, err := primary.New(cfg, store, bus, primary.WithMetrics(metrics))
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *electorOptions) {
		o.metrics = metrics
	}
}

// WithScheduler replaces the timer source used for renewals and retries.
func WithScheduler(scheduler Scheduler) Option {
	return func(o *electorOptions) {
		o.scheduler = scheduler
	}
}

// WithClock replaces the wall clock used for attempt latency.
//
// Lease expiry is stamped by the store, so a store that takes its own clock
// should be given the same one.
func WithClock(clock Clock) Option {
	return func(o *electorOptions) {
		o.clock = clock
	}
}

// WithIdentityProvider sets where the process identity comes from when
// Config.ID is empty.
//
// Example:
//
//	ids := identity.NewFile(filepath.Join(sessionDir, "primary.id"))
//	elector, err := primary.New(cfg, store, bus, primary.WithIdentityProvider(ids))
func WithIdentityProvider(provider IdentityProvider) Option {
	return func(o *electorOptions) {
		o.identity = provider
	}
}
