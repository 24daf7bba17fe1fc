package rendergraph

import "time"

// Defaults for GraphOptions.
const (
	// DefaultWaitTimeout bounds every timeline wait the executor performs.
	DefaultWaitTimeout = time.Second

	// DefaultFramesInFlight is how many frames a retired physical object
	// survives before it is destroyed.
	DefaultFramesInFlight = 2

	// DefaultEvictAfter is how many frames a named resource may go
	// undeclared before its slot and physical object are released.
	DefaultEvictAfter = 8
)

// GraphOption configures a Graph during creation.
//
// Example:
//
//	g, err := rendergraph.New(device,
//	    rendergraph.WithMultiQueue(true),
//	    rendergraph.WithHostPasses(true),
//	)
type GraphOption func(*graphOptions)

type graphOptions struct {
	multiQueue     bool
	hostPasses     bool
	timestamps     bool
	statistics     bool
	waitTimeout    time.Duration
	framesInFlight uint64
	evictAfter     uint64
}

func defaultGraphOptions() graphOptions {
	return graphOptions{
		waitTimeout:    DefaultWaitTimeout,
		framesInFlight: DefaultFramesInFlight,
		evictAfter:     DefaultEvictAfter,
	}
}

// WithMultiQueue enables dependency-level queue assignment. Independent
// compute passes may then run on the device's async compute queue.
func WithMultiQueue(enabled bool) GraphOption {
	return func(o *graphOptions) { o.multiQueue = enabled }
}

// WithHostPasses allows PassHost passes. Compile fails with ErrInvalidPass
// on a live host pass otherwise.
func WithHostPasses(enabled bool) GraphOption {
	return func(o *graphOptions) { o.hostPasses = enabled }
}

// WithWaitTimeout sets the timeout for host-side timeline waits.
func WithWaitTimeout(d time.Duration) GraphOption {
	return func(o *graphOptions) {
		if d > 0 {
			o.waitTimeout = d
		}
	}
}

// WithTimestamps wraps every recorded pass in a timestamp query scope.
func WithTimestamps(enabled bool) GraphOption {
	return func(o *graphOptions) { o.timestamps = enabled }
}

// WithStatistics wraps every recorded pass in a pipeline statistics scope.
func WithStatistics(enabled bool) GraphOption {
	return func(o *graphOptions) { o.statistics = enabled }
}

// WithFramesInFlight sets how many frames retired objects are kept alive.
func WithFramesInFlight(n int) GraphOption {
	return func(o *graphOptions) {
		if n > 0 {
			o.framesInFlight = uint64(n)
		}
	}
}

// WithEvictAfter sets how many frames an undeclared named resource is kept.
func WithEvictAfter(n int) GraphOption {
	return func(o *graphOptions) {
		if n > 0 {
			o.evictAfter = uint64(n)
		}
	}
}

// WithConfig applies every field of cfg.
func WithConfig(cfg Config) GraphOption {
	return func(o *graphOptions) {
		o.multiQueue = cfg.MultiQueue
		o.hostPasses = cfg.HostPasses
		o.timestamps = cfg.Timestamps
		o.statistics = cfg.Statistics
		if d, err := cfg.Timeout(); err == nil && d > 0 {
			o.waitTimeout = d
		}
		WithFramesInFlight(cfg.FramesInFlight)(o)
		WithEvictAfter(cfg.EvictAfter)(o)
	}
}
