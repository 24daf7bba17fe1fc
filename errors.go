package rendergraph

import (
	"errors"
	"fmt"
)

// Graph errors.
var (
	// ErrCyclicalGraph is returned by Compile when the producer/consumer
	// relation reachable from the backbuffer contains a cycle.
	ErrCyclicalGraph = errors.New("rendergraph: cyclical graph")

	// ErrInvalidPass is returned when a pass cannot run as declared, for
	// example a host pass while host passes are disabled.
	ErrInvalidPass = errors.New("rendergraph: invalid pass")

	// ErrInvalidPipeline is returned when a pass pipeline fails to bind.
	ErrInvalidPipeline = errors.New("rendergraph: invalid pipeline")

	// ErrInvalidSubmission is returned when no command batch is open where
	// one is required, or when a queue submit fails.
	ErrInvalidSubmission = errors.New("rendergraph: invalid submission")

	// ErrNotCompiled is returned by Execute on a graph that has not been
	// compiled successfully since the last Reset.
	ErrNotCompiled = errors.New("rendergraph: graph not compiled")

	// ErrNoBackbuffer is returned by Compile when no backbuffer was set.
	ErrNoBackbuffer = errors.New("rendergraph: no backbuffer designated")

	// ErrWaitTimeout is returned when a timeline wait does not complete in time.
	ErrWaitTimeout = errors.New("rendergraph: timeline wait timed out")
)

// PassError records the pass and operation that failed.
type PassError struct {
	Pass string
	Op   string
	Err  error
}

func (e *PassError) Error() string {
	return fmt.Sprintf("pass %q: %s: %v", e.Pass, e.Op, e.Err)
}

func (e *PassError) Unwrap() error { return e.Err }

func passError(p *Pass, op string, err error) error {
	return &PassError{Pass: p.name, Op: op, Err: err}
}

// misuse panics on caller errors that violate the static graph description.
func misuse(format string, args ...any) {
	panic("rendergraph: " + fmt.Sprintf(format, args...))
}
