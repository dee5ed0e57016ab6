package flowgraph

import (
	"context"
)

// Counter is a simple state for testing incrementing.
type Counter struct {
	Value int
}

// State is a richer state for testing paths and failures.
type State struct {
	Progress  []string
	Input     string
	Output    string
	GoLeft    bool
	Recovered string
}

// increment is a node that increments the counter.
func increment(ctx Context, s Counter) (Counter, error) {
	s.Value++
	return s, nil
}

// passthrough returns the state unchanged.
func passthrough[S any](ctx Context, s S) (S, error) {
	return s, nil
}

// track creates a node that records its execution in Progress.
func track(name string) NodeFunc[State] {
	return func(ctx Context, s State) (State, error) {
		s.Progress = append(s.Progress, name)
		return s, nil
	}
}

// failing creates a node that records itself and then fails.
// The recorded progress must be discarded by the executor.
func failing(name string, err error) NodeFunc[State] {
	return func(ctx Context, s State) (State, error) {
		s.Progress = append(s.Progress, name)
		return s, err
	}
}

// recoverFallback records the failure cause in Recovered.
func recoverFallback(ctx Context, s State, err error) State {
	s.Progress = append(s.Progress, "recover")
	s.Recovered = err.Error()
	return s
}

// testCtx creates a simple test context.
func testCtx() Context {
	return NewContext(context.Background())
}
