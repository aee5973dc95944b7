// Package loader models the fetch-on-open behaviour of a view as an explicit
// load operation with four states. A Loader never runs two fetches at once:
// concurrent callers share the in-flight one.
package loader

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// State is the lifecycle state of a Loader.
type State int

const (
	Idle State = iota
	Loading
	Loaded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// FetchFunc fetches the resource.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Loader loads one resource once. A view creates a new Loader each time it
// opens, so reopening always re-fetches; there is no cache across Loaders.
type Loader[T any] struct {
	fetch FetchFunc[T]
	group singleflight.Group

	mu    sync.Mutex
	state State
	value T
	err   error
}

// New creates an idle Loader.
func New[T any](fetch FetchFunc[T]) *Loader[T] {
	return &Loader[T]{fetch: fetch}
}

// Load returns the loaded value, starting a fetch if the Loader is idle or
// failed and joining the running one if it is loading. A loaded Loader
// returns its value without fetching.
//
// The fetch runs with the context of whichever caller started it.
func (l *Loader[T]) Load(ctx context.Context) (T, error) {
	l.mu.Lock()
	if l.state == Loaded {
		v := l.value
		l.mu.Unlock()
		return v, nil
	}
	l.state = Loading
	l.mu.Unlock()

	res, err, _ := l.group.Do("load", func() (any, error) {
		// a fetch that finished between our state check and Do already
		// produced the value
		l.mu.Lock()
		if l.state == Loaded {
			v := l.value
			l.mu.Unlock()
			return v, nil
		}
		l.mu.Unlock()

		v, err := l.fetch(ctx)

		l.mu.Lock()
		defer l.mu.Unlock()
		if err != nil {
			l.state = Failed
			l.err = err
			return v, err
		}
		l.state = Loaded
		l.value = v
		l.err = nil
		return v, nil
	})
	v, _ := res.(T)
	return v, err
}

// State returns the current state.
func (l *Loader[T]) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Value returns the loaded value, if any.
func (l *Loader[T]) Value() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value, l.state == Loaded
}

// Err returns the error of the last failed fetch.
func (l *Loader[T]) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Failed {
		return nil
	}
	return l.err
}
