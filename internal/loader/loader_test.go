package loader

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestLoader_States(t *testing.T) {
	calls := 0
	l := New(func(context.Context) (string, error) {
		calls++
		return "paths", nil
	})

	if l.State() != Idle {
		t.Fatalf("State() = %v, want idle", l.State())
	}
	if _, ok := l.Value(); ok {
		t.Error("Value() should be absent before load")
	}

	v, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if v != "paths" {
		t.Errorf("Load() = %q, want paths", v)
	}
	if l.State() != Loaded {
		t.Errorf("State() = %v, want loaded", l.State())
	}

	if _, err := l.Load(context.Background()); err != nil {
		t.Fatalf("second Load() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("fetch calls = %d, want 1", calls)
	}
}

func TestLoader_FailedThenRetry(t *testing.T) {
	boom := errors.New("backend down")
	fail := true
	l := New(func(context.Context) (int, error) {
		if fail {
			return 0, boom
		}
		return 7, nil
	})

	if _, err := l.Load(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Load() error = %v, want boom", err)
	}
	if l.State() != Failed {
		t.Errorf("State() = %v, want failed", l.State())
	}
	if !errors.Is(l.Err(), boom) {
		t.Errorf("Err() = %v, want boom", l.Err())
	}

	fail = false
	v, err := l.Load(context.Background())
	if err != nil || v != 7 {
		t.Fatalf("retry Load() = %d, %v", v, err)
	}
	if l.Err() != nil {
		t.Errorf("Err() = %v after success", l.Err())
	}
}

func TestLoader_ConcurrentLoadsShareOneFetch(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{})

	l := New(func(context.Context) (int, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return 42, nil
	})

	var wg sync.WaitGroup
	results := make([]int, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _ := l.Load(context.Background())
			results[i] = v
		}(i)
	}

	<-started
	if l.State() != Loading {
		t.Errorf("State() = %v, want loading", l.State())
	}
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("fetch calls = %d, want 1", calls.Load())
	}
	for i, v := range results {
		if v != 42 {
			t.Errorf("results[%d] = %d, want 42", i, v)
		}
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{Idle, "idle"},
		{Loading, "loading"},
		{Loaded, "loaded"},
		{Failed, "failed"},
		{State(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
