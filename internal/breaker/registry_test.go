package breaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRegistry_GetOrCreateReturnsSameInstance(t *testing.T) {
	r := NewRegistry(Config{})

	a := r.GetOrCreate("census")
	b := r.GetOrCreate("census")
	if a != b {
		t.Error("expected the same breaker instance for the same name")
	}

	c := r.GetOrCreate("places")
	if c == a {
		t.Error("expected distinct breakers for distinct names")
	}
}

func TestRegistry_GetOrCreateConcurrent(t *testing.T) {
	r := NewRegistry(Config{})

	const goroutines = 50
	results := make([]*Breaker, goroutines)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.GetOrCreate("census")
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		if results[i] != results[0] {
			t.Fatal("expected every goroutine to receive the same breaker")
		}
	}
}

func TestRegistry_ResetAll(t *testing.T) {
	r := NewRegistry(Config{FailureThreshold: 1, Timeout: time.Minute})
	fail := func(context.Context) error { return errors.New("down") }

	_ = r.GetOrCreate("census").Call(context.Background(), fail)
	_ = r.GetOrCreate("places").Call(context.Background(), fail)

	names := r.ResetAll()
	if len(names) != 2 || names[0] != "census" || names[1] != "places" {
		t.Fatalf("expected sorted names [census places], got %v", names)
	}
	for name, st := range r.StatusAll() {
		if st.State != "closed" {
			t.Errorf("breaker %s: expected closed after reset, got %s", name, st.State)
		}
	}
}

func TestRegistry_StatusAll(t *testing.T) {
	r := NewRegistry(Config{FailureThreshold: 1, Timeout: time.Minute})

	_ = r.GetOrCreate("census").Call(context.Background(), func(context.Context) error { return nil })
	_ = r.GetOrCreate("places").Call(context.Background(), func(context.Context) error { return errors.New("down") })

	all := r.StatusAll()
	if len(all) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(all))
	}
	if all["census"].State != "closed" {
		t.Errorf("expected census closed, got %s", all["census"].State)
	}
	if all["places"].State != "open" {
		t.Errorf("expected places open, got %s", all["places"].State)
	}
}

func TestRegistry_ListenerAppliedToNewBreakers(t *testing.T) {
	r := NewRegistry(Config{FailureThreshold: 1, Timeout: time.Minute})

	var mu sync.Mutex
	opened := map[string]bool{}
	r.OnStateChange(func(name string, from, to State) {
		if to == StateOpen {
			mu.Lock()
			opened[name] = true
			mu.Unlock()
		}
	})

	_ = r.GetOrCreate("census").Call(context.Background(), func(context.Context) error { return errors.New("down") })

	mu.Lock()
	defer mu.Unlock()
	if !opened["census"] {
		t.Error("expected listener notified when census opened")
	}
}
