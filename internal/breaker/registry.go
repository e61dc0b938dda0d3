package breaker

import (
	"sort"
	"sync"
)

// Registry owns one breaker per named dependency. It is constructed in
// main and handed to whoever needs it; there is no package-level
// instance.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	cfg      Config
	onChange func(name string, from, to State)
}

func NewRegistry(cfg Config) *Registry {
	return &Registry{
		breakers: make(map[string]*Breaker),
		cfg:      cfg.withDefaults(),
	}
}

// OnStateChange registers a listener applied to every breaker created
// afterwards. Wire it before serving traffic.
func (r *Registry) OnStateChange(fn func(name string, from, to State)) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// GetOrCreate returns the breaker for name, creating it on first use.
func (r *Registry) GetOrCreate(name string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Double-check after acquiring the write lock.
	if b, ok := r.breakers[name]; ok {
		return b
	}
	b = New(name, r.cfg)
	b.onStateChange = r.onChange
	r.breakers[name] = b
	return b
}

// ResetAll forces every registered breaker closed and returns the names
// reset, sorted for stable output.
func (r *Registry) ResetAll() []string {
	r.mu.RLock()
	breakers := make([]*Breaker, 0, len(r.breakers))
	names := make([]string, 0, len(r.breakers))
	for name, b := range r.breakers {
		breakers = append(breakers, b)
		names = append(names, name)
	}
	r.mu.RUnlock()

	for _, b := range breakers {
		b.Reset()
	}
	sort.Strings(names)
	return names
}

// StatusAll snapshots every registered breaker.
func (r *Registry) StatusAll() map[string]Status {
	r.mu.RLock()
	breakers := make(map[string]*Breaker, len(r.breakers))
	for name, b := range r.breakers {
		breakers[name] = b
	}
	r.mu.RUnlock()

	out := make(map[string]Status, len(breakers))
	for name, b := range breakers {
		out[name] = b.Status()
	}
	return out
}
