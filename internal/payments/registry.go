package payments

import (
	"fmt"
	"sort"
	"sync"

	"github.com/angelmondragon/hms-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/hms-billing/pkg/errors"
)

// Registry maps each provider to its adapter.
type Registry struct {
	mu       sync.RWMutex
	adapters map[enums.PaymentProvider]Adapter
}

func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{adapters: map[enums.PaymentProvider]Adapter{}}
	for _, a := range adapters {
		if err := r.Register(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds an adapter. Registering the same provider twice is an error.
func (r *Registry) Register(a Adapter) error {
	if a == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "adapter is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p := a.Provider()
	if _, exists := r.adapters[p]; exists {
		return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("adapter for %s already registered", p))
	}
	r.adapters[p] = a
	return nil
}

// Get returns the adapter for p.
func (r *Registry) Get(p enums.PaymentProvider) (Adapter, error) {
	if !p.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown payment provider %q", p))
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[p]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("payment provider %s is not configured", p))
	}
	return a, nil
}

// Providers lists the configured providers in a stable order.
func (r *Registry) Providers() []enums.PaymentProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]enums.PaymentProvider, 0, len(r.adapters))
	for p := range r.adapters {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
