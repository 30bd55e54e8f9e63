package replica

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/zoobzio/sentinel"
)

var (
	registry   = make(map[reflect.Type]*hostPlan)
	registryMu sync.RWMutex
)

// Register scans T with sentinel and caches its field plan. Host structs are
// planned lazily on first clone, so calling Register is optional; it surfaces
// invalid clone tags early.
func Register[T any]() error {
	typ := reflect.TypeFor[T]()
	if typ.Kind() != reflect.Struct {
		return fmt.Errorf("register %s: not a struct: %w", typ, ErrMisuse)
	}
	meta := sentinel.Scan[T]()

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, ok := registry[typ]; ok {
		return nil
	}
	plan, err := buildHostPlan(typ, meta)
	if err != nil {
		return err
	}
	registry[typ] = plan
	return nil
}

// planFor returns the cached plan for a struct type, building it on a miss.
func planFor(typ reflect.Type) (*hostPlan, error) {
	// Fast path: read-lock cache check
	registryMu.RLock()
	if cached, ok := registry[typ]; ok {
		registryMu.RUnlock()
		return cached, nil
	}
	registryMu.RUnlock()

	// Slow path: build and cache with write-lock
	registryMu.Lock()
	defer registryMu.Unlock()

	// Double-check pattern
	if cached, ok := registry[typ]; ok {
		return cached, nil
	}

	meta := scanHostType(typ)
	if meta == nil {
		return nil, fmt.Errorf("plan %s: not a struct: %w", typ, ErrUnsupported)
	}
	plan, err := buildHostPlan(typ, *meta)
	if err != nil {
		return nil, err
	}
	registry[typ] = plan
	return plan, nil
}

// Reset clears the host plan registry.
// This is primarily useful for test isolation.
func Reset() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[reflect.Type]*hostPlan)
}
