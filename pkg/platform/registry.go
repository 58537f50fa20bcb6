// Platform registry implementation
package platform

import (
	"sort"
	"sync"

	"github.com/kart-io/sendhub/pkg/errors"
	"github.com/kart-io/sendhub/pkg/logger"
)

// Registry is a name-keyed lookup table of platforms. Adding a platform means
// registering one implementation of the capability set; the dispatch core,
// resolver and identity table stay unchanged.
type Registry struct {
	platforms map[string]Platform
	logger    logger.Logger
	mu        sync.RWMutex
}

// NewRegistry creates a new platform registry
func NewRegistry(log logger.Logger) *Registry {
	if log == nil {
		log = logger.Discard
	}
	return &Registry{
		platforms: make(map[string]Platform),
		logger:    log,
	}
}

// Register adds a platform under its canonical name.
func (r *Registry) Register(p Platform) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if _, exists := r.platforms[name]; exists {
		return errors.Newf(errors.ErrInvalidConfig, "platform %s already registered", name)
	}

	r.platforms[name] = p
	r.logger.Info("Platform registered", "platform", name)
	return nil
}

// Get returns the platform registered under name.
func (r *Registry) Get(name string) (Platform, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.platforms[name]
	if !exists {
		return nil, errors.Newf(errors.ErrPlatformNotRegistered, "platform %s not registered", name).WithPlatform(name)
	}
	return p, nil
}

// Names returns the canonical names of all registered platforms, sorted.
// This doubles as the canonical platform-name registry for identity tables.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.platforms))
	for name := range r.platforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
