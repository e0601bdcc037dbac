// Package registry is the process-scoped Engine Registry (spec §4.4):
// concrete engines self-register a name -> factory mapping at
// module-import time, generalizing the teacher's closed NewProvider
// switch (internal/service/ai/provider.go) into an open map so adding
// an engine never requires editing this package.
package registry

import (
	"fmt"
	"strings"
	"sync"

	"transhub/internal/engine"
	"transhub/internal/logger"
)

// Factory builds an Engine from a raw config value. Each concrete
// engine owns the shape of its own config and type-asserts it.
type Factory func(config any) (engine.Engine, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register associates name (case-insensitively) with factory. A
// duplicate registration overwrites the previous one with a warning,
// matching spec §4.4's "duplicates overwrite with a warning" rule.
func Register(name string, factory Factory) {
	key := strings.ToLower(name)

	mu.Lock()
	defer mu.Unlock()

	if _, exists := factories[key]; exists {
		logger.Warn("engine registration overwritten", "module", "registry", "action", "register", "resource", "engine", "result", "warn", "name", key)
	}
	factories[key] = factory
}

// New instantiates the engine registered under name. Unknown names
// return an error; the Coordinator surfaces it as ConfigurationError
// from Initialize and as ValidationError from SwitchEngine.
func New(name string, config any) (engine.Engine, error) {
	key := strings.ToLower(name)

	mu.RLock()
	factory, ok := factories[key]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("engine %q is not registered", name)
	}
	return factory(config)
}

// Names returns every currently registered engine name, in no
// particular order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	return names
}
