package core

import (
	"fmt"
	"sync"
)

var (
	registry   = make(map[EntityType]EntityDefinition)
	registryMu sync.RWMutex
)

// Register adds an entity definition to the registry.
// Panics if the entity is already registered or the definition is incomplete.
func Register(def EntityDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Info.Type]; exists {
		panic(fmt.Sprintf("entity already registered: %s", def.Info.Type))
	}
	if def.Build == nil || def.Row == nil || len(def.Columns) == 0 {
		panic(fmt.Sprintf("entity %s: Build, Row and Columns are required", def.Info.Type))
	}
	if def.Info.ConflictKey != "" && def.Key == nil {
		panic(fmt.Sprintf("entity %s: Key is required with a conflict key", def.Info.Type))
	}

	registry[def.Info.Type] = def
}

// Get returns an entity definition by type.
// Returns false if not found.
func Get(entity EntityType) (EntityDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[entity]
	return def, ok
}

// All returns all registered definitions in load order.
func All() []EntityDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]EntityDefinition, 0, len(registry))
	for _, entity := range LoadOrder {
		if def, ok := registry[entity]; ok {
			result = append(result, def)
		}
	}
	return result
}
