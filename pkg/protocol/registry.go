// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package protocol

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory builds a fresh implementation. Implementations carry request
// flags, so every session gets its own instance.
type Factory func() Implementation

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes an implementation available under name (case-insensitive).
// Registering the same name twice replaces the earlier factory.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(name)] = factory
}

// Lookup builds the implementation registered under name
func Lookup(name string) (Implementation, error) {
	registryMu.RLock()
	factory, ok := registry[strings.ToLower(name)]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown protocol %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return factory(), nil
}

// Names returns every registered protocol name, sorted
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
