// control/store.go
// Author: momentics <momentics@gmail.com>
//
// Thread-safe configuration store with dynamic update and reload propagation.

package control

import (
	"maps"
	"sync"
)

// ConfigStore is a dynamic key/value map with snapshot reads and reload
// listeners. Validators run before a change is committed.
type ConfigStore struct {
	mu         sync.RWMutex
	config     map[string]any
	validators []func(changed map[string]any) error
	listeners  []func()
}

// NewConfigStore initializes a new config store with empty data.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{
		config: make(map[string]any),
	}
}

// GetSnapshot returns a copy of all config values.
func (cs *ConfigStore) GetSnapshot() map[string]any {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return maps.Clone(cs.config)
}

// Get reads one key.
func (cs *ConfigStore) Get(key string) (any, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	v, ok := cs.config[key]
	return v, ok
}

// Validate registers a check run against every incoming change set.
func (cs *ConfigStore) Validate(fn func(changed map[string]any) error) {
	cs.mu.Lock()
	cs.validators = append(cs.validators, fn)
	cs.mu.Unlock()
}

// SetConfig merges newCfg after every validator accepts it, then notifies
// listeners synchronously outside the lock.
func (cs *ConfigStore) SetConfig(newCfg map[string]any) error {
	cs.mu.Lock()
	for _, check := range cs.validators {
		if err := check(newCfg); err != nil {
			cs.mu.Unlock()
			return err
		}
	}
	maps.Copy(cs.config, newCfg)
	listeners := append([]func(){}, cs.listeners...)
	cs.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
	return nil
}

// OnReload registers a listener hook called on config changes.
func (cs *ConfigStore) OnReload(fn func()) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners = append(cs.listeners, fn)
}
