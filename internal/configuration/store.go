// Package configuration implements the station's keyed configuration
// store: name -> {value, readonly, visible, reboot}. See spec.md §4.2.
package configuration

import (
	"fmt"
	"sort"
	"sync"
)

// Key is one configuration entry.
type Key struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Readonly bool   `json:"readonly"`
	Visible  bool   `json:"visible"`
	Reboot   bool   `json:"reboot"`
}

// Store is the keyed mapping of configuration name -> Key. Safe for
// concurrent use; callers needing atomic read-modify-write sequences
// across stations still go through the owning Station's mutex.
type Store struct {
	mu   sync.RWMutex
	keys map[string]Key
}

// NewStore creates an empty configuration store.
func NewStore() *Store {
	return &Store{keys: make(map[string]Key)}
}

// Add inserts a key. If overwrite is false and the key already exists,
// Add is a no-op and returns false.
func (s *Store) Add(k Key, overwrite bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.keys[k.Key]; exists && !overwrite {
		return false
	}
	s.keys[k.Key] = k
	return true
}

// Get returns the key by name.
func (s *Store) Get(name string) (Key, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.keys[name]
	return k, ok
}

// SetValue updates a key's value. Returns an error if the key does not
// exist or is readonly. Returns whether a reboot is required as a
// signal to the caller (spec §4.2: "a reboot=true key signals the
// caller that the station must be reset after mutation").
func (s *Store) SetValue(name, value string) (rebootRequired bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.keys[name]
	if !ok {
		return false, fmt.Errorf("configuration: unknown key %q", name)
	}
	if k.Readonly {
		return false, fmt.Errorf("configuration: key %q is readonly", name)
	}
	k.Value = value
	s.keys[name] = k
	return k.Reboot, nil
}

// Delete removes a key.
func (s *Store) Delete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, name)
}

// GetConfiguration returns the visible keys, optionally filtered to the
// requested names (OCPP GetConfiguration semantics). It also reports any
// requested names that are unknown.
func (s *Store) GetConfiguration(names []string) (found []Key, unknown []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(names) == 0 {
		for _, k := range s.keys {
			if k.Visible {
				found = append(found, k)
			}
		}
		sort.Slice(found, func(i, j int) bool { return found[i].Key < found[j].Key })
		return found, nil
	}

	for _, name := range names {
		k, ok := s.keys[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		if k.Visible {
			found = append(found, k)
		}
	}
	return found, unknown
}

// All returns every key regardless of visibility — used for
// configuration-file persistence (spec §4.2, §6 configuration file).
func (s *Store) All() []Key {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]Key, 0, len(s.keys))
	for _, k := range s.keys {
		all = append(all, k)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Key < all[j].Key })
	return all
}

// LoadAll replaces the store's contents wholesale — used when restoring
// from a persisted configuration file.
func (s *Store) LoadAll(keys []Key) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.keys = make(map[string]Key, len(keys))
	for _, k := range keys {
		s.keys[k.Key] = k
	}
}
