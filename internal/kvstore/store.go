// Package kvstore is an in-process set of named key/value maps. It backs the
// ReplicatedMap connector and can serve as the external catalog's store when
// no durable metastore is configured.
package kvstore

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Entry is one key/value pair of a Map.
type Entry struct {
	Key   any
	Value any
}

// Store holds named maps.
type Store struct {
	mu   sync.RWMutex
	maps map[string]*Map
}

// New creates an empty Store.
func New() *Store {
	return &Store{maps: make(map[string]*Map)}
}

// Map returns the map called name, creating it on first use.
func (s *Store) Map(name string) *Map {
	s.mu.RLock()
	if m, ok := s.maps[name]; ok {
		s.mu.RUnlock()
		return m
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.maps[name]; ok {
		return m
	}
	m := newMap(name)
	s.maps[name] = m
	return m
}

// Lookup returns the map called name without creating it.
func (s *Store) Lookup(name string) (*Map, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.maps[name]
	return m, ok
}

// Names lists the maps created so far.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.maps))
	for n := range s.maps {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Map is a concurrent map keeping insertion order. Keys must be
// comparable.
type Map struct {
	name string

	mu     sync.RWMutex
	keys   []any
	values map[any]any
}

func newMap(name string) *Map {
	return &Map{name: name, values: make(map[any]any)}
}

// Name returns the map's name.
func (m *Map) Name() string { return m.name }

// CheckKey reports whether key can be stored in a Map.
func CheckKey(key any) error {
	if key == nil {
		return fmt.Errorf("map key must not be nil")
	}
	if !reflect.TypeOf(key).Comparable() {
		return fmt.Errorf("map key of type %T is not comparable", key)
	}
	return nil
}

// Get returns the value stored under key.
func (m *Map) Get(key any) (any, bool) {
	if CheckKey(key) != nil {
		return nil, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

// Put stores value under key, replacing any previous value.
func (m *Map) Put(key, value any) error {
	if err := CheckKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
	return nil
}

// PutIfAbsent stores value unless key is present. It returns the previous
// value and true when key was present, in which case nothing changes.
func (m *Map) PutIfAbsent(key, value any) (any, bool, error) {
	if err := CheckKey(key); err != nil {
		return nil, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.values[key]; ok {
		return prev, true, nil
	}
	m.keys = append(m.keys, key)
	m.values[key] = value
	return nil, false, nil
}

// Remove deletes key and returns the value it held.
func (m *Map) Remove(key any) (any, bool) {
	if CheckKey(key) != nil {
		return nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.values[key]
	if !ok {
		return nil, false
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
	return prev, true
}

// Len returns the number of entries.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.keys)
}

// Entries returns a snapshot of the map in insertion order.
func (m *Map) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, len(m.keys))
	for i, k := range m.keys {
		out[i] = Entry{Key: k, Value: m.values[k]}
	}
	return out
}

// Clear removes every entry.
func (m *Map) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = nil
	m.values = make(map[any]any)
}
