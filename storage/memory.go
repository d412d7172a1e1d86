// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"bytes"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store backed by a map (Scan sorts keys
// on each call), used by tests and as the store the ledger-core command
// opens when no database is configured.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *MemoryStore) Set(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	m.data[string(key)] = v
	return nil
}

func (m *MemoryStore) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(key))
	return nil
}

func (m *MemoryStore) Scan(prefix []byte, fn func(key, value []byte) bool) error {
	m.mu.RLock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	type kv struct {
		k, v []byte
	}
	snapshot := make([]kv, 0, len(keys))
	for _, k := range keys {
		snapshot = append(snapshot, kv{[]byte(k), m.data[k]})
	}
	m.mu.RUnlock()

	for _, pair := range snapshot {
		if !fn(pair.k, pair.v) {
			break
		}
	}
	return nil
}

type memoryBatch struct {
	store *MemoryStore
	sets  map[string][]byte
	dels  map[string]bool
}

func (b *memoryBatch) Set(key, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)
	b.sets[string(key)] = v
	delete(b.dels, string(key))
	return nil
}

func (b *memoryBatch) Delete(key []byte) error {
	b.dels[string(key)] = true
	delete(b.sets, string(key))
	return nil
}

func (m *MemoryStore) Batch(fn func(b Batch) error) error {
	b := &memoryBatch{store: m, sets: make(map[string][]byte), dels: make(map[string]bool)}
	if err := fn(b); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range b.sets {
		m.data[k] = v
	}
	for k := range b.dels {
		delete(m.data, k)
	}
	return nil
}

func (m *MemoryStore) Close() error { return nil }
