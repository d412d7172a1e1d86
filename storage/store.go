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

// Package storage provides the immutable key/value backing store that
// sits underneath each ledger module's volatile diff window. Keys are
// module-namespaced byte strings (typically a CIP-19 varint-framed
// identifier); values are whatever each module chooses to encode.
package storage

import "errors"

// ErrNotFound is returned by Get when a key does not exist.
var ErrNotFound = errors.New("storage: key not found")

// ErrDisabled names a disabled store. Neither MemoryStore nor
// BadgerStore returns it.
var ErrDisabled = errors.New("storage: store is disabled")

// Store is the minimal persistent KV surface every ledger module
// needs: point lookups, point writes, prefix scans for bulk load at
// startup, and batched writes so a block's worth of changes commits
// atomically.
type Store interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	// Scan calls fn for every key with the given prefix, in
	// lexicographic key order. Iteration stops early if fn returns
	// false.
	Scan(prefix []byte, fn func(key, value []byte) bool) error
	// Batch applies a set of writes atomically.
	Batch(fn func(b Batch) error) error
	Close() error
}

// Batch accumulates writes to be applied atomically by Store.Batch.
type Batch interface {
	Set(key, value []byte) error
	Delete(key []byte) error
}
