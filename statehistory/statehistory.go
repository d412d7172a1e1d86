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

// Package statehistory provides a generic bounded/unbounded history of
// committed states, indexed by block height, with rollback support.
// The accounts, SPO, DRep, parameters, distribution and epoch activity
// modules commit their per-block or per-epoch snapshots through one of
// these (UTxO keeps its own per-block diff list instead)
// so a chain rollback can walk history back to the fork point without
// each module reimplementing the same deque bookkeeping.
package statehistory

import (
	"errors"
	"sync"
)

// ErrEmpty is returned by Current/GetByIndex when no state has been
// committed yet.
var ErrEmpty = errors.New("statehistory: no state committed")

// ErrForkTooDeep is returned by GetRolledBackState when the requested
// rollback point is older than the oldest retained state -- the caller
// must fall back to a full resync from storage.
var ErrForkTooDeep = errors.New("statehistory: rollback point older than retained history")

// Entry pairs a committed state value with the block height it was
// committed at.
type Entry[T any] struct {
	BlockHeight uint64
	State       T
}

// StateHistory is a generic, height-indexed ring of committed state
// snapshots. maxSize == 0 means unbounded (used for epoch-granularity
// state, which is cheap and small); maxSize > 0 bounds the history to
// the last maxSize entries (used for per-block state, bounded by the
// security parameter k).
type StateHistory[T any] struct {
	mu      sync.RWMutex
	entries []Entry[T]
	maxSize int
}

// NewBlockState constructs a StateHistory bounded to maxSize entries,
// intended for per-block state that must be pruned once it falls
// outside the volatile window.
func NewBlockState[T any](maxSize int) *StateHistory[T] {
	return &StateHistory[T]{maxSize: maxSize}
}

// NewEpochState constructs an unbounded StateHistory, intended for
// epoch-granularity state where the total entry count is naturally
// small.
func NewEpochState[T any]() *StateHistory[T] {
	return &StateHistory[T]{maxSize: 0}
}

// Commit appends a new state at blockHeight. Heights must be
// non-decreasing; Commit does not enforce strict monotonicity so that
// a module may re-commit the same height idempotently (e.g. retrying
// after an error).
func (h *StateHistory[T]) Commit(blockHeight uint64, state T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, Entry[T]{BlockHeight: blockHeight, State: state})
	if h.maxSize > 0 && len(h.entries) > h.maxSize {
		drop := len(h.entries) - h.maxSize
		h.entries = h.entries[drop:]
	}
}

// Current returns the most recently committed state.
func (h *StateHistory[T]) Current() (T, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var zero T
	if len(h.entries) == 0 {
		return zero, ErrEmpty
	}
	return h.entries[len(h.entries)-1].State, nil
}

// Len returns the number of retained entries.
func (h *StateHistory[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Bounds reports the oldest and newest block heights currently
// retained. ok is false when no state has been committed yet.
func (h *StateHistory[T]) Bounds() (oldest, newest uint64, ok bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.entries) == 0 {
		return 0, 0, false
	}
	return h.entries[0].BlockHeight, h.entries[len(h.entries)-1].BlockHeight, true
}

// GetByIndex returns the state committed exactly at the given block
// height or epoch, newest first if the same index was committed more
// than once. ErrEmpty is returned when no entry matches.
func (h *StateHistory[T]) GetByIndex(index uint64) (T, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for i := len(h.entries) - 1; i >= 0; i-- {
		if h.entries[i].BlockHeight == index {
			return h.entries[i].State, nil
		}
	}
	var zero T
	return zero, ErrEmpty
}

// At returns the entry at the given offset from the oldest retained
// entry (0 is the oldest), for callers that walk the history.
func (h *StateHistory[T]) At(offset int) (Entry[T], error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if offset < 0 || offset >= len(h.entries) {
		var zero Entry[T]
		return zero, ErrEmpty
	}
	return h.entries[offset], nil
}

// GetRolledBackState discards every committed entry whose block
// height is greater than rollbackHeight and returns the state that
// remains current after the rollback. ErrForkTooDeep is returned when
// rollbackHeight precedes every retained entry -- the caller has no
// choice but to rebuild from the immutable store.
func (h *StateHistory[T]) GetRolledBackState(rollbackHeight uint64) (T, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var zero T

	if len(h.entries) == 0 {
		return zero, ErrEmpty
	}
	if h.entries[0].BlockHeight > rollbackHeight {
		return zero, ErrForkTooDeep
	}

	keep := len(h.entries)
	for keep > 0 && h.entries[keep-1].BlockHeight > rollbackHeight {
		keep--
	}
	h.entries = h.entries[:keep]
	if keep == 0 {
		return zero, ErrEmpty
	}
	return h.entries[keep-1].State, nil
}
