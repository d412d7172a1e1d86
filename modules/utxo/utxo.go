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

// Package utxo tracks the UTxO set as a two-tier store: an immutable
// storage.Store holding everything older than the security window,
// and a volatile in-memory deque of per-block diffs for everything
// within it. A rollback pops diffs back to the fork point without
// ever touching the immutable store; a block falling out of the
// window gets merged into it and its diff discarded.
package utxo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/blinklabs-io/gouroboros/cbor"

	"github.com/blinklabs-io/cardano-ledger-core/bus"
	"github.com/blinklabs-io/cardano-ledger-core/ledger"
	"github.com/blinklabs-io/cardano-ledger-core/storage"
)

// ErrConservationViolation is returned by ApplyBlock when a block's
// consumed value does not equal its produced value plus fees.
var ErrConservationViolation = errors.New("utxo: conservation check failed")

// PublishMode controls how much detail an address delta carries on
// the bus: Compact publishes the affected address with the spent and
// created UTxO identifiers, Extended also carries the full before/after
// UTxO values.
type PublishMode uint8

const (
	PublishCompact PublishMode = iota
	PublishExtended
)

// AddressDelta is published to Topic whenever a block changes the
// UTxOs held by an address.
type AddressDelta struct {
	Address ledger.Address
	Spent   []ledger.UTxOIdentifier
	Created []ledger.UTxOIdentifier

	// Populated only in PublishExtended mode.
	SpentValues   map[ledger.UTxOIdentifier]ledger.UTxOValue
	CreatedValues map[ledger.UTxOIdentifier]ledger.UTxOValue
}

// Topic is the bus topic address deltas are published on.
const Topic = "ledger.utxo.address_delta"

// BlockDiff is one block's worth of UTxO set change, held in the
// volatile window.
type BlockDiff struct {
	Height  uint64
	Hash    ledger.BlockHash
	Spent   []ledger.UTxOIdentifier
	Created map[ledger.UTxOIdentifier]ledger.UTxOValue
}

// Module is the UTxO state module.
type Module struct {
	log *slog.Logger
	bus *bus.Bus

	store storage.Store
	k     uint64 // security parameter: how many blocks the volatile window retains
	mode  PublishMode

	mu    sync.RWMutex
	diffs []BlockDiff
}

// New constructs a Module persisting the immutable tier to store and
// retaining k blocks of volatile diffs.
func New(log *slog.Logger, b *bus.Bus, store storage.Store, k uint64, mode PublishMode) *Module {
	if log == nil {
		log = slog.Default()
	}
	return &Module{log: log, bus: b, store: store, k: k, mode: mode}
}

func utxoKey(id ledger.UTxOIdentifier) []byte {
	key := append([]byte(nil), id.TxHash.Bytes()...)
	return append(key, ledger.EncodeVarInt(uint64(id.Index))...)
}

// ApplyBlock applies a block's UTxO-set changes: spent inputs are
// removed from visibility, created outputs become visible. totalIn
// and totalOut (including fees, which are conceptually an output to
// the fee pot) must balance or ApplyBlock refuses the block.
func (m *Module) ApplyBlock(ctx context.Context, height uint64, hash ledger.BlockHash, spent []ledger.UTxOIdentifier, created map[ledger.UTxOIdentifier]ledger.UTxOValue, totalIn, totalOut uint64) error {
	if totalIn != totalOut {
		return fmt.Errorf("%w: in=%d out=%d at height %d", ErrConservationViolation, totalIn, totalOut, height)
	}

	m.mu.Lock()
	// Values of spent inputs must be captured before the new diff is
	// appended: once it is, Get (and any lookup sharing its logic)
	// would see this block's own Spent list first and report every
	// one of these identifiers as not-found, even though they were
	// live an instant ago.
	spentValues := make(map[ledger.UTxOIdentifier]ledger.UTxOValue, len(spent))
	for _, id := range spent {
		val, ok, err := m.lookupLocked(id)
		if err != nil {
			m.mu.Unlock()
			return fmt.Errorf("utxo: looking up spent input %v: %w", id, err)
		}
		if ok {
			spentValues[id] = val
		}
	}
	m.diffs = append(m.diffs, BlockDiff{Height: height, Hash: hash, Spent: spent, Created: created})
	m.prune()
	m.mu.Unlock()

	return m.publishDeltas(ctx, spentValues, created)
}

// prune merges diffs older than the retained window into the
// immutable store and drops them from the volatile deque. Callers
// must hold m.mu.
func (m *Module) prune() {
	if m.k == 0 || uint64(len(m.diffs)) <= m.k {
		return
	}
	excess := uint64(len(m.diffs)) - m.k
	for i := uint64(0); i < excess; i++ {
		diff := m.diffs[i]
		if m.store != nil {
			if err := m.store.Batch(func(b storage.Batch) error {
				for _, id := range diff.Spent {
					if err := b.Delete(utxoKey(id)); err != nil {
						return err
					}
				}
				for id, val := range diff.Created {
					enc, err := cbor.Encode(val)
					if err != nil {
						return err
					}
					if err := b.Set(utxoKey(id), enc); err != nil {
						return err
					}
				}
				return nil
			}); err != nil {
				m.log.Error("utxo: failed to flush pruned diff to store", "height", diff.Height, "error", err)
			}
		}
	}
	m.diffs = m.diffs[excess:]
}

// Rollback discards every volatile diff newer than targetHeight. If
// the rollback point precedes every retained diff, Rollback returns
// *bus.ErrForkTooDeep: this module has no record of what it contained
// before the window opened, so the caller must instead resync the
// UTxO set from the immutable store.
func (m *Module) Rollback(ctx context.Context, targetHeight uint64) error {
	m.mu.Lock()
	if len(m.diffs) == 0 {
		m.mu.Unlock()
		return nil
	}
	if m.diffs[0].Height > targetHeight+1 {
		head := m.diffs[len(m.diffs)-1].Height
		m.mu.Unlock()
		return &bus.ErrForkTooDeep{ForkDepth: head - targetHeight, MaxK: m.k}
	}
	keep := len(m.diffs)
	var undone []BlockDiff
	for keep > 0 && m.diffs[keep-1].Height > targetHeight {
		keep--
		undone = append(undone, m.diffs[keep])
	}
	m.diffs = m.diffs[:keep]

	// Undoing a diff un-creates what it created and un-spends what it
	// spent. The un-created values are already in hand from the diff
	// itself; the un-spent (restored) values must be looked up now,
	// with the diff already popped, so the lookup sees whatever state
	// they held immediately before this diff was applied.
	type undoDelta struct {
		removed  map[ledger.UTxOIdentifier]ledger.UTxOValue
		restored map[ledger.UTxOIdentifier]ledger.UTxOValue
	}
	deltas := make([]undoDelta, len(undone))
	var lookupErr error
	for i, diff := range undone {
		restored := make(map[ledger.UTxOIdentifier]ledger.UTxOValue, len(diff.Spent))
		for _, id := range diff.Spent {
			val, ok, err := m.lookupLocked(id)
			if err != nil {
				lookupErr = fmt.Errorf("utxo: looking up restored output %v: %w", id, err)
				break
			}
			if ok {
				restored[id] = val
			}
		}
		deltas[i] = undoDelta{removed: diff.Created, restored: restored}
	}
	m.mu.Unlock()
	if lookupErr != nil {
		return lookupErr
	}

	for _, d := range deltas {
		if err := m.publishUndoDeltas(ctx, d.removed, d.restored); err != nil {
			return err
		}
	}
	return nil
}

// publishDeltas emits one AddressDelta per address touched by a
// forward block apply. spentValues must already carry the pre-block
// value of every consumed input (see ApplyBlock).
func (m *Module) publishDeltas(ctx context.Context, spentValues map[ledger.UTxOIdentifier]ledger.UTxOValue, created map[ledger.UTxOIdentifier]ledger.UTxOValue) error {
	if m.bus == nil {
		return nil
	}
	byAddr := newAddressDeltaIndex(m.mode)
	for id, val := range spentValues {
		byAddr.addSpent(id, val)
	}
	for id, val := range created {
		byAddr.addCreated(id, val)
	}
	return byAddr.publish(ctx, m.bus)
}

// publishUndoDeltas emits the AddressDelta that reverses a popped
// block's effect: removed is what the block created (now gone),
// restored is what it spent (now visible again).
func (m *Module) publishUndoDeltas(ctx context.Context, removed, restored map[ledger.UTxOIdentifier]ledger.UTxOValue) error {
	if m.bus == nil {
		return nil
	}
	byAddr := newAddressDeltaIndex(m.mode)
	for id, val := range removed {
		byAddr.addSpent(id, val)
	}
	for id, val := range restored {
		byAddr.addCreated(id, val)
	}
	return byAddr.publish(ctx, m.bus)
}

type addressDeltaIndex struct {
	mode  PublishMode
	byKey map[string]*AddressDelta
}

func newAddressDeltaIndex(mode PublishMode) *addressDeltaIndex {
	return &addressDeltaIndex{mode: mode, byKey: make(map[string]*AddressDelta)}
}

func (idx *addressDeltaIndex) entry(addr ledger.Address) *AddressDelta {
	key := addr.String()
	d, ok := idx.byKey[key]
	if !ok {
		d = &AddressDelta{Address: addr}
		if idx.mode == PublishExtended {
			d.SpentValues = make(map[ledger.UTxOIdentifier]ledger.UTxOValue)
			d.CreatedValues = make(map[ledger.UTxOIdentifier]ledger.UTxOValue)
		}
		idx.byKey[key] = d
	}
	return d
}

func (idx *addressDeltaIndex) addSpent(id ledger.UTxOIdentifier, val ledger.UTxOValue) {
	d := idx.entry(val.Address)
	d.Spent = append(d.Spent, id)
	if idx.mode == PublishExtended {
		d.SpentValues[id] = val
	}
}

func (idx *addressDeltaIndex) addCreated(id ledger.UTxOIdentifier, val ledger.UTxOValue) {
	d := idx.entry(val.Address)
	d.Created = append(d.Created, id)
	if idx.mode == PublishExtended {
		d.CreatedValues[id] = val
	}
}

func (idx *addressDeltaIndex) publish(ctx context.Context, b *bus.Bus) error {
	for _, delta := range idx.byKey {
		if err := b.Publish(ctx, Topic, bus.Message{Kind: bus.KindCardano, Action: bus.ActionApply, Payload: *delta}); err != nil {
			return err
		}
	}
	return nil
}

// Get looks up a UTxO, checking the volatile window newest-first
// before falling back to the immutable store.
func (m *Module) Get(id ledger.UTxOIdentifier) (ledger.UTxOValue, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lookupLocked(id)
}

// lookupLocked is Get's logic for a caller that already holds m.mu
// (read or write). It never takes or releases the lock itself.
func (m *Module) lookupLocked(id ledger.UTxOIdentifier) (ledger.UTxOValue, bool, error) {
	for i := len(m.diffs) - 1; i >= 0; i-- {
		diff := m.diffs[i]
		if val, ok := diff.Created[id]; ok {
			return val, true, nil
		}
		for _, spentID := range diff.Spent {
			if spentID == id {
				return ledger.UTxOValue{}, false, nil
			}
		}
	}

	if m.store == nil {
		return ledger.UTxOValue{}, false, nil
	}
	raw, err := m.store.Get(utxoKey(id))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ledger.UTxOValue{}, false, nil
		}
		return ledger.UTxOValue{}, false, err
	}
	var val ledger.UTxOValue
	if _, err := cbor.Decode(raw, &val); err != nil {
		return ledger.UTxOValue{}, false, err
	}
	return val, true, nil
}

// Len returns the number of blocks currently held in the volatile
// window.
func (m *Module) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.diffs)
}

// ByAddress returns every UTxO currently visible for addr within the
// volatile window. It does not consult the immutable store, and no
// address index over the immutable tier exists, so an address query
// only sees recent (volatile) activity.
func (m *Module) ByAddress(addr ledger.Address) map[ledger.UTxOIdentifier]ledger.UTxOValue {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[ledger.UTxOIdentifier]ledger.UTxOValue)
	for _, diff := range m.diffs {
		for _, id := range diff.Spent {
			delete(out, id)
		}
		for id, val := range diff.Created {
			if val.Address.String() == addr.String() {
				out[id] = val
			}
		}
	}
	return out
}
