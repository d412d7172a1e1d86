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

// Package ledger holds the era-agnostic domain types shared by every
// state module: block identity, transaction/UTxO identifiers, stake
// credentials, protocol parameters and rational numbers. These are
// the typed records a block decoder is assumed to produce; this
// package never parses CBOR itself.
package ledger

import "fmt"

// Era identifies the Cardano ledger era a block belongs to.
type Era uint8

const (
	EraByron Era = iota
	EraShelley
	EraAllegra
	EraMary
	EraAlonzo
	EraBabbage
	EraConway
)

func (e Era) String() string {
	switch e {
	case EraByron:
		return "Byron"
	case EraShelley:
		return "Shelley"
	case EraAllegra:
		return "Allegra"
	case EraMary:
		return "Mary"
	case EraAlonzo:
		return "Alonzo"
	case EraBabbage:
		return "Babbage"
	case EraConway:
		return "Conway"
	default:
		return fmt.Sprintf("Era(%d)", uint8(e))
	}
}

// BlockStatus distinguishes blocks that may still be rolled back from
// ones that are finalized.
type BlockStatus uint8

const (
	StatusVolatile BlockStatus = iota
	StatusImmutable
)

func (s BlockStatus) String() string {
	if s == StatusImmutable {
		return "Immutable"
	}
	return "Volatile"
}

// BlockHash is the 32-byte hash identifying a block.
type BlockHash [32]byte

func (h BlockHash) String() string {
	return fmt.Sprintf("%x", h[:])
}

// BlockInfo identifies a block within the chain. It is attached to
// every message a state module publishes or consumes.
type BlockInfo struct {
	Slot     uint64
	Number   uint64
	Hash     BlockHash
	Epoch    uint64
	NewEpoch bool
	Era      Era
	Status   BlockStatus
}

const (
	byronSlotsPerEpoch   = 21_600
	shelleyStartSlot     = 4_492_800
	shelleyStartEpoch    = 208
	shelleySlotsPerEpoch = 432_000
)

// SlotToEpoch derives the epoch number from a slot, handling the
// Byron/Shelley era transition. Every Byron-era slot maps to epoch
// 207 (the epoch Byron occupied for the whole of its 208-epoch
// lifetime on mainnet); from the first Shelley slot onward, epochs
// advance every 432,000 slots.
func SlotToEpoch(slot uint64) uint64 {
	if slot < shelleyStartSlot {
		return shelleyStartEpoch - 1
	}
	return shelleyStartEpoch + (slot-shelleyStartSlot)/shelleySlotsPerEpoch
}

// EraForSlot returns the era a slot belongs to, given only the
// Byron/Shelley boundary (later era boundaries are supplied by the
// decoder via the block's own era tag; this helper exists for
// synthetic block sources that only know the slot).
func EraForSlot(slot uint64) Era {
	if slot < shelleyStartSlot {
		return EraByron
	}
	return EraShelley
}

// IsFirstSlotOfEpoch reports whether slot is the first slot of its
// epoch, given the epoch of the immediately preceding slot. Callers
// that only have a single slot in isolation should instead track
// NewEpoch explicitly on BlockInfo, since epoch 207 spans many slots
// despite SlotToEpoch returning a constant for all of them.
func IsFirstSlotOfEpoch(slot uint64, prevEpoch uint64) bool {
	return SlotToEpoch(slot) != prevEpoch
}
