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

package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/cardano-ledger-core/ledger"
)

func TestSlotToEpoch(t *testing.T) {
	cases := []struct {
		slot  uint64
		epoch uint64
	}{
		{0, 207},
		{21_600, 207},
		{4_492_799, 207},
		{4_492_800, 208},
		{4_924_800, 209},
		{98_272_003, 425},
	}
	for _, c := range cases {
		require.Equal(t, c.epoch, ledger.SlotToEpoch(c.slot), "slot %d", c.slot)
	}
}

func TestEraForSlot(t *testing.T) {
	require.Equal(t, ledger.EraByron, ledger.EraForSlot(0))
	require.Equal(t, ledger.EraByron, ledger.EraForSlot(4_492_799))
	require.Equal(t, ledger.EraShelley, ledger.EraForSlot(4_492_800))
}

func TestIsFirstSlotOfEpoch(t *testing.T) {
	require.False(t, ledger.IsFirstSlotOfEpoch(4_492_799, 207))
	require.True(t, ledger.IsFirstSlotOfEpoch(4_492_800, 207))
	require.False(t, ledger.IsFirstSlotOfEpoch(4_924_799, 208))
	require.True(t, ledger.IsFirstSlotOfEpoch(4_924_800, 208))
}
