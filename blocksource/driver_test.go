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

package blocksource_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/cardano-ledger-core/blocksource"
	"github.com/blinklabs-io/cardano-ledger-core/bus"
	"github.com/blinklabs-io/cardano-ledger-core/ledger"
)

const testAddr = "addr_test1qz2fxv2umyhttkxyxp8x0dlpdt3k6cwng5pxj3jhsydzer3jcu5d8ps7zex2k2xt3uqxgjqnnj83ws8lhrn648jjxtwq2ytjqp"

// collect subscribes to the block topic and returns a snapshot
// function over every message delivered so far.
func collect(t *testing.T, b *bus.Bus) func() []bus.Message {
	t.Helper()
	var mu sync.Mutex
	var seen []bus.Message
	sub := b.Subscribe(blocksource.CardanoTopic, func(ctx context.Context, msg bus.Message) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, msg)
		return nil
	})
	t.Cleanup(sub.Close)
	return func() []bus.Message {
		mu.Lock()
		defer mu.Unlock()
		out := make([]bus.Message, len(seen))
		copy(out, seen)
		return out
	}
}

func runScenario(t *testing.T, yamlText string) []bus.Message {
	t.Helper()
	scenario, err := blocksource.NewFromReader(strings.NewReader(yamlText))
	require.NoError(t, err)

	b := bus.New(nil)
	t.Cleanup(b.Close)
	snapshot := collect(t, b)

	driver := blocksource.NewDriver(bus.NewRollbackAwarePublisher(b))
	require.NoError(t, driver.Run(context.Background(), scenario))

	var want int
	for _, ev := range scenario.Events {
		if ev.Apply != nil {
			want++
		}
	}
	require.Eventually(t, func() bool { return len(snapshot()) >= want }, 2*time.Second, time.Millisecond)
	// Give a trailing rollback (which may or may not be forwarded) a
	// moment to drain through the topic queue.
	time.Sleep(20 * time.Millisecond)
	return snapshot()
}

// TestCrossEraBoundary plays the last Byron block and the first
// Shelley block: the driver must stamp them with epochs 207 and 208,
// the matching eras, and flag the Shelley block as opening its epoch.
func TestCrossEraBoundary(t *testing.T) {
	hashA := strings.Repeat("01", 32)
	hashB := strings.Repeat("02", 32)
	msgs := runScenario(t, `
name: cross-era
events:
  - apply:
      slot: 4492799
      blockNumber: 100
      hash: `+hashA+`
  - apply:
      slot: 4492800
      blockNumber: 101
      hash: `+hashB+`
`)
	require.Len(t, msgs, 2)

	first := msgs[0].Payload.(blocksource.BlockPayload).Info
	require.Equal(t, uint64(207), first.Epoch)
	require.Equal(t, ledger.EraByron, first.Era)
	require.False(t, first.NewEpoch)

	second := msgs[1].Payload.(blocksource.BlockPayload).Info
	require.Equal(t, uint64(208), second.Epoch)
	require.Equal(t, ledger.EraShelley, second.Era)
	require.True(t, second.NewEpoch)
}

// TestBodyDecoding checks the YAML body shapes reach subscribers as
// fully typed certificates and UTxO effects.
func TestBodyDecoding(t *testing.T) {
	hash := strings.Repeat("03", 32)
	tx := strings.Repeat("04", 32)
	cred := strings.Repeat("05", 28)
	pool := strings.Repeat("06", 28)
	msgs := runScenario(t, `
name: body-decode
events:
  - apply:
      slot: 4492800
      blockNumber: 1
      hash: `+hash+`
      body:
        totalIn: 100
        totalOut: 100
        created:
          - txHash: `+tx+`
            index: 0
            address: `+testAddr+`
            lovelace: 100
        stakeRegistrations:
          - credential: `+cred+`
            deposit: 2000000
        delegations:
          - credential: `+cred+`
            pool: `+pool+`
        voteDelegations:
          - credential: `+cred+`
            drep: abstain
`)
	require.Len(t, msgs, 1)

	payload := msgs[0].Payload.(blocksource.BlockPayload)
	require.NotNil(t, payload.Body)
	body := payload.Body

	require.Equal(t, uint64(100), body.TotalIn)
	require.Len(t, body.Created, 1)
	for id, val := range body.Created {
		require.Equal(t, uint16(0), id.Index)
		require.Equal(t, uint64(100), val.Lovelace)
		require.Equal(t, testAddr, val.Address.String())
	}

	require.Len(t, body.StakeRegistrations, 1)
	require.Equal(t, uint64(2_000_000), body.StakeRegistrations[0].Deposit)
	require.Len(t, body.Delegations, 1)
	require.Len(t, body.VoteDelegations, 1)
	require.Equal(t, ledger.DRepAbstain, body.VoteDelegations[0].DRep.Kind)
}

// TestRollbackForwardedOnlyAfterApply plays a rollback naming a block
// below the applied tip (forwarded) and then one naming the same point
// again (suppressed, nothing newer was applied in between).
func TestRollbackForwardedOnlyAfterApply(t *testing.T) {
	hashA := strings.Repeat("0a", 32)
	hashB := strings.Repeat("0b", 32)
	msgs := runScenario(t, `
name: rollback-forwarding
events:
  - apply:
      slot: 4492800
      blockNumber: 10
      hash: `+hashA+`
  - apply:
      slot: 4492801
      blockNumber: 11
      hash: `+hashB+`
  - rollback:
      slot: 4492800
      blockNumber: 10
      hash: `+hashA+`
  - rollback:
      slot: 4492800
      blockNumber: 10
      hash: `+hashA+`
`)
	var applies, rollbacks int
	for _, msg := range msgs {
		switch msg.Action {
		case bus.ActionApply:
			applies++
		case bus.ActionRollback:
			rollbacks++
			info := msg.Payload.(blocksource.RollbackPayload).Info
			require.Equal(t, uint64(10), info.Number)
		}
	}
	require.Equal(t, 2, applies)
	require.Equal(t, 1, rollbacks)
}

// TestRollbackBeforeAnyApplyIsSuppressed plays a scenario that opens
// with a rollback: no subscriber ever saw a block, so nothing may be
// forwarded.
func TestRollbackBeforeAnyApplyIsSuppressed(t *testing.T) {
	hash := strings.Repeat("0c", 32)
	msgs := runScenario(t, `
name: orphan-rollback
events:
  - rollback:
      slot: 4492800
      blockNumber: 10
      hash: `+hash+`
`)
	require.Empty(t, msgs)
}

// TestUnknownFieldRejected guards the strict scenario decoding: a
// typo'd key must fail the load, not silently no-op.
func TestUnknownFieldRejected(t *testing.T) {
	_, err := blocksource.NewFromReader(strings.NewReader(`
name: typo
events:
  - aply:
      slot: 1
`))
	require.Error(t, err)
}
