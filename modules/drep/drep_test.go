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

package drep_test

import (
	"testing"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/cardano-ledger-core/bus"
	"github.com/blinklabs-io/cardano-ledger-core/ledger"
	"github.com/blinklabs-io/cardano-ledger-core/modules/drep"
)

func drepCred(b byte) ledger.DRepCredential {
	buf := make([]byte, 28)
	buf[0] = b
	return ledger.DRepCredential{Kind: ledger.DRepKeyHash, Hash: lcommon.NewBlake2b224(buf)}
}

func txHash(b byte) ledger.TxHash {
	buf := make([]byte, 32)
	buf[0] = b
	return lcommon.NewBlake2b256(buf)
}

func TestRegisterAndDeregister(t *testing.T) {
	m := drep.New(nil, 10)
	cred := drepCred(1)
	m.Register(cred, 500)

	deposit, err := m.Deregister(cred)
	require.NoError(t, err)
	require.Equal(t, uint64(500), deposit)

	_, err = m.Deregister(cred)
	require.ErrorIs(t, err, drep.ErrUnknownDRep)
}

func TestMarkActiveRequiresRegistration(t *testing.T) {
	m := drep.New(nil, 10)
	err := m.MarkActive(drepCred(2), 10)
	require.ErrorIs(t, err, drep.ErrUnknownDRep)
}

// TestActionRatification exercises scenario C-like governance flow:
// submit an action, vote, and ratify once yes-stake clears threshold.
func TestActionRatification(t *testing.T) {
	m := drep.New(nil, 10)
	id := drep.ActionID{TxHash: txHash(1), Index: 0}
	m.SubmitAction(id, drep.ActionParameterChange, 300)

	require.NoError(t, m.CastVote(id, "drep-a", drep.VoteYes))
	require.NoError(t, m.CastVote(id, "drep-b", drep.VoteNo))

	threshold, err := ledger.NewRational(3, 5)
	require.NoError(t, err)

	ok, err := m.Ratify(id, 60, 100, threshold)
	require.NoError(t, err)
	require.True(t, ok)

	action, found := m.Get(id)
	require.True(t, found)
	require.True(t, action.Ratified)
	require.Equal(t, drep.VoteYes, action.Votes["drep-a"])
}

func TestRatifyBelowThresholdFails(t *testing.T) {
	m := drep.New(nil, 10)
	id := drep.ActionID{TxHash: txHash(2), Index: 0}
	m.SubmitAction(id, drep.ActionInfo, 300)

	threshold, err := ledger.NewRational(3, 5)
	require.NoError(t, err)

	ok, err := m.Ratify(id, 10, 100, threshold)
	require.NoError(t, err)
	require.False(t, ok)

	action, _ := m.Get(id)
	require.False(t, action.Ratified)
}

func TestRatifyUnknownActionFails(t *testing.T) {
	m := drep.New(nil, 10)
	threshold, _ := ledger.NewRational(1, 2)
	_, err := m.Ratify(drep.ActionID{TxHash: txHash(9)}, 1, 2, threshold)
	require.ErrorIs(t, err, drep.ErrUnknownAction)
}

func TestRollbackRestoresDRepAndActionState(t *testing.T) {
	m := drep.New(nil, 10)
	cred := drepCred(3)
	m.Register(cred, 100)
	m.Commit(1)

	id := drep.ActionID{TxHash: txHash(3), Index: 0}
	m.SubmitAction(id, drep.ActionInfo, 50)
	require.NoError(t, m.CastVote(id, "drep-c", drep.VoteYes))
	m.Commit(2)

	_, found := m.Get(id)
	require.True(t, found)

	require.NoError(t, m.Rollback(1))
	_, found = m.Get(id)
	require.False(t, found)

	_, err := m.Deregister(cred)
	require.NoError(t, err, "DRep registration must survive the rollback to index 1")
}

func TestRollbackForkTooDeep(t *testing.T) {
	m := drep.New(nil, 10)
	m.Commit(5)
	err := m.Rollback(1)
	var forkErr *bus.ErrForkTooDeep
	require.ErrorAs(t, err, &forkErr)
	require.Equal(t, uint64(4), forkErr.ForkDepth)
	require.Equal(t, uint64(10), forkErr.MaxK)
}
