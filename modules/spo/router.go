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

package spo

import (
	"context"

	busm "github.com/blinklabs-io/cardano-ledger-core/bus"
	"github.com/blinklabs-io/cardano-ledger-core/ledger"
	"github.com/blinklabs-io/cardano-ledger-core/query"
)

// GetPoolInfoRequest asks for a single pool's current registration.
type GetPoolInfoRequest struct {
	Pool ledger.PoolID
}

// GetPoolsListRequest asks for every currently-active pool.
type GetPoolsListRequest struct{}

// RegisterRouter wires this module's query responder onto the bus
// under query.TopicPoolState.
func (m *Module) RegisterRouter() {
	if m.bus == nil {
		return
	}
	m.bus.HandleRequests(query.TopicPoolState, m.handleQuery)
}

func (m *Module) handleQuery(ctx context.Context, msg busm.Message) (any, error) {
	switch req := msg.Payload.(type) {
	case GetPoolInfoRequest:
		reg, ok := m.Get(req.Pool)
		if !ok {
			return nil, query.NotFound(req.Pool.String())
		}
		return reg, nil
	case GetPoolsListRequest:
		return m.All(), nil
	default:
		return nil, query.InvalidRequest("expected spo.GetPoolInfoRequest or GetPoolsListRequest payload")
	}
}
