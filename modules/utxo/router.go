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

package utxo

import (
	"context"

	busm "github.com/blinklabs-io/cardano-ledger-core/bus"
	"github.com/blinklabs-io/cardano-ledger-core/ledger"
	"github.com/blinklabs-io/cardano-ledger-core/query"
)

// ByIDRequest asks for a single UTxO by identifier.
type ByIDRequest struct {
	ID ledger.UTxOIdentifier
}

// ByAddressRequest asks for every UTxO currently held by an address.
type ByAddressRequest struct {
	Address ledger.Address
}

// RegisterRouter wires this module's query responders onto the bus
// under query.TopicUTxOByID and query.TopicUTxOByAddress.
func (m *Module) RegisterRouter() {
	if m.bus == nil {
		return
	}
	m.bus.HandleRequests(query.TopicUTxOByID, m.handleByID)
	m.bus.HandleRequests(query.TopicUTxOByAddress, m.handleByAddress)
}

func (m *Module) handleByAddress(ctx context.Context, msg busm.Message) (any, error) {
	req, ok := msg.Payload.(ByAddressRequest)
	if !ok {
		return nil, query.InvalidRequest("expected utxo.ByAddressRequest payload")
	}
	return m.ByAddress(req.Address), nil
}

func (m *Module) handleByID(ctx context.Context, msg busm.Message) (any, error) {
	req, ok := msg.Payload.(ByIDRequest)
	if !ok {
		return nil, query.InvalidRequest("expected utxo.ByIDRequest payload")
	}
	val, found, err := m.Get(req.ID)
	if err != nil {
		return nil, query.Internal("utxo lookup failed", err)
	}
	if !found {
		return nil, query.NotFound(req.ID.String())
	}
	return val, nil
}
