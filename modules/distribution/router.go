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

package distribution

import (
	"context"

	busm "github.com/blinklabs-io/cardano-ledger-core/bus"
	"github.com/blinklabs-io/cardano-ledger-core/query"
)

// GetSPDDRequest asks for the SPDD snapshot as of a specific epoch (0
// means latest).
type GetSPDDRequest struct {
	Epoch uint64
}

// GetDRDDRequest asks for the DRDD snapshot as of a specific epoch (0
// means latest).
type GetDRDDRequest struct {
	Epoch uint64
}

// RegisterRouters wires both distribution query responders onto the
// bus under query.TopicSPDD and query.TopicDRDD.
func (m *Module) RegisterRouters() {
	if m.bus == nil {
		return
	}
	m.bus.HandleRequests(query.TopicSPDD, m.handleSPDDQuery)
	m.bus.HandleRequests(query.TopicDRDD, m.handleDRDDQuery)
}

func (m *Module) handleSPDDQuery(ctx context.Context, msg busm.Message) (any, error) {
	req, ok := msg.Payload.(GetSPDDRequest)
	if !ok {
		return nil, query.InvalidRequest("expected distribution.GetSPDDRequest payload")
	}
	if req.Epoch == 0 {
		snap, err := m.CurrentSPDD()
		if err != nil {
			return nil, query.NotFound("no SPDD snapshot recorded yet")
		}
		return snap, nil
	}
	snap, err := m.spdd.GetByIndex(req.Epoch)
	if err != nil {
		return nil, query.NotFound("no SPDD snapshot recorded for that epoch")
	}
	return snap, nil
}

func (m *Module) handleDRDDQuery(ctx context.Context, msg busm.Message) (any, error) {
	req, ok := msg.Payload.(GetDRDDRequest)
	if !ok {
		return nil, query.InvalidRequest("expected distribution.GetDRDDRequest payload")
	}
	if req.Epoch == 0 {
		snap, err := m.CurrentDRDD()
		if err != nil {
			return nil, query.NotFound("no DRDD snapshot recorded yet")
		}
		return snap, nil
	}
	snap, err := m.drdd.GetByIndex(req.Epoch)
	if err != nil {
		return nil, query.NotFound("no DRDD snapshot recorded for that epoch")
	}
	return snap, nil
}
