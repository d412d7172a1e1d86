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

package bus

import (
	"context"
	"sync"
)

// RollbackAwarePublisher wraps a Bus and suppresses rollback messages
// for topics that never observed the block being rolled back. A
// module that subscribes only to, say, SPDD updates has no work to do
// when a rollback unwinds a block that never touched stake
// distribution; sending it a rollback it cannot act on would force
// every module to duplicate the "did I ever see this block" check
// rollback-aware publishing centralizes once, here.
type RollbackAwarePublisher struct {
	bus *Bus

	mu          sync.Mutex
	lastApplied map[string]uint64 // topic -> highest block height ever applied
}

// NewRollbackAwarePublisher wraps bus.
func NewRollbackAwarePublisher(bus *Bus) *RollbackAwarePublisher {
	return &RollbackAwarePublisher{
		bus:         bus,
		lastApplied: make(map[string]uint64),
	}
}

// PublishApply publishes a forward block-apply message on topic and
// records that topic has now observed blockHeight.
func (p *RollbackAwarePublisher) PublishApply(ctx context.Context, topic string, blockHeight uint64, payload any) error {
	p.mu.Lock()
	if prev, ok := p.lastApplied[topic]; !ok || blockHeight > prev {
		p.lastApplied[topic] = blockHeight
	}
	p.mu.Unlock()

	return p.bus.Publish(ctx, topic, Message{
		Kind:    KindCardano,
		Action:  ActionApply,
		Payload: payload,
	})
}

// PublishRollback publishes a rollback message on topic only if that
// topic's last-applied height is strictly greater than rollbackHeight
// -- i.e. only if this topic's subscribers have actually seen a block
// that the rollback is unwinding. A forwarded rollback lowers the
// topic's recorded height to rollbackHeight, so a later rollback is
// judged against the unwound watermark; a suppressed rollback leaves
// the recorded height unchanged.
func (p *RollbackAwarePublisher) PublishRollback(ctx context.Context, topic string, rollbackHeight uint64, payload any) (sent bool, err error) {
	p.mu.Lock()
	prev, ok := p.lastApplied[topic]
	shouldSend := ok && prev > rollbackHeight
	if shouldSend {
		p.lastApplied[topic] = rollbackHeight
	}
	p.mu.Unlock()

	if !shouldSend {
		return false, nil
	}

	err = p.bus.Publish(ctx, topic, Message{
		Kind:    KindCardano,
		Action:  ActionRollback,
		Payload: payload,
	})
	return err == nil, err
}
