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

// Package bus implements the typed publish/subscribe message bus that
// every ledger module and query router is wired to. Messages on a
// given topic are dispatched to that topic's subscribers serially and
// in publish order, so a module never sees a later block delivered
// before an earlier one, nor a rollback race past a still-in-flight
// forward apply.
package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrForkTooDeep is returned by a module's Rollback when the requested
// rollback point precedes the oldest state that module retains -- the
// chain has forked further back than the module can unwind, and the
// caller must resync from genesis or a snapshot rather than unwind in
// place.
type ErrForkTooDeep struct {
	// ForkDepth is how many blocks back of the current head the
	// rollback target sits.
	ForkDepth uint64
	// MaxK is the security parameter the rejecting module is
	// configured with.
	MaxK uint64
}

func (e *ErrForkTooDeep) Error() string {
	return fmt.Sprintf("bus: fork too deep: depth %d, max k %d", e.ForkDepth, e.MaxK)
}

// ErrClosed is returned by Publish/Request once the bus has been shut
// down.
var ErrClosed = errors.New("bus: closed")

// ErrNoHandler is returned by Request when no responder is registered
// for a topic.
var ErrNoHandler = errors.New("bus: no handler registered for topic")

// MessageKind distinguishes the four message shapes the bus carries.
type MessageKind uint8

const (
	// KindCardano carries a ledger-affecting message: a block apply or
	// a chain rollback, always stamped with the BlockInfo it concerns.
	KindCardano MessageKind = iota
	// KindStateQuery carries a read-only query/response pair.
	KindStateQuery
	// KindCommand carries an imperative instruction (e.g. a CLI admin
	// command) routed to a single handler.
	KindCommand
	// KindClock carries a periodic tick, used by modules that need to
	// act on wall-clock time rather than block arrival (e.g. flushing
	// metrics).
	KindClock
)

// Action distinguishes a forward block apply from a rollback within a
// KindCardano message.
type Action uint8

const (
	ActionApply Action = iota
	ActionRollback
)

// Message is the envelope carried on every topic.
type Message struct {
	Kind    MessageKind
	Topic   string
	Action  Action
	Payload any
}

// Handler processes a single message delivered on a subscription.
type Handler func(ctx context.Context, msg Message) error

// RequestHandler answers a Request call for a topic.
type RequestHandler func(ctx context.Context, msg Message) (any, error)

// Subscription is a handle returned by Subscribe; Close stops further
// delivery to this subscriber. The topic's dispatch goroutine keeps
// running until the Bus is closed.
type Subscription struct {
	bus   *Bus
	topic string
	id    uint64
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s.topic, s.id)
}

type subscriber struct {
	id      uint64
	handler Handler
}

type topicState struct {
	mu           sync.Mutex
	subs         []subscriber
	queue        chan Message
	ctx          context.Context
	cancel       context.CancelFunc
	lastActivity uint64 // not read or written; RollbackAwarePublisher keeps its own per-topic heights
	everSent     bool
}

// Bus is a process-local, in-memory typed message bus. Each topic gets
// its own serial dispatch goroutine so slow subscribers on one topic
// never block delivery on another.
type Bus struct {
	log *slog.Logger

	mu       sync.Mutex
	topics   map[string]*topicState
	handlers map[string]RequestHandler
	nextID   uint64
	closed   bool
}

// New constructs a Bus. A nil logger falls back to slog.Default().
func New(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{
		log:      log,
		topics:   make(map[string]*topicState),
		handlers: make(map[string]RequestHandler),
	}
}

func (b *Bus) topicFor(topic string) *topicState {
	b.mu.Lock()
	defer b.mu.Unlock()
	ts, ok := b.topics[topic]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		ts = &topicState{
			queue:  make(chan Message, 256),
			ctx:    ctx,
			cancel: cancel,
		}
		b.topics[topic] = ts
		go b.dispatchLoop(topic, ts)
	}
	return ts
}

func (b *Bus) dispatchLoop(topic string, ts *topicState) {
	for {
		select {
		case <-ts.ctx.Done():
			return
		case msg := <-ts.queue:
			ts.mu.Lock()
			subs := make([]subscriber, len(ts.subs))
			copy(subs, ts.subs)
			ts.mu.Unlock()
			for _, sub := range subs {
				if err := sub.handler(ts.ctx, msg); err != nil {
					b.log.Error("bus: subscriber returned error",
						"topic", topic, "error", err)
				}
			}
		}
	}
}

// Subscribe registers handler for every message published on topic.
// Delivery to all of a topic's subscribers happens in publish order,
// one message fully dispatched before the next is handled.
func (b *Bus) Subscribe(topic string, handler Handler) *Subscription {
	ts := b.topicFor(topic)
	ts.mu.Lock()
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.mu.Unlock()
	ts.subs = append(ts.subs, subscriber{id: id, handler: handler})
	ts.mu.Unlock()
	return &Subscription{bus: b, topic: topic, id: id}
}

func (b *Bus) unsubscribe(topic string, id uint64) {
	b.mu.Lock()
	ts, ok := b.topics[topic]
	b.mu.Unlock()
	if !ok {
		return
	}
	ts.mu.Lock()
	filtered := ts.subs[:0]
	for _, sub := range ts.subs {
		if sub.id != id {
			filtered = append(filtered, sub)
		}
	}
	ts.subs = filtered
	ts.mu.Unlock()
}

// Publish enqueues msg for delivery to topic's subscribers. Publish
// never blocks on subscriber execution; it only blocks if the topic's
// internal queue is full.
func (b *Bus) Publish(ctx context.Context, topic string, msg Message) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.mu.Unlock()

	msg.Topic = topic
	ts := b.topicFor(topic)
	select {
	case ts.queue <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandleRequests registers handler as the sole responder for topic's
// Request calls. Registering a second handler for the same topic
// replaces the first.
func (b *Bus) HandleRequests(topic string, handler RequestHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = handler
}

// Request performs a synchronous request/response round trip against
// whatever handler is registered for topic, bounded by ctx's deadline.
func (b *Bus) Request(ctx context.Context, topic string, msg Message) (any, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	handler, ok := b.handlers[topic]
	b.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoHandler, topic)
	}
	msg.Topic = topic
	type result struct {
		val any
		err error
	}
	ch := make(chan result, 1)
	go func() {
		val, err := handler(ctx, msg)
		ch <- result{val, err}
	}()
	select {
	case r := <-ch:
		return r.val, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close shuts down every topic's dispatch goroutine. Close does not
// wait for in-flight messages to finish dispatching.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ts := range b.topics {
		ts.cancel()
	}
}
