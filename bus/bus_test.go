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

package bus_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/blinklabs-io/cardano-ledger-core/bus"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPublishSubscribeOrdering(t *testing.T) {
	b := bus.New(nil)
	defer b.Close()

	var mu sync.Mutex
	var received []int

	sub := b.Subscribe("topic", func(ctx context.Context, msg bus.Message) error {
		mu.Lock()
		received = append(received, msg.Payload.(int))
		mu.Unlock()
		return nil
	})
	defer sub.Close()

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		require.NoError(t, b.Publish(ctx, "topic", bus.Message{Kind: bus.KindCommand, Payload: i}))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 10
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for i, v := range received {
		require.Equal(t, i, v)
	}
}

func TestSubscriptionClose(t *testing.T) {
	b := bus.New(nil)
	defer b.Close()

	var count int
	var mu sync.Mutex
	sub := b.Subscribe("topic", func(ctx context.Context, msg bus.Message) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})

	ctx := context.Background()
	require.NoError(t, b.Publish(ctx, "topic", bus.Message{}))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	}, time.Second, time.Millisecond)

	sub.Close()
	require.NoError(t, b.Publish(ctx, "topic", bus.Message{}))
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, count)
}

func TestRequestResponse(t *testing.T) {
	b := bus.New(nil)
	defer b.Close()

	b.HandleRequests("echo", func(ctx context.Context, msg bus.Message) (any, error) {
		return msg.Payload, nil
	})

	ctx := context.Background()
	resp, err := b.Request(ctx, "echo", bus.Message{Payload: "hello"})
	require.NoError(t, err)
	require.Equal(t, "hello", resp)
}

func TestRequestNoHandler(t *testing.T) {
	b := bus.New(nil)
	defer b.Close()

	ctx := context.Background()
	_, err := b.Request(ctx, "nope", bus.Message{})
	require.ErrorIs(t, err, bus.ErrNoHandler)
}

func TestPublishAfterClose(t *testing.T) {
	b := bus.New(nil)
	b.Close()

	err := b.Publish(context.Background(), "topic", bus.Message{})
	require.ErrorIs(t, err, bus.ErrClosed)
}
