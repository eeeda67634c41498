// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package events

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/healthsync/internal/logging"
	intsync "github.com/tomtom215/healthsync/internal/sync"
)

// Subscriber is the subscribe side of the event transport.
// Implemented by Publisher.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
}

// Broadcaster receives bridged events.
// Implemented by internal/websocket.Hub.
type Broadcaster interface {
	BroadcastJSON(messageType string, data interface{})
}

// Bridge forwards sync events from the bus to WebSocket clients.
// It implements suture.Service.
type Bridge struct {
	subscriber Subscriber
	topics     []string
	hub        Broadcaster
}

// NewBridge creates a bridge for topics.
func NewBridge(subscriber Subscriber, hub Broadcaster, topics ...string) *Bridge {
	return &Bridge{
		subscriber: subscriber,
		topics:     topics,
		hub:        hub,
	}
}

// Serve subscribes to every topic and forwards messages until ctx is done.
func (b *Bridge) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	merged := make(chan *message.Message)
	for _, topic := range b.topics {
		messages, err := b.subscriber.Subscribe(ctx, topic)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		go forward(ctx, messages, merged)
	}

	logging.Info().Strs("topics", b.topics).Msg("Event bridge started")
	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Event bridge stopped")
			return ctx.Err()
		case msg := <-merged:
			b.handle(msg)
		}
	}
}

func forward(ctx context.Context, in <-chan *message.Message, out chan<- *message.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				msg.Nack()
				return
			}
		}
	}
}

// handle acks every message; a malformed payload is logged and dropped.
func (b *Bridge) handle(msg *message.Message) {
	defer msg.Ack()

	event, err := Unmarshal(msg.Payload)
	if err != nil {
		logging.Warn().Err(err).Str("message_id", msg.UUID).Msg("Failed to decode sync event")
		return
	}
	b.hub.BroadcastJSON(intsync.MessageTypeSyncCompleted, event)
}

// String returns the service name.
func (b *Bridge) String() string {
	return "event-bridge"
}
