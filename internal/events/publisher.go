// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/healthsync/internal/config"
	"github.com/tomtom215/healthsync/internal/metrics"
	intsync "github.com/tomtom215/healthsync/internal/sync"
)

// ErrClosed is returned by operations on a closed Publisher.
var ErrClosed = errors.New("publisher is closed")

// Transport names.
const (
	TransportGoChannel = "gochannel"
	TransportNATS      = "nats"
)

// Publisher publishes sync events through Watermill. Without a NATS URL it
// uses an in-process GoChannel, which is also the subscriber side.
type Publisher struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	prefix     string
	transport  string
	logger     watermill.LoggerAdapter

	mu     sync.RWMutex
	closed bool
}

// NewPublisher creates a publisher for cfg.
func NewPublisher(cfg *config.EventsConfig, logger watermill.LoggerAdapter) (*Publisher, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	if cfg.NATSURL == "" {
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)
		return &Publisher{
			publisher:  ch,
			subscriber: ch,
			prefix:     cfg.TopicPrefix,
			transport:  TransportGoChannel,
			logger:     logger,
		}, nil
	}

	natsOpts := natsOptions(logger)
	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.NATSURL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.NATSURL,
		SubscribersCount: 1,
		AckWaitTimeout:   30 * time.Second,
		CloseTimeout:     10 * time.Second,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}

	return &Publisher{
		publisher:  pub,
		subscriber: sub,
		prefix:     cfg.TopicPrefix,
		transport:  TransportNATS,
		logger:     logger,
	}, nil
}

func natsOptions(logger watermill.LoggerAdapter) []natsgo.Option {
	return []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}
}

// Transport reports which transport backs the publisher.
func (p *Publisher) Transport() string {
	return p.transport
}

// Topics returns every topic the publisher writes to.
func (p *Publisher) Topics() []string {
	return []string{
		Topic(p.prefix, TypeSyncCompleted),
		Topic(p.prefix, TypeSyncFailed),
	}
}

// PublishRunCompleted publishes the outcome of a finished run.
func (p *Publisher) PublishRunCompleted(ctx context.Context, report *intsync.RunReport) error {
	event := NewSyncEvent(report)
	data, err := Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage(event.EventID, data)
	msg.SetContext(ctx)
	msg.Metadata.Set("event_type", event.Type)
	msg.Metadata.Set("run_id", event.RunID)
	msg.Metadata.Set("trigger", event.Trigger)

	topic := event.Topic(p.prefix)
	err = p.Publish(topic, msg)
	metrics.RecordEventPublished(topic, err)
	if err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Publish sends msg to topic.
func (p *Publisher) Publish(topic string, msg *message.Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	return p.publisher.Publish(topic, msg)
}

// Subscribe returns a channel of messages for topic. The channel is closed
// when ctx is canceled or the publisher is closed.
func (p *Publisher) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrClosed
	}
	return p.subscriber.Subscribe(ctx, topic)
}

// Close shuts down the transport. It is idempotent.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	err := p.publisher.Close()
	if p.transport == TransportNATS {
		err = errors.Join(err, p.subscriber.Close())
	}
	return err
}
