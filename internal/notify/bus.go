// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package notify

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/nadavby/reclaim/internal/match"
)

// IntentTopic returns the in-process topic carrying notification intents
// from the match pipeline to the dispatcher.
func IntentTopic() string {
	return "match.intents"
}

// BusConfig controls the in-process channel.
type BusConfig struct {
	// Buffer is the per-subscriber channel depth. Publishes block once a
	// subscriber falls this far behind (default: 64).
	Buffer int64
}

// DefaultBusConfig returns production bus settings.
func DefaultBusConfig() BusConfig {
	return BusConfig{Buffer: 64}
}

// Bus is the in-process pub/sub fabric for notification intents. It wraps
// a Watermill gochannel so match runs and notification delivery stay
// decoupled without an external broker: a slow webhook delays later
// notifications, never a scoring run.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger watermill.LoggerAdapter
}

// NewBus creates the intent bus. A nil logger falls back to the Watermill
// standard logger.
func NewBus(cfg BusConfig, logger watermill.LoggerAdapter) *Bus {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultBusConfig().Buffer
	}

	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: cfg.Buffer,
		}, logger),
		logger: logger,
	}
}

// PublishIntent serializes one intent onto the bus. Metadata carries the
// routing attributes so middleware can inspect them without decoding the
// payload.
func (b *Bus) PublishIntent(intent match.NotificationIntent) error {
	payload, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("marshal notification intent: %w", err)
	}

	msg := message.NewMessage(uuid.New().String(), payload)
	msg.Metadata.Set("user_id", intent.UserID)
	msg.Metadata.Set("item_id", intent.ItemID)
	msg.Metadata.Set("run_id", intent.RunID)

	if err := b.pubsub.Publish(IntentTopic(), msg); err != nil {
		return fmt.Errorf("publish notification intent: %w", err)
	}
	return nil
}

// PublishAll publishes every intent from a match run, stopping at the
// first failure.
func (b *Bus) PublishAll(intents []match.NotificationIntent) error {
	for _, intent := range intents {
		if err := b.PublishIntent(intent); err != nil {
			return err
		}
	}
	return nil
}

// Subscriber exposes the underlying subscriber for router wiring.
func (b *Bus) Subscriber() message.Subscriber {
	return b.pubsub
}

// Close shuts the channel down. Unconsumed intents are dropped; a missed
// notification resurfaces on the next reconciliation run.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}
