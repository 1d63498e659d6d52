// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package notify

import (
	"context"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/nadavby/reclaim/internal/logging"
	"github.com/nadavby/reclaim/internal/match"
	"github.com/nadavby/reclaim/internal/metrics"
)

// defaultSendTimeout bounds one notifier delivery attempt.
const defaultSendTimeout = 10 * time.Second

// Notifier delivers match notifications to an external channel.
type Notifier interface {
	// Send delivers one notification.
	Send(ctx context.Context, intent *match.NotificationIntent) error

	// Name returns the notifier name (e.g., "webhook", "log").
	Name() string

	// Enabled returns whether this notifier is enabled.
	Enabled() bool
}

// Dispatcher consumes notification intents off the bus, applies the
// per-user cooldown, and fans surviving intents out to every enabled
// notifier. Each intent is consumed exactly once: malformed payloads and
// delivery failures are logged and counted, never redelivered.
type Dispatcher struct {
	mu          sync.RWMutex
	notifiers   []Notifier
	cooldown    *Cooldown
	sendTimeout time.Duration
}

// NewDispatcher creates a dispatcher gated by the given cooldown. A nil
// cooldown gets the default window.
func NewDispatcher(cooldown *Cooldown) *Dispatcher {
	if cooldown == nil {
		cooldown = NewCooldown(0)
	}
	return &Dispatcher{
		cooldown:    cooldown,
		sendTimeout: defaultSendTimeout,
	}
}

// Register adds a notifier to the fan-out set.
func (d *Dispatcher) Register(n Notifier) {
	if n == nil {
		return
	}

	d.mu.Lock()
	d.notifiers = append(d.notifiers, n)
	d.mu.Unlock()

	logging.Info().
		Str("notifier", n.Name()).
		Msg("Notifier registered")
}

// Handle processes one intent message. It always acks: a malformed
// payload cannot improve on redelivery, and per-notifier failures are
// absorbed so one broken channel does not wedge the queue.
func (d *Dispatcher) Handle(msg *message.Message) error {
	var intent match.NotificationIntent
	if err := json.Unmarshal(msg.Payload, &intent); err != nil {
		logging.Warn().
			Err(err).
			Str("message_uuid", msg.UUID).
			Msg("Dropping unparseable notification intent")
		msg.Ack()
		return nil
	}
	if intent.UserID == "" {
		logging.Warn().
			Str("message_uuid", msg.UUID).
			Str("item_id", intent.ItemID).
			Msg("Dropping notification intent without a recipient")
		msg.Ack()
		return nil
	}

	if !d.cooldown.Allow(intent.UserID) {
		metrics.RecordNotificationSuppressed()
		logging.Debug().
			Str("user_id", intent.UserID).
			Str("item_id", intent.ItemID).
			Str("run_id", intent.RunID).
			Msg("Notification suppressed by cooldown")
		return nil
	}

	d.deliver(&intent)
	return nil
}

// deliver fans one intent out to each enabled notifier in registration
// order. The bus already decouples delivery from match runs, so a slow
// channel only delays later notifications.
func (d *Dispatcher) deliver(intent *match.NotificationIntent) {
	d.mu.RLock()
	targets := make([]Notifier, 0, len(d.notifiers))
	for _, n := range d.notifiers {
		if n.Enabled() {
			targets = append(targets, n)
		}
	}
	d.mu.RUnlock()

	for _, n := range targets {
		ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
		err := n.Send(ctx, intent)
		cancel()

		if err != nil {
			metrics.RecordNotificationFailure(n.Name())
			logging.Error().
				Err(err).
				Str("notifier", n.Name()).
				Str("user_id", intent.UserID).
				Str("item_id", intent.ItemID).
				Msg("Notification delivery failed")
			continue
		}

		metrics.RecordNotificationEmitted(n.Name())
		logging.Debug().
			Str("notifier", n.Name()).
			Str("user_id", intent.UserID).
			Str("item_id", intent.ItemID).
			Int("score", intent.Score).
			Msg("Notification delivered")
	}
}
