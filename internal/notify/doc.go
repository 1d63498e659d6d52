// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

/*
Package notify delivers match notifications produced by the orchestrator.

Intents travel over an in-process Watermill channel (Bus) to a Dispatcher,
which gates them through a per-user Cooldown and fans survivors out to
registered Notifier channels. The bus keeps delivery off the scoring path:
a slow or failing channel delays later notifications, never a match run.

# Pipeline

	orchestrator -> Bus.PublishAll -> Router -> Dispatcher
	                                                |-> cooldown gate
	                                                |-> LogNotifier
	                                                `-> WebhookNotifier

The cooldown admits one notification per user per window (default 5s).
Suppressed intents are dropped, not queued; an unresolved match surfaces
again on the next reconciliation run.

# Delivery Guarantees

Every intent is consumed exactly once. Malformed payloads are acked and
logged. Notifier failures are counted per channel and absorbed, so a
broken webhook cannot wedge the queue or starve the log sink.

# Usage

	bus := notify.NewBus(notify.DefaultBusConfig(), nil)
	dispatcher := notify.NewDispatcher(notify.NewCooldown(cfg.CooldownWindow))
	dispatcher.Register(notify.NewLogNotifier())
	dispatcher.Register(notify.NewWebhookNotifier(cfg.Webhook))

	router, err := notify.NewRouter(notify.DefaultRouterConfig(), bus, dispatcher, nil)
	if err != nil {
		return err
	}
	go router.Run(ctx)
	<-router.Running()

	bus.PublishAll(result.Intents)
*/
package notify
