// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

/*
Package supervisor provides process supervision for the matching engine
using suture v4.

It implements a hierarchical supervisor tree that owns every long-running
piece of the engine, with Erlang/OTP-style automatic restart, failure
isolation, and graceful shutdown.

# Overview

The tree organizes services into four layers:

	RootSupervisor ("reclaim")
	├── DataSupervisor ("data-layer")
	│   ├── HistoryRecorderService
	│   ├── HistoryPrunerService
	│   └── CacheJanitorService
	├── NotifySupervisor ("notify-layer")
	│   ├── IntentRouterService
	│   └── CooldownSweeperService
	├── APISupervisor ("api-layer")
	│   └── HTTPServerService
	└── MatchingSupervisor ("matching-layer")
	    └── ReconcilerService (when reconciliation is enabled)

The layering encodes what must not take down what. A reconciler stuck in
a provider failure backs off inside the matching layer while the API
keeps serving; a crashed intent router queues intents in the bus buffer
without touching match runs; history writes keep draining regardless of
both.

# Restart Behavior

Crashed services restart with exponential backoff governed by
TreeConfig's failure threshold, decay, and backoff values, which default
to suture's own. Each layer counts failures independently, so a restart
storm in one layer never trips the others into backoff.

# Shutdown

Canceling the Serve context stops the tree. Each service gets the
configured shutdown timeout to stop cleanly; UnstoppedServiceReport
names the ones that did not, which is the first thing to check when a
shutdown hangs.

# Usage

	slogger := logging.NewSlogLogger()
	tree, err := supervisor.NewSupervisorTree(slogger, supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}

	tree.AddDataService(services.NewHistoryRecorderService(recorder))
	tree.AddNotifyService(services.NewIntentRouterService(router))
	tree.AddAPIService(services.NewHTTPServerService(srv.HTTPServer(), cfg.Server.ShutdownTimeout))

	return tree.Serve(ctx)

The slog logger comes from the logging package's zerolog bridge, so
supervision events land in the same stream as everything else.
*/
package supervisor
