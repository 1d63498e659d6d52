// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/nadavby/reclaim/internal/analyzer"
	"github.com/nadavby/reclaim/internal/cache"
	"github.com/nadavby/reclaim/internal/config"
	"github.com/nadavby/reclaim/internal/history"
	"github.com/nadavby/reclaim/internal/logging"
	"github.com/nadavby/reclaim/internal/match"
	"github.com/nadavby/reclaim/internal/notify"
	"github.com/nadavby/reclaim/internal/provider"
	"github.com/nadavby/reclaim/internal/server"
	"github.com/nadavby/reclaim/internal/store"
	"github.com/nadavby/reclaim/internal/supervisor"
	"github.com/nadavby/reclaim/internal/supervisor/services"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("Starting Reclaim matching engine with supervisor tree")
	logging.Info().
		Str("listen_addr", cfg.Server.ListenAddr).
		Str("store_backend", cfg.Store.Backend).
		Str("history_backend", cfg.History.Backend).
		Int("match_threshold", cfg.Matching.MatchThreshold).
		Int("notify_threshold", cfg.Matching.NotifyThreshold).
		Msg("Configuration loaded")

	itemStore, err := store.Open(cfg.Store)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open item store")
	}
	defer func() {
		if err := itemStore.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing item store")
		}
	}()

	histStore, err := history.Open(cfg.History)
	if err != nil {
		if closeErr := itemStore.Close(); closeErr != nil {
			logging.Error().Err(closeErr).Msg("Error closing item store")
		}
		logging.Fatal().Err(err).Msg("Failed to open run history store")
	}
	defer func() {
		if err := histStore.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing run history store")
		}
	}()

	rules := analyzer.DefaultRuleSet()
	if cfg.Rules.Path != "" {
		rules, err = analyzer.LoadRuleSet(cfg.Rules.Path)
		if err != nil {
			logging.Fatal().Err(err).Str("path", cfg.Rules.Path).Msg("Failed to load rule set")
		}
		logging.Info().Str("path", cfg.Rules.Path).Msg("Rule set loaded")
	}

	sigCache := cache.New(cfg.Cache.SignatureTTL)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	visual, text, eval := initProviders(ctx, cfg, rules, sigCache)

	orch := match.NewOrchestrator(&cfg.Matching, visual, text, eval, itemStore)
	recorder := history.NewRecorder(histStore, cfg.History.Buffer)
	orch.SetRecorder(recorder)

	// Notification pipeline: match runs publish intents to the bus, the
	// router drains them through the cooldown gate into the notifiers.
	bus := notify.NewBus(notify.DefaultBusConfig(), nil)
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing intent bus")
		}
	}()

	cooldown := notify.NewCooldown(cfg.Notify.CooldownWindow)
	dispatcher := notify.NewDispatcher(cooldown)
	dispatcher.Register(notify.NewLogNotifier())
	if cfg.Notify.Webhook.Enabled {
		dispatcher.Register(notify.NewWebhookNotifier(cfg.Notify.Webhook))
		logging.Info().Str("url", logging.RedactURL(cfg.Notify.Webhook.URL)).Msg("Webhook notifier enabled")
	}

	router, err := notify.NewRouter(notify.DefaultRouterConfig(), bus, dispatcher, nil)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create notification router")
	}

	handler := server.NewHandler(itemStore, histStore, orch, bus, cooldown, sigCache)
	srv := server.NewServer(cfg.Server, handler)

	// Create structured logger for supervisor using our slog adapter
	slogLogger := logging.NewSlogLogger()

	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// === ADD SERVICES TO SUPERVISOR TREE ===

	tree.AddDataService(services.NewHistoryRecorderService(recorder))
	tree.AddDataService(services.NewHistoryPrunerService(
		history.NewPruner(histStore, cfg.History.Retention, cfg.History.PruneInterval)))
	tree.AddDataService(services.NewCacheJanitorService(sigCache, cfg.Cache.CleanupInterval))

	tree.AddNotifyService(services.NewIntentRouterService(router))
	tree.AddNotifyService(services.NewCooldownSweeperService(cooldown, cfg.Notify.SweepInterval))

	tree.AddAPIService(services.NewHTTPServerService(srv.HTTPServer(), cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", cfg.Server.ListenAddr).Msg("HTTP server service added")

	if cfg.Matching.ReconcileInterval > 0 {
		reconciler := match.NewReconciler(orch, itemStore, bus, cfg.Matching.ReconcileInterval)
		tree.AddMatchingService(services.NewReconcilerService(reconciler))
		logging.Info().
			Dur("interval", cfg.Matching.ReconcileInterval).
			Msg("Reconciler added to supervisor tree")
	} else {
		logging.Info().Msg("Reconciliation disabled (RECLAIM_MATCHING_RECONCILE_INTERVAL=0)")
	}

	// === START SUPERVISOR TREE ===

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// Wait for supervisor to finish (either from signal or error)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Matching engine stopped gracefully")
}

// initProviders builds the scoring channels from provider configuration.
// Providers are optional at every level: a misconfigured or disabled
// provider downgrades its channel instead of failing startup, and the
// evaluator without a text backend scores with the deterministic rubric.
func initProviders(ctx context.Context, cfg *config.Config, rules *analyzer.RuleSet, sigCache *cache.SignatureCache) (*analyzer.VisualAnalyzer, *analyzer.TextAnalyzer, *match.Evaluator) {
	var vision provider.VisionProvider
	if cfg.Providers.Vision.Enabled {
		client, err := provider.NewVisionClient(&cfg.Providers.Vision)
		if err != nil {
			logging.Warn().Err(err).Msg("Vision provider unavailable, visual channel degraded")
		} else {
			vision = provider.NewVisionBreaker(client, provider.DefaultBreakerConfig())
			logging.Info().Str("url", logging.RedactURL(cfg.Providers.Vision.URL)).Msg("Vision provider enabled")
		}
	} else {
		logging.Info().Msg("Vision provider disabled (RECLAIM_PROVIDERS_VISION_ENABLED=false)")
	}

	var text provider.TextProvider
	switch {
	case cfg.Providers.Gemini.Enabled:
		p, err := provider.NewGeminiProvider(ctx, &cfg.Providers.Gemini)
		if err != nil {
			logging.Warn().Err(err).Msg("Gemini provider unavailable, runs will use the fallback rubric")
		} else {
			text = provider.NewTextBreaker(p, provider.DefaultBreakerConfig())
			logging.Info().Str("model", cfg.Providers.Gemini.Model).Msg("Gemini evaluator enabled")
		}
	case cfg.Providers.OpenAI.Enabled:
		p, err := provider.NewOpenAIProvider(&cfg.Providers.OpenAI)
		if err != nil {
			logging.Warn().Err(err).Msg("OpenAI provider unavailable, runs will use the fallback rubric")
		} else {
			text = provider.NewTextBreaker(p, provider.DefaultBreakerConfig())
			logging.Info().Str("model", cfg.Providers.OpenAI.Model).Msg("OpenAI evaluator enabled")
		}
	default:
		logging.Info().Msg("No text provider enabled, runs will use the fallback rubric")
	}

	visual := analyzer.NewVisualAnalyzer(vision, sigCache, rules)
	textAnalyzer := analyzer.NewTextAnalyzer(text)
	eval := match.NewEvaluator(text, rules, cfg.Weights)
	return visual, textAnalyzer, eval
}
