// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nadavby/reclaim/internal/config"
)

// Server assembles the HTTP API around a Handler.
type Server struct {
	cfg        config.ServerConfig
	handler    *Handler
	httpServer *http.Server
}

// NewServer builds the router and the underlying http.Server. The server
// is not started; the supervisor owns its lifecycle.
func NewServer(cfg config.ServerConfig, handler *Handler) *Server {
	s := &Server{cfg: cfg, handler: handler}
	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// HTTPServer exposes the underlying server for lifecycle wrapping.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Routes exposes the assembled handler, mainly for tests.
func (s *Server) Routes() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		MaxAge:         86400,
	}))

	// Probes sit outside the rate limit so an aggressive client cannot
	// starve the orchestrator's health checks.
	r.Get("/healthz", s.handler.HealthLive)
	r.Get("/readyz", s.handler.HealthReady)

	r.Route("/api/v1", func(r chi.Router) {
		if s.cfg.RateLimitRequests > 0 {
			r.Use(httprate.LimitByIP(s.cfg.RateLimitRequests, s.cfg.RateLimitWindow))
		}
		r.Use(securityHeaders)
		r.Use(recordMetrics)

		r.Get("/stats", s.handler.Stats)

		r.Route("/items", func(r chi.Router) {
			r.Get("/", s.handler.ItemList)
			r.Post("/", s.handler.ItemCreate)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handler.ItemGet)
				r.Put("/", s.handler.ItemUpdate)
				r.Delete("/", s.handler.ItemDelete)
				r.Post("/resolve", s.handler.ItemResolve)
				r.Post("/matches", s.handler.ItemMatches)
			})
		})

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.handler.RunsList)
			r.Get("/{id}", s.handler.RunGet)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
