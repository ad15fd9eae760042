// Copyright (c) 2025, the replica-search contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package api assembles the HTTP surface: a chi router with the teacher's
// middleware stack (request ID, access logging, panic recovery, CORS) in
// front of the single public search route.
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/getlantern/replica-search/internal/api/handlers"
	apimiddleware "github.com/getlantern/replica-search/internal/api/middleware"
	"github.com/getlantern/replica-search/internal/query"
)

// Dependencies holds everything the router needs to construct handlers.
type Dependencies struct {
	Engine             *query.Engine
	CORSAllowedOrigins []string
}

// NewRouter builds the application's chi.Mux.
func NewRouter(deps *Dependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(apimiddleware.HTTPLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	allowedOrigins := deps.CORSAllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET"},
		AllowCredentials: false,
	}).Handler)

	searchHandler := handlers.NewSearchHandler(deps.Engine)
	r.Get("/", searchHandler.ServeHTTP)

	return r
}
