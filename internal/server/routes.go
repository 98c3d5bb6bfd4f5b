package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Discovery
	mux.HandleFunc("/api/count", s.app.DiscoveryHandler.CountHandler)       // GET ?city={name}
	mux.HandleFunc("/api/discover", s.app.DiscoveryHandler.DiscoverHandler) // POST

	// API routes - Hydration
	mux.HandleFunc("/api/hydrate", s.app.HydrationHandler.HydrateHandler) // POST

	// API routes - Areas
	mux.HandleFunc("/api/areas", s.app.AreaHandler.ListAreasHandler)     // GET
	mux.HandleFunc("/api/areas/", s.app.AreaHandler.AreaSubrouteHandler) // GET /{slug}/places, DELETE /{slug}

	// API routes - Settings (key/value store, backs API-key resolution)
	mux.HandleFunc("/api/kv", s.app.KVHandler.KVRootHandler)  // GET list, POST create
	mux.HandleFunc("/api/kv/", s.app.KVHandler.KVItemHandler) // GET, PUT, DELETE by key

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}
