// Package http exposes the ledger as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"riel/internal/cache"
	"riel/internal/core"
	"riel/internal/ledger"
	"riel/internal/log"
)

const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	cacheCleanupEvery = 10 * time.Minute

	totalsCacheSize = 256
	totalsCacheTTL  = time.Minute
)

type Server struct {
	http.Server
	service *ledger.Service
	loc     *time.Location

	rateLimiter *rateLimiter

	// Rollup responses are cached briefly; writes invalidate the
	// affected tenant's namespace plus the cross-tenant one.
	totalsCache *cache.LRUCache[core.Totals]

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

// NewServer configures routes and middleware, returning a
// ready-to-run server.
func NewServer(addr string, service *ledger.Service, loc *time.Location, logger *log.Logger) *Server {
	if loc == nil {
		loc = time.UTC
	}
	mux := http.NewServeMux()

	s := &Server{
		service:          service,
		loc:              loc,
		rateLimiter:      newRateLimiter(),
		totalsCache:      cache.NewLRUCache[core.Totals](totalsCacheSize, totalsCacheTTL),
		stopCacheCleanup: make(chan struct{}),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /api/entries", s.handleCreateEntry)
	mux.HandleFunc("GET /api/entries", s.handleListEntries)
	mux.HandleFunc("GET /api/entries/{id}", s.handleInspectEntry)
	mux.HandleFunc("PATCH /api/entries/{id}", s.handleEditEntry)
	mux.HandleFunc("DELETE /api/entries/most-recent", s.handleDeleteMostRecent)
	mux.HandleFunc("DELETE /api/entries/{id}", s.handleDeleteEntry)
	mux.HandleFunc("DELETE /api/entries", s.handleDeleteRange)

	mux.HandleFunc("GET /api/totals", s.handleTotals)
	mux.HandleFunc("GET /api/trend", s.handleTrend)
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/export", s.handleExport)

	handler := log.RequestMiddleware(logger)(s.withAPIDefaults(mux))

	s.Server = http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	go s.startCacheCleanup()
	return s
}

// withAPIDefaults rate-limits writes and sets the headers every API
// response carries.
func (s *Server) withAPIDefaults(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(cacheCleanupEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.totalsCache.CleanExpired()
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// invalidateTenant drops the tenant's cached rollups along with the
// cross-tenant aggregates that included it.
func (s *Server) invalidateTenant(tenantID string) {
	s.totalsCache.InvalidatePrefix(cache.Key("totals", tenantID))
	s.totalsCache.InvalidatePrefix(cache.Key("totals", scopeAll))
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		close(s.stopCacheCleanup)
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
