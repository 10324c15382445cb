package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"duitku/internal/civiltime"
	"duitku/internal/locks"
	applog "duitku/internal/log"
	"duitku/internal/metrics"
	"duitku/internal/services"
)

type Server struct {
	http.Server
	ledger      *services.LedgerService
	taxonomy    *services.TaxonomyService
	locks       *locks.Service
	metrics     *metrics.Service
	clock       *civiltime.Clock
	rateLimiter *rateLimiter

	// summaryCache keys by year-month. Mutations purge it wholesale since a
	// backdated write shifts month-over-month figures for later months too.
	summaryCache *lruCache[metrics.MonthlySummary]

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, ledger *services.LedgerService, taxonomy *services.TaxonomyService, lockSvc *locks.Service, metricsSvc *metrics.Service, clock *civiltime.Clock) *Server {
	mux := http.NewServeMux()

	s := &Server{
		ledger:       ledger,
		taxonomy:     taxonomy,
		locks:        lockSvc,
		metrics:      metricsSvc,
		clock:        clock,
		rateLimiter:  newRateLimiter(),
		summaryCache: newLRUCache[metrics.MonthlySummary](100, 5*time.Minute),
	}
	s.Server = http.Server{
		Addr:    addr,
		Handler: applog.Middleware(s.preflight(mux)),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)
	mux.HandleFunc("GET /api/health", handleHealth)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("PATCH /api/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("GET /api/income", s.handleListIncome)
	mux.HandleFunc("POST /api/income", s.handleCreateIncome)
	mux.HandleFunc("GET /api/income/{id}", s.handleGetIncome)
	mux.HandleFunc("PATCH /api/income/{id}", s.handleUpdateIncome)
	mux.HandleFunc("DELETE /api/income/{id}", s.handleDeleteIncome)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("PATCH /api/categories/{id}", s.handleUpdateCategory)

	mux.HandleFunc("GET /api/sources", s.handleListSources)
	mux.HandleFunc("POST /api/sources", s.handleCreateSource)
	mux.HandleFunc("PATCH /api/sources/{id}", s.handleUpdateSource)

	mux.HandleFunc("GET /api/locks", s.handleListLocks)
	mux.HandleFunc("GET /api/locks/{month}", s.handleGetLock)
	mux.HandleFunc("POST /api/locks/{month}/unlock", s.handleUnlockMonth)
	mux.HandleFunc("POST /api/locks/{month}/relock", s.handleRelockMonth)
	mux.HandleFunc("POST /api/locks/reconcile", s.handleReconcile)
	mux.HandleFunc("GET /api/audit", s.handleAuditTrail)

	mux.HandleFunc("GET /api/metrics/summary", s.handleSummary)
	mux.HandleFunc("GET /api/metrics/trend", s.handleTrend)
	mux.HandleFunc("GET /api/metrics/breakdown", s.handleBreakdown)

	return s
}

// preflight runs before every request: rate limiting on writes, the daily
// reconciliation check, and response headers common to all endpoints.
func (s *Server) preflight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(r.Context(), "rate limit exceeded",
				"client_ip", clientIP,
				"method", r.Method,
				"url", r.URL.Path,
			)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		// Lazily catch up month locks; failures here must never block the
		// request itself.
		if err := s.locks.CheckDaily(r.Context()); err != nil {
			slog.ErrorContext(r.Context(), "daily reconciliation failed", "error", err)
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		next.ServeHTTP(w, r)
	})
}

// Shutdown stops the HTTP server and background cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
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

// rateLimiter is a small per-IP sliding counter, 60 writes per minute.
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]
	if !exists {
		rl.clients[clientIP] = &clientInfo{lastRequest: now, requests: 1}
		return true
	}

	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	client.requests++
	client.lastRequest = now
	return client.requests <= 60
}
