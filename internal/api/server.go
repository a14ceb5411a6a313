// Package api serves the read endpoints for tenders and pledges, the
// citizen action intake, and the token-guarded admin surface.
package api

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/civicwatch/watchboard/internal/ingest"
	"github.com/civicwatch/watchboard/internal/store"
	"github.com/civicwatch/watchboard/internal/tender"
)

// Server holds the handler dependencies and the assembled router.
type Server struct {
	store      store.Store
	runner     *ingest.Runner
	rules      *tender.ScopeRules
	adminToken string
	actorSalt  string
	router     chi.Router
}

// NewServer assembles the router. runner may be nil when the admin ingest
// surface is not wanted (it then answers 503).
func NewServer(st store.Store, runner *ingest.Runner, rules *tender.ScopeRules, adminToken, actorSalt string) *Server {
	s := &Server{
		store:      st,
		runner:     runner,
		rules:      rules,
		adminToken: adminToken,
		actorSalt:  actorSalt,
	}
	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/bids", s.handleListBids)
		r.Get("/bids/{bidNo}", s.handleGetBid)
		r.Get("/pledges", s.handleListPledges)
		r.Get("/pledges/{id}", s.handleGetPledge)
		r.Post("/pledges/{id}/actions", s.handlePostAction)
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Post("/ingest", s.handleAdminIngest)
			r.Post("/enrich", s.handleAdminEnrich)
			r.Post("/bids", s.handleAdminBids)
			r.Get("/ingests", s.handleAdminIngests)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	respondOK(w, envelope{"status": "ok"})
}

// requireAdmin checks the bearer token with a constant-time compare. An
// unconfigured token disables the admin surface entirely.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adminToken == "" {
			respondError(w, http.StatusUnauthorized, "admin surface disabled")
			return
		}
		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.adminToken)) != 1 {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// actorHash pseudonymizes a request's origin for the once-per-day action
// constraint. Salted so raw addresses never reach storage.
func (s *Server) actorHash(r *http.Request) string {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	sum := sha256.Sum256([]byte(s.actorSalt + "::" + ip + "::" + r.UserAgent()))
	return hex.EncodeToString(sum[:])
}
