// Package httpapi binds the store, matching engine, auth service, and rate
// limiter to an HTTP surface: gorilla/mux for routing, validator/v10 for
// request-body validation, and apperr's Kind taxonomy for status-code
// mapping (spec.md §4.5/§6/§7). It holds no state of its own beyond those
// four collaborators.
package httpapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"ledger-exchange/auth"
	"ledger-exchange/matching"
	"ledger-exchange/ratelimit"
	"ledger-exchange/store"
)

// Server holds the collaborators every handler needs.
type Server struct {
	store     store.Store
	engine    *matching.Engine
	auth      *auth.Service
	limiter   *ratelimit.Limiter
	validate  *validator.Validate
	tokenPath string
}

// New builds a Server and its router. tokenPath is the path segment the
// login endpoint is served under (config.Config.TokenURL).
func New(st store.Store, engine *matching.Engine, authSvc *auth.Service, limiter *ratelimit.Limiter, tokenPath string) *Server {
	return &Server{
		store:     st,
		engine:    engine,
		auth:      authSvc,
		limiter:   limiter,
		validate:  validator.New(),
		tokenPath: tokenPath,
	}
}

// Router builds the gorilla/mux router with every endpoint from spec.md §6
// wired in, rate-limited uniformly and authenticated where required.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.rateLimitMiddleware)

	r.HandleFunc("/", s.handleGreeting).Methods(http.MethodGet)
	r.HandleFunc("/orderbook", s.handleOrderBook).Methods(http.MethodGet)
	r.HandleFunc("/trades", s.handleTrades).Methods(http.MethodGet)
	r.HandleFunc("/signup", s.handleSignup).Methods(http.MethodPost)
	r.HandleFunc("/"+s.tokenPath, s.handleToken).Methods(http.MethodPost)

	r.Handle("/balance", s.authenticated(s.handleBalance)).Methods(http.MethodGet)
	r.Handle("/orders/active", s.authenticated(s.handleActiveOrders)).Methods(http.MethodGet)
	r.Handle("/submit", s.authenticated(s.handleSubmit)).Methods(http.MethodPost)
	r.Handle("/cancel", s.authenticated(s.handleCancel)).Methods(http.MethodPost)
	r.Handle("/cancel/all", s.authenticated(s.handleCancelAll)).Methods(http.MethodPost)
	r.Handle("/me", s.authenticated(s.handleMe)).Methods(http.MethodGet)

	return r
}
