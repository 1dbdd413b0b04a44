// Package rest is a thin HTTP front door over the verification engine: it
// parses requests, invokes the Verifier and RunStore, and serializes
// results. It holds no verification logic of its own.
package rest

import (
	"net/http"

	"github.com/smilemakc/avtrace/internal/verify"
)

// Server exposes the run submission/lookup REST surface.
type Server struct {
	verifier *verify.Verifier
	store    RunStore
	sink     verify.Sink
	mux      *http.ServeMux
}

func NewServer(verifier *verify.Verifier, store RunStore, sink verify.Sink) *Server {
	s := &Server{
		verifier: verifier,
		store:    store,
		sink:     sink,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /runs", s.handleCreateRun)
	s.mux.HandleFunc("GET /runs/{id}", s.handleGetRun)
	s.mux.HandleFunc("GET /runs/{id}/decision-logs", s.handleListDecisionLogs)
}

// Handler returns the fully wrapped HTTP handler (middleware + routes).
func (s *Server) Handler() http.Handler {
	return recoveryMiddleware(loggingMiddleware(corsMiddleware(contentTypeMiddleware(s.mux))))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Handler().ServeHTTP(w, r)
}
