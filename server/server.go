package server

import (
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/rankauskaite/fittrack/plans"
	"github.com/rankauskaite/fittrack/session"
	"github.com/rankauskaite/fittrack/token"
	"github.com/rankauskaite/fittrack/users"
)

// Repos holds the collaborators the server serves from.
type Repos struct {
	Users users.Repo
	Plans plans.Repo
}

type Server struct {
	env    string // Environment (e.g., "local", "prod")
	mux    *http.ServeMux
	routes []string
	repos  Repos
	issuer *session.Issuer
	tokens *token.Manager
}

func New(env string, repos Repos, issuer *session.Issuer, tokens *token.Manager) (*Server, error) {
	if repos.Users == nil {
		return nil, errors.New("[Server New] Users repo is required")
	}
	if repos.Plans == nil {
		return nil, errors.New("[Server New] Plans repo is required")
	}
	if issuer == nil {
		return nil, errors.New("[Server New] session issuer is required")
	}
	if tokens == nil {
		return nil, errors.New("[Server New] token manager is required")
	}

	s := &Server{
		env:    env,
		mux:    http.NewServeMux(),
		repos:  repos,
		issuer: issuer,
		tokens: tokens,
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "local" {
		return // Skip logging outside local development
	}
	for _, route := range s.routes {
		log.Debug().Str("route", route).Msg("registered")
	}
}
