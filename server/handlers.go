package server

import (
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/rankauskaite/fittrack/session"
)

// accessTokenCookie mirrors the access token for server-rendered pages.
// Deliberately readable by scripts (not HttpOnly): the browser client keeps
// its own copy and the cookie is only a convenience for page loads.
const accessTokenCookie = "fittrack_access_token"

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// LoginHandler handles POST /api/login.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := readJSON(r, &req); err != nil {
			writeMessage(w, http.StatusBadRequest, "invalid request body")
			return
		}

		pair, err := s.issuer.Authenticate(r.Context(), req.Username, req.Password)
		if err != nil {
			if !errors.Is(err, session.ErrInvalidCredentials) {
				log.Error().Err(err).Msg("login failed")
				writeMessage(w, http.StatusInternalServerError, "internal server error")
				return
			}
			writeMessage(w, http.StatusUnauthorized, session.ErrInvalidCredentials.Error())
			return
		}

		s.setAccessTokenCookie(w, pair.AccessToken)
		writeJSON(w, http.StatusOK, pair)
	}
}

// RefreshHandler handles POST /api/token/refresh.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		if err := readJSON(r, &req); err != nil {
			writeMessage(w, http.StatusBadRequest, "invalid request body")
			return
		}

		pair, err := s.issuer.Renew(r.Context(), req.RefreshToken)
		switch {
		case errors.Is(err, session.ErrRefreshTokenNotFound),
			errors.Is(err, session.ErrRefreshTokenExpired):
			writeMessage(w, http.StatusUnauthorized, err.Error())
			return
		case err != nil:
			log.Error().Err(err).Msg("token refresh failed")
			writeMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}

		s.setAccessTokenCookie(w, pair.AccessToken)
		writeJSON(w, http.StatusOK, refreshResponse{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
		})
	}
}

// LogoutHandler handles POST /api/logout. A refresh value that matches no
// user yields 404; callers treat that as success, so logout stays idempotent.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req logoutRequest
		if err := readJSON(r, &req); err != nil {
			writeMessage(w, http.StatusBadRequest, "invalid request body")
			return
		}

		s.clearAccessTokenCookie(w)

		err := s.issuer.Revoke(r.Context(), req.RefreshToken)
		if errors.Is(err, session.ErrRefreshTokenNotFound) {
			writeMessage(w, http.StatusNotFound, session.ErrRefreshTokenNotFound.Error())
			return
		}
		if err != nil {
			log.Error().Err(err).Msg("logout failed")
			writeMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}

		writeMessage(w, http.StatusOK, "logged out")
	}
}

// MeHandler handles GET /api/me.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.repos.Users.GetByUsername(r.Context(), usernameFromContext(r.Context()))
		if err != nil {
			writeMessage(w, http.StatusNotFound, "user not found")
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

// TrainingPlansHandler handles GET /api/training-plans.
func (s *Server) TrainingPlansHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := s.repos.Plans.ListForUser(r.Context(), usernameFromContext(r.Context()))
		if err != nil {
			log.Error().Err(err).Msg("failed to list training plans")
			writeMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// UsersHandler handles GET /api/users. Admin only; pagination via the offset
// and limit query parameters.
func (s *Server) UsersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset := queryInt(r, "offset", 0)
		limit := queryInt(r, "limit", defaultListLimit)
		if offset < 0 || limit <= 0 || limit > maxListLimit {
			writeMessage(w, http.StatusBadRequest, "invalid pagination parameters")
			return
		}

		list, err := s.repos.Users.List(r.Context(), offset, limit)
		if err != nil {
			log.Error().Err(err).Msg("failed to list users")
			writeMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return n
}

func (s *Server) setAccessTokenCookie(w http.ResponseWriter, accessToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessTokenCookie,
		Value:    accessToken,
		Path:     "/",
		MaxAge:   int(s.tokens.Expiry().Seconds()),
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearAccessTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		SameSite: http.SameSiteLaxMode,
	})
}
