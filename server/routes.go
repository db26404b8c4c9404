package server

import "github.com/rankauskaite/fittrack/users"

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Session lifecycle
	RouteLogin   = "/api/login"
	RouteRefresh = "/api/token/refresh"
	RouteLogout  = "/api/logout"

	// Protected domain surface
	RouteMe            = "/api/me"
	RouteTrainingPlans = "/api/training-plans"

	// Admin surface
	RouteUsers = "/api/users"
)

func (s *Server) initRoutes() {
	// Session lifecycle endpoints
	s.RegisterRouteFunc("POST "+RouteLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteRefresh, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))

	// Protected domain endpoints (require a valid bearer access token)
	s.RegisterRouteFunc("GET "+RouteMe, ChainMiddleware(s.MeHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteFunc("GET "+RouteTrainingPlans, ChainMiddleware(s.TrainingPlansHandler(), s.APIMiddleware(s.RequireAuth())...))

	// Admin endpoints
	s.RegisterRouteFunc("GET "+RouteUsers, ChainMiddleware(s.UsersHandler(), s.APIMiddleware(s.RequireAuth(), s.RequireRole(users.RoleAdmin))...))
}
