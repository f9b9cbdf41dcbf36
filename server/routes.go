package server

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())

	// Login broker: no session yet, the provider token or code is the credential
	s.RegisterRouteHandler("POST "+RouteProviderToken, ChainMiddleware(s.ProviderTokenHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteProviderIdentity, ChainMiddleware(s.ProviderIdentityHandler(), s.APIMiddleware()...))

	// Protected endpoints (require a session token)
	s.RegisterRouteHandler("GET "+RouteAPIMe, ChainMiddleware(s.MeHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("POST "+RouteAgentStart, ChainMiddleware(s.AgentStartHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("GET "+RouteAgentJob, ChainMiddleware(s.AgentJobHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("GET "+RouteAgentSummary, ChainMiddleware(s.AgentSummaryHandler(), s.APIMiddleware(s.RequireAuth())...))

	// CORS preflight for every API route
	s.RegisterRouteHandler("OPTIONS /", ChainMiddleware(s.PreflightHandler(), s.APIMiddleware()...))
}
