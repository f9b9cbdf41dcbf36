package server

import (
	"github.com/jrsteele09/postsync/api"
	"github.com/jrsteele09/postsync/broker"
)

// Route path constants
// Paths shared with the clients come from the client packages so both sides agree
const (
	// Login broker
	RouteProviderToken    = broker.TokenPath
	RouteProviderIdentity = broker.IdentityPath
	RouteAuthLogout       = api.LogoutPath

	// Protected API
	RouteAPIMe        = api.MePath
	RouteAgentStart   = api.AgentStartPath
	RouteAgentJob     = api.AgentJobsPath + "{id}"
	RouteAgentSummary = api.AgentSummaryPath

	RouteHealth = "/healthz"
)
