package api

import (
	"time"
)

// initializeHandlers creates and returns all handlers organized in a routeHandlers struct
func initializeHandlers(deps Dependencies, startupTime time.Time) *routeHandlers {
	var google loginProvider
	if deps.Google != nil {
		google = deps.Google
	}

	return &routeHandlers{
		postHandler:   newPostHandler(deps.Posts, deps.Admins),
		authHandler:   newAuthHandler(google, deps.Tokens, deps.Admins),
		healthHandler: newHealthHandler(deps.Posts, startupTime),
	}
}
