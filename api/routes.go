package api

import (
	"github.com/go-chi/chi/v5"
)

func setupPublicRoutes(r chi.Router, handlers *routeHandlers, withGoogle bool) {
	r.Group(func(r chi.Router) {
		r.Use(ColoredHTTPLoggingMiddleware)

		r.Get("/health", handlers.healthHandler.health())

		r.Get("/api/posts", handlers.postHandler.listPosts())
		r.Get("/api/posts/all", handlers.postHandler.listAllPosts())
		r.Get("/api/posts/{slug}", handlers.postHandler.getPost())

		if withGoogle {
			r.Get("/oauth2/authorization/google", handlers.authHandler.startGoogleLogin())
			r.Get("/login/oauth2/code/google", handlers.authHandler.googleCallback())
		}
	})
}

// setupAuthenticatedRoutes needs a valid session token; whether the caller
// may actually mutate is decided by the post service.
func setupAuthenticatedRoutes(r chi.Router, handlers *routeHandlers, authMiddleware authMiddleware) {
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.authenticate)
		r.Use(ColoredHTTPLoggingMiddleware)

		r.Get("/api/me", handlers.authHandler.me())

		r.Post("/api/posts", handlers.postHandler.createPost())
		r.Put("/api/posts/{id}", handlers.postHandler.updatePost())
		r.Delete("/api/posts/{id}", handlers.postHandler.deletePost())
	})
}
