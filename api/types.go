package api

// routeHandlers contains all the handlers for different route types
type routeHandlers struct {
	postHandler   postHandler
	authHandler   authHandler
	healthHandler healthHandler
}

// ErrorResponse represents an error response from the API
// @Description Error response structure
type ErrorResponse struct {
	Error   string `json:"error" example:"Internal Server Error"`
	Status  string `json:"status" example:"error"`
	Field   string `json:"field,omitempty" example:"title"`
	Details string `json:"details,omitempty" example:"Additional error details"`
	Cause   string `json:"cause,omitempty" example:"Underlying error cause"`
}

// SessionResponse is returned after a successful sign-in.
type SessionResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	IsAdmin   bool   `json:"isAdmin"`
}

// MeResponse describes the caller behind a bearer token.
type MeResponse struct {
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	IsAdmin bool   `json:"isAdmin"`
}
