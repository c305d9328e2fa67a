package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/taohansen/blog-backend/auth"
	"github.com/taohansen/blog-backend/errs"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateTTL    = 10 * time.Minute
)

type loginProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GoogleUser, error)
}

type authHandler struct {
	responder Responder
	logger    zerolog.Logger
	google    loginProvider
	tokens    *auth.TokenManager
	admins    auth.AdminGate
}

func newAuthHandler(google loginProvider, tokens *auth.TokenManager, admins auth.AdminGate) authHandler {
	logger := log.With().Str("handlerName", "authHandler").Logger()

	return authHandler{
		responder: NewResponder(logger),
		logger:    logger,
		google:    google,
		tokens:    tokens,
		admins:    admins,
	}
}

// startGoogleLogin redirects to Google with a fresh state bound to a cookie.
// @Summary Start Google sign-in
// @Tags Auth
// @Success 302
// @Router /oauth2/authorization/google [get]
func (h authHandler) startGoogleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     oauthStateCookie,
			Value:    state,
			Path:     "/",
			MaxAge:   int(oauthStateTTL.Seconds()),
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})
		http.Redirect(w, r, h.google.AuthCodeURL(state), http.StatusFound)
	}
}

// googleCallback finishes the code flow and issues a session token.
// @Summary Google sign-in callback
// @Tags Auth
// @Produce json
// @Param state query string true "OAuth state"
// @Param code query string true "Authorization code"
// @Success 200 {object} SessionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /login/oauth2/code/google [get]
func (h authHandler) googleCallback() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(oauthStateCookie)
		state := r.URL.Query().Get("state")
		if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(state)) != 1 {
			h.responder.WriteError(w, errs.NewUnauthorizedError("oauth state mismatch"))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Value: "", Path: "/", MaxAge: -1})

		if oauthErr := r.URL.Query().Get("error"); oauthErr != "" {
			h.responder.WriteError(w, errs.NewUnauthorizedError("google sign-in failed: "+oauthErr))
			return
		}

		code := r.URL.Query().Get("code")
		if code == "" {
			h.responder.WriteError(w, errs.NewBadRequestError("authorization code missing"))
			return
		}

		user, err := h.google.Exchange(r.Context(), code)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		token, expiresAt, err := h.tokens.Issue(user.Email, user.Name)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		isAdmin := h.admins.IsAdmin(user.Email)
		h.logger.Info().Str("email", user.Email).Bool("isAdmin", isAdmin).Msg("user signed in")
		h.responder.WriteJSON(w, SessionResponse{
			Token:     token,
			ExpiresAt: expiresAt.Unix(),
			Email:     user.Email,
			Name:      user.Name,
			IsAdmin:   isAdmin,
		})
	}
}

// @Summary Current user
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} MeResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/me [get]
func (h authHandler) me() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := ctxGetClaims(r.Context())
		if claims == nil {
			h.responder.WriteError(w, errs.NewMissingTokenError())
			return
		}
		h.responder.WriteJSON(w, MeResponse{
			Email:   claims.Email,
			Name:    claims.Name,
			IsAdmin: h.admins.IsAdmin(claims.Email),
		})
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

type healthHandler struct {
	responder   Responder
	store       pinger
	startupTime time.Time
}

func newHealthHandler(store pinger, startupTime time.Time) healthHandler {
	return healthHandler{
		responder:   NewResponder(log.With().Str("handlerName", "healthHandler").Logger()),
		store:       store,
		startupTime: startupTime,
	}
}

// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 503 {object} map[string]any
// @Router /health [get]
func (h healthHandler) health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if err := h.store.Ping(r.Context()); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
			log.Warn().Err(err).Msg("store ping failed")
		}
		h.responder.WriteJSONStatus(w, code, map[string]any{
			"status": status,
			"uptime": time.Since(h.startupTime).Round(time.Second).String(),
		})
	}
}
