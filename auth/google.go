package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/taohansen/blog-backend/errs"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// GoogleUser is the subset of the OpenID userinfo response we keep.
type GoogleUser struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// GoogleLogin runs the authorization code flow against Google.
type GoogleLogin struct {
	config      *oauth2.Config
	userInfoURL string
}

// WithGoogleEndpoint points the flow at another authorization server.
func WithGoogleEndpoint(endpoint oauth2.Endpoint, userInfoURL string) func(*GoogleLogin) {
	return func(g *GoogleLogin) {
		g.config.Endpoint = endpoint
		g.userInfoURL = userInfoURL
	}
}

func NewGoogleLogin(clientID, clientSecret, redirectURL string, opts ...func(*GoogleLogin)) (*GoogleLogin, error) {
	if clientID == "" {
		return nil, errs.NewMissingRequiredFieldError("GOOGLE_CLIENT_ID")
	}
	if clientSecret == "" {
		return nil, errs.NewMissingRequiredFieldError("GOOGLE_CLIENT_SECRET")
	}

	g := &GoogleLogin{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userInfoURL: googleUserInfoURL,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *GoogleLogin) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the callback code for a token and resolves the user.
// Unverified emails are rejected since the admin gate keys on email.
func (g *GoogleLogin) Exchange(ctx context.Context, code string) (*GoogleUser, error) {
	if code == "" {
		return nil, errs.NewMissingRequiredFieldError("code")
	}

	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		apiErr := errs.NewUnauthorizedError("google code exchange failed")
		apiErr.Cause = err
		return nil, apiErr
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return nil, errs.NewInternalErrorWithCause("building userinfo request", err)
	}
	resp, err := g.config.Client(ctx, token).Do(req)
	if err != nil {
		return nil, errs.NewInternalErrorWithCause("fetching google userinfo", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errs.NewInternalErrorWithCause("fetching google userinfo", fmt.Errorf("status %d", resp.StatusCode))
	}

	var user GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, errs.NewMalformedPayloadError("userinfo", err)
	}
	if user.Email == "" || !user.EmailVerified {
		return nil, errs.NewUnauthorizedError("google account has no verified email")
	}
	return &user, nil
}
