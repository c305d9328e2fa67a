package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taohansen/blog-backend/errs"
	"golang.org/x/oauth2"
)

func TestTokenRoundTrip(t *testing.T) {
	m, err := NewTokenManager("test-secret")
	require.NoError(t, err)

	token, expiresAt, err := m.Issue("Admin@Example.com", "Admin")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(DefaultTokenTTL), expiresAt, 5*time.Second)

	claims, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "Admin@Example.com", claims.Email)
	assert.Equal(t, "Admin@Example.com", claims.Subject)
	assert.Equal(t, "Admin", claims.Name)
}

func TestTokenExpired(t *testing.T) {
	issuedAt := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	issuer, err := NewTokenManager("test-secret", WithTokenTTL(time.Minute), WithTokenClock(func() time.Time { return issuedAt }))
	require.NoError(t, err)
	token, _, err := issuer.Issue("a@b.c", "")
	require.NoError(t, err)

	later, err := NewTokenManager("test-secret", WithTokenClock(func() time.Time { return issuedAt.Add(time.Hour) }))
	require.NoError(t, err)

	_, err = later.Verify(token)
	assert.True(t, errs.IsExpiredTokenError(err))
	assert.True(t, errs.IsUnauthorized(err))
}

func TestTokenRejectsForeignSignatures(t *testing.T) {
	m, err := NewTokenManager("test-secret")
	require.NoError(t, err)
	other, err := NewTokenManager("other-secret")
	require.NoError(t, err)

	token, _, err := other.Issue("a@b.c", "")
	require.NoError(t, err)
	_, err = m.Verify(token)
	assert.True(t, errs.IsUnauthorized(err))

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Email: "a@b.c"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.Verify(unsigned)
	assert.True(t, errs.IsUnauthorized(err))

	_, err = m.Verify("")
	assert.ErrorIs(t, err, errs.ErrMissingToken)
}

func TestNewTokenManagerRequiresSecret(t *testing.T) {
	_, err := NewTokenManager("  ")
	assert.True(t, errs.IsValidation(err))
}

func TestAdminGate(t *testing.T) {
	gate := NewAdminGate(" Owner@Example.com ", "")

	assert.True(t, gate.IsAdmin("owner@example.com"))
	assert.True(t, gate.IsAdmin("OWNER@EXAMPLE.COM"))
	assert.False(t, gate.IsAdmin("reader@example.com"))
	assert.False(t, gate.IsAdmin(""))

	caller := gate.Caller(&Claims{Email: "owner@example.com"})
	assert.True(t, caller.CanMutate)
	assert.Equal(t, "owner@example.com", caller.Subject)

	assert.False(t, gate.Caller(&Claims{Email: "reader@example.com"}).CanMutate)
	assert.False(t, gate.Caller(nil).CanMutate)
}

func newFakeGoogle(t *testing.T, user GoogleUser) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"access-123","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(user)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestGoogleLogin(t *testing.T, server *httptest.Server) *GoogleLogin {
	t.Helper()
	login, err := NewGoogleLogin("client-id", "client-secret", "http://localhost/callback",
		WithGoogleEndpoint(oauth2.Endpoint{
			AuthURL:   server.URL + "/auth",
			TokenURL:  server.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		}, server.URL+"/userinfo"))
	require.NoError(t, err)
	return login
}

func TestGoogleLoginExchange(t *testing.T) {
	server := newFakeGoogle(t, GoogleUser{Subject: "123", Email: "owner@example.com", EmailVerified: true, Name: "Owner"})
	login := newTestGoogleLogin(t, server)

	user, err := login.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", user.Email)
	assert.Equal(t, "Owner", user.Name)

	_, err = login.Exchange(context.Background(), "bad-code")
	assert.True(t, errs.IsUnauthorized(err))

	_, err = login.Exchange(context.Background(), "")
	assert.True(t, errs.IsValidation(err))
}

func TestGoogleLoginRejectsUnverifiedEmail(t *testing.T) {
	server := newFakeGoogle(t, GoogleUser{Subject: "123", Email: "owner@example.com"})
	login := newTestGoogleLogin(t, server)

	_, err := login.Exchange(context.Background(), "good-code")
	assert.True(t, errs.IsUnauthorized(err))
}

func TestGoogleLoginAuthCodeURL(t *testing.T) {
	login, err := NewGoogleLogin("client-id", "secret", "http://localhost/callback")
	require.NoError(t, err)

	u, err := url.Parse(login.AuthCodeURL("state-xyz"))
	require.NoError(t, err)
	assert.Equal(t, "accounts.google.com", u.Host)
	assert.Equal(t, "state-xyz", u.Query().Get("state"))
	assert.Equal(t, "client-id", u.Query().Get("client_id"))
	assert.Contains(t, u.Query().Get("scope"), "email")

	_, err = NewGoogleLogin("", "secret", "")
	assert.True(t, errs.IsValidation(err))
}
