package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/Keoroanthony/orders-api/configs"
	"github.com/Keoroanthony/orders-api/internal/auth"
	"github.com/Keoroanthony/orders-api/internal/auth/authtest"
	"github.com/Keoroanthony/orders-api/internal/db"
	"github.com/Keoroanthony/orders-api/internal/db/dbtest"
	"github.com/Keoroanthony/orders-api/internal/models"
)

func newGate(t *testing.T) (*auth.Gate, *authtest.Issuer, *db.Store) {
	t.Helper()
	store := db.NewStore(dbtest.New(t))
	issuer := authtest.NewIssuer(t)
	return auth.NewGateWithVerifier(issuer.Verifier, store), issuer, store
}

func TestAuthorizeAnonymous(t *testing.T) {
	gate, _, _ := newGate(t)

	for _, header := range []string{"", "Basic dXNlcjpwdw==", "Bearer", "Bearer a b"} {
		p, err := gate.Authorize(context.Background(), header)
		assert.NoError(t, err, header)
		assert.Nil(t, p, header)
	}
}

func TestAuthorizeValidToken(t *testing.T) {
	gate, issuer, store := newGate(t)
	ctx := context.Background()

	p, err := gate.Authorize(ctx, "Bearer "+issuer.Token(t, "tester@example.com"))
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "tester@example.com", p.Email)
	assert.Equal(t, "Test", p.GivenName)

	again, err := gate.Authorize(ctx, "bearer "+issuer.Token(t, "tester@example.com"))
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID, "the same email resolves to the same principal")

	var count int64
	store.DB().Model(&models.Principal{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestAuthorizeRejectsBadTokens(t *testing.T) {
	gate, issuer, _ := newGate(t)
	other := authtest.NewIssuer(t)

	cases := map[string]string{
		"garbage":        "not-a-jwt",
		"foreign key":    other.Token(t, "tester@example.com"),
		"wrong audience": issuer.Sign(t, jwt.MapClaims{"iss": authtest.IssuerURL, "aud": "someone-else", "email": "a@b.c", "exp": time.Now().Add(time.Hour).Unix()}),
		"expired":        issuer.Sign(t, jwt.MapClaims{"iss": authtest.IssuerURL, "aud": authtest.ClientID, "email": "a@b.c", "exp": time.Now().Add(-time.Hour).Unix()}),
		"no email claim": issuer.Sign(t, jwt.MapClaims{"iss": authtest.IssuerURL, "aud": authtest.ClientID, "sub": "x", "exp": time.Now().Add(time.Hour).Unix()}),
		"wrong issuer":   issuer.Sign(t, jwt.MapClaims{"iss": "https://evil.test", "aud": authtest.ClientID, "email": "a@b.c", "exp": time.Now().Add(time.Hour).Unix()}),
	}

	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			p, err := gate.Authorize(context.Background(), "Bearer "+token)
			assert.ErrorIs(t, err, auth.ErrAuthentication)
			assert.Nil(t, p)
		})
	}
}

func TestAuthorizeUnconfiguredFailsClosed(t *testing.T) {
	store := db.NewStore(dbtest.New(t))
	gate := auth.NewGate(config.OIDCConfig{Issuer: "https://accounts.google.com"}, store)

	p, err := gate.Authorize(context.Background(), "Bearer some-token")

	assert.ErrorIs(t, err, auth.ErrConfiguration)
	assert.Nil(t, p)

	anon, err := gate.Authorize(context.Background(), "")
	assert.NoError(t, err, "anonymous callers never reach the provider")
	assert.Nil(t, anon)
}

func TestAuthorizeBacksOffAfterFailedDiscovery(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "unavailable", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	store := db.NewStore(dbtest.New(t))
	gate := auth.NewGate(config.OIDCConfig{Issuer: server.URL, ClientID: "orders-api"}, store)

	for i := 0; i < 3; i++ {
		p, err := gate.Authorize(context.Background(), "Bearer some-token")
		assert.ErrorIs(t, err, auth.ErrConfiguration)
		assert.Nil(t, p)
	}
	assert.Equal(t, int32(1), hits.Load(), "the failure is reused until the back-off passes")
}

func TestAuthorizeDiscoversOnceUnderLoad(t *testing.T) {
	var hits atomic.Int32
	var issuerURL string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/openid-configuration" {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		time.Sleep(50 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                                issuerURL,
			"authorization_endpoint":                issuerURL + "/authorize",
			"token_endpoint":                        issuerURL + "/token",
			"jwks_uri":                              issuerURL + "/keys",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	}))
	t.Cleanup(server.Close)
	issuerURL = server.URL

	store := db.NewStore(dbtest.New(t))
	gate := auth.NewGate(config.OIDCConfig{Issuer: issuerURL, ClientID: "orders-api"}, store)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = gate.Authorize(context.Background(), "Bearer not-a-jwt")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.ErrorIs(t, err, auth.ErrAuthentication, "a discovered provider rejects the token itself")
	}
	assert.Equal(t, int32(1), hits.Load())
}

func setupAuthRouter(t *testing.T, gate *auth.Gate) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(sessions.Sessions("gosess", cookie.NewStore([]byte("test-secret-key"))))
	r.GET("/whoami", auth.RequireAuth(gate), func(c *gin.Context) {
		c.JSON(http.StatusOK, auth.CurrentPrincipal(c))
	})
	r.GET("/login-as/:id", func(c *gin.Context) {
		// stands in for a completed /auth/callback
		id, _ := strconv.ParseUint(c.Param("id"), 10, 64)
		sess := sessions.Default(c)
		sess.Set("principal_id", uint(id))
		_ = sess.Save()
		c.Status(http.StatusNoContent)
	})
	r.POST("/auth/logout", auth.Logout)
	return r
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"]
}

func TestRequireAuth(t *testing.T) {
	gate, issuer, store := newGate(t)
	router := setupAuthRouter(t, gate)

	t.Run("anonymous is rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "authentication credentials were not provided", decodeError(t, w))
	})

	t.Run("invalid bearer is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer nope")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "invalid credentials", decodeError(t, w))
	})

	t.Run("valid bearer resolves the principal", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+issuer.Token(t, "tester@example.com"))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var p models.Principal
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
		assert.Equal(t, "tester@example.com", p.Email)
	})

	t.Run("session principal is accepted", func(t *testing.T) {
		p, err := store.GetOrCreatePrincipal(context.Background(), &models.Principal{Email: "browser@example.com"})
		require.NoError(t, err)

		login := httptest.NewRecorder()
		router.ServeHTTP(login, httptest.NewRequest(http.MethodGet, "/login-as/"+strconv.FormatUint(uint64(p.ID), 10), nil))
		cookieHeader := login.Header().Get("Set-Cookie")
		require.NotEmpty(t, cookieHeader)

		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Cookie", cookieHeader)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var got models.Principal
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, "browser@example.com", got.Email)
	})

	t.Run("session for a deleted principal is rejected", func(t *testing.T) {
		login := httptest.NewRecorder()
		router.ServeHTTP(login, httptest.NewRequest(http.MethodGet, "/login-as/9999", nil))

		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Cookie", login.Header().Get("Set-Cookie"))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRequireAuthUnconfigured(t *testing.T) {
	store := db.NewStore(dbtest.New(t))
	router := setupAuthRouter(t, auth.NewGate(config.OIDCConfig{}, store))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer anything")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "identity provider not configured", decodeError(t, w))
}

func TestLoginUnconfigured(t *testing.T) {
	store := db.NewStore(dbtest.New(t))
	gate := auth.NewGate(config.OIDCConfig{}, store)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(sessions.Sessions("gosess", cookie.NewStore([]byte("test-secret-key"))))
	r.GET("/auth/login", gate.Login)
	r.GET("/auth/callback", gate.Callback)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/callback", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "code missing", decodeError(t, w))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state=forged", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "state mismatch", decodeError(t, w))
}
