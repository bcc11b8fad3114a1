package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func serve(cfg Config, authHeader string) (*httptest.ResponseRecorder, *Claims) {
	var seen *Claims
	h := Middleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodPost, "/generate-pptx", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w, seen
}

func TestMiddlewareAcceptsValidToken(t *testing.T) {
	token := sign(t, jwt.SigningMethodHS256, []byte(secret), Claims{
		Role: "editor",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	w, claims := serve(Config{Secret: secret, Roles: []string{"editor"}}, "Bearer "+token)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.NotNil(t, claims)
	require.Equal(t, "user-1", claims.Subject)
}

func TestMiddlewareRejections(t *testing.T) {
	expired := sign(t, jwt.SigningMethodHS256, []byte(secret), Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
	})
	wrongKey := sign(t, jwt.SigningMethodHS256, []byte("other"), Claims{})
	viewer := sign(t, jwt.SigningMethodHS256, []byte(secret), Claims{Role: "viewer"})
	wrongIssuer := sign(t, jwt.SigningMethodHS256, []byte(secret), Claims{
		Role:             "editor",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else"},
	})

	cases := []struct {
		name   string
		cfg    Config
		header string
		status int
	}{
		{"missing", Config{Secret: secret}, "", http.StatusUnauthorized},
		{"wrong scheme", Config{Secret: secret}, "Basic abc", http.StatusUnauthorized},
		{"expired", Config{Secret: secret}, "Bearer " + expired, http.StatusUnauthorized},
		{"wrong key", Config{Secret: secret}, "Bearer " + wrongKey, http.StatusUnauthorized},
		{"role not allowed", Config{Secret: secret, Roles: []string{"editor"}}, "Bearer " + viewer, http.StatusForbidden},
		{"issuer mismatch", Config{Secret: secret, Issuer: "deckpress"}, "Bearer " + wrongIssuer, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, claims := serve(tc.cfg, tc.header)
			require.Equal(t, tc.status, w.Code)
			require.Nil(t, claims)
			require.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestTokenFromHeader(t *testing.T) {
	require.Equal(t, "abc", tokenFromHeader("bearer abc"))
	require.Equal(t, "abc", tokenFromHeader("  Bearer   abc "))
	require.Empty(t, tokenFromHeader("Bearer"))
	require.Empty(t, tokenFromHeader(""))
}
