package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-signing-key")

func signToken(t *testing.T, claims *Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(testSigningKey)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

func newAuthContext(authHeader string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	tokenStr := signToken(t, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Roles: []string{"physician"},
	})

	c, _ := newAuthContext("Bearer " + tokenStr)
	mw := JWTMiddleware(JWTConfig{SigningKey: testSigningKey})

	var gotUserID string
	var gotRoles []string
	handler := mw(func(c echo.Context) error {
		gotUserID = UserIDFromContext(c.Request().Context())
		gotRoles = RolesFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotUserID != "user-1" {
		t.Errorf("expected user id user-1, got %q", gotUserID)
	}
	if len(gotRoles) != 1 || gotRoles[0] != "physician" {
		t.Errorf("expected roles [physician], got %v", gotRoles)
	}
}

func TestJWTMiddleware_Rejections(t *testing.T) {
	expired := signToken(t, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	wrongKey := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	wrongKeyStr, err := wrongKey.SignedString([]byte("other-key"))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"malformed header", "Token abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"expired token", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong signing key", "Bearer " + wrongKeyStr, http.StatusUnauthorized},
	}

	mw := JWTMiddleware(JWTConfig{SigningKey: testSigningKey})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newAuthContext(tt.authHeader)
			handler := mw(func(c echo.Context) error {
				return c.NoContent(http.StatusOK)
			})
			err := handler(c)
			httpErr, ok := err.(*echo.HTTPError)
			if !ok {
				t.Fatalf("expected *echo.HTTPError, got %v", err)
			}
			if httpErr.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, httpErr.Code)
			}
		})
	}
}

func TestJWTMiddleware_IssuerMismatch(t *testing.T) {
	tokenStr := signToken(t, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "other-issuer",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	c, _ := newAuthContext("Bearer " + tokenStr)
	mw := JWTMiddleware(JWTConfig{SigningKey: testSigningKey, Issuer: "caresight"})
	handler := mw(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	err := handler(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for issuer mismatch, got %v", err)
	}
}

func TestDevAuthMiddleware(t *testing.T) {
	c, _ := newAuthContext("")
	mw := DevAuthMiddleware()

	var gotRoles []string
	handler := mw(func(c echo.Context) error {
		gotRoles = RolesFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gotRoles) != 1 || gotRoles[0] != "admin" {
		t.Errorf("expected dev roles [admin], got %v", gotRoles)
	}
}
