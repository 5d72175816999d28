package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func contextWithRoles(c echo.Context, roles []string) echo.Context {
	ctx := context.WithValue(c.Request().Context(), UserRolesKey, roles)
	c.SetRequest(c.Request().WithContext(ctx))
	return c
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name      string
		userRoles []string
		required  []string
		wantPass  bool
	}{
		{"exact match", []string{"physician"}, []string{"physician"}, true},
		{"one of several", []string{"nurse"}, []string{"physician", "nurse"}, true},
		{"admin bypasses", []string{"admin"}, []string{"physician"}, true},
		{"no match", []string{"nurse"}, []string{"physician"}, false},
		{"no roles", nil, []string{"physician"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			c = contextWithRoles(c, tt.userRoles)

			handler := RequireRole(tt.required...)(func(c echo.Context) error {
				return c.NoContent(http.StatusOK)
			})
			err := handler(c)

			if tt.wantPass {
				if err != nil {
					t.Fatalf("expected pass, got %v", err)
				}
				return
			}
			httpErr, ok := err.(*echo.HTTPError)
			if !ok || httpErr.Code != http.StatusForbidden {
				t.Fatalf("expected 403, got %v", err)
			}
		})
	}
}
