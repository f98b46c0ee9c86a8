package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/thistle/pkg/reqctx"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

type fakeVerifier struct {
	tokens map[string]Claims
}

func (f fakeVerifier) Verify(_ context.Context, raw string) (Claims, error) {
	claims, ok := f.tokens[raw]
	if !ok {
		return Claims{}, errors.New("signature mismatch")
	}
	return claims, nil
}

func TestAuthentication(t *testing.T) {
	verifier := fakeVerifier{tokens: map[string]Claims{"good": {Subject: "user-1"}}}

	tests := []struct {
		name   string
		header string
		status int
		user   string
	}{
		{name: "missing header", status: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic abc", status: http.StatusUnauthorized},
		{name: "empty bearer", header: "Bearer ", status: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer bad", status: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer good", status: http.StatusOK, user: "user-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
			e := newEcho()
			var user string
			g := e.Group("/api/v1", Authentication(logger, verifier))
			g.GET("/read", func(c echo.Context) error {
				user = reqctx.GetUserID(c.Request().Context())
				return c.NoContent(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/v1/read", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.user, user)
		})
	}
}
