package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func serveCORS(cfg CORSConfig, req *http.Request) *httptest.ResponseRecorder {
	e := echo.New()
	e.Use(CORS(cfg))
	e.GET("/api/diseases", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCORSPreflight(t *testing.T) {
	cfg := CORSConfig{
		AllowOrigins: []string{"https://dash.example.org"},
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderContentType, "X-Trace-ID"},
		MaxAge:       5 * time.Minute,
	}

	req := httptest.NewRequest(http.MethodOptions, "/api/diseases", nil)
	req.Header.Set(echo.HeaderOrigin, "https://dash.example.org")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	rec := serveCORS(cfg, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	h := rec.Header()
	assert.Equal(t, "https://dash.example.org", h.Get(echo.HeaderAccessControlAllowOrigin))
	assert.Equal(t, "GET, POST", h.Get(echo.HeaderAccessControlAllowMethods))
	assert.Equal(t, "Content-Type, X-Trace-ID", h.Get(echo.HeaderAccessControlAllowHeaders))
	assert.Equal(t, "300", h.Get(echo.HeaderAccessControlMaxAge))
	assert.Equal(t, echo.HeaderOrigin, h.Get(echo.HeaderVary))

	req = httptest.NewRequest(http.MethodOptions, "/api/diseases", nil)
	req.Header.Set(echo.HeaderOrigin, "https://evil.example.com")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	rec = serveCORS(cfg, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestCORSSimpleRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/diseases", nil)
	req.Header.Set(echo.HeaderOrigin, "https://any.example.net")
	rec := serveCORS(DefaultCORSConfig(), req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://any.example.net", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowMethods))

	cfg := CORSConfig{AllowOrigins: []string{"https://dash.example.org"}}
	rec = serveCORS(cfg, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}
