package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credbroker/internal/middleware"
	"credbroker/internal/service"
)

func newAdminApp(t *testing.T) (*echo.Echo, *testEnv) {
	t.Helper()
	env := newTestEnv(t)
	h := NewAdminHandler(env.adminSvc, env.oauthSvc)

	e := echo.New()
	g := e.Group("/admin")
	g.Use(middleware.AdminAuth(env.adminSvc))
	g.POST("/login", h.Login)
	g.GET("/whitelist", h.ListWhitelist)
	g.POST("/whitelist", h.AddWhitelist)
	g.DELETE("/whitelist/:external_user_id", h.RemoveWhitelist)
	g.GET("/users", h.ListUsers)
	g.GET("/users/:id/sessions", h.ListUserSessions)
	g.DELETE("/users/:id/sessions", h.TerminateUserSessions)
	g.DELETE("/sessions/:session_id", h.TerminateSession)
	g.GET("/statistics", h.Statistics)
	g.GET("/audit", h.Audit)
	g.POST("/maintenance/purge", h.Purge)
	return e, env
}

func doAdmin(e *echo.Echo, method, path, body string, auth func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if auth != nil {
		auth(req)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func basicAuth(req *http.Request) { req.SetBasicAuth("admin", "s3cret") }

func TestAdminAuth(t *testing.T) {
	t.Run("rejects missing credentials with a challenge", func(t *testing.T) {
		e, _ := newAdminApp(t)
		rec := doAdmin(e, http.MethodGet, "/admin/whitelist", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")
	})

	t.Run("rejects a wrong password", func(t *testing.T) {
		e, _ := newAdminApp(t)
		rec := doAdmin(e, http.MethodGet, "/admin/whitelist", "", func(req *http.Request) {
			req.SetBasicAuth("admin", "wrong")
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("accepts basic credentials", func(t *testing.T) {
		e, _ := newAdminApp(t)
		rec := doAdmin(e, http.MethodGet, "/admin/whitelist", "", basicAuth)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("accepts an issued bearer token", func(t *testing.T) {
		e, _ := newAdminApp(t)
		rec := doAdmin(e, http.MethodPost, "/admin/login", "", basicAuth)
		require.Equal(t, http.StatusOK, rec.Code)
		token, _ := decode(t, rec)["token"].(string)
		require.NotEmpty(t, token)

		rec = doAdmin(e, http.MethodGet, "/admin/whitelist", "", func(req *http.Request) {
			req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
		})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejects a forged bearer token", func(t *testing.T) {
		e, _ := newAdminApp(t)
		rec := doAdmin(e, http.MethodGet, "/admin/whitelist", "", func(req *http.Request) {
			req.Header.Set(echo.HeaderAuthorization, "Bearer forged")
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAdminWhitelistEndpoints(t *testing.T) {
	t.Run("add then remove", func(t *testing.T) {
		e, env := newAdminApp(t)

		rec := doAdmin(e, http.MethodPost, "/admin/whitelist", `{"external_user_id":"ext-99","description":"new teammate"}`, basicAuth)
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.True(t, env.store.allowed["ext-99"])

		rec = doAdmin(e, http.MethodDelete, "/admin/whitelist/ext-99", "", basicAuth)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, env.store.allowed["ext-99"])
	})

	t.Run("add requires an external id", func(t *testing.T) {
		e, _ := newAdminApp(t)
		rec := doAdmin(e, http.MethodPost, "/admin/whitelist", `{"description":"nameless"}`, basicAuth)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("removing a missing entry returns 404", func(t *testing.T) {
		e, _ := newAdminApp(t)
		rec := doAdmin(e, http.MethodDelete, "/admin/whitelist/ext-missing", "", basicAuth)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestAdminSessionEndpoints(t *testing.T) {
	e, env := newAdminApp(t)
	ctx := context.Background()
	info := service.RequestInfo{IPAddress: "203.0.113.9", UserAgent: "test-agent"}

	// Seed one user with an active session through the service layer.
	_, state, err := env.oauthSvc.BeginAuthorization(ctx, info)
	require.NoError(t, err)
	code, err := env.oauthSvc.HandleCallback(ctx, "prov-code", state, info)
	require.NoError(t, err)
	sess, err := env.oauthSvc.RedeemExchangeCode(ctx, code, info)
	require.NoError(t, err)

	rec := doAdmin(e, http.MethodGet, "/admin/users/1/sessions", "", basicAuth)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doAdmin(e, http.MethodDelete, "/admin/sessions/"+sess.SessionID, "", basicAuth)
	require.Equal(t, http.StatusOK, rec.Code)

	_, err = env.store.GetActive(ctx, sess.SessionID)
	require.Error(t, err)
}

func TestAdminStatisticsEndpoint(t *testing.T) {
	e, env := newAdminApp(t)
	ctx := context.Background()
	info := service.RequestInfo{IPAddress: "203.0.113.9", UserAgent: "test-agent"}

	// One authorized user with an active session and a stored token.
	_, state, err := env.oauthSvc.BeginAuthorization(ctx, info)
	require.NoError(t, err)
	code, err := env.oauthSvc.HandleCallback(ctx, "prov-code", state, info)
	require.NoError(t, err)
	_, err = env.oauthSvc.RedeemExchangeCode(ctx, code, info)
	require.NoError(t, err)

	rec := doAdmin(e, http.MethodGet, "/admin/statistics", "", basicAuth)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(1), body["total_users"])
	assert.Equal(t, float64(1), body["whitelisted_users"])
	assert.Equal(t, float64(1), body["active_sessions"])
	assert.Equal(t, float64(1), body["active_tokens"])
}

func TestAdminPurgeEndpoint(t *testing.T) {
	e, _ := newAdminApp(t)
	rec := doAdmin(e, http.MethodPost, "/admin/maintenance/purge", "", basicAuth)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Contains(t, body, "sessions")
	assert.Contains(t, body, "states")
	assert.Contains(t, body, "exchange_codes")
}

func TestAdminAuditEndpoint(t *testing.T) {
	e, _ := newAdminApp(t)

	// Whitelist changes leave audit events behind.
	rec := doAdmin(e, http.MethodPost, "/admin/whitelist", `{"external_user_id":"ext-77"}`, basicAuth)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doAdmin(e, http.MethodGet, "/admin/audit?kind=whitelist_added", "", basicAuth)
	require.Equal(t, http.StatusOK, rec.Code)
	events, _ := decode(t, rec)["events"].([]any)
	assert.NotEmpty(t, events)
}
