package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"credbroker/internal/provider"
	"credbroker/internal/secret"
	"credbroker/internal/service"
)

// dbTimeout bounds every request's downstream work.
const dbTimeout = 10 * time.Second

// OAuthHandler bundles dependencies for the credential-flow endpoints.
type OAuthHandler struct {
	Svc              *service.OAuthService
	FrontendCallback string
}

func NewOAuthHandler(svc *service.OAuthService, frontendCallback string) *OAuthHandler {
	return &OAuthHandler{Svc: svc, FrontendCallback: frontendCallback}
}

// ----- DTOs -----

type loginResp struct {
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state"`
}
type createSessionReq struct {
	ExchangeCode string `json:"exchange_code"`
}
type sessionResp struct {
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}
type sessionReq struct {
	SessionID string `json:"session_id"`
}
type tokenResp struct {
	AccessToken string     `json:"access_token"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}
type userInfoResp struct {
	UserID         uint64     `json:"user_id"`
	ExternalUserID string     `json:"external_user_id"`
	Email          string     `json:"email,omitempty"`
	FirstName      string     `json:"first_name,omitempty"`
	LastName       string     `json:"last_name,omitempty"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
}

func clientInfo(c echo.Context) service.RequestInfo {
	return service.RequestInfo{
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}
}

// Login initiates the OAuth flow: returns the provider authorization URL
// with a fresh CSRF state embedded.
func (h *OAuthHandler) Login(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	authURL, state, err := h.Svc.BeginAuthorization(ctx, clientInfo(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to initiate login"})
	}
	return c.JSON(http.StatusOK, loginResp{AuthorizationURL: authURL, State: state})
}

// Callback handles the provider redirect. On success the browser is sent
// to the frontend with a one-time exchange code in the query; the session
// itself is only created when the client trades the code in, so no
// long-lived credential ever rides on a redirect.
func (h *OAuthHandler) Callback(c echo.Context) error {
	code := c.QueryParam("code")
	state := c.QueryParam("state")
	if code == "" || state == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code and state required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 45*time.Second)
	defer cancel()

	exchangeCode, err := h.Svc.HandleCallback(ctx, code, state, clientInfo(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidState):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired state"})
		case errors.Is(err, service.ErrNotWhitelisted):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "access denied: user not authorized"})
		case errors.Is(err, provider.ErrUpstream):
			return c.JSON(http.StatusBadGateway, echo.Map{"error": "identity provider unavailable"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "authentication failed"})
		}
	}

	redirect := h.FrontendCallback + "?exchange_code=" + url.QueryEscape(exchangeCode)
	return c.Redirect(http.StatusFound, redirect)
}

// CreateSession trades a one-time exchange code for a session.
func (h *OAuthHandler) CreateSession(c echo.Context) error {
	var req createSessionReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.ExchangeCode) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "exchange_code required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	sess, err := h.Svc.RedeemExchangeCode(ctx, strings.TrimSpace(req.ExchangeCode), clientInfo(c))
	if err != nil {
		if errors.Is(err, service.ErrInvalidExchangeCode) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired exchange code"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create session"})
	}
	return c.JSON(http.StatusCreated, sessionResp{SessionID: sess.SessionID, ExpiresAt: sess.ExpiresAt})
}

// Token returns a valid provider access token for a session, refreshing
// transparently when the stored one is expiring.
func (h *OAuthHandler) Token(c echo.Context) error {
	return h.token(c, false)
}

// RefreshToken forces an upstream refresh regardless of the stored expiry.
func (h *OAuthHandler) RefreshToken(c echo.Context) error {
	return h.token(c, true)
}

func (h *OAuthHandler) token(c echo.Context, force bool) error {
	var req sessionReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.SessionID) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "session_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 45*time.Second)
	defer cancel()

	var (
		tok service.AccessToken
		err error
	)
	if force {
		tok, err = h.Svc.ForceRefresh(ctx, strings.TrimSpace(req.SessionID))
	} else {
		tok, err = h.Svc.GetAccessToken(ctx, strings.TrimSpace(req.SessionID))
	}
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidSession):
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired session"})
		case errors.Is(err, service.ErrNoToken), errors.Is(err, service.ErrRefreshFailed):
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "no valid token; please re-authenticate"})
		case errors.Is(err, secret.ErrCrypto):
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "stored token unreadable"})
		case errors.Is(err, provider.ErrUpstream):
			return c.JSON(http.StatusBadGateway, echo.Map{"error": "identity provider unavailable"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve token"})
		}
	}
	return c.JSON(http.StatusOK, tokenResp{AccessToken: tok.Token, ExpiresAt: tok.ExpiresAt})
}

// UserInfo returns the profile record of the session owner.
func (h *OAuthHandler) UserInfo(c echo.Context) error {
	sessionID := strings.TrimSpace(c.QueryParam("session_id"))
	if sessionID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "session_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Svc.UserInfo(ctx, sessionID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidSession) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired session"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load user info"})
	}
	return c.JSON(http.StatusOK, userInfoResp{
		UserID:         u.ID,
		ExternalUserID: u.ExternalUserID,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		LastLoginAt:    u.LastLoginAt,
	})
}

// Logout revokes the session owner's token and terminates the session.
// Logging out an unknown session succeeds; there is nothing to undo.
func (h *OAuthHandler) Logout(c echo.Context) error {
	var req sessionReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.SessionID) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "session_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Svc.Logout(ctx, strings.TrimSpace(req.SessionID), clientInfo(c)); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}
