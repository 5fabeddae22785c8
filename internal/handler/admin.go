package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"credbroker/internal/repository"
	"credbroker/internal/service"
)

// AdminHandler bundles dependencies for the administrative endpoints. All
// routes it serves sit behind the admin auth middleware.
type AdminHandler struct {
	Admin *service.AdminService
	OAuth *service.OAuthService
}

func NewAdminHandler(admin *service.AdminService, oauth *service.OAuthService) *AdminHandler {
	return &AdminHandler{Admin: admin, OAuth: oauth}
}

// ----- DTOs -----

type addAllowedReq struct {
	ExternalUserID string `json:"external_user_id"`
	Description    string `json:"description"`
}
type adminTokenResp struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
type purgeResp struct {
	Sessions      int64 `json:"sessions"`
	States        int64 `json:"states"`
	ExchangeCodes int64 `json:"exchange_codes"`
}
type statsResp struct {
	TotalUsers       int64 `json:"total_users"`
	WhitelistedUsers int64 `json:"whitelisted_users"`
	ActiveSessions   int64 `json:"active_sessions"`
	ActiveTokens     int64 `json:"active_tokens"`
}
type allowedUserResp struct {
	ExternalUserID string    `json:"external_user_id"`
	Description    string    `json:"description,omitempty"`
	AddedBy        string    `json:"added_by,omitempty"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}
type userResp struct {
	ID             uint64     `json:"id"`
	ExternalUserID string     `json:"external_user_id"`
	Email          string     `json:"email,omitempty"`
	FirstName      string     `json:"first_name,omitempty"`
	LastName       string     `json:"last_name,omitempty"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
}
type adminSessionResp struct {
	SessionID      string    `json:"session_id"`
	UserID         uint64    `json:"user_id"`
	IPAddress      string    `json:"ip_address,omitempty"`
	UserAgent      string    `json:"user_agent,omitempty"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}
type auditEventResp struct {
	ID             uint64            `json:"id"`
	EventKind      string            `json:"event_kind"`
	UserID         *uint64           `json:"user_id,omitempty"`
	ExternalUserID string            `json:"external_user_id,omitempty"`
	SessionID      string            `json:"session_id,omitempty"`
	IPAddress      string            `json:"ip_address,omitempty"`
	Success        bool              `json:"success"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Login issues a short-lived bearer token; Basic credentials were already
// verified by the middleware.
func (h *AdminHandler) Login(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	token, exp, err := h.Admin.IssueToken(ctx, clientInfo(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to issue token"})
	}
	return c.JSON(http.StatusOK, adminTokenResp{Token: token, ExpiresAt: exp})
}

// ListWhitelist returns whitelist entries; ?all=true includes deactivated.
func (h *AdminHandler) ListWhitelist(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	entries, err := h.Admin.ListAllowedUsers(ctx, c.QueryParam("all") == "true")
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]allowedUserResp, 0, len(entries))
	for _, e := range entries {
		out = append(out, allowedUserResp{
			ExternalUserID: e.ExternalUserID,
			Description:    e.Description,
			AddedBy:        e.AddedBy,
			IsActive:       e.IsActive,
			CreatedAt:      e.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"allowed_users": out})
}

// AddWhitelist whitelists an external user id.
func (h *AdminHandler) AddWhitelist(c echo.Context) error {
	var req addAllowedReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.ExternalUserID) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "external_user_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Admin.AddAllowedUser(ctx, strings.TrimSpace(req.ExternalUserID), req.Description, clientInfo(c)); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to add whitelist entry"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "whitelisted"})
}

// RemoveWhitelist deactivates a whitelist entry. Existing sessions are
// untouched; pair with TerminateUserSessions to cut access immediately.
func (h *AdminHandler) RemoveWhitelist(c echo.Context) error {
	externalID := c.Param("external_user_id")
	if externalID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "external_user_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Admin.RemoveAllowedUser(ctx, externalID, clientInfo(c)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no active whitelist entry"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to remove whitelist entry"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "removed"})
}

// ListUsers returns local user records.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	users, err := h.Admin.ListUsers(ctx, limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]userResp, 0, len(users))
	for _, u := range users {
		out = append(out, userResp{
			ID:             u.ID,
			ExternalUserID: u.ExternalUserID,
			Email:          u.Email,
			FirstName:      u.FirstName,
			LastName:       u.LastName,
			IsActive:       u.IsActive,
			CreatedAt:      u.CreatedAt,
			LastLoginAt:    u.LastLoginAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"users": out})
}

// ListUserSessions returns a user's sessions; ?all=true includes inactive.
func (h *AdminHandler) ListUserSessions(c echo.Context) error {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	sessions, err := h.Admin.ListUserSessions(ctx, userID, c.QueryParam("all") != "true")
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]adminSessionResp, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, adminSessionResp{
			SessionID:      s.SessionID,
			UserID:         s.UserID,
			IPAddress:      s.IPAddress,
			UserAgent:      s.UserAgent,
			IsActive:       s.IsActive,
			CreatedAt:      s.CreatedAt,
			ExpiresAt:      s.ExpiresAt,
			LastActivityAt: s.LastActivityAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"sessions": out})
}

// TerminateSession deactivates one session by id.
func (h *AdminHandler) TerminateSession(c echo.Context) error {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "session_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Admin.TerminateSession(ctx, sessionID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to terminate session"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "terminated"})
}

// TerminateUserSessions cuts every active session of a user and revokes
// their token record.
func (h *AdminHandler) TerminateUserSessions(c echo.Context) error {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	n, err := h.Admin.TerminateUserSessions(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to terminate sessions"})
	}
	return c.JSON(http.StatusOK, echo.Map{"terminated": n})
}

// Statistics returns aggregate counts for the dashboard.
func (h *AdminHandler) Statistics(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	s, err := h.Admin.Statistics(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, statsResp{
		TotalUsers:       s.TotalUsers,
		WhitelistedUsers: s.WhitelistedUsers,
		ActiveSessions:   s.ActiveSessions,
		ActiveTokens:     s.ActiveTokens,
	})
}

// Audit returns recent audit events, optionally filtered by ?kind=.
func (h *AdminHandler) Audit(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	events, err := h.Admin.RecentAuditEvents(ctx, c.QueryParam("kind"), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]auditEventResp, 0, len(events))
	for _, ev := range events {
		out = append(out, auditEventResp{
			ID:             ev.ID,
			EventKind:      ev.EventKind,
			UserID:         ev.UserID,
			ExternalUserID: ev.ExternalUserID,
			SessionID:      ev.SessionID,
			IPAddress:      ev.IPAddress,
			Success:        ev.Success,
			ErrorMessage:   ev.ErrorMessage,
			Metadata:       ev.Metadata,
			CreatedAt:      ev.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"events": out})
}

// Purge sweeps expired sessions, states, and exchange codes. Cleanup is
// driven from here (or cron hitting here), never from the request path.
func (h *AdminHandler) Purge(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	sessions, states, codes, err := h.OAuth.PurgeExpired(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "purge failed"})
	}
	return c.JSON(http.StatusOK, purgeResp{Sessions: sessions, States: states, ExchangeCodes: codes})
}
