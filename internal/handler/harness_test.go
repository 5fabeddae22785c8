package handler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"credbroker/internal/model"
	"credbroker/internal/provider"
	"credbroker/internal/repository"
	"credbroker/internal/secret"
	"credbroker/internal/service"
)

// memStore is a single-mutex in-memory implementation of every store
// interface the services need. It keeps the HTTP tests hermetic: the full
// handler stack runs against it with no database.
type memStore struct {
	mu       sync.Mutex
	nextID   uint64
	users    map[string]model.User
	allowed  map[string]bool
	sessions map[string]model.UserSession
	tokens   map[uint64]model.OAuthToken
	states   map[string]time.Time
	codes    map[string]codeEntry
	events   []model.AuditEvent
}

type codeEntry struct {
	userID    uint64
	expiresAt time.Time
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[string]model.User),
		allowed:  make(map[string]bool),
		sessions: make(map[string]model.UserSession),
		tokens:   make(map[uint64]model.OAuthToken),
		states:   make(map[string]time.Time),
		codes:    make(map[string]codeEntry),
	}
}

func (m *memStore) GetByID(_ context.Context, id uint64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (m *memStore) GetByExternalID(_ context.Context, externalID string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[externalID]; ok {
		return u, nil
	}
	return model.User{}, repository.ErrNotFound
}

func (m *memStore) Upsert(_ context.Context, externalID, email, firstName, lastName string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[externalID]; ok {
		return u, nil
	}
	m.nextID++
	u := model.User{ID: m.nextID, ExternalUserID: externalID, Email: email, FirstName: firstName, LastName: lastName, IsActive: true}
	m.users[externalID] = u
	return u, nil
}

func (m *memStore) List(_ context.Context, limit, offset int) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.User
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *memStore) IsAllowed(_ context.Context, externalID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allowed[externalID], nil
}

func (m *memStore) Add(_ context.Context, externalID, description, addedBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowed[externalID] = true
	return nil
}

func (m *memStore) Deactivate(_ context.Context, externalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.allowed[externalID] {
		return repository.ErrNotFound
	}
	m.allowed[externalID] = false
	return nil
}

func (m *memStore) ListAllowed(_ context.Context, includeInactive bool) ([]model.AllowedUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AllowedUser
	for id, active := range m.allowed {
		if active || includeInactive {
			out = append(out, model.AllowedUser{ExternalUserID: id, IsActive: active})
		}
	}
	return out, nil
}

func (m *memStore) Create(_ context.Context, sessionID string, userID uint64, expiresAt time.Time, ip, userAgent string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID] = model.UserSession{SessionID: sessionID, UserID: userID, IsActive: true, ExpiresAt: expiresAt}
	return nil
}

func (m *memStore) GetActive(_ context.Context, sessionID string) (model.UserSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok || !s.IsActive || !time.Now().UTC().Before(s.ExpiresAt) {
		return model.UserSession{}, repository.ErrNotFound
	}
	return s, nil
}

func (m *memStore) Terminate(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		s.IsActive = false
		m.sessions[sessionID] = s
	}
	return nil
}

func (m *memStore) TerminateAllForUser(_ context.Context, userID uint64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.sessions {
		if s.UserID == userID && s.IsActive {
			s.IsActive = false
			m.sessions[id] = s
			n++
		}
	}
	return n, nil
}

func (m *memStore) PurgeSessions(_ context.Context) (int64, error) { return 0, nil }

func (m *memStore) ListByUser(_ context.Context, userID uint64, activeOnly bool) ([]model.UserSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.UserSession
	for _, s := range m.sessions {
		if s.UserID == userID && (s.IsActive || !activeOnly) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) CreateAndRevokePrior(_ context.Context, userID uint64, sealedAccess, sealedRefresh, tokenType string, expiresAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[userID] = model.OAuthToken{UserID: userID, EncryptedAccessToken: sealedAccess, EncryptedRefreshToken: sealedRefresh, TokenType: tokenType, ExpiresAt: expiresAt}
	return nil
}

func (m *memStore) GetActiveByUser(_ context.Context, userID uint64) (model.OAuthToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tok, ok := m.tokens[userID]; ok {
		return tok, nil
	}
	return model.OAuthToken{}, repository.ErrNotFound
}

func (m *memStore) RevokeAllForUser(_ context.Context, userID uint64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[userID]; ok {
		delete(m.tokens, userID)
		return 1, nil
	}
	return 0, nil
}

func (m *memStore) CreateState(_ context.Context, state string, expiresAt time.Time, ip, userAgent string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state] = expiresAt
	return nil
}

func (m *memStore) ConsumeState(_ context.Context, state string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.states[state]
	if !ok || !time.Now().UTC().Before(exp) {
		return repository.ErrAlreadyConsumed
	}
	delete(m.states, state)
	return nil
}

func (m *memStore) PurgeStates(_ context.Context) (int64, error) { return 0, nil }

func (m *memStore) CreateCode(_ context.Context, code string, userID uint64, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[code] = codeEntry{userID: userID, expiresAt: expiresAt}
	return nil
}

func (m *memStore) ConsumeCode(_ context.Context, code string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.codes[code]
	if !ok || !time.Now().UTC().Before(e.expiresAt) {
		return 0, repository.ErrAlreadyConsumed
	}
	delete(m.codes, code)
	return e.userID, nil
}

func (m *memStore) PurgeCodes(_ context.Context) (int64, error) { return 0, nil }

func (m *memStore) Insert(_ context.Context, ev model.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *memStore) ListRecent(_ context.Context, kind string, limit int) ([]model.AuditEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AuditEvent
	for _, ev := range m.events {
		if kind == "" || ev.EventKind == kind {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *memStore) Counts(_ context.Context) (model.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := model.Stats{
		TotalUsers:   int64(len(m.users)),
		ActiveTokens: int64(len(m.tokens)),
	}
	for _, active := range m.allowed {
		if active {
			s.WhitelistedUsers++
		}
	}
	now := time.Now().UTC()
	for _, sess := range m.sessions {
		if sess.IsActive && now.Before(sess.ExpiresAt) {
			s.ActiveSessions++
		}
	}
	return s, nil
}

// Narrow adapters so one memStore can satisfy several interfaces whose
// method names collide.

type stateAdapter struct{ *memStore }

func (a stateAdapter) Create(ctx context.Context, state string, expiresAt time.Time, ip, ua string) error {
	return a.CreateState(ctx, state, expiresAt, ip, ua)
}
func (a stateAdapter) Consume(ctx context.Context, state string) error {
	return a.ConsumeState(ctx, state)
}
func (a stateAdapter) PurgeExpired(ctx context.Context) (int64, error) { return a.PurgeStates(ctx) }

type codeAdapter struct{ *memStore }

func (a codeAdapter) Create(ctx context.Context, code string, userID uint64, expiresAt time.Time) error {
	return a.CreateCode(ctx, code, userID, expiresAt)
}
func (a codeAdapter) Consume(ctx context.Context, code string) (uint64, error) {
	return a.ConsumeCode(ctx, code)
}
func (a codeAdapter) PurgeExpired(ctx context.Context) (int64, error) { return a.PurgeCodes(ctx) }

type sessionAdapter struct{ *memStore }

func (a sessionAdapter) PurgeExpired(ctx context.Context) (int64, error) {
	return a.PurgeSessions(ctx)
}

type allowedAdapter struct{ *memStore }

func (a allowedAdapter) List(ctx context.Context, includeInactive bool) ([]model.AllowedUser, error) {
	return a.ListAllowed(ctx, includeInactive)
}

// stubProvider answers the identity-provider calls with fixed data.
type stubProvider struct {
	profile provider.Profile
}

func (p *stubProvider) AuthorizeURL(state string) string {
	return "https://provider.example/authorize?state=" + state
}

func (p *stubProvider) ExchangeCode(_ context.Context, code string) (provider.TokenPair, error) {
	return provider.TokenPair{
		AccessToken:  "prov-access",
		RefreshToken: "prov-refresh",
		TokenType:    "Bearer",
		ExpiresAt:    time.Now().UTC().Add(time.Hour),
	}, nil
}

func (p *stubProvider) RefreshToken(_ context.Context, refreshToken string) (provider.TokenPair, error) {
	return provider.TokenPair{
		AccessToken: "refreshed-access",
		TokenType:   "Bearer",
		ExpiresAt:   time.Now().UTC().Add(time.Hour),
	}, nil
}

func (p *stubProvider) FetchProfile(_ context.Context, accessToken string) (provider.Profile, error) {
	return p.profile, nil
}

type testEnv struct {
	store    *memStore
	oauthSvc *service.OAuthService
	adminSvc *service.AdminService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newMemStore()
	store.allowed["ext-42"] = true

	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	sealer, err := secret.NewSealer(key)
	require.NoError(t, err)

	hash, err := secret.HashSecret("s3cret", 4)
	require.NoError(t, err)

	prov := &stubProvider{profile: provider.Profile{ExternalUserID: "ext-42", Email: "dev@example.com"}}
	auditSvc := service.NewAuditService(store, nil, nil)
	sessionSvc := service.NewSessionService(sessionAdapter{store}, time.Hour)
	tokenSvc := service.NewTokenService(store, prov, sealer, auditSvc, time.Minute)

	oauthSvc := service.NewOAuthService(service.OAuthServiceDeps{
		Users:       store,
		Allowed:     allowedAdapter{store},
		States:      stateAdapter{store},
		Codes:       codeAdapter{store},
		Sessions:    sessionSvc,
		Tokens:      tokenSvc,
		Provider:    prov,
		Audit:       auditSvc,
		StateTTL:    10 * time.Minute,
		ExchangeTTL: 5 * time.Minute,
	})
	adminSvc := service.NewAdminService(service.AdminServiceDeps{
		Allowed:      allowedAdapter{store},
		Users:        store,
		Sessions:     sessionAdapter{store},
		Tokens:       tokenSvc,
		AuditLog:     store,
		Stats:        store,
		Audit:        auditSvc,
		Username:     "admin",
		PasswordHash: hash,
		JWTSecret:    "test-jwt-secret",
		TokenTTL:     time.Hour,
	})
	return &testEnv{store: store, oauthSvc: oauthSvc, adminSvc: adminSvc}
}
