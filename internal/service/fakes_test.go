package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"credbroker/internal/model"
	"credbroker/internal/provider"
	"credbroker/internal/repository"
)

// In-memory store fakes. They mirror the repository contracts, including
// the atomic one-time consume semantics, so the services under test see
// the same behavior MySQL gives them.

type fakeUserStore struct {
	mu     sync.Mutex
	nextID uint64
	users  map[string]model.User // keyed by external id
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]model.User)}
}

func (f *fakeUserStore) GetByID(_ context.Context, id uint64) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (f *fakeUserStore) GetByExternalID(_ context.Context, externalID string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[externalID]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserStore) Upsert(_ context.Context, externalID, email, firstName, lastName string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	if u, ok := f.users[externalID]; ok {
		u.Email, u.FirstName, u.LastName = email, firstName, lastName
		u.LastLoginAt = &now
		f.users[externalID] = u
		return u, nil
	}
	f.nextID++
	u := model.User{
		ID:             f.nextID,
		ExternalUserID: externalID,
		Email:          email,
		FirstName:      firstName,
		LastName:       lastName,
		IsActive:       true,
		CreatedAt:      now,
		LastLoginAt:    &now,
	}
	f.users[externalID] = u
	return u, nil
}

func (f *fakeUserStore) List(_ context.Context, limit, offset int) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.User
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeUserStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users)
}

type fakeAllowedStore struct {
	mu      sync.Mutex
	entries map[string]model.AllowedUser
}

func newFakeAllowedStore(externalIDs ...string) *fakeAllowedStore {
	f := &fakeAllowedStore{entries: make(map[string]model.AllowedUser)}
	for _, id := range externalIDs {
		f.entries[id] = model.AllowedUser{ExternalUserID: id, IsActive: true}
	}
	return f
}

func (f *fakeAllowedStore) IsAllowed(_ context.Context, externalID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[externalID]
	return ok && e.IsActive, nil
}

func (f *fakeAllowedStore) Add(_ context.Context, externalID, description, addedBy string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[externalID] = model.AllowedUser{
		ExternalUserID: externalID,
		Description:    description,
		AddedBy:        addedBy,
		IsActive:       true,
	}
	return nil
}

func (f *fakeAllowedStore) Deactivate(_ context.Context, externalID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[externalID]
	if !ok || !e.IsActive {
		return repository.ErrNotFound
	}
	e.IsActive = false
	f.entries[externalID] = e
	return nil
}

func (f *fakeAllowedStore) List(_ context.Context, includeInactive bool) ([]model.AllowedUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.AllowedUser
	for _, e := range f.entries {
		if e.IsActive || includeInactive {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]model.UserSession
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]model.UserSession)}
}

func (f *fakeSessionStore) Create(_ context.Context, sessionID string, userID uint64, expiresAt time.Time, ip, userAgent string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	f.sessions[sessionID] = model.UserSession{
		SessionID:      sessionID,
		UserID:         userID,
		IPAddress:      ip,
		UserAgent:      userAgent,
		IsActive:       true,
		CreatedAt:      now,
		ExpiresAt:      expiresAt,
		LastActivityAt: now,
	}
	return nil
}

func (f *fakeSessionStore) GetActive(_ context.Context, sessionID string) (model.UserSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok || !s.IsActive || !time.Now().UTC().Before(s.ExpiresAt) {
		return model.UserSession{}, repository.ErrNotFound
	}
	s.LastActivityAt = time.Now().UTC()
	f.sessions[sessionID] = s
	return s, nil
}

func (f *fakeSessionStore) Terminate(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[sessionID]; ok {
		s.IsActive = false
		f.sessions[sessionID] = s
	}
	return nil
}

func (f *fakeSessionStore) TerminateAllForUser(_ context.Context, userID uint64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, s := range f.sessions {
		if s.UserID == userID && s.IsActive {
			s.IsActive = false
			f.sessions[id] = s
			n++
		}
	}
	return n, nil
}

func (f *fakeSessionStore) PurgeExpired(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	var n int64
	for id, s := range f.sessions {
		if s.IsActive && !now.Before(s.ExpiresAt) {
			s.IsActive = false
			f.sessions[id] = s
			n++
		}
	}
	return n, nil
}

func (f *fakeSessionStore) ListByUser(_ context.Context, userID uint64, activeOnly bool) ([]model.UserSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.UserSession
	for _, s := range f.sessions {
		if s.UserID == userID && (s.IsActive || !activeOnly) {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeTokenStore struct {
	mu      sync.Mutex
	records []model.OAuthToken
	nextID  uint64
}

func newFakeTokenStore() *fakeTokenStore { return &fakeTokenStore{} }

func (f *fakeTokenStore) CreateAndRevokePrior(_ context.Context, userID uint64, sealedAccess, sealedRefresh, tokenType string, expiresAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.records {
		if f.records[i].UserID == userID {
			f.records[i].IsRevoked = true
		}
	}
	f.nextID++
	f.records = append(f.records, model.OAuthToken{
		ID:                    f.nextID,
		UserID:                userID,
		EncryptedAccessToken:  sealedAccess,
		EncryptedRefreshToken: sealedRefresh,
		TokenType:             tokenType,
		ExpiresAt:             expiresAt,
		CreatedAt:             time.Now().UTC(),
	})
	return nil
}

func (f *fakeTokenStore) GetActiveByUser(_ context.Context, userID uint64) (model.OAuthToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.records) - 1; i >= 0; i-- {
		if f.records[i].UserID == userID && !f.records[i].IsRevoked {
			return f.records[i], nil
		}
	}
	return model.OAuthToken{}, repository.ErrNotFound
}

func (f *fakeTokenStore) RevokeAllForUser(_ context.Context, userID uint64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for i := range f.records {
		if f.records[i].UserID == userID && !f.records[i].IsRevoked {
			f.records[i].IsRevoked = true
			n++
		}
	}
	return n, nil
}

func (f *fakeTokenStore) activeCount(userID uint64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for i := range f.records {
		if f.records[i].UserID == userID && !f.records[i].IsRevoked {
			n++
		}
	}
	return n
}

// tamper overwrites the active record's sealed access token.
func (f *fakeTokenStore) tamper(userID uint64, sealed string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.records {
		if f.records[i].UserID == userID && !f.records[i].IsRevoked {
			f.records[i].EncryptedAccessToken = sealed
		}
	}
}

type oneTimeEntry struct {
	userID    uint64
	expiresAt time.Time
	used      bool
}

type fakeStateStore struct {
	mu     sync.Mutex
	states map[string]*oneTimeEntry
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{states: make(map[string]*oneTimeEntry)}
}

func (f *fakeStateStore) Create(_ context.Context, state string, expiresAt time.Time, ip, userAgent string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[state] = &oneTimeEntry{expiresAt: expiresAt}
	return nil
}

func (f *fakeStateStore) Consume(_ context.Context, state string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.states[state]
	if !ok || e.used || !time.Now().UTC().Before(e.expiresAt) {
		return repository.ErrAlreadyConsumed
	}
	e.used = true
	return nil
}

func (f *fakeStateStore) PurgeExpired(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	var n int64
	for s, e := range f.states {
		if !now.Before(e.expiresAt) {
			delete(f.states, s)
			n++
		}
	}
	return n, nil
}

type fakeCodeStore struct {
	mu    sync.Mutex
	codes map[string]*oneTimeEntry
}

func newFakeCodeStore() *fakeCodeStore {
	return &fakeCodeStore{codes: make(map[string]*oneTimeEntry)}
}

func (f *fakeCodeStore) Create(_ context.Context, code string, userID uint64, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[code] = &oneTimeEntry{userID: userID, expiresAt: expiresAt}
	return nil
}

func (f *fakeCodeStore) Consume(_ context.Context, code string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.codes[code]
	if !ok || e.used || !time.Now().UTC().Before(e.expiresAt) {
		return 0, repository.ErrAlreadyConsumed
	}
	e.used = true
	return e.userID, nil
}

func (f *fakeCodeStore) PurgeExpired(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	var n int64
	for c, e := range f.codes {
		if !now.Before(e.expiresAt) {
			delete(f.codes, c)
			n++
		}
	}
	return n, nil
}

type fakeAuditStore struct {
	mu     sync.Mutex
	events []model.AuditEvent
}

func newFakeAuditStore() *fakeAuditStore { return &fakeAuditStore{} }

func (f *fakeAuditStore) Insert(_ context.Context, ev model.AuditEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeAuditStore) ListRecent(_ context.Context, kind string, limit int) ([]model.AuditEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.AuditEvent
	for _, ev := range f.events {
		if kind == "" || ev.EventKind == kind {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeAuditStore) countKind(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, ev := range f.events {
		if ev.EventKind == kind {
			n++
		}
	}
	return n
}

func (f *fakeAuditStore) lastKind(kind string) (model.AuditEvent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.events) - 1; i >= 0; i-- {
		if f.events[i].EventKind == kind {
			return f.events[i], true
		}
	}
	return model.AuditEvent{}, false
}

// fakeProvider stubs the identity provider and counts upstream calls.
type fakeProvider struct {
	exchangePair provider.TokenPair
	exchangeErr  error
	refreshPair  provider.TokenPair
	refreshErr   error
	refreshDelay time.Duration
	profile      provider.Profile
	profileErr   error

	exchangeCalls atomic.Int32
	refreshCalls  atomic.Int32
}

func (f *fakeProvider) AuthorizeURL(state string) string {
	return "https://provider.example/authorize?state=" + state
}

func (f *fakeProvider) ExchangeCode(_ context.Context, code string) (provider.TokenPair, error) {
	f.exchangeCalls.Add(1)
	if f.exchangeErr != nil {
		return provider.TokenPair{}, f.exchangeErr
	}
	return f.exchangePair, nil
}

func (f *fakeProvider) RefreshToken(_ context.Context, refreshToken string) (provider.TokenPair, error) {
	if f.refreshDelay > 0 {
		time.Sleep(f.refreshDelay)
	}
	f.refreshCalls.Add(1)
	if f.refreshErr != nil {
		return provider.TokenPair{}, f.refreshErr
	}
	return f.refreshPair, nil
}

func (f *fakeProvider) FetchProfile(_ context.Context, accessToken string) (provider.Profile, error) {
	if f.profileErr != nil {
		return provider.Profile{}, f.profileErr
	}
	return f.profile, nil
}
