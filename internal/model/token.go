package model

import "time"

// OAuthToken models an entry in the `oauth_tokens` table. Both provider
// tokens are stored AES-GCM sealed; the plaintext never touches the
// database. At most one row per user has is_revoked=false: every insert
// marks the prior active rows revoked inside the same transaction, so the
// table doubles as a refresh history.
//
// Fields:
//  ID                    – primary key identifier.
//  UserID                – owning user.
//  EncryptedAccessToken  – sealed access token.
//  EncryptedRefreshToken – sealed refresh token ("" when the provider
//                          issued none).
//  TokenType             – provider token type, normally "Bearer".
//  ExpiresAt             – access token expiry (nullable; some providers
//                          issue non-expiring tokens).
//  IsRevoked             – superseded or explicitly revoked.
//  CreatedAt             – timestamp of creation.
//  UpdatedAt             – timestamp of last update.
type OAuthToken struct {
	ID                    uint64     // oauth_tokens.id
	UserID                uint64     // oauth_tokens.user_id
	EncryptedAccessToken  string     // oauth_tokens.encrypted_access_token
	EncryptedRefreshToken string     // oauth_tokens.encrypted_refresh_token
	TokenType             string     // oauth_tokens.token_type
	ExpiresAt             *time.Time // oauth_tokens.expires_at (nullable)
	IsRevoked             bool       // oauth_tokens.is_revoked
	CreatedAt             time.Time  // oauth_tokens.created_at
	UpdatedAt             time.Time  // oauth_tokens.updated_at
}
