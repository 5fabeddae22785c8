package model

// Stats aggregates row counts across the broker's tables for the admin
// dashboard.
type Stats struct {
	TotalUsers       int64 // rows in users
	WhitelistedUsers int64 // active rows in allowed_users
	ActiveSessions   int64 // unexpired active rows in user_sessions
	ActiveTokens     int64 // unrevoked rows in oauth_tokens
}
