// Package provider implements the broker's client for the external
// identity provider: building the authorization URL, exchanging and
// refreshing token pairs, and fetching the user profile. Every failure,
// including timeouts, surfaces as ErrUpstream.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// ErrUpstream is returned for any identity-provider failure. Callers never
// see provider internals; messages carry the operation and status only.
var ErrUpstream = errors.New("identity provider request failed")

// defaultTimeout bounds every upstream call; a hung provider must not hold
// a request (or the per-user refresh lock) indefinitely.
const defaultTimeout = 30 * time.Second

// TokenPair is the result of a code exchange or a refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string    // empty when the provider rotated nothing
	TokenType    string    // normally "Bearer"
	ExpiresAt    time.Time // zero when the provider reports no expiry
}

// Profile is the subset of the provider's user profile the broker needs.
type Profile struct {
	ExternalUserID string `json:"id"`
	Email          string `json:"email"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
}

// Config carries the provider endpoints and client credentials.
type Config struct {
	AuthorizeURL string
	TokenURL     string
	ProfileURL   string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	UserAgent    string
}

// Client talks to the identity provider. It wraps oauth2.Config for the
// token endpoints and a plain HTTP client for the profile endpoint.
type Client struct {
	oauth      *oauth2.Config
	profileURL string
	httpClient *http.Client
}

// userAgentTransport stamps the provider-required User-Agent on every
// outgoing request, including the ones oauth2 issues internally.
type userAgentTransport struct {
	agent string
	base  http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.agent)
	rt := t.base
	if rt == nil {
		rt = http.DefaultTransport
	}
	return rt.RoundTrip(clone)
}

// NewClient builds a provider client from config.
func NewClient(cfg Config) *Client {
	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthorizeURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		profileURL: cfg.ProfileURL,
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: &userAgentTransport{agent: cfg.UserAgent},
		},
	}
}

// AuthorizeURL builds the provider's authorization URL embedding the CSRF
// state token.
func (c *Client) AuthorizeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// ExchangeCode trades an authorization code for a token pair.
func (c *Client) ExchangeCode(ctx context.Context, code string) (TokenPair, error) {
	tok, err := c.oauth.Exchange(c.oauthContext(ctx), code)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: code exchange: %v", ErrUpstream, err)
	}
	return pairFromToken(tok), nil
}

// RefreshToken trades a refresh token for a new pair. The provider may
// rotate the refresh token; callers must persist whatever comes back.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (TokenPair, error) {
	src := c.oauth.TokenSource(c.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: token refresh: %v", ErrUpstream, err)
	}
	pair := pairFromToken(tok)
	if pair.RefreshToken == refreshToken {
		// oauth2 echoes the old refresh token when the provider sent none;
		// report it as absent so the vault keeps its stored copy untouched.
		pair.RefreshToken = ""
	}
	return pair, nil
}

// FetchProfile loads the user profile for an access token and extracts the
// external user id plus display fields.
func (c *Client) FetchProfile(ctx context.Context, accessToken string) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.profileURL, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: build profile request: %v", ErrUpstream, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: fetch profile: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Profile{}, fmt.Errorf("%w: fetch profile: status %d", ErrUpstream, resp.StatusCode)
	}

	var raw struct {
		ID        json.Number `json:"id"`
		Email     string      `json:"email"`
		FirstName string      `json:"first_name"`
		LastName  string      `json:"last_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return Profile{}, fmt.Errorf("%w: decode profile: %v", ErrUpstream, err)
	}
	if raw.ID.String() == "" {
		return Profile{}, fmt.Errorf("%w: profile missing user id", ErrUpstream)
	}
	return Profile{
		ExternalUserID: raw.ID.String(),
		Email:          raw.Email,
		FirstName:      raw.FirstName,
		LastName:       raw.LastName,
	}, nil
}

// oauthContext injects the broker's HTTP client (timeout + User-Agent)
// into the oauth2 library.
func (c *Client) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func pairFromToken(tok *oauth2.Token) TokenPair {
	p := TokenPair{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
	}
	if p.TokenType == "" {
		p.TokenType = "Bearer"
	}
	if !tok.Expiry.IsZero() {
		p.ExpiresAt = tok.Expiry.UTC()
	}
	return p
}
