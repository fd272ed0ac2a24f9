package tokenstore

import (
	"time"

	"golang.org/x/oauth2"

	"tikpost/internal/tiktok"
)

// Credential is the persisted authorization record. Timestamps are stored as
// Unix milliseconds; zero ExpiresAt means the token must be treated as
// already expired.
type Credential struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token,omitempty"`
	ExpiresAt        time.Time `json:"-"`
	RefreshExpiresAt time.Time `json:"-"`
	OpenID           string    `json:"open_id,omitempty"`
	Scope            string    `json:"scope,omitempty"`
	TokenType        string    `json:"token_type,omitempty"`
}

type credentialFile struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token,omitempty"`
	ExpiresAt        int64  `json:"expires_at,omitempty"`
	RefreshExpiresAt int64  `json:"refresh_expires_at,omitempty"`
	OpenID           string `json:"open_id,omitempty"`
	Scope            string `json:"scope,omitempty"`
	TokenType        string `json:"token_type,omitempty"`
}

func (c *Credential) toFile() credentialFile {
	return credentialFile{
		AccessToken:      c.AccessToken,
		RefreshToken:     c.RefreshToken,
		ExpiresAt:        unixMilli(c.ExpiresAt),
		RefreshExpiresAt: unixMilli(c.RefreshExpiresAt),
		OpenID:           c.OpenID,
		Scope:            c.Scope,
		TokenType:        c.TokenType,
	}
}

func (f credentialFile) credential() *Credential {
	return &Credential{
		AccessToken:      f.AccessToken,
		RefreshToken:     f.RefreshToken,
		ExpiresAt:        fromUnixMilli(f.ExpiresAt),
		RefreshExpiresAt: fromUnixMilli(f.RefreshExpiresAt),
		OpenID:           f.OpenID,
		Scope:            f.Scope,
		TokenType:        f.TokenType,
	}
}

// expiring reports whether the access token is absent, has no expiry, or
// expires within margin of now.
func (c *Credential) expiring(now time.Time, margin time.Duration) bool {
	if c.AccessToken == "" || c.ExpiresAt.IsZero() {
		return true
	}
	return !now.Before(c.ExpiresAt.Add(-margin))
}

// OAuth2 converts the record for use with golang.org/x/oauth2 helpers.
func (c *Credential) OAuth2() *oauth2.Token {
	tokenType := c.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    tokenType,
		Expiry:       c.ExpiresAt,
	}
}

// fromTokenResponse builds a fresh record issued at now.
func fromTokenResponse(resp *tiktok.TokenResponse, now time.Time) *Credential {
	cred := &Credential{}
	overlay(cred, resp, now)
	return cred
}

// overlay writes the fields present in resp over cred. Fields the response
// omits, such as an unrotated refresh token, keep their previous values.
func overlay(cred *Credential, resp *tiktok.TokenResponse, now time.Time) {
	if resp.AccessToken != "" {
		cred.AccessToken = resp.AccessToken
	}
	if resp.RefreshToken != "" {
		cred.RefreshToken = resp.RefreshToken
	}
	if resp.OpenID != "" {
		cred.OpenID = resp.OpenID
	}
	if resp.Scope != "" {
		cred.Scope = resp.Scope
	}
	if resp.TokenType != "" {
		cred.TokenType = resp.TokenType
	}
	if resp.RefreshExpiresIn > 0 {
		cred.RefreshExpiresAt = now.Add(time.Duration(resp.RefreshExpiresIn) * time.Second)
	}
	cred.ExpiresAt = now.Add(time.Duration(resp.ExpiresIn) * time.Second)
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
