package tiktok

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
)

// TokenResponse is the token endpoint payload for both grant types.
// RefreshToken is empty when the provider did not rotate it.
type TokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token,omitempty"`
	ExpiresIn        int64  `json:"expires_in"`
	RefreshExpiresIn int64  `json:"refresh_expires_in,omitempty"`
	OpenID           string `json:"open_id,omitempty"`
	Scope            string `json:"scope,omitempty"`
	TokenType        string `json:"token_type,omitempty"`
}

// AuthCodeURL returns the URL the user visits to grant access. The caller
// must check state on the callback.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state,
		oauth2.SetAuthURLParam("client_key", c.clientKey),
		oauth2.SetAuthURLParam("scope", strings.Join(c.scopes, ",")),
	)
}

func (c *Client) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	form := url.Values{
		"client_key":    {c.clientKey},
		"client_secret": {c.clientSecret},
		"code":          {code},
		"grant_type":    {"authorization_code"},
		"redirect_uri":  {c.redirectURI},
	}
	return c.requestToken(ctx, "exchange code", ErrAuthExchange, form)
}

func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{
		"client_key":    {c.clientKey},
		"client_secret": {c.clientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	return c.requestToken(ctx, "refresh token", ErrAuthRefresh, form)
}

func (c *Client) requestToken(ctx context.Context, op string, sentinel error, form url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.oauth.Endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sentinel, err)
	}
	req.Header.Set("Content-Type", formContentType)

	status, body, err := do(c.retry, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sentinel, err)
	}
	if err := checkResponse(op, sentinel, status, body); err != nil {
		return nil, err
	}

	var tok TokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", sentinel, err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("%w: response has no access_token", sentinel)
	}

	return &tok, nil
}
