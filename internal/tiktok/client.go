// Package tiktok is a small client for the TikTok OAuth and Content Posting
// endpoints used by the uploader.
package tiktok

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"tikpost/pkg/httputil"
)

const (
	DefaultAPIBase = "https://open.tiktokapis.com"

	authorizePath = "/v2/auth/authorize/"
	tokenPath     = "/v2/oauth/token/"
	initPath      = "/v2/post/publish/video/init/"
	statusPath    = "/v2/post/publish/status/fetch/"

	jsonContentType  = "application/json; charset=UTF-8"
	formContentType  = "application/x-www-form-urlencoded"
	videoContentType = "video/mp4"
)

type Options struct {
	ClientKey    string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	APIBase      string

	// HTTPClient sends calls that must not be repeated (init, transfer).
	HTTPClient httputil.Doer
	// RetryClient sends token and status calls. Defaults to a RetryClient
	// over HTTPClient.
	RetryClient httputil.Doer
}

type Client struct {
	clientKey    string
	clientSecret string
	redirectURI  string
	scopes       []string
	apiBase      string
	oauth        *oauth2.Config
	http         httputil.Doer
	retry        httputil.Doer
}

func NewClient(opts Options) *Client {
	apiBase := strings.TrimRight(opts.APIBase, "/")
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = httputil.NewClient(httputil.DefaultTimeout)
	}
	retryClient := opts.RetryClient
	if retryClient == nil {
		retryClient = httputil.NewRetryClient(httpClient, httputil.DefaultRetryConfig())
	}

	return &Client{
		clientKey:    opts.ClientKey,
		clientSecret: opts.ClientSecret,
		redirectURI:  opts.RedirectURI,
		scopes:       opts.Scopes,
		apiBase:      apiBase,
		oauth: &oauth2.Config{
			ClientID:     opts.ClientKey,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:   apiBase + authorizePath,
				TokenURL:  apiBase + tokenPath,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		http:  httpClient,
		retry: retryClient,
	}
}

func (c *Client) postJSON(ctx context.Context, doer httputil.Doer, path, accessToken string, payload any) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", jsonContentType)
	setBearer(req, accessToken)

	return do(doer, req)
}

func setBearer(req *http.Request, accessToken string) {
	(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}).SetAuthHeader(req)
}

func do(doer httputil.Doer, req *http.Request) (int, []byte, error) {
	resp, err := doer.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.StatusCode, respBody, nil
}
