package cmd

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"

	"tikpost/internal/logging"
	"tikpost/internal/tokenstore"
)

const defaultCallbackPort = "3000"

type codeExchanger interface {
	ExchangeAuthorizationCode(ctx context.Context, code string) (*tokenstore.Credential, error)
}

// callbackHandler accepts the provider's redirect. A request with the wrong
// state or no code is rejected and the listener keeps waiting.
type callbackHandler struct {
	path      string
	state     string
	exchanger codeExchanger
	logger    logging.Logger

	once sync.Once
	done chan struct{}
}

func newCallbackHandler(path, state string, exchanger codeExchanger, logger logging.Logger) *callbackHandler {
	return &callbackHandler{
		path:      path,
		state:     state,
		exchanger: exchanger,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

func (h *callbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet || r.URL.Path != h.path {
		http.NotFound(w, r)
		return
	}

	query := r.URL.Query()
	if err := h.validate(query); err != nil {
		h.fail(w, err)
		return
	}

	if _, err := h.exchanger.ExchangeAuthorizationCode(r.Context(), query.Get("code")); err != nil {
		h.fail(w, err)
		return
	}

	h.logger.Info("OAuth completed and tokens saved.")
	_, _ = fmt.Fprint(w, "OAuth success. You can close this tab.")
	h.once.Do(func() { close(h.done) })
}

func (h *callbackHandler) validate(query url.Values) error {
	if query.Get("state") != h.state {
		return fmt.Errorf("invalid OAuth state")
	}
	if query.Get("error") != "" {
		return fmt.Errorf("authorization denied: %s %s", query.Get("error"), query.Get("error_description"))
	}
	if query.Get("code") == "" {
		return fmt.Errorf("OAuth code not provided")
	}
	return nil
}

func (h *callbackHandler) fail(w http.ResponseWriter, err error) {
	h.logger.Error("OAuth failed", "error", err)
	http.Error(w, "OAuth failed: "+err.Error(), http.StatusInternalServerError)
}

// callbackAddr derives the listen address and path from the redirect URI.
func callbackAddr(redirectURI string) (addr, path string, err error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", "", fmt.Errorf("invalid redirect URI: %w", err)
	}
	if u.Hostname() == "" {
		return "", "", fmt.Errorf("invalid redirect URI %q: missing host", redirectURI)
	}

	port := u.Port()
	if port == "" {
		port = defaultCallbackPort
	}
	path = u.Path
	if path == "" {
		path = "/"
	}
	return net.JoinHostPort(u.Hostname(), port), path, nil
}

func newState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return hex.EncodeToString(b), nil
}
