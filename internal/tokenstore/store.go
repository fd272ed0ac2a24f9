// Package tokenstore owns the persisted OAuth credential: loading it,
// exchanging an authorization code, refreshing it and writing it back.
package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"tikpost/internal/logging"
	"tikpost/internal/tiktok"
)

// ExpiryMargin is how close to expiry a token may get before it is refreshed.
const ExpiryMargin = 2 * time.Minute

const (
	filePerms     = 0o600
	dirPerms      = 0o700
	lockRetry     = 100 * time.Millisecond
	refreshFlight = "refresh"
)

var ErrNoCredential = errors.New("tokenstore: no credential found, run `tikpost auth tiktok` first")

// TokenEndpoint is the provider side of the credential lifecycle.
type TokenEndpoint interface {
	ExchangeCode(ctx context.Context, code string) (*tiktok.TokenResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*tiktok.TokenResponse, error)
}

// Store is the single writer of the credential file. The in-memory copy is
// replaced on every persist.
type Store struct {
	path     string
	endpoint TokenEndpoint
	clock    clockwork.Clock
	logger   logging.Logger
	lock     *flock.Flock
	flight   singleflight.Group

	cached *Credential
}

type Option func(*Store)

func WithClock(clock clockwork.Clock) Option {
	return func(s *Store) { s.clock = clock }
}

func WithLogger(logger logging.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

func New(path string, endpoint TokenEndpoint, opts ...Option) *Store {
	s := &Store{
		path:     path,
		endpoint: endpoint,
		clock:    clockwork.NewRealClock(),
		logger:   logging.Discard(),
		lock:     flock.New(path + ".lock"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Path() string {
	return s.path
}

// Load returns the cached credential, reading the file on first use.
// It returns nil, nil when no credential has been saved yet.
func (s *Store) Load(_ context.Context) (*Credential, error) {
	if s.cached != nil {
		return s.cached, nil
	}

	cred, err := s.read()
	if err != nil || cred == nil {
		return nil, err
	}

	s.cached = cred
	return cred, nil
}

// ExchangeAuthorizationCode trades a one-time code for a credential and
// persists it, replacing any earlier record.
func (s *Store) ExchangeAuthorizationCode(ctx context.Context, code string) (*Credential, error) {
	resp, err := s.endpoint.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	unlock, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	cred := fromTokenResponse(resp, s.clock.Now())
	if err := s.persist(cred); err != nil {
		return nil, err
	}
	return cred, nil
}

// Refresh redeems current's refresh token and persists the merged record
// under the file lock.
func (s *Store) Refresh(ctx context.Context, current *Credential) (*Credential, error) {
	unlock, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return s.refresh(ctx, current)
}

// refresh expects the file lock to be held.
func (s *Store) refresh(ctx context.Context, current *Credential) (*Credential, error) {
	if current == nil || current.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token stored", tiktok.ErrAuthRefresh)
	}

	resp, err := s.endpoint.RefreshToken(ctx, current.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("tokenstore: refresh: %w", err)
	}

	merged := *current
	overlay(&merged, resp, s.clock.Now())
	if err := s.persist(&merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

// EnsureAccessToken returns a bearer token, refreshing first when the stored
// one is missing or within ExpiryMargin of expiry and a refresh token exists.
// Without a refresh token the stored token is returned as-is, expired or not.
func (s *Store) EnsureAccessToken(ctx context.Context) (string, error) {
	cred, err := s.Load(ctx)
	if err != nil {
		return "", err
	}
	if cred == nil || cred.AccessToken == "" {
		return "", ErrNoCredential
	}

	if !cred.expiring(s.clock.Now(), ExpiryMargin) || cred.RefreshToken == "" {
		return cred.AccessToken, nil
	}

	s.logger.Info("Access token is expiring soon, refreshing", "expiresAt", cred.ExpiresAt)

	v, err, _ := s.flight.Do(refreshFlight, func() (any, error) {
		return s.refreshLocked(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(*Credential).AccessToken, nil
}

// refreshLocked holds the credential file lock across re-read, refresh and
// save so concurrent processes do not persist divergent token generations.
func (s *Store) refreshLocked(ctx context.Context) (*Credential, error) {
	unlock, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := s.read()
	if err != nil {
		return nil, err
	}
	if current == nil {
		current = s.cached
	}
	if current == nil {
		return nil, ErrNoCredential
	}

	if !current.expiring(s.clock.Now(), ExpiryMargin) {
		s.cached = current
		return current, nil
	}

	return s.refresh(ctx, current)
}

// Clear deletes the saved credential under the file lock. Clearing when
// nothing is saved is not an error.
func (s *Store) Clear(ctx context.Context) error {
	unlock, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("tokenstore: removing %s: %w", s.path, err)
	}
	s.cached = nil
	s.logger.Info("Removed token file", "path", s.path)
	return nil
}

// acquire takes the credential file lock, retrying until ctx is done.
func (s *Store) acquire(ctx context.Context) (func(), error) {
	locked, err := s.lock.TryLockContext(ctx, lockRetry)
	if err != nil {
		return nil, fmt.Errorf("tokenstore: locking %s: %w", s.lock.Path(), err)
	}
	if !locked {
		return nil, fmt.Errorf("tokenstore: could not lock %s", s.lock.Path())
	}
	return func() { _ = s.lock.Unlock() }, nil
}

func (s *Store) read() (*Credential, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil //nolint:nilnil // no credential yet
	}
	if err != nil {
		return nil, fmt.Errorf("tokenstore: reading %s: %w", s.path, err)
	}

	var f credentialFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("tokenstore: decoding %s: %w", s.path, err)
	}
	return f.credential(), nil
}

// persist writes the record atomically (temp file, fsync, rename) with 0600
// permissions and replaces the in-memory copy.
func (s *Store) persist(cred *Credential) error {
	data, err := json.MarshalIndent(cred.toFile(), "", "  ")
	if err != nil {
		return fmt.Errorf("tokenstore: encoding: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirPerms); err != nil {
		return fmt.Errorf("tokenstore: creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tokens-*.tmp")
	if err != nil {
		return fmt.Errorf("tokenstore: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := tmp.Chmod(filePerms); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("tokenstore: setting permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("tokenstore: writing: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("tokenstore: syncing: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("tokenstore: closing: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("tokenstore: renaming: %w", err)
	}
	success = true

	s.cached = cred
	s.logger.Info("Saved token file", "tokensFile", s.path)
	return nil
}
