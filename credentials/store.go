package credentials

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/sheetwatch/sheetwatch/log"
)

// ErrUnauthorized marks a refresh token rejected by the token endpoint. There
// is no automatic recovery - the operator has to re-run 'authorise'.
var ErrUnauthorized = errors.New("refresh token rejected - reauthorisation required")

const (
	// DefaultMargin is the minimum remaining access token lifetime below
	// which the store refreshes before handing the token out.
	DefaultMargin = 60 * time.Second

	// DefaultAttempts bounds the retries for transient refresh failures.
	DefaultAttempts = 3
)

// Store owns the process-wide credential record and keeps its access token
// valid, refreshing and re-persisting it as it nears expiry. One store is
// shared by all sheet fetches in a run and it is the only shared mutable
// state in the process: the guard serializes refreshes so that N concurrent
// callers holding an expiring token produce exactly one refresh exchange -
// latecomers block on the guard and find a fresh token when they get it.
type Store struct {
	path        string
	margin      time.Duration
	attempts    int
	backoff     func(attempt int) time.Duration
	now         func() time.Time
	endpoint    oauth2.Endpoint
	guard       sync.Mutex
	credentials Credentials
}

type Option func(*Store)

// WithMargin sets the minimum remaining access token lifetime.
func WithMargin(margin time.Duration) Option {
	return func(s *Store) {
		s.margin = margin
	}
}

// WithClock replaces the wall clock, for deterministic expiry in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithEndpoint replaces the Google token endpoint, for tests against a fake.
func WithEndpoint(endpoint oauth2.Endpoint) Option {
	return func(s *Store) {
		s.endpoint = endpoint
	}
}

// WithBackoff sets the retry schedule for transient refresh failures.
func WithBackoff(attempts int, delay func(attempt int) time.Duration) Option {
	return func(s *Store) {
		s.attempts = attempts
		s.backoff = delay
	}
}

func NewStore(path string, opts ...Option) (*Store, error) {
	credentials, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("unable to load credentials from %s (%w)", path, err)
	}

	if credentials.RefreshToken == "" {
		return nil, fmt.Errorf("no refresh token in %s - run 'authorise' first", path)
	}

	s := Store{
		path:     path,
		margin:   DefaultMargin,
		attempts: DefaultAttempts,
		backoff: func(attempt int) time.Duration {
			return time.Duration(1<<attempt) * time.Second
		},
		now:         time.Now,
		endpoint:    google.Endpoint,
		credentials: credentials,
	}

	for _, opt := range opts {
		opt(&s)
	}

	return &s, nil
}

// Token returns an access token valid for at least the configured margin,
// refreshing first if the cached one is expired or expiring.
func (s *Store) Token(ctx context.Context) (*oauth2.Token, error) {
	s.guard.Lock()
	defer s.guard.Unlock()

	if s.valid() {
		return s.token(), nil
	}

	return s.refresh(ctx)
}

// Invalidate discards the cached access token so that the next Token call
// performs a refresh. Used when the Sheets API rejects a token the store
// still believed valid.
func (s *Store) Invalidate() {
	s.guard.Lock()
	defer s.guard.Unlock()

	s.credentials.AccessToken = ""
	s.credentials.Expiry = time.Time{}
}

// TokenSource adapts the store for the Google API client libraries.
func (s *Store) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, store: s}
}

type tokenSource struct {
	ctx   context.Context
	store *Store
}

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	return ts.store.Token(ts.ctx)
}

func (s *Store) valid() bool {
	return s.credentials.AccessToken != "" && s.now().Add(s.margin).Before(s.credentials.Expiry)
}

func (s *Store) token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  s.credentials.AccessToken,
		RefreshToken: s.credentials.RefreshToken,
		Expiry:       s.credentials.Expiry,
		TokenType:    "Bearer",
	}
}

// refresh exchanges the refresh token for a new access token, retrying
// transient failures and persisting the updated credentials before returning.
// Callers hold the guard.
func (s *Store) refresh(ctx context.Context) (*oauth2.Token, error) {
	config := s.credentials.config(s.endpoint)
	seed := &oauth2.Token{RefreshToken: s.credentials.RefreshToken}

	var err error

	for attempt := 0; attempt < s.attempts; attempt++ {
		if attempt > 0 {
			log.Warnf("retrying token refresh after transient error (%v)", err)
			time.Sleep(s.backoff(attempt))
		}

		var token *oauth2.Token

		if token, err = config.TokenSource(ctx, seed).Token(); err == nil {
			return s.update(token)
		}

		if unauthorized(err) {
			return nil, fmt.Errorf("%w (%v)", ErrUnauthorized, err)
		}
	}

	return nil, fmt.Errorf("token refresh failed after %v attempts (%w)", s.attempts, err)
}

func (s *Store) update(token *oauth2.Token) (*oauth2.Token, error) {
	s.credentials.AccessToken = token.AccessToken
	s.credentials.Expiry = token.Expiry

	// A refresh response may omit the refresh token - the existing one
	// stays valid and is kept.
	if token.RefreshToken != "" {
		s.credentials.RefreshToken = token.RefreshToken
	}

	if err := s.credentials.Save(s.path); err != nil {
		return nil, fmt.Errorf("unable to persist refreshed credentials (%w)", err)
	}

	log.Debugf("refreshed access token, expires %v", token.Expiry.Format(time.RFC3339))

	return s.token(), nil
}

// unauthorized classifies a refresh failure: a 400/401 from the token
// endpoint (invalid_grant - the refresh token was revoked or expired) is
// permanent, everything else is transient and worth a retry.
func unauthorized(err error) bool {
	var retrieve *oauth2.RetrieveError

	if errors.As(err, &retrieve) {
		if retrieve.ErrorCode == "invalid_grant" {
			return true
		}

		if retrieve.Response != nil {
			code := retrieve.Response.StatusCode
			return code == http.StatusBadRequest || code == http.StatusUnauthorized
		}
	}

	return false
}
