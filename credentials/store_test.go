package credentials

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// fakeEndpoint is a stand-in token endpoint that counts refresh exchanges
// and replays a scripted sequence of responses (each entry is an HTTP status;
// 200 issues a fresh access token).
type fakeEndpoint struct {
	srv       *httptest.Server
	exchanges atomic.Int64
	script    []int
}

func newFakeEndpoint(script ...int) *fakeEndpoint {
	f := fakeEndpoint{
		script: script,
	}

	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(f.exchanges.Add(1)) - 1

		status := http.StatusOK
		if n < len(f.script) {
			status = f.script[n]
		}

		w.Header().Set("Content-Type", "application/json")

		switch status {
		case http.StatusOK:
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, `{"access_token":"access-token-%v","token_type":"Bearer","expires_in":3600}`, n+1)

		case http.StatusBadRequest:
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"invalid_grant","error_description":"Token has been expired or revoked."}`)

		default:
			w.WriteHeader(status)
			fmt.Fprint(w, `{"error":"internal_failure"}`)
		}
	}))

	return &f
}

func (f *fakeEndpoint) endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:  f.srv.URL + "/auth",
		TokenURL: f.srv.URL + "/token",

		// Pin the client authentication style as google.Endpoint does.
		// With the style left unknown the oauth2 package probes, sending
		// each failed exchange twice and skewing the exchange counts.
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

func (f *fakeEndpoint) close() {
	f.srv.Close()
}

func newTestStore(t *testing.T, endpoint *fakeEndpoint, credentials Credentials, opts ...Option) (*Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, credentials.Save(path))

	options := []Option{
		WithEndpoint(endpoint.endpoint()),
		WithBackoff(DefaultAttempts, func(int) time.Duration { return 0 }),
	}
	options = append(options, opts...)

	store, err := NewStore(path, options...)
	require.NoError(t, err)

	return store, path
}

func TestTokenReturnsCachedTokenWhileValid(t *testing.T) {
	endpoint := newFakeEndpoint()
	defer endpoint.close()

	now := time.Date(2021, time.February, 28, 12, 0, 0, 0, time.UTC)

	store, _ := newTestStore(t, endpoint, Credentials{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RefreshToken: "refresh-token",
		AccessToken:  "cached-token",
		Expiry:       now.Add(time.Hour),
	}, WithClock(func() time.Time { return now }))

	token, err := store.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "cached-token", token.AccessToken)
	assert.EqualValues(t, 0, endpoint.exchanges.Load())
}

func TestTokenRefreshesWithinExpiryMargin(t *testing.T) {
	endpoint := newFakeEndpoint()
	defer endpoint.close()

	now := time.Date(2021, time.February, 28, 12, 0, 0, 0, time.UTC)

	// 30s of remaining lifetime is inside the 60s margin
	store, _ := newTestStore(t, endpoint, Credentials{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RefreshToken: "refresh-token",
		AccessToken:  "cached-token",
		Expiry:       now.Add(30 * time.Second),
	}, WithClock(func() time.Time { return now }))

	token, err := store.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "access-token-1", token.AccessToken)
	assert.EqualValues(t, 1, endpoint.exchanges.Load())
}

func TestTokenPersistsRefreshedCredentials(t *testing.T) {
	endpoint := newFakeEndpoint()
	defer endpoint.close()

	store, path := newTestStore(t, endpoint, Credentials{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RefreshToken: "refresh-token",
	})

	_, err := store.Token(context.Background())
	require.NoError(t, err)

	persisted, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "access-token-1", persisted.AccessToken)
	assert.False(t, persisted.Expiry.IsZero())
}

func TestTokenKeepsRefreshTokenWhenResponseOmitsIt(t *testing.T) {
	endpoint := newFakeEndpoint()
	defer endpoint.close()

	store, path := newTestStore(t, endpoint, Credentials{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RefreshToken: "refresh-token",
	})

	_, err := store.Token(context.Background())
	require.NoError(t, err)

	persisted, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "refresh-token", persisted.RefreshToken)
}

func TestTokenSingleFlight(t *testing.T) {
	endpoint := newFakeEndpoint()
	defer endpoint.close()

	store, _ := newTestStore(t, endpoint, Credentials{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RefreshToken: "refresh-token",
	})

	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			token, err := store.Token(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "access-token-1", token.AccessToken)
		}()
	}

	wg.Wait()

	assert.EqualValues(t, 1, endpoint.exchanges.Load(), "concurrent callers must coordinate on one refresh exchange")
}

func TestTokenRetriesTransientFailures(t *testing.T) {
	endpoint := newFakeEndpoint(http.StatusInternalServerError, http.StatusBadGateway, http.StatusOK)
	defer endpoint.close()

	store, _ := newTestStore(t, endpoint, Credentials{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RefreshToken: "refresh-token",
	})

	token, err := store.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "access-token-3", token.AccessToken)
	assert.EqualValues(t, 3, endpoint.exchanges.Load())
}

func TestTokenGivesUpAfterBoundedRetries(t *testing.T) {
	endpoint := newFakeEndpoint(
		http.StatusInternalServerError,
		http.StatusInternalServerError,
		http.StatusInternalServerError,
		http.StatusInternalServerError)
	defer endpoint.close()

	store, _ := newTestStore(t, endpoint, Credentials{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RefreshToken: "refresh-token",
	})

	_, err := store.Token(context.Background())
	require.Error(t, err)

	assert.False(t, errors.Is(err, ErrUnauthorized))
	assert.EqualValues(t, DefaultAttempts, endpoint.exchanges.Load())
}

func TestTokenUnauthorizedIsNotRetried(t *testing.T) {
	endpoint := newFakeEndpoint(http.StatusBadRequest)
	defer endpoint.close()

	store, _ := newTestStore(t, endpoint, Credentials{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RefreshToken: "refresh-token",
	})

	_, err := store.Token(context.Background())
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.EqualValues(t, 1, endpoint.exchanges.Load(), "invalid_grant must never trigger a second exchange")
}

func TestInvalidateForcesRefresh(t *testing.T) {
	endpoint := newFakeEndpoint()
	defer endpoint.close()

	now := time.Date(2021, time.February, 28, 12, 0, 0, 0, time.UTC)

	store, _ := newTestStore(t, endpoint, Credentials{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RefreshToken: "refresh-token",
		AccessToken:  "rejected-token",
		Expiry:       now.Add(time.Hour),
	}, WithClock(func() time.Time { return now }))

	store.Invalidate()

	token, err := store.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "access-token-1", token.AccessToken)
	assert.EqualValues(t, 1, endpoint.exchanges.Load())
}

func TestNewStoreRequiresRefreshToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, Credentials{ClientID: "client-id"}.Save(path))

	_, err := NewStore(path)
	assert.Error(t, err)
}
