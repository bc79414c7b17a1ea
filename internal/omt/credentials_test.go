package omt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Credentials) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, NewCredentials(srv.Client(), srv.URL, "merchant", "secret")
}

func TestToken_CachesAcrossCalls(t *testing.T) {
	var calls atomic.Int32
	_, creds := newAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "tok-a", "refresh_token": "rt-a"})
	})

	for i := 0; i < 3; i++ {
		tok, err := creds.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok-a", tok)
	}
	assert.Equal(t, int32(1), calls.Load(), "token acquired once, then served from cache")
}

func TestToken_ConcurrentCallersAuthenticateOnce(t *testing.T) {
	var calls atomic.Int32
	_, creds := newAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "tok-a"})
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := creds.Token(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "tok-a", tok)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestRefresh_ReplacesBothTokens(t *testing.T) {
	var calls atomic.Int32
	_, creds := newAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n == 1 {
			writeJSON(w, http.StatusOK, map[string]string{"access_token": "tok-1", "refresh_token": "rt-1"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "tok-2", "refresh_token": "rt-2"})
	})

	tok, err := creds.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	tok, err = creds.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok)

	// pair was swapped atomically: both fields belong to the second grant
	creds.mu.Lock()
	pair := creds.pair
	creds.mu.Unlock()
	assert.Equal(t, "tok-2", pair.access)
	assert.Equal(t, "rt-2", pair.refresh)

	tok, err = creds.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok, "subsequent calls serve the refreshed token")
}

func TestAuthenticate_SendsCredentials(t *testing.T) {
	_, creds := newAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/authenticate-user", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "merchant", body["username"])
		assert.Equal(t, "secret", body["password"])
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "tok-a"})
	})

	_, err := creds.Token(context.Background())
	require.NoError(t, err)
}

func TestAuthenticate_FailureIsAuthError(t *testing.T) {
	_, creds := newAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := creds.Token(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestAuthenticate_EmptyAccessTokenRejected(t *testing.T) {
	_, creds := newAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"refresh_token": "rt-only"})
	})

	_, err := creds.Token(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
}
