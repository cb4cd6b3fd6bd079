package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(Options{BaseURL: srv.URL, Token: func() string { return "tok-1" }})
	return c, srv
}

func TestDo_AttachesAuthToken(t *testing.T) {
	var gotAuth string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(profilePayload{ID: 1, Username: "ash"})
	}))

	_, err := c.CurrentProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-1", gotAuth)
}

func TestDo_TransportErrorIsNetworkClass(t *testing.T) {
	c := New(Options{BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond})

	_, err := c.CurrentProfile(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
}

func TestDo_GatewayStatusesAreNetworkClass(t *testing.T) {
	for _, status := range []int{http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout} {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		_, err := c.CurrentProfile(context.Background())
		require.Error(t, err)
		assert.True(t, IsUnavailable(err), "status %d must be network-class", status)
	}
}

func TestDo_ApplicationErrorCarriesStatusAndMessage(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "already owned"})
	}))

	_, err := c.Acquire(context.Background(), 25, "", time.Now())
	require.Error(t, err)
	assert.False(t, IsUnavailable(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "already owned", apiErr.Message)
}

func TestDo_UnauthorizedClearsTokenViaHook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	cleared := false
	c := New(Options{
		BaseURL:        srv.URL,
		Token:          func() string { return "stale" },
		OnUnauthorized: func() { cleared = true },
	})

	_, err := c.CurrentProfile(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.False(t, IsUnavailable(err), "401 is application-class")
	assert.True(t, cleared)
}

func TestHealth(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/health", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"), "health probe is unauthenticated")
		w.WriteHeader(http.StatusOK)
	}))

	// Health uses the probe client which does not attach the token.
	require.NoError(t, c.Health(context.Background()))
}

func TestShares_RoundTrip(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/shares":
			_ = json.NewEncoder(w).Encode(Share{Token: "t0k/en", AccountID: 7})
		case r.Method == http.MethodGet && r.URL.EscapedPath() == "/api/shares/t0k%2Fen":
			_ = json.NewEncoder(w).Encode(Share{Token: "t0k/en", AccountID: 7})
		case r.Method == http.MethodGet && r.URL.Path == "/api/shares":
			_ = json.NewEncoder(w).Encode(map[string][]Share{"shares": {{Token: "t0k/en", AccountID: 7}}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	created, err := c.CreateShare(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), created.AccountID)

	got, err := c.GetShare(context.Background(), created.Token)
	require.NoError(t, err)
	assert.Equal(t, created.Token, got.Token)

	all, err := c.ListShares(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestHealth_NonOKIsUnavailable(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	err := c.Health(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
}
