package leadsource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Fetch_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`[{"name":"Иван","phone":"+79123456789"}]`))
	}))
	defer srv.Close()

	client := NewClient()
	got, err := client.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Иван", got[0].ContactName())
}

func TestClient_Fetch_FallsBackToPost(t *testing.T) {
	var methods []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_, _ = w.Write([]byte(`{"leads":[{"name":"Анна","email":"anna@example.com"}]}`))
	}))
	defer srv.Close()

	client := NewClient()
	got, err := client.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{http.MethodGet, http.MethodPost}, methods)
}

func TestClient_Fetch_UpstreamStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewClient()
	_, err := client.Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	var statusErr *UpstreamStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
}

func TestClient_Fetch_ContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := NewClient()
	_, err := client.Fetch(ctx, srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_Fetch_BadResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	client := NewClient()
	_, err := client.Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, ErrBadResponse)
}
