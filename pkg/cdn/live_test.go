package cdn

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCDNServer(t *testing.T) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/build.yml", func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("Cache-Control") != "no-cache" {
			http.Error(w, "cached", http.StatusTeapot)
			return
		}
		w.Header().Set("Content-Type", "application/x-yaml")
		_, _ = w.Write([]byte("id: Example-Site:v2\ndate-long: 1700000000\n"))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchLiveDescriptor(t *testing.T) {
	srv := newCDNServer(t)

	text, err := FetchLiveDescriptor(context.Background(), srv.Client(), srv.URL+"/build.yml")
	require.NoError(t, err)
	assert.Equal(t, "id: Example-Site:v2\ndate-long: 1700000000\n", text)
}

func TestFetchLiveDescriptor_Errors(t *testing.T) {
	srv := newCDNServer(t)

	_, err := FetchLiveDescriptor(context.Background(), srv.Client(), srv.URL+"/missing.yml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	_, err = FetchLiveDescriptor(context.Background(), nil, "://bad-url")
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = FetchLiveDescriptor(ctx, srv.Client(), srv.URL+"/build.yml")
	require.ErrorIs(t, err, context.Canceled)
}
