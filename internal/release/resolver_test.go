package release

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/go-github/v67/github"
	"github.com/stretchr/testify/require"

	domain "github.com/okarpov/serverkeeper/internal/domain/release"
)

// newTestResolver points a resolver at an httptest server speaking the
// releases API.
func newTestResolver(t *testing.T, handler http.HandlerFunc) (*Resolver, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := github.NewClient(nil)

	baseURL, err := url.Parse(server.URL + "/")
	require.NoError(t, err)

	client.BaseURL = baseURL

	return &Resolver{
		client: client,
		owner:  "polyglot",
		repo:   "polyglot-ls",
	}, server
}

// TestFetchLatest_Success converts a well-formed payload into a descriptor.
func TestFetchLatest_Success(t *testing.T) {
	t.Parallel()

	resolver, _ := newTestResolver(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/polyglot/polyglot-ls/releases/latest", r.URL.Path)
		require.Contains(t, r.Header.Get("Accept"), "application/vnd.github")

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": 42,
			"tag_name": "v1.2.3",
			"name": "Release 1.2.3",
			"published_at": "2024-01-01T00:00:00Z",
			"assets": [
				{"name": "polyglot-ls-Linux-64bit.tar.gz", "browser_download_url": "https://dl/linux", "size": 1024},
				{"name": "polyglot-ls-macOS-ARM64.tar.gz", "browser_download_url": "https://dl/macos-arm"}
			]
		}`)
	})

	desc, err := resolver.FetchLatest(context.Background())
	require.NoError(t, err)
	require.Equal(t, "v1.2.3", desc.Name)
	require.Equal(t, int64(42), desc.ID)
	require.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), desc.PublishedAt)
	require.Len(t, desc.Assets, 2)
	require.Equal(t, int64(1024), desc.Assets[0].Size)
}

// TestFetchLatest_HTTPStatus maps non-success responses to HTTPStatusError.
func TestFetchLatest_HTTPStatus(t *testing.T) {
	t.Parallel()

	resolver, _ := newTestResolver(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message": "Not Found"}`, http.StatusNotFound)
	})

	_, err := resolver.FetchLatest(context.Background())

	var statusErr *domain.HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusNotFound, statusErr.Code)
}

// TestFetchLatest_Network maps transport failures to NetworkError.
func TestFetchLatest_Network(t *testing.T) {
	t.Parallel()

	resolver, server := newTestResolver(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// A closed server makes the transport fail before any response arrives.
	server.Close()

	_, err := resolver.FetchLatest(context.Background())

	var netErr *domain.NetworkError
	require.ErrorAs(t, err, &netErr)
}

// TestFetchLatest_Malformed rejects a payload without a publication timestamp.
func TestFetchLatest_Malformed(t *testing.T) {
	t.Parallel()

	resolver, _ := newTestResolver(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": 7, "tag_name": "v0.1.0"}`)
	})

	_, err := resolver.FetchLatest(context.Background())
	require.ErrorIs(t, err, domain.ErrMalformedRelease)
}
