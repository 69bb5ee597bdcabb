package mediaprovider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (t staticToken) Token() (string, error) {
	return string(t), nil
}

func noopSleep(_ context.Context, _ time.Duration) error {
	return nil
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()

	c := NewClient("com.example.cloudy", url, http.DefaultClient, staticToken("test-token"), nil)
	c.sleepFunc = noopSleep

	return c
}

func TestDo_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"value":"ok"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	resp, err := client.Do(context.Background(), "GET", "/media", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDo_RetriesOnServerError(t *testing.T) {
	var calls int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	resp, err := client.Do(context.Background(), "GET", "/media", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 3, calls)
}

func TestDo_NonRetryableStatusReturnsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusGone)
		_, _ = w.Write([]byte("collection gone"))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Do(context.Background(), "GET", "/media", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGone)

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, http.StatusGone, provErr.StatusCode)
	assert.Equal(t, "com.example.cloudy", provErr.Authority)
}

func TestCollectionInfo_DecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"collection_id":"c1","last_sync_generation":7}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	info, err := client.CollectionInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "c1", info.ID)
	assert.Equal(t, int64(7), info.LastSyncGeneration)
}

func TestQueryMedia_PassesGenerationAndPageToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "42", r.URL.Query().Get("generation"))
		assert.Equal(t, "page-2", r.URL.Query().Get("page_token"))
		assert.Equal(t, "1000", r.URL.Query().Get("page_size"))
		_, _ = w.Write([]byte(`{"items":[{"local_id":"l1","is_visible":true}],"next_page_token":"","honored_args":["generation"]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	page, err := client.QueryMedia(context.Background(), 42, "page-2")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "l1", page.Items[0].LocalID)
	assert.Empty(t, page.NextPageToken)
	assert.Contains(t, page.HonoredArgs, "generation")
}

func TestQueryAlbumMedia_ScopesToAlbumID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "album-1", r.URL.Query().Get("album_id"))
		assert.Equal(t, "1000", r.URL.Query().Get("page_size"))
		_, _ = w.Write([]byte(`{"items":[],"next_page_token":""}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	page, err := client.QueryAlbumMedia(context.Background(), "album-1", "")
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}
