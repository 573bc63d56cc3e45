package lastfm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{APIKey: "test_key"})
	require.NoError(t, err)
	client.baseURL = server.URL + "/"
	return client
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestGetTopTags(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "track.getTopTags", r.URL.Query().Get("method"))
		assert.Equal(t, "A.R. Rahman", r.URL.Query().Get("artist"))
		assert.Equal(t, "Vande Mataram", r.URL.Query().Get("track"))
		assert.Equal(t, "test_key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"toptags": {"tag": [
			{"name": "tamil", "count": 100},
			{"name": "soundtrack", "count": 80}
		]}}`)
	})

	ctx := context.Background()
	tags, err := client.GetTopTags(ctx, "Vande Mataram", "A.R. Rahman")
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, Tag{Name: "tamil", Count: 100}, tags[0])

	cached, err := client.GetTopTags(ctx, "Vande Mataram", "A.R. Rahman")
	require.NoError(t, err)
	assert.Equal(t, tags, cached)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetTopTags_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error": 6, "message": "Track not found"}`)
	})

	_, err := client.GetTopTags(context.Background(), "x", "y")
	assert.ErrorContains(t, err, "Track not found")

	_, err = client.GetTopTags(context.Background(), "", "y")
	assert.Error(t, err)
}

func TestGenre(t *testing.T) {
	tests := []struct {
		name        string
		trackTags   string
		artistTags  string
		expected    string
		expectedErr error
	}{
		{
			name:      "track tag",
			trackTags: `[{"name": "seen live", "count": 100}, {"name": "carnatic fusion", "count": 60}]`,
			expected:  "Carnatic Fusion",
		},
		{
			name:       "artist fallback",
			trackTags:  `[]`,
			artistTags: `[{"name": "Melody", "count": 90}]`,
			expected:   "Melody",
		},
		{
			name:        "nothing usable",
			trackTags:   `[{"name": "favorites", "count": 3}]`,
			artistTags:  `[]`,
			expectedErr: ErrNoTags,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				tags := tt.trackTags
				if r.URL.Query().Get("method") == "artist.getTopTags" {
					tags = tt.artistTags
				}
				fmt.Fprintf(w, `{"toptags": {"tag": %s}}`, tags)
			})

			genre, err := client.Genre(context.Background(), "Song", "Artist")
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, genre)
		})
	}
}
