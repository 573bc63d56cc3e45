// Package lastfm provides a Last.fm API client used to derive genres for
// imported songs.
package lastfm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// ErrNoTags is returned by Genre when neither the track nor the artist has
// a usable tag.
var ErrNoTags = errors.New("no tags found")

// ignoredTags are community tags that never describe a genre.
var ignoredTags = map[string]bool{
	"seen live":  true,
	"favorites":  true,
	"favourites": true,
	"love":       true,
	"awesome":    true,
}

// Client is a Last.fm API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	cacheMu  sync.RWMutex
	tagCache map[string][]Tag
}

// Config represents Last.fm client configuration.
type Config struct {
	APIKey string
}

// Tag represents a Last.fm tag.
type Tag struct {
	Name  string
	Count int // Tag weight, 0..100
}

type topTagsResponse struct {
	TopTags struct {
		Tag []struct {
			Name  string `json:"name"`
			Count int    `json:"count"`
		} `json:"tag"`
	} `json:"toptags"`
}

type apiError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// New creates a new Last.fm client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("last.fm API key is required")
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    "https://ws.audioscrobbler.com/2.0/",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		tagCache:   make(map[string][]Tag),
	}, nil
}

// GetTopTags retrieves top tags for a track.
// Reference: https://www.last.fm/api/show/track.getTopTags
func (c *Client) GetTopTags(ctx context.Context, trackName, artistName string) ([]Tag, error) {
	if trackName == "" || artistName == "" {
		return nil, errors.New("track name and artist name are required")
	}
	params := url.Values{}
	params.Set("method", "track.getTopTags")
	params.Set("artist", artistName)
	params.Set("track", trackName)
	return c.topTags(ctx, "track:"+artistName+":"+trackName, params)
}

// GetArtistTopTags retrieves top tags for an artist.
// Reference: https://www.last.fm/api/show/artist.getTopTags
func (c *Client) GetArtistTopTags(ctx context.Context, artistName string) ([]Tag, error) {
	if artistName == "" {
		return nil, errors.New("artist name is required")
	}
	params := url.Values{}
	params.Set("method", "artist.getTopTags")
	params.Set("artist", artistName)
	return c.topTags(ctx, "artist:"+artistName, params)
}

// Genre returns the heaviest genre-like tag for a track, falling back to
// the artist's tags.
func (c *Client) Genre(ctx context.Context, trackName, artistName string) (string, error) {
	tags, err := c.GetTopTags(ctx, trackName, artistName)
	if err != nil {
		return "", err
	}
	if g := pickGenre(tags); g != "" {
		return g, nil
	}

	tags, err = c.GetArtistTopTags(ctx, artistName)
	if err != nil {
		return "", err
	}
	if g := pickGenre(tags); g != "" {
		return g, nil
	}
	return "", ErrNoTags
}

func pickGenre(tags []Tag) string {
	for _, t := range tags {
		name := strings.TrimSpace(strings.ToLower(t.Name))
		if name == "" || ignoredTags[name] {
			continue
		}
		return titleCase(name)
	}
	return ""
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func (c *Client) topTags(ctx context.Context, cacheKey string, params url.Values) ([]Tag, error) {
	c.cacheMu.RLock()
	if tags, ok := c.tagCache[cacheKey]; ok {
		c.cacheMu.RUnlock()
		zlog.Debug().Msgf("lastfm: using cached tags. key=%v", cacheKey)
		return tags, nil
	}
	c.cacheMu.RUnlock()

	var response topTagsResponse
	if err := c.get(ctx, params, &response); err != nil {
		return nil, err
	}

	tags := make([]Tag, 0, len(response.TopTags.Tag))
	for _, t := range response.TopTags.Tag {
		tags = append(tags, Tag{Name: t.Name, Count: t.Count})
	}

	c.cacheMu.Lock()
	c.tagCache[cacheKey] = tags
	c.cacheMu.Unlock()

	return tags, nil
}

func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	params.Set("api_key", c.apiKey)
	params.Set("format", "json")
	params.Set("autocorrect", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != 0 {
		return errors.Errorf("last.fm API error %d: %s", apiErr.Error, apiErr.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("last.fm API returned status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}
	return nil
}
