// Package gotrue provides a client for the hosted identity service
// (/auth/v1) and local verification of the access tokens it issues.
package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/melodify/internal/domain/user"
)

// Errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// APIError is an error response from the identity service.
type APIError struct {
	Status      int    `json:"-"`
	Code        string `json:"error_code"`
	Err         string `json:"error"`
	Description string `json:"error_description"`
	Msg         string `json:"msg"`
}

func (e *APIError) Error() string {
	msg := e.Description
	if msg == "" {
		msg = e.Msg
	}
	if msg == "" {
		msg = e.Err
	}
	return fmt.Sprintf("identity error %d: %s", e.Status, msg)
}

// Config represents identity client configuration.
type Config struct {
	URL    string // project URL, without /auth/v1
	APIKey string // anon key
}

// Client is an identity service client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	now        func() time.Time
}

// New creates a new identity client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" || cfg.APIKey == "" {
		return nil, errors.New("identity url and api key are required")
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/") + "/auth/v1",
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}, nil
}

type apiUser struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	CreatedAt    time.Time `json:"created_at"`
	UserMetadata struct {
		FullName  string `json:"full_name"`
		AvatarURL string `json:"avatar_url"`
	} `json:"user_metadata"`
}

func (u apiUser) toUser() user.User {
	return user.User{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.UserMetadata.FullName,
		AvatarURL: u.UserMetadata.AvatarURL,
		CreatedAt: u.CreatedAt,
	}
}

type apiSession struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int64    `json:"expires_in"`
	ExpiresAt    int64    `json:"expires_at"`
	User         *apiUser `json:"user"`
}

func (c *Client) toSession(s apiSession) *user.Session {
	session := &user.Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
	}
	switch {
	case s.ExpiresAt > 0:
		session.ExpiresAt = time.Unix(s.ExpiresAt, 0)
	case s.ExpiresIn > 0:
		session.ExpiresAt = c.now().Add(time.Duration(s.ExpiresIn) * time.Second)
	}
	if s.User != nil {
		session.User = s.User.toUser()
	}
	return session
}

// SignUp registers a new account. When the project requires email
// confirmation the returned session has no access token.
func (c *Client) SignUp(ctx context.Context, email, password, fullName string) (*user.Session, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
		"data":     map[string]string{"full_name": fullName},
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/signup", "", body, &raw); err != nil {
		return nil, errors.Wrap(err, "failed to sign up")
	}

	var s apiSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errors.Wrap(err, "failed to parse sign up response")
	}
	if s.AccessToken == "" {
		// Confirmation pending: the body is the bare user.
		var u apiUser
		if err := json.Unmarshal(raw, &u); err != nil {
			return nil, errors.Wrap(err, "failed to parse sign up response")
		}
		return &user.Session{User: u.toUser()}, nil
	}
	return c.toSession(s), nil
}

// SignIn exchanges email and password for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*user.Session, error) {
	var s apiSession
	err := c.do(ctx, http.MethodPost, "/token?grant_type=password", "",
		map[string]string{"email": email, "password": password}, &s)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign in")
	}
	return c.toSession(s), nil
}

// Refresh exchanges a refresh token for a new session.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*user.Session, error) {
	var s apiSession
	err := c.do(ctx, http.MethodPost, "/token?grant_type=refresh_token", "",
		map[string]string{"refresh_token": refreshToken}, &s)
	if err != nil {
		return nil, errors.Wrap(err, "failed to refresh session")
	}
	return c.toSession(s), nil
}

// SignOut revokes the session of accessToken.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	return errors.Wrap(c.do(ctx, http.MethodPost, "/logout", accessToken, nil, nil), "failed to sign out")
}

// GetUser returns the user owning accessToken.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*user.User, error) {
	var u apiUser
	if err := c.do(ctx, http.MethodGet, "/user", accessToken, nil, &u); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return nil, errors.Mark(err, ErrInvalidToken)
		}
		return nil, errors.Wrap(err, "failed to get user")
	}
	result := u.toUser()
	return &result, nil
}

// VerifyToken resolves a bearer token through the identity service.
func (c *Client) VerifyToken(ctx context.Context, token string) (*user.User, error) {
	u, err := c.GetUser(ctx, token)
	if err != nil {
		return nil, errors.Mark(err, ErrInvalidToken)
	}
	return u, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to encode request body")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("apikey", c.apiKey)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		zlog.Debug().Msgf("identity: %s %s -> %d", method, path, resp.StatusCode)
		switch resp.StatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusUnprocessableEntity:
			return errors.Mark(apiErr, ErrInvalidCredentials)
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(data, out), "failed to parse response")
}
