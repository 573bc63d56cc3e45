package gotrue

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"

	"github.com/osa030/melodify/internal/domain/user"
)

// Claims are the access token claims issued by the identity service.
type Claims struct {
	Email        string `json:"email"`
	Role         string `json:"role"`
	UserMetadata struct {
		FullName  string `json:"full_name"`
		AvatarURL string `json:"avatar_url"`
	} `json:"user_metadata"`
	jwt.RegisteredClaims
}

// Verifier checks access tokens locally with the project JWT secret.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for HS256 tokens signed with secret.
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Parse validates raw and returns its claims.
func (v *Verifier) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to parse token"), ErrInvalidToken)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.Mark(errors.New("token has no subject"), ErrInvalidToken)
	}
	if claims.Role != "" && claims.Role != "authenticated" {
		return nil, errors.Mark(errors.Newf("unexpected role %q", claims.Role), ErrInvalidToken)
	}
	return claims, nil
}

// VerifyToken validates token and returns its user.
func (v *Verifier) VerifyToken(_ context.Context, token string) (*user.User, error) {
	claims, err := v.Parse(token)
	if err != nil {
		return nil, err
	}
	return &user.User{
		ID:        claims.Subject,
		Email:     claims.Email,
		FullName:  claims.UserMetadata.FullName,
		AvatarURL: claims.UserMetadata.AvatarURL,
	}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
