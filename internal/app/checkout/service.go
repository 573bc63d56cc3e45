// Package checkout creates premium song purchases and completes them from
// payment webhooks.
package checkout

import (
	"context"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/melodify/internal/app/catalog"
	"github.com/osa030/melodify/internal/domain/purchase"
	"github.com/osa030/melodify/internal/domain/track"
	"github.com/osa030/melodify/internal/domain/user"
	"github.com/osa030/melodify/internal/infra/cache"
	"github.com/osa030/melodify/internal/infra/stripe"
)

// Errors
var (
	ErrNoAuthorization = errors.New("no authorization header")
	ErrInvalidToken    = errors.New("invalid token")
	ErrSongRequired    = errors.New("song id is required")
	ErrSongNotFound    = errors.New("song not found")
	ErrNotForSale      = errors.New("song is not for sale")
	ErrAlreadyOwned    = errors.New("song already purchased")
	ErrPurchaseFailed  = errors.New("failed to create purchase")
	ErrUpdateFailed    = errors.New("failed to update purchase")
	ErrBadSignature    = errors.New("invalid webhook signature")
)

// Verifier resolves a bearer token to its user.
type Verifier interface {
	VerifyToken(ctx context.Context, token string) (*user.User, error)
}

// Gateway is the payment processor.
type Gateway interface {
	CreateCheckout(ctx context.Context, req stripe.CheckoutRequest) (*stripe.CheckoutSession, error)
	ParseEvent(payload []byte, signature string) (*stripe.Event, error)
}

// Publisher announces completed purchases.
type Publisher interface {
	PublishPurchase(ctx context.Context, ev cache.PurchaseEvent) error
}

// Store is the catalog surface used with service credentials.
type Store interface {
	GetSong(ctx context.Context, id string) (*track.Track, error)
	CreatePurchase(ctx context.Context, p purchase.Purchase) (*purchase.Purchase, error)
	CompletePurchase(ctx context.Context, purchaseID string) (*purchase.Purchase, error)
	HasPurchased(ctx context.Context, userID, songID string) (bool, error)
}

// Config represents checkout configuration.
type Config struct {
	Description string // product line description
	SiteURL     string // return URL base when the request has no Origin
}

// Request is a checkout request for one song.
type Request struct {
	Authorization string // raw Authorization header
	SongID        string
	Origin        string
}

// Service is the checkout service.
type Service struct {
	store     Store
	verifier  Verifier
	gateway   Gateway
	publisher Publisher
	config    Config
}

// NewService creates a new checkout service. publisher may be nil.
func NewService(store Store, verifier Verifier, gateway Gateway, publisher Publisher, cfg Config) *Service {
	return &Service{
		store:     store,
		verifier:  verifier,
		gateway:   gateway,
		publisher: publisher,
		config:    cfg,
	}
}

// CreateCheckout records a pending purchase and opens a checkout session.
func (s *Service) CreateCheckout(ctx context.Context, req Request) (*stripe.CheckoutSession, error) {
	if req.Authorization == "" {
		return nil, ErrNoAuthorization
	}
	token := strings.TrimSpace(strings.TrimPrefix(req.Authorization, "Bearer "))
	u, err := s.verifier.VerifyToken(ctx, token)
	if err != nil || u == nil {
		zlog.Debug().Msgf("checkout: token rejected: %v", err)
		return nil, ErrInvalidToken
	}

	if strings.TrimSpace(req.SongID) == "" {
		return nil, ErrSongRequired
	}

	song, err := s.store.GetSong(ctx, req.SongID)
	if err != nil {
		if !errors.Is(err, catalog.ErrNotFound) {
			zlog.Error().Msgf("checkout: failed to load song=%s: %v", req.SongID, err)
		}
		return nil, ErrSongNotFound
	}
	if !song.IsPurchasable() {
		return nil, ErrNotForSale
	}

	owned, err := s.store.HasPurchased(ctx, u.ID, song.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to check ownership")
	}
	if owned {
		return nil, ErrAlreadyOwned
	}

	p, err := s.store.CreatePurchase(ctx, purchase.Purchase{
		UserID: u.ID,
		SongID: song.ID,
		Amount: *song.Price,
		Status: purchase.StatusPending,
	})
	if err != nil || p == nil {
		zlog.Error().Msgf("checkout: failed to create purchase: user=%s song=%s err=%v", u.ID, song.ID, err)
		return nil, ErrPurchaseFailed
	}

	base := s.returnBase(req.Origin)
	session, err := s.gateway.CreateCheckout(ctx, stripe.CheckoutRequest{
		PurchaseID:  p.ID,
		Name:        song.Title,
		Description: s.config.Description,
		ImageURL:    song.ImageURL,
		AmountCents: song.PriceCents(),
		SuccessURL:  base + "/purchases?success=true&session_id={CHECKOUT_SESSION_ID}",
		CancelURL:   base + "/purchases?canceled=true",
	})
	if err != nil {
		return nil, err
	}

	zlog.Info().Msgf("checkout: session opened purchase=%s user=%s song=%s", p.ID, u.ID, song.ID)
	return session, nil
}

func (s *Service) returnBase(origin string) string {
	if origin != "" {
		if u, err := url.Parse(origin); err == nil && u.Scheme != "" && u.Host != "" {
			return strings.TrimRight(origin, "/")
		}
	}
	return strings.TrimRight(s.config.SiteURL, "/")
}

// HandleWebhook completes the purchase named by a payment event. Other
// events are acknowledged without effect.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := s.gateway.ParseEvent(payload, signature)
	if err != nil {
		if errors.Is(err, stripe.ErrInvalidSignature) {
			return errors.Mark(err, ErrBadSignature)
		}
		return err
	}
	if !ev.Completes() {
		zlog.Debug().Msgf("checkout: ignoring event type=%s", ev.Type)
		return nil
	}

	p, err := s.store.CompletePurchase(ctx, ev.PurchaseID)
	if err != nil {
		zlog.Error().Msgf("checkout: failed to complete purchase=%s: %v", ev.PurchaseID, err)
		return errors.Mark(err, ErrUpdateFailed)
	}
	zlog.Info().Msgf("checkout: purchase completed purchase=%s event=%s", p.ID, ev.ID)

	if s.publisher != nil {
		err := s.publisher.PublishPurchase(ctx, cache.PurchaseEvent{PurchaseID: p.ID, UserID: p.UserID, SongID: p.SongID})
		if err != nil {
			zlog.Warn().Msgf("checkout: %v", err)
		}
	}
	return nil
}
