// Package stripe creates hosted checkout sessions and parses payment
// webhooks through the Stripe API.
package stripe

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"
)

// MetadataPurchaseID is the metadata key carrying the purchase id.
const MetadataPurchaseID = "purchase_id"

// Event types that complete a purchase.
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventCheckoutComplete = "checkout.session.completed"
)

// ErrInvalidSignature is returned when a webhook signature does not verify.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Config represents gateway configuration.
type Config struct {
	SecretKey     string
	WebhookSecret string // Signature verification is skipped when empty
	Currency      string
}

// CheckoutRequest describes a single-item checkout.
type CheckoutRequest struct {
	PurchaseID  string
	Name        string
	Description string
	ImageURL    string
	AmountCents int64
	SuccessURL  string
	CancelURL   string
}

// CheckoutSession is a created hosted checkout page.
type CheckoutSession struct {
	ID  string `json:"sessionId"`
	URL string `json:"url"`
}

// Event is a parsed webhook event.
type Event struct {
	ID         string
	Type       string
	PurchaseID string
}

// Completes reports whether the event marks a purchase as paid.
func (e *Event) Completes() bool {
	return e.PurchaseID != "" && (e.Type == EventPaymentSucceeded || e.Type == EventCheckoutComplete)
}

type sessionCreator interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// Gateway is a Stripe payment gateway.
type Gateway struct {
	sessions      sessionCreator
	webhookSecret string
	currency      string
}

// New creates a new gateway.
func New(cfg Config) (*Gateway, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("stripe secret key is required")
	}
	sc := &session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: cfg.SecretKey}
	return newGateway(sc, cfg), nil
}

func newGateway(sessions sessionCreator, cfg Config) *Gateway {
	currency := strings.ToLower(cfg.Currency)
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	return &Gateway{
		sessions:      sessions,
		webhookSecret: cfg.WebhookSecret,
		currency:      currency,
	}
}

// CreateCheckout creates a hosted checkout session for req.
// The purchase id is used as the idempotency key.
func (g *Gateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if req.PurchaseID == "" {
		return nil, errors.New("purchase id is required")
	}
	if req.AmountCents <= 0 {
		return nil, errors.Newf("invalid amount: %d", req.AmountCents)
	}

	product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripe.String(req.Name),
	}
	if req.Description != "" {
		product.Description = stripe.String(req.Description)
	}
	if req.ImageURL != "" {
		product.Images = stripe.StringSlice([]string{req.ImageURL})
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:    stripe.String(g.currency),
					ProductData: product,
					UnitAmount:  stripe.Int64(req.AmountCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{MetadataPurchaseID: req.PurchaseID},
		},
	}
	params.Context = ctx
	params.AddMetadata(MetadataPurchaseID, req.PurchaseID)
	params.SetIdempotencyKey(req.PurchaseID)

	s, err := g.sessions.New(params)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create checkout session")
	}

	zlog.Info().Msgf("stripe: checkout session created: purchase=%s session=%s", req.PurchaseID, s.ID)
	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

// ParseEvent decodes a webhook payload. When a webhook secret is configured
// the Stripe-Signature header must verify.
func (g *Gateway) ParseEvent(payload []byte, signature string) (*Event, error) {
	var event stripe.Event
	if g.webhookSecret != "" {
		var err error
		event, err = webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
			webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
		if err != nil {
			return nil, errors.Mark(errors.Wrap(err, "failed to verify webhook"), ErrInvalidSignature)
		}
	} else if err := json.Unmarshal(payload, &event); err != nil {
		return nil, errors.Wrap(err, "failed to parse webhook payload")
	}

	result := &Event{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return result, nil
	}

	var object struct {
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(event.Data.Raw, &object); err != nil {
		return nil, errors.Wrap(err, "failed to parse webhook object")
	}
	result.PurchaseID = object.Metadata[MetadataPurchaseID]
	return result, nil
}
