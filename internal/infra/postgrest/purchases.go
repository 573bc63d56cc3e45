package postgrest

import (
	"context"
	"net/http"
	"net/url"

	"github.com/cockroachdb/errors"

	"github.com/osa030/melodify/internal/domain/purchase"
)

// ListPurchases returns a user's purchases with songs joined, newest first.
func (c *Client) ListPurchases(ctx context.Context, userID string) ([]purchase.Purchase, error) {
	purchases := make([]purchase.Purchase, 0)
	err := c.do(ctx, request{
		method: http.MethodGet,
		table:  "purchases",
		query:  url.Values{"select": {"*,song:songs(*)"}, "user_id": {eq(userID)}, "order": {"created_at.desc"}},
	}, &purchases)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list purchases")
	}
	return purchases, nil
}

type purchaseInsert struct {
	UserID string          `json:"user_id"`
	SongID string          `json:"song_id"`
	Amount float64         `json:"amount"`
	Status purchase.Status `json:"status"`
}

// CreatePurchase inserts a purchase row.
func (c *Client) CreatePurchase(ctx context.Context, p purchase.Purchase) (*purchase.Purchase, error) {
	var created purchase.Purchase
	err := c.do(ctx, request{
		method: http.MethodPost,
		table:  "purchases",
		body:   purchaseInsert{UserID: p.UserID, SongID: p.SongID, Amount: p.Amount, Status: p.Status},
		single: true,
		write:  true,
	}, &created)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create purchase")
	}
	return &created, nil
}

// CompletePurchase marks a purchase completed and returns it.
// Completing twice is harmless.
func (c *Client) CompletePurchase(ctx context.Context, purchaseID string) (*purchase.Purchase, error) {
	var completed purchase.Purchase
	err := c.do(ctx, request{
		method: http.MethodPatch,
		table:  "purchases",
		query:  url.Values{"id": {eq(purchaseID)}},
		body:   map[string]purchase.Status{"status": purchase.StatusCompleted},
		single: true,
		write:  true,
	}, &completed)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to complete purchase %s", purchaseID)
	}
	return &completed, nil
}

// HasPurchased reports whether the user completed a purchase of the song.
func (c *Client) HasPurchased(ctx context.Context, userID, songID string) (bool, error) {
	var rows []struct {
		ID string `json:"id"`
	}
	err := c.do(ctx, request{
		method: http.MethodGet,
		table:  "purchases",
		query: url.Values{
			"select":  {"id"},
			"user_id": {eq(userID)},
			"song_id": {eq(songID)},
			"status":  {eq(string(purchase.StatusCompleted))},
			"limit":   {"1"},
		},
	}, &rows)
	if err != nil {
		return false, errors.Wrap(err, "failed to check purchase")
	}
	return len(rows) > 0, nil
}
