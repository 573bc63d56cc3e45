package postgres

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/osa030/melodify/internal/domain/purchase"
)

// ListPurchases returns a user's purchases with songs joined, newest first.
func (s *Store) ListPurchases(ctx context.Context, userID string) ([]purchase.Purchase, error) {
	rows, err := s.db.Query(ctx,
		`SELECT p.id::text, p.user_id::text, p.song_id::text, p.amount, p.status, p.created_at, `+songColumns+`
		FROM purchases p
		JOIN songs s ON s.id = p.song_id
		LEFT JOIN artists a ON a.id = s.artist_id
		WHERE p.user_id = $1 ORDER BY p.created_at DESC`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list purchases")
	}
	defer rows.Close()

	purchases := make([]purchase.Purchase, 0)
	for rows.Next() {
		var p purchase.Purchase
		var status string
		song, err := scanSong(rows, &p.ID, &p.UserID, &p.SongID, &p.Amount, &status, &p.CreatedAt)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan purchase")
		}
		p.Status = purchase.Status(status)
		p.Song = song
		purchases = append(purchases, p)
	}
	return purchases, errors.Wrap(rows.Err(), "failed to list purchases")
}

// CreatePurchase inserts a purchase row.
func (s *Store) CreatePurchase(ctx context.Context, p purchase.Purchase) (*purchase.Purchase, error) {
	err := s.db.QueryRow(ctx,
		`INSERT INTO purchases (user_id, song_id, amount, status) VALUES ($1, $2, $3, $4) RETURNING id::text, created_at`,
		p.UserID, p.SongID, p.Amount, string(p.Status)).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create purchase")
	}
	return &p, nil
}

// CompletePurchase marks a purchase completed and returns it.
// Completing twice is harmless.
func (s *Store) CompletePurchase(ctx context.Context, purchaseID string) (*purchase.Purchase, error) {
	var p purchase.Purchase
	var status string
	err := s.db.QueryRow(ctx,
		`UPDATE purchases SET status = $2 WHERE id = $1
		RETURNING id::text, user_id::text, song_id::text, amount, status, created_at`,
		purchaseID, string(purchase.StatusCompleted)).
		Scan(&p.ID, &p.UserID, &p.SongID, &p.Amount, &status, &p.CreatedAt)
	if err != nil {
		return nil, notFound(err, "failed to complete purchase %s", purchaseID)
	}
	p.Status = purchase.Status(status)
	return &p, nil
}

// HasPurchased reports whether the user completed a purchase of the song.
func (s *Store) HasPurchased(ctx context.Context, userID, songID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM purchases WHERE user_id = $1 AND song_id = $2 AND status = $3)`,
		userID, songID, string(purchase.StatusCompleted)).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check purchase")
	}
	return exists, nil
}
