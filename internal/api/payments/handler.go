// Package payments serves the checkout and payment webhook endpoints.
package payments

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/melodify/internal/app/checkout"
	"github.com/osa030/melodify/internal/infra/stripe"
)

const (
	maxCheckoutBody = 64 << 10
	maxWebhookBody  = 1 << 20

	msgInternal = "Internal server error"
)

// Service is the checkout service.
type Service interface {
	CreateCheckout(ctx context.Context, req checkout.Request) (*stripe.CheckoutSession, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// errorResponses maps checkout errors to the status and message returned.
var errorResponses = []struct {
	err     error
	status  int
	message string
}{
	{checkout.ErrNoAuthorization, http.StatusUnauthorized, "No authorization header"},
	{checkout.ErrInvalidToken, http.StatusUnauthorized, "Invalid token"},
	{checkout.ErrSongRequired, http.StatusBadRequest, "Song ID is required"},
	{checkout.ErrSongNotFound, http.StatusNotFound, "Song not found"},
	{checkout.ErrNotForSale, http.StatusBadRequest, "Song is not for sale"},
	{checkout.ErrAlreadyOwned, http.StatusConflict, "Song already purchased"},
	{checkout.ErrPurchaseFailed, http.StatusInternalServerError, "Failed to create purchase"},
	{checkout.ErrBadSignature, http.StatusBadRequest, "Invalid signature"},
	{checkout.ErrUpdateFailed, http.StatusInternalServerError, "Failed to update purchase"},
}

type createPaymentRequest struct {
	SongID string `json:"songId"`
}

// Handler serves the payment endpoints.
type Handler struct {
	svc           Service
	allowedOrigin string
}

// NewHandler creates a new payments handler.
func NewHandler(svc Service, allowedOrigin string) *Handler {
	if allowedOrigin == "" {
		allowedOrigin = "*"
	}
	return &Handler{svc: svc, allowedOrigin: allowedOrigin}
}

// Router returns the routes. The endpoints are served both at the root and
// under /functions/v1, where hosted clients call them.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(h.cors)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": "payments"})
	})

	routes := func(r chi.Router) {
		r.Post("/create-payment", h.createPayment)
		r.Post("/payment-webhook", h.paymentWebhook)
	}
	routes(r)
	r.Route("/functions/v1", routes)
	return r
}

// cors answers preflight requests and sets the CORS headers on every
// response.
func (h *Handler) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", h.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	var body createPaymentRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxCheckoutBody)).Decode(&body); err != nil {
		zlog.Warn().Msgf("payments: invalid create-payment body: %v", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	session, err := h.svc.CreateCheckout(r.Context(), checkout.Request{
		Authorization: r.Header.Get("Authorization"),
		SongID:        body.SongID,
		Origin:        r.Header.Get("Origin"),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		zlog.Warn().Msgf("payments: failed to read webhook body: %v", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	if err := h.svc.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func writeServiceError(w http.ResponseWriter, err error) {
	for _, e := range errorResponses {
		if errors.Is(err, e.err) {
			writeError(w, e.status, e.message)
			return
		}
	}
	zlog.Error().Msgf("payments: %v", err)
	writeError(w, http.StatusInternalServerError, msgInternal)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zlog.Info().Msgf("payments: %s %s status=%d duration=%v request_id=%s",
			r.Method, r.URL.Path, ww.Status(), time.Since(start), middleware.GetReqID(r.Context()))
	})
}
