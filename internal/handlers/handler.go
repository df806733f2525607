package handlers

import (
	"github.com/Keoroanthony/orders-api/internal/db"
	"github.com/Keoroanthony/orders-api/internal/idempotency"
	"github.com/Keoroanthony/orders-api/internal/notifier"
	"github.com/Keoroanthony/orders-api/internal/orders"
)

// Handler serves the customer, order and test-sms endpoints.
type Handler struct {
	store   *db.Store
	orders  *orders.Workflow
	testSMS notifier.SMSSender
	replays *idempotency.Store
}

type Option func(*Handler)

// WithIdempotency makes POST /orders honour the Idempotency-Key header.
func WithIdempotency(s *idempotency.Store) Option {
	return func(h *Handler) { h.replays = s }
}

// New builds a Handler. testSMS backs GET /test-sms and should report gateway
// failures rather than hide them.
func New(store *db.Store, workflow *orders.Workflow, testSMS notifier.SMSSender, opts ...Option) *Handler {
	h := &Handler{store: store, orders: workflow, testSMS: testSMS}
	for _, opt := range opts {
		opt(h)
	}
	return h
}
