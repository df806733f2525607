package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/Keoroanthony/orders-api/internal/auth"
	"github.com/Keoroanthony/orders-api/internal/idempotency"
	"github.com/Keoroanthony/orders-api/internal/models"
	"github.com/Keoroanthony/orders-api/internal/orders"
)

// OrderRequest is the body of POST, PUT and PATCH on orders. Amount accepts a
// JSON string or number.
type OrderRequest struct {
	Customer *uint            `json:"customer"`
	Item     *string          `json:"item"`
	Amount   *decimal.Decimal `json:"amount"`
}

type OrderResponse struct {
	ID       uint      `json:"id"`
	Customer uint      `json:"customer"`
	Item     string    `json:"item"`
	Amount   string    `json:"amount"`
	Time     time.Time `json:"time"`
}

func newOrderResponse(o *models.Order) OrderResponse {
	return OrderResponse{
		ID:       o.ID,
		Customer: o.CustomerID,
		Item:     o.Item,
		Amount:   o.AmountString(),
		Time:     o.Time,
	}
}

func (h *Handler) ListOrders(c *gin.Context) {
	list, err := h.store.ListOrders(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]OrderResponse, 0, len(list))
	for i := range list {
		out = append(out, newOrderResponse(&list[i]))
	}
	c.JSON(http.StatusOK, out)
}

// CreateOrder stores the order and notifies the customer. With an
// Idempotency-Key header, a retry of a completed request gets the first
// response back with 200 and causes no new row and no new SMS.
func (h *Handler) CreateOrder(c *gin.Context) {
	ctx := c.Request.Context()
	principal := auth.CurrentPrincipal(c)

	replayKey, ok := h.replayKey(c, principal)
	if !ok {
		return
	}
	if replayKey != "" {
		rec, err := h.replays.Lookup(ctx, replayKey)
		if err != nil {
			slog.WarnContext(ctx, "idempotency lookup failed, creating without replay", "error", err)
			replayKey = ""
		} else if rec != nil {
			c.Header(idempotency.HeaderReplayed, "true")
			c.Data(http.StatusOK, "application/json; charset=utf-8", rec.Body)
			return
		}
	}

	var req OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	in := orders.CreateOrderInput{Amount: req.Amount}
	if req.Customer != nil {
		in.CustomerID = *req.Customer
	}
	if req.Item != nil {
		in.Item = *req.Item
	}

	order, err := h.orders.CreateOrder(ctx, principal, in)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := newOrderResponse(order)
	if replayKey != "" {
		if err := h.replays.Save(ctx, replayKey, http.StatusCreated, resp); err != nil {
			slog.WarnContext(ctx, "idempotency save failed", "order_id", order.ID, "error", err)
		}
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	order, err := h.store.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newOrderResponse(order))
}

func (h *Handler) UpdateOrder(c *gin.Context) {
	h.updateOrder(c, false)
}

func (h *Handler) PatchOrder(c *gin.Context) {
	h.updateOrder(c, true)
}

func (h *Handler) updateOrder(c *gin.Context, partial bool) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	var req OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	order, err := h.orders.UpdateOrder(c.Request.Context(), id, orders.UpdateOrderInput{
		CustomerID: req.Customer,
		Item:       req.Item,
		Amount:     req.Amount,
	}, partial)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newOrderResponse(order))
}

func (h *Handler) DeleteOrder(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	if err := h.store.DeleteOrder(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// replayKey returns the cache key for this request, or "" when replay does
// not apply. It writes a 400 and returns false for an unusable header.
func (h *Handler) replayKey(c *gin.Context, principal *models.Principal) (string, bool) {
	if h.replays == nil {
		return "", true
	}

	key := strings.TrimSpace(c.GetHeader(idempotency.HeaderKey))
	if key == "" {
		return "", true
	}
	if !idempotency.ValidKey(key) {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid Idempotency-Key header"})
		return "", false
	}

	scope := "anonymous"
	if principal != nil {
		scope = strconv.FormatUint(uint64(principal.ID), 10)
	}
	return h.replays.Key(scope, key), true
}
