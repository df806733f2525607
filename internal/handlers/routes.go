package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Keoroanthony/orders-api/internal/auth"
)

// Register mounts every route on r. Session middleware must already be
// installed for the browser login routes.
func Register(r *gin.Engine, h *Handler, gate *auth.Gate) {
	// ── public endpoints ──
	r.GET("/health", h.Health)
	r.GET("/auth/login", gate.Login)
	r.GET("/auth/callback", gate.Callback)
	r.POST("/auth/logout", auth.Logout)
	r.GET("/test-sms", h.TestSMS)

	// ── protected API ──
	api := r.Group("/")
	api.Use(auth.RequireAuth(gate))
	{
		api.GET("/customers", h.ListCustomers)
		api.POST("/customers", h.CreateCustomer)
		api.GET("/customers/:id", h.GetCustomer)
		api.PUT("/customers/:id", h.UpdateCustomer)
		api.PATCH("/customers/:id", h.PatchCustomer)
		api.DELETE("/customers/:id", h.DeleteCustomer)

		api.GET("/orders", h.ListOrders)
		api.POST("/orders", h.CreateOrder)
		api.GET("/orders/:id", h.GetOrder)
		api.PUT("/orders/:id", h.UpdateOrder)
		api.PATCH("/orders/:id", h.PatchOrder)
		api.DELETE("/orders/:id", h.DeleteOrder)
	}
}

func (h *Handler) Health(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
