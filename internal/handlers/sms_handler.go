package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	testSMSMessage       = "This is a test message from orders-api."
	testSMSFailedMessage = "sms dispatch failed"
)

// TestSMS handles GET /test-sms?phone=. Unlike order notifications, a failed
// dispatch is reported to the caller.
func (h *Handler) TestSMS(c *gin.Context) {
	ctx := c.Request.Context()

	phone := strings.TrimSpace(c.Query("phone"))
	if phone == "" {
		fieldError(c, "phone", "phone query parameter is required")
		return
	}

	outcome := h.testSMS.Send(ctx, phone, testSMSMessage)
	if !outcome.OK() {
		// The gateway error can quote the raw response, so it stays in the log.
		slog.ErrorContext(ctx, "test sms failed", "to", outcome.To, "error", outcome.Err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "failure",
			"outcome": outcome.Status,
			"to":      outcome.To,
			"error":   testSMSFailedMessage,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "success",
		"outcome":  outcome.Status,
		"to":       outcome.To,
		"response": outcome.Response,
	})
}
