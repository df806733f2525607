package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/Keoroanthony/orders-api/internal/models"
)

// CurrentPrincipal returns the principal set by RequireAuth, or nil.
func CurrentPrincipal(c *gin.Context) *models.Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*models.Principal)
	return p
}
