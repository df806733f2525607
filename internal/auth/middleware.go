package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	principalKey   = "principal"
	sessionKey     = "principal_id"
	stateKey       = "oauth_state"
	messageNoCreds = "authentication credentials were not provided"
)

// RequireAuth rejects anonymous callers and puts the *models.Principal on the
// gin context. A bearer token wins over a session cookie.
func RequireAuth(g *Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		principal, err := g.Authorize(ctx, c.GetHeader("Authorization"))
		if err != nil {
			abortAuth(c, err)
			return
		}

		if principal == nil {
			if id, ok := sessionPrincipalID(c); ok {
				principal, err = g.Principal(ctx, id)
				if err != nil {
					abortAuth(c, err)
					return
				}
			}
		}

		if principal == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": messageNoCreds})
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

func abortAuth(c *gin.Context, err error) {
	ctx := c.Request.Context()

	switch {
	case errors.Is(err, ErrConfiguration):
		slog.ErrorContext(ctx, "cannot authenticate request", "error", err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "identity provider not configured"})
	case errors.Is(err, ErrAuthentication):
		slog.InfoContext(ctx, "rejected credentials", "error", err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	default:
		slog.ErrorContext(ctx, "authentication error", "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func sessionPrincipalID(c *gin.Context) (uint, bool) {
	if _, exists := c.Get(sessions.DefaultKey); !exists {
		return 0, false
	}
	id, ok := sessions.Default(c).Get(sessionKey).(uint)
	return id, ok && id != 0
}

// ─────────────────────────────────────────────────────────────────────────────
// Browser login
// ─────────────────────────────────────────────────────────────────────────────

// Login handles GET /auth/login.
func (g *Gate) Login(c *gin.Context) {
	cfg, err := g.getOAuth2Config(c.Request.Context())
	if err != nil {
		abortAuth(c, err)
		return
	}

	state, err := randomState()
	if err != nil {
		abortAuth(c, err)
		return
	}

	sess := sessions.Default(c)
	sess.Set(stateKey, state)
	if err := sess.Save(); err != nil {
		abortAuth(c, err)
		return
	}

	c.Redirect(http.StatusFound, cfg.AuthCodeURL(state))
}

// Callback handles GET /auth/callback.
func (g *Gate) Callback(c *gin.Context) {
	ctx := c.Request.Context()

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code missing"})
		return
	}

	sess := sessions.Default(c)
	if want, _ := sess.Get(stateKey).(string); want == "" || want != c.Query("state") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "state mismatch"})
		return
	}

	cfg, err := g.getOAuth2Config(ctx)
	if err != nil {
		abortAuth(c, err)
		return
	}

	oauth2Token, err := cfg.Exchange(ctx, code)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token exchange failed"})
		return
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no id_token in token response"})
		return
	}

	principal, err := g.Authorize(ctx, "Bearer "+rawIDToken)
	if err != nil {
		abortAuth(c, err)
		return
	}

	sess.Delete(stateKey)
	sess.Set(sessionKey, principal.ID)
	if err := sess.Save(); err != nil {
		abortAuth(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "logged in", "principal": principal})
}

// Logout handles POST /auth/logout.
func Logout(c *gin.Context) {
	sess := sessions.Default(c)
	sess.Clear()
	_ = sess.Save()
	c.Status(http.StatusNoContent)
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
