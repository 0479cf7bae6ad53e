package routes

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"

	"docchat-platform/internal/auth"
	"docchat-platform/internal/config"
	"docchat-platform/internal/database"
	"docchat-platform/internal/logger"
	"docchat-platform/utils"

	"github.com/gin-gonic/gin"
)

const stateCookie = "oauth_state"

func SetupAuthRoutes(
	router *gin.Engine,
	cfg *config.Config,
	google *auth.GoogleAuthenticator,
	sessions *auth.SessionManager,
	provisioner *database.Provisioner,
) {
	group := router.Group("/api/auth")

	// Cookies are Secure in release mode; local development runs on
	// plain http.
	secure := cfg.GinMode == "release"

	// Begin the OAuth flow. The state value is mirrored in a short-lived
	// cookie and checked on callback.
	group.POST("/google", func(c *gin.Context) {
		state := generateState()
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(stateCookie, state, 600, "/", "", secure, true)
		c.Redirect(http.StatusFound, google.AuthURL(state))
	})

	// Callback from Google. This is where identity resolution and, for a
	// first login, tenant database provisioning happen. The user is only
	// redirected to the app once their database is ready and bound.
	group.GET("/google/callback", func(c *gin.Context) {
		state := c.Query("state")
		expected, err := c.Cookie(stateCookie)
		if err != nil || state == "" || state != expected {
			utils.RespondWithUnauthorized(c, "OAuth state mismatch")
			return
		}
		c.SetCookie(stateCookie, "", -1, "/", "", secure, true)

		code := c.Query("code")
		if code == "" {
			utils.RespondWithBadRequest(c, "Missing authorization code", nil)
			return
		}

		profile, err := google.Exchange(c.Request.Context(), code)
		if err != nil {
			logger.Error("OAuth code exchange failed", "error", err)
			utils.RespondWithUnauthorized(c, "Authentication failed")
			return
		}

		account, tenant, err := provisioner.ResolveIdentity(c.Request.Context(), *profile)
		if err != nil {
			// The race arrives wrapped in a ProvisionError, so it has to
			// be checked first. A concurrent login finished provisioning;
			// the retry will find the bound row.
			if errors.Is(err, database.ErrTenantBindingRace) {
				utils.RespondWithUpstreamFailure(c, "Login collided with another attempt, please retry", nil)
				return
			}
			var provErr *database.ProvisionError
			if errors.As(err, &provErr) {
				logger.Error("Tenant provisioning failed",
					"email", profile.Email, "state", string(provErr.State), "error", err)
				utils.RespondWithUpstreamFailure(c, "Could not provision your workspace, please retry",
					gin.H{"state": string(provErr.State)})
				return
			}
			logger.Error("Identity resolution failed", "email", profile.Email, "error", err)
			utils.RespondWithInternalError(c, "Authentication failed", nil)
			return
		}

		token, err := sessions.Issue(c.Request.Context(), account.AccountID, account.Email, tenant.VectorDBID)
		if err != nil {
			logger.Error("Session issue failed", "account", account.AccountID, "error", err)
			utils.RespondWithInternalError(c, "Authentication failed", nil)
			return
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cfg.SessionCookie, token, cfg.SessionDuration, "/", "", secure, true)
		c.Redirect(http.StatusFound, cfg.PostLoginURL)
	})

	group.POST("/logout", func(c *gin.Context) {
		token, err := c.Cookie(cfg.SessionCookie)
		if err == nil && token != "" {
			if claims, err := sessions.Validate(c.Request.Context(), token); err == nil {
				if err := sessions.Revoke(c.Request.Context(), claims.ID); err != nil {
					logger.Warn("Session revocation failed", "error", err)
				}
			}
		}
		c.SetCookie(cfg.SessionCookie, "", -1, "/", "", secure, true)
		c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
	})
}

func generateState() string {
	bytes := make([]byte, 16)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
