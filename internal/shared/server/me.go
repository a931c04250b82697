package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ideascope-backend/internal/shared/server/middleware"
	"ideascope-backend/internal/shared/server/respond"
	"ideascope-backend/internal/users"
)

// registerMeRoutes attaches the /me endpoint.
func registerMeRoutes(rg *gin.RouterGroup, directory UserDirectory) {
	rg.GET("/me", func(c *gin.Context) {
		userID := middleware.UserIDFromContext(c)
		if userID == 0 {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		user, err := directory.GetByID(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, users.ErrNotFound) {
				respond.Error(c, http.StatusNotFound, "not_found", "user not found", nil)
				return
			}
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load user", nil)
			return
		}

		respond.JSON(c, http.StatusOK, gin.H{
			"userId":      user.ID,
			"email":       user.Email,
			"name":        user.Name,
			"plan":        user.Plan,
			"permissions": user.Permissions,
		})
	})
}
