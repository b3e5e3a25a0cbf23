package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"erp_access/internal/auth"
	"erp_access/internal/rbac"
	"erp_access/internal/store"
)

const tokenTTL = 24 * time.Hour

// LoginHandler authenticates the user and returns JWT
func LoginHandler(users *store.UserStore, jwtSecret string, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Email    string `json:"email" binding:"required,email"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		user, err := users.Authenticate(c.Request.Context(), input.Email, input.Password)
		if err != nil {
			if rbac.IsStorageErr(err) {
				log.WithError(err).Error("login failed")
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
				return
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
			return
		}

		tokenString, err := auth.IssueToken(jwtSecret, user, tokenTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create token"})
			return
		}

		c.SetCookie("token", tokenString, int(tokenTTL.Seconds()), "/", "", false, true)
		c.JSON(http.StatusOK, gin.H{
			"token": tokenString,
			"user": gin.H{
				"id":    user.ID,
				"email": user.Email,
				"name":  user.Name,
			},
		})
	}
}

// LogoutHandler clears the token cookie.
func LogoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.SetCookie("token", "", -1, "/", "", false, true)
		c.Status(http.StatusNoContent)
	}
}
