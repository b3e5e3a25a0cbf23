package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"erp_access/internal/auth"
	"erp_access/internal/models"
	"erp_access/internal/rbac"
	"erp_access/internal/store"
)

// ListUsers returns the users the caller may read, after record rules.
func ListUsers(db *gorm.DB, eng Decider) gin.HandlerFunc {
	return func(c *gin.Context) {
		cl, ok := auth.ClaimsFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		ctx := c.Request.Context()
		q, err := eng.ApplyRecordFilter(ctx, cl.UserID, rbac.UsersModel, rbac.Read, db.WithContext(ctx).Model(&models.User{}))
		if err != nil {
			decisionError(c, err)
			return
		}

		var users []models.User
		if err := q.Order("id").Find(&users).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load users"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"users": users})
	}
}

// CreateUser inserts a new user
func CreateUser(users *store.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in struct {
			Email     string  `json:"email" binding:"required,email"`
			Name      string  `json:"name" binding:"required"`
			Password  string  `json:"password" binding:"required"`
			CompanyID *uint64 `json:"company_id"`
			TeamID    *uint64 `json:"team_id"`
		}
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if len(in.Password) < 8 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 8 characters"})
			return
		}

		ctx := c.Request.Context()
		if _, err := users.ByEmail(ctx, in.Email); err == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "email already exists"})
			return
		} else if !rbac.IsNotFoundErr(err) {
			decisionError(c, err)
			return
		}

		u, err := users.UpsertUser(ctx, store.UserSpec{
			Email:     in.Email,
			Name:      strings.TrimSpace(in.Name),
			Password:  in.Password,
			CompanyID: in.CompanyID,
			TeamID:    in.TeamID,
		})
		if err != nil {
			decisionError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"user": u})
	}
}

// AssignGroups replaces the direct groups of the user in the path. The
// caller's write record rules on users must cover that user.
func AssignGroups(users *store.UserStore, groups *store.GroupStore, eng Decider) gin.HandlerFunc {
	return func(c *gin.Context) {
		cl, ok := auth.ClaimsFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
			return
		}
		var in struct {
			Groups []string `json:"groups"`
		}
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx := c.Request.Context()
		row, err := users.UserAttributes(ctx, id)
		if err != nil {
			decisionError(c, err)
			return
		}
		allowed, err := eng.CheckRecordAccess(ctx, cl.UserID, rbac.UsersModel, row, rbac.Write)
		if err != nil {
			decisionError(c, err)
			return
		}
		if !allowed {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "missing": rbac.UsersModel + ":" + rbac.Write.String()})
			return
		}

		if err := groups.AssignUserGroups(ctx, id, in.Groups); err != nil {
			if errors.Is(err, rbac.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			decisionError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": id, "groups": in.Groups})
	}
}
