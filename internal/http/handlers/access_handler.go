package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"erp_access/internal/auth"
	"erp_access/internal/domain"
	"erp_access/internal/models"
	"erp_access/internal/rbac"
)

// Decider is the part of the engine the handlers use.
type Decider interface {
	CheckModelAccess(ctx context.Context, userID uint64, model string, op rbac.Operation) (bool, error)
	CompileFilter(ctx context.Context, userID uint64, model string, op rbac.Operation) (*rbac.Filter, error)
	EffectiveGroups(ctx context.Context, userID uint64) ([]models.PermissionGroup, error)
	ApplyRecordFilter(ctx context.Context, userID uint64, model string, op rbac.Operation, base *gorm.DB) (*gorm.DB, error)
	CheckRecordAccess(ctx context.Context, userID uint64, model string, record domain.Record, op rbac.Operation) (bool, error)
	HasGroup(ctx context.Context, userID uint64, identifier string) (bool, error)
}

// MyGroups lists the caller's effective groups. With has=<identifier> it
// only answers whether the caller holds that group.
func MyGroups(eng Decider) gin.HandlerFunc {
	return func(c *gin.Context) {
		cl, ok := auth.ClaimsFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if identifier, ok := c.GetQuery("has"); ok {
			held, err := eng.HasGroup(c.Request.Context(), cl.UserID, identifier)
			if err != nil {
				decisionError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"group": identifier, "has": held})
			return
		}
		groups, err := eng.EffectiveGroups(c.Request.Context(), cl.UserID)
		if err != nil {
			decisionError(c, err)
			return
		}
		out := make([]gin.H, 0, len(groups))
		for _, g := range groups {
			out = append(out, gin.H{
				"id":         g.ID,
				"identifier": g.Identifier,
				"name":       g.Name,
				"module":     g.Module,
				"category":   g.Category,
			})
		}
		c.JSON(http.StatusOK, gin.H{"groups": out})
	}
}

// CheckAccess answers GET /access/check?model=crm.lead&op=read for the caller.
// With explain=1 the compiled record filter is included.
func CheckAccess(eng Decider) gin.HandlerFunc {
	return func(c *gin.Context) {
		cl, ok := auth.ClaimsFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		model := c.Query("model")
		if model == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "model is required"})
			return
		}
		op, err := rbac.ParseOperation(c.DefaultQuery("op", "read"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx := c.Request.Context()
		allowed, err := eng.CheckModelAccess(ctx, cl.UserID, model, op)
		if err != nil {
			decisionError(c, err)
			return
		}
		resp := gin.H{"model": model, "operation": op, "allowed": allowed}

		if c.Query("explain") == "1" {
			f, err := eng.CompileFilter(ctx, cl.UserID, model, op)
			if err != nil {
				decisionError(c, err)
				return
			}
			resp["filter"] = f.String()
			resp["unrestricted"] = f.Unrestricted()
		}
		c.JSON(http.StatusOK, resp)
	}
}

// decisionError maps engine errors: a failed check is never reported as a
// plain denial.
func decisionError(c *gin.Context, err error) {
	switch {
	case rbac.IsStorageErr(err):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "access check unavailable"})
	case rbac.IsMalformedRuleErr(err):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "access rules misconfigured"})
	case rbac.IsNotFoundErr(err):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "access check failed"})
	}
}
