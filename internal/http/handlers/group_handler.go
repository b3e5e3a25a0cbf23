package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"erp_access/internal/store"
)

func ListGroups(groups *store.GroupStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := groups.List(c.Request.Context())
		if err != nil {
			decisionError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"groups": list})
	}
}

// UpsertGroup creates or updates a group and, when given, its implications.
func UpsertGroup(groups *store.GroupStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in struct {
			Identifier string   `json:"identifier" binding:"required"`
			Name       string   `json:"name" binding:"required"`
			Module     string   `json:"module"`
			Category   string   `json:"category"`
			Active     *bool    `json:"active"`
			Implies    []string `json:"implies"`
		}
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx := c.Request.Context()
		g, err := groups.UpsertGroup(ctx, store.GroupSpec{
			Identifier: in.Identifier,
			Name:       in.Name,
			Module:     in.Module,
			Category:   in.Category,
			Active:     in.Active == nil || *in.Active,
		})
		if err != nil {
			decisionError(c, err)
			return
		}
		if in.Implies != nil {
			if err := groups.SetImplications(ctx, in.Identifier, in.Implies); err != nil {
				decisionError(c, err)
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"group": g})
	}
}
