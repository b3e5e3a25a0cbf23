package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"erp_access/internal/domain"
	"erp_access/internal/store"
)

// UpsertModelAccess creates or updates a grant.
func UpsertModelAccess(access *store.AccessStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in struct {
			Identifier string `json:"identifier" binding:"required"`
			Model      string `json:"model" binding:"required"`
			Group      string `json:"group"`
			Read       bool   `json:"read"`
			Write      bool   `json:"write"`
			Create     bool   `json:"create"`
			Unlink     bool   `json:"unlink"`
			Active     *bool  `json:"active"`
			Module     string `json:"module"`
		}
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		a, err := access.UpsertModelAccess(c.Request.Context(), store.AccessSpec{
			Identifier: in.Identifier,
			Model:      in.Model,
			Group:      in.Group,
			Read:       in.Read,
			Write:      in.Write,
			Create:     in.Create,
			Unlink:     in.Unlink,
			Active:     in.Active == nil || *in.Active,
			Module:     in.Module,
		})
		if err != nil {
			decisionError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"model_access": a})
	}
}

// UpsertRecordRule creates or updates a record rule. Domains that do not
// parse are rejected here rather than stored and failed safe later.
func UpsertRecordRule(rules *store.RuleStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in struct {
			Identifier string   `json:"identifier" binding:"required"`
			Model      string   `json:"model" binding:"required"`
			Domain     string   `json:"domain"`
			Global     bool     `json:"global"`
			Groups     []string `json:"groups"`
			Read       bool     `json:"read"`
			Write      bool     `json:"write"`
			Create     bool     `json:"create"`
			Unlink     bool     `json:"unlink"`
			Priority   int      `json:"priority"`
			Active     *bool    `json:"active"`
			Module     string   `json:"module"`
		}
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if !in.Global && len(in.Groups) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "a rule must be global or name at least one group"})
			return
		}
		if _, err := domain.Parse(in.Domain); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		r, err := rules.UpsertRecordRule(c.Request.Context(), store.RuleSpec{
			Identifier: in.Identifier,
			Model:      in.Model,
			Domain:     in.Domain,
			Global:     in.Global,
			Groups:     in.Groups,
			Read:       in.Read,
			Write:      in.Write,
			Create:     in.Create,
			Unlink:     in.Unlink,
			Priority:   in.Priority,
			Active:     in.Active == nil || *in.Active,
			Module:     in.Module,
		})
		if err != nil {
			decisionError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"record_rule": r})
	}
}
