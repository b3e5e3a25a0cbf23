package httpserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"erp_access/internal/auth"
	"erp_access/internal/http/handlers"
	"erp_access/internal/metrics"
	"erp_access/internal/rbac"
	"erp_access/internal/store"
)

// Deps is everything the router needs from the composition root.
type Deps struct {
	DB        *gorm.DB
	Store     *store.Store
	Engine    *rbac.Engine
	Metrics   *metrics.Metrics
	Log       *logrus.Logger
	JWTSecret string
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLog(d.Log), observe(d.Metrics), requestCache())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	// Public routes
	r.POST("/api/v1/auth/login", handlers.LoginHandler(d.Store.Users, d.JWTSecret, d.Log))
	r.POST("/api/v1/auth/logout", handlers.LogoutHandler())

	eng := d.Engine
	api := r.Group("/api/v1", auth.JWT(d.Store.Users, d.JWTSecret))
	{
		api.GET("/me/groups", handlers.MyGroups(eng))
		api.GET("/access/check", handlers.CheckAccess(eng))

		// Users
		api.GET("/users", requireAccess(eng, rbac.UsersModel, rbac.Read), handlers.ListUsers(d.DB, eng))
		api.POST("/users", requireAccess(eng, rbac.UsersModel, rbac.Create), handlers.CreateUser(d.Store.Users))
		api.PUT("/users/:id/groups", requireAccess(eng, rbac.UsersModel, rbac.Write), handlers.AssignGroups(d.Store.Users, d.Store.Groups, eng))

		// Groups
		api.GET("/groups", requireAccess(eng, "res.groups", rbac.Read), handlers.ListGroups(d.Store.Groups))
		api.POST("/groups", requireAccess(eng, "res.groups", rbac.Write), handlers.UpsertGroup(d.Store.Groups))

		// Grants and record rules
		api.POST("/model-access", requireAccess(eng, "ir.model.access", rbac.Write), handlers.UpsertModelAccess(d.Store.Access))
		api.POST("/record-rules", requireAccess(eng, "ir.rule", rbac.Write), handlers.UpsertRecordRule(d.Store.Rules))

		// Audit Trail
		api.GET("/audit", requireAccess(eng, "base.audit_log", rbac.Read), handlers.ListAudit(d.DB))
	}

	return r
}

// requestCache gives every request its own memo of resolved groups and
// decisions, so one request never sees two answers for the same question.
func requestCache() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(rbac.WithRequestCache(c.Request.Context()))
		c.Next()
	}
}

func observe(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()))
	}
}

func requestLog(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if log == nil {
			return
		}
		log.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
		}).Debug("request")
	}
}

// requireAccess aborts unless the caller holds the operation on the model. A check
// that could not be made is a 503, never a 403.
func requireAccess(eng handlers.Decider, model string, op rbac.Operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		cl, ok := auth.ClaimsFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		allowed, err := eng.CheckModelAccess(c.Request.Context(), cl.UserID, model, op)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "access check unavailable"})
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "missing": model + ":" + op.String()})
			return
		}
		c.Next()
	}
}
