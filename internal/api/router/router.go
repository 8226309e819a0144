package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"blood-connect/backend/config"
	"blood-connect/backend/internal/api/handler"
	"blood-connect/backend/internal/api/middleware"
	"blood-connect/backend/pkg/jwt"
	"blood-connect/backend/pkg/metrics"
	"blood-connect/backend/pkg/redis"
)

// roleAdmin is an operator token role; it never appears on profiles.
const roleAdmin = "admin"

// Setup builds the gin engine. rdb may be nil when Redis is disabled.
func Setup(
	cfg *config.Config,
	h *handler.Handler,
	jwtMgr *jwt.Manager,
	rdb *redis.Client,
	m *metrics.Metrics,
	db *gorm.DB,
	logger *zap.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// avoid typed-nil interfaces when Redis is off
	var (
		revoked middleware.RevocationChecker
		limiter middleware.Limiter
	)
	if rdb != nil {
		revoked = rdb
		limiter = rdb
	}

	// ── global middleware ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics(m))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimitBytes))

	// ── health / metrics ──
	r.GET("/health", func(c *gin.Context) {
		if db != nil {
			sqlDB, err := db.DB()
			if err == nil {
				err = sqlDB.PingContext(c.Request.Context())
			}
			if err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "unreachable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtMgr, revoked))
	{
		requests := v1.Group("/blood-requests")
		{
			requests.POST("", h.BloodRequest.CreateRequest)
			requests.GET("", h.BloodRequest.ListRequests)
			requests.GET("/export", h.Export.ExportRequests)
			requests.PUT("/:id", h.BloodRequest.UpdateRequest)
			requests.PATCH("/:id", h.BloodRequest.EditRequest)
			requests.DELETE("/:id", h.BloodRequest.DeleteRequest)
			requests.POST("/:id/fulfill", h.BloodRequest.FulfillRequest)
			requests.POST("/:id/cancel", h.BloodRequest.CancelRequest)

			requests.POST("/:id/respond",
				middleware.RateLimit(limiter, cfg.RateLimit.RespondLimit, cfg.RateLimit.RespondWindow),
				h.BloodRequest.Respond,
			)
			requests.POST("/:id/responses/:responseId/accept", h.BloodRequest.AcceptResponse)
			requests.POST("/:id/responses/:responseId/decline", h.BloodRequest.DeclineResponse)
		}

		admin := v1.Group("/admin", middleware.RoleAuth(roleAdmin))
		{
			admin.POST("/reconcile-indices", h.BloodRequest.ReconcileIndices)
		}
	}

	return r
}
