package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/smallbiznis/valora-identity/internal/config"
	"github.com/smallbiznis/valora-identity/internal/http/handler"
	"github.com/smallbiznis/valora-identity/internal/http/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(
	cfg config.Config,
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	orgHandler *handler.OrganisationHandler,
	authMiddleware *middleware.Auth,
	rateLimiter *middleware.RateLimiter,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(nil))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	auth := r.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
	}

	api := r.Group("/api", authMiddleware.RequireAuth)
	{
		api.GET("/users/:id", userHandler.GetUser)

		orgs := api.Group("/organisations")
		{
			orgs.GET("", orgHandler.List)
			orgs.POST("", orgHandler.Create)
			orgs.GET("/:orgId", orgHandler.Get)
			orgs.GET("/:orgId/users", orgHandler.ListUsers)
			orgs.POST("/:orgId/users", orgHandler.AddUser)
		}
	}

	return r
}
