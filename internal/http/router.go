package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/geocoder89/contenthub/internal/auth"
	"github.com/geocoder89/contenthub/internal/config"
	"github.com/geocoder89/contenthub/internal/domain/user"
	"github.com/geocoder89/contenthub/internal/http/handlers"
	"github.com/geocoder89/contenthub/internal/http/middlewares"
	"github.com/geocoder89/contenthub/internal/observability"
	"github.com/geocoder89/contenthub/internal/repo/postgres"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxBodyBytes = 1 << 20 // 1 MiB

func NewRouter(log *slog.Logger, pool *pgxpool.Pool, cfg config.Config) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	slog.SetDefault(log)

	r := gin.New()

	// middleware, outermost first

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(maxBodyBytes))
	r.Use(middlewares.RequireJSON())
	r.Use(otelgin.Middleware("contenthub"))

	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)
	r.Use(prom.GinHandleMiddleware())

	// health + metrics

	ping := func() error {
		if pool == nil {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		return pool.Ping(ctx)
	}

	health := handlers.NewHealthHandler(ping)
	r.GET("/", health.Root)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// wire up repositories
	usersRepo := postgres.NewUsersRepo(pool, prom)
	contentsRepo := postgres.NewContentsRepo(pool, prom)

	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.TokenTTL())

	authmw := middlewares.NewAuthMiddleware(jwtManager, usersRepo)

	authLimiter := middlewares.NewRateLimiter(cfg.RateLimitAuth, cfg.RateLimitWindow)
	apiLimiter := middlewares.NewRateLimiter(cfg.RateLimitAPI, cfg.RateLimitWindow)

	// handlers
	authHandler := handlers.NewAuthHandler(usersRepo, usersRepo, jwtManager, prom)
	usersHandler := handlers.NewUsersHandler(usersRepo)
	contentsHandler := handlers.NewContentsHandler(contentsRepo)

	api := r.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Use(authLimiter.Middleware(middlewares.KeyByIP))
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/refresh", authHandler.Refresh)
		authRoutes.GET("/me", authmw.RequireAuth(), authHandler.Me)
		authRoutes.POST("/logout", authmw.RequireAuth(), authHandler.Logout)
	}

	userRoutes := api.Group("/users")
	userRoutes.Use(authmw.RequireAuth(), apiLimiter.Middleware(middlewares.KeyByUserOrIP))
	{
		userRoutes.GET("", authmw.RequireRoles(user.RoleAdmin), usersHandler.List)
		userRoutes.POST("", authmw.RequireRoles(user.RoleAdmin), usersHandler.Create)
		userRoutes.POST("/change-password", usersHandler.ChangePassword)
		userRoutes.GET("/:id", usersHandler.Get)
		userRoutes.PUT("/:id", usersHandler.Update)
		userRoutes.DELETE("/:id", authmw.RequireRoles(user.RoleAdmin), usersHandler.Delete)
	}

	contentRoutes := api.Group("/content")
	contentRoutes.Use(apiLimiter.Middleware(middlewares.KeyByUserOrIP))
	{
		// reads are public; visibility narrows inside the handlers
		contentRoutes.GET("", authmw.OptionalAuth(), contentsHandler.List)
		contentRoutes.GET("/:id", authmw.OptionalAuth(), contentsHandler.Get)

		contentRoutes.POST("", authmw.RequireAuth(), contentsHandler.Create)
		contentRoutes.PUT("/:id", authmw.RequireAuth(), contentsHandler.Update)
		contentRoutes.DELETE("/:id", authmw.RequireAuth(), contentsHandler.Delete)
		contentRoutes.PUT("/:id/publish", authmw.RequireAuth(), contentsHandler.Publish)
		contentRoutes.PUT("/:id/unpublish", authmw.RequireAuth(), contentsHandler.Unpublish)
	}

	return r
}
