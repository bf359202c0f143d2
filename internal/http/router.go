package http

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/subletx/subletx/internal/auth"
	"github.com/subletx/subletx/internal/cache"
	"github.com/subletx/subletx/internal/config"
	"github.com/subletx/subletx/internal/http/handlers"
	"github.com/subletx/subletx/internal/http/middlewares"
	"github.com/subletx/subletx/internal/observability"
	"github.com/subletx/subletx/internal/redisclient"
	"github.com/subletx/subletx/internal/repo/postgres"
	"github.com/subletx/subletx/internal/storage"

	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Deps carries everything the router wires together; main builds it
// once at startup.
type Deps struct {
	Cfg         config.Config
	Pool        *pgxpool.Pool
	Prom        *observability.Prom
	JWT         *auth.Manager
	Redis       *redisclient.Client
	Screenshots *storage.DiskStore
}

func NewRouter(d Deps) *gin.Engine {
	if d.Cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(d.Cfg.CORSOrigins))
	r.Use(otelgin.Middleware("subletx-api"))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.RequireJSON())
	r.Use(middlewares.MaxBodyBytes(1<<20, 6<<20))

	// health
	ping := func() error {
		if d.Pool == nil {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		return d.Pool.Ping(ctx)
	}

	h := handlers.NewHealthHandler(ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// payment screenshots are served straight off disk
	if d.Screenshots != nil {
		r.Static("/uploads", d.Screenshots.Dir())
	}

	// wire up repositories
	usersRepo := postgres.NewUsersRepo(d.Pool)
	listingsRepo := postgres.NewListingsRepo(d.Pool, d.Prom)
	ordersRepo := postgres.NewOrdersRepo(d.Pool, d.Prom)
	secretsRepo := postgres.NewSecretsRepo(d.Pool, d.Prom)
	refreshRepo := postgres.NewRefreshTokensRepo(d.Pool)

	// wire up handlers
	catalogCache := cache.New(5 * time.Second)

	authHandler := handlers.NewAuthHandler(usersRepo, usersRepo, d.JWT, refreshRepo, d.Cfg)
	profileHandler := handlers.NewProfileHandler(usersRepo)
	listingsHandler := handlers.NewListingsHandler(listingsRepo, catalogCache)
	ordersHandler := handlers.NewOrdersHandler(ordersRepo, d.Screenshots)
	adminHandler := handlers.NewAdminOrdersHandler(ordersRepo)
	secretsHandler := handlers.NewSecretsHandler(secretsRepo, ordersRepo, d.Prom)

	authMW := middlewares.NewAuthMiddleware(d.JWT)

	// brute-force guard on the auth endpoints, shared across instances
	// when redis is up
	var authLimit gin.HandlerFunc
	if d.Redis != nil {
		authLimit = middlewares.NewRedisRateLimiter(d.Redis, 10, time.Minute, "rl:auth").Middleware(middlewares.KeyByIP)
	} else {
		authLimit = middlewares.NewRateLimiter(10, time.Minute).RateLimiterMiddleware(middlewares.KeyByIP)
	}

	writeLimit := middlewares.NewRateLimiter(60, time.Minute).RateLimiterMiddleware(middlewares.KeyByUserOrIP)

	// auth
	authGroup := r.Group("/auth")
	authGroup.POST("/register", authLimit, authHandler.Register)
	authGroup.POST("/login", authLimit, authHandler.Login)
	authGroup.POST("/refresh", authHandler.Refresh)
	authGroup.POST("/logout", authHandler.Logout)
	authGroup.GET("/me", authMW.RequireAuth(), authHandler.Me)

	// public catalog
	r.GET("/listings", listingsHandler.List)
	r.GET("/listings/:id", listingsHandler.Get)

	// signed-in surface
	authed := r.Group("/", authMW.RequireAuth(), writeLimit)

	authed.POST("/listings", listingsHandler.Create)
	authed.GET("/listings/mine", listingsHandler.Mine)
	authed.PUT("/listings/:id", listingsHandler.Update)
	authed.DELETE("/listings/:id", listingsHandler.Delete)

	authed.POST("/orders", ordersHandler.Create)
	authed.GET("/orders", ordersHandler.List)
	authed.GET("/orders/:id", ordersHandler.Get)
	authed.POST("/orders/:id/screenshot", ordersHandler.UploadScreenshot)

	authed.POST("/orders/:id/secret", secretsHandler.Share)
	authed.POST("/orders/:id/secret/claim", secretsHandler.Claim)

	authed.GET("/users/me/profile", profileHandler.Get)
	authed.PATCH("/users/me/profile", profileHandler.Update)

	// admin review queue
	admin := r.Group("/admin", authMW.RequireAuth(), authMW.RequireRole("admin"))
	admin.GET("/orders", adminHandler.ListPending)
	admin.PATCH("/orders/:id", adminHandler.Decide)

	return r
}
