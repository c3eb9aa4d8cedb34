// Package server contains the HTTP handlers for the portal API.
package server

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"portal/internal/cache"
	"portal/internal/config"
	"portal/internal/database"
	"portal/internal/mailer"
	"portal/internal/middleware"
	"portal/internal/models"
	"portal/internal/repository"
	"portal/internal/service"
	"portal/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	tokenIssuer     = "portal-api"
	tokenAudience   = "portal-client"
	accessTokenTTL  = 24 * time.Hour
	refreshTokenTTL = 7 * 24 * time.Hour
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	store          storage.ObjectStore
	mailer         mailer.Mailer
	userRepo       repository.UserRepository
	postRepo       repository.PostRepository
	eventRepo      repository.EventRepository
	newsRepo       repository.NewsRepository
	postService    *service.PostService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	redisClient := cache.GetClient()

	store := storage.NewDiskStore(cfg.StorageDir, cfg.PublicBaseURL)
	mail := mailer.NewSMTPMailer(cfg)

	return NewServerWithDeps(cfg, db, redisClient, store, mail), nil
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis itself.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, store storage.ObjectStore, mail mailer.Mailer) *Server {
	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	eventRepo := repository.NewEventRepository(db)
	newsRepo := repository.NewNewsRepository(db)

	return &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("portal-api"),
		store:          store,
		mailer:         mail,
		userRepo:       userRepo,
		postRepo:       postRepo,
		eventRepo:      eventRepo,
		newsRepo:       newsRepo,
		postService:    service.NewPostService(postRepo, userRepo, store),
	}
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS must run before middlewares that can short-circuit so browser
	// clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return models.RespondWithError(c, fiber.StatusTooManyRequests,
				models.NewValidationError("Too many requests, please try again later"))
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	// Uploaded media
	if disk, ok := s.store.(*storage.DiskStore); ok {
		app.Static("/media", disk.Root())
	}

	// User / auth routes
	users := api.Group("/users")
	users.Post("/register", middleware.RateLimit(
		s.redis, 3, 10*time.Minute, "register"), s.Register)
	users.Post("/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)
	users.Post("/refresh", s.Refresh)
	users.Post("/logout", s.AuthRequired(), s.Logout)
	users.Post("/recover", middleware.RateLimit(
		s.redis, 3, 10*time.Minute, "recover"), s.RequestPasswordReset)
	users.Post("/recover/confirm", s.ConfirmPasswordReset)
	users.Post("/verify", middleware.RateLimit(
		s.redis, 3, 10*time.Minute, "verify"), s.RequestVerification)
	users.Post("/verify/confirm", s.ConfirmVerification)

	// Profile routes
	profile := api.Group("/profile", s.AuthRequired())
	profile.Get("/me", s.GetMyProfile)
	profile.Put("/me", s.UpdateMyProfile)
	profile.Post("/me/avatar", s.UploadAvatar)

	// Post routes
	posts := api.Group("/posts")
	posts.Get("/", s.GetPosts)
	// Specific /reports route before generic /:id
	posts.Get("/reports/all", s.AuthRequired(), s.GetReportedPosts)
	posts.Post("/", s.AuthRequired(), s.CreatePost)
	posts.Post("/:id/like", s.LikePost)
	posts.Post("/:id/share", s.SharePost)
	posts.Post("/:id/report", s.ReportPost)
	posts.Patch("/:id/approve", s.AuthRequired(), s.ApprovePost)
	posts.Patch("/:id/reject", s.AuthRequired(), s.RejectPost)
	posts.Patch("/:id/alert", s.AuthRequired(), s.ToggleAlert)
	posts.Delete("/:id", s.AuthRequired(), s.DeletePost)
	posts.Get("/:id", s.GetPost)

	// Event routes
	events := api.Group("/events")
	events.Get("/", s.GetEvents)
	events.Post("/", s.CreateEvent)
	events.Patch("/:id/approve", s.AuthRequired(), s.ApproveEvent)
	events.Delete("/:id", s.AuthRequired(), s.DeleteEvent)

	// News routes
	news := api.Group("/news")
	news.Get("/", s.GetNews)
	news.Post("/", s.AuthRequired(), s.CreateNews)
	news.Delete("/:id", s.AuthRequired(), s.DeleteNews)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AuthRequired returns the authentication middleware
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		tokenString := ""
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}

		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		claims, err := s.parseToken(tokenString, "access")
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized, err)
		}

		sub, _ := claims["sub"].(string)
		userID, perr := strconv.ParseUint(sub, 10, 32)
		if perr != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid user ID in token"))
		}

		// Check JTI for revocation
		if jti, exists := claims["jti"].(string); exists && jti != "" {
			if s.redis != nil {
				isBlacklisted, rerr := s.redis.Exists(c.Context(), "blacklist:"+jti).Result()
				if rerr == nil && isBlacklisted > 0 {
					return models.RespondWithError(c, fiber.StatusUnauthorized,
						models.NewUnauthorizedError("Token has been revoked"))
				}
			}
			c.Locals("tokenJTI", jti)
		}
		if exp, ok := claims["exp"].(float64); ok {
			c.Locals("tokenExp", int64(exp))
		}

		c.Locals("userID", uint(userID))
		ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, uint(userID))
		c.SetUserContext(ctx)

		return c.Next()
	}
}

// hasValidAccessToken reports whether the request carries a usable bearer
// access token. Handlers that serve moderation views on otherwise-public
// routes use this instead of rejecting the whole route.
func (s *Server) hasValidAccessToken(c *fiber.Ctx) bool {
	parts := strings.Split(c.Get("Authorization"), " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return false
	}

	claims, err := s.parseToken(parts[1], "access")
	if err != nil {
		return false
	}

	if jti, ok := claims["jti"].(string); ok && jti != "" && s.redis != nil {
		if revoked, rerr := s.redis.Exists(c.Context(), "blacklist:"+jti).Result(); rerr == nil && revoked > 0 {
			return false
		}
	}
	return true
}

// parseToken validates a signed token of the expected type and returns its claims.
func (s *Server) parseToken(tokenString, expectedType string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("invalid signing method")
		}
		return []byte(s.config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, models.NewUnauthorizedError("Invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, models.NewUnauthorizedError("Invalid token claims")
	}

	if issuer, issuerOk := claims["iss"].(string); !issuerOk || issuer != tokenIssuer {
		return nil, models.NewUnauthorizedError("Invalid token issuer")
	}
	if audience, audienceOk := claims["aud"].(string); !audienceOk || audience != tokenAudience {
		return nil, models.NewUnauthorizedError("Invalid token audience")
	}
	if typ, typOk := claims["typ"].(string); !typOk || typ != expectedType {
		return nil, models.NewUnauthorizedError("Invalid token type")
	}

	return claims, nil
}

// Start starts the server
func (s *Server) Start() error {
	app := fiber.New(fiber.Config{
		AppName:   "Community Portal API",
		BodyLimit: s.config.MaxUploadMB * 1024 * 1024 * (service.MaxPostMediaFiles + 1),
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
