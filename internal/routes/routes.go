package routes

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/artifox/artifox/internal/auth"
	"github.com/artifox/artifox/internal/config"
	"github.com/artifox/artifox/internal/identity"
	"github.com/artifox/artifox/internal/middleware"
	"github.com/artifox/artifox/internal/notification"
	"github.com/artifox/artifox/internal/profile"
	"github.com/artifox/artifox/internal/provider"
	"github.com/artifox/artifox/internal/transform"
)

// ErrorHandler converts handler errors into the JSON error envelope the
// client expects.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
	// Provider overrides the configured inference backend; used by tests.
	Provider provider.Provider
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !isDev(d.Cfg.AppEnv) {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// The web client is served from a different origin; echo standard headers.
	app.Use(cors.New(cors.Config{
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, Idempotency-Key",
	}))
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))

	// Health
	RegisterHealthRoutes(app, d)

	// Repositories
	var identityRepo identity.Repository
	var profileRepo profile.Repository
	if d.DB != nil {
		identityRepo = identity.NewPostgresRepository(d.DB)
		profileRepo = profile.NewPostgresRepository(d.DB)
	} else {
		identityRepo = identity.NewMemoryRepository()
		profileRepo = profile.NewMemoryRepository()
	}

	// Services
	notifier := notification.NewLoggerNotifier(d.Logger)
	profileSvc := profile.NewService(profileRepo, notifier, profile.TrialTerms{
		Days:    d.Cfg.TrialDays,
		Credits: d.Cfg.TrialCredits,
	})
	identitySvc := identity.NewService(identityRepo)
	authSvc := auth.NewService(d.Cfg, identityRepo)

	prov := d.Provider
	if prov == nil {
		if d.Cfg.ProviderAPIKey != "" {
			prov = provider.NewClient(d.Cfg.ProviderBaseURL, d.Cfg.ProviderAPIKey, d.Cfg.ProviderPollInterval, d.Logger)
		} else {
			prov = provider.Static{}
		}
	}
	transformSvc := transform.NewService(profileSvc, prov, transform.DefaultCatalog(), d.Logger)

	// Handlers
	authHandler := auth.NewHandler(identitySvc, authSvc, profileSvc, d.Cfg.SignupCredits)
	profileHandler := profile.NewHandler(profileSvc)
	transformHandler := transform.NewHandler(transformSvc)

	// API routes
	api := app.Group("/api/v1", middleware.Audit(d.Logger))
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	rateLimiter := middleware.LoginRateLimit(d.Cache, 5)
	RegisterAuthRoutes(api, authHandler, rateLimiter)

	// Protected routes
	guard := middleware.AuthGuard(d.Cfg, identityRepo, profileSvc)
	protected := api.Group("", guard)
	protected.Post("/auth/logout", authHandler.Logout)
	RegisterProfileRoutes(protected, profileHandler)
	RegisterTransformRoutes(protected, transformHandler, d)

	return nil
}

func isDev(env string) bool {
	switch strings.ToLower(env) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}
