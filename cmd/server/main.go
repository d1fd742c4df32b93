package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"restoran-pos/internal/admin"
	"restoran-pos/internal/audit"
	"restoran-pos/internal/auth"
	"restoran-pos/internal/catalog"
	"restoran-pos/internal/config"
	"restoran-pos/internal/database"
	"restoran-pos/internal/events"
	"restoran-pos/internal/httpx"
	"restoran-pos/internal/logger"
	"restoran-pos/internal/models"
	"restoran-pos/internal/order"
	"restoran-pos/internal/terminal"
)

func main() {
	_ = godotenv.Load() // .env is optional
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger, cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer appLogger.Sync()
	for _, w := range cfg.Warnings() {
		appLogger.Warn(w)
	}

	db, err := database.Open(cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("could not connect to database", zap.Error(err))
	}

	// Catalog cache: Redis when configured.
	var productCache catalog.Cache = catalog.NoCache{}
	if cfg.Redis.Addr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := catalog.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		cancel()
		if err != nil {
			appLogger.Warn("redis unavailable, catalog cache disabled", zap.Error(err))
		} else {
			defer client.Close()
			productCache = catalog.NewRedisCache(client, cfg.Redis.TTL)
			appLogger.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))
		}
	}

	// Order events: Kafka when brokers are configured.
	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, appLogger)
		appLogger.Info("publishing order events",
			zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}
	defer publisher.Close()

	tracker := terminal.NewTracker(db, appLogger, terminal.Options{
		OnlineWindow: cfg.Presence.OnlineWindow,
		SiteURL:      cfg.Server.PublicBaseURL,
	})
	products := catalog.NewService(db, productCache, appLogger)
	engine := order.NewEngine(db, products, tracker, publisher, appLogger, order.Options{})
	adminSvc := admin.NewService(db, appLogger)

	app := fiber.New(fiber.Config{
		ErrorHandler: httpx.ErrorHandler(appLogger),
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + auth.TerminalTokenHeader,
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	}))

	registerRoutes(app, cfg, db, appLogger, tracker, products, engine, adminSvc)

	go func() {
		addr := ":" + strings.TrimPrefix(cfg.Server.HTTPPort, ":")
		appLogger.Info("starting http server", zap.String("addr", addr))
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down server")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Error("shutdown", zap.Error(err))
	}
	appLogger.Info("server stopped")
}

func registerRoutes(
	app *fiber.App,
	cfg *config.Config,
	db *gorm.DB,
	appLogger *zap.Logger,
	tracker *terminal.Tracker,
	products *catalog.Service,
	engine *order.Engine,
	adminSvc *admin.Service,
) {
	api := app.Group("/api")

	// Public auth
	api.Post("/auth/register-owner", auth.RegisterOwnerHandler(db))
	api.Post("/auth/login", auth.LoginHandler(cfg, db, appLogger))

	// Terminal device endpoints authenticate with the terminal token.
	pos := api.Group("/pos")
	pos.Post("/tenants/:tenant_id/devices/:device_id/login", terminal.LoginHandler(tracker, cfg))
	pos.Post("/tenants/:tenant_id/devices/:device_id/logout", terminal.LogoutHandler(tracker))
	pos.Post("/heartbeat", auth.TerminalMiddleware(db), terminal.HeartbeatHandler(tracker))
	pos.Get("/status", auth.TerminalMiddleware(db), terminal.StatusHandler(tracker))

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg, db))

	protected.Get("/auth/me", auth.MeHandler(db))

	// Tenants, branches and staff
	adminRoutes := protected.Group("/admin")
	adminRoutes.Post("/tenants", auth.RequireRole(models.RolePlatformOwner), admin.CreateTenantHandler(adminSvc))
	adminRoutes.Get("/tenants", admin.ListTenantsHandler(adminSvc))
	adminRoutes.Get("/tenants/:id", admin.GetTenantHandler(adminSvc))
	adminRoutes.Put("/tenants/:id", admin.UpdateTenantHandler(adminSvc))
	adminRoutes.Delete("/tenants/:id", auth.RequireRole(models.RolePlatformOwner), admin.DeleteTenantHandler(adminSvc))

	adminRoutes.Post("/branches", admin.CreateBranchHandler(adminSvc))
	adminRoutes.Get("/branches", admin.ListBranchesHandler(adminSvc))
	adminRoutes.Get("/branches/:id", admin.GetBranchHandler(adminSvc))
	adminRoutes.Put("/branches/:id", admin.UpdateBranchHandler(adminSvc))
	adminRoutes.Delete("/branches/:id", admin.DeleteBranchHandler(adminSvc))

	adminRoutes.Post("/users", admin.CreateUserHandler(adminSvc))
	adminRoutes.Get("/users", admin.ListUsersHandler(adminSvc))
	adminRoutes.Put("/users/:id", admin.UpdateUserHandler(adminSvc))
	adminRoutes.Delete("/users/:id", admin.DeactivateUserHandler(adminSvc))

	adminRoutes.Get("/audit-logs", audit.ListAuditLogsHandler(db))

	// Terminals
	protected.Post("/terminals", terminal.CreateTerminalHandler(tracker))
	protected.Get("/terminals", terminal.ListTerminalsHandler(tracker))
	protected.Get("/terminals/online", terminal.OnlineTerminalsHandler(tracker))
	protected.Get("/terminals/stats", terminal.StatsHandler(tracker))
	protected.Get("/terminals/:id", terminal.GetTerminalHandler(tracker))
	protected.Delete("/terminals/:id", terminal.DeleteTerminalHandler(tracker))
	protected.Post("/terminals/:id/status", terminal.SetStatusHandler(tracker))
	protected.Post("/terminals/:id/activate", terminal.SetActiveHandler(tracker, true))
	protected.Post("/terminals/:id/deactivate", terminal.SetActiveHandler(tracker, false))
	protected.Post("/terminals/:id/regenerate-token", terminal.RegenerateTokenHandler(tracker))
	protected.Post("/terminals/:id/assign", terminal.AssignHandler(tracker))
	protected.Get("/terminals/:id/logs", terminal.LogsHandler(tracker))

	// Catalog
	protected.Get("/products", catalog.ListProductsHandler(products))
	protected.Post("/products", catalog.CreateProductHandler(products))
	protected.Put("/products/:id", catalog.UpdateProductHandler(products))
	protected.Delete("/products/:id", catalog.DeleteProductHandler(products))
	protected.Get("/categories", catalog.ListCategoriesHandler(products))
	protected.Post("/categories", catalog.CreateCategoryHandler(products))
	protected.Delete("/categories/:id", catalog.DeleteCategoryHandler(products))

	// Orders
	protected.Post("/orders", order.CreateOrderHandler(engine))
	protected.Get("/orders", order.ListOrdersHandler(engine))
	protected.Get("/orders/today", order.TodayOrdersHandler(engine))
	protected.Get("/orders/statistics", order.StatisticsHandler(engine))
	protected.Get("/orders/:id", order.GetOrderHandler(engine))
	protected.Post("/orders/:id/payments", order.AddPaymentHandler(engine))
	protected.Post("/orders/:id/complete", order.TransitionHandler(engine, "complete"))
	protected.Post("/orders/:id/cancel", order.TransitionHandler(engine, "cancel"))
	protected.Post("/orders/:id/refund", order.TransitionHandler(engine, "refund"))
	protected.Post("/orders/:id/processing", order.TransitionHandler(engine, "processing"))
	protected.Get("/payments/summary", order.PaymentSummaryHandler(engine))
}
