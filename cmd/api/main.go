package main

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"

	"bryllupstorget_backend/internal/controller"
	"bryllupstorget_backend/internal/middleware"
	"bryllupstorget_backend/internal/model"
	"bryllupstorget_backend/pkg/billing"
	"bryllupstorget_backend/pkg/config"
	croninit "bryllupstorget_backend/pkg/cron"
	"bryllupstorget_backend/pkg/database"
	"bryllupstorget_backend/pkg/email"
	"bryllupstorget_backend/pkg/gateway"
	"bryllupstorget_backend/pkg/seed"
	"bryllupstorget_backend/pkg/subscription"
	"bryllupstorget_backend/pkg/utils/jwt"
	"bryllupstorget_backend/pkg/utils/storage"
)

func setupRoutes(app *fiber.App, cfg *config.Config) {
	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", controller.Register)
	auth.Post("/login", controller.Login)

	protected := api.Group("/", middleware.AuthMiddleware())
	protected.Get("/me", controller.GetMe)

	// Subscription routes
	tiers := api.Group("/subscription")
	tiers.Get("/tiers", controller.ListTiers)

	sub := api.Group("/subscription", middleware.AuthMiddleware())
	sub.Get("/current", controller.GetCurrentSubscription)
	sub.Post("/check-feature", controller.CheckFeature)
	sub.Get("/usage-limits", controller.GetUsageLimits)
	sub.Post("/track-usage", controller.TrackUsage)
	sub.Post("/checkout", controller.Checkout)
	sub.Get("/payment-status/:orderId", controller.GetPaymentStatus)

	// Payment network callback
	api.Post("/vipps/callback", controller.HandlePaymentCallback)

	// Vendor gallery with quota enforcement
	gallery := api.Group("/gallery", middleware.AuthMiddleware())
	gallery.Get("/photos", controller.ListGalleryPhotos)
	gallery.Post("/photos", middleware.RequireQuota(subscription.LimitPhotos), controller.UploadGalleryPhoto)
	gallery.Delete("/photos/:id", controller.DeleteGalleryPhoto)

	// Back-office routes
	admin := api.Group("/admin", middleware.AdminMiddleware(cfg.Admin.APISecret))
	admin.Get("/tiers", controller.ListAllTiers)
	admin.Post("/tiers", controller.CreateTier)
	admin.Put("/tiers/:id", controller.UpdateTier)
	admin.Delete("/tiers/:id", controller.DeactivateTier)
	admin.Get("/subscriptions", controller.ListVendorSubscriptions)
	admin.Get("/usage", controller.ListUsageMetrics)
	admin.Get("/payments", controller.ListPayments)
	admin.Post("/payments/:orderId/capture", controller.CapturePayment)
	admin.Post("/payments/:orderId/refund", controller.RefundPayment)
}

func main() {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is not set in .env")
	}

	jwt.Init(cfg.JWT.Secret)

	database.InitDB(cfg.Database.URL)
	err := database.MigrateDatabase(
		&model.Vendor{},
		&model.SubscriptionTier{},
		&model.VendorSubscription{},
		&model.VendorUsageMetric{},
		&model.VendorPayment{},
		&model.GalleryPhoto{},
	)
	if err != nil {
		log.Printf("Migration warning: %v", err)
	}

	seed.SeedSubscriptionTiers(database.GetDB())

	if err := email.InitEmailService(cfg.Email.APIKey, cfg.Email.From); err != nil {
		log.Printf("Email service disabled: %v", err)
	}

	if err := storage.InitStorage(cfg.Storage); err != nil {
		log.Fatal("Could not initialize photo storage:", err)
	}

	gatewayClient := gateway.NewClient(gateway.Config{
		BaseURL:         cfg.Gateway.BaseURL,
		SubscriptionKey: cfg.Gateway.SubscriptionKey,
		MerchantSerial:  cfg.Gateway.MerchantSerial,
		CallbackURL:     cfg.Gateway.CallbackURL,
		FallbackURL:     cfg.Gateway.FallbackURL,
		Timeout:         cfg.Gateway.Timeout,
	})

	billingService := billing.NewService(
		billing.NewRepository(database.GetDB()),
		gatewayClient,
		cfg.Gateway.WebhookSecret,
	)
	if email.GlobalEmailService != nil {
		billingService.SetNotifier(email.GlobalEmailService)
	}

	controller.InitAuthController()
	controller.InitSubscriptionController(billingService)
	controller.InitGalleryController()
	controller.InitAdminController()
	middleware.InitSubscriptionMiddleware(billingService)
	croninit.InitSubscriptionExpiryCron()

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New())

	setupRoutes(app, cfg)

	log.Printf("Server is running on port %s", cfg.Server.Port)
	log.Fatal(app.Listen(":" + cfg.Server.Port))
}
