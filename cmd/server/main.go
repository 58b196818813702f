package main

import (
	"log"
	"strings"

	"sogukdepo-backend/internal/audit"
	"sogukdepo-backend/internal/auth"
	"sogukdepo-backend/internal/config"
	"sogukdepo-backend/internal/database"
	"sogukdepo-backend/internal/models"
	"sogukdepo-backend/internal/plan"
	"sogukdepo-backend/internal/report"
	"sogukdepo-backend/internal/storage"
	"sogukdepo-backend/internal/tunnel"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func main() {
	cfg := config.Load()
	database.Init(cfg)

	storageSvc := storage.NewService(database.DB)
	tunnelSvc := tunnel.NewService(database.DB)
	planSvc := plan.NewService(database.DB)
	reportSvc := report.NewService(database.DB, cfg.ExportDir)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*fiber.Error); ok {
				return c.Status(e.Code).JSON(fiber.Map{
					"error": e.Message,
				})
			}
			log.Println("Unexpected error:", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Beklenmeyen sunucu hatası",
			})
		},
	})

	// CORS origins'i virgülle ayrılmış string'den array'e çevir
	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/register-admin", auth.RegisterAdminHandler(cfg))
	api.Post("/auth/login", auth.LoginHandler(cfg))

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg))

	protected.Get("/auth/me", auth.MeHandler())

	// Depo tablosu ve yük yaşam döngüsü
	protected.Get("/storage/board", storage.BoardHandler(storageSvc))
	protected.Post("/storage/batches", storage.CreateBatchHandler(storageSvc))
	protected.Post("/loads/:id/take", storage.TakeToProductionHandler(storageSvc))
	protected.Put("/loads/:id/weight", storage.EditWeightHandler(storageSvc))
	protected.Post("/carts/:id/pop", storage.PopNextLoadHandler(storageSvc))

	// Araba sorgulama (form otomatik doldurma)
	protected.Get("/carts/info", storage.CartInfoHandler(storageSvc))
	protected.Get("/carts/check", storage.CartCheckHandler(storageSvc))

	// Tünel günü
	protected.Get("/tunnel/day", tunnel.DayHandler(tunnelSvc))
	protected.Put("/tunnel/day", tunnel.SaveDayHandler(tunnelSvc))

	// Depo içeriği sorguları (tünel formu için)
	protected.Get("/storeroom/codes", tunnel.CodesHandler(tunnelSvc))
	protected.Get("/storeroom/lookup", tunnel.LookupHandler(tunnelSvc))
	protected.Get("/storeroom/carts", tunnel.CartsHandler(tunnelSvc))
	protected.Get("/storeroom/cart-info", tunnel.CartInfoHandler(tunnelSvc))

	// Üretim planı
	protected.Get("/plan", plan.GetPlanHandler(planSvc))
	protected.Put("/plan", plan.SavePlanHandler(planSvc))

	// Excel raporları
	protected.Get("/reports/storage.xlsx", report.StorageXLSXHandler(reportSvc))
	protected.Get("/reports/tunnel.xlsx", report.TunnelXLSXHandler(reportSvc, tunnelSvc))

	// Admin routes
	adminRoutes := protected.Group("")
	adminRoutes.Use(auth.RequireRole(models.RoleAdmin))

	adminRoutes.Post("/auth/users", auth.CreateUserHandler())
	adminRoutes.Delete("/carts/:id", storage.DeleteCartHandler(storageSvc))
	adminRoutes.Get("/events", audit.ListEventsHandler())
	adminRoutes.Post("/reports/snapshot", report.SnapshotHandler(reportSvc))

	log.Println("Server çalışıyor port:", cfg.HTTPPort)
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		log.Fatal(err)
	}
}
