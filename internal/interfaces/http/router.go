package http

import (
	"github.com/gofiber/fiber/v2"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Sync      *SyncHandler
	Status    *StatusHandler
	JWTSecret string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	// Salud (público, para probes)
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Rutas protegidas (requieren Bearer Token)
	api := app.Group("/api/sync", AuthMiddleware(deps.JWTSecret))

	// Consultas (operadores y viewers)
	readable := api.Group("/", RequireRole(RoleOperator, RoleViewer))
	readable.Get("/status", deps.Status.Status)
	readable.Get("/price-history/:sku", deps.Status.PriceHistory)
	readable.Get("/price-changes", deps.Status.RecentPriceChanges)

	// Mutaciones (solo operadores)
	mutating := api.Group("/", RequireRole(RoleOperator))
	mutating.Post("/run", deps.Sync.Run)
	mutating.Post("/whitelist", deps.Sync.Whitelist)
}
