package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/aquaflora/stock-sync/internal/application/dto"
	"github.com/aquaflora/stock-sync/internal/domain/repository"
)

// StatusHandler consultas de solo lectura: estado del almacén e historial de
// precios (protegido, operadores y viewers).
type StatusHandler struct {
	store   repository.SyncStateRepository
	running func() bool
}

// NewStatusHandler construye el handler. running reporta si hay corrida en curso.
func NewStatusHandler(store repository.SyncStateRepository, running func() bool) *StatusHandler {
	if running == nil {
		running = func() bool { return false }
	}
	return &StatusHandler{store: store, running: running}
}

// Status devuelve el estado agregado del almacén.
func (h *StatusHandler) Status(c *fiber.Ctx) error {
	stats, err := h.store.Stats(c.Context())
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "STORAGE_UNAVAILABLE", Message: err.Error()})
	}
	return c.JSON(dto.StatusResponse{
		KnownSKUs:       stats.KnownSKUs,
		ConfirmedRemote: stats.ConfirmedRemote,
		LastSyncedAt:    stats.LastSyncedAt,
		RunInProgress:   h.running(),
	})
}

// PriceHistory últimos cambios de precio de un SKU, más reciente primero.
func (h *StatusHandler) PriceHistory(c *fiber.Ctx) error {
	sku := c.Params("sku")
	if sku == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "sku requerido"})
	}
	limit := c.QueryInt("limit", 20)
	if limit <= 0 || limit > 500 {
		limit = 20
	}
	entries, err := h.store.PriceHistory(c.Context(), sku, limit)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "STORAGE_UNAVAILABLE", Message: err.Error()})
	}
	return c.JSON(fiber.Map{
		"sku":     sku,
		"total":   len(entries),
		"history": dto.FromHistory(entries),
	})
}

// RecentPriceChanges últimos cambios con variación, a través de todos los SKUs.
func (h *StatusHandler) RecentPriceChanges(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	entries, err := h.store.RecentPriceChanges(c.Context(), limit)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "STORAGE_UNAVAILABLE", Message: err.Error()})
	}
	return c.JSON(fiber.Map{
		"total":   len(entries),
		"changes": dto.FromHistory(entries),
	})
}
