package http

import (
	"errors"
	stdsync "sync"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/aquaflora/stock-sync/internal/application/dto"
	appsync "github.com/aquaflora/stock-sync/internal/application/sync"
	"github.com/aquaflora/stock-sync/internal/domain"
	"github.com/aquaflora/stock-sync/internal/domain/entity"
	"github.com/aquaflora/stock-sync/internal/domain/repository"
	"github.com/aquaflora/stock-sync/pkg/config"
)

// SyncHandler maneja las peticiones que mutan: disparar corridas e importar
// whitelist (protegido, solo operadores).
type SyncHandler struct {
	store        repository.SyncStateRepository
	catalog      appsync.RemoteCatalog
	cfg          config.SyncConfig
	catalogReady bool
	log          zerolog.Logger

	runLock stdsync.Mutex // a lo sumo una corrida a la vez por proceso
}

// NewSyncHandler construye el handler. catalogReady indica si hay credenciales
// del catálogo: sin ellas solo se aceptan corridas dry-run.
func NewSyncHandler(store repository.SyncStateRepository, catalog appsync.RemoteCatalog, cfg config.SyncConfig, catalogReady bool, log zerolog.Logger) *SyncHandler {
	return &SyncHandler{
		store:        store,
		catalog:      catalog,
		cfg:          cfg,
		catalogReady: catalogReady,
		log:          log,
	}
}

// Running indica si hay una corrida en curso.
func (h *SyncHandler) Running() bool {
	if h.runLock.TryLock() {
		h.runLock.Unlock()
		return false
	}
	return true
}

// Run dispara una corrida con los registros enriquecidos del cuerpo.
// Los flags nulos heredan la configuración del servicio.
func (h *SyncHandler) Run(c *fiber.Ctx) error {
	var in dto.RunRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if len(in.Records) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "EMPTY_FEED", Message: "records no puede estar vacío"})
	}

	cfg := h.cfg
	if in.DryRun != nil {
		cfg.DryRun = *in.DryRun
	}
	if in.AllowCreate != nil {
		cfg.AllowCreate = *in.AllowCreate
	}
	if in.LiteMode != nil {
		cfg.LiteMode = *in.LiteMode
	}

	if !cfg.DryRun && !h.catalogReady {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "CATALOG_UNCONFIGURED", Message: domain.ErrCatalogUnconfigured.Error()})
	}

	if !h.runLock.TryLock() {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "RUN_IN_PROGRESS", Message: "ya hay una corrida en curso"})
	}
	defer h.runLock.Unlock()

	records := make([]*entity.ProductRecord, 0, len(in.Records))
	for i, r := range in.Records {
		if r.SKU == "" {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "registro sin sku"})
		}
		records = append(records, in.Records[i].ToEntity())
	}

	classifier := appsync.NewClassifier(h.store, cfg, h.log)
	driver := appsync.NewDriver(h.catalog, h.store, appsync.DefaultRetryPolicy(cfg.MaxRetryAttempts), cfg.BatchSize, h.log)
	coordinator := appsync.NewCoordinator(classifier, driver, cfg, h.log)

	summary, err := coordinator.Run(c.Context(), records)
	if err != nil {
		if errors.Is(err, domain.ErrStorageUnavailable) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "STORAGE_UNAVAILABLE", Message: err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(dto.FromSummary(summary))
}

// Whitelist importa mapeos sku → id remoto producidos por el descubrimiento
// externo. Las filas quedan solo-whitelist hasta su primera escritura completa.
func (h *SyncHandler) Whitelist(c *fiber.Ctx) error {
	var in dto.WhitelistRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if len(in.Mappings) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "mappings no puede estar vacío"})
	}

	mappings := make([]entity.RemoteMapping, 0, len(in.Mappings))
	for _, m := range in.Mappings {
		if m.SKU == "" || m.RemoteID <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "cada mapeo requiere sku y remote_id"})
		}
		mappings = append(mappings, entity.RemoteMapping{SKU: m.SKU, RemoteID: m.RemoteID})
	}

	marked, err := h.store.BulkMarkExisting(c.Context(), mappings)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "STORAGE_UNAVAILABLE", Message: err.Error()})
	}
	h.log.Info().Int("marked", marked).Str("subject", GetSubject(c)).Msg("whitelist importada")
	return c.JSON(dto.WhitelistResponse{Marked: marked})
}
