package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/aquaflora/stock-sync/internal/domain/entity"
)

// RecordInput registro enriquecido tal como llega en el cuerpo de la corrida.
// El precio acepta número o cadena JSON.
type RecordInput struct {
	SKU              string          `json:"sku"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	ShortDescription string          `json:"short_description"`
	Price            decimal.Decimal `json:"price"`
	Stock            int             `json:"stock"`
	Category         string          `json:"category"`
	Brand            string          `json:"brand"`
	WeightKG         *float64        `json:"weight_kg"`
	ImageURL         string          `json:"image_url"`
}

// ToEntity convierte el registro de entrada a la entidad de dominio.
func (r RecordInput) ToEntity() *entity.ProductRecord {
	return &entity.ProductRecord{
		SKU:              r.SKU,
		Name:             r.Name,
		Description:      r.Description,
		ShortDescription: r.ShortDescription,
		Price:            r.Price,
		Stock:            r.Stock,
		Category:         r.Category,
		Brand:            r.Brand,
		WeightKG:         r.WeightKG,
		ImageURL:         r.ImageURL,
	}
}

// RunRequest cuerpo de POST /api/sync/run. Los flags nulos heredan la
// configuración del servicio.
type RunRequest struct {
	DryRun      *bool         `json:"dry_run"`
	AllowCreate *bool         `json:"allow_create"`
	LiteMode    *bool         `json:"lite_mode"`
	Records     []RecordInput `json:"records"`
}

// BlockedItemDTO ítem bloqueado por la guarda de precios.
type BlockedItemDTO struct {
	SKU              string           `json:"sku"`
	Name             string           `json:"name"`
	OldPrice         *decimal.Decimal `json:"old_price"`
	NewPrice         decimal.Decimal  `json:"new_price"`
	VariationPercent float64          `json:"variation_percent"`
	ThresholdPercent float64          `json:"threshold_percent"`
}

// FailedItemDTO ítem con falla definitiva.
type FailedItemDTO struct {
	SKU    string `json:"sku"`
	Reason string `json:"reason"`
}

// SummaryResponse resumen agregado de una corrida.
type SummaryResponse struct {
	RunID        string           `json:"run_id"`
	StartedAt    time.Time        `json:"started_at"`
	FinishedAt   time.Time        `json:"finished_at"`
	DryRun       bool             `json:"dry_run"`
	TotalRecords int              `json:"total_records"`
	Created      int              `json:"created"`
	FullUpdated  int              `json:"full_updated"`
	FastUpdated  int              `json:"fast_updated"`
	Skipped      int              `json:"skipped"`
	NotProcessed int              `json:"not_processed"`
	Blocked      []BlockedItemDTO `json:"blocked"`
	Failed       []FailedItemDTO  `json:"failed"`
	Success      bool             `json:"success"`
}

// FromSummary arma la respuesta desde el resumen de dominio.
func FromSummary(s *entity.SyncSummary) SummaryResponse {
	resp := SummaryResponse{
		RunID:        s.RunID,
		StartedAt:    s.StartedAt,
		FinishedAt:   s.FinishedAt,
		DryRun:       s.DryRun,
		TotalRecords: s.TotalRecords,
		Created:      s.Created,
		FullUpdated:  s.FullUpdated,
		FastUpdated:  s.FastUpdated,
		Skipped:      s.Skipped,
		NotProcessed: s.NotProcessed,
		Blocked:      make([]BlockedItemDTO, 0, len(s.Blocked)),
		Failed:       make([]FailedItemDTO, 0, len(s.Failed)),
		Success:      s.Success(),
	}
	for _, b := range s.Blocked {
		resp.Blocked = append(resp.Blocked, BlockedItemDTO{
			SKU:              b.SKU,
			Name:             b.Name,
			OldPrice:         b.OldPrice,
			NewPrice:         b.NewPrice,
			VariationPercent: b.VariationPercent,
			ThresholdPercent: b.ThresholdPercent,
		})
	}
	for _, f := range s.Failed {
		resp.Failed = append(resp.Failed, FailedItemDTO{SKU: f.SKU, Reason: f.Reason})
	}
	return resp
}

// StatusResponse estado agregado del almacén para GET /api/sync/status.
type StatusResponse struct {
	KnownSKUs       int        `json:"known_skus"`
	ConfirmedRemote int        `json:"confirmed_remote"`
	LastSyncedAt    *time.Time `json:"last_synced_at"`
	RunInProgress   bool       `json:"run_in_progress"`
}

// WhitelistMapping mapeo sku → id remoto producido por el descubrimiento externo.
type WhitelistMapping struct {
	SKU      string `json:"sku"`
	RemoteID int64  `json:"remote_id"`
}

// WhitelistRequest cuerpo de POST /api/sync/whitelist.
type WhitelistRequest struct {
	Mappings []WhitelistMapping `json:"mappings"`
}

// WhitelistResponse filas marcadas.
type WhitelistResponse struct {
	Marked int `json:"marked"`
}

// PriceHistoryEntryDTO entrada del historial de precios.
type PriceHistoryEntryDTO struct {
	SKU              string           `json:"sku"`
	OldPrice         *decimal.Decimal `json:"old_price"`
	NewPrice         decimal.Decimal  `json:"new_price"`
	VariationPercent float64          `json:"variation_percent"`
	Blocked          bool             `json:"blocked"`
	RecordedAt       time.Time        `json:"recorded_at"`
}

// FromHistory convierte entradas de dominio a DTOs.
func FromHistory(entries []*entity.PriceHistoryEntry) []PriceHistoryEntryDTO {
	out := make([]PriceHistoryEntryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, PriceHistoryEntryDTO{
			SKU:              e.SKU,
			OldPrice:         e.OldPrice,
			NewPrice:         e.NewPrice,
			VariationPercent: e.VariationPercent,
			Blocked:          e.Blocked,
			RecordedAt:       e.RecordedAt,
		})
	}
	return out
}
