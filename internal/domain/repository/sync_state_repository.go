package repository

import (
	"context"

	"github.com/aquaflora/stock-sync/internal/domain/entity"
)

// SyncStateRepository define el puerto de persistencia del estado de sincronización (DIP).
//
// Semántica de fallas: cualquier error de este puerto durante una corrida se
// trata como almacén no disponible y aborta la corrida (sin estado confiable
// se arriesga duplicar creaciones remotas). La única excepción es
// AppendPriceHistory, que es diagnóstico: el caller registra el error y sigue.
type SyncStateRepository interface {
	// Get devuelve el estado de un SKU, o (nil, nil) si no existe fila.
	Get(ctx context.Context, sku string) (*entity.SyncState, error)

	// Upsert inserta o reemplaza la fila del SKU de forma atómica.
	Upsert(ctx context.Context, state *entity.SyncState) error

	// AppendPriceHistory agrega una entrada al historial de precios (append-only).
	AppendPriceHistory(ctx context.Context, e *entity.PriceHistoryEntry) error

	// BulkMarkExisting crea filas solo-whitelist (confirmed_remote=true, huellas
	// nulas) a partir del mapeo externo de descubrimiento. Devuelve cuántas
	// filas quedaron marcadas.
	BulkMarkExisting(ctx context.Context, mappings []entity.RemoteMapping) (int, error)

	// Stats consulta de solo lectura para reporte de estado.
	Stats(ctx context.Context) (*entity.StoreStats, error)

	// PriceHistory últimos cambios de precio de un SKU, más reciente primero.
	PriceHistory(ctx context.Context, sku string, limit int) ([]*entity.PriceHistoryEntry, error)

	// RecentPriceChanges últimos cambios de precio con variación distinta de cero,
	// a través de todos los SKUs.
	RecentPriceChanges(ctx context.Context, limit int) ([]*entity.PriceHistoryEntry, error)
}
