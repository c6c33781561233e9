package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aquaflora/stock-sync/internal/domain"
	"github.com/aquaflora/stock-sync/internal/domain/entity"
	"github.com/aquaflora/stock-sync/internal/domain/repository"
)

// Outcome desenlace de aplicar una acción.
type Outcome struct {
	Action   *entity.SyncAction
	Applied  bool
	RemoteID int64
	Err      error // nil salvo falla definitiva; envuelve ErrStorageUnavailable si el estado no se pudo escribir
}

// Driver ejecuta acciones contra el catálogo remoto y persiste el estado
// SOLO después del acuse remoto de esa escritura concreta; nunca al revés.
type Driver struct {
	catalog   RemoteCatalog
	store     repository.SyncStateRepository
	retry     RetryPolicy
	batchSize int
	log       zerolog.Logger
	now       func() time.Time
}

// NewDriver construye el driver. batchSize acota los lotes del endpoint batch remoto.
func NewDriver(catalog RemoteCatalog, store repository.SyncStateRepository, retry RetryPolicy, batchSize int, log zerolog.Logger) *Driver {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Driver{
		catalog:   catalog,
		store:     store,
		retry:     retry,
		batchSize: batchSize,
		log:       log.With().Str("component", "driver").Logger(),
		now:       time.Now,
	}
}

// Apply ejecuta una acción individual (Create, FullUpdate, Skip o Blocked).
// Las FastUpdate van por ApplyFastBatch.
func (d *Driver) Apply(ctx context.Context, action *entity.SyncAction) Outcome {
	switch action.Kind {
	case entity.ActionSkip:
		return Outcome{Action: action}

	case entity.ActionBlocked:
		d.appendHistory(ctx, action, true)
		return Outcome{Action: action}

	case entity.ActionCreate:
		return d.applyCreate(ctx, action)

	case entity.ActionFullUpdate:
		return d.applyFullUpdate(ctx, action)

	default:
		return Outcome{Action: action, Err: fmt.Errorf("acción %s no aplicable individualmente", action.Kind)}
	}
}

func (d *Driver) applyCreate(ctx context.Context, action *entity.SyncAction) Outcome {
	record := action.Record
	payload := NewFullPayload(record)

	var remoteID int64
	err := d.retry.Do(ctx, d.log, "create "+record.SKU, func() error {
		id, err := d.catalog.Create(ctx, payload)
		if err != nil {
			return err
		}
		remoteID = id
		return nil
	})
	if err != nil {
		return Outcome{Action: action, Err: err}
	}

	d.log.Info().Str("sku", record.SKU).Int64("remote_id", remoteID).Msg("producto creado en el catálogo remoto")
	if err := d.saveState(ctx, action, remoteID); err != nil {
		return Outcome{Action: action, RemoteID: remoteID, Err: err}
	}
	return Outcome{Action: action, Applied: true, RemoteID: remoteID}
}

func (d *Driver) applyFullUpdate(ctx context.Context, action *entity.SyncAction) Outcome {
	record := action.Record
	if action.State == nil || action.State.RemoteID == nil {
		return Outcome{Action: action, Err: fmt.Errorf("sku %s sin remote_id conocido", record.SKU)}
	}
	remoteID := *action.State.RemoteID

	err := d.retry.Do(ctx, d.log, "update_full "+record.SKU, func() error {
		return d.catalog.UpdateFull(ctx, remoteID, NewFullPayload(record))
	})
	if err != nil {
		return Outcome{Action: action, Err: err}
	}

	d.log.Info().Str("sku", record.SKU).Int64("remote_id", remoteID).Msg("actualización completa aplicada")
	d.appendHistoryIfPriceChanged(ctx, action)
	if err := d.saveState(ctx, action, remoteID); err != nil {
		return Outcome{Action: action, RemoteID: remoteID, Err: err}
	}
	return Outcome{Action: action, Applied: true, RemoteID: remoteID}
}

// ApplyFastBatch agrupa actualizaciones rápidas en lotes de hasta batchSize y
// resuelve el resultado por ítem: un rechazo no revierte ni bloquea a los
// demás del lote, y el estado de cada SKU se escribe solo con su propio acuse.
func (d *Driver) ApplyFastBatch(ctx context.Context, actions []*entity.SyncAction) []Outcome {
	outcomes := make([]Outcome, 0, len(actions))

	for start := 0; start < len(actions); start += d.batchSize {
		end := start + d.batchSize
		if end > len(actions) {
			end = len(actions)
		}
		chunk := actions[start:end]

		if ctx.Err() != nil {
			// Corrida cancelada: los ítems restantes quedan sin procesar, no fallidos.
			for _, a := range chunk {
				outcomes = append(outcomes, Outcome{Action: a, Err: context.Canceled})
			}
			continue
		}

		outcomes = append(outcomes, d.applyFastChunk(ctx, chunk)...)
	}
	return outcomes
}

func (d *Driver) applyFastChunk(ctx context.Context, chunk []*entity.SyncAction) []Outcome {
	items := make([]BatchItem, 0, len(chunk))
	for _, a := range chunk {
		if a.State == nil || a.State.RemoteID == nil {
			continue // se reporta abajo
		}
		items = append(items, BatchItem{
			RemoteID: *a.State.RemoteID,
			SKU:      a.Record.SKU,
			Payload:  NewFastPayload(a.Record),
		})
	}

	var results []BatchResult
	err := d.retry.Do(ctx, d.log, fmt.Sprintf("batch_fast n=%d", len(items)), func() error {
		r, err := d.catalog.BatchUpdateFast(ctx, items)
		if err != nil {
			return err
		}
		results = r
		return nil
	})

	byRemoteID := make(map[int64]BatchResult, len(results))
	for _, r := range results {
		byRemoteID[r.RemoteID] = r
	}

	outcomes := make([]Outcome, 0, len(chunk))
	for _, a := range chunk {
		if a.State == nil || a.State.RemoteID == nil {
			outcomes = append(outcomes, Outcome{Action: a, Err: fmt.Errorf("sku %s sin remote_id conocido", a.Record.SKU)})
			continue
		}
		if err != nil {
			// Falla del lote completo (transporte agotado): todos los ítems fallan.
			outcomes = append(outcomes, Outcome{Action: a, Err: err})
			continue
		}
		res, ok := byRemoteID[*a.State.RemoteID]
		if !ok {
			outcomes = append(outcomes, Outcome{Action: a, Err: fmt.Errorf("sku %s sin resultado en el lote", a.Record.SKU)})
			continue
		}
		if res.Err != nil {
			outcomes = append(outcomes, Outcome{Action: a, Err: res.Err})
			continue
		}

		d.appendHistoryIfPriceChanged(ctx, a)
		if serr := d.saveFastState(ctx, a); serr != nil {
			outcomes = append(outcomes, Outcome{Action: a, RemoteID: res.RemoteID, Err: serr})
			continue
		}
		outcomes = append(outcomes, Outcome{Action: a, Applied: true, RemoteID: res.RemoteID})
	}

	applied := 0
	for _, o := range outcomes {
		if o.Applied {
			applied++
		}
	}
	d.log.Info().Int("batch", len(chunk)).Int("applied", applied).Msg("lote de actualizaciones rápidas resuelto")
	return outcomes
}

// saveState persiste el estado tras un acuse de create o update_full:
// ambas huellas refrescadas.
func (d *Driver) saveState(ctx context.Context, action *entity.SyncAction, remoteID int64) error {
	now := d.now()
	price := action.Record.Price
	state := &entity.SyncState{
		SKU:             action.Record.SKU,
		RemoteID:        &remoteID,
		FullFingerprint: action.FullFingerprint,
		FastFingerprint: action.FastFingerprint,
		LastPrice:       &price,
		ConfirmedRemote: true,
		LastSyncedAt:    &now,
		CreatedAt:       now,
	}
	if action.State != nil {
		state.CreatedAt = action.State.CreatedAt
	}
	if err := d.store.Upsert(ctx, state); err != nil {
		return fmt.Errorf("%w: upsert %s: %v", domain.ErrStorageUnavailable, action.Record.SKU, err)
	}
	return nil
}

// saveFastState persiste el estado tras un acuse de update_fast: solo la huella
// rápida se refresca; la completa sigue reflejando la última escritura completa,
// que sigue siendo válida para los campos que no cambiaron.
func (d *Driver) saveFastState(ctx context.Context, action *entity.SyncAction) error {
	now := d.now()
	price := action.Record.Price
	state := &entity.SyncState{
		SKU:             action.Record.SKU,
		RemoteID:        action.State.RemoteID,
		FullFingerprint: action.State.FullFingerprint,
		FastFingerprint: action.FastFingerprint,
		LastPrice:       &price,
		ConfirmedRemote: true,
		LastSyncedAt:    &now,
		CreatedAt:       action.State.CreatedAt,
	}
	if err := d.store.Upsert(ctx, state); err != nil {
		return fmt.Errorf("%w: upsert %s: %v", domain.ErrStorageUnavailable, action.Record.SKU, err)
	}
	return nil
}

// appendHistoryIfPriceChanged registra el cambio de precio aplicado, si lo hubo.
func (d *Driver) appendHistoryIfPriceChanged(ctx context.Context, action *entity.SyncAction) {
	if action.State == nil || action.State.LastPrice == nil {
		return
	}
	if action.State.LastPrice.Equal(action.Record.Price) {
		return
	}
	d.appendHistory(ctx, action, false)
}

// appendHistory escribe en el historial de precios. El historial es diagnóstico:
// una falla aquí se registra y jamás tumba la corrida.
func (d *Driver) appendHistory(ctx context.Context, action *entity.SyncAction, blocked bool) {
	entry := &entity.PriceHistoryEntry{
		SKU:        action.Record.SKU,
		NewPrice:   action.Record.Price,
		Blocked:    blocked,
		RecordedAt: d.now(),
	}
	if action.State != nil && action.State.LastPrice != nil {
		old := *action.State.LastPrice
		entry.OldPrice = &old
		entry.VariationPercent = variationPercent(old, action.Record.Price)
	}
	if blocked {
		entry.VariationPercent = action.VariationPercent
	}
	if err := d.store.AppendPriceHistory(ctx, entry); err != nil {
		d.log.Error().Err(err).Str("sku", action.Record.SKU).Msg("no se pudo escribir el historial de precios")
	}
}

func variationPercent(old, current decimal.Decimal) float64 {
	if old.IsZero() {
		return 0
	}
	v, _ := current.Sub(old).Div(old).Mul(decimal.NewFromInt(100)).Float64()
	return v
}
