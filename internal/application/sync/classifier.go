package sync

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aquaflora/stock-sync/internal/domain"
	"github.com/aquaflora/stock-sync/internal/domain/entity"
	"github.com/aquaflora/stock-sync/internal/domain/reconcile"
	"github.com/aquaflora/stock-sync/internal/domain/repository"
	"github.com/aquaflora/stock-sync/pkg/config"
)

// Razones de Skip visibles en el resumen.
const (
	ReasonUnchanged      = "unchanged"
	ReasonNotWhitelisted = "not whitelisted, creation disabled"
)

// Classifier asigna exactamente una acción a cada registro entrante comparando
// contra el estado recordado. Solo lee: nunca escribe estado ni llama al remoto.
type Classifier struct {
	store repository.SyncStateRepository
	cfg   config.SyncConfig
	log   zerolog.Logger
}

// NewClassifier construye el clasificador.
func NewClassifier(store repository.SyncStateRepository, cfg config.SyncConfig, log zerolog.Logger) *Classifier {
	return &Classifier{store: store, cfg: cfg, log: log.With().Str("component", "classifier").Logger()}
}

// Classify decide la acción para un registro. Un error del almacén de estado
// es fatal para la corrida (se envuelve en domain.ErrStorageUnavailable).
func (c *Classifier) Classify(ctx context.Context, record *entity.ProductRecord) (*entity.SyncAction, error) {
	state, err := c.store.Get(ctx, record.SKU)
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", domain.ErrStorageUnavailable, record.SKU, err)
	}

	action := &entity.SyncAction{
		Record:          record,
		State:           state,
		FullFingerprint: reconcile.FullFingerprint(record),
		FastFingerprint: reconcile.FastFingerprint(record),
	}

	// SKU desconocido: crear solo si la política lo permite.
	if state == nil {
		if c.cfg.AllowCreate {
			action.Kind = entity.ActionCreate
		} else {
			action.Kind = entity.ActionSkip
			action.Reason = ReasonNotWhitelisted
		}
		c.log.Debug().Str("sku", record.SKU).Str("action", action.Kind.String()).Msg("clasificado")
		return action, nil
	}

	// La guarda corre siempre antes de comparar huellas; un bloqueo gana.
	// En filas solo-whitelist LastPrice es nil y la guarda permite.
	verdict := reconcile.EvaluatePriceChange(state.LastPrice, record.Price, c.cfg.PriceGuardMaxVariation)
	if !verdict.Allowed {
		action.Kind = entity.ActionBlocked
		action.VariationPercent = verdict.VariationPercent
		action.ThresholdPercent = c.cfg.PriceGuardMaxVariation
		c.log.Warn().
			Str("sku", record.SKU).
			Float64("variation_pct", verdict.VariationPercent).
			Float64("threshold_pct", c.cfg.PriceGuardMaxVariation).
			Msg("bloqueado por la guarda de precios")
		return action, nil
	}

	// Fila creada por whitelist: no se sabe qué cambió, se trae todo al día.
	if !state.FingerprintsKnown() {
		action.Kind = entity.ActionFullUpdate
		c.log.Debug().Str("sku", record.SKU).Msg("fila solo-whitelist: actualización completa")
		return action, nil
	}

	// La huella completa manda: nunca se hacen ambas actualizaciones.
	switch {
	case action.FullFingerprint != state.FullFingerprint:
		action.Kind = entity.ActionFullUpdate
	case action.FastFingerprint != state.FastFingerprint:
		action.Kind = entity.ActionFastUpdate
	default:
		action.Kind = entity.ActionSkip
		action.Reason = ReasonUnchanged
	}
	c.log.Debug().Str("sku", record.SKU).Str("action", action.Kind.String()).Msg("clasificado")
	return action, nil
}
