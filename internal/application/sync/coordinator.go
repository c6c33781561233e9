package sync

import (
	"context"
	"errors"
	stdsync "sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aquaflora/stock-sync/internal/domain"
	"github.com/aquaflora/stock-sync/internal/domain/entity"
	"github.com/aquaflora/stock-sync/pkg/config"
)

// Observer recibe el progreso en vivo de una corrida. Reemplaza el estado
// global mutable: quien quiera una barra de progreso o un panel inyecta uno.
type Observer interface {
	RecordDone(sku string, kind entity.ActionKind, applied bool, err error)
}

type noopObserver struct{}

func (noopObserver) RecordDone(string, entity.ActionKind, bool, error) {}

// Coordinator orquesta una pasada completa: clasifica, aplica y agrega el
// resumen. La corrida no es atómica; una falla por registro nunca aborta a
// los demás. Solo la indisponibilidad del almacén de estado corta la corrida.
type Coordinator struct {
	classifier *Classifier
	driver     *Driver
	cfg        config.SyncConfig
	log        zerolog.Logger
	obs        Observer
	now        func() time.Time
}

// NewCoordinator construye el coordinador con un observador nulo.
func NewCoordinator(classifier *Classifier, driver *Driver, cfg config.SyncConfig, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		classifier: classifier,
		driver:     driver,
		cfg:        cfg,
		log:        log.With().Str("component", "coordinator").Logger(),
		obs:        noopObserver{},
		now:        time.Now,
	}
}

// WithObserver inyecta un observador de progreso.
func (c *Coordinator) WithObserver(obs Observer) *Coordinator {
	if obs != nil {
		c.obs = obs
	}
	return c
}

// Run ejecuta una pasada sobre los registros enriquecidos.
//
// En dry-run se clasifica y se evalúa la guarda, pero no hay llamadas remotas
// ni escrituras de estado o historial; los contadores reflejan lo que habría
// pasado. La cancelación es cooperativa entre registros: lo no aplicado se
// reporta como NotProcessed, nunca como fallido.
func (c *Coordinator) Run(ctx context.Context, records []*entity.ProductRecord) (*entity.SyncSummary, error) {
	summary := &entity.SyncSummary{
		RunID:        uuid.New().String(),
		StartedAt:    c.now(),
		DryRun:       c.cfg.DryRun,
		TotalRecords: len(records),
	}
	log := c.log.With().Str("run_id", summary.RunID).Logger()
	log.Info().
		Int("records", len(records)).
		Bool("dry_run", c.cfg.DryRun).
		Bool("allow_create", c.cfg.AllowCreate).
		Bool("lite_mode", c.cfg.LiteMode).
		Msg("iniciando corrida de sincronización")

	deduped := c.dedupe(records, summary, log)

	// Clasificación: solo lectura, rápida; un error de almacén aborta.
	var creates, fullUpdates, fastUpdates []*entity.SyncAction
	for i, record := range deduped {
		if ctx.Err() != nil {
			// Lo ya clasificado pero no aplicado también queda sin procesar.
			summary.NotProcessed += (len(deduped) - i) + len(creates) + len(fullUpdates) + len(fastUpdates)
			summary.FinishedAt = c.now()
			return summary, nil
		}
		action, err := c.classifier.Classify(ctx, record)
		if err != nil {
			summary.FinishedAt = c.now()
			return summary, err
		}

		if c.cfg.LiteMode && action.Kind == entity.ActionFullUpdate {
			// Modo lite: las actualizaciones completas se degradan a precio/stock.
			// La huella completa no se refresca, así que la próxima corrida normal
			// volverá a detectar el cambio pendiente.
			action.Kind = entity.ActionFastUpdate
		}

		switch action.Kind {
		case entity.ActionSkip:
			summary.Skipped++
			c.obs.RecordDone(record.SKU, entity.ActionSkip, false, nil)
		case entity.ActionBlocked:
			summary.Blocked = append(summary.Blocked, blockedItem(action))
			if !c.cfg.DryRun {
				c.driver.Apply(ctx, action) // solo escribe la entrada bloqueada del historial
			}
			c.obs.RecordDone(record.SKU, entity.ActionBlocked, false, nil)
		case entity.ActionCreate:
			creates = append(creates, action)
		case entity.ActionFullUpdate:
			fullUpdates = append(fullUpdates, action)
		case entity.ActionFastUpdate:
			fastUpdates = append(fastUpdates, action)
		}
	}

	log.Info().
		Int("create", len(creates)).
		Int("full_update", len(fullUpdates)).
		Int("fast_update", len(fastUpdates)).
		Int("skip", summary.Skipped).
		Int("blocked", len(summary.Blocked)).
		Msg("decisiones de sincronización")

	if c.cfg.DryRun {
		summary.Created = len(creates)
		summary.FullUpdated = len(fullUpdates)
		summary.FastUpdated = len(fastUpdates)
		summary.FinishedAt = c.now()
		log.Info().Msg("dry-run: sin mutaciones remotas ni de estado")
		return summary, nil
	}

	// Creaciones y actualizaciones completas: pool acotado; los SKUs ya son
	// únicos tras la deduplicación, así que nunca hay dos escrituras del mismo.
	var mu stdsync.Mutex
	var fatal error
	c.applySingles(ctx, append(creates, fullUpdates...), summary, &mu, &fatal)

	// Actualizaciones rápidas: por lotes, resolución por ítem.
	if fatal == nil {
		for _, out := range c.driver.ApplyFastBatch(ctx, fastUpdates) {
			c.tally(summary, out, &fatal)
		}
	} else {
		summary.NotProcessed += len(fastUpdates)
	}

	summary.FinishedAt = c.now()
	log.Info().
		Int("created", summary.Created).
		Int("full_updated", summary.FullUpdated).
		Int("fast_updated", summary.FastUpdated).
		Int("skipped", summary.Skipped).
		Int("blocked", len(summary.Blocked)).
		Int("failed", len(summary.Failed)).
		Int("not_processed", summary.NotProcessed).
		Msg("corrida terminada")

	if fatal != nil {
		return summary, fatal
	}
	return summary, nil
}

// dedupe colapsa SKUs repetidos del feed (gana el último registro). Con un
// solo registro por SKU, las escrituras por SKU quedan serializadas por
// construcción y los SKUs distintos pueden ir en paralelo.
func (c *Coordinator) dedupe(records []*entity.ProductRecord, summary *entity.SyncSummary, log zerolog.Logger) []*entity.ProductRecord {
	seen := make(map[string]int, len(records))
	deduped := make([]*entity.ProductRecord, 0, len(records))
	dups := 0
	for _, r := range records {
		if i, ok := seen[r.SKU]; ok {
			deduped[i] = r
			dups++
			continue
		}
		seen[r.SKU] = len(deduped)
		deduped = append(deduped, r)
	}
	if dups > 0 {
		summary.Skipped += dups
		log.Warn().Int("duplicates", dups).Msg("SKUs duplicados en el feed; gana el último registro")
	}
	return deduped
}

func (c *Coordinator) applySingles(ctx context.Context, actions []*entity.SyncAction, summary *entity.SyncSummary, mu *stdsync.Mutex, fatal *error) {
	workers := c.cfg.Workers
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan *entity.SyncAction)
	var wg stdsync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for action := range jobs {
				// Chequeo cooperativo antes de cada aplicación remota.
				mu.Lock()
				stop := ctx.Err() != nil || *fatal != nil
				mu.Unlock()
				if stop {
					mu.Lock()
					summary.NotProcessed++
					mu.Unlock()
					c.obs.RecordDone(action.Record.SKU, action.Kind, false, nil)
					continue
				}

				out := c.driver.Apply(ctx, action)
				mu.Lock()
				c.tally(summary, out, fatal)
				mu.Unlock()
			}
		}()
	}

	for _, a := range actions {
		jobs <- a
	}
	close(jobs)
	wg.Wait()
}

// tally acumula un desenlace en el resumen. Debe llamarse con exclusión
// cuando hay varios escritores.
func (c *Coordinator) tally(summary *entity.SyncSummary, out Outcome, fatal *error) {
	sku := out.Action.Record.SKU
	switch {
	case out.Applied:
		switch out.Action.Kind {
		case entity.ActionCreate:
			summary.Created++
		case entity.ActionFullUpdate:
			summary.FullUpdated++
		case entity.ActionFastUpdate:
			summary.FastUpdated++
		}
		c.obs.RecordDone(sku, out.Action.Kind, true, nil)

	case errors.Is(out.Err, context.Canceled):
		// Cancelado antes o durante la aplicación: no procesado, no fallido.
		summary.NotProcessed++
		c.obs.RecordDone(sku, out.Action.Kind, false, nil)

	case out.Err != nil:
		if errors.Is(out.Err, domain.ErrStorageUnavailable) && *fatal == nil {
			*fatal = out.Err
		}
		summary.Failed = append(summary.Failed, entity.FailedItem{SKU: sku, Reason: out.Err.Error()})
		c.obs.RecordDone(sku, out.Action.Kind, false, out.Err)

	default:
		// Skip y Blocked ya se contaron al clasificar.
		c.obs.RecordDone(sku, out.Action.Kind, false, nil)
	}
}

func blockedItem(action *entity.SyncAction) entity.BlockedItem {
	item := entity.BlockedItem{
		SKU:              action.Record.SKU,
		Name:             action.Record.Name,
		NewPrice:         action.Record.Price,
		VariationPercent: action.VariationPercent,
		ThresholdPercent: action.ThresholdPercent,
	}
	if action.State != nil && action.State.LastPrice != nil {
		old := *action.State.LastPrice
		item.OldPrice = &old
	}
	return item
}
