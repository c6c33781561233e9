package sync_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appsync "github.com/aquaflora/stock-sync/internal/application/sync"
	"github.com/aquaflora/stock-sync/internal/domain"
	"github.com/aquaflora/stock-sync/internal/domain/entity"
	"github.com/aquaflora/stock-sync/pkg/config"
)

func newCoordinator(store *fakeStore, catalog *fakeCatalog, cfg config.SyncConfig) *appsync.Coordinator {
	if cfg.PriceGuardMaxVariation == 0 {
		cfg.PriceGuardMaxVariation = 40
	}
	if cfg.Workers == 0 {
		cfg.Workers = 2
	}
	log := zerolog.Nop()
	classifier := appsync.NewClassifier(store, cfg, log)
	driver := appsync.NewDriver(catalog, store, fastRetry(), cfg.BatchSize, log)
	return appsync.NewCoordinator(classifier, driver, cfg, log)
}

// seedMixedFeed prepara un feed con las cinco decisiones posibles:
// sin cambios, vía rápida, vía completa, creación y bloqueo.
func seedMixedFeed(store *fakeStore) []*entity.ProductRecord {
	unchanged := record("A", 100, 10)
	store.put(syncedState(unchanged, 101))

	fastOld := record("B", 100, 10)
	store.put(syncedState(fastOld, 102))

	fullOld := record("C", 100, 10)
	store.put(syncedState(fullOld, 103))

	blockedOld := record("E", 100, 10)
	store.put(syncedState(blockedOld, 105))

	fullNew := record("C", 100, 10)
	fullNew.Name = "Nombre renovado"

	return []*entity.ProductRecord{
		unchanged,
		record("B", 110, 8),  // solo precio/stock
		fullNew,              // cambio descriptivo
		record("D", 50, 5),   // SKU nuevo
		record("E", 200, 10), // salto de precio del 100%
	}
}

// TestRun_DryRun: clasifica y cuenta sin tocar catálogo, estado ni historial.
func TestRun_DryRun(t *testing.T) {
	store := newFakeStore()
	catalog := newFakeCatalog()
	records := seedMixedFeed(store)

	coord := newCoordinator(store, catalog, config.SyncConfig{AllowCreate: true, DryRun: true})
	summary, err := coord.Run(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, 5, summary.TotalRecords)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.FastUpdated)
	assert.Equal(t, 1, summary.FullUpdated)
	assert.Equal(t, 1, summary.Created)
	assert.Len(t, summary.Blocked, 1)
	assert.True(t, summary.DryRun)
	assert.Empty(t, summary.Failed)

	// Nada se mutó: ni remoto, ni estado, ni historial.
	assert.Zero(t, catalog.createCalls)
	assert.Zero(t, catalog.updateFullCalls)
	assert.Zero(t, catalog.batchCalls)
	assert.Empty(t, store.upsertOrder)
	assert.Empty(t, store.historyFor("E"))
}

// TestRun_CorridaCompleta: la corrida real aplica cada decisión y deja el
// estado y el historial consistentes.
func TestRun_CorridaCompleta(t *testing.T) {
	store := newFakeStore()
	catalog := newFakeCatalog()
	records := seedMixedFeed(store)

	coord := newCoordinator(store, catalog, config.SyncConfig{AllowCreate: true})
	summary, err := coord.Run(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 1, summary.FullUpdated)
	assert.Equal(t, 1, summary.FastUpdated)
	assert.Equal(t, 1, summary.Skipped)
	require.Len(t, summary.Blocked, 1)
	assert.Equal(t, "E", summary.Blocked[0].SKU)
	assert.InDelta(t, 100.0, summary.Blocked[0].VariationPercent, 0.001)
	assert.True(t, summary.Success())
	assert.Equal(t, 3, summary.TotalSynced())

	// El bloqueo quedó en el historial y el estado de E no avanzó.
	historyE := store.historyFor("E")
	require.Len(t, historyE, 1)
	assert.True(t, historyE[0].Blocked)
	stE, _ := store.Get(context.Background(), "E")
	assert.True(t, stE.LastPrice.Equal(record("E", 100, 10).Price))

	// El SKU nuevo quedó confirmado con su id remoto.
	stD, _ := store.Get(context.Background(), "D")
	require.NotNil(t, stD)
	assert.True(t, stD.ConfirmedRemote)
	require.NotNil(t, stD.RemoteID)
}

// TestRun_DeduplicaSKUs: con SKUs repetidos gana el último registro y los
// anteriores cuentan como saltados.
func TestRun_DeduplicaSKUs(t *testing.T) {
	store := newFakeStore()
	catalog := newFakeCatalog()
	old := record("A", 100, 10)
	store.put(syncedState(old, 101))

	records := []*entity.ProductRecord{
		record("A", 105, 10),
		record("A", 110, 10), // gana este
	}
	coord := newCoordinator(store, catalog, config.SyncConfig{})
	summary, err := coord.Run(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.FastUpdated)

	st, _ := store.Get(context.Background(), "A")
	assert.True(t, st.LastPrice.Equal(record("A", 110, 10).Price))
}

// TestRun_ModoLite: las actualizaciones completas se degradan a la vía rápida
// y la huella completa queda pendiente para la próxima corrida normal.
func TestRun_ModoLite(t *testing.T) {
	store := newFakeStore()
	catalog := newFakeCatalog()

	fullOld := record("C", 100, 10)
	state := syncedState(fullOld, 103)
	store.put(state)

	current := record("C", 100, 10)
	current.Name = "Nombre renovado"

	coord := newCoordinator(store, catalog, config.SyncConfig{LiteMode: true})
	summary, err := coord.Run(context.Background(), []*entity.ProductRecord{current})
	require.NoError(t, err)

	assert.Equal(t, 0, summary.FullUpdated)
	assert.Equal(t, 1, summary.FastUpdated)
	assert.Zero(t, catalog.updateFullCalls)
	assert.Equal(t, 1, catalog.batchCalls)

	// La huella completa no se refrescó: el cambio descriptivo sigue pendiente.
	st, _ := store.Get(context.Background(), "C")
	assert.Equal(t, state.FullFingerprint, st.FullFingerprint)
}

// TestRun_AlmacenCaidoAborta: sin estado confiable la corrida no arranca
// escrituras remotas.
func TestRun_AlmacenCaidoAborta(t *testing.T) {
	store := newFakeStore()
	store.getErr = assert.AnError
	catalog := newFakeCatalog()

	coord := newCoordinator(store, catalog, config.SyncConfig{})
	_, err := coord.Run(context.Background(), []*entity.ProductRecord{record("A", 100, 10)})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.Zero(t, catalog.createCalls)
}

// TestRun_CancelacionDejaNoProcesados: lo no aplicado por cancelación se
// reporta como no procesado, nunca como fallido.
func TestRun_CancelacionDejaNoProcesados(t *testing.T) {
	store := newFakeStore()
	catalog := newFakeCatalog()
	records := []*entity.ProductRecord{record("A", 100, 10), record("B", 120, 3)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	coord := newCoordinator(store, catalog, config.SyncConfig{AllowCreate: true})
	summary, err := coord.Run(ctx, records)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.NotProcessed)
	assert.Empty(t, summary.Failed)
	assert.Zero(t, catalog.createCalls)
}

// TestRun_FallaFatalCortaElResto: la primera falla del almacén durante la
// aplicación corta la corrida y lo pendiente queda sin procesar.
func TestRun_FallaFatalCortaElResto(t *testing.T) {
	store := newFakeStore()
	catalog := newFakeCatalog()

	fastOld := record("B", 100, 10)
	store.put(syncedState(fastOld, 102))

	records := []*entity.ProductRecord{
		record("D", 50, 5),  // creación: fallará al persistir el estado
		record("B", 110, 8), // vía rápida: no debe intentarse
	}
	store.upsertErr = assert.AnError

	coord := newCoordinator(store, catalog, config.SyncConfig{AllowCreate: true, Workers: 1})
	summary, err := coord.Run(context.Background(), records)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)

	require.Len(t, summary.Failed, 1)
	assert.Equal(t, "D", summary.Failed[0].SKU)
	assert.Equal(t, 1, summary.NotProcessed)
	assert.Zero(t, catalog.batchCalls, "tras la falla fatal no deben salir lotes")
}
