package sync_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appsync "github.com/aquaflora/stock-sync/internal/application/sync"
	"github.com/aquaflora/stock-sync/internal/domain"
	"github.com/aquaflora/stock-sync/internal/domain/entity"
)

// fastRetry política de reintentos con esperas despreciables para tests.
func fastRetry() appsync.RetryPolicy {
	return appsync.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}
}

func newDriver(catalog *fakeCatalog, store *fakeStore, batchSize int) *appsync.Driver {
	return appsync.NewDriver(catalog, store, fastRetry(), batchSize, zerolog.Nop())
}

func actionFor(kind entity.ActionKind, r *entity.ProductRecord, state *entity.SyncState) *entity.SyncAction {
	return &entity.SyncAction{
		Kind:            kind,
		Record:          r,
		State:           state,
		FullFingerprint: fullFP(r),
		FastFingerprint: fastFP(r),
	}
}

// TestApply_Create: tras el acuse remoto el estado queda con id, huellas y
// precio; nunca antes.
func TestApply_Create(t *testing.T) {
	catalog := newFakeCatalog()
	store := newFakeStore()
	driver := newDriver(catalog, store, 100)

	r := record("9001", 55.50, 7)
	out := driver.Apply(context.Background(), actionFor(entity.ActionCreate, r, nil))

	require.NoError(t, out.Err)
	assert.True(t, out.Applied)
	assert.NotZero(t, out.RemoteID)

	st, err := store.Get(context.Background(), "9001")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, out.RemoteID, *st.RemoteID)
	assert.Equal(t, fullFP(r), st.FullFingerprint)
	assert.Equal(t, fastFP(r), st.FastFingerprint)
	assert.True(t, st.ConfirmedRemote)
	require.NotNil(t, st.LastPrice)
	assert.True(t, st.LastPrice.Equal(r.Price))
}

// TestApply_Create_ReintentaTransitorios: una falla 500 se reintenta y el
// estado solo se escribe con el acuse final.
func TestApply_Create_ReintentaTransitorios(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.createErrs = []error{&appsync.RemoteError{StatusCode: 500, Message: "caído"}}
	store := newFakeStore()
	driver := newDriver(catalog, store, 100)

	out := driver.Apply(context.Background(), actionFor(entity.ActionCreate, record("9001", 10, 1), nil))

	require.NoError(t, out.Err)
	assert.True(t, out.Applied)
	assert.Equal(t, 2, catalog.createCalls, "la primera falla transitoria debe reintentarse")
}

// TestApply_Create_ErrorPermanenteNoReintenta: un 400 no se reintenta y no
// deja rastro en el estado.
func TestApply_Create_ErrorPermanenteNoReintenta(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.createErrs = []error{
		&appsync.RemoteError{StatusCode: 400, Message: "payload rechazado"},
		nil, nil,
	}
	store := newFakeStore()
	driver := newDriver(catalog, store, 100)

	out := driver.Apply(context.Background(), actionFor(entity.ActionCreate, record("9001", 10, 1), nil))

	require.Error(t, out.Err)
	assert.False(t, out.Applied)
	assert.Equal(t, 1, catalog.createCalls, "un error permanente no debe reintentarse")

	st, err := store.Get(context.Background(), "9001")
	require.NoError(t, err)
	assert.Nil(t, st, "sin acuse remoto no debe haber estado")
}

// TestApply_FullUpdate: refresca ambas huellas y registra el cambio de precio
// aplicado en el historial.
func TestApply_FullUpdate(t *testing.T) {
	old := record("1000234", 100, 12)
	state := syncedState(old, 4412)

	catalog := newFakeCatalog()
	store := newFakeStore()
	store.put(state)
	driver := newDriver(catalog, store, 100)

	current := record("1000234", 120, 10)
	current.Name = "Nombre renovado"
	out := driver.Apply(context.Background(), actionFor(entity.ActionFullUpdate, current, state))

	require.NoError(t, out.Err)
	assert.True(t, out.Applied)
	assert.Equal(t, int64(4412), out.RemoteID)
	assert.Contains(t, catalog.fullUpdates, int64(4412))

	st, _ := store.Get(context.Background(), "1000234")
	require.NotNil(t, st)
	assert.Equal(t, fullFP(current), st.FullFingerprint)
	assert.Equal(t, fastFP(current), st.FastFingerprint)
	assert.True(t, st.LastPrice.Equal(current.Price))

	history := store.historyFor("1000234")
	require.Len(t, history, 1)
	assert.False(t, history[0].Blocked)
	assert.InDelta(t, 20.0, history[0].VariationPercent, 0.001)
}

// TestApply_Blocked: solo escribe la entrada bloqueada del historial; ni el
// catálogo ni el estado se tocan.
func TestApply_Blocked(t *testing.T) {
	old := record("1000234", 100, 12)
	state := syncedState(old, 4412)

	catalog := newFakeCatalog()
	store := newFakeStore()
	store.put(state)
	driver := newDriver(catalog, store, 100)

	action := actionFor(entity.ActionBlocked, record("1000234", 190, 12), state)
	action.VariationPercent = 90
	out := driver.Apply(context.Background(), action)

	require.NoError(t, out.Err)
	assert.False(t, out.Applied)
	assert.Zero(t, catalog.updateFullCalls)
	assert.Zero(t, catalog.createCalls)

	history := store.historyFor("1000234")
	require.Len(t, history, 1)
	assert.True(t, history[0].Blocked)
	assert.InDelta(t, 90.0, history[0].VariationPercent, 0.001)

	st, _ := store.Get(context.Background(), "1000234")
	assert.Equal(t, state.FastFingerprint, st.FastFingerprint, "el estado no debe refrescarse en un bloqueo")
	assert.True(t, st.LastPrice.Equal(old.Price))
}

// TestApplyFastBatch_ResolucionPorItem: un rechazo dentro del lote no revierte
// a los vecinos; cada SKU persiste solo con su propio acuse.
func TestApplyFastBatch_ResolucionPorItem(t *testing.T) {
	catalog := newFakeCatalog()
	store := newFakeStore()

	var actions []*entity.SyncAction
	for i, sku := range []string{"A", "B", "C"} {
		old := record(sku, 100, 10)
		state := syncedState(old, int64(100+i))
		store.put(state)
		actions = append(actions, actionFor(entity.ActionFastUpdate, record(sku, 110, 5), state))
	}
	catalog.itemErrs = map[int64]error{101: &appsync.RemoteError{StatusCode: 400, SKU: "B", Message: "precio inválido"}}

	driver := newDriver(catalog, store, 100)
	outcomes := driver.ApplyFastBatch(context.Background(), actions)
	require.Len(t, outcomes, 3)

	assert.True(t, outcomes[0].Applied)
	assert.False(t, outcomes[1].Applied)
	require.Error(t, outcomes[1].Err)
	assert.True(t, outcomes[2].Applied)

	// B conserva su estado anterior; A y C avanzan.
	stB, _ := store.Get(context.Background(), "B")
	assert.True(t, stB.LastPrice.Equal(record("B", 100, 10).Price))
	stA, _ := store.Get(context.Background(), "A")
	assert.True(t, stA.LastPrice.Equal(record("A", 110, 5).Price))
}

// TestApplyFastBatch_RespetaElTamanoDeLote.
func TestApplyFastBatch_RespetaElTamanoDeLote(t *testing.T) {
	catalog := newFakeCatalog()
	store := newFakeStore()

	var actions []*entity.SyncAction
	for i := 0; i < 5; i++ {
		sku := string(rune('A' + i))
		old := record(sku, 100, 10)
		state := syncedState(old, int64(200+i))
		store.put(state)
		actions = append(actions, actionFor(entity.ActionFastUpdate, record(sku, 105, 9), state))
	}

	driver := newDriver(catalog, store, 2)
	outcomes := driver.ApplyFastBatch(context.Background(), actions)
	require.Len(t, outcomes, 5)
	assert.Equal(t, 3, catalog.batchCalls, "5 ítems con lotes de 2 son 3 llamadas")
	for _, out := range outcomes {
		assert.True(t, out.Applied)
	}
}

// TestApplyFastBatch_ConservaHuellaCompleta: la vía rápida solo refresca la
// huella rápida; la completa sigue reflejando la última escritura completa.
func TestApplyFastBatch_ConservaHuellaCompleta(t *testing.T) {
	old := record("1000234", 100, 10)
	state := syncedState(old, 4412)

	catalog := newFakeCatalog()
	store := newFakeStore()
	store.put(state)
	driver := newDriver(catalog, store, 100)

	current := record("1000234", 130, 2)
	outcomes := driver.ApplyFastBatch(context.Background(), []*entity.SyncAction{
		actionFor(entity.ActionFastUpdate, current, state),
	})
	require.Len(t, outcomes, 1)
	require.True(t, outcomes[0].Applied)

	st, _ := store.Get(context.Background(), "1000234")
	assert.Equal(t, state.FullFingerprint, st.FullFingerprint, "la huella completa no debe tocarse")
	assert.Equal(t, fastFP(current), st.FastFingerprint)
	assert.True(t, st.LastPrice.Equal(current.Price))

	history := store.historyFor("1000234")
	require.Len(t, history, 1)
	assert.InDelta(t, 30.0, history[0].VariationPercent, 0.001)
}

// TestApply_AlmacenCaidoTrasAcuse: si el estado no se puede escribir después
// del acuse remoto, el desenlace envuelve la falla fatal del almacén.
func TestApply_AlmacenCaidoTrasAcuse(t *testing.T) {
	catalog := newFakeCatalog()
	store := newFakeStore()
	store.upsertErr = assert.AnError
	driver := newDriver(catalog, store, 100)

	out := driver.Apply(context.Background(), actionFor(entity.ActionCreate, record("9001", 10, 1), nil))
	require.Error(t, out.Err)
	assert.ErrorIs(t, out.Err, domain.ErrStorageUnavailable)
	assert.False(t, out.Applied)
}
