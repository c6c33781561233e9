package sync_test

import (
	"context"
	stdsync "sync"
	"time"

	"github.com/shopspring/decimal"

	appsync "github.com/aquaflora/stock-sync/internal/application/sync"
	"github.com/aquaflora/stock-sync/internal/domain/entity"
	"github.com/aquaflora/stock-sync/internal/domain/reconcile"
	"github.com/aquaflora/stock-sync/internal/domain/repository"
)

func fullFP(r *entity.ProductRecord) string { return reconcile.FullFingerprint(r) }
func fastFP(r *entity.ProductRecord) string { return reconcile.FastFingerprint(r) }

// ──────────────────────────────────────────────────────────────────────────────
// Dobles de test: almacén de estado y catálogo remoto en memoria
// ──────────────────────────────────────────────────────────────────────────────

var _ repository.SyncStateRepository = (*fakeStore)(nil)

type fakeStore struct {
	mu      stdsync.Mutex
	states  map[string]*entity.SyncState
	history []*entity.PriceHistoryEntry

	getErr     error
	upsertErr  error
	historyErr error

	upsertOrder []string // SKUs en orden de escritura
}

func newFakeStore() *fakeStore {
	return &fakeStore{states: make(map[string]*entity.SyncState)}
}

func (s *fakeStore) put(state *entity.SyncState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.SKU] = state
}

func (s *fakeStore) Get(_ context.Context, sku string) (*entity.SyncState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	st, ok := s.states[sku]
	if !ok {
		return nil, nil
	}
	copied := *st
	return &copied, nil
}

func (s *fakeStore) Upsert(_ context.Context, state *entity.SyncState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	copied := *state
	s.states[state.SKU] = &copied
	s.upsertOrder = append(s.upsertOrder, state.SKU)
	return nil
}

func (s *fakeStore) AppendPriceHistory(_ context.Context, e *entity.PriceHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.historyErr != nil {
		return s.historyErr
	}
	copied := *e
	s.history = append(s.history, &copied)
	return nil
}

func (s *fakeStore) BulkMarkExisting(_ context.Context, mappings []entity.RemoteMapping) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	marked := 0
	for _, m := range mappings {
		if m.SKU == "" {
			continue
		}
		remoteID := m.RemoteID
		if st, ok := s.states[m.SKU]; ok {
			st.RemoteID = &remoteID
			st.ConfirmedRemote = true
		} else {
			s.states[m.SKU] = &entity.SyncState{
				SKU:             m.SKU,
				RemoteID:        &remoteID,
				ConfirmedRemote: true,
				CreatedAt:       time.Now(),
			}
		}
		marked++
	}
	return marked, nil
}

func (s *fakeStore) Stats(_ context.Context) (*entity.StoreStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &entity.StoreStats{KnownSKUs: len(s.states)}
	for _, v := range s.states {
		if v.ConfirmedRemote {
			st.ConfirmedRemote++
		}
	}
	return st, nil
}

func (s *fakeStore) PriceHistory(_ context.Context, sku string, limit int) ([]*entity.PriceHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.PriceHistoryEntry
	for i := len(s.history) - 1; i >= 0 && len(out) < limit; i-- {
		if s.history[i].SKU == sku {
			out = append(out, s.history[i])
		}
	}
	return out, nil
}

func (s *fakeStore) RecentPriceChanges(_ context.Context, limit int) ([]*entity.PriceHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.PriceHistoryEntry
	for i := len(s.history) - 1; i >= 0 && len(out) < limit; i-- {
		if s.history[i].VariationPercent != 0 {
			out = append(out, s.history[i])
		}
	}
	return out, nil
}

func (s *fakeStore) historyFor(sku string) []*entity.PriceHistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.PriceHistoryEntry
	for _, e := range s.history {
		if e.SKU == sku {
			out = append(out, e)
		}
	}
	return out
}

var _ appsync.RemoteCatalog = (*fakeCatalog)(nil)

type fakeCatalog struct {
	mu     stdsync.Mutex
	nextID int64

	createCalls int
	createErrs  []error // se consumen en orden; agotados = éxito
	created     []appsync.FullPayload

	updateFullErr   error
	updateFullCalls int
	fullUpdates     map[int64]appsync.FullPayload

	batchErr   error               // falla del lote completo
	itemErrs   map[int64]error     // rechazo por ítem
	batches    [][]appsync.BatchItem
	batchCalls int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{nextID: 1000, fullUpdates: make(map[int64]appsync.FullPayload)}
}

func (c *fakeCatalog) Create(_ context.Context, payload appsync.FullPayload) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.createCalls++
	if len(c.createErrs) > 0 {
		err := c.createErrs[0]
		c.createErrs = c.createErrs[1:]
		if err != nil {
			return 0, err
		}
	}
	c.nextID++
	c.created = append(c.created, payload)
	return c.nextID, nil
}

func (c *fakeCatalog) UpdateFull(_ context.Context, remoteID int64, payload appsync.FullPayload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateFullCalls++
	if c.updateFullErr != nil {
		return c.updateFullErr
	}
	c.fullUpdates[remoteID] = payload
	return nil
}

func (c *fakeCatalog) UpdateFast(_ context.Context, remoteID int64, _ appsync.FastPayload) error {
	return nil
}

func (c *fakeCatalog) BatchUpdateFast(_ context.Context, items []appsync.BatchItem) ([]appsync.BatchResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batchCalls++
	if c.batchErr != nil {
		return nil, c.batchErr
	}
	c.batches = append(c.batches, items)
	results := make([]appsync.BatchResult, 0, len(items))
	for _, it := range items {
		results = append(results, appsync.BatchResult{RemoteID: it.RemoteID, Err: c.itemErrs[it.RemoteID]})
	}
	return results, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Constructores de registros y estados
// ──────────────────────────────────────────────────────────────────────────────

func record(sku string, price float64, stock int) *entity.ProductRecord {
	return &entity.ProductRecord{
		SKU:      sku,
		Name:     "Producto " + sku,
		Price:    decimal.NewFromFloat(price),
		Stock:    stock,
		Category: "Alimentação",
		Brand:    "AquaVita",
	}
}

// syncedState estado como lo dejaría una escritura completa acusada de r.
func syncedState(r *entity.ProductRecord, remoteID int64) *entity.SyncState {
	price := r.Price
	now := time.Now().Add(-time.Hour)
	return &entity.SyncState{
		SKU:             r.SKU,
		RemoteID:        &remoteID,
		FullFingerprint: fullFP(r),
		FastFingerprint: fastFP(r),
		LastPrice:       &price,
		ConfirmedRemote: true,
		LastSyncedAt:    &now,
		CreatedAt:       now,
	}
}

// whitelistState fila solo-whitelist: confirmada en el remoto, sin huellas.
func whitelistState(sku string, remoteID int64) *entity.SyncState {
	return &entity.SyncState{
		SKU:             sku,
		RemoteID:        &remoteID,
		ConfirmedRemote: true,
		CreatedAt:       time.Now().Add(-time.Hour),
	}
}
