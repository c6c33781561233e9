package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/aquaflora/stock-sync/internal/domain/entity"
	"github.com/aquaflora/stock-sync/internal/domain/repository"
)

var _ repository.SyncStateRepository = (*SyncStateRepo)(nil)

// variationSentinel reemplaza variaciones infinitas (precio recordado en cero)
// al persistir: NUMERIC no admite +Inf.
const variationSentinel = 999999.99

// SyncStateRepo implementación del puerto SyncStateRepository sobre PostgreSQL
// (usable con pool o tx).
type SyncStateRepo struct {
	q Querier
}

// NewSyncStateRepository construye el adaptador de estado. Pasar pool o tx (Querier).
func NewSyncStateRepository(q Querier) *SyncStateRepo {
	return &SyncStateRepo{q: q}
}

// Get obtiene el estado de un SKU, o (nil, nil) si no hay fila.
func (r *SyncStateRepo) Get(ctx context.Context, sku string) (*entity.SyncState, error) {
	query := `
		SELECT sku, remote_id, full_fingerprint, fast_fingerprint, last_price, confirmed_remote, last_synced_at, created_at
		FROM sync_state WHERE sku = $1`
	var (
		s         entity.SyncState
		fullFP    *string
		fastFP    *string
		lastPrice decimal.NullDecimal
	)
	err := r.q.QueryRow(ctx, query, sku).Scan(
		&s.SKU, &s.RemoteID, &fullFP, &fastFP, &lastPrice, &s.ConfirmedRemote, &s.LastSyncedAt, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get sync_state: %w", err)
	}
	if fullFP != nil {
		s.FullFingerprint = *fullFP
	}
	if fastFP != nil {
		s.FastFingerprint = *fastFP
	}
	if lastPrice.Valid {
		p := lastPrice.Decimal
		s.LastPrice = &p
	}
	return &s, nil
}

// Upsert inserta o reemplaza la fila del SKU de forma atómica (ON CONFLICT).
// Huellas vacías se guardan como NULL: la fila queda solo-whitelist.
func (r *SyncStateRepo) Upsert(ctx context.Context, state *entity.SyncState) error {
	query := `
		INSERT INTO sync_state (sku, remote_id, full_fingerprint, fast_fingerprint, last_price, confirmed_remote, last_synced_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (sku) DO UPDATE SET
			remote_id        = EXCLUDED.remote_id,
			full_fingerprint = EXCLUDED.full_fingerprint,
			fast_fingerprint = EXCLUDED.fast_fingerprint,
			last_price       = EXCLUDED.last_price,
			confirmed_remote = EXCLUDED.confirmed_remote,
			last_synced_at   = EXCLUDED.last_synced_at`
	_, err := r.q.Exec(ctx, query,
		state.SKU, state.RemoteID, nullIfEmpty(state.FullFingerprint), nullIfEmpty(state.FastFingerprint),
		nullDecimal(state.LastPrice), state.ConfirmedRemote, state.LastSyncedAt, state.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert sync_state: %w", err)
	}
	return nil
}

// AppendPriceHistory agrega una entrada al historial (append-only).
func (r *SyncStateRepo) AppendPriceHistory(ctx context.Context, e *entity.PriceHistoryEntry) error {
	query := `
		INSERT INTO price_history (sku, old_price, new_price, variation_percent, blocked, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.q.Exec(ctx, query,
		e.SKU, nullDecimal(e.OldPrice), e.NewPrice, storableVariation(e.VariationPercent), e.Blocked, e.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert price_history: %w", err)
	}
	return nil
}

// BulkMarkExisting marca SKUs como existentes en el remoto a partir del mapeo
// de descubrimiento. Las filas nuevas quedan solo-whitelist (huellas NULL);
// las existentes solo refrescan remote_id y confirmed_remote.
func (r *SyncStateRepo) BulkMarkExisting(ctx context.Context, mappings []entity.RemoteMapping) (int, error) {
	query := `
		INSERT INTO sync_state (sku, remote_id, confirmed_remote, created_at)
		VALUES ($1, $2, TRUE, now())
		ON CONFLICT (sku) DO UPDATE SET
			remote_id        = EXCLUDED.remote_id,
			confirmed_remote = TRUE`
	marked := 0
	for _, m := range mappings {
		if m.SKU == "" {
			continue
		}
		if _, err := r.q.Exec(ctx, query, m.SKU, m.RemoteID); err != nil {
			return marked, fmt.Errorf("mark existing %s: %w", m.SKU, err)
		}
		marked++
	}
	return marked, nil
}

// Stats consulta agregada de solo lectura para el reporte de estado.
func (r *SyncStateRepo) Stats(ctx context.Context) (*entity.StoreStats, error) {
	query := `
		SELECT count(*),
		       count(*) FILTER (WHERE confirmed_remote),
		       max(last_synced_at)
		FROM sync_state`
	var st entity.StoreStats
	if err := r.q.QueryRow(ctx, query).Scan(&st.KnownSKUs, &st.ConfirmedRemote, &st.LastSyncedAt); err != nil {
		return nil, fmt.Errorf("stats sync_state: %w", err)
	}
	return &st, nil
}

// PriceHistory últimos cambios de precio de un SKU, más reciente primero.
func (r *SyncStateRepo) PriceHistory(ctx context.Context, sku string, limit int) ([]*entity.PriceHistoryEntry, error) {
	query := `
		SELECT id, sku, old_price, new_price, variation_percent, blocked, recorded_at
		FROM price_history WHERE sku = $1
		ORDER BY recorded_at DESC, id DESC LIMIT $2`
	rows, err := r.q.Query(ctx, query, sku, limit)
	if err != nil {
		return nil, fmt.Errorf("price history: %w", err)
	}
	defer rows.Close()
	return scanHistory(rows)
}

// RecentPriceChanges últimos cambios con variación distinta de cero, todos los SKUs.
func (r *SyncStateRepo) RecentPriceChanges(ctx context.Context, limit int) ([]*entity.PriceHistoryEntry, error) {
	query := `
		SELECT id, sku, old_price, new_price, variation_percent, blocked, recorded_at
		FROM price_history WHERE variation_percent <> 0
		ORDER BY recorded_at DESC, id DESC LIMIT $1`
	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("recent price changes: %w", err)
	}
	defer rows.Close()
	return scanHistory(rows)
}

func scanHistory(rows pgx.Rows) ([]*entity.PriceHistoryEntry, error) {
	var list []*entity.PriceHistoryEntry
	for rows.Next() {
		var (
			e        entity.PriceHistoryEntry
			oldPrice decimal.NullDecimal
		)
		if err := rows.Scan(&e.ID, &e.SKU, &oldPrice, &e.NewPrice, &e.VariationPercent, &e.Blocked, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan price_history: %w", err)
		}
		if oldPrice.Valid {
			p := oldPrice.Decimal
			e.OldPrice = &p
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func storableVariation(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) || v > variationSentinel {
		return variationSentinel
	}
	if v < -variationSentinel {
		return -variationSentinel
	}
	return v
}
