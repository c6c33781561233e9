package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// SyncState es el estado recordado de un SKU frente al catálogo remoto.
// Existe una fila si y solo si el motor confirmó alguna vez una representación
// remota (creación acusada o mapeo de existencia externo).
type SyncState struct {
	SKU             string
	RemoteID        *int64           // nil = nunca se confirmó creación remota
	FullFingerprint string           // vacío = desconocido (fila solo-whitelist)
	FastFingerprint string           // vacío = desconocido
	LastPrice       *decimal.Decimal // nil en filas solo-whitelist
	ConfirmedRemote bool             // true solo tras un acuse remoto o mapeo explícito
	LastSyncedAt    *time.Time
	CreatedAt       time.Time
}

// FingerprintsKnown indica si la fila guarda huellas de una sincronización previa.
// Las filas creadas por whitelist no las tienen: su primera sincronización debe ser completa.
func (s *SyncState) FingerprintsKnown() bool {
	return s.FullFingerprint != "" && s.FastFingerprint != ""
}

// RemoteMapping es una asociación SKU → id remoto producida por la rutina
// externa de descubrimiento del catálogo.
type RemoteMapping struct {
	SKU      string
	RemoteID int64
}

// PriceHistoryEntry registro append-only de cambios de precio observados,
// se hayan aplicado o bloqueado. Diagnóstico, nunca autoritativo.
type PriceHistoryEntry struct {
	ID               int64
	SKU              string
	OldPrice         *decimal.Decimal
	NewPrice         decimal.Decimal
	VariationPercent float64
	Blocked          bool
	RecordedAt       time.Time
}

// StoreStats estadísticas de solo lectura del almacén de estado.
type StoreStats struct {
	KnownSKUs       int
	ConfirmedRemote int
	LastSyncedAt    *time.Time
}
