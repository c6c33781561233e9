package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// BlockedItem un SKU cuyo precio fue bloqueado por la guarda de variación.
type BlockedItem struct {
	SKU              string
	Name             string
	OldPrice         *decimal.Decimal
	NewPrice         decimal.Decimal
	VariationPercent float64
	ThresholdPercent float64
}

// FailedItem un SKU cuya escritura remota falló definitivamente.
type FailedItem struct {
	SKU    string
	Reason string
}

// SyncSummary resultado agregado de una corrida. La corrida no es atómica:
// el resumen refleja el desenlace mixto real, con cada bloqueado y fallido
// enumerado con su razón para poder triagear sin logs.
type SyncSummary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	DryRun     bool

	TotalRecords int
	Created      int
	FullUpdated  int
	FastUpdated  int
	Skipped      int
	NotProcessed int // cancelados antes de aplicarse; nunca cuentan como fallidos

	Blocked []BlockedItem
	Failed  []FailedItem
}

// TotalSynced productos efectivamente escritos en el catálogo remoto.
func (s *SyncSummary) TotalSynced() int {
	return s.Created + s.FullUpdated + s.FastUpdated
}

// Success indica si la corrida terminó sin fallas remotas.
func (s *SyncSummary) Success() bool {
	return len(s.Failed) == 0
}
