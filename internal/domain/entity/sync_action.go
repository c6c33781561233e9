package entity

// ActionKind es el tipo de acción que el clasificador asigna a un registro.
type ActionKind int

const (
	ActionSkip ActionKind = iota
	ActionCreate
	ActionFullUpdate
	ActionFastUpdate
	ActionBlocked
)

// String devuelve el nombre de la acción para logs y resúmenes.
func (k ActionKind) String() string {
	switch k {
	case ActionCreate:
		return "create"
	case ActionFullUpdate:
		return "full_update"
	case ActionFastUpdate:
		return "fast_update"
	case ActionBlocked:
		return "blocked"
	default:
		return "skip"
	}
}

// SyncAction es la decisión por registro de una corrida: exactamente una
// variante, con el registro, el estado conocido (si hay) y las huellas
// recalculadas del registro actual.
type SyncAction struct {
	Kind   ActionKind
	Record *ProductRecord
	State  *SyncState // nil si el SKU no está en el almacén

	// Huellas del registro actual, calculadas una sola vez al clasificar.
	FullFingerprint string
	FastFingerprint string

	// Reason explica Skip ("unchanged", "not whitelisted, creation disabled").
	Reason string

	// Solo para ActionBlocked.
	VariationPercent float64
	ThresholdPercent float64
}
