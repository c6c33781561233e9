package sync

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aquaflora/stock-sync/internal/domain/entity"
)

// ── Puerto del catálogo remoto ────────────────────────────────────────────────

// RemoteCatalog define el puerto de salida hacia el catálogo remoto (API wc/v3).
// La implementación concreta usa REST; para tests se inyecta un fake.
type RemoteCatalog interface {
	// Create crea el producto y devuelve el id remoto acusado.
	Create(ctx context.Context, payload FullPayload) (int64, error)

	// UpdateFull reemplaza todos los campos mutables del producto remoto.
	UpdateFull(ctx context.Context, remoteID int64, payload FullPayload) error

	// UpdateFast actualiza solo precio y stock.
	UpdateFast(ctx context.Context, remoteID int64, payload FastPayload) error

	// BatchUpdateFast envía un lote de actualizaciones rápidas y devuelve el
	// resultado por ítem, en el mismo orden. Un ítem fallido nunca anula a sus
	// vecinos: no hay atomicidad a través del lote.
	BatchUpdateFast(ctx context.Context, items []BatchItem) ([]BatchResult, error)
}

// ── Cargas útiles ─────────────────────────────────────────────────────────────

// NameRef referencia por nombre (categorías del catálogo remoto).
type NameRef struct {
	Name string `json:"name"`
}

// Attribute atributo visible del producto (la marca viaja como atributo).
type Attribute struct {
	Name    string   `json:"name"`
	Options []string `json:"options"`
	Visible bool     `json:"visible"`
}

// ImageRef referencia a una imagen ya subida (la adquisición es externa al motor).
type ImageRef struct {
	Src string `json:"src"`
}

// FullPayload carga completa para crear o reemplazar un producto remoto.
type FullPayload struct {
	SKU              string      `json:"sku"`
	Name             string      `json:"name"`
	RegularPrice     string      `json:"regular_price"`
	StockQuantity    int         `json:"stock_quantity"`
	ManageStock      bool        `json:"manage_stock"`
	StockStatus      string      `json:"stock_status"`
	Description      string      `json:"description"`
	ShortDescription string      `json:"short_description"`
	Categories       []NameRef   `json:"categories,omitempty"`
	Attributes       []Attribute `json:"attributes,omitempty"`
	Images           []ImageRef  `json:"images,omitempty"`
	Weight           string      `json:"weight,omitempty"`
	Status           string      `json:"status"`
}

// FastPayload carga mínima: solo precio y stock.
type FastPayload struct {
	RegularPrice  string `json:"regular_price"`
	StockQuantity int    `json:"stock_quantity"`
	ManageStock   bool   `json:"manage_stock"`
	StockStatus   string `json:"stock_status"`
}

// BatchItem una actualización rápida dentro de un lote.
type BatchItem struct {
	RemoteID int64
	SKU      string
	Payload  FastPayload
}

// BatchResult resultado por ítem de un lote. Err nil = acusado.
type BatchResult struct {
	RemoteID int64
	Err      error
}

// NewFullPayload arma la carga completa desde un registro enriquecido.
// Stock negativo se publica como cero; sin stock el producto queda en borrador.
func NewFullPayload(r *entity.ProductRecord) FullPayload {
	p := FullPayload{
		SKU:              r.SKU,
		Name:             r.Name,
		RegularPrice:     r.Price.String(),
		StockQuantity:    r.EffectiveStock(),
		ManageStock:      true,
		StockStatus:      stockStatus(r),
		Description:      r.Description,
		ShortDescription: r.ShortDescription,
		Status:           "publish",
	}
	if !r.InStock() {
		p.Status = "draft"
	}
	if r.Category != "" {
		p.Categories = []NameRef{{Name: r.Category}}
	}
	if r.Brand != "" {
		p.Attributes = []Attribute{{Name: "Marca", Options: []string{r.Brand}, Visible: true}}
	}
	if r.ImageURL != "" {
		p.Images = []ImageRef{{Src: r.ImageURL}}
	}
	if r.WeightKG != nil {
		p.Weight = strconv.FormatFloat(*r.WeightKG, 'f', -1, 64)
	}
	return p
}

// NewFastPayload arma la carga mínima de precio y stock.
func NewFastPayload(r *entity.ProductRecord) FastPayload {
	return FastPayload{
		RegularPrice:  r.Price.String(),
		StockQuantity: r.EffectiveStock(),
		ManageStock:   true,
		StockStatus:   stockStatus(r),
	}
}

func stockStatus(r *entity.ProductRecord) string {
	if r.InStock() {
		return "instock"
	}
	return "outofstock"
}

// ── Errores remotos ───────────────────────────────────────────────────────────

// RemoteError error devuelto por el catálogo remoto, con el código HTTP
// cuando se conoce. Timeout marca fallas de red sin respuesta.
type RemoteError struct {
	StatusCode int
	SKU        string
	Message    string
	Timeout    bool
}

func (e *RemoteError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("catálogo remoto: %s [status=%d sku=%s]", e.Message, e.StatusCode, e.SKU)
	}
	return fmt.Sprintf("catálogo remoto: %s [sku=%s]", e.Message, e.SKU)
}

// Transient indica si vale la pena reintentar: timeouts, 5xx, 408 y 429.
// El resto de 4xx (payload rechazado, credenciales) es permanente.
func (e *RemoteError) Transient() bool {
	if e.Timeout {
		return true
	}
	return e.StatusCode >= 500 || e.StatusCode == 408 || e.StatusCode == 429
}

// IsTransient clasifica cualquier error de una llamada remota.
// Errores sin clasificar (conexión caída, DNS) se tratan como transitorios;
// la cancelación del contexto nunca se reintenta.
func IsTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errors.Is(err, context.DeadlineExceeded) // deadline por llamada sí; cancel no
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Transient()
	}
	return true
}
