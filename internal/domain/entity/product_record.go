package entity

import "github.com/shopspring/decimal"

// ProductRecord es un producto ya enriquecido (marca, descripción, categoría, imagen)
// tal como lo entrega la etapa de enriquecimiento. El motor nunca lo muta.
type ProductRecord struct {
	SKU              string
	Name             string
	Description      string
	ShortDescription string
	Price            decimal.Decimal // precio de venta, no negativo
	Stock            int             // puede llegar negativo desde el ERP; ver EffectiveStock
	Category         string
	Brand            string   // opcional, vacío = sin marca
	WeightKG         *float64 // opcional, no negativo
	ImageURL         string   // opcional, vacío = sin imagen
}

// EffectiveStock devuelve el stock a publicar: los negativos transitorios del ERP
// se tratan como cero hacia el catálogo remoto.
func (r *ProductRecord) EffectiveStock() int {
	if r.Stock < 0 {
		return 0
	}
	return r.Stock
}

// InStock indica si el producto tiene existencias publicables.
func (r *ProductRecord) InStock() bool {
	return r.EffectiveStock() > 0
}
