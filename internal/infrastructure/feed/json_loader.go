package feed

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/aquaflora/stock-sync/internal/domain"
	"github.com/aquaflora/stock-sync/internal/domain/entity"
)

// recordJSON forma de cada registro en el feed enriquecido (archivo JSON).
// El precio acepta número o cadena; decimal lo decodifica sin perder escala.
type recordJSON struct {
	SKU              string          `json:"sku"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	ShortDescription string          `json:"short_description"`
	Price            decimal.Decimal `json:"price"`
	Stock            int             `json:"stock"`
	Category         string          `json:"category"`
	Brand            string          `json:"brand"`
	WeightKG         *float64        `json:"weight_kg"`
	ImageURL         string          `json:"image_url"`
}

// LoadFile lee un feed enriquecido desde un archivo JSON (arreglo de registros).
// Registros sin SKU se rechazan: sin clave no hay reconciliación posible.
func LoadFile(path string) ([]*entity.ProductRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("leer feed: %w", err)
	}
	return Parse(data)
}

// Parse decodifica el feed desde bytes JSON.
func Parse(data []byte) ([]*entity.ProductRecord, error) {
	var raw []recordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: feed ilegible: %v", domain.ErrInvalidInput, err)
	}

	records := make([]*entity.ProductRecord, 0, len(raw))
	for i, r := range raw {
		sku := strings.TrimSpace(r.SKU)
		if sku == "" {
			return nil, fmt.Errorf("%w: registro %d sin sku", domain.ErrInvalidInput, i)
		}
		records = append(records, &entity.ProductRecord{
			SKU:              sku,
			Name:             r.Name,
			Description:      r.Description,
			ShortDescription: r.ShortDescription,
			Price:            r.Price,
			Stock:            r.Stock,
			Category:         r.Category,
			Brand:            r.Brand,
			WeightKG:         r.WeightKG,
			ImageURL:         r.ImageURL,
		})
	}
	return records, nil
}
