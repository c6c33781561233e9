package reconcile

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/aquaflora/stock-sync/internal/domain/entity"
)

// Huellas duales de un registro enriquecido (servicio de dominio, puro):
//   - FullFingerprint cubre los campos descriptivos → dispara actualización completa.
//   - FastFingerprint cubre precio y stock → dispara actualización rápida.
//
// Entre las dos cubren todos los campos mutables del registro. Precio y stock
// quedan fuera de la huella completa a propósito: si entraran, cualquier
// cambio de precio dispararía una actualización completa y la vía rápida
// sería inalcanzable.
//
// La serialización es canónica: orden de campos fijo, texto normalizado NFC y
// montos con escala fija, de modo que el mismo valor produce siempre el mismo
// digest sin importar cómo llegó representado. Se usa SHA-256 porque el digest
// sustituye la igualdad de los campos que cubre.

const amountScale = 6 // decimales fijos al serializar montos y pesos

// FullFingerprint digest de los campos descriptivos del registro.
func FullFingerprint(r *entity.ProductRecord) string {
	var b strings.Builder
	writeField(&b, "name", normText(r.Name))
	writeField(&b, "description", normText(r.Description))
	writeField(&b, "short_description", normText(r.ShortDescription))
	writeField(&b, "category", normText(r.Category))
	writeField(&b, "brand", normText(r.Brand))
	writeField(&b, "weight_kg", weightString(r.WeightKG))
	writeField(&b, "image", r.ImageURL)
	return digest(b.String())
}

// FastFingerprint digest de precio y stock únicamente.
func FastFingerprint(r *entity.ProductRecord) string {
	var b strings.Builder
	writeField(&b, "price", r.Price.StringFixed(amountScale))
	writeField(&b, "stock", strconv.Itoa(r.EffectiveStock()))
	return digest(b.String())
}

func writeField(b *strings.Builder, key, value string) {
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(value)
	b.WriteByte('\n')
}

func normText(s string) string {
	return norm.NFC.String(s)
}

func weightString(w *float64) string {
	if w == nil {
		return ""
	}
	return strconv.FormatFloat(*w, 'f', amountScale, 64)
}

func digest(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
