package woocatalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	appsync "github.com/aquaflora/stock-sync/internal/application/sync"
	"github.com/aquaflora/stock-sync/pkg/config"
)

var _ appsync.RemoteCatalog = (*Client)(nil)

// Client adaptador REST del catálogo remoto (API wc/v3). Las credenciales
// viajan como query params consumer_key/consumer_secret, como exige la API
// sobre HTTPS. El timeout es por llamada, nunca por corrida.
type Client struct {
	baseURL string
	key     string
	secret  string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient construye el cliente del catálogo con la configuración de la app.
func NewClient(cfg config.CatalogConfig, log zerolog.Logger) *Client {
	return &Client{
		baseURL: cfg.URL,
		key:     cfg.ConsumerKey,
		secret:  cfg.ConsumerSecret,
		http:    &http.Client{Timeout: cfg.Timeout()},
		log:     log.With().Str("component", "woocatalog").Logger(),
	}
}

// Create crea el producto y devuelve el id remoto acusado.
func (c *Client) Create(ctx context.Context, payload appsync.FullPayload) (int64, error) {
	var resp struct {
		ID int64 `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/wp-json/wc/v3/products", payload.SKU, payload, &resp); err != nil {
		return 0, err
	}
	if resp.ID == 0 {
		return 0, &appsync.RemoteError{SKU: payload.SKU, Message: "respuesta de creación sin id"}
	}
	return resp.ID, nil
}

// UpdateFull reemplaza todos los campos mutables del producto remoto.
func (c *Client) UpdateFull(ctx context.Context, remoteID int64, payload appsync.FullPayload) error {
	path := fmt.Sprintf("/wp-json/wc/v3/products/%d", remoteID)
	return c.doJSON(ctx, http.MethodPut, path, payload.SKU, payload, nil)
}

// UpdateFast actualiza solo precio y stock de un producto.
func (c *Client) UpdateFast(ctx context.Context, remoteID int64, payload appsync.FastPayload) error {
	path := fmt.Sprintf("/wp-json/wc/v3/products/%d", remoteID)
	return c.doJSON(ctx, http.MethodPut, path, "", payload, nil)
}

// BatchUpdateFast envía un lote por el endpoint batch y resuelve por ítem.
// La API acusa el lote completo con un elemento por ítem; los rechazados
// traen un objeto error y no afectan a sus vecinos.
func (c *Client) BatchUpdateFast(ctx context.Context, items []appsync.BatchItem) ([]appsync.BatchResult, error) {
	type batchUpdate struct {
		ID int64 `json:"id"`
		appsync.FastPayload
	}
	req := struct {
		Update []batchUpdate `json:"update"`
	}{Update: make([]batchUpdate, 0, len(items))}
	for _, it := range items {
		req.Update = append(req.Update, batchUpdate{ID: it.RemoteID, FastPayload: it.Payload})
	}

	var resp struct {
		Update []struct {
			ID    int64 `json:"id"`
			Error *struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		} `json:"update"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/wp-json/wc/v3/products/batch", "", req, &resp); err != nil {
		return nil, err
	}

	skuByID := make(map[int64]string, len(items))
	for _, it := range items {
		skuByID[it.RemoteID] = it.SKU
	}
	results := make([]appsync.BatchResult, 0, len(resp.Update))
	for _, u := range resp.Update {
		res := appsync.BatchResult{RemoteID: u.ID}
		if u.Error != nil {
			res.Err = &appsync.RemoteError{
				SKU:     skuByID[u.ID],
				Message: fmt.Sprintf("%s: %s", u.Error.Code, u.Error.Message),
			}
		}
		results = append(results, res)
	}
	return results, nil
}

// doJSON ejecuta una llamada JSON autenticada y decodifica la respuesta en out.
// Respuestas no-2xx se traducen a RemoteError con el código HTTP; las fallas
// de red sin respuesta se marcan como timeout si lo fueron.
func (c *Client) doJSON(ctx context.Context, method, path, sku string, body, out any) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("url del catálogo: %w", err)
	}
	q := u.Query()
	q.Set("consumer_key", c.key)
	q.Set("consumer_secret", c.secret)
	u.RawQuery = q.Encode()

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("serializar carga: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("armar request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &appsync.RemoteError{SKU: sku, Message: err.Error(), Timeout: isTimeout(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.remoteError(resp, sku)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &appsync.RemoteError{StatusCode: resp.StatusCode, SKU: sku, Message: "respuesta ilegible: " + err.Error()}
	}
	return nil
}

func (c *Client) remoteError(resp *http.Response, sku string) error {
	msg := resp.Status
	var apiErr struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
		msg = apiErr.Message
	}
	c.log.Warn().Int("status", resp.StatusCode).Str("sku", sku).Str("message", msg).Msg("rechazo del catálogo remoto")
	return &appsync.RemoteError{StatusCode: resp.StatusCode, SKU: sku, Message: msg}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
