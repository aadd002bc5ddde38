package product

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

const defaultRequestTimeout = 3 * time.Second

// Client — HTTP-клиент каталога товаров. Валидация и получение цен
// выполняются одним батч-запросом.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *log.Entry
}

// NewClient создаёт клиента каталога. При timeout <= 0 берётся значение по умолчанию.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  log.WithField("component", "product_client"),
	}
}

type validateRequest struct {
	ProductIDs []int64 `json:"product_ids"`
}

type validateResponse struct {
	Products []struct {
		ID         int64  `json:"id"`
		Name       string `json:"name"`
		PriceMinor int64  `json:"price_minor"`
	} `json:"products"`
}

// Resolve запрашивает каталог по списку id. Если хоть один id не подтверждён
// каталогом или запрос завершился ошибкой, возвращается ErrProductValidation:
// частичных результатов не бывает.
func (c *Client) Resolve(productIDs []int64) ([]domain.Product, error) {
	if len(productIDs) == 0 {
		return nil, fmt.Errorf("%w: empty product id list", domain.ErrProductValidation)
	}

	body, err := json.Marshal(validateRequest{ProductIDs: productIDs})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", domain.ErrProductValidation, err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/products/validate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrProductValidation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WithError(err).Warn("product catalog call failed")
		return nil, fmt.Errorf("%w: catalog call failed: %v", domain.ErrProductValidation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.WithField("status", resp.StatusCode).Warn("product catalog returned non-OK status")
		return nil, fmt.Errorf("%w: catalog status %d: %s", domain.ErrProductValidation, resp.StatusCode, string(payload))
	}

	var decoded validateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrProductValidation, err)
	}

	byID := make(map[int64]domain.Product, len(decoded.Products))
	for _, p := range decoded.Products {
		byID[p.ID] = domain.Product{ID: p.ID, Name: p.Name, PriceMinor: p.PriceMinor}
	}

	result := make([]domain.Product, 0, len(productIDs))
	for _, id := range productIDs {
		p, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: product %d not found in catalog", domain.ErrProductValidation, id)
		}
		result = append(result, p)
	}

	return result, nil
}

var _ domain.ProductGateway = (*Client)(nil)
