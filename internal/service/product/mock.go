package product

import (
	"fmt"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

// MockGateway — конфигурируемая заглушка ProductGateway для тестов и
// локального запуска без каталога.
type MockGateway struct {
	Products   map[int64]domain.Product
	ResolveErr error

	ResolveCalls int
	LastRequest  []int64
}

// NewMockGateway возвращает mock с небольшим набором товаров по умолчанию.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		Products: map[int64]domain.Product{
			101: {ID: 101, Name: "Keyboard", PriceMinor: 4990},
			102: {ID: 102, Name: "Mouse", PriceMinor: 1990},
			103: {ID: 103, Name: "Monitor", PriceMinor: 24990},
		},
	}
}

// Resolve возвращает настроенные товары и считает вызовы. Неизвестный id
// приводит к ErrProductValidation, как и у настоящего каталога.
func (m *MockGateway) Resolve(productIDs []int64) ([]domain.Product, error) {
	m.ResolveCalls++
	m.LastRequest = append([]int64(nil), productIDs...)

	if m.ResolveErr != nil {
		return nil, m.ResolveErr
	}

	result := make([]domain.Product, 0, len(productIDs))
	for _, id := range productIDs {
		p, ok := m.Products[id]
		if !ok {
			return nil, fmt.Errorf("%w: product %d not found in catalog", domain.ErrProductValidation, id)
		}
		result = append(result, p)
	}
	return result, nil
}

var _ domain.ProductGateway = (*MockGateway)(nil)
