package domain

// Product — запись внешнего каталога товаров, возвращаемая ProductGateway.
type Product struct {
	ID   int64
	Name string
	// PriceMinor — актуальная цена за единицу в минимальных денежных единицах.
	PriceMinor int64
}
