package domain

import "time"

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан и ожидает подтверждения.
	OrderStatusPending OrderStatus = "PENDING"
	// OrderStatusConfirmed — заказ подтверждён и передан в исполнение.
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	// OrderStatusDelivered — заказ доставлен покупателю.
	OrderStatusDelivered OrderStatus = "DELIVERED"
	// OrderStatusCancelled — заказ отменён.
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// OrderItem представляет одну позицию заказа.
type OrderItem struct {
	// ID позиции нужен для однозначной идентификации и аудита.
	ID string
	// ProductID — идентификатор товара во внешнем каталоге.
	// Валидность устанавливается только через ProductGateway при создании заказа.
	ProductID int64
	// Qty — количество единиц товара.
	Qty int32
	// PriceMinor — снимок цены за единицу в минимальных денежных единицах
	// на момент создания заказа; после создания не обновляется.
	PriceMinor int64
	// Name — отображаемое имя товара. Подтягивается из каталога при каждом
	// чтении и никогда не сохраняется в хранилище.
	Name string
	// CreatedAt фиксирует момент добавления позиции в заказ.
	CreatedAt time.Time
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID string
	// AmountMinor — сумма заказа: Σ qty * price_minor по всем позициям.
	// Фиксируется при создании и далее неизменна.
	AmountMinor int64
	// TotalItems — суммарное количество единиц товара: Σ qty.
	TotalItems int32
	Status     OrderStatus
	Items      []OrderItem
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if !o.Status.Valid() {
		errs = append(errs, ErrStatusInvalid)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.AmountMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}

	// Сверяем итоги заказа с суммами по позициям.
	var amount int64
	var qtySum int32
	for _, item := range o.Items {
		if item.ProductID <= 0 {
			errs = append(errs, ErrItemProductRequired)
		}
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.PriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
		amount += int64(item.Qty) * item.PriceMinor
		qtySum += item.Qty
	}
	if amount != o.AmountMinor {
		errs = append(errs, ErrAmountMismatch)
	}
	if qtySum != o.TotalItems {
		errs = append(errs, ErrTotalItemsMismatch)
	}

	return errs
}
