package order

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orders/internal/domain"
	"github.com/vladislavdragonenkov/orders/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orders/internal/metrics"
)

// CreateItemInput — входная позиция заказа: каталог подтверждает id
// и даёт актуальную цену, клиент цен не присылает.
type CreateItemInput struct {
	ProductID int64
	Qty       int32
}

// CreateOrderInput — входные данные создания заказа.
type CreateOrderInput struct {
	Items []CreateItemInput
}

// Service описывает операции workflow заказов.
type Service interface {
	// Create валидирует позиции через каталог, снимает snapshot цен и
	// атомарно сохраняет заказ со всеми позициями.
	Create(input CreateOrderInput) (domain.Order, error)
	// List возвращает страницу заказов без позиций и метаданные пагинации.
	List(filter domain.ListFilter) ([]domain.Order, domain.ListMeta, error)
	// Get возвращает заказ с позициями, дополняя их актуальными именами
	// товаров из каталога.
	Get(id string) (domain.Order, error)
	// ChangeStatus меняет статус заказа. Смена на текущий статус — no-op.
	ChangeStatus(id string, status domain.OrderStatus) (domain.Order, error)
	// Timeline возвращает журнал жизненного цикла заказа.
	Timeline(id string) ([]domain.TimelineEvent, error)
}

type service struct {
	orders   domain.OrderRepository
	gateway  domain.ProductGateway
	timeline domain.TimelineRepository
	logger   *log.Entry
	metrics  *metrics.OrderMetrics
}

// NewService создаёт рабочий экземпляр сервиса заказов. События
// жизненного цикла пишутся в outbox самим репозиторием заказов
// атомарно с изменением данных.
func NewService(
	orders domain.OrderRepository,
	gateway domain.ProductGateway,
	timeline domain.TimelineRepository,
	logger *log.Entry,
) Service {
	if logger == nil {
		logger = log.New().WithField("component", "order_service")
	}
	return &service{
		orders:   orders,
		gateway:  gateway,
		timeline: timeline,
		logger:   logger,
		metrics:  metrics.NewOrderMetrics(),
	}
}

// NewServiceWithoutMetrics создаёт сервис без метрик (для тестов).
func NewServiceWithoutMetrics(
	orders domain.OrderRepository,
	gateway domain.ProductGateway,
	timeline domain.TimelineRepository,
	logger *log.Entry,
) Service {
	if logger == nil {
		logger = log.New().WithField("component", "order_service")
	}
	return &service{
		orders:   orders,
		gateway:  gateway,
		timeline: timeline,
		logger:   logger,
	}
}

func (s *service) Create(input CreateOrderInput) (order domain.Order, err error) {
	started := time.Now()
	defer func() {
		s.metrics.RecordOperation("create", err)
		s.metrics.RecordOperationDuration("create", time.Since(started))
	}()

	if len(input.Items) == 0 {
		return domain.Order{}, domain.ErrItemsRequired
	}
	for _, item := range input.Items {
		if item.ProductID <= 0 {
			return domain.Order{}, domain.ErrItemProductRequired
		}
		if item.Qty <= 0 {
			return domain.Order{}, domain.ErrItemQtyInvalid
		}
	}

	// Каталог запрашивается одним батчем по уникальным id.
	products, err := s.gateway.Resolve(distinctProductIDs(input.Items))
	if err != nil {
		s.logger.WithError(err).Warn("product validation failed")
		return domain.Order{}, err
	}
	productByID := make(map[int64]domain.Product, len(products))
	for _, p := range products {
		productByID[p.ID] = p
	}

	now := time.Now().UTC()
	order = domain.Order{
		ID:        uuid.NewString(),
		Status:    domain.OrderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	for _, in := range input.Items {
		product, ok := productByID[in.ProductID]
		if !ok {
			return domain.Order{}, fmt.Errorf("%w: product %d missing from catalog response", domain.ErrProductValidation, in.ProductID)
		}
		order.Items = append(order.Items, domain.OrderItem{
			ID:         uuid.NewString(),
			ProductID:  in.ProductID,
			Qty:        in.Qty,
			PriceMinor: product.PriceMinor,
			Name:       product.Name,
			CreatedAt:  now,
		})
		order.AmountMinor += int64(in.Qty) * product.PriceMinor
		order.TotalItems += in.Qty
	}

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, errs[0]
	}

	event, err := orderEventMessage(order, kafka.EventTypeOrderCreated, nil)
	if err != nil {
		return domain.Order{}, err
	}

	if err = s.orders.CreateWithItems(order, event); err != nil {
		s.logger.WithError(err).Error("failed to persist order")
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}

	s.metrics.RecordOrderCreated()
	s.metrics.RecordOutboxEvent()
	s.appendTimeline(order.ID, string(kafka.EventTypeOrderCreated), "")

	s.logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"amount_minor": order.AmountMinor,
		"total_items":  order.TotalItems,
	}).Info("order created")

	return order, nil
}

func (s *service) List(filter domain.ListFilter) (orders []domain.Order, meta domain.ListMeta, err error) {
	started := time.Now()
	defer func() {
		s.metrics.RecordOperation("list", err)
		s.metrics.RecordOperationDuration("list", time.Since(started))
	}()

	orders, meta, err = s.orders.List(filter)
	if err != nil {
		return nil, domain.ListMeta{}, fmt.Errorf("list orders: %w", err)
	}
	return orders, meta, nil
}

func (s *service) Get(id string) (order domain.Order, err error) {
	started := time.Now()
	defer func() {
		s.metrics.RecordOperation("get", err)
		s.metrics.RecordOperationDuration("get", time.Since(started))
	}()

	order, err = s.orders.Get(id)
	if err != nil {
		if domain.IsNotFound(err) {
			return domain.Order{}, fmt.Errorf("Order with id %s not found: %w", id, err)
		}
		return domain.Order{}, err
	}

	if err = s.enrichItemNames(&order); err != nil {
		return domain.Order{}, err
	}

	return order, nil
}

func (s *service) ChangeStatus(id string, status domain.OrderStatus) (order domain.Order, err error) {
	started := time.Now()
	defer func() {
		s.metrics.RecordOperation("change_status", err)
		s.metrics.RecordOperationDuration("change_status", time.Since(started))
	}()

	if !status.Valid() {
		return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrStatusInvalid, status)
	}

	current, err := s.orders.Get(id)
	if err != nil {
		if domain.IsNotFound(err) {
			return domain.Order{}, fmt.Errorf("Order with id %s not found: %w", id, err)
		}
		return domain.Order{}, err
	}

	// Смена на текущий статус — no-op: заказ возвращается без записи,
	// без событий и без обновления updated_at.
	if current.Status == status {
		return current, nil
	}

	previous := current.Status
	changed := current
	changed.Status = status
	event, err := orderEventMessage(changed, kafka.EventTypeOrderStatusChanged, map[string]interface{}{
		"previous_status": string(previous),
	})
	if err != nil {
		return domain.Order{}, err
	}

	order, err = s.orders.UpdateStatus(id, status, time.Now().UTC(), event)
	if err != nil {
		return domain.Order{}, err
	}

	s.metrics.RecordStatusChange()
	s.metrics.RecordOutboxEvent()
	s.appendTimeline(order.ID, string(kafka.EventTypeOrderStatusChanged),
		fmt.Sprintf("%s -> %s", previous, status))

	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"from":     previous,
		"to":       status,
	}).Info("order status changed")

	return order, nil
}

func (s *service) Timeline(id string) ([]domain.TimelineEvent, error) {
	if _, err := s.orders.Get(id); err != nil {
		if domain.IsNotFound(err) {
			return nil, fmt.Errorf("Order with id %s not found: %w", id, err)
		}
		return nil, err
	}
	return s.timeline.List(id)
}

// enrichItemNames подставляет в позиции актуальные имена товаров.
// Имена не хранятся вместе с заказом, поэтому сбой каталога делает
// заказ нечитаемым целиком.
func (s *service) enrichItemNames(order *domain.Order) error {
	if len(order.Items) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(order.Items))
	seen := make(map[int64]bool, len(order.Items))
	for _, item := range order.Items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}

	products, err := s.gateway.Resolve(ids)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to resolve product names")
		return err
	}

	nameByID := make(map[int64]string, len(products))
	for _, p := range products {
		nameByID[p.ID] = p.Name
	}
	for i := range order.Items {
		order.Items[i].Name = nameByID[order.Items[i].ProductID]
	}
	return nil
}

// orderEventMessage собирает outbox-сообщение о событии заказа.
// Запись в outbox выполняет репозиторий атомарно с изменением заказа,
// поэтому сбой на этом пути валит всю операцию.
func orderEventMessage(order domain.Order, eventType kafka.EventType, metadata map[string]interface{}) (domain.OutboxMessage, error) {
	event := kafka.NewOrderEvent(eventType, order.ID, string(order.Status), order.AmountMinor, order.TotalItems, metadata)
	payload, err := json.Marshal(event)
	if err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("marshal order event: %w", err)
	}

	return domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     string(eventType),
		Payload:       payload,
	}, nil
}

// appendTimeline пишет событие в журнал заказа, не прерывая операцию при сбое.
func (s *service) appendTimeline(orderID, eventType, reason string) {
	if s.timeline == nil {
		return
	}

	if err := s.timeline.Append(domain.TimelineEvent{
		OrderID:  orderID,
		Type:     eventType,
		Reason:   reason,
		Occurred: time.Now().UTC(),
	}); err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Error("failed to append timeline event")
		return
	}
	s.metrics.RecordTimelineEvent()
}

func distinctProductIDs(items []CreateItemInput) []int64 {
	ids := make([]int64, 0, len(items))
	seen := make(map[int64]bool, len(items))
	for _, item := range items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}
	return ids
}

var _ Service = (*service)(nil)
