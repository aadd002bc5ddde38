package httpapi

import (
	"time"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

type createOrderRequest struct {
	Items []createItemRequest `json:"items"`
}

type createItemRequest struct {
	ProductID int64 `json:"product_id"`
	Qty       int32 `json:"qty"`
}

type changeStatusRequest struct {
	Status string `json:"status"`
}

type orderItemResponse struct {
	ID         string `json:"id"`
	ProductID  int64  `json:"product_id"`
	Qty        int32  `json:"qty"`
	PriceMinor int64  `json:"price_minor"`
	Name       string `json:"name,omitempty"`
}

type orderResponse struct {
	ID          string              `json:"id"`
	Status      string              `json:"status"`
	AmountMinor int64               `json:"amount_minor"`
	TotalItems  int32               `json:"total_items"`
	Items       []orderItemResponse `json:"items,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

type listMetaResponse struct {
	MatchingCount int64 `json:"matching_count"`
	Page          int   `json:"page"`
	LastPage      int   `json:"last_page"`
}

type listOrdersResponse struct {
	Data []orderResponse  `json:"data"`
	Meta listMetaResponse `json:"meta"`
}

type timelineEventResponse struct {
	Type       string    `json:"type"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type timelineResponse struct {
	OrderID string                  `json:"order_id"`
	Events  []timelineEventResponse `json:"events"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func toOrderResponse(order domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ID:         item.ID,
			ProductID:  item.ProductID,
			Qty:        item.Qty,
			PriceMinor: item.PriceMinor,
			Name:       item.Name,
		})
	}
	return orderResponse{
		ID:          order.ID,
		Status:      string(order.Status),
		AmountMinor: order.AmountMinor,
		TotalItems:  order.TotalItems,
		Items:       items,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}
}

func toListResponse(orders []domain.Order, meta domain.ListMeta) listOrdersResponse {
	data := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		data = append(data, toOrderResponse(order))
	}
	return listOrdersResponse{
		Data: data,
		Meta: listMetaResponse{
			MatchingCount: meta.MatchingCount,
			Page:          meta.Page,
			LastPage:      meta.LastPage,
		},
	}
}

func toTimelineResponse(orderID string, events []domain.TimelineEvent) timelineResponse {
	out := make([]timelineEventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, timelineEventResponse{
			Type:       event.Type,
			Reason:     event.Reason,
			OccurredAt: event.Occurred,
		})
	}
	return timelineResponse{OrderID: orderID, Events: out}
}
