package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/orders/internal/domain"
	"github.com/vladislavdragonenkov/orders/internal/service/order"
	"github.com/vladislavdragonenkov/orders/internal/service/product"
	"github.com/vladislavdragonenkov/orders/internal/storage/memory"
)

type testEnv struct {
	server  *Server
	orders  domain.OrderRepository
	gateway *product.MockGateway
	idem    domain.IdempotencyRepository
}

func newTestEnv() *testEnv {
	gateway := product.NewMockGateway()
	outbox := memory.NewOutboxRepository()
	orders := memory.NewOrderRepositoryWithOutbox(outbox)
	timeline := memory.NewTimelineRepository()
	idem := memory.NewIdempotencyRepository()

	svc := order.NewServiceWithoutMetrics(orders, gateway, timeline, nil)

	return &testEnv{
		server:  NewServer(svc, idem, WithIdempotencyTTL(time.Hour)),
		orders:  orders,
		gateway: gateway,
		idem:    idem,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func decodeOrder(t *testing.T, body []byte) orderResponse {
	t.Helper()

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal order response: %v\nbody: %s", err, body)
	}
	return resp
}

func TestCreateOrder_Ok(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/v1/orders",
		`{"items":[{"product_id":101,"qty":2},{"product_id":102,"qty":1}]}`, nil)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body: %s", rec.Code, rec.Body.String())
	}

	resp := decodeOrder(t, rec.Body.Bytes())
	if resp.ID == "" {
		t.Error("response must carry order id")
	}
	if resp.Status != "PENDING" {
		t.Errorf("status = %s, want PENDING", resp.Status)
	}
	if resp.AmountMinor != 11970 {
		t.Errorf("amount_minor = %d, want 11970", resp.AmountMinor)
	}
	if resp.TotalItems != 3 {
		t.Errorf("total_items = %d, want 3", resp.TotalItems)
	}
	if len(resp.Items) != 2 || resp.Items[0].Name == "" {
		t.Errorf("items must carry catalog names: %+v", resp.Items)
	}
}

func TestCreateOrder_InvalidJSON(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/v1/orders", `{"items":`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateOrder_EmptyItems(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/v1/orders", `{"items":[]}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body: %s", rec.Code, rec.Body.String())
	}

	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal error response: %v", err)
	}
	if resp.Code != "bad_request" {
		t.Errorf("code = %s, want bad_request", resp.Code)
	}
}

func TestCreateOrder_UnknownProduct(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/v1/orders",
		`{"items":[{"product_id":999,"qty":1}]}`, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422, body: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateOrder_IdempotentReplay(t *testing.T) {
	env := newTestEnv()
	body := `{"items":[{"product_id":101,"qty":1}]}`
	headers := map[string]string{idempotencyHeader: "key-1"}

	first := env.do(t, http.MethodPost, "/v1/orders", body, headers)
	if first.Code != http.StatusCreated {
		t.Fatalf("first status = %d, want 201", first.Code)
	}

	second := env.do(t, http.MethodPost, "/v1/orders", body, headers)
	if second.Code != http.StatusCreated {
		t.Fatalf("replay status = %d, want 201", second.Code)
	}

	firstOrder := decodeOrder(t, first.Body.Bytes())
	secondOrder := decodeOrder(t, second.Body.Bytes())
	if firstOrder.ID != secondOrder.ID {
		t.Errorf("replay must return the stored response, got ids %s and %s",
			firstOrder.ID, secondOrder.ID)
	}

	_, meta, err := env.orders.List(domain.ListFilter{Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if meta.MatchingCount != 1 {
		t.Errorf("replay must not create a second order, got %d", meta.MatchingCount)
	}
}

func TestCreateOrder_IdempotentHashMismatch(t *testing.T) {
	env := newTestEnv()
	headers := map[string]string{idempotencyHeader: "key-2"}

	first := env.do(t, http.MethodPost, "/v1/orders",
		`{"items":[{"product_id":101,"qty":1}]}`, headers)
	if first.Code != http.StatusCreated {
		t.Fatalf("first status = %d, want 201", first.Code)
	}

	second := env.do(t, http.MethodPost, "/v1/orders",
		`{"items":[{"product_id":102,"qty":5}]}`, headers)
	if second.Code != http.StatusUnprocessableEntity {
		t.Fatalf("mismatched replay status = %d, want 422, body: %s",
			second.Code, second.Body.String())
	}
}

func TestCreateOrder_IdempotentProcessingConflict(t *testing.T) {
	env := newTestEnv()
	body := `{"items":[{"product_id":101,"qty":1}]}`

	// Первый запрос с этим ключом ещё "в полёте".
	hash := hashRequest(http.MethodPost, "/v1/orders", []byte(body))
	if _, err := env.idem.CreateProcessing("key-3", hash, time.Now().UTC().Add(time.Hour)); err != nil {
		t.Fatalf("CreateProcessing() error = %v", err)
	}

	rec := env.do(t, http.MethodPost, "/v1/orders", body,
		map[string]string{idempotencyHeader: "key-3"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409, body: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateOrder_FailureReplayedFromIdempotencyStore(t *testing.T) {
	env := newTestEnv()
	body := `{"items":[{"product_id":999,"qty":1}]}`
	headers := map[string]string{idempotencyHeader: "key-4"}

	first := env.do(t, http.MethodPost, "/v1/orders", body, headers)
	if first.Code != http.StatusUnprocessableEntity {
		t.Fatalf("first status = %d, want 422", first.Code)
	}

	// Каталог "чинится", но replay обязан вернуть сохранённый результат.
	env.gateway.Products[999] = domain.Product{ID: 999, Name: "Late", PriceMinor: 100}

	second := env.do(t, http.MethodPost, "/v1/orders", body, headers)
	if second.Code != http.StatusUnprocessableEntity {
		t.Fatalf("replay status = %d, want stored 422, got %d", second.Code, second.Code)
	}
}

func TestListOrders(t *testing.T) {
	env := newTestEnv()

	for i := 0; i < 5; i++ {
		rec := env.do(t, http.MethodPost, "/v1/orders",
			`{"items":[{"product_id":101,"qty":1}]}`, nil)
		if rec.Code != http.StatusCreated {
			t.Fatalf("create status = %d, want 201", rec.Code)
		}
	}

	rec := env.do(t, http.MethodGet, "/v1/orders?page=1&limit=2", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp listOrdersResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal list response: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Errorf("len(data) = %d, want 2", len(resp.Data))
	}
	if resp.Meta.MatchingCount != 5 {
		t.Errorf("matching_count = %d, want 5", resp.Meta.MatchingCount)
	}
	if resp.Meta.LastPage != 3 {
		t.Errorf("last_page = %d, want 3", resp.Meta.LastPage)
	}
	for _, o := range resp.Data {
		if len(o.Items) != 0 {
			t.Errorf("list must not include items, got %d", len(o.Items))
		}
	}
}

func TestListOrders_BadParams(t *testing.T) {
	env := newTestEnv()

	tests := []struct {
		name string
		url  string
	}{
		{"non-numeric page", "/v1/orders?page=abc"},
		{"zero page", "/v1/orders?page=0"},
		{"non-numeric limit", "/v1/orders?limit=x"},
		{"unknown status", "/v1/orders?status=SHIPPED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, tt.url, "", nil)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestListOrders_StatusFilterIsCaseInsensitive(t *testing.T) {
	env := newTestEnv()

	created := env.do(t, http.MethodPost, "/v1/orders",
		`{"items":[{"product_id":101,"qty":1}]}`, nil)
	id := decodeOrder(t, created.Body.Bytes()).ID

	rec := env.do(t, http.MethodPatch, "/v1/orders/"+id+"/status", `{"status":"CONFIRMED"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d, want 200", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/v1/orders?status=confirmed", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp listOrdersResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal list response: %v", err)
	}
	if resp.Meta.MatchingCount != 1 {
		t.Errorf("matching_count = %d, want 1", resp.Meta.MatchingCount)
	}
}

func TestGetOrder(t *testing.T) {
	env := newTestEnv()

	created := env.do(t, http.MethodPost, "/v1/orders",
		`{"items":[{"product_id":103,"qty":1}]}`, nil)
	id := decodeOrder(t, created.Body.Bytes()).ID

	rec := env.do(t, http.MethodGet, "/v1/orders/"+id, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	resp := decodeOrder(t, rec.Body.Bytes())
	if len(resp.Items) != 1 || resp.Items[0].Name != "Monitor" {
		t.Errorf("items must carry resolved names: %+v", resp.Items)
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodGet, "/v1/orders/does-not-exist", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal error response: %v", err)
	}
	if !strings.Contains(resp.Message, "Order with id does-not-exist not found") {
		t.Errorf("message = %q, want legacy not-found wording", resp.Message)
	}
}

func TestChangeStatus(t *testing.T) {
	env := newTestEnv()

	created := env.do(t, http.MethodPost, "/v1/orders",
		`{"items":[{"product_id":101,"qty":1}]}`, nil)
	id := decodeOrder(t, created.Body.Bytes()).ID

	rec := env.do(t, http.MethodPatch, "/v1/orders/"+id+"/status", `{"status":"delivered"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}
	if resp := decodeOrder(t, rec.Body.Bytes()); resp.Status != "DELIVERED" {
		t.Errorf("status = %s, want DELIVERED", resp.Status)
	}

	// Повторная смена на тот же статус — no-op с тем же ответом.
	rec = env.do(t, http.MethodPatch, "/v1/orders/"+id+"/status", `{"status":"DELIVERED"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("no-op status = %d, want 200", rec.Code)
	}

	rec = env.do(t, http.MethodPatch, "/v1/orders/"+id+"/status", `{"status":"SHIPPED"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid status = %d, want 400", rec.Code)
	}

	rec = env.do(t, http.MethodPatch, "/v1/orders/missing/status", `{"status":"CONFIRMED"}`, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing order status = %d, want 404", rec.Code)
	}
}

func TestTimelineEndpoint(t *testing.T) {
	env := newTestEnv()

	created := env.do(t, http.MethodPost, "/v1/orders",
		`{"items":[{"product_id":101,"qty":1}]}`, nil)
	id := decodeOrder(t, created.Body.Bytes()).ID

	if rec := env.do(t, http.MethodPatch, "/v1/orders/"+id+"/status", `{"status":"CONFIRMED"}`, nil); rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d, want 200", rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/v1/orders/"+id+"/timeline", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp timelineResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal timeline response: %v", err)
	}
	if resp.OrderID != id {
		t.Errorf("order_id = %s, want %s", resp.OrderID, id)
	}
	if len(resp.Events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(resp.Events))
	}
	if resp.Events[0].Type != "order.created" || resp.Events[1].Type != "order.status_changed" {
		t.Errorf("unexpected event order: %s, %s", resp.Events[0].Type, resp.Events[1].Type)
	}

	rec = env.do(t, http.MethodGet, "/v1/orders/missing/timeline", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing timeline status = %d, want 404", rec.Code)
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", domain.ErrOrderNotFound, http.StatusNotFound, "not_found"},
		{"product validation", domain.ErrProductValidation, http.StatusUnprocessableEntity, "unprocessable"},
		{"items required", domain.ErrItemsRequired, http.StatusBadRequest, "bad_request"},
		{"invalid status", domain.ErrStatusInvalid, http.StatusBadRequest, "bad_request"},
		{"idempotency conflict", domain.ErrIdempotencyKeyAlreadyExists, http.StatusConflict, "conflict"},
		{"hash mismatch", domain.ErrIdempotencyHashMismatch, http.StatusUnprocessableEntity, "unprocessable"},
		{"unknown", assertAnError, http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := MapError(tt.err)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if resp.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", resp.Code, tt.wantCode)
			}
		})
	}
}

var assertAnError = errString("something unexpected")

type errString string

func (e errString) Error() string { return string(e) }
