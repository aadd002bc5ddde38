package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orders/internal/domain"
	"github.com/vladislavdragonenkov/orders/internal/service/order"
)

const (
	idempotencyHeader     = "Idempotency-Key"
	defaultIdempotencyTTL = 24 * time.Hour
	maxBodyBytes          = 1 << 20
)

// Server — JSON REST фасад над workflow заказов.
type Server struct {
	svc    order.Service
	idem   domain.IdempotencyRepository
	ttl    time.Duration
	logger *log.Entry
	router chi.Router
}

// ServerOption настраивает Server.
type ServerOption func(*Server)

// WithIdempotencyTTL задаёт время жизни idempotency записей.
func WithIdempotencyTTL(ttl time.Duration) ServerOption {
	return func(s *Server) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithLogger задаёт logger сервера.
func WithLogger(logger *log.Entry) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer создаёт HTTP-фасад. idem == nil отключает поддержку
// Idempotency-Key, запросы обрабатываются напрямую.
func NewServer(svc order.Service, idem domain.IdempotencyRepository, options ...ServerOption) *Server {
	s := &Server{
		svc:    svc,
		idem:   idem,
		ttl:    defaultIdempotencyTTL,
		logger: log.WithField("component", "http"),
	}
	for _, option := range options {
		option(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/v1/orders", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Get("/", s.handleList)
		r.Get("/{id}", s.handleGet)
		r.Patch("/{id}/status", s.handleChangeStatus)
		r.Get("/{id}/timeline", s.handleTimeline)
	})

	s.router = r
	return s
}

// Router возвращает http.Handler для монтирования.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", "failed to read request body")
		return
	}

	key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	if key == "" || s.idem == nil {
		status, payload := s.createOrder(body)
		s.writeJSON(w, status, payload)
		return
	}

	requestHash := hashRequest(r.Method, r.URL.Path, body)
	record, err := s.idem.CreateProcessing(key, requestHash, time.Now().UTC().Add(s.ttl))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrIdempotencyHashMismatch):
			s.writeError(w, http.StatusUnprocessableEntity, "unprocessable",
				"idempotency key was already used with a different request body")
			return
		case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
			s.replayOrConflict(w, record)
			return
		default:
			s.logger.WithError(err).Error("idempotency bookkeeping failed")
			s.writeError(w, http.StatusInternalServerError, "internal", "internal server error")
			return
		}
	}

	status, payload := s.createOrder(body)

	stored, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		s.logger.WithError(marshalErr).Error("failed to marshal stored response")
	} else if status == http.StatusCreated {
		if err := s.idem.MarkDone(key, stored, status); err != nil {
			s.logger.WithError(err).Warn("failed to mark idempotency record done")
		}
	} else {
		if err := s.idem.MarkFailed(key, stored, status); err != nil {
			s.logger.WithError(err).Warn("failed to mark idempotency record failed")
		}
	}

	s.writeJSON(w, status, payload)
}

// createOrder выполняет создание заказа и возвращает готовую пару
// статус/тело: она одинаково пишется в ответ и в idempotency запись.
func (s *Server) createOrder(body []byte) (int, any) {
	var req createOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return http.StatusBadRequest, errorResponse{
			Code:    "bad_request",
			Message: "invalid JSON body",
		}
	}

	input := order.CreateOrderInput{}
	for _, item := range req.Items {
		input.Items = append(input.Items, order.CreateItemInput{
			ProductID: item.ProductID,
			Qty:       item.Qty,
		})
	}

	created, err := s.svc.Create(input)
	if err != nil {
		status, resp := MapError(err)
		return status, resp
	}

	return http.StatusCreated, toOrderResponse(created)
}

// replayOrConflict возвращает сохранённый ответ для завершённых запросов
// и 409, пока первый запрос с тем же ключом ещё обрабатывается.
func (s *Server) replayOrConflict(w http.ResponseWriter, record domain.IdempotencyRecord) {
	switch record.Status {
	case domain.IdempotencyStatusDone, domain.IdempotencyStatusFailed:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(record.HTTPStatus)
		_, _ = w.Write(record.ResponseBody)
	default:
		s.writeError(w, http.StatusConflict, "conflict",
			"request with this idempotency key is already being processed")
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	filter := domain.ListFilter{Page: 1, Limit: 10}

	if raw := r.URL.Query().Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			s.writeError(w, http.StatusBadRequest, "bad_request", "page must be a positive integer")
			return
		}
		filter.Page = page
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			s.writeError(w, http.StatusBadRequest, "bad_request", "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.OrderStatus(strings.ToUpper(raw))
		if !status.Valid() {
			s.writeError(w, http.StatusBadRequest, "bad_request", "unknown order status")
			return
		}
		filter.Status = &status
	}

	orders, meta, err := s.svc.List(filter)
	if err != nil {
		status, resp := MapError(err)
		s.writeJSON(w, status, resp)
		return
	}

	s.writeJSON(w, http.StatusOK, toListResponse(orders, meta))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	got, err := s.svc.Get(id)
	if err != nil {
		status, resp := MapError(err)
		s.writeJSON(w, status, resp)
		return
	}

	s.writeJSON(w, http.StatusOK, toOrderResponse(got))
}

func (s *Server) handleChangeStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req changeStatusRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	updated, err := s.svc.ChangeStatus(id, domain.OrderStatus(strings.ToUpper(strings.TrimSpace(req.Status))))
	if err != nil {
		status, resp := MapError(err)
		s.writeJSON(w, status, resp)
		return
	}

	s.writeJSON(w, http.StatusOK, toOrderResponse(updated))
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	events, err := s.svc.Timeline(id)
	if err != nil {
		status, resp := MapError(err)
		s.writeJSON(w, status, resp)
		return
	}

	s.writeJSON(w, http.StatusOK, toTimelineResponse(id, events))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Warn("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, errorResponse{Code: code, Message: message})
}

func hashRequest(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte("\n"))
	h.Write([]byte(path))
	h.Write([]byte("\n"))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
