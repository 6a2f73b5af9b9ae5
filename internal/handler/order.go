package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/food-order-service/internal/money"
	"github.com/vasiliy-maslov/food-order-service/internal/order"
)

const maxBodyBytes = 1 << 20

type orderItemRequest struct {
	ItemID   string `json:"itemId" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,min=1,max=5"`
}

type clientTotalsRequest struct {
	Subtotal    float64 `json:"subtotal" validate:"min=0"`
	Tax         float64 `json:"tax" validate:"min=0"`
	DeliveryFee float64 `json:"deliveryFee" validate:"min=0"`
	Total       float64 `json:"total" validate:"min=0"`
}

type paymentRequest struct {
	Method    string `json:"method" validate:"required,oneof=COD CARD UPI WALLET"`
	Reference string `json:"reference,omitempty"`
}

type createOrderRequest struct {
	CustomerID   string              `json:"customerId" validate:"required"`
	RestaurantID string              `json:"restaurantId" validate:"required"`
	AddressID    string              `json:"addressId" validate:"required"`
	Items        []orderItemRequest  `json:"items" validate:"required,min=1,max=20,dive"`
	ClientTotals clientTotalsRequest `json:"clientTotals" validate:"required"`
	Payment      paymentRequest      `json:"payment" validate:"required"`
	Note         string              `json:"note,omitempty"`
}

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	svc      order.Service
	validate *validator.Validate
}

func NewOrderHandler(svc order.Service) *OrderHandler {
	return &OrderHandler{
		svc:      svc,
		validate: validator.New(),
	}
}

func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Post("/v1/orders", h.CreateOrder)
	router.Get("/v1/orders", h.ListOrders)
	router.Get("/v1/orders/{orderId}", h.GetOrderByID)
	router.Delete("/v1/orders/{orderId}", h.CancelOrder)
}

// CreateOrder handles the creation of a new order. The Idempotency-Key
// header is mandatory and is rejected here, before the orchestrator runs.
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	idempotencyKey := r.Header.Get("Idempotency-Key")
	if idempotencyKey == "" {
		respondWithError(w, http.StatusBadRequest, "MISSING_IDEMPOTENCY_KEY", "Idempotency-Key header required")
		return
	}

	rawBody, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "INVALID_BODY", "failed to read request body")
		return
	}

	var req createOrderRequest
	if err := json.Unmarshal(rawBody, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return
	}

	in := &order.CreateOrderInput{
		CustomerID:   req.CustomerID,
		RestaurantID: req.RestaurantID,
		AddressID:    req.AddressID,
		ClientTotals: money.Totals{
			Subtotal:    req.ClientTotals.Subtotal,
			Tax:         req.ClientTotals.Tax,
			DeliveryFee: req.ClientTotals.DeliveryFee,
			Total:       req.ClientTotals.Total,
		},
		PaymentMethod:    req.Payment.Method,
		PaymentReference: req.Payment.Reference,
		Note:             req.Note,
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, order.CreateOrderItemInput{ItemID: item.ItemID, Quantity: item.Quantity})
	}

	result, err := h.svc.CreateOrder(r.Context(), idempotencyKey, rawBody, in)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	// Stored and fresh outcomes are served the same way, byte for byte.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.StatusCode)
	if _, err := w.Write(result.Body); err != nil {
		log.Error().Err(err).Msg("handler: failed to write create-order response")
	}
}

// GetOrderByID handles retrieving an order with its items.
func (h *OrderHandler) GetOrderByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	o, err := h.svc.GetOrderByID(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, o)
}

// ListOrders handles the cursor-paginated listing.
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	f := order.ListFilter{
		CustomerID:   r.URL.Query().Get("customerId"),
		RestaurantID: r.URL.Query().Get("restaurantId"),
		Status:       order.OrderStatus(r.URL.Query().Get("status")),
		Limit:        20,
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 100 {
			respondWithError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be an integer between 1 and 100")
			return
		}
		f.Limit = limit
	}

	if raw := r.URL.Query().Get("cursor"); raw != "" {
		cursor, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "INVALID_CURSOR", "cursor must be an RFC 3339 timestamp")
			return
		}
		f.Cursor = &cursor
	}

	page, err := h.svc.ListOrders(r.Context(), f)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, page)
}

// CancelOrder handles cancellation; only CREATED orders can be cancelled.
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	result, err := h.svc.CancelOrder(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

func parseOrderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.FromString(chi.URLParam(r, "orderId"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "INVALID_ORDER_ID", "order id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondWithError(w http.ResponseWriter, status int, code, message string) {
	respondWithJSON(w, status, errorResponse{Code: code, Message: message})
}

func respondWithServiceError(w http.ResponseWriter, err error) {
	var bizErr *order.BusinessError
	switch {
	case errors.As(err, &bizErr):
		respondWithError(w, bizErr.Status, bizErr.Code, bizErr.Message)
	case errors.Is(err, order.ErrOrderNotFound):
		respondWithError(w, http.StatusNotFound, "ORDER_NOT_FOUND", "order not found")
	default:
		log.Error().Err(err).Msg("handler: unexpected service error")
		respondWithError(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
	}
}

func respondWithJSON(w http.ResponseWriter, status int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("handler: failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"code":"INTERNAL","message":"failed to marshal response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("handler: failed to write JSON response")
	}
}
