package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/food-order-service/internal/downstream"
	"github.com/vasiliy-maslov/food-order-service/internal/idempotency"
	"github.com/vasiliy-maslov/food-order-service/internal/money"
)

const (
	maxOrderItems   = 20
	maxItemQuantity = 5
	orderCurrency   = "INR"

	scopePayment  = "payment"
	scopeDelivery = "delivery"

	aggregateOrder = "order"

	EventOrderCreated            = "order.created"
	EventOrderCancelled          = "order.cancelled"
	EventDeliveryAssignmentFault = "order.delivery_assignment_failed"
)

var paymentMethods = map[string]bool{
	PaymentMethodCOD: true,
	"CARD":           true,
	"UPI":            true,
	"WALLET":         true,
}

// Metrics is the collaborator the orchestrator reports named counters and
// latencies to. The prometheus-backed implementation lives in
// internal/metrics.
type Metrics interface {
	OrderPlaced()
	PaymentFailed()
	DeliveryAssigned(latency time.Duration)
	DeliveryAssignFailed()
}

type Service interface {
	// CreateOrder runs the full order-creation saga for one idempotency key.
	// rawBody is the untouched request body used for fingerprinting.
	CreateOrder(ctx context.Context, idempotencyKey string, rawBody []byte, in *CreateOrderInput) (*CreateOrderResult, error)
	GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error)
	ListOrders(ctx context.Context, f ListFilter) (*OrderPage, error)
	CancelOrder(ctx context.Context, id uuid.UUID) (*CancelOrderResult, error)
}

// CancelOrderResult is the response of a cancel operation.
type CancelOrderResult struct {
	OrderID uuid.UUID   `json:"orderId"`
	Status  OrderStatus `json:"status"`
}

// Deps collects the collaborators of the orchestrator.
type Deps struct {
	Repo        Repository
	Ledger      idempotency.Ledger
	Menu        downstream.MenuService
	Customers   downstream.CustomerService
	Payments    downstream.PaymentService
	Deliveries  downstream.DeliveryService
	Metrics     Metrics
	DeliveryFee float64
}

type service struct {
	repo        Repository
	ledger      idempotency.Ledger
	menu        downstream.MenuService
	customers   downstream.CustomerService
	payments    downstream.PaymentService
	deliveries  downstream.DeliveryService
	metrics     Metrics
	deliveryFee float64
}

func NewService(d Deps) Service {
	return &service{
		repo:        d.Repo,
		ledger:      d.Ledger,
		menu:        d.Menu,
		customers:   d.Customers,
		payments:    d.Payments,
		deliveries:  d.Deliveries,
		metrics:     d.Metrics,
		deliveryFee: d.DeliveryFee,
	}
}

type createOrderResponse struct {
	OrderID       uuid.UUID     `json:"orderId"`
	Status        OrderStatus   `json:"status"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	Total         float64       `json:"total"`
}

type paymentFailedResponse struct {
	OrderID uuid.UUID `json:"orderId"`
	Status  string    `json:"status"`
}

func (s *service) CreateOrder(ctx context.Context, idempotencyKey string, rawBody []byte, in *CreateOrderInput) (*CreateOrderResult, error) {
	fingerprint, err := idempotency.Fingerprint(rawBody)
	if err != nil {
		return nil, errInvalidRequest("request body is not valid json")
	}

	// Replays are answered from the ledger without re-executing anything.
	existing, err := s.ledger.Lookup(ctx, idempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("service: idempotency lookup failed: %w", err)
	}
	if existing != nil {
		if existing.RequestHash != fingerprint {
			log.Warn().Str("idempotency_key", idempotencyKey).Msg("service: idempotency key reused with a different body")
			return nil, errIdempotencyMismatch
		}
		return &CreateOrderResult{StatusCode: existing.StatusCode, Body: existing.ResponseBody}, nil
	}

	// Hard business bounds, checked before any network call is made.
	if err := validateInput(in); err != nil {
		return nil, err
	}

	restaurant, err := s.menu.GetRestaurant(ctx, in.RestaurantID)
	if err != nil {
		log.Error().Err(err).Str("restaurant_id", in.RestaurantID).Msg("service: failed to fetch restaurant")
		return nil, errDownstream("menu")
	}
	if !restaurant.IsOpen {
		return nil, errRestaurantClosed
	}

	menuItems, err := s.menu.GetMenu(ctx, in.RestaurantID)
	if err != nil {
		log.Error().Err(err).Str("restaurant_id", in.RestaurantID).Msg("service: failed to fetch menu")
		return nil, errDownstream("menu")
	}
	itemsByID := make(map[string]downstream.MenuItem, len(menuItems))
	for _, mi := range menuItems {
		itemsByID[mi.ID] = mi
	}
	for _, reqItem := range in.Items {
		mi, ok := itemsByID[reqItem.ItemID]
		if !ok || !mi.Available {
			return nil, errItemUnavailable(reqItem.ItemID)
		}
	}

	address, err := s.customers.GetAddress(ctx, in.AddressID)
	if err != nil {
		log.Error().Err(err).Str("address_id", in.AddressID).Msg("service: failed to fetch address")
		return nil, errDownstream("customer")
	}
	if address.City != restaurant.City {
		return nil, errCityMismatch
	}

	// Totals are recomputed from catalog prices; client-declared prices are
	// never trusted.
	var subtotal float64
	for _, reqItem := range in.Items {
		subtotal += itemsByID[reqItem.ItemID].Price * float64(reqItem.Quantity)
	}
	totals := money.Compute(subtotal, s.deliveryFee)
	if !totals.Equal(in.ClientTotals) {
		return nil, errTotalMismatch
	}

	o := &Order{
		CustomerID:    in.CustomerID,
		RestaurantID:  in.RestaurantID,
		AddressID:     in.AddressID,
		Status:        StatusCreated,
		PaymentStatus: PaymentPending,
		PaymentMethod: in.PaymentMethod,
		Subtotal:      totals.Subtotal,
		Tax:           totals.Tax,
		DeliveryFee:   totals.DeliveryFee,
		Total:         totals.Total,
		Note:          in.Note,
	}
	if in.PaymentMethod == PaymentMethodCOD {
		// No gateway call for cash on delivery.
		o.Status = StatusConfirmed
		o.PaymentStatus = PaymentNotApplicable
	}
	for _, reqItem := range in.Items {
		mi := itemsByID[reqItem.ItemID]
		o.Items = append(o.Items, OrderItem{
			ItemID:    reqItem.ItemID,
			ItemName:  mi.Name,
			UnitPrice: mi.Price,
			Quantity:  reqItem.Quantity,
			LineTotal: money.Round2(mi.Price * float64(reqItem.Quantity)),
		})
	}

	if err := s.repo.CreateOrder(ctx, o, s.orderEvent(o, EventOrderCreated)); err != nil {
		log.Error().Err(err).Msg("service: failed to persist order")
		return nil, fmt.Errorf("service: failed to persist order: %w", err)
	}

	if in.PaymentMethod != PaymentMethodCOD {
		result, err := s.capturePayment(ctx, idempotencyKey, fingerprint, o, in)
		if result != nil || err != nil {
			return result, err
		}
		s.assignDelivery(ctx, idempotencyKey, o, in)
	}

	body, err := json.Marshal(createOrderResponse{
		OrderID:       o.ID,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		Total:         o.Total,
	})
	if err != nil {
		return nil, fmt.Errorf("service: failed to marshal response: %w", err)
	}

	result, err := s.finalize(ctx, idempotencyKey, fingerprint, body, http.StatusCreated)
	if err != nil {
		return nil, err
	}

	s.metrics.OrderPlaced()
	log.Info().Stringer("order_id", o.ID).Stringer("status", o.Status).Stringer("payment_status", o.PaymentStatus).Msg("service: order created")

	return result, nil
}

// capturePayment runs the payment step. A nil, nil return means payment
// succeeded and the saga continues; a non-nil result is the terminal
// PAYMENT_FAILED outcome. The order row is already committed, so a failed
// charge leaves a visible order with payment_status FAILED -- a compensating
// outcome, never a rollback.
func (s *service) capturePayment(ctx context.Context, idempotencyKey, fingerprint string, o *Order, in *CreateOrderInput) (*CreateOrderResult, error) {
	paymentKey := idempotency.DeriveScopedKey(idempotencyKey, scopePayment)

	err := s.payments.Charge(ctx, paymentKey, downstream.ChargeRequest{
		OrderID:   o.ID.String(),
		Amount:    o.Total,
		Currency:  orderCurrency,
		Method:    in.PaymentMethod,
		Reference: in.PaymentReference,
	})
	if err == nil {
		o.Status = StatusConfirmed
		o.PaymentStatus = PaymentSuccess
		if err := s.repo.UpdateStatuses(ctx, o.ID, o.Status, o.PaymentStatus, nil); err != nil {
			return nil, fmt.Errorf("service: failed to record payment success for order %s: %w", o.ID, err)
		}
		return nil, nil
	}

	log.Error().Err(err).Stringer("order_id", o.ID).Msg("service: payment failed")
	s.metrics.PaymentFailed()

	o.PaymentStatus = PaymentFailed
	if updErr := s.repo.UpdateStatuses(ctx, o.ID, o.Status, o.PaymentStatus, nil); updErr != nil {
		return nil, fmt.Errorf("service: failed to record payment failure for order %s: %w", o.ID, updErr)
	}

	body, marshalErr := json.Marshal(paymentFailedResponse{OrderID: o.ID, Status: "PAYMENT_FAILED"})
	if marshalErr != nil {
		return nil, fmt.Errorf("service: failed to marshal payment failure response: %w", marshalErr)
	}

	return s.finalize(ctx, idempotencyKey, fingerprint, body, http.StatusConflict)
}

// assignDelivery runs the delivery step after a successful payment. A failed
// assignment is not compensated: the order stays CONFIRMED and paid, the
// failure is counted and logged, and an outbox event is appended so an
// out-of-band worker can re-drive the assignment.
func (s *service) assignDelivery(ctx context.Context, idempotencyKey string, o *Order, in *CreateOrderInput) {
	deliveryKey := idempotency.DeriveScopedKey(idempotencyKey, scopeDelivery)

	start := time.Now()
	err := s.deliveries.Assign(ctx, deliveryKey, downstream.AssignRequest{
		OrderID:      o.ID.String(),
		RestaurantID: in.RestaurantID,
		AddressID:    in.AddressID,
	})
	if err == nil {
		s.metrics.DeliveryAssigned(time.Since(start))
		return
	}

	log.Error().Err(err).Stringer("order_id", o.ID).Msg("service: delivery assignment failed, order stays confirmed")
	s.metrics.DeliveryAssignFailed()

	if updErr := s.repo.UpdateStatuses(ctx, o.ID, o.Status, o.PaymentStatus, s.orderEvent(o, EventDeliveryAssignmentFault)); updErr != nil {
		log.Error().Err(updErr).Stringer("order_id", o.ID).Msg("service: failed to record delivery assignment failure")
	}
}

// finalize writes the terminal outcome to the ledger. A commit race means a
// concurrent request with the same key already won; the stored outcome is
// served instead so both callers see identical responses.
func (s *service) finalize(ctx context.Context, key, fingerprint string, body json.RawMessage, statusCode int) (*CreateOrderResult, error) {
	rec := &idempotency.Record{
		Key:          key,
		RequestHash:  fingerprint,
		ResponseBody: body,
		StatusCode:   statusCode,
	}

	err := s.ledger.Commit(ctx, rec)
	if err == nil {
		return &CreateOrderResult{StatusCode: statusCode, Body: body}, nil
	}
	if !errors.Is(err, idempotency.ErrKeyConflict) {
		return nil, fmt.Errorf("service: failed to commit idempotency record: %w", err)
	}

	stored, lookupErr := s.ledger.Lookup(ctx, key)
	if lookupErr != nil || stored == nil {
		return nil, fmt.Errorf("service: lost idempotency commit race and lookup failed: %w", lookupErr)
	}
	return &CreateOrderResult{StatusCode: stored.StatusCode, Body: stored.ResponseBody}, nil
}

func (s *service) orderEvent(o *Order, eventType string) *OutboxEvent {
	payload, err := json.Marshal(map[string]any{
		"orderId":       o.ID,
		"status":        o.Status,
		"paymentStatus": o.PaymentStatus,
		"total":         o.Total,
	})
	if err != nil {
		log.Error().Err(err).Stringer("order_id", o.ID).Msg("service: failed to marshal outbox payload")
		return nil
	}
	return &OutboxEvent{
		AggregateType: aggregateOrder,
		AggregateID:   o.ID.String(),
		EventType:     eventType,
		Payload:       payload,
	}
}

func validateInput(in *CreateOrderInput) error {
	if len(in.Items) == 0 {
		return errInvalidRequest("order must contain at least one item")
	}
	if len(in.Items) > maxOrderItems {
		return errInvalidRequest(fmt.Sprintf("order cannot contain more than %d items", maxOrderItems))
	}
	for _, item := range in.Items {
		if item.ItemID == "" {
			return errInvalidRequest("item id is required")
		}
		if item.Quantity < 1 || item.Quantity > maxItemQuantity {
			return errInvalidRequest(fmt.Sprintf("quantity for item %s must be between 1 and %d", item.ItemID, maxItemQuantity))
		}
	}
	if !paymentMethods[in.PaymentMethod] {
		return errInvalidRequest(fmt.Sprintf("unsupported payment method %q", in.PaymentMethod))
	}
	return nil
}

func (s *service) GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to fetch order")
		return nil, fmt.Errorf("service: failed to fetch order: %w", err)
	}
	return o, nil
}

func (s *service) ListOrders(ctx context.Context, f ListFilter) (*OrderPage, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}

	orders, err := s.repo.ListOrders(ctx, f)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list orders")
		return nil, fmt.Errorf("service: failed to list orders: %w", err)
	}

	page := &OrderPage{Orders: orders}
	if len(orders) == f.Limit {
		cursor := orders[len(orders)-1].CreatedAt.Format(time.RFC3339Nano)
		page.NextCursor = &cursor
	}
	return page, nil
}

func (s *service) CancelOrder(ctx context.Context, id uuid.UUID) (*CancelOrderResult, error) {
	o, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("service: failed to fetch order for cancel: %w", err)
	}

	if o.Status != StatusCreated {
		return nil, errCannotCancel
	}

	o.Status = StatusCancelled
	if err := s.repo.UpdateStatuses(ctx, id, o.Status, o.PaymentStatus, s.orderEvent(o, EventOrderCancelled)); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to cancel order")
		return nil, fmt.Errorf("service: failed to cancel order: %w", err)
	}

	log.Info().Stringer("order_id", id).Msg("service: order cancelled")
	return &CancelOrderResult{OrderID: id, Status: StatusCancelled}, nil
}
