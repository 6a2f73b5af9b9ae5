package order

import (
	"encoding/json"
	"time"

	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/food-order-service/internal/money"
)

type OrderStatus string

const (
	StatusCreated   OrderStatus = "CREATED"
	StatusConfirmed OrderStatus = "CONFIRMED"
	StatusCancelled OrderStatus = "CANCELLED"
)

func (s OrderStatus) String() string {
	return string(s)
}

type PaymentStatus string

const (
	PaymentPending       PaymentStatus = "PENDING"
	PaymentSuccess       PaymentStatus = "SUCCESS"
	PaymentFailed        PaymentStatus = "FAILED"
	PaymentNotApplicable PaymentStatus = "NOT_APPLICABLE"
)

func (s PaymentStatus) String() string {
	return string(s)
}

// PaymentMethodCOD requires no gateway call; every other method does.
const PaymentMethodCOD = "COD"

// OrderItem is one line of an order. UnitPrice is snapshotted from the menu
// at order time and never changes afterwards, even if the catalog price does.
type OrderItem struct {
	ID        uuid.UUID `json:"order_item_id" db:"order_item_id"`
	OrderID   uuid.UUID `json:"order_id" db:"order_id"`
	ItemID    string    `json:"item_id" db:"item_id"`
	ItemName  string    `json:"item_name" db:"item_name"`
	UnitPrice float64   `json:"unit_price" db:"unit_price"`
	Quantity  int       `json:"quantity" db:"quantity"`
	LineTotal float64   `json:"line_total" db:"line_total"`
}

type Order struct {
	ID               uuid.UUID     `json:"order_id" db:"order_id"`
	CustomerID       string        `json:"customer_id" db:"customer_id"`
	RestaurantID     string        `json:"restaurant_id" db:"restaurant_id"`
	AddressID        string        `json:"address_id" db:"address_id"`
	Status           OrderStatus   `json:"order_status" db:"order_status"`
	PaymentStatus    PaymentStatus `json:"payment_status" db:"payment_status"`
	PaymentMethod    string        `json:"payment_method" db:"payment_method"`
	Subtotal         float64       `json:"subtotal" db:"subtotal"`
	Tax              float64       `json:"tax" db:"tax"`
	DeliveryFee      float64       `json:"delivery_fee" db:"delivery_fee"`
	Total            float64       `json:"total" db:"total"`
	Note             string        `json:"note,omitempty" db:"note"`
	Items            []OrderItem   `json:"items" db:"-"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`
}

// OutboxEvent is a domain event row appended in the same transaction as the
// order mutation it describes. Publishing rows with published = false is an
// external collaborator's job; this service only ever writes them.
type OutboxEvent struct {
	ID            uuid.UUID       `json:"event_id" db:"event_id"`
	AggregateType string          `json:"aggregate_type" db:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id" db:"aggregate_id"`
	EventType     string          `json:"event_type" db:"event_type"`
	Payload       json.RawMessage `json:"payload" db:"payload"`
	Published     bool            `json:"published" db:"published"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// CreateOrderItemInput is one requested line of a new order.
type CreateOrderItemInput struct {
	ItemID   string
	Quantity int
}

// CreateOrderInput is the orchestrator's view of a create-order request,
// already shape-checked by the transport layer.
type CreateOrderInput struct {
	CustomerID       string
	RestaurantID     string
	AddressID        string
	Items            []CreateOrderItemInput
	ClientTotals     money.Totals
	PaymentMethod    string
	PaymentReference string
	Note             string
}

// CreateOrderResult is a terminal outcome of the create-order saga: either
// the 201 success or the recorded PAYMENT_FAILED conflict. Body is served to
// the caller as-is and is byte-identical on cached replays.
type CreateOrderResult struct {
	StatusCode int
	Body       json.RawMessage
}

// OrderPage is one page of a cursor-paginated order listing.
type OrderPage struct {
	Orders     []Order `json:"orders"`
	NextCursor *string `json:"nextCursor"`
}
