// Package downstream holds the typed clients for the external services the
// order flow depends on: menu/catalog, customer/address, payment and
// delivery-assignment. All of them go through the resilient HTTP client.
package downstream

import (
	"context"
	"fmt"

	"github.com/vasiliy-maslov/food-order-service/internal/httpclient"
)

const idempotencyKeyHeader = "Idempotency-Key"

// Restaurant is the menu service's view of a restaurant.
type Restaurant struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	City   string `json:"city"`
	IsOpen bool   `json:"isOpen"`
}

// MenuItem is one entry of a restaurant's menu.
type MenuItem struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Available bool    `json:"available"`
}

// Address is the customer service's view of a delivery address.
type Address struct {
	ID   string `json:"id"`
	City string `json:"city"`
}

// ChargeRequest is the payload for a payment capture.
type ChargeRequest struct {
	OrderID   string  `json:"orderId"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Method    string  `json:"method"`
	Reference string  `json:"reference,omitempty"`
}

// AssignRequest is the payload for a delivery assignment.
type AssignRequest struct {
	OrderID      string `json:"orderId"`
	RestaurantID string `json:"restaurantId"`
	AddressID    string `json:"addressId"`
}

type MenuService interface {
	GetRestaurant(ctx context.Context, id string) (*Restaurant, error)
	GetMenu(ctx context.Context, restaurantID string) ([]MenuItem, error)
}

type CustomerService interface {
	GetAddress(ctx context.Context, id string) (*Address, error)
}

type PaymentService interface {
	Charge(ctx context.Context, idempotencyKey string, req ChargeRequest) error
}

type DeliveryService interface {
	Assign(ctx context.Context, idempotencyKey string, req AssignRequest) error
}

type menuService struct {
	base   string
	client *httpclient.Client
}

func NewMenuService(base string, client *httpclient.Client) MenuService {
	return &menuService{base: base, client: client}
}

func (s *menuService) GetRestaurant(ctx context.Context, id string) (*Restaurant, error) {
	var r Restaurant
	if err := s.client.GetJSON(ctx, fmt.Sprintf("%s/restaurants/%s", s.base, id), &r); err != nil {
		return nil, fmt.Errorf("menu service: failed to fetch restaurant %s: %w", id, err)
	}
	return &r, nil
}

func (s *menuService) GetMenu(ctx context.Context, restaurantID string) ([]MenuItem, error) {
	var items []MenuItem
	if err := s.client.GetJSON(ctx, fmt.Sprintf("%s/restaurants/%s/menu", s.base, restaurantID), &items); err != nil {
		return nil, fmt.Errorf("menu service: failed to fetch menu for restaurant %s: %w", restaurantID, err)
	}
	return items, nil
}

type customerService struct {
	base   string
	client *httpclient.Client
}

func NewCustomerService(base string, client *httpclient.Client) CustomerService {
	return &customerService{base: base, client: client}
}

func (s *customerService) GetAddress(ctx context.Context, id string) (*Address, error) {
	var a Address
	if err := s.client.GetJSON(ctx, fmt.Sprintf("%s/addresses/%s", s.base, id), &a); err != nil {
		return nil, fmt.Errorf("customer service: failed to fetch address %s: %w", id, err)
	}
	return &a, nil
}

type paymentService struct {
	base   string
	client *httpclient.Client
}

func NewPaymentService(base string, client *httpclient.Client) PaymentService {
	return &paymentService{base: base, client: client}
}

func (s *paymentService) Charge(ctx context.Context, idempotencyKey string, req ChargeRequest) error {
	headers := map[string]string{idempotencyKeyHeader: idempotencyKey}
	if err := s.client.PostJSON(ctx, s.base+"/payments/charge", req, headers, nil); err != nil {
		return fmt.Errorf("payment service: charge failed for order %s: %w", req.OrderID, err)
	}
	return nil
}

type deliveryService struct {
	base   string
	client *httpclient.Client
}

func NewDeliveryService(base string, client *httpclient.Client) DeliveryService {
	return &deliveryService{base: base, client: client}
}

func (s *deliveryService) Assign(ctx context.Context, idempotencyKey string, req AssignRequest) error {
	headers := map[string]string{idempotencyKeyHeader: idempotencyKey}
	if err := s.client.PostJSON(ctx, s.base+"/deliveries/assign", req, headers, nil); err != nil {
		return fmt.Errorf("delivery service: assignment failed for order %s: %w", req.OrderID, err)
	}
	return nil
}
