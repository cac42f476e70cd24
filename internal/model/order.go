package model

import (
	"fmt"
	"time"
)

// OrderStatus is the lifecycle state of a placed order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCanceled   OrderStatus = "canceled"
)

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCanceled:
		return true
	}
	return false
}

// PaymentMethod is how the buyer pays. Payment processing itself happens
// on the backend; the client only names the method.
type PaymentMethod string

const (
	PaymentPayPal         PaymentMethod = "paypal"
	PaymentCashOnDelivery PaymentMethod = "cod"
)

// Valid reports whether m is a method the backend accepts.
func (m PaymentMethod) Valid() bool {
	return m == PaymentPayPal || m == PaymentCashOnDelivery
}

// OrderItem is one line of a placed order.
type OrderItem struct {
	ID       OrderID `json:"id"`
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
	Price    Price   `json:"price"`
}

// ShippingAddress is the delivery destination for an order.
type ShippingAddress struct {
	FirstName string `json:"shipping_first_name"`
	LastName  string `json:"shipping_last_name"`
	Address   string `json:"shipping_address"`
	City      string `json:"shipping_city"`
	State     string `json:"shipping_state"`
	Zip       string `json:"shipping_zip"`
	Phone     string `json:"shipping_phone"`
}

// OrderID identifies a placed order. Like ProductRef it accepts both string
// and numeric JSON.
type OrderID string

// UnmarshalJSON accepts both "12" and 12.
func (id *OrderID) UnmarshalJSON(data []byte) error {
	var ref ProductRef
	if err := ref.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("order id: %w", err)
	}
	*id = OrderID(ref)
	return nil
}

// Order is a placed order as returned by the order history endpoints.
type Order struct {
	ID            OrderID       `json:"id"`
	TotalAmount   Price         `json:"total_amount"`
	Status        OrderStatus   `json:"status"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	ShippingAddress
	Items     []OrderItem `json:"items"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// OrderLine is one requested line of a new order.
type OrderLine struct {
	ProductID ProductRef `json:"product_id"`
	Quantity  int        `json:"quantity"`
	Price     Price      `json:"price"`
}

// OrderCreate is the request body for placing an order.
type OrderCreate struct {
	Items         []OrderLine   `json:"items"`
	TotalAmount   Price         `json:"total_amount"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	ShippingAddress
}

// Address is a saved buyer address.
type Address struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	Zip       string `json:"zip"`
	Phone     string `json:"phone"`
	IsDefault bool   `json:"is_default"`
}

// ToShipping copies a saved address into order shipping fields.
func (a Address) ToShipping() ShippingAddress {
	return ShippingAddress{
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Address:   a.Address,
		City:      a.City,
		State:     a.State,
		Zip:       a.Zip,
		Phone:     a.Phone,
	}
}
