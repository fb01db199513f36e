// Package mmodel carries the domain aggregate types shared by every service:
// orders, payments, captures, inventory reservations, sagas, outbox rows and
// the event envelope that travels over the bus. Status enums are small
// integers at rest (mirroring the teacher's mmodel convention of ordinal
// DB-stable enums) with String() methods for logs and JSON.
package mmodel

import (
	"encoding/json"
	"time"
)

// OrderStatus is the closed set of states an Order aggregate may occupy.
type OrderStatus int16

const (
	OrderStatusPending OrderStatus = iota
	OrderStatusAwaitingPayment
	OrderStatusReserved
	OrderStatusPaid
	OrderStatusRejected
	OrderStatusCancelled
)

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusPending:
		return "PENDING"
	case OrderStatusAwaitingPayment:
		return "AWAITING_PAYMENT"
	case OrderStatusReserved:
		return "RESERVED"
	case OrderStatusPaid:
		return "PAID"
	case OrderStatusRejected:
		return "REJECTED"
	case OrderStatusCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// PaymentStatus is the closed set of states a Payment authorization may occupy.
type PaymentStatus int16

const (
	PaymentStatusPending PaymentStatus = iota
	PaymentStatusAuthorized
	PaymentStatusFailed
	PaymentStatusCaptured
	PaymentStatusVoided
)

func (s PaymentStatus) String() string {
	switch s {
	case PaymentStatusPending:
		return "PENDING"
	case PaymentStatusAuthorized:
		return "AUTHORIZED"
	case PaymentStatusFailed:
		return "FAILED"
	case PaymentStatusCaptured:
		return "CAPTURED"
	case PaymentStatusVoided:
		return "VOIDED"
	default:
		return "UNKNOWN"
	}
}

// CaptureStatus is the closed set of states a Capture may occupy.
type CaptureStatus int16

const (
	CaptureStatusPending CaptureStatus = iota
	CaptureStatusCaptured
	CaptureStatusFailed
	CaptureStatusVoided
)

func (s CaptureStatus) String() string {
	switch s {
	case CaptureStatusPending:
		return "PENDING"
	case CaptureStatusCaptured:
		return "CAPTURED"
	case CaptureStatusFailed:
		return "FAILED"
	case CaptureStatusVoided:
		return "VOIDED"
	default:
		return "UNKNOWN"
	}
}

// ReservationStatus is the closed set of states an inventory Reservation may occupy.
type ReservationStatus int16

const (
	ReservationStatusPending ReservationStatus = iota
	ReservationStatusReserved
	ReservationStatusInsufficient
	ReservationStatusReleased
)

func (s ReservationStatus) String() string {
	switch s {
	case ReservationStatusPending:
		return "PENDING"
	case ReservationStatusReserved:
		return "RESERVED"
	case ReservationStatusInsufficient:
		return "INSUFFICIENT"
	case ReservationStatusReleased:
		return "RELEASED"
	default:
		return "UNKNOWN"
	}
}

// SagaState is the closed set of states the saga coordinator may occupy; see
// the transition table this type enumerates: Pending -> AwaitingPayment ->
// Reserved -> Paid -> Completed, with Failed reachable from every
// non-terminal state via compensation.
type SagaState int16

const (
	SagaStatePending SagaState = iota
	SagaStateAwaitingPayment
	SagaStateReserved
	SagaStatePaid
	SagaStateCompleted
	SagaStateFailed
)

func (s SagaState) String() string {
	switch s {
	case SagaStatePending:
		return "PENDING"
	case SagaStateAwaitingPayment:
		return "AWAITING_PAYMENT"
	case SagaStateReserved:
		return "RESERVED"
	case SagaStatePaid:
		return "PAID"
	case SagaStateCompleted:
		return "COMPLETED"
	case SagaStateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the state absorbs further events.
func (s SagaState) Terminal() bool {
	return s == SagaStateCompleted || s == SagaStateFailed
}

// Canonical event-type discriminants carried in the event envelope and used
// as the tagged-variant dispatch key at each consumer.
const (
	EventOrderCreated       = "ORDER_CREATED"
	EventPaymentAuthorized  = "PAYMENT_AUTHORIZED"
	EventPaymentFailed      = "PAYMENT_FAILED"
	EventInventoryReserved  = "INVENTORY_RESERVED"
	EventInventoryFailed    = "INVENTORY_FAILED"
	EventPaymentCaptured    = "PAYMENT_CAPTURED"
	EventPaymentVoid        = "PAYMENT_VOID"
	EventInventoryRelease   = "INVENTORY_RELEASE"
	EventOrderCompleted     = "ORDER_COMPLETED"
	EventOrderFailed        = "ORDER_FAILED"
	EventShippingScheduled  = "SHIPPING_SCHEDULED"
	EventShippingFailed     = "SHIPPING_FAILED"
	CommandOrderCreate      = "OrderCreate"
)

// Bus topics, pinned per the external-interfaces contract.
const (
	TopicOrderCommandCreate = "order.command.create.v1"
	TopicOrderEvents        = "order.events.v1"
	TopicPaymentEvents      = "payment.events.v1"
	TopicInventoryEvents    = "inventory.events.v1"
	TopicShippingEvents     = "shipping.events.v1"
)

// SagaPayload is the wire contract every downstream service forwards along
// the saga unchanged (aside from the fields it owns): enough of the order
// to authorize a payment, reserve inventory or schedule shipping without a
// synchronous read back to the order aggregate.
type SagaPayload struct {
	OrderID      string      `json:"orderId"`
	CustomerID   string      `json:"customerId"`
	CurrencyCode string      `json:"currencyCode"`
	AmountMinor  int64       `json:"amountMinor"`
	Lines        []OrderLine `json:"lines,omitempty"`
	ProviderRef  string      `json:"providerRef,omitempty"`
}

// Saga is the coordinator row: one per order lifecycle, mutated only by the
// service owning the current step.
type Saga struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenantId"`
	UserID        string    `json:"userId"`
	OrderID       *string   `json:"orderId,omitempty"`
	State         SagaState `json:"state"`
	LastEventType string    `json:"lastEventType"`
	LastEventTS   time.Time `json:"lastEventTs"`
	Attempts      int32     `json:"attempts"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// OrderLine is one requested SKU/quantity/price triple on an order.
type OrderLine struct {
	SKU      string `json:"sku" validate:"required"`
	Qty      int32  `json:"qty" validate:"required,gt=0"`
	PriceMin int64  `json:"priceMinor" validate:"required,gte=0"`
}

// Order is the gateway/order-service aggregate.
type Order struct {
	ID               string      `json:"id"`
	TenantID         string      `json:"tenantId"`
	SagaID           string      `json:"sagaId"`
	CustomerID       string      `json:"customerId"`
	Status           OrderStatus `json:"status"`
	CurrencyCode     string      `json:"currencyCode"`
	TotalAmountMinor int64       `json:"totalAmountMinor"`
	Lines            []OrderLine `json:"lines"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

// Payment is the payment-service aggregate for a single order's authorization.
type Payment struct {
	ID          string        `json:"id"`
	TenantID    string        `json:"tenantId"`
	OrderID     string        `json:"orderId"`
	SagaID      string        `json:"sagaId"`
	Status      PaymentStatus `json:"status"`
	AmountMinor int64         `json:"amountMinor"`
	ProviderRef string        `json:"providerRef"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// Capture is the payment-service aggregate for a capture against a Payment.
type Capture struct {
	ID          string        `json:"id"`
	TenantID    string        `json:"tenantId"`
	PaymentID   string        `json:"paymentId"`
	Status      CaptureStatus `json:"status"`
	AmountMinor int64         `json:"amountMinor"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// Reservation is the inventory-service aggregate for one SKU hold.
type Reservation struct {
	ID        string            `json:"id"`
	TenantID  string            `json:"tenantId"`
	OrderID   string            `json:"orderId"`
	SagaID    string            `json:"sagaId"`
	SKU       string            `json:"sku"`
	Qty       int32             `json:"qty"`
	Status    ReservationStatus `json:"status"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// ShipmentStatus is the closed set of states a Shipment record may occupy.
type ShipmentStatus int16

const (
	ShipmentStatusScheduled ShipmentStatus = iota
	ShipmentStatusFailed
)

func (s ShipmentStatus) String() string {
	switch s {
	case ShipmentStatusScheduled:
		return "SCHEDULED"
	case ShipmentStatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Shipment is the shipping-service's audit record of a completed order:
// written after the saga has already reached COMPLETED, so it carries no
// compensation weight of its own -- see SPEC_FULL.md's shipping-service
// design note on why a late SHIPPING_FAILED never reopens a terminal saga.
type Shipment struct {
	ID         string         `json:"id"`
	TenantID   string         `json:"tenantId"`
	OrderID    string         `json:"orderId"`
	SagaID     string         `json:"sagaId"`
	Status     ShipmentStatus `json:"status"`
	CarrierRef string         `json:"carrierRef"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// User is the gateway's login credential record: one row per principal,
// carrying the scopes and per-tenant roles DeriveAuthorities turns into the
// issued token's claims.
type User struct {
	ID           string              `json:"id"`
	Username     string              `json:"username"`
	PasswordHash []byte              `json:"-"`
	Scopes       []string            `json:"scopes"`
	TenantRoles  map[string][]string `json:"tenantRoles"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

// Event is the wire envelope carried over the bus for both commands and events.
type Event struct {
	SagaID   string          `json:"sagaId"`
	Type     string          `json:"type"`
	TenantID string          `json:"tenantId"`
	TS       time.Time       `json:"ts"`
	Payload  json.RawMessage `json:"payload"`
	Reason   string          `json:"reason,omitempty"`
}
