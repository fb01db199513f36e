// Package handlers implements the gateway's HTTP-facing use cases: minting
// the saga that kicks off a checkout and issuing access tokens.
package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/DimitryIvaniuta/order-platform-sub001/common"
	"github.com/DimitryIvaniuta/order-platform-sub001/common/constant"
	"github.com/DimitryIvaniuta/order-platform-sub001/common/mlog"
	cmmodel "github.com/DimitryIvaniuta/order-platform-sub001/common/mmodel"
	httpx "github.com/DimitryIvaniuta/order-platform-sub001/common/net/http"
	"github.com/DimitryIvaniuta/order-platform-sub001/components/gateway/internal/adapters/postgres"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/authn"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/idempotency"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/mmodel"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/outbox"
)

// CreateOrderInput is the validated request body for POST /orders.
type CreateOrderInput struct {
	CustomerID   string             `json:"customerId" validate:"required"`
	CurrencyCode string             `json:"currencyCode" validate:"required,len=3"`
	Lines        []mmodel.OrderLine `json:"lines" validate:"required,min=1,dive"`
}

// CreateOrderOutput is the 202 response body: enough for the caller to poll
// GET /orders/:sagaId and to correlate logs across services.
type CreateOrderOutput struct {
	SagaID        string `json:"sagaId"`
	CorrelationID string `json:"correlationId"`
}

// OrderStatusOutput is the GET /orders/:sagaId projection: the owning
// saga's current state mapped onto the order-facing status vocabulary,
// since no service ever writes a status column on the order row itself.
type OrderStatusOutput struct {
	SagaID        string    `json:"sagaId"`
	OrderID       string    `json:"orderId"`
	Status        string    `json:"status"`
	CurrencyCode  string    `json:"currencyCode"`
	TotalAmount   int64     `json:"totalAmountMinor"`
	Lines         []mmodel.OrderLine `json:"lines"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// OrderHandlers wires the repositories and outbox store CreateOrder and
// GetOrder need.
type OrderHandlers struct {
	DB        *sql.DB
	Orders    *postgres.OrderRepository
	Sagas     *postgres.SagaRepository
	ClientKey *idempotency.ClientKeyLedger
	Outbox    *outbox.Store
	Logger    mlog.Logger
}

func totalAmountMinor(lines []mmodel.OrderLine) int64 {
	var total int64
	for _, l := range lines {
		total += l.PriceMin * int64(l.Qty)
	}
	return total
}

// statusForSagaState projects a saga's coordinator state onto the
// order-facing status vocabulary; Completed maps to Paid since shipment
// scheduling carries no compensation weight of its own (a late
// SHIPPING_FAILED never reopens a terminal saga).
func statusForSagaState(state mmodel.SagaState) mmodel.OrderStatus {
	switch state {
	case mmodel.SagaStatePending:
		return mmodel.OrderStatusPending
	case mmodel.SagaStateAwaitingPayment:
		return mmodel.OrderStatusAwaitingPayment
	case mmodel.SagaStateReserved:
		return mmodel.OrderStatusReserved
	case mmodel.SagaStatePaid, mmodel.SagaStateCompleted:
		return mmodel.OrderStatusPaid
	case mmodel.SagaStateFailed:
		return mmodel.OrderStatusRejected
	default:
		return mmodel.OrderStatusCancelled
	}
}

// CreateOrder implements SPEC_FULL.md §4.8's checkout entry point: resolve
// the tenant, mint a time-ordered sagaId, and persist the Order/Saga/outbox
// triple in one local transaction so the orchestrator in components/
// orderservice is guaranteed a row to operate on by the time the
// ORDER_CREATED event it watches for is actually published.
func (h *OrderHandlers) CreateOrder(p any, c *fiber.Ctx) error {
	input, ok := p.(*CreateOrderInput)
	if !ok {
		return httpx.WithError(c, common.ValidateInternalError(fmt.Errorf("unexpected payload type %T", p), "Order"))
	}

	principal, ok := authn.PrincipalFromContext(c)
	if !ok {
		return httpx.Unauthorized(c, "4002", "Invalid Token", "invalid_token")
	}

	tenantID, err := principal.Authorities.Narrow(c.Get("X-Tenant-ID"))
	if err != nil {
		return httpx.WithError(c, common.ValidateBusinessError(constant.ErrTenantMismatch, "Order", c.Get("X-Tenant-ID")))
	}

	correlationID := httpx.CorrelationIDFromFiberCtx(c)

	sagaID := uuid.Must(uuid.NewV7()).String()
	orderID := uuid.Must(uuid.NewV7()).String()
	now := time.Now().UTC()

	idempotencyKey := c.Get("Idempotency-Key")

	tx, err := h.DB.BeginTx(c.UserContext(), nil)
	if err != nil {
		return httpx.WithError(c, common.ValidateInternalError(err, "Order"))
	}
	defer func() { _ = tx.Rollback() }()

	if idempotencyKey != "" {
		existingSagaID, claimed, err := h.ClientKey.TryClaim(c.UserContext(), tx, tenantID, idempotencyKey, sagaID)
		if err != nil {
			return httpx.WithError(c, common.ValidateInternalError(err, "Order"))
		}
		if !claimed {
			_ = tx.Rollback()
			return c.Status(fiber.StatusAccepted).JSON(CreateOrderOutput{SagaID: existingSagaID, CorrelationID: correlationID})
		}
	}

	order := mmodel.Order{
		ID:               orderID,
		TenantID:         tenantID,
		SagaID:           sagaID,
		CustomerID:       input.CustomerID,
		Status:           mmodel.OrderStatusPending,
		CurrencyCode:     input.CurrencyCode,
		TotalAmountMinor: totalAmountMinor(input.Lines),
		Lines:            input.Lines,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := h.Orders.Create(c.UserContext(), tx, order); err != nil {
		return httpx.WithError(c, common.ValidateInternalError(err, "Order"))
	}

	saga := mmodel.Saga{
		ID:            sagaID,
		TenantID:      tenantID,
		UserID:        principal.Subject,
		OrderID:       &orderID,
		State:         mmodel.SagaStatePending,
		LastEventType: mmodel.EventOrderCreated,
		LastEventTS:   now,
		Attempts:      0,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := h.Sagas.Create(c.UserContext(), tx, saga); err != nil {
		return httpx.WithError(c, common.ValidateInternalError(err, "Order"))
	}

	payload, err := json.Marshal(mmodel.SagaPayload{
		OrderID:      orderID,
		CustomerID:   input.CustomerID,
		CurrencyCode: input.CurrencyCode,
		AmountMinor:  order.TotalAmountMinor,
		Lines:        input.Lines,
	})
	if err != nil {
		return httpx.WithError(c, common.ValidateInternalError(err, "Order"))
	}

	headers, err := json.Marshal(map[string]string{
		"command":       mmodel.CommandOrderCreate,
		"correlationId": correlationID,
	})
	if err != nil {
		return httpx.WithError(c, common.ValidateInternalError(err, "Order"))
	}

	if _, err := h.Outbox.SaveEvent(c.UserContext(), tx, tenantID, sagaID, "order", &orderID, mmodel.EventOrderCreated, nil, payload, headers); err != nil {
		return httpx.WithError(c, common.ValidateInternalError(err, "Order"))
	}

	if err := tx.Commit(); err != nil {
		return httpx.WithError(c, common.ValidateInternalError(err, "Order"))
	}

	h.Logger.Infof("gateway: accepted order for saga %s tenant %s correlation %s", sagaID, tenantID, correlationID)

	return c.Status(fiber.StatusAccepted).JSON(CreateOrderOutput{SagaID: sagaID, CorrelationID: correlationID})
}

// GetOrder implements the supplemented read endpoint: load the saga the
// caller is entitled to see, load the order it owns, and project a status.
func (h *OrderHandlers) GetOrder(c *fiber.Ctx) error {
	sagaID, ok := c.Locals("sagaId").(uuid.UUID)
	if !ok {
		return httpx.WithError(c, common.ValidateBusinessError(constant.ErrInvalidPathParameter, "Order", "sagaId"))
	}

	principal, ok := authn.PrincipalFromContext(c)
	if !ok {
		return httpx.Unauthorized(c, "4002", "Invalid Token", "invalid_token")
	}

	tenantID, err := principal.Authorities.Narrow(c.Get("X-Tenant-ID"))
	if err != nil {
		return httpx.WithError(c, common.ValidateBusinessError(constant.ErrTenantMismatch, "Order", c.Get("X-Tenant-ID")))
	}

	ctx := c.UserContext()

	saga, err := h.Sagas.GetByID(ctx, h.DB, sagaID.String())
	if err != nil {
		return httpx.WithError(c, common.ValidateBusinessError(constant.ErrSagaNotFound, "Order"))
	}

	if saga.TenantID != tenantID {
		return httpx.WithError(c, common.ValidateBusinessError(constant.ErrSagaNotFound, "Order"))
	}

	order, err := h.Orders.GetBySagaID(ctx, h.DB, sagaID.String())
	if err != nil {
		return httpx.WithError(c, common.ValidateBusinessError(constant.ErrOrderNotFound, "Order"))
	}

	out := OrderStatusOutput{
		SagaID:       saga.ID,
		OrderID:      order.ID,
		Status:       statusForSagaState(saga.State).String(),
		CurrencyCode: order.CurrencyCode,
		TotalAmount:  order.TotalAmountMinor,
		Lines:        order.Lines,
		CreatedAt:    order.CreatedAt,
		UpdatedAt:    saga.UpdatedAt,
	}

	return c.Status(fiber.StatusOK).JSON(out)
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// ListOrders is the supplemented tenant-scoped order listing endpoint: a
// caller with no sagaId in hand (a dashboard, a support tool) still needs a
// way to page through its own orders, which CreateOrder/GetOrder alone
// don't provide.
func (h *OrderHandlers) ListOrders(c *fiber.Ctx) error {
	principal, ok := authn.PrincipalFromContext(c)
	if !ok {
		return httpx.Unauthorized(c, "4002", "Invalid Token", "invalid_token")
	}

	tenantID, err := principal.Authorities.Narrow(c.Get("X-Tenant-ID"))
	if err != nil {
		return httpx.WithError(c, common.ValidateBusinessError(constant.ErrTenantMismatch, "Order", c.Get("X-Tenant-ID")))
	}

	page := c.QueryInt("page", 0)
	if page < 0 {
		page = 0
	}

	limit := c.QueryInt("limit", defaultListLimit)
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}

	orders, err := h.Orders.ListByTenant(c.UserContext(), h.DB, tenantID, page, limit)
	if err != nil {
		return httpx.WithError(c, common.ValidateInternalError(err, "Order"))
	}

	return c.Status(fiber.StatusOK).JSON(cmmodel.Pagination{
		Items: orders,
		Page:  page,
		Limit: limit,
	})
}
