// Package orders records orders against customers and tells the customer about
// it by SMS once the order is safely stored.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Keoroanthony/orders-api/internal/db"
	"github.com/Keoroanthony/orders-api/internal/models"
	"github.com/Keoroanthony/orders-api/internal/notifier"
)

const (
	maxItemLength = 200
	maxDigits     = 10
)

// Store is the part of the record store the workflow needs.
type Store interface {
	GetCustomer(ctx context.Context, id uint) (*models.Customer, error)
	CreateOrder(ctx context.Context, o *models.Order) error
	GetOrder(ctx context.Context, id uint) (*models.Order, error)
	UpdateOrder(ctx context.Context, o *models.Order) error
}

type CreateOrderInput struct {
	CustomerID uint
	Item       string
	Amount     *decimal.Decimal
}

// UpdateOrderInput carries the fields of a PUT or PATCH. Nil means "not sent".
type UpdateOrderInput struct {
	CustomerID *uint
	Item       *string
	Amount     *decimal.Decimal
}

type Workflow struct {
	store    Store
	sms      notifier.SMSSender
	receipts notifier.ReceiptSender
}

type Option func(*Workflow)

// WithReceipts emails an order receipt to the principal after each create.
func WithReceipts(r notifier.ReceiptSender) Option {
	return func(w *Workflow) { w.receipts = r }
}

func NewWorkflow(store Store, sms notifier.SMSSender, opts ...Option) *Workflow {
	w := &Workflow{store: store, sms: sms}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// CreateOrder validates and stores the order, then makes at most one SMS
// attempt to the customer. The SMS outcome never changes the result: once the
// order is stored it is returned.
func (w *Workflow) CreateOrder(ctx context.Context, principal *models.Principal, in CreateOrderInput) (*models.Order, error) {
	verr := &ValidationError{}
	if in.CustomerID == 0 {
		verr.Add("customer", "This field is required.")
	}
	item := validateItem(verr, &in.Item)
	validateAmount(verr, in.Amount)
	if verr.HasErrors() {
		return nil, verr
	}

	customer, err := w.resolveCustomer(ctx, in.CustomerID)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		CustomerID: customer.ID,
		Item:       item,
		Amount:     in.Amount.Round(models.AmountPlaces),
	}
	if err := w.store.CreateOrder(ctx, order); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, invalidCustomer(in.CustomerID, err)
		}
		return nil, fmt.Errorf("create order: %w", err)
	}

	slog.InfoContext(ctx, "order created",
		"order_id", order.ID, "customer_id", customer.ID, "amount", order.AmountString())

	w.notifyCustomer(ctx, customer, order)
	w.sendReceipt(ctx, principal, customer, order)

	return order, nil
}

// UpdateOrder applies a full (PUT) or partial (PATCH) update. It never sends
// notifications and never changes the order time.
func (w *Workflow) UpdateOrder(ctx context.Context, id uint, in UpdateOrderInput, partial bool) (*models.Order, error) {
	current, err := w.store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	verr := &ValidationError{}
	if !partial {
		if in.CustomerID == nil {
			verr.Add("customer", "This field is required.")
		}
		if in.Item == nil {
			verr.Add("item", "This field is required.")
		}
		if in.Amount == nil {
			verr.Add("amount", "This field is required.")
		}
	}

	updated := *current
	if in.CustomerID != nil {
		if *in.CustomerID == 0 {
			verr.Add("customer", "This field may not be null.")
		}
		updated.CustomerID = *in.CustomerID
	}
	if in.Item != nil {
		updated.Item = validateItem(verr, in.Item)
	}
	if in.Amount != nil {
		validateAmount(verr, in.Amount)
		updated.Amount = in.Amount.Round(models.AmountPlaces)
	}
	if verr.HasErrors() {
		return nil, verr
	}

	if in.CustomerID != nil {
		if _, err := w.resolveCustomer(ctx, updated.CustomerID); err != nil {
			return nil, err
		}
	}

	if err := w.store.UpdateOrder(ctx, &updated); err != nil {
		if errors.Is(err, db.ErrNotFound) && in.CustomerID != nil {
			return nil, invalidCustomer(updated.CustomerID, err)
		}
		return nil, fmt.Errorf("update order %d: %w", id, err)
	}
	return &updated, nil
}

// Message is the SMS text sent to a customer for a new order.
func Message(customer *models.Customer, order *models.Order) string {
	return fmt.Sprintf("Hi %s, we received your order (%s) for amount %s.",
		customer.Name, order.Item, order.AmountString())
}

func (w *Workflow) resolveCustomer(ctx context.Context, id uint) (*models.Customer, error) {
	customer, err := w.store.GetCustomer(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, invalidCustomer(id, err)
		}
		return nil, fmt.Errorf("look up customer %d: %w", id, err)
	}
	return customer, nil
}

func (w *Workflow) notifyCustomer(ctx context.Context, customer *models.Customer, order *models.Order) {
	phone := customer.Phone()
	if phone == "" || w.sms == nil {
		slog.DebugContext(ctx, "no phone number on file, skipping sms", "order_id", order.ID, "customer_id", customer.ID)
		return
	}

	outcome := w.sms.Send(ctx, phone, Message(customer, order))
	slog.InfoContext(ctx, "order notification dispatched",
		"order_id", order.ID, "status", outcome.Status, "to", outcome.To)
}

func (w *Workflow) sendReceipt(ctx context.Context, principal *models.Principal, customer *models.Customer, order *models.Order) {
	if w.receipts == nil || principal == nil || principal.Email == "" {
		return
	}

	name := principal.GivenName
	if name == "" {
		name = principal.Email
	}

	err := w.receipts.SendOrderReceipt(ctx, principal.Email, notifier.Receipt{
		RecipientName: name,
		OrderID:       order.ID,
		CustomerName:  customer.Name,
		CustomerCode:  customer.Code,
		Item:          order.Item,
		Amount:        order.AmountString(),
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to send order receipt", "order_id", order.ID, "error", err)
	}
}

func validateItem(verr *ValidationError, item *string) string {
	trimmed := strings.TrimSpace(*item)
	switch {
	case trimmed == "":
		verr.Add("item", "This field may not be blank.")
	case len([]rune(trimmed)) > maxItemLength:
		verr.Add("item", fmt.Sprintf("Ensure this field has no more than %d characters.", maxItemLength))
	}
	return trimmed
}

// validateAmount enforces a positive decimal(10,2).
func validateAmount(verr *ValidationError, amount *decimal.Decimal) {
	if amount == nil {
		verr.Add("amount", "This field is required.")
		return
	}

	if !amount.IsPositive() {
		verr.Add("amount", "Ensure this value is greater than 0.")
		return
	}

	// The exponent counts written places, so "50.000" is rejected like "50.001".
	if amount.Exponent() < -models.AmountPlaces {
		verr.Add("amount", fmt.Sprintf("Ensure that there are no more than %d decimal places.", models.AmountPlaces))
		return
	}

	maxWhole := maxDigits - models.AmountPlaces
	if len(amount.Truncate(0).String()) > maxWhole {
		verr.Add("amount", fmt.Sprintf("Ensure that there are no more than %d digits before the decimal point.", maxWhole))
	}
}

func invalidCustomer(id uint, cause error) error {
	verr := &ValidationError{cause: cause}
	verr.Add("customer", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", id))
	return verr
}
