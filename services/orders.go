package services

import (
	"context"
	"errors"
	"log"
	"time"

	"shopapi/apperror"
	"shopapi/database"
	"shopapi/events"
	"shopapi/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CartInput struct {
	Cart []models.CartLine `json:"cart"`
}

type OrderPayload struct {
	TotalAmount     float64           `json:"totalAmount" binding:"gte=0"`
	ProductsOrdered []models.LineItem `json:"productsOrdered" binding:"required,min=1"`
	Delivered       bool              `json:"delivered"`
}

type PlaceOrderInput struct {
	Order    OrderPayload    `json:"order"`
	Address  string          `json:"address"`
	Location models.Location `json:"location"`
}

// Reconcile problem codes.
const (
	OwnerMissing      = "owner_missing"
	OwnerAmbiguous    = "owner_ambiguous"
	EmbeddedMissing   = "embedded_missing"
	EmbeddedAmbiguous = "embedded_ambiguous"
	DeliveredMismatch = "delivered_mismatch"
)

// Divergence describes one ledger entry whose embedded copy is not in step with it.
type Divergence struct {
	LedgerID          string `json:"ledgerId"`
	OrderID           string `json:"orderId,omitempty"`
	CustomerID        string `json:"customerId,omitempty"`
	Problem           string `json:"problem"`
	LedgerDelivered   bool   `json:"ledgerDelivered"`
	EmbeddedDelivered bool   `json:"embeddedDelivered"`
	Repaired          bool   `json:"repaired"`
}

type ReconcileReport struct {
	Checked     int          `json:"checked"`
	Divergences []Divergence `json:"divergences"`
}

type OrderService struct {
	Store  Store
	Events Publisher

	now func() time.Time
}

func NewOrderService(store Store, events Publisher) *OrderService {
	return &OrderService{Store: store, Events: events, now: time.Now}
}

func (s *OrderService) clock() time.Time {
	if s.now == nil {
		return time.Now().UTC()
	}
	return s.now().UTC()
}

func (s *OrderService) publish(kind string, o models.Order) {
	if s.Events != nil {
		s.Events.Publish(events.Event{Type: kind, OrderID: o.OrderID, Payload: o})
	}
}

func userMissing() error {
	return apperror.NotFound("User error", apperror.Field("user", "The user does not exist"))
}

// UpdateCart replaces the cart wholesale. Concurrent updates are last-write-wins.
func (s *OrderService) UpdateCart(ctx context.Context, userID string, cart []models.CartLine) error {
	err := s.Store.ReplaceCart(ctx, userID, cart)
	if errors.Is(err, database.ErrNotFound) {
		return userMissing()
	}
	if err != nil {
		return apperror.Persistence("Unable to update the user", err)
	}
	return nil
}

// PlaceOrder appends the embedded copy (clearing the cart) and then writes
// the ledger entry. Both carry the same fresh orderId. Without transactions a
// failed ledger write is compensated by pulling the embedded copy back out.
func (s *OrderService) PlaceOrder(ctx context.Context, userID string, in PlaceOrderInput) (*models.Order, error) {
	if err := apperror.Check(in); err != nil {
		return nil, err
	}
	user, err := s.Store.UserByID(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, userMissing()
	}
	if err != nil {
		return nil, apperror.Persistence("An error while looking for the user", err)
	}

	now := s.clock()
	order := models.Order{
		ID:                  primitive.NewObjectID(),
		OrderID:             uuid.NewString(),
		TotalAmount:         in.Order.TotalAmount,
		ProductsOrdered:     in.Order.ProductsOrdered,
		Delivered:           in.Order.Delivered,
		CustomerID:          user.ID.Hex(),
		CustomerName:        user.Name,
		CustomerEmail:       user.Email,
		CustomerPhoneNumber: user.PhoneNumber,
		CustomerAddress:     in.Address,
		CustomerLocation:    in.Location,
		CreatedAt:           now,
	}
	if order.Delivered {
		order.DeliveredAt = &now
	}
	previousCart := user.Cart

	failed := "Unable to save the order"
	err = s.Store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.Store.PushOrder(ctx, userID, order); err != nil {
			failed = "Unable to save the orders"
			return err
		}
		ledger := order
		if err := s.Store.InsertOrder(ctx, &ledger); err != nil {
			failed = "Unable to add the new order"
			if !s.Store.Transactional() {
				if perr := s.Store.PullOrder(ctx, userID, order.OrderID, previousCart); perr != nil {
					log.Printf("order %s: compensation for user %s failed: %v", order.OrderID, userID, perr)
				}
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, apperror.Persistence(failed, err)
	}

	s.publish(events.OrderPlaced, order)
	return &order, nil
}

// ConfirmDelivery marks the ledger entry delivered and then its embedded
// copy. Already-delivered sides are skipped, so the call also completes a
// delivery that previously failed half way.
func (s *OrderService) ConfirmDelivery(ctx context.Context, ledgerID string) (*models.Order, error) {
	ledger, err := s.Store.OrderByID(ctx, ledgerID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperror.NotFound("Order error", apperror.Field("order", "The order you are looking for does not exist"))
	}
	if err != nil {
		return nil, apperror.Persistence("Unable to find order among whole orders", err)
	}

	owner, err := s.owner(ctx, ledger)
	if err != nil {
		return nil, err
	}
	idx, n := matchEmbedded(owner.Orders, *ledger)
	if n != 1 {
		return nil, apperror.Consistency("Unable to update the delivery status of the order")
	}
	embedded := owner.Orders[idx]
	if ledger.Delivered && embedded.Delivered {
		return ledger, nil
	}

	now := s.clock()
	var ledgerErr, embeddedErr error
	err = s.Store.WithTransaction(ctx, func(ctx context.Context) error {
		// the callback is retried on transient transaction errors
		ledgerErr, embeddedErr = nil, nil
		if !ledger.Delivered {
			if ledgerErr = s.Store.SetOrderDelivered(ctx, ledgerID, now); ledgerErr != nil {
				return ledgerErr
			}
		}
		if !embedded.Delivered {
			if embeddedErr = s.Store.SetEmbeddedDelivered(ctx, owner.ID.Hex(), idx, embedded, now); embeddedErr != nil {
				return embeddedErr
			}
		}
		return nil
	})
	switch {
	case ledgerErr != nil:
		return nil, apperror.Persistence("An error while updating main order", err)
	case errors.Is(embeddedErr, database.ErrNotFound):
		return nil, apperror.Consistency("The customer's copy of the order changed during delivery")
	case embeddedErr != nil:
		return nil, apperror.Persistence("An error occurred while updating the customer order", err)
	case err != nil:
		return nil, apperror.Persistence("Unable to confirm the delivery", err)
	}

	ledger.Delivered = true
	if ledger.DeliveredAt == nil {
		ledger.DeliveredAt = &now
	}
	s.publish(events.OrderDelivered, *ledger)
	return ledger, nil
}

// owner resolves the user a ledger entry belongs to: by customer id, or by
// phone number for entries written without one.
func (s *OrderService) owner(ctx context.Context, o *models.Order) (*models.User, error) {
	missing := apperror.NotFound("User error", apperror.Field("user", "The user you are looking for does not exist"))

	if o.CustomerID != "" {
		u, err := s.Store.UserByID(ctx, o.CustomerID)
		if errors.Is(err, database.ErrNotFound) {
			return nil, missing
		}
		if err != nil {
			return nil, apperror.Persistence("Unable to find the user the order belongs to", err)
		}
		return u, nil
	}

	users, err := s.Store.UsersByPhone(ctx, o.CustomerPhoneNumber)
	if err != nil {
		return nil, apperror.Persistence("Unable to find the user the order belongs to", err)
	}
	switch len(users) {
	case 0:
		return nil, missing
	case 1:
		return &users[0], nil
	default:
		return nil, apperror.Conflict("User error", apperror.Field("user", "More than one customer uses this phone number"))
	}
}

// matchEmbedded returns the index of the last embedded order matching ledger
// and the number of matches. A copy carrying the ledger's orderId wins over
// legacy copies that only agree on title and amount.
func matchEmbedded(orders []models.Order, ledger models.Order) (int, int) {
	idx, n := -1, 0
	if ledger.OrderID != "" {
		for i, o := range orders {
			if o.OrderID == ledger.OrderID {
				idx = i
				n++
			}
		}
		if n > 0 {
			return idx, n
		}
	}
	for i, o := range orders {
		if ledger.Matches(o) {
			idx = i
			n++
		}
	}
	return idx, n
}

func (s *OrderService) ListOrders(ctx context.Context) ([]models.Order, error) {
	orders, err := s.Store.ListOrders(ctx)
	if err != nil {
		return nil, apperror.Persistence("Unable to fetch the orders", err)
	}
	return orders, nil
}

// Reconcile compares every ledger entry with its embedded copy. With repair
// set, embedded copies lagging behind a delivered ledger entry are marked
// delivered; other divergences are only reported.
func (s *OrderService) Reconcile(ctx context.Context, repair bool) (*ReconcileReport, error) {
	ledger, err := s.Store.ListOrders(ctx)
	if err != nil {
		return nil, apperror.Persistence("Unable to fetch the orders", err)
	}

	report := &ReconcileReport{Checked: len(ledger), Divergences: []Divergence{}}
	for i := range ledger {
		entry := ledger[i]
		d := Divergence{
			LedgerID:        entry.ID.Hex(),
			OrderID:         entry.OrderID,
			CustomerID:      entry.CustomerID,
			LedgerDelivered: entry.Delivered,
		}

		owner, err := s.owner(ctx, &entry)
		switch {
		case apperror.Is(err, apperror.KindNotFound):
			d.Problem = OwnerMissing
			report.Divergences = append(report.Divergences, d)
			continue
		case apperror.Is(err, apperror.KindConflict):
			d.Problem = OwnerAmbiguous
			report.Divergences = append(report.Divergences, d)
			continue
		case err != nil:
			return nil, err
		}

		idx, n := matchEmbedded(owner.Orders, entry)
		if n == 0 {
			d.Problem = EmbeddedMissing
			report.Divergences = append(report.Divergences, d)
			continue
		}
		if n > 1 {
			d.Problem = EmbeddedAmbiguous
			report.Divergences = append(report.Divergences, d)
			continue
		}

		embedded := owner.Orders[idx]
		if embedded.Delivered == entry.Delivered {
			continue
		}
		d.Problem = DeliveredMismatch
		d.EmbeddedDelivered = embedded.Delivered

		if repair && entry.Delivered {
			at := s.clock()
			if entry.DeliveredAt != nil {
				at = *entry.DeliveredAt
			}
			if err := s.Store.SetEmbeddedDelivered(ctx, owner.ID.Hex(), idx, embedded, at); err != nil {
				log.Printf("reconcile: repairing order %s for user %s failed: %v", entry.OrderID, owner.ID.Hex(), err)
			} else {
				d.Repaired = true
				d.EmbeddedDelivered = true
			}
		}
		report.Divergences = append(report.Divergences, d)
	}
	return report, nil
}
