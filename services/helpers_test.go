package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"shopapi/database/memstore"
	"shopapi/events"
	"shopapi/mailer"
	"shopapi/models"
	"shopapi/rdx"
	"shopapi/token"

	"golang.org/x/crypto/bcrypt"
)

var errDiskFull = errors.New("disk full")

// faultyStore fails selected writes of the in-memory store.
type faultyStore struct {
	*memstore.Store
	insertOrderErr  error
	orderDeliverErr error
	embeddedErr     error

	// beforeInsertOrder runs ahead of every ledger insert.
	beforeInsertOrder func(ctx context.Context)
	pullCalls         int
}

func (f *faultyStore) InsertOrder(ctx context.Context, o *models.Order) error {
	if f.beforeInsertOrder != nil {
		f.beforeInsertOrder(ctx)
	}
	if f.insertOrderErr != nil {
		return f.insertOrderErr
	}
	return f.Store.InsertOrder(ctx, o)
}

func (f *faultyStore) PullOrder(ctx context.Context, id, orderID string, cart []models.CartLine) error {
	f.pullCalls++
	return f.Store.PullOrder(ctx, id, orderID, cart)
}

func (f *faultyStore) SetOrderDelivered(ctx context.Context, id string, at time.Time) error {
	if f.orderDeliverErr != nil {
		return f.orderDeliverErr
	}
	return f.Store.SetOrderDelivered(ctx, id, at)
}

func (f *faultyStore) SetEmbeddedDelivered(ctx context.Context, userID string, index int, expect models.Order, at time.Time) error {
	if f.embeddedErr != nil {
		return f.embeddedErr
	}
	return f.Store.SetEmbeddedDelivered(ctx, userID, index, expect, at)
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (m *fakeMailer) Enqueue(msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

type recordingPublisher struct {
	events []events.Event
}

func (p *recordingPublisher) Publish(ev events.Event) { p.events = append(p.events, ev) }

func newIssuer() *token.Issuer {
	return token.NewIssuer([]byte("test-secret"), time.Hour, 0, time.Hour)
}

func newAuth(store Store) (*AuthService, *fakeMailer) {
	mail := &fakeMailer{}
	return &AuthService{
		Store:           store,
		Tokens:          newIssuer(),
		Mail:            mail,
		Verified:        rdx.NewLocalVerifications(time.Minute),
		RequireVerified: true,
		HashCost:        bcrypt.MinCost,
	}, mail
}

// seedUser stores a user directly, skipping password hashing.
func seedUser(t *testing.T, store Store, email string, phone int64, cart ...models.CartLine) *models.User {
	t.Helper()
	u := &models.User{
		Name:        "Test User",
		Email:       email,
		Password:    "x",
		PhoneNumber: phone,
		Cart:        cart,
		Orders:      []models.Order{},
		CreatedAt:   time.Now(),
	}
	if err := store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func milkOrder() PlaceOrderInput {
	return PlaceOrderInput{
		Order: OrderPayload{
			TotalAmount:     500,
			ProductsOrdered: []models.LineItem{{Title: "Milk", Quantity: 2}},
		},
		Address:  "123 St",
		Location: models.Location{Lat: 0, Lng: 0},
	}
}
