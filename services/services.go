// Package services holds the auth, catalog and order workflows. Handlers
// call into it; it talks to persistence only through the Store interface.
package services

import (
	"context"
	"time"

	"shopapi/events"
	"shopapi/mailer"
	"shopapi/models"
)

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	UserByID(ctx context.Context, id string) (*models.User, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UsersByPhone(ctx context.Context, phone int64) ([]models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	SetUserPassword(ctx context.Context, id, hash string) error
	ReplaceCart(ctx context.Context, id string, cart []models.CartLine) error
	PushOrder(ctx context.Context, id string, o models.Order) error
	// PullOrder removes the embedded order and puts cart back if the cart is still empty.
	PullOrder(ctx context.Context, id, orderID string, cart []models.CartLine) error
	SetEmbeddedDelivered(ctx context.Context, userID string, index int, expect models.Order, at time.Time) error
}

type AdminStore interface {
	CreateAdmin(ctx context.Context, a *models.Admin) error
	AdminByID(ctx context.Context, id string) (*models.Admin, error)
	AdminByEmail(ctx context.Context, email string) (*models.Admin, error)
}

type ProductStore interface {
	CreateProduct(ctx context.Context, p *models.Product) error
	ProductByID(ctx context.Context, id string) (*models.Product, error)
	ProductByTitle(ctx context.Context, title string) (*models.Product, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	UpdateProduct(ctx context.Context, id string, edit models.ProductEdit, at time.Time) (*models.Product, error)
	DeleteProduct(ctx context.Context, id string) error
}

type CategoryStore interface {
	CreateCategory(ctx context.Context, c *models.Category) error
	CategoryByTitle(ctx context.Context, title string) (*models.Category, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
}

type OrderStore interface {
	InsertOrder(ctx context.Context, o *models.Order) error
	OrderByID(ctx context.Context, id string) (*models.Order, error)
	OrdersByCustomer(ctx context.Context, customerID string) ([]models.Order, error)
	ListOrders(ctx context.Context) ([]models.Order, error)
	SetOrderDelivered(ctx context.Context, id string, at time.Time) error
}

// Store is everything the workflows persist to. database.Store and
// memstore.Store both satisfy it.
type Store interface {
	UserStore
	AdminStore
	ProductStore
	CategoryStore
	OrderStore

	// Transactional reports whether WithTransaction gives all-or-nothing semantics.
	Transactional() bool
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ResetVerifier remembers, for a short window, that an email passed reset-code verification.
type ResetVerifier interface {
	MarkVerified(ctx context.Context, email string) error
	ConsumeVerified(ctx context.Context, email string) (bool, error)
}

type Mailer interface {
	Enqueue(msg mailer.Message) error
}

type Publisher interface {
	Publish(ev events.Event)
}
