// Package memstore keeps every collection in process memory. It backs local
// runs without MongoDB (DB_DRIVER=memory) and the HTTP and workflow tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"shopapi/database"
	"shopapi/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Store struct {
	mu         sync.RWMutex
	users      map[primitive.ObjectID]*models.User
	admins     map[primitive.ObjectID]*models.Admin
	products   map[primitive.ObjectID]*models.Product
	categories map[primitive.ObjectID]*models.Category
	orders     map[primitive.ObjectID]*models.Order

	transactional bool
	txMu          sync.Mutex
}

func New() *Store {
	return &Store{
		users:      map[primitive.ObjectID]*models.User{},
		admins:     map[primitive.ObjectID]*models.Admin{},
		products:   map[primitive.ObjectID]*models.Product{},
		categories: map[primitive.ObjectID]*models.Category{},
		orders:     map[primitive.ObjectID]*models.Order{},
	}
}

// NewTransactional returns a store whose WithTransaction is all-or-nothing:
// when fn fails every collection is rolled back to its state before fn ran.
// Transactions are serialised; writes outside one are not isolated from it.
func NewTransactional() *Store {
	s := New()
	s.transactional = true
	return s
}

// Transactional is false for New: like a standalone mongod, writes apply one by one.
func (s *Store) Transactional() bool { return s.transactional }

func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !s.transactional {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(ctx); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	users      map[primitive.ObjectID]*models.User
	admins     map[primitive.ObjectID]*models.Admin
	products   map[primitive.ObjectID]*models.Product
	categories map[primitive.ObjectID]*models.Category
	orders     map[primitive.ObjectID]*models.Order
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := snapshot{
		users:      make(map[primitive.ObjectID]*models.User, len(s.users)),
		admins:     make(map[primitive.ObjectID]*models.Admin, len(s.admins)),
		products:   make(map[primitive.ObjectID]*models.Product, len(s.products)),
		categories: make(map[primitive.ObjectID]*models.Category, len(s.categories)),
		orders:     make(map[primitive.ObjectID]*models.Order, len(s.orders)),
	}
	for id, u := range s.users {
		snap.users[id] = copyUser(u)
	}
	for id, a := range s.admins {
		c := *a
		snap.admins[id] = &c
	}
	for id, p := range s.products {
		c := *p
		snap.products[id] = &c
	}
	for id, c := range s.categories {
		cp := *c
		snap.categories[id] = &cp
	}
	for id, o := range s.orders {
		c := copyOrder(o)
		snap.orders[id] = &c
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = snap.users
	s.admins = snap.admins
	s.products = snap.products
	s.categories = snap.categories
	s.orders = snap.orders
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, database.ErrNotFound
	}
	return oid, nil
}

func copyUser(u *models.User) *models.User {
	c := *u
	c.Cart = append([]models.CartLine{}, u.Cart...)
	c.Orders = make([]models.Order, len(u.Orders))
	for i, o := range u.Orders {
		c.Orders[i] = copyOrder(&o)
	}
	return &c
}

func copyOrder(o *models.Order) models.Order {
	c := *o
	c.ProductsOrdered = append([]models.LineItem{}, o.ProductsOrdered...)
	if o.DeliveredAt != nil {
		at := *o.DeliveredAt
		c.DeliveredAt = &at
	}
	return c
}

// Users

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return database.ErrDuplicate
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	s.users[u.ID] = copyUser(u)
	return nil
}

func (s *Store) UserByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[oid]
	if !ok {
		return nil, database.ErrNotFound
	}
	return copyUser(u), nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *Store) UsersByPhone(ctx context.Context, phone int64) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := []models.User{}
	for _, u := range s.users {
		if u.PhoneNumber == phone {
			users = append(users, *copyUser(u))
		}
	}
	return users, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, *copyUser(u))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users, nil
}

func (s *Store) withUser(id string, fn func(u *models.User) error) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[oid]
	if !ok {
		return database.ErrNotFound
	}
	if err := fn(u); err != nil {
		return err
	}
	u.UpdatedAt = time.Now()
	return nil
}

func (s *Store) SetUserPassword(ctx context.Context, id, hash string) error {
	return s.withUser(id, func(u *models.User) error {
		u.Password = hash
		return nil
	})
}

func (s *Store) ReplaceCart(ctx context.Context, id string, cart []models.CartLine) error {
	return s.withUser(id, func(u *models.User) error {
		u.Cart = append([]models.CartLine{}, cart...)
		return nil
	})
}

func (s *Store) PushOrder(ctx context.Context, id string, o models.Order) error {
	return s.withUser(id, func(u *models.User) error {
		u.Orders = append(u.Orders, copyOrder(&o))
		u.Cart = []models.CartLine{}
		return nil
	})
}

func (s *Store) PullOrder(ctx context.Context, id, orderID string, cart []models.CartLine) error {
	return s.withUser(id, func(u *models.User) error {
		kept := u.Orders[:0]
		for _, o := range u.Orders {
			if o.OrderID != orderID {
				kept = append(kept, o)
			}
		}
		u.Orders = kept
		if len(u.Cart) == 0 {
			u.Cart = append([]models.CartLine{}, cart...)
		}
		return nil
	})
}

func (s *Store) SetEmbeddedDelivered(ctx context.Context, userID string, index int, expect models.Order, at time.Time) error {
	return s.withUser(userID, func(u *models.User) error {
		if index < 0 || index >= len(u.Orders) || !u.Orders[index].Matches(expect) {
			return database.ErrNotFound
		}
		u.Orders[index].Delivered = true
		u.Orders[index].DeliveredAt = &at
		return nil
	})
}

// Admins

func (s *Store) CreateAdmin(ctx context.Context, a *models.Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.admins {
		if existing.Email == a.Email {
			return database.ErrDuplicate
		}
	}
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	c := *a
	s.admins[a.ID] = &c
	return nil
}

func (s *Store) AdminByID(ctx context.Context, id string) (*models.Admin, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.admins[oid]
	if !ok {
		return nil, database.ErrNotFound
	}
	c := *a
	return &c, nil
}

func (s *Store) AdminByEmail(ctx context.Context, email string) (*models.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.admins {
		if a.Email == email {
			c := *a
			return &c, nil
		}
	}
	return nil, database.ErrNotFound
}

// Products

func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.products {
		if existing.Title == p.Title {
			return database.ErrDuplicate
		}
	}
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	c := *p
	s.products[p.ID] = &c
	return nil
}

func (s *Store) ProductByID(ctx context.Context, id string) (*models.Product, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[oid]
	if !ok {
		return nil, database.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (s *Store) ProductByTitle(ctx context.Context, title string) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.Title == title {
			c := *p
			return &c, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	products := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, *p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].CreatedAt.Before(products[j].CreatedAt) })
	return products, nil
}

func (s *Store) UpdateProduct(ctx context.Context, id string, edit models.ProductEdit, at time.Time) (*models.Product, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[oid]
	if !ok {
		return nil, database.ErrNotFound
	}
	for otherID, other := range s.products {
		if otherID != oid && other.Title == edit.Title {
			return nil, database.ErrDuplicate
		}
	}
	p.Title = edit.Title
	p.IsDiscount = edit.IsDiscount
	p.IsFinished = edit.IsFinished
	p.NewPrice = edit.NewPrice
	p.UpdatedAt = at
	c := *p
	return &c, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.products, oid)
	return nil
}

// Categories

func (s *Store) CreateCategory(ctx context.Context, c *models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.categories {
		if existing.Title == c.Title {
			return database.ErrDuplicate
		}
	}
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	cp := *c
	s.categories[c.ID] = &cp
	return nil
}

func (s *Store) CategoryByTitle(ctx context.Context, title string) (*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.categories {
		if c.Title == title {
			cp := *c
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	categories := make([]models.Category, 0, len(s.categories))
	for _, c := range s.categories {
		categories = append(categories, *c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Title < categories[j].Title })
	return categories, nil
}

// Order ledger

func (s *Store) InsertOrder(ctx context.Context, o *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.OrderID != "" {
		for _, existing := range s.orders {
			if existing.OrderID == o.OrderID {
				return database.ErrDuplicate
			}
		}
	}
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	c := copyOrder(o)
	s.orders[o.ID] = &c
	return nil
}

func (s *Store) OrderByID(ctx context.Context, id string) (*models.Order, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[oid]
	if !ok {
		return nil, database.ErrNotFound
	}
	c := copyOrder(o)
	return &c, nil
}

func (s *Store) OrdersByCustomer(ctx context.Context, customerID string) ([]models.Order, error) {
	return s.filterOrders(func(o *models.Order) bool { return o.CustomerID == customerID }), nil
}

func (s *Store) ListOrders(ctx context.Context) ([]models.Order, error) {
	return s.filterOrders(func(*models.Order) bool { return true }), nil
}

func (s *Store) filterOrders(keep func(o *models.Order) bool) []models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orders := []models.Order{}
	for _, o := range s.orders {
		if keep(o) {
			orders = append(orders, copyOrder(o))
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders
}

func (s *Store) SetOrderDelivered(ctx context.Context, id string, at time.Time) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[oid]
	if !ok {
		return database.ErrNotFound
	}
	o.Delivered = true
	o.DeliveredAt = &at
	return nil
}
