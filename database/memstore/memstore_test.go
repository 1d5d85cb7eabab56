package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"shopapi/database"
	"shopapi/models"
)

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.CreateUser(ctx, &models.User{Email: "ann@x.com"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	err := s.CreateUser(ctx, &models.User{Email: "ann@x.com"})
	if !errors.Is(err, database.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestLookupsWithMalformedIDAreNotFound(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.UserByID(ctx, "nope"); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("user: expected ErrNotFound, got %v", err)
	}
	if _, err := s.ProductByID(ctx, "nope"); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("product: expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteProduct(ctx, "nope"); err != nil {
		t.Fatalf("delete should be a no-op, got %v", err)
	}
}

func TestReturnedUsersAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	u := &models.User{Email: "ann@x.com", Cart: []models.CartLine{{Title: "Milk", Quantity: 1}}}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatal(err)
	}

	got, _ := s.UserByID(ctx, u.ID.Hex())
	got.Cart[0].Quantity = 99

	again, _ := s.UserByID(ctx, u.ID.Hex())
	if again.Cart[0].Quantity != 1 {
		t.Fatalf("stored cart was mutated through a returned copy")
	}
}

func TestPushAndPullOrder(t *testing.T) {
	ctx := context.Background()
	s := New()
	cart := []models.CartLine{{Title: "Milk", Price: 250, Quantity: 2}}
	u := &models.User{Email: "ann@x.com", Cart: cart}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatal(err)
	}

	o := models.Order{OrderID: "o-1", TotalAmount: 500, ProductsOrdered: []models.LineItem{{Title: "Milk", Quantity: 2, Price: 250}}}
	if err := s.PushOrder(ctx, u.ID.Hex(), o); err != nil {
		t.Fatalf("push: %v", err)
	}
	got, _ := s.UserByID(ctx, u.ID.Hex())
	if len(got.Orders) != 1 || len(got.Cart) != 0 {
		t.Fatalf("after push: orders=%d cart=%d", len(got.Orders), len(got.Cart))
	}

	if err := s.PullOrder(ctx, u.ID.Hex(), "o-1", cart); err != nil {
		t.Fatalf("pull: %v", err)
	}
	got, _ = s.UserByID(ctx, u.ID.Hex())
	if len(got.Orders) != 0 || len(got.Cart) != 1 {
		t.Fatalf("after pull: orders=%d cart=%d", len(got.Orders), len(got.Cart))
	}
}

func TestPullOrderKeepsNewerCart(t *testing.T) {
	ctx := context.Background()
	s := New()
	u := &models.User{Email: "ann@x.com"}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatal(err)
	}
	s.PushOrder(ctx, u.ID.Hex(), models.Order{OrderID: "o-1"})
	bread := []models.CartLine{{Title: "Bread", Quantity: 1}}
	s.ReplaceCart(ctx, u.ID.Hex(), bread)

	if err := s.PullOrder(ctx, u.ID.Hex(), "o-1", []models.CartLine{{Title: "Milk", Quantity: 2}}); err != nil {
		t.Fatalf("pull: %v", err)
	}
	got, _ := s.UserByID(ctx, u.ID.Hex())
	if len(got.Orders) != 0 || len(got.Cart) != 1 || got.Cart[0].Title != "Bread" {
		t.Fatalf("expected order pulled and bread kept, got orders=%+v cart=%+v", got.Orders, got.Cart)
	}
}

func TestTransactionalRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewTransactional()
	if !s.Transactional() || New().Transactional() {
		t.Fatal("only NewTransactional stores are transactional")
	}
	u := &models.User{Email: "ann@x.com", Cart: []models.CartLine{{Title: "Milk", Quantity: 2}}}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err := s.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.PushOrder(ctx, u.ID.Hex(), models.Order{OrderID: "o-1"}); err != nil {
			return err
		}
		if err := s.InsertOrder(ctx, &models.Order{OrderID: "o-1"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the callback error, got %v", err)
	}
	got, _ := s.UserByID(ctx, u.ID.Hex())
	if len(got.Orders) != 0 || len(got.Cart) != 1 {
		t.Fatalf("user not rolled back: orders=%d cart=%d", len(got.Orders), len(got.Cart))
	}
	if orders, _ := s.ListOrders(ctx); len(orders) != 0 {
		t.Fatalf("ledger not rolled back: %d entries", len(orders))
	}

	err = s.WithTransaction(ctx, func(ctx context.Context) error {
		return s.InsertOrder(ctx, &models.Order{OrderID: "o-2"})
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if orders, _ := s.ListOrders(ctx); len(orders) != 1 {
		t.Fatalf("expected the committed entry, got %d", len(orders))
	}
}

func TestSetEmbeddedDeliveredChecksExpectedOrder(t *testing.T) {
	ctx := context.Background()
	s := New()
	u := &models.User{Email: "ann@x.com"}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatal(err)
	}
	milk := models.Order{OrderID: "o-1", TotalAmount: 500}
	bread := models.Order{OrderID: "o-2", TotalAmount: 120}
	s.PushOrder(ctx, u.ID.Hex(), milk)
	s.PushOrder(ctx, u.ID.Hex(), bread)

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	if err := s.SetEmbeddedDelivered(ctx, u.ID.Hex(), 0, bread, at); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("mismatched index: expected ErrNotFound, got %v", err)
	}
	if err := s.SetEmbeddedDelivered(ctx, u.ID.Hex(), 5, bread, at); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("out of range index: expected ErrNotFound, got %v", err)
	}
	if err := s.SetEmbeddedDelivered(ctx, u.ID.Hex(), 1, bread, at); err != nil {
		t.Fatalf("set delivered: %v", err)
	}

	got, _ := s.UserByID(ctx, u.ID.Hex())
	if got.Orders[0].Delivered {
		t.Fatalf("milk should still be pending")
	}
	if !got.Orders[1].Delivered || got.Orders[1].DeliveredAt == nil || !got.Orders[1].DeliveredAt.Equal(at) {
		t.Fatalf("bread not marked delivered: %+v", got.Orders[1])
	}
}

func TestLedgerOrdering(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		o := &models.Order{OrderID: id, CustomerID: "u1", CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := s.InsertOrder(ctx, o); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.InsertOrder(ctx, &models.Order{OrderID: "a"}); !errors.Is(err, database.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for a reused orderId, got %v", err)
	}

	orders, _ := s.ListOrders(ctx)
	if len(orders) != 3 || orders[0].OrderID != "c" || orders[2].OrderID != "a" {
		t.Fatalf("expected newest first, got %+v", orders)
	}
	mine, _ := s.OrdersByCustomer(ctx, "u1")
	if len(mine) != 3 {
		t.Fatalf("expected 3 orders for u1, got %d", len(mine))
	}
	none, _ := s.OrdersByCustomer(ctx, "u2")
	if len(none) != 0 {
		t.Fatalf("expected none for u2, got %d", len(none))
	}
}

func TestUpdateProductRejectsTakenTitle(t *testing.T) {
	ctx := context.Background()
	s := New()
	milk := &models.Product{Title: "Milk", Price: 250}
	bread := &models.Product{Title: "Bread", Price: 60}
	s.CreateProduct(ctx, milk)
	s.CreateProduct(ctx, bread)

	_, err := s.UpdateProduct(ctx, bread.ID.Hex(), models.ProductEdit{Title: "Milk"}, time.Now())
	if !errors.Is(err, database.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	p, err := s.UpdateProduct(ctx, bread.ID.Hex(), models.ProductEdit{Title: "Bread", IsDiscount: true, NewPrice: 50}, time.Now())
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !p.IsDiscount || p.NewPrice != 50 {
		t.Fatalf("edit not applied: %+v", p)
	}
}
