package database

import (
	"context"
	"fmt"
	"time"

	"shopapi/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	_, err := s.UserCollection.InsertOne(ctx, u)
	return insertErr(err)
}

func (s *Store) UserByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var u models.User
	if err := s.UserCollection.FindOne(ctx, bson.M{"_id": oid}).Decode(&u); err != nil {
		return nil, findErr(err)
	}
	return &u, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.UserCollection.FindOne(ctx, bson.M{"email": email}).Decode(&u); err != nil {
		return nil, findErr(err)
	}
	return &u, nil
}

func (s *Store) UsersByPhone(ctx context.Context, phone int64) ([]models.User, error) {
	// Two matches are enough to report ambiguity.
	cursor, err := s.UserCollection.Find(ctx, bson.M{"phoneNumber": phone}, options.Find().SetLimit(2))
	if err != nil {
		return nil, err
	}
	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	opts := options.Find().SetProjection(bson.M{"password": 0, "cart": 0, "orders": 0})
	cursor, err := s.UserCollection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) SetUserPassword(ctx context.Context, id, hash string) error {
	return s.updateUser(ctx, id, bson.M{"$set": bson.M{"password": hash, "updatedAt": time.Now()}})
}

// ReplaceCart overwrites the cart wholesale.
func (s *Store) ReplaceCart(ctx context.Context, id string, cart []models.CartLine) error {
	if cart == nil {
		cart = []models.CartLine{}
	}
	return s.updateUser(ctx, id, bson.M{"$set": bson.M{"cart": cart, "updatedAt": time.Now()}})
}

// PushOrder appends the embedded copy and empties the cart in one atomic update.
func (s *Store) PushOrder(ctx context.Context, id string, o models.Order) error {
	return s.updateUser(ctx, id, bson.M{
		"$push": bson.M{"orders": o},
		"$set":  bson.M{"cart": []models.CartLine{}, "updatedAt": time.Now()},
	})
}

// PullOrder undoes PushOrder for the given order id. The cart is restored only
// while it is still empty, so a cart saved in the meantime is kept.
func (s *Store) PullOrder(ctx context.Context, id, orderID string, cart []models.CartLine) error {
	err := s.updateUser(ctx, id, bson.M{
		"$pull": bson.M{"orders": bson.M{"orderId": orderID}},
		"$set":  bson.M{"updatedAt": time.Now()},
	})
	if err != nil || len(cart) == 0 {
		return err
	}
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	_, err = s.UserCollection.UpdateOne(ctx,
		bson.M{"_id": oid, "cart": bson.M{"$size": 0}},
		bson.M{"$set": bson.M{"cart": cart}},
	)
	return err
}

// SetEmbeddedDelivered marks orders[index] delivered. The filter re-checks the
// identity of that element so a concurrently diverged array is not written.
func (s *Store) SetEmbeddedDelivered(ctx context.Context, userID string, index int, expect models.Order, at time.Time) error {
	oid, err := objectID(userID)
	if err != nil {
		return err
	}
	prefix := fmt.Sprintf("orders.%d.", index)
	filter := bson.M{"_id": oid}
	if expect.OrderID != "" {
		filter[prefix+"orderId"] = expect.OrderID
	} else {
		filter[prefix+"totalAmount"] = expect.TotalAmount
		filter[prefix+"productsOrdered.0.title"] = expect.FirstTitle()
	}
	update := bson.M{"$set": bson.M{
		prefix + "delivered":   true,
		prefix + "deliveredAt": at,
		"updatedAt":            time.Now(),
	}}

	res, err := s.UserCollection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) updateUser(ctx context.Context, id string, update bson.M) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := s.UserCollection.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
