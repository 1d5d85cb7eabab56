package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store is the MongoDB-backed credential, catalog and order store.
type Store struct {
	Client *mongo.Client
	DB     *mongo.Database

	UserCollection     *mongo.Collection
	AdminCollection    *mongo.Collection
	ProductCollection  *mongo.Collection
	CategoryCollection *mongo.Collection
	OrderCollection    *mongo.Collection

	transactions bool
}

func ConnectMongo(ctx context.Context, uri, dbName string, transactions bool) (*Store, error) {
	if uri == "" || dbName == "" {
		return nil, errors.New("mongo uri and database name are required")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	s := &Store{Client: client, DB: client.Database(dbName), transactions: transactions}
	s.InitCollections()
	log.Printf("✅ Connected to MongoDB database %q (transactions=%v)", dbName, transactions)
	return s, nil
}

func (s *Store) InitCollections() {
	s.UserCollection = s.DB.Collection("users")
	s.AdminCollection = s.DB.Collection("admins")
	s.ProductCollection = s.DB.Collection("products")
	s.CategoryCollection = s.DB.Collection("categories")
	s.OrderCollection = s.DB.Collection("orders")
}

// EnsureIndexes creates the unique indexes the stores rely on for conflict detection.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	unique := func(field string) mongo.IndexModel {
		return mongo.IndexModel{
			Keys:    bson.D{{Key: field, Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_" + field),
		}
	}

	plan := map[*mongo.Collection][]mongo.IndexModel{
		s.UserCollection: {
			unique("email"),
			{Keys: bson.D{{Key: "phoneNumber", Value: 1}}, Options: options.Index().SetName("phone_number")},
		},
		s.AdminCollection:    {unique("email")},
		s.ProductCollection:  {unique("title")},
		s.CategoryCollection: {unique("title")},
		s.OrderCollection: {
			{
				Keys:    bson.D{{Key: "orderId", Value: 1}},
				Options: options.Index().SetUnique(true).SetSparse(true).SetName("unique_orderId"),
			},
			{Keys: bson.D{{Key: "customerId", Value: 1}}, Options: options.Index().SetName("customer_id")},
		},
	}
	for coll, idxs := range plan {
		if _, err := coll.Indexes().CreateMany(ctx, idxs); err != nil {
			return fmt.Errorf("indexes on %s: %w", coll.Name(), err)
		}
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.Client.Disconnect(ctx)
}

func (s *Store) Transactional() bool { return s.transactions }

// WithTransaction runs fn inside a multi-document transaction when enabled, and
// directly otherwise. Standalone servers do not support transactions.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !s.transactions {
		return fn(ctx)
	}
	sess, err := s.Client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrNotFound
	}
	return oid, nil
}

func findErr(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

func insertErr(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}
