package database

import (
	"context"
	"time"

	"shopapi/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	_, err := s.ProductCollection.InsertOne(ctx, p)
	return insertErr(err)
}

func (s *Store) ProductByID(ctx context.Context, id string) (*models.Product, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var p models.Product
	if err := s.ProductCollection.FindOne(ctx, bson.M{"_id": oid}).Decode(&p); err != nil {
		return nil, findErr(err)
	}
	return &p, nil
}

func (s *Store) ProductByTitle(ctx context.Context, title string) (*models.Product, error) {
	var p models.Product
	if err := s.ProductCollection.FindOne(ctx, bson.M{"title": title}).Decode(&p); err != nil {
		return nil, findErr(err)
	}
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	cursor, err := s.ProductCollection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	products := []models.Product{}
	if err := cursor.All(ctx, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) UpdateProduct(ctx context.Context, id string, edit models.ProductEdit, at time.Time) (*models.Product, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	update := bson.M{"$set": bson.M{
		"title":      edit.Title,
		"isDiscount": edit.IsDiscount,
		"isFinished": edit.IsFinished,
		"newPrice":   edit.NewPrice,
		"updatedAt":  at,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Product
	err = s.ProductCollection.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&updated)
	if err != nil {
		return nil, insertErr(findErr(err))
	}
	return &updated, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		// Nothing with that id can exist.
		return nil
	}
	_, err = s.ProductCollection.DeleteOne(ctx, bson.M{"_id": oid})
	return err
}
