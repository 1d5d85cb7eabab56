package database

import (
	"context"

	"shopapi/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (s *Store) CreateCategory(ctx context.Context, c *models.Category) error {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	_, err := s.CategoryCollection.InsertOne(ctx, c)
	return insertErr(err)
}

func (s *Store) CategoryByTitle(ctx context.Context, title string) (*models.Category, error) {
	var c models.Category
	if err := s.CategoryCollection.FindOne(ctx, bson.M{"title": title}).Decode(&c); err != nil {
		return nil, findErr(err)
	}
	return &c, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	cursor, err := s.CategoryCollection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "title", Value: 1}}))
	if err != nil {
		return nil, err
	}
	categories := []models.Category{}
	if err := cursor.All(ctx, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}
