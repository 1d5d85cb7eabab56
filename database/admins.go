package database

import (
	"context"

	"shopapi/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (s *Store) CreateAdmin(ctx context.Context, a *models.Admin) error {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	_, err := s.AdminCollection.InsertOne(ctx, a)
	return insertErr(err)
}

func (s *Store) AdminByID(ctx context.Context, id string) (*models.Admin, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var a models.Admin
	if err := s.AdminCollection.FindOne(ctx, bson.M{"_id": oid}).Decode(&a); err != nil {
		return nil, findErr(err)
	}
	return &a, nil
}

func (s *Store) AdminByEmail(ctx context.Context, email string) (*models.Admin, error) {
	var a models.Admin
	if err := s.AdminCollection.FindOne(ctx, bson.M{"email": email}).Decode(&a); err != nil {
		return nil, findErr(err)
	}
	return &a, nil
}
