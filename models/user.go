package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Email       string             `bson:"email" json:"email"`
	Password    string             `bson:"password" json:"-"`
	PhoneNumber int64              `bson:"phoneNumber" json:"phoneNumber"`
	Cart        []CartLine         `bson:"cart" json:"cart"`
	Orders      []Order            `bson:"orders" json:"orders"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// UserSummary is the listing shape returned to administrators.
type UserSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber int64  `json:"phoneNumber"`
	JoinedAt    string `json:"joinedAt"`
}
