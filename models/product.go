package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const PlaceholderImage = "https://cdn.pixabay.com/photo/2016/06/07/17/15/yogurt-1442034__340.jpg"

type Product struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title      string             `bson:"title" json:"title"`
	Price      float64            `bson:"price" json:"price"`
	Category   string             `bson:"category" json:"category"`
	IsDiscount bool               `bson:"isDiscount" json:"isDiscount"`
	IsFinished bool               `bson:"isFinished" json:"isFinished"`
	NewPrice   float64            `bson:"newPrice" json:"newPrice"`
	Image      string             `bson:"image" json:"image"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ProductEdit carries the fields an administrator may replace on an existing product.
type ProductEdit struct {
	Title      string
	IsDiscount bool
	IsFinished bool
	NewPrice   float64
}
