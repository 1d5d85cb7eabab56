package models

import (
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Order is stored twice: as a ledger entry in the orders collection and as an
// embedded copy inside the owning user's orders array. OrderID joins the two.
type Order struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrderID             string             `bson:"orderId,omitempty" json:"orderId,omitempty"`
	TotalAmount         float64            `bson:"totalAmount" json:"totalAmount"`
	ProductsOrdered     []LineItem         `bson:"productsOrdered" json:"productsOrdered"`
	Delivered           bool               `bson:"delivered" json:"delivered"`
	CustomerID          string             `bson:"customerId" json:"customerId"`
	CustomerName        string             `bson:"customerName" json:"customerName"`
	CustomerEmail       string             `bson:"customerEmail" json:"customerEmail"`
	CustomerPhoneNumber int64              `bson:"customerPhoneNumber" json:"customerPhoneNumber"`
	CustomerAddress     string             `bson:"customerAddress" json:"customerAddress"`
	CustomerLocation    Location           `bson:"customerLocation" json:"customerLocation"`
	CreatedAt           time.Time          `bson:"createdAt" json:"createdAt"`
	DeliveredAt         *time.Time         `bson:"deliveredAt,omitempty" json:"deliveredAt,omitempty"`
}

type LineItem struct {
	Title    string  `bson:"title" json:"title"`
	Quantity int     `bson:"quantity" json:"quantity"`
	Price    float64 `bson:"price" json:"price"`
}

// UnmarshalJSON also accepts "qty" for the quantity, as older clients send it.
func (li *LineItem) UnmarshalJSON(data []byte) error {
	type plain LineItem
	aux := struct {
		*plain
		Qty *int `json:"qty"`
	}{plain: (*plain)(li)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if li.Quantity == 0 && aux.Qty != nil {
		li.Quantity = *aux.Qty
	}
	return nil
}

type Location struct {
	Lat         float64 `bson:"lat" json:"lat"`
	Lng         float64 `bson:"lng" json:"lng"`
	Description string  `bson:"description,omitempty" json:"description,omitempty"`
}

// FirstTitle returns the title of the first ordered product, or "" for an empty order.
func (o Order) FirstTitle() string {
	if len(o.ProductsOrdered) == 0 {
		return ""
	}
	return o.ProductsOrdered[0].Title
}

// Matches reports whether other is the same order. The shared OrderID decides
// when both carry one; otherwise first product title and total amount must agree.
func (o Order) Matches(other Order) bool {
	if o.OrderID != "" && other.OrderID != "" {
		return o.OrderID == other.OrderID
	}
	return o.FirstTitle() == other.FirstTitle() && o.TotalAmount == other.TotalAmount
}
