package models

import "time"

// OrderLine is a single requested (product, quantity) pair of a purchase.
// It is validated and consumed by the order service, never persisted.
type OrderLine struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

// OrderItem is a committed line of an order. Price is the unit price
// captured when the stock was reserved; later catalog price changes do
// not alter it.
type OrderItem struct {
	OrderID   string  `json:"-" gorm:"primaryKey;type:varchar(36)"`
	ProductID string  `json:"product_id" gorm:"primaryKey;type:varchar(36)"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// Order is a committed purchase. TotalAmount always equals the sum of
// Quantity*Price over Items.
type Order struct {
	ID          string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID      string      `json:"user_id" gorm:"index;type:varchar(36)"`
	Items       []OrderItem `json:"items" gorm:"foreignKey:OrderID"`
	TotalAmount float64     `json:"total_amount"`
	CreatedAt   time.Time   `json:"created_at"`
}
