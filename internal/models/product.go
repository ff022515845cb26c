package models

import "gorm.io/gorm"

// Product represents an item in the catalog. Stock is the authoritative
// available quantity; it is only ever reduced through the inventory
// ledger's conditional decrement, never by a direct write.
type Product struct {
	ID          string  `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Name        string  `json:"name" validate:"required,min=3,max=100"`
	Description string  `json:"description" validate:"omitempty,max=500"`
	Price       float64 `json:"price" validate:"required,gt=0"`
	Stock       int     `json:"stock" validate:"gte=0"`
	gorm.Model          // CreatedAt, UpdatedAt, DeletedAt
}
