package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StockOut       = "Out of Stock"
	StockLow       = "Low Stock"
	StockAvailable = "Available"
)

type Product struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	Name         string          `gorm:"type:varchar(255);not null" json:"name"`
	Category     string          `gorm:"type:varchar(100)" json:"category"`
	Price        decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Stock        int             `gorm:"not null;default:0" json:"stock"`
	MinimumStock int             `gorm:"not null;default:0" json:"minimumStock"`
	Description  string          `gorm:"type:text" json:"description"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// StockStatus -> derived label, never stored
func (p Product) StockStatus() string {
	switch {
	case p.Stock <= 0:
		return StockOut
	case p.Stock < p.MinimumStock:
		return StockLow
	default:
		return StockAvailable
	}
}
