package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sale is the append-only checkout log. Rows are inserted once and never updated.
type Sale struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	EmployeeID    *uint           `gorm:"index" json:"employeeId"`
	EmployeeName  *string         `gorm:"type:varchar(255)" json:"employeeName"`
	TableID       *uint           `gorm:"index" json:"tableId"`
	TableCode     *string         `gorm:"type:varchar(20)" json:"tableCode"`
	CustomerName  *string         `gorm:"type:varchar(255)" json:"customerName"`
	PaymentMethod string          `gorm:"type:varchar(30);not null;default:'cash'" json:"paymentMethod"`
	Total         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
	ComputedTotal decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"computedTotal"`
	Items         []SaleItem      `gorm:"foreignKey:SaleID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"items"`
	CreatedAt     time.Time       `gorm:"not null;index" json:"createdAt"`
}

type SaleItem struct {
	ID        uint            `gorm:"primaryKey" json:"-"`
	SaleID    uint            `gorm:"not null;index" json:"-"`
	Position  int             `gorm:"not null" json:"-"`
	ProductID uint            `gorm:"not null" json:"productId"`
	Name      string          `gorm:"type:varchar(255);not null" json:"name"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unitPrice"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	Subtotal  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
}
