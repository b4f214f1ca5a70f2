package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	TableAvailable = "available"
	TableOccupied  = "occupied"
	// TableReserved is only accepted on input and stored as available.
	TableReserved = "reserved"

	// TableDeleted is never stored; it is the state announced when a table is removed.
	TableDeleted = "deleted"
)

type Table struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Code      string          `gorm:"type:varchar(20);uniqueIndex;not null" json:"code"`
	Number    int             `gorm:"not null;index" json:"number"`
	Name      string          `gorm:"type:varchar(100)" json:"name"`
	Capacity  int             `gorm:"not null;default:4" json:"capacity"`
	Zone      string          `gorm:"type:varchar(30);not null;default:'interior'" json:"zone"`
	State     string          `gorm:"type:varchar(20);not null;default:'available'" json:"state"`
	Detail    *datatypes.JSON `json:"detail"`
	Active    bool            `gorm:"not null;default:true;index" json:"active"`
	CreatedAt time.Time       `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time       `gorm:"not null" json:"updatedAt"`
}

// HasDetail reports whether the table carries an occupancy payload.
func (t *Table) HasDetail() bool {
	return t.Detail != nil && len(*t.Detail) > 0 && string(*t.Detail) != "null"
}
