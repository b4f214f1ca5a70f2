package services

import (
	"errors"
	"fmt"
)

var (
	ErrTableNotFound = errors.New("table not found")
	ErrDuplicateCode = errors.New("table code already exists")
	ErrStaleTable    = errors.New("table was modified by another user")
	ErrNoValidItems  = errors.New("no valid items")
)

// ValidationError -> field wajib hilang atau formatnya salah
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

type InsufficientStockError struct {
	ProductID int64
	Name      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d", e.Name, e.Available, e.Requested)
}
