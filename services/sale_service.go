package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/cafe-pos/models"
	"github.com/yeremiapane/cafe-pos/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultPaymentMethod = "cash"

type CartItem struct {
	ProductID int64 `json:"id"`
	Quantity  int   `json:"cantidad"`
}

type SaleRequest struct {
	Items         []CartItem       `json:"items"`
	EmployeeID    *uint            `json:"employeeId"`
	EmployeeName  *string          `json:"employeeName"`
	TableID       *uint            `json:"tableId"`
	TableCode     *string          `json:"tableCode"`
	CustomerName  *string          `json:"customerName"`
	PaymentMethod string           `json:"paymentMethod"`
	Total         *decimal.Decimal `json:"total"`
	// CloseTable frees the sale's table once the sale is committed.
	CloseTable bool `json:"closeTable"`
}

type StockUpdate struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Stock int    `json:"stock"`
}

type SaleResult struct {
	Updated       []StockUpdate
	Lines         []models.SaleItem
	Total         decimal.Decimal
	ComputedTotal decimal.Decimal
	// Sale is nil when the log record could not be written.
	Sale *models.Sale
}

// SaleRecorder persists the sale log after stock has been committed.
type SaleRecorder interface {
	Record(ctx context.Context, sale *models.Sale) error
}

type GormSaleRecorder struct {
	DB *gorm.DB
}

func (r *GormSaleRecorder) Record(ctx context.Context, sale *models.Sale) error {
	return r.DB.WithContext(ctx).Create(sale).Error
}

type SaleService struct {
	DB       *gorm.DB
	Recorder SaleRecorder
}

func NewSaleService(db *gorm.DB) *SaleService {
	return &SaleService{DB: db, Recorder: &GormSaleRecorder{DB: db}}
}

// ValidItems drops lines without a positive product id and quantity.
func ValidItems(items []CartItem) []CartItem {
	valid := make([]CartItem, 0, len(items))
	for _, it := range items {
		if it.ProductID > 0 && it.Quantity > 0 {
			valid = append(valid, it)
		}
	}
	return valid
}

// Process decrements stock for every cart line in one transaction, then
// writes the sale log. Any missing product or short stock rolls back the
// whole cart; a failed log write does not.
func (s *SaleService) Process(ctx context.Context, req SaleRequest) (*SaleResult, error) {
	items := ValidItems(req.Items)
	if len(items) == 0 {
		utils.SalesProcessedTotal.WithLabelValues("invalid").Inc()
		return nil, ErrNoValidItems
	}

	var (
		lines    []models.SaleItem
		updated  []StockUpdate
		computed decimal.Decimal
		units    int
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lines = make([]models.SaleItem, 0, len(items))
		updated = make([]StockUpdate, 0, len(items))
		computed = decimal.Zero
		units = 0
		seen := map[uint]int{}

		for i, item := range items {
			var product models.Product
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&product, item.ProductID).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &ProductNotFoundError{ProductID: item.ProductID}
			}
			if err != nil {
				return fmt.Errorf("lock product %d: %w", item.ProductID, err)
			}
			if product.Stock < item.Quantity {
				return &InsufficientStockError{
					ProductID: item.ProductID,
					Name:      product.Name,
					Available: product.Stock,
					Requested: item.Quantity,
				}
			}

			// guarded decrement: drivers without row locks (sqlite) still cannot oversell
			res := tx.Model(&models.Product{}).
				Where("id = ? AND stock >= ?", product.ID, item.Quantity).
				Update("stock", gorm.Expr("stock - ?", item.Quantity))
			if res.Error != nil {
				return fmt.Errorf("decrement product %d: %w", product.ID, res.Error)
			}
			if res.RowsAffected == 0 {
				return &InsufficientStockError{
					ProductID: item.ProductID,
					Name:      product.Name,
					Available: product.Stock,
					Requested: item.Quantity,
				}
			}

			newStock := product.Stock - item.Quantity
			subtotal := product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
			lines = append(lines, models.SaleItem{
				Position:  i,
				ProductID: product.ID,
				Name:      product.Name,
				UnitPrice: product.Price,
				Quantity:  item.Quantity,
				Subtotal:  subtotal,
			})
			computed = computed.Add(subtotal)
			units += item.Quantity

			if idx, ok := seen[product.ID]; ok {
				updated[idx].Stock = newStock
			} else {
				seen[product.ID] = len(updated)
				updated = append(updated, StockUpdate{ID: product.ID, Name: product.Name, Stock: newStock})
			}
		}
		return nil
	})
	if err != nil {
		utils.SalesProcessedTotal.WithLabelValues(failureLabel(err)).Inc()
		return nil, err
	}
	utils.SalesProcessedTotal.WithLabelValues("committed").Inc()
	utils.UnitsSoldTotal.Add(float64(units))

	result := &SaleResult{
		Updated:       updated,
		Lines:         lines,
		Total:         computed,
		ComputedTotal: computed,
	}
	if req.Total != nil {
		result.Total = *req.Total
		if !req.Total.Equal(computed) {
			utils.InfoLogger.WithFields(logrus.Fields{
				"declared": req.Total.String(),
				"computed": computed.String(),
			}).Warn("sale total declared by client differs from line subtotals")
		}
	}

	sale := &models.Sale{
		EmployeeID:    req.EmployeeID,
		EmployeeName:  req.EmployeeName,
		TableID:       req.TableID,
		TableCode:     req.TableCode,
		CustomerName:  req.CustomerName,
		PaymentMethod: paymentMethodOrDefault(req.PaymentMethod),
		Total:         result.Total,
		ComputedTotal: computed,
		Items:         lines,
	}
	// the stock is already committed; the log write must not be cut short by the caller going away
	if err := s.Recorder.Record(context.WithoutCancel(ctx), sale); err != nil {
		utils.SaleLogFailuresTotal.Inc()
		utils.ErrorLogger.WithError(err).Warn("sale committed but sale log write failed")
	} else {
		result.Sale = sale
	}
	return result, nil
}

// ListRecent returns the newest sales with their lines.
func (s *SaleService) ListRecent(ctx context.Context, limit int) ([]models.Sale, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var sales []models.Sale
	err := s.DB.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&sales).Error
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	return sales, nil
}

func paymentMethodOrDefault(method string) string {
	method = strings.TrimSpace(method)
	if method == "" {
		return defaultPaymentMethod
	}
	return method
}

func failureLabel(err error) string {
	var notFound *ProductNotFoundError
	var short *InsufficientStockError
	switch {
	case errors.As(err, &notFound):
		return "product_not_found"
	case errors.As(err, &short):
		return "insufficient_stock"
	default:
		return "error"
	}
}
