package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/cafe-pos/models"
	"gorm.io/gorm"
)

type failingRecorder struct{ calls int }

func (r *failingRecorder) Record(ctx context.Context, sale *models.Sale) error {
	r.calls++
	return errors.New("disk full")
}

func seedProduct(t *testing.T, db *gorm.DB, id uint, name, price string, stock int) models.Product {
	t.Helper()
	p := models.Product{
		ID:           id,
		Name:         name,
		Category:     "bebidas",
		Price:        decimal.RequireFromString(price),
		Stock:        stock,
		MinimumStock: 2,
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func stockOf(t *testing.T, db *gorm.DB, id uint) models.Product {
	t.Helper()
	var p models.Product
	require.NoError(t, db.First(&p, id).Error)
	return p
}

func TestSaleExactStockEndsOutOfStock(t *testing.T) {
	db := setupTestDB(t)
	svc := NewSaleService(db)
	seedProduct(t, db, 7, "Café con leche", "2.50", 5)

	result, err := svc.Process(context.Background(), SaleRequest{Items: []CartItem{{ProductID: 7, Quantity: 5}}})
	require.NoError(t, err)
	require.Len(t, result.Updated, 1)
	assert.Equal(t, StockUpdate{ID: 7, Name: "Café con leche", Stock: 0}, result.Updated[0])
	assert.True(t, decimal.RequireFromString("12.50").Equal(result.Total))

	p := stockOf(t, db, 7)
	assert.Equal(t, 0, p.Stock)
	assert.Equal(t, models.StockOut, p.StockStatus())

	// the next sale of the same product fails and leaves stock alone
	_, err = svc.Process(context.Background(), SaleRequest{Items: []CartItem{{ProductID: 7, Quantity: 1}}})
	var short *InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, "Café con leche", short.Name)
	assert.Equal(t, 0, short.Available)
	assert.Equal(t, 1, short.Requested)
	assert.Equal(t, 0, stockOf(t, db, 7).Stock)
}

func TestSaleRejectsEmptyOrInvalidCart(t *testing.T) {
	db := setupTestDB(t)
	svc := NewSaleService(db)
	seedProduct(t, db, 1, "Té", "1.20", 10)

	_, err := svc.Process(context.Background(), SaleRequest{})
	assert.ErrorIs(t, err, ErrNoValidItems)

	_, err = svc.Process(context.Background(), SaleRequest{Items: []CartItem{
		{ProductID: 0, Quantity: 2},
		{ProductID: 1, Quantity: 0},
		{ProductID: -4, Quantity: 1},
		{ProductID: 1, Quantity: -1},
	}})
	assert.ErrorIs(t, err, ErrNoValidItems)
	assert.Equal(t, 10, stockOf(t, db, 1).Stock)

	var sales int64
	require.NoError(t, db.Model(&models.Sale{}).Count(&sales).Error)
	assert.Zero(t, sales)
}

func TestSaleDropsInvalidLinesButKeepsValidOnes(t *testing.T) {
	db := setupTestDB(t)
	svc := NewSaleService(db)
	seedProduct(t, db, 1, "Té", "1.20", 10)

	result, err := svc.Process(context.Background(), SaleRequest{Items: []CartItem{
		{ProductID: 0, Quantity: 3},
		{ProductID: 1, Quantity: 2},
	}})
	require.NoError(t, err)
	require.Len(t, result.Lines, 1)
	assert.Equal(t, 8, stockOf(t, db, 1).Stock)
}

func TestSaleRollsBackEveryLineOnFailure(t *testing.T) {
	db := setupTestDB(t)
	svc := NewSaleService(db)
	seedProduct(t, db, 1, "Té", "1.20", 10)
	seedProduct(t, db, 2, "Tostada", "3.00", 1)

	_, err := svc.Process(context.Background(), SaleRequest{Items: []CartItem{
		{ProductID: 1, Quantity: 4},
		{ProductID: 2, Quantity: 2},
	}})
	var short *InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, int64(2), short.ProductID)
	assert.Equal(t, 10, stockOf(t, db, 1).Stock)
	assert.Equal(t, 1, stockOf(t, db, 2).Stock)

	_, err = svc.Process(context.Background(), SaleRequest{Items: []CartItem{
		{ProductID: 1, Quantity: 4},
		{ProductID: 99, Quantity: 1},
	}})
	var missing *ProductNotFoundError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, int64(99), missing.ProductID)
	assert.Equal(t, 10, stockOf(t, db, 1).Stock)
}

func TestSaleRepeatedProductAcrossLines(t *testing.T) {
	db := setupTestDB(t)
	svc := NewSaleService(db)
	seedProduct(t, db, 1, "Té", "1.20", 5)

	result, err := svc.Process(context.Background(), SaleRequest{Items: []CartItem{
		{ProductID: 1, Quantity: 2},
		{ProductID: 1, Quantity: 3},
	}})
	require.NoError(t, err)
	require.Len(t, result.Updated, 1)
	assert.Equal(t, 0, result.Updated[0].Stock)
	assert.Len(t, result.Lines, 2)

	_, err = svc.Process(context.Background(), SaleRequest{Items: []CartItem{
		{ProductID: 1, Quantity: 0},
	}})
	assert.ErrorIs(t, err, ErrNoValidItems)
}

func TestSaleRecordsLogWithMetadata(t *testing.T) {
	db := setupTestDB(t)
	svc := NewSaleService(db)
	seedProduct(t, db, 1, "Té", "1.20", 10)
	seedProduct(t, db, 2, "Tostada", "3.00", 10)

	employee := uint(4)
	employeeName := "Luis"
	tableID := uint(3)
	tableCode := "MESA-003"
	result, err := svc.Process(context.Background(), SaleRequest{
		Items:        []CartItem{{ProductID: 2, Quantity: 1}, {ProductID: 1, Quantity: 3}},
		EmployeeID:   &employee,
		EmployeeName: &employeeName,
		TableID:      &tableID,
		TableCode:    &tableCode,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Sale)

	sales, err := svc.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	sale := sales[0]
	assert.Equal(t, "cash", sale.PaymentMethod)
	assert.Equal(t, "MESA-003", *sale.TableCode)
	assert.Equal(t, uint(4), *sale.EmployeeID)
	assert.Nil(t, sale.CustomerName)
	assert.True(t, decimal.RequireFromString("6.60").Equal(sale.Total))
	assert.True(t, sale.Total.Equal(sale.ComputedTotal))
	require.Len(t, sale.Items, 2)
	assert.Equal(t, "Tostada", sale.Items[0].Name)
	assert.Equal(t, "Té", sale.Items[1].Name)
	assert.True(t, decimal.RequireFromString("3.60").Equal(sale.Items[1].Subtotal))
}

func TestSaleDeclaredTotalWins(t *testing.T) {
	db := setupTestDB(t)
	svc := NewSaleService(db)
	seedProduct(t, db, 1, "Té", "1.20", 10)

	declared := decimal.RequireFromString("1.00")
	result, err := svc.Process(context.Background(), SaleRequest{
		Items:         []CartItem{{ProductID: 1, Quantity: 2}},
		Total:         &declared,
		PaymentMethod: "card",
	})
	require.NoError(t, err)
	assert.True(t, declared.Equal(result.Total))
	assert.True(t, decimal.RequireFromString("2.40").Equal(result.ComputedTotal))

	stored := result.Sale
	require.NotNil(t, stored)
	assert.Equal(t, "card", stored.PaymentMethod)
	assert.True(t, declared.Equal(stored.Total))
	assert.True(t, decimal.RequireFromString("2.40").Equal(stored.ComputedTotal))
}

func TestSaleLogFailureDoesNotUndoStock(t *testing.T) {
	db := setupTestDB(t)
	recorder := &failingRecorder{}
	svc := &SaleService{DB: db, Recorder: recorder}
	seedProduct(t, db, 1, "Té", "1.20", 3)

	result, err := svc.Process(context.Background(), SaleRequest{Items: []CartItem{{ProductID: 1, Quantity: 2}}})
	require.NoError(t, err)
	assert.Nil(t, result.Sale)
	assert.Equal(t, 1, recorder.calls)
	assert.Equal(t, 1, result.Updated[0].Stock)
	assert.Equal(t, 1, stockOf(t, db, 1).Stock)
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	db := setupTestDB(t)
	svc := NewSaleService(db)
	seedProduct(t, db, 7, "Croissant", "1.80", 5)

	const buyers = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		committed int
		rejected  int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Process(context.Background(), SaleRequest{Items: []CartItem{{ProductID: 7, Quantity: 1}}})
			mu.Lock()
			defer mu.Unlock()
			var short *InsufficientStockError
			switch {
			case err == nil:
				committed++
			case errors.As(err, &short):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, committed)
	assert.Equal(t, buyers-5, rejected)
	p := stockOf(t, db, 7)
	assert.Equal(t, 0, p.Stock)
}

func TestStockStatusLabels(t *testing.T) {
	assert.Equal(t, models.StockOut, models.Product{Stock: 0, MinimumStock: 3}.StockStatus())
	assert.Equal(t, models.StockLow, models.Product{Stock: 2, MinimumStock: 3}.StockStatus())
	assert.Equal(t, models.StockAvailable, models.Product{Stock: 3, MinimumStock: 3}.StockStatus())
}
