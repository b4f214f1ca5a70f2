package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/cafe-pos/models"
	"github.com/yeremiapane/cafe-pos/utils"
	"gorm.io/gorm"
)

type ProductController struct {
	DB *gorm.DB
}

func NewProductController(db *gorm.DB) *ProductController {
	return &ProductController{DB: db}
}

type productView struct {
	models.Product
	Status string `json:"status"`
}

func toProductView(p models.Product) productView {
	return productView{Product: p, Status: p.StockStatus()}
}

// GetAllProducts -> daftar produk dengan status stok, filter ?category=
func (pc *ProductController) GetAllProducts(c *gin.Context) {
	query := pc.DB.WithContext(c.Request.Context()).Order("name ASC")
	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}

	var products []models.Product
	if err := query.Find(&products).Error; err != nil {
		utils.ErrorLogger.WithError(err).Error("list products failed")
		utils.RespondError(c, http.StatusInternalServerError, errInternalServer)
		return
	}

	views := make([]productView, 0, len(products))
	for _, p := range products {
		views = append(views, toProductView(p))
	}
	utils.RespondJSON(c, http.StatusOK, "List of products", views)
}

func (pc *ProductController) GetProductByID(c *gin.Context) {
	id, ok := paramID(c, "product_id")
	if !ok {
		return
	}

	var product models.Product
	err := pc.DB.WithContext(c.Request.Context()).First(&product, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.RespondError(c, http.StatusNotFound, errors.New("product not found"))
		return
	}
	if err != nil {
		utils.ErrorLogger.WithError(err).Error("get product failed")
		utils.RespondError(c, http.StatusInternalServerError, errInternalServer)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Product detail", toProductView(product))
}
