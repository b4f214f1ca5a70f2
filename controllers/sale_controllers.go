package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/cafe-pos/middlewares"
	"github.com/yeremiapane/cafe-pos/models"
	"github.com/yeremiapane/cafe-pos/realtime"
	"github.com/yeremiapane/cafe-pos/services"
	"github.com/yeremiapane/cafe-pos/utils"
)

type SaleController struct {
	Sales *services.SaleService
	Hub   *realtime.Hub
}

func NewSaleController(sales *services.SaleService, hub *realtime.Hub) *SaleController {
	return &SaleController{Sales: sales, Hub: hub}
}

// ProcessSale -> checkout keranjang: potong stok lalu catat penjualan
func (sc *SaleController) ProcessSale(c *gin.Context) {
	var req services.SaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if req.EmployeeID == nil {
		if staffID := c.GetUint(middlewares.CtxStaffID); staffID != 0 {
			name := c.GetString(middlewares.CtxStaffName)
			req.EmployeeID = &staffID
			req.EmployeeName = &name
		}
	}

	result, err := sc.Sales.Process(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	if req.CloseTable && req.TableID != nil {
		if _, err := sc.Hub.ApplyTableState(c.Request.Context(), *req.TableID, models.TableAvailable, nil, nil); err != nil {
			utils.ErrorLogger.WithError(err).WithField("table_id", *req.TableID).Warn("sale committed but table could not be freed")
		}
	}

	var saleID *uint
	if result.Sale != nil {
		saleID = &result.Sale.ID
	}
	utils.InfoLogger.WithFields(logrus.Fields{
		"lines": len(result.Lines),
		"total": result.Total.String(),
	}).Info("sale processed")
	utils.RespondJSON(c, http.StatusOK, "Sale processed", gin.H{
		"success": true,
		"updated": result.Updated,
		"saleId":  saleID,
		"total":   result.Total,
	})
}

// GetRecentSales -> daftar penjualan terbaru beserta item
func (sc *SaleController) GetRecentSales(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	sales, err := sc.Sales.ListRecent(c.Request.Context(), limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of sales", sales)
}
