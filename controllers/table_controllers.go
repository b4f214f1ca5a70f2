package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/cafe-pos/realtime"
	"github.com/yeremiapane/cafe-pos/services"
	"github.com/yeremiapane/cafe-pos/utils"
)

type TableController struct {
	Tables *services.TableService
	Hub    *realtime.Hub
}

func NewTableController(tables *services.TableService, hub *realtime.Hub) *TableController {
	return &TableController{Tables: tables, Hub: hub}
}

// GetAllTables -> menampilkan seluruh meja aktif
func (tc *TableController) GetAllTables(c *gin.Context) {
	tables, err := tc.Tables.ListActive(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of tables", tables)
}

// GetTableByID -> detail satu meja
func (tc *TableController) GetTableByID(c *gin.Context) {
	id, ok := paramID(c, "table_id")
	if !ok {
		return
	}
	table, err := tc.Tables.Get(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table detail", table)
}

// CreateTable -> menambahkan meja baru
func (tc *TableController) CreateTable(c *gin.Context) {
	var req services.TableInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	table, err := tc.Tables.Create(c.Request.Context(), req)
	if err != nil {
		var verr *services.ValidationError
		if errors.As(err, &verr) || errors.Is(err, services.ErrDuplicateCode) {
			respondServiceError(c, err)
			return
		}
		// storage failures on create surface the driver message
		utils.ErrorLogger.WithError(err).Error("create table failed")
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	tc.Hub.AnnounceCreated(table)
	utils.InfoLogger.WithFields(logrus.Fields{"table_id": table.ID, "code": table.Code}).Info("table created")
	utils.RespondJSON(c, http.StatusCreated, "Table created successfully", table)
}

// UpdateTable -> hanya field yang dikirim yang diubah
func (tc *TableController) UpdateTable(c *gin.Context) {
	id, ok := paramID(c, "table_id")
	if !ok {
		return
	}
	var patch services.TablePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	table, err := tc.Tables.Update(c.Request.Context(), id, patch)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	tc.Hub.AnnounceCreated(table)
	utils.RespondJSON(c, http.StatusOK, "Table updated", table)
}

// UpdateTableState -> ubah status meja; available melepas lock meja
func (tc *TableController) UpdateTableState(c *gin.Context) {
	id, ok := paramID(c, "table_id")
	if !ok {
		return
	}
	var body struct {
		State             string          `json:"state"`
		Detail            json.RawMessage `json:"detail"`
		ExpectedUpdatedAt *time.Time      `json:"expectedUpdatedAt"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if body.State == "" {
		utils.RespondError(c, http.StatusBadRequest, errors.New("state is required"))
		return
	}

	table, err := tc.Hub.ApplyTableState(c.Request.Context(), id, body.State, body.Detail, body.ExpectedUpdatedAt)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.InfoLogger.WithFields(logrus.Fields{"table_id": table.ID, "state": table.State}).Info("table state changed")
	utils.RespondJSON(c, http.StatusOK, "Table state updated", table)
}

// DeleteTable -> soft delete, selalu sukses untuk id yang sudah tidak aktif
func (tc *TableController) DeleteTable(c *gin.Context) {
	id, ok := paramID(c, "table_id")
	if !ok {
		return
	}
	if err := tc.Tables.Remove(c.Request.Context(), id); err != nil {
		respondServiceError(c, err)
		return
	}

	tc.Hub.AnnounceRemoved(id)
	utils.InfoLogger.WithField("table_id", id).Info("table deleted")
	utils.RespondJSON(c, http.StatusOK, "Table deleted", gin.H{"id": id})
}

// BulkGenerate -> generate layout meja dari distribusi kapasitas
func (tc *TableController) BulkGenerate(c *gin.Context) {
	var spec services.LayoutSpec
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&spec); err != nil {
			utils.RespondError(c, http.StatusBadRequest, err)
			return
		}
	}

	result, err := tc.Tables.BulkGenerate(c.Request.Context(), spec)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	tc.Hub.AnnounceLayout(result)
	utils.InfoLogger.WithFields(logrus.Fields{
		"created":     len(result.Created),
		"reactivated": len(result.Reactivated),
		"retired":     len(result.Retired),
	}).Info("table layout generated")
	utils.RespondJSON(c, http.StatusOK, "Table layout generated", gin.H{
		"created":     len(result.Created),
		"tables":      result.Created,
		"reactivated": len(result.Reactivated),
		"retired":     len(result.Retired),
	})
}
