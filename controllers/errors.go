package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/cafe-pos/registry"
	"github.com/yeremiapane/cafe-pos/services"
	"github.com/yeremiapane/cafe-pos/utils"
)

var (
	ErrNoPermission   = errors.New("you don't have permission to perform this action")
	ErrInvalidID      = errors.New("invalid id")
	errInternalServer = errors.New("internal server error")
)

// respondServiceError -> terjemahkan error service ke status HTTP
func respondServiceError(c *gin.Context, err error) {
	var (
		verr     *services.ValidationError
		notFound *services.ProductNotFoundError
		short    *services.InsufficientStockError
	)
	switch {
	case errors.As(err, &verr), errors.Is(err, services.ErrNoValidItems):
		utils.RespondError(c, http.StatusBadRequest, err)
	case errors.As(err, &short):
		utils.RespondErrorData(c, http.StatusBadRequest, err, gin.H{
			"productId": short.ProductID,
			"name":      short.Name,
			"available": short.Available,
			"requested": short.Requested,
		})
	case errors.As(err, &notFound):
		utils.RespondErrorData(c, http.StatusNotFound, err, gin.H{"productId": notFound.ProductID})
	case errors.Is(err, services.ErrTableNotFound):
		utils.RespondError(c, http.StatusNotFound, err)
	case errors.Is(err, services.ErrDuplicateCode),
		errors.Is(err, services.ErrStaleTable),
		errors.Is(err, registry.ErrSessionConflict):
		utils.RespondError(c, http.StatusConflict, err)
	case errors.Is(err, registry.ErrLockedByAnother), errors.Is(err, registry.ErrNotLockHolder):
		utils.RespondError(c, http.StatusForbidden, err)
	default:
		utils.ErrorLogger.WithError(err).WithField("path", c.FullPath()).Error("unhandled service error")
		utils.RespondError(c, http.StatusInternalServerError, errInternalServer)
	}
}

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		utils.RespondError(c, http.StatusBadRequest, ErrInvalidID)
		return 0, false
	}
	return uint(id), true
}
