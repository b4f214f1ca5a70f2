package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/cafe-pos/middlewares"
	"github.com/yeremiapane/cafe-pos/models"
	"github.com/yeremiapane/cafe-pos/realtime"
	"github.com/yeremiapane/cafe-pos/registry"
	"github.com/yeremiapane/cafe-pos/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var errInvalidCredentials = errors.New("invalid credentials")

type AuthController struct {
	DB       *gorm.DB
	Presence *registry.Presence
	Hub      *realtime.Hub
	Secret   []byte
}

func NewAuthController(db *gorm.DB, presence *registry.Presence, hub *realtime.Hub, secret []byte) *AuthController {
	return &AuthController{DB: db, Presence: presence, Hub: hub, Secret: secret}
}

// Login -> satu sesi aktif per staff; login kedua ditolak sampai logout
func (ac *AuthController) Login(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var staff models.Staff
	email := strings.ToLower(strings.TrimSpace(input.Email))
	err := ac.DB.WithContext(c.Request.Context()).Where("email = ? AND active = ?", email, true).First(&staff).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			utils.ErrorLogger.WithError(err).Error("staff lookup failed")
		}
		utils.RespondError(c, http.StatusUnauthorized, errInvalidCredentials)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(staff.Password), []byte(input.Password)); err != nil {
		utils.RespondError(c, http.StatusUnauthorized, errInvalidCredentials)
		return
	}

	sessionID, err := ac.Presence.Login(staff.ID)
	if err != nil {
		utils.InfoLogger.WithField("staff_id", staff.ID).Warn("login rejected: session already active")
		respondServiceError(c, err)
		return
	}
	token, err := utils.GenerateSessionToken(ac.Secret, staff.ID, sessionID, staff.Role, staff.Name)
	if err != nil {
		ac.Presence.Logout(staff.ID, sessionID)
		utils.ErrorLogger.WithError(err).Error("sign session token")
		utils.RespondError(c, http.StatusInternalServerError, errInternalServer)
		return
	}

	utils.InfoLogger.WithFields(logrus.Fields{"staff_id": staff.ID, "role": staff.Role}).Info("login successful")
	utils.RespondJSON(c, http.StatusOK, "Login successful", gin.H{
		"token":   token,
		"staffId": staff.ID,
		"role":    strings.ToLower(staff.Role),
		"name":    staff.Name,
	})
}

// Logout -> hapus sesi aktif dan putuskan koneksi realtime milik staff
func (ac *AuthController) Logout(c *gin.Context) {
	staffID := c.GetUint(middlewares.CtxStaffID)
	sessionID := c.GetString(middlewares.CtxSessionID)

	if ac.Presence.Logout(staffID, sessionID) {
		ac.Hub.DisconnectStaff(staffID)
	}
	utils.InfoLogger.WithField("staff_id", staffID).Info("logout")
	utils.RespondJSON(c, http.StatusOK, "Logout successful", nil)
}

// RevokeSession -> admin membersihkan sesi yang tertinggal
func (ac *AuthController) RevokeSession(c *gin.Context) {
	staffID, ok := paramID(c, "staff_id")
	if !ok {
		return
	}
	revoked := ac.Presence.Revoke(staffID)
	if revoked {
		ac.Hub.DisconnectStaff(staffID)
	}
	utils.InfoLogger.WithFields(logrus.Fields{
		"staff_id": staffID,
		"by":       c.GetUint(middlewares.CtxStaffID),
		"revoked":  revoked,
	}).Info("session revoke requested")
	utils.RespondJSON(c, http.StatusOK, "Session revoked", gin.H{"staffId": staffID, "revoked": revoked})
}

func (ac *AuthController) GetOnlineUsers(c *gin.Context) {
	utils.RespondJSON(c, http.StatusOK, "Online users", ac.Presence.Online())
}
