package controllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/cafe-pos/config"
	"github.com/yeremiapane/cafe-pos/database"
	"github.com/yeremiapane/cafe-pos/models"
	"github.com/yeremiapane/cafe-pos/router"
	"github.com/yeremiapane/cafe-pos/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const testPassword = "rahasia123"

func init() {
	gin.SetMode(gin.TestMode)
	utils.InitLogger("error")
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testApp struct {
	t      *testing.T
	db     *gorm.DB
	router *gin.Engine
}

// setupApp -> router lengkap di atas sqlite in-memory, satu admin dan dua staff
func setupApp(t *testing.T) *testApp {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := database.Open("sqlite", dsn)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	hashed, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	staff := []models.Staff{
		{Name: "Admin", Email: "admin@cafe.test", Password: string(hashed), Role: "admin", Active: true},
		{Name: "Ana", Email: "ana@cafe.test", Password: string(hashed), Role: "staff", Active: true},
		{Name: "Bea", Email: "bea@cafe.test", Password: string(hashed), Role: "staff", Active: true},
	}
	require.NoError(t, db.Create(&staff).Error)

	cfg := config.Config{
		SessionSecret:   []byte("controller-test-secret"),
		AllowedOrigin:   "*",
		RateLimitRPS:    1000,
		RateLimitBurst:  1000,
		LoginRatePerMin: 1000,
	}
	return &testApp{t: t, db: db, router: router.SetupRouter(db, cfg)}
}

func (a *testApp) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

type loginData struct {
	Token   string `json:"token"`
	StaffID uint   `json:"staffId"`
	Role    string `json:"role"`
	Name    string `json:"name"`
}

func (a *testApp) login(email string) loginData {
	a.t.Helper()
	w, env := a.do(http.MethodPost, "/login", "", gin.H{"email": email, "password": testPassword})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	var data loginData
	require.NoError(a.t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(a.t, data.Token)
	return data
}

func (a *testApp) product(id uint, name, price string, stock, minimum int) {
	a.t.Helper()
	require.NoError(a.t, a.db.Create(&models.Product{
		ID:           id,
		Name:         name,
		Category:     "cafetería",
		Price:        decimal.RequireFromString(price),
		Stock:        stock,
		MinimumStock: minimum,
	}).Error)
}

func (a *testApp) createTable(adminToken, code string) models.Table {
	a.t.Helper()
	w, env := a.do(http.MethodPost, "/tables", adminToken, gin.H{"code": code, "number": 3, "name": "Mesa 3"})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	var table models.Table
	require.NoError(a.t, json.Unmarshal(env.Data, &table))
	return table
}
