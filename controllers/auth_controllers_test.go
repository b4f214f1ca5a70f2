package controllers_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/cafe-pos/registry"
)

func TestLoginOneSessionPerStaff(t *testing.T) {
	app := setupApp(t)

	first := app.login("ana@cafe.test")
	assert.Equal(t, "staff", first.Role)
	assert.Equal(t, "Ana", first.Name)

	w, env := app.do(http.MethodPost, "/login", "", gin.H{"email": "ana@cafe.test", "password": testPassword})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "account already in use", env.Message)

	w, _ = app.do(http.MethodPost, "/logout", first.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	second := app.login("ana@cafe.test")
	assert.NotEqual(t, first.Token, second.Token)

	// the old token died with its session
	w, _ = app.do(http.MethodGet, "/tables", first.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w, _ = app.do(http.MethodGet, "/tables", second.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	app := setupApp(t)

	w, env := app.do(http.MethodPost, "/login", "", gin.H{"email": "ana@cafe.test", "password": "salah"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid credentials", env.Message)

	w, _ = app.do(http.MethodPost, "/login", "", gin.H{"email": "nobody@cafe.test", "password": testPassword})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = app.do(http.MethodPost, "/login", "", gin.H{"email": "ana@cafe.test"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// a failed attempt must not leave a session behind
	app.login("ana@cafe.test")
}

func TestAdminRevokesStuckSession(t *testing.T) {
	app := setupApp(t)
	admin := app.login("admin@cafe.test")
	ana := app.login("ana@cafe.test")

	path := fmt.Sprintf("/admin/sessions/%d/revoke", ana.StaffID)
	w, _ := app.do(http.MethodPost, path, ana.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env := app.do(http.MethodPost, path, admin.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"revoked":true`)

	w, _ = app.do(http.MethodGet, "/tables", ana.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	app.login("ana@cafe.test")

	w, _ = app.do(http.MethodPost, "/admin/sessions/abc/revoke", admin.Token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOnlineUsersRequiresSession(t *testing.T) {
	app := setupApp(t)

	w, _ := app.do(http.MethodGet, "/users/online", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	ana := app.login("ana@cafe.test")
	w, env := app.do(http.MethodGet, "/users/online", ana.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var online []registry.OnlineUser
	require.NoError(t, json.Unmarshal(env.Data, &online))
	// logged in but no channel connection yet
	assert.Empty(t, online)
}
