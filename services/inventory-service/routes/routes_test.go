package routes_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aredondocharro/ClothingStore-sub001/services/common/auth"
	apperrors "github.com/aredondocharro/ClothingStore-sub001/services/common/errors"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/controllers"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/models"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/repository"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/routes"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/services"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "routes-test-secret"

func bearer(t *testing.T, role string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "caller", "role": role, "typ": "access", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return "Bearer " + tok
}

func newServer() *gin.Engine {
	gin.SetMode(gin.TestMode)
	deps := services.Dependencies{Store: repository.NewMemoryStore()}
	ctrl := controllers.NewInventoryController(services.NewItemService(deps), services.NewReservationService(deps))
	r := gin.New()
	r.Use(apperrors.ErrorMiddleware())
	routes.RegisterRoutes(r, ctrl, auth.NewTokenValidator(secret))
	return r
}

func call(r http.Handler, method, path, authz, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestReservationLifecycleOverHTTP(t *testing.T) {
	r := newServer()
	admin, svc := bearer(t, "admin"), bearer(t, "service")

	assert.Equal(t, http.StatusOK, call(r, http.MethodGet, "/health", "", "").Code)

	create := `{"sku":"tee-wht-s","name":"Tee","category":"TOPS","gender":"WOMEN","size":"S","fabric":"COTTON",
		"price":{"amount":"15.00","currency":"eur"},"initial_on_hand":5}`
	assert.Equal(t, http.StatusForbidden, call(r, http.MethodPost, "/inventory/items", svc, create).Code)
	assert.Equal(t, http.StatusUnauthorized, call(r, http.MethodPost, "/inventory/items", "", create).Code)

	w := call(r, http.MethodPost, "/inventory/items", admin, create)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var item models.InventoryItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &item))
	assert.Equal(t, "TEE-WHT-S", item.SKU)
	base := "/inventory/items/" + item.ID.String()

	w = call(r, http.MethodPost, base+"/reservations", svc, `{"reference":"ORD-1","quantity":4}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = call(r, http.MethodPost, base+"/reservations", svc, `{"reference":"ORD-2","quantity":2}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), controllers.ReasonInsufficientStock)

	w = call(r, http.MethodPost, base+"/reservations/ORD-1/consume", svc, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &item))
	assert.Equal(t, 1, item.Stock.OnHand())
	assert.Zero(t, item.Stock.Reserved())

	w = call(r, http.MethodPost, base+"/reservations/ORD-1/release", svc, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), controllers.ReasonReservationNotActive)

	w = call(r, http.MethodGet, base+"/reservations", svc, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"CONSUMED"`)

	w = call(r, http.MethodGet, "/inventory/skus/tee-wht-s", svc, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = call(r, http.MethodPost, base+"/discontinue", admin, "")
	require.Equal(t, http.StatusOK, w.Code)
	w = call(r, http.MethodPost, base+"/stock-adjustments", admin, `{"delta":3,"reason":"RESTOCK"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), controllers.ReasonItemDiscontinued)
}
