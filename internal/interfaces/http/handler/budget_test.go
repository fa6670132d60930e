package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// setupBudgetBindingRouter wires a handler with no services: only request
// binding paths are exercised, which reject before any service call
func setupBudgetBindingRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewBudgetHandler(nil, nil)

	router := gin.New()
	group := router.Group("", boundTenant(uuid.New()))
	handler.RegisterRoutes(group)
	return router
}

func TestBudgetHandler_Create_RejectsMalformedBody(t *testing.T) {
	router := setupBudgetBindingRouter()

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing fiscal year", map[string]any{
			"org_unit_id": uuid.New().String(), "total_amount": "1000", "type": "department"}},
		{"fiscal year not numeric", map[string]any{
			"fiscal_year": "20XX", "org_unit_id": uuid.New().String(), "total_amount": "1000", "type": "department"}},
		{"org unit not a uuid", map[string]any{
			"fiscal_year": "2026", "org_unit_id": "not-a-uuid", "total_amount": "1000", "type": "department"}},
		{"missing amount", map[string]any{
			"fiscal_year": "2026", "org_unit_id": uuid.New().String(), "type": "department"}},
		{"negative amount", map[string]any{
			"fiscal_year": "2026", "org_unit_id": uuid.New().String(), "total_amount": "-1000", "type": "department"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(router, "/budgets", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "BAD_REQUEST")
		})
	}
}

func TestBudgetHandler_Allocate_RejectsEmptyTargets(t *testing.T) {
	router := setupBudgetBindingRouter()

	w := postJSON(router, "/budgets/"+uuid.New().String()+"/allocate", map[string]any{
		"targets": []any{},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBudgetHandler_Deduct_RejectsInvalidItemNumber(t *testing.T) {
	router := setupBudgetBindingRouter()

	w := postJSON(router, "/budgets/"+uuid.New().String()+"/deduct", map[string]any{
		"document_type": "purchase_order",
		"document_id":   "PO-2026-0042",
		"items":         []map[string]any{{"item_number": 0, "amount": "50"}},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBudgetHandler_Get_RejectsMalformedID(t *testing.T) {
	router := setupBudgetBindingRouter()

	req := httptest.NewRequest(http.MethodGet, "/budgets/not-a-uuid", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBudgetHandler_Usage_RejectsBadDate(t *testing.T) {
	router := setupBudgetBindingRouter()

	req := httptest.NewRequest(http.MethodGet,
		"/budgets/"+uuid.New().String()+"/usage?startDate=March-1st", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
