package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newHealthTestApp(db *MockDB) *fiber.App {
	app := fiber.New()
	h := NewHealthHandler(db, nil)
	app.Get("/api/health", h.Health)
	return app
}

func TestHealthReportsDependencies(t *testing.T) {
	mockDB := new(MockDB)
	app := newHealthTestApp(mockDB)

	row := &MockRow{}
	row.On("Scan", anyArgs(1)...).Return(nil).Run(func(args mock.Arguments) {
		*args.Get(0).(*int) = 1
	})
	mockDB.On("QueryRow", anyArgs(2)...).Return(row)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "up", body["database"])
	assert.Equal(t, "disabled", body["redis"])
}

func TestHealthDegradedWhenDatabaseDown(t *testing.T) {
	mockDB := new(MockDB)
	app := newHealthTestApp(mockDB)

	row := &MockRow{}
	row.On("Scan", anyArgs(1)...).Return(assert.AnError)
	mockDB.On("QueryRow", anyArgs(2)...).Return(row)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "down", body["database"])
}
