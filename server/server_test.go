package server

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quickpad/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment:    "test",
		MaxUploadBytes: 5 * 1024 * 1024,
		MaxUploadFiles: 10,
	}
}

func TestCreateFiberApp_SetsRequestID(t *testing.T) {
	app := CreateFiberApp(testConfig())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestCreateFiberApp_ErrorHandlerHidesServerErrors(t *testing.T) {
	app := CreateFiberApp(testConfig())
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("secret database credentials leaked")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/boom", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	buf := make([]byte, 1024)
	n, _ := resp.Body.Read(buf)
	body := string(buf[:n])
	assert.Contains(t, body, "Internal Server Error")
	assert.NotContains(t, body, "secret database credentials")
}

func TestCreateFiberApp_ErrorHandlerKeepsClientErrors(t *testing.T) {
	app := CreateFiberApp(testConfig())
	app.Get("/teapot", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusTeapot, "short and stout")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/teapot", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTeapot, resp.StatusCode)
}

func TestCreateFiberApp_RecoversFromPanic(t *testing.T) {
	app := CreateFiberApp(testConfig())
	app.Get("/panic", func(c *fiber.Ctx) error {
		panic("unexpected")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/panic", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestFiberResponseWriter(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		w := NewFiberResponseWriter(c)
		w.Header().Set("X-Custom", "yes")
		w.WriteHeader(fiber.StatusAccepted)
		_, err := w.Write([]byte("adapted"))
		return err
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "yes", resp.Header.Get("X-Custom"))
}
