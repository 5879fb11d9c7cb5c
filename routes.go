package main

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	appconfig "quickpad/config"
	"quickpad/database"
	"quickpad/handlers"
	"quickpad/metrics"
	"quickpad/middleware"
	appserver "quickpad/server"
	"quickpad/storage"
)

// setupRoutes configures all API routes and middleware for the application
func setupRoutes(app *fiber.App, db database.Database, rdb *redis.Client, store *storage.LocalStore, config *appconfig.Config) {
	app.Use(helmet.New(helmet.Config{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		HSTSMaxAge: func() int {
			if config.Environment == "production" {
				return 31536000
			}
			return 0
		}(),
		ReferrerPolicy: "strict-origin-when-cross-origin",
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(config.AllowedOrigins, ","),
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	app.Use(metrics.PrometheusMiddleware())

	rateLimits := middleware.NewRateLimitConfig(rdb, config.RateLimitMax, config.RateLimitWindow)
	requireAuth := middleware.RequireAuth(config.JWTSecret, rdb)

	notesHandler := handlers.NewNotesHandler(db, store)
	filesHandler := handlers.NewFilesHandler(db, store, config)
	authHandler := handlers.NewAuthHandler(db, rdb, config)
	healthHandler := handlers.NewHealthHandler(db, rdb)

	api := app.Group("/api", rateLimits.APILimiter)

	api.Get("/health", healthHandler.Health)

	// Notes
	api.Post("/save", notesHandler.SaveNote)
	api.Get("/load/:id", notesHandler.LoadNote)
	api.Delete("/delete/:id", notesHandler.DeleteNote)
	api.Put("/change-url/:id", notesHandler.ChangeURL)
	api.Get("/notes", notesHandler.ListNotes)
	api.Get("/search", notesHandler.SearchNotes)
	api.Get("/stats", notesHandler.Stats)

	// Attachments
	api.Post("/upload/:noteId", rateLimits.UploadLimiter, filesHandler.Upload)
	api.Get("/files/:noteId", filesHandler.ListFiles)
	api.Get("/file/:fileId", filesHandler.DownloadFile)
	api.Delete("/file/:fileId", filesHandler.DeleteFile)
	api.Post("/link-files", filesHandler.LinkFiles)

	// Accounts
	auth := api.Group("/auth")
	auth.Post("/register", rateLimits.AuthLimiter, authHandler.Register)
	auth.Post("/login", rateLimits.AuthLimiter, authHandler.Login)
	auth.Get("/me", requireAuth, authHandler.Me)
	auth.Put("/profile", requireAuth, authHandler.UpdateProfile)
	auth.Post("/logout", requireAuth, authHandler.Logout)
	auth.Delete("/account", requireAuth, authHandler.DeleteAccount)

	// Prometheus scrape endpoint, outside the rate-limited /api group
	app.Get("/metrics", func(c *fiber.Ctx) error {
		handler := promhttp.Handler()
		req := &http.Request{
			Method:     c.Method(),
			URL:        &url.URL{Path: c.Path(), RawQuery: string(c.Request().URI().QueryString())},
			Header:     make(http.Header),
			Host:       string(c.Request().Host()),
			RequestURI: c.OriginalURL(),
		}
		c.Request().Header.VisitAll(func(key, value []byte) {
			req.Header.Add(string(key), string(value))
		})

		handler.ServeHTTP(appserver.NewFiberResponseWriter(c), req)
		return nil
	})
}
