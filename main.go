package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/etag"
	"github.com/gofiber/fiber/v2/utils"

	"sekolahsync_backend/internals/configs"
	database "sekolahsync_backend/internals/databases"
	"sekolahsync_backend/internals/features/sis"
	"sekolahsync_backend/internals/features/sync/scheduler"
	"sekolahsync_backend/internals/features/sync/service"
	middlewares "sekolahsync_backend/internals/middlewares"
	routes "sekolahsync_backend/internals/route"
	seeds "sekolahsync_backend/internals/seeds"
)

func main() {
	configs.LoadEnv()

	app := fiber.New(fiber.Config{
		// 🚀 JSON super cepat
		JSONEncoder:             sonic.Marshal,
		JSONDecoder:             sonic.Unmarshal,
		DisableStartupMessage:   true,
		ProxyHeader:             fiber.HeaderXForwardedFor,
		EnableTrustedProxyCheck: true,
		TrustedProxies:          []string{"0.0.0.0/0"},
	})

	// ⚙️ middleware dasar + performa
	app.Use(compress.New(compress.Config{Level: compress.LevelDefault}))
	app.Use(etag.New())

	// 🔎 Request-ID + timing
	app.Use(func(c *fiber.Ctx) error {
		id := c.Get("X-Request-ID")
		if id == "" {
			id = utils.UUID()
		}
		c.Set("X-Request-ID", id)
		c.Locals("reqid", id)
		start := time.Now()
		err := c.Next()
		dur := time.Since(start)
		log.Printf("[REQ] id=%s %s %s status=%d dur=%s", id, c.Method(), c.OriginalURL(), c.Response().StatusCode(), dur)
		return err
	})

	middlewares.SetupMiddlewares(app)

	// 🔌 catalog DB connect + pool
	database.ConnectDB()
	database.TunePool()

	// 🌱 seed catalog (opsional, untuk environment baru)
	if configs.GetEnv("RUN_SEED") == "true" {
		seeds.RunAllSeeds(database.DB)
	}

	// ===== wiring sync engine =====
	secrets := configs.NewEnvSecretStore()
	tenants := database.NewTenantRegistry(secrets)
	tokens := sis.NewTokenManager(secrets, configs.SISTokenURL)
	api := sis.NewClient(tokens)
	locks := service.NewLockService(database.DB)
	orch := service.NewOrchestrator(database.DB, tenants, api, locks, service.ProcReconciler{})
	health := service.NewHealthService(database.DB, tenants, api, nil)

	// ⏱ scheduler setelah DB siap
	scheduler.StartSyncScheduler(database.DB, orch)
	scheduler.StartLockSweeper(locks)

	// ✅ Routes
	routes.SetupRoutes(app, database.DB, routes.Deps{
		Orchestrator: orch,
		Locks:        locks,
		Health:       health,
	})

	// 🔒 Keep-Alive & timeout koneksi server — sync manual bisa lama,
	// write timeout dilonggarkan dibanding service CRUD biasa
	app.Server().ReadTimeout = 15 * time.Second
	app.Server().WriteTimeout = 30 * time.Minute
	app.Server().IdleTimeout = 90 * time.Second

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	// Start server non-blocking
	go func() {
		log.Printf("✅ Listening on :%s", port)
		if err := app.Listen("0.0.0.0:" + port); err != nil {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown + tutup pool DB
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = app.ShutdownWithContext(ctx)

	if sqlDB, err := database.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
