package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/aquaflora/stock-sync/internal/infrastructure/postgres"
	"github.com/aquaflora/stock-sync/internal/infrastructure/woocatalog"
	httpRouter "github.com/aquaflora/stock-sync/internal/interfaces/http"
	"github.com/aquaflora/stock-sync/pkg/config"
	"github.com/aquaflora/stock-sync/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Bool("dry_run", cfg.Sync.DryRun).
		Bool("allow_create", cfg.Sync.AllowCreate).
		Msg("iniciando servicio de sincronización")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("esquema del almacén de estado")
	}

	stateRepo := postgres.NewSyncStateRepository(pool)
	catalog := woocatalog.NewClient(cfg.Catalog, log.Zerolog())
	if !cfg.Catalog.Configured() {
		log.Warn().Msg("catálogo remoto sin credenciales: solo se aceptarán corridas dry-run")
	}

	syncHandler := httpRouter.NewSyncHandler(stateRepo, catalog, cfg.Sync, cfg.Catalog.Configured(), log.Zerolog())
	statusHandler := httpRouter.NewStatusHandler(stateRepo, syncHandler.Running)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 30,
		WriteTimeout: time.Second * 30,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	httpRouter.Router(app, httpRouter.RouterDeps{
		Sync:      syncHandler,
		Status:    statusHandler,
		JWTSecret: cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("servicio detenido")
}
