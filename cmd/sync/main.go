// sync corre una pasada única de sincronización desde un feed JSON enriquecido
// y escribe el resumen como JSON en stdout.
//
// Uso: sync -file feed.json [-dry-run] [-allow-create] [-lite]
// Los flags pisan la configuración de entorno; SIGINT cancela la corrida y lo
// pendiente se reporta como no procesado.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/aquaflora/stock-sync/internal/application/dto"
	appsync "github.com/aquaflora/stock-sync/internal/application/sync"
	"github.com/aquaflora/stock-sync/internal/domain/entity"
	"github.com/aquaflora/stock-sync/internal/infrastructure/feed"
	"github.com/aquaflora/stock-sync/internal/infrastructure/postgres"
	"github.com/aquaflora/stock-sync/internal/infrastructure/woocatalog"
	"github.com/aquaflora/stock-sync/pkg/config"
	"github.com/aquaflora/stock-sync/pkg/logger"
)

// progressLogger reporta cada registro resuelto durante la corrida.
type progressLogger struct {
	log zerolog.Logger
}

func (p progressLogger) RecordDone(sku string, kind entity.ActionKind, applied bool, err error) {
	p.log.Debug().
		Str("sku", sku).
		Str("action", kind.String()).
		Bool("applied", applied).
		Err(err).
		Msg("registro procesado")
}

func main() {
	var (
		filePath    = flag.String("file", "", "ruta del feed JSON enriquecido (requerido)")
		dryRun      = flag.Bool("dry-run", false, "clasifica y evalúa sin mutar nada")
		allowCreate = flag.Bool("allow-create", false, "permite crear SKUs desconocidos")
		liteMode    = flag.Bool("lite", false, "degrada actualizaciones completas a precio/stock")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{Env: cfg.App.Env, Level: "info"})

	if *filePath == "" {
		log.Fatal().Msg("falta -file: ruta del feed JSON enriquecido")
	}

	// Los flags de línea de comandos pisan lo que venga del entorno.
	syncCfg := cfg.Sync
	if *dryRun {
		syncCfg.DryRun = true
	}
	if *allowCreate {
		syncCfg.AllowCreate = true
	}
	if *liteMode {
		syncCfg.LiteMode = true
	}

	if !syncCfg.DryRun && !cfg.Catalog.Configured() {
		log.Fatal().Msg("catálogo remoto sin credenciales; use -dry-run o configure CATALOG_CONSUMER_KEY/SECRET")
	}

	records, err := feed.LoadFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Str("file", *filePath).Msg("cargar feed")
	}
	log.Info().Int("records", len(records)).Str("file", *filePath).Msg("feed cargado")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	classifier := appsync.NewClassifier(stateRepo, syncCfg, log.Zerolog())
	driver := appsync.NewDriver(catalog, stateRepo, appsync.DefaultRetryPolicy(syncCfg.MaxRetryAttempts), syncCfg.BatchSize, log.Zerolog())
	coordinator := appsync.NewCoordinator(classifier, driver, syncCfg, log.Zerolog()).
		WithObserver(progressLogger{log: log.Zerolog()})

	summary, runErr := coordinator.Run(ctx, records)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if summary != nil {
		if err := enc.Encode(dto.FromSummary(summary)); err != nil {
			log.Error().Err(err).Msg("escribir resumen")
		}
	}

	if runErr != nil {
		log.Error().Err(runErr).Msg("corrida abortada")
		os.Exit(1)
	}
	if summary != nil && !summary.Success() {
		os.Exit(1)
	}
}
