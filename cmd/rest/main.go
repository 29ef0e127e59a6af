package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"socialsync-be/internal/bootstrap"
	"socialsync-be/internal/config"
	"socialsync-be/internal/server"
	"socialsync-be/internal/tracer"
	"socialsync-be/pkg/database"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// 2. Initialize Database, optional: without it the archive is off
	var gormDB *gorm.DB
	if cfg.Database.Connection != "" {
		gormDB, err = database.NewGormDBFromDSN(cfg.Database.Connection, cfg.App.Environment != "production")
		if err != nil {
			log.Fatalf("Unable to connect to GORM DB: %v", err)
		}
		defer database.Close(gormDB)
	}

	// 3. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(ctx, gormDB, cfg)
	if err != nil {
		log.Fatalf("Bootstrap failed: %v", err)
	}
	defer container.Close()

	// 4. Tracer
	shutdownTracer := tracer.InitTracer(cfg.Infra, container.Logger)

	// 5. Initialize Server
	srv := server.New(cfg, container)

	g, gctx := errgroup.WithContext(ctx)

	// Background Services
	g.Go(func() error {
		container.WebSocketHub.Run(gctx)
		return nil
	})
	if container.ConsumerService != nil {
		if err := container.ConsumerService.Consume(gctx); err != nil {
			log.Fatalf("Archive consumer failed to start: %v", err)
		}
	}

	g.Go(srv.Run)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()

		container.Logger.Info("Server", "Shutting down", nil)
		err := srv.Shutdown(shutdownCtx)
		return errors.Join(err, shutdownTracer(shutdownCtx))
	})

	if err := g.Wait(); err != nil {
		container.Logger.Error("Server", "Server stopped with error", map[string]interface{}{"error": err.Error()})
	}
}
