package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/roamsim/esim-reconciler/internal/pkg/cache"
	"github.com/roamsim/esim-reconciler/internal/pkg/database"
	"github.com/roamsim/esim-reconciler/internal/pkg/env"
	"github.com/roamsim/esim-reconciler/internal/pkg/notify"
	"github.com/roamsim/esim-reconciler/internal/pkg/provisioning"
	"github.com/roamsim/esim-reconciler/internal/pkg/reconcile"
	"github.com/roamsim/esim-reconciler/internal/pkg/s3export"
	"github.com/roamsim/esim-reconciler/internal/pkg/statusapi"
)

func main() {
	env.SetupEnvFile()
	if env.IsDev() {
		log.SetLevel(log.LevelDebug)
	}

	database.SetupDatabase()
	cache.SetupCache()

	db := database.GetDB()

	client, err := provisioning.NewClientFromEnv()
	if err != nil {
		log.Fatalf("Provisioning client setup failed: %v", err)
	}

	loc, err := time.LoadLocation(env.GetEnv("RECONCILE_TIMEZONE", "Africa/Lagos"))
	if err != nil {
		log.Fatalf("Invalid RECONCILE_TIMEZONE: %v", err)
	}

	mailQueue := notify.NewQueue()
	mailQueue.Start()

	service := reconcile.NewService(db, client, mailQueue, loc)

	interval := time.Duration(env.GetEnvInt("RECONCILE_INTERVAL_SECONDS", 5)) * time.Second
	manager := reconcile.NewManager(service, interval)

	exportCfg, err := s3export.LoadConfig()
	if err != nil {
		log.Fatalf("S3 export config invalid: %v", err)
	}
	if exportCfg.IsEnabled() {
		exporter, err := s3export.NewExporter(exportCfg, db)
		if err != nil {
			log.Fatalf("S3 exporter setup failed: %v", err)
		}
		every := time.Duration(env.GetEnvInt("AUDIT_EXPORT_INTERVAL_HOURS", 24)) * time.Hour
		manager.WithExporter(exporter, every)
	}

	manager.Start()

	statusServer := statusapi.New(db, manager)
	statusAddr := fmt.Sprintf("%s:%s", env.GetEnv("STATUS_HOST", "localhost"), env.GetEnv("STATUS_PORT", "4100"))
	go func() {
		if err := statusServer.Listen(statusAddr); err != nil {
			log.Errorf("Status server stopped: %v", err)
		}
	}()

	log.Info("Reconciliation worker started")

	// Block until asked to stop, then drain everything.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down...")
	manager.Stop()
	mailQueue.Stop()
	if err := statusServer.Shutdown(); err != nil {
		log.Errorf("Status server shutdown failed: %v", err)
	}
	log.Info("Shutdown complete")
}
