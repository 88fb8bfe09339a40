package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/platewise/printrelay/internal/api"
	"github.com/platewise/printrelay/internal/api/handlers"
	"github.com/platewise/printrelay/internal/api/middleware"
	"github.com/platewise/printrelay/internal/archive"
	"github.com/platewise/printrelay/internal/config"
	"github.com/platewise/printrelay/internal/core"
	"github.com/platewise/printrelay/internal/db"
	"github.com/platewise/printrelay/internal/events"
	"github.com/platewise/printrelay/internal/printers"
	"github.com/platewise/printrelay/internal/transport"
)

func main() {
	configPath := flag.String("config", "relay.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadRelay(*configPath)
	if err != nil {
		log.Fatalf("[relay] failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[relay] invalid config: %v", err)
	}

	var database *sql.DB
	var queue core.JobQueue
	var persister core.AssignmentPersister
	storage := "memory"
	if cfg.Database.Path != "" {
		database, err = db.Open(cfg.Database.Path)
		if err != nil {
			log.Fatalf("[relay] failed to open database: %v", err)
		}
		defer database.Close()
		queue = core.NewSQLQueue(database)
		persister = core.NewSQLAssignmentPersister(database)
		storage = "sqlite"
	} else {
		log.Printf("[relay] no database path configured, jobs are volatile")
		queue = core.NewMemQueue()
	}

	tcp := transport.NewTCP(cfg.Printers.DialTimeout, cfg.Printers.WriteTimeout)

	registry := printers.NewRegistry(database, tcp, cfg.Printers.ProbeInterval)
	if err := registry.Load(context.Background()); err != nil {
		log.Fatalf("[relay] failed to load printers: %v", err)
	}

	store := core.NewAssignmentStore(persister)
	resolver := core.NewResolver(store, registry)
	segregator := core.NewSegregator(resolver)
	dispatcher := core.NewDispatcher(segregator, registry, queue, tcp, core.TextEncoder{}, core.DispatcherConfig{
		DirectRetries: cfg.Dispatch.DirectRetries,
		DirectBackoff: cfg.Dispatch.DirectBackoff,
		SendTimeout:   cfg.Dispatch.SendTimeout,
		UnknownGrace:  cfg.Dispatch.UnknownGrace,
	})

	var notifier *events.Notifier
	if len(cfg.Webhooks) > 0 {
		targets := make([]events.Target, 0, len(cfg.Webhooks))
		for _, w := range cfg.Webhooks {
			targets = append(targets, events.Target{URL: w.URL, Secret: w.Secret})
		}
		notifier = events.NewNotifier(targets, events.Config{})
		notifier.Start()
		defer notifier.Stop()
		registry.OnStatusChange(notifier.PrinterStatusChanged)
	}

	registry.Start()
	defer registry.Stop()

	retention := archive.NewRetention(database, cfg.Retention.Days, cfg.Retention.ArchivePath)
	retention.Start()
	defer retention.Stop()

	reaperStop := startClaimReaper(queue, cfg.Queue.ClaimLease, cfg.Queue.ReapInterval)
	defer close(reaperStop)

	auth := middleware.NewAuth(cfg.Auth.AdminSecretHash, cfg.Auth.JWTSecret, cfg.Auth.TokenDuration)

	var jobNotifier handlers.Notifier
	if notifier != nil {
		jobNotifier = notifier
	}
	router := api.NewRouter(api.Handlers{
		Health:      handlers.NewHealthHandler(storage),
		Jobs:        handlers.NewJobHandler(queue, jobNotifier, cfg.Queue.StatusWindow, cfg.Queue.MaxClaimBatch),
		Printers:    handlers.NewPrinterHandler(registry),
		Dispatch:    handlers.NewDispatchHandler(dispatcher),
		Assignments: handlers.NewAssignmentHandler(store),
		Auth:        auth,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("[relay] listening on %s (storage: %s)", srv.Addr, storage)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[relay] server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("[relay] shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[relay] shutdown error: %v", err)
	}
}

// startClaimReaper returns claimed-but-unreported jobs to pending after the
// lease expires, so a crashed bridge agent cannot strand work.
func startClaimReaper(queue core.JobQueue, lease, interval time.Duration) chan struct{} {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				n, err := queue.ReleaseExpired(context.Background(), lease)
				if err != nil {
					log.Printf("[relay] claim reaper failed: %v", err)
					continue
				}
				if n > 0 {
					log.Printf("[relay] released %d expired claims back to pending", n)
				}
			}
		}
	}()
	return stop
}
