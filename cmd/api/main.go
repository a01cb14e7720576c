package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/punchamoorthee/fundledger/internal/api"
	"github.com/punchamoorthee/fundledger/internal/blob"
	"github.com/punchamoorthee/fundledger/internal/config"
	"github.com/punchamoorthee/fundledger/internal/evidence"
	"github.com/punchamoorthee/fundledger/internal/payos"
	"github.com/punchamoorthee/fundledger/internal/service"
	"github.com/punchamoorthee/fundledger/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.NewStore(ctx, cfg.DBSource)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("Schema migration failed: %v", err)
	}

	r := mux.NewRouter()

	var blobs evidence.BlobStore
	if cfg.S3Bucket != "" {
		s3Store, err := blob.NewS3Store(ctx, cfg.S3Bucket, cfg.AWSRegion, cfg.S3PublicBaseURL)
		if err != nil {
			log.Fatalf("Blob store unavailable: %v", err)
		}
		blobs = s3Store
	} else {
		local, err := blob.NewLocalStore(cfg.LocalBlobDir, cfg.LocalBlobBaseURL)
		if err != nil {
			log.Fatalf("Blob store unavailable: %v", err)
		}
		log.Printf("[CONFIG] S3_BUCKET not set, storing uploads in %s", local.Dir())
		r.PathPrefix(config.LocalBlobPath + "/").Handler(
			http.StripPrefix(config.LocalBlobPath, http.FileServer(http.Dir(local.Dir()))))
		blobs = local
	}

	// Without merchant credentials donors still get a VietQR transfer code.
	var client *payos.Client
	if cfg.PayOS.Enabled() {
		client = payos.NewClient(cfg.PayOS, nil)
	} else {
		log.Printf("[CONFIG] PayOS credentials missing, payment links disabled")
	}
	gateway := payos.NewAdapter(client, cfg.PayOS.ChecksumKey, payos.NewOrderCodeSource(time.Now))

	svc := service.New(db, evidence.NewGate(blobs), gateway, service.Options{SystemActor: cfg.SystemActor})
	handler := api.NewHandler(svc, db.Idempotency())

	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", handler.HealthCheckHandler).Methods("GET")
	handler.Routes(r)

	if cfg.CampaignStatusInterval > 0 {
		go refreshCampaigns(ctx, svc, cfg.CampaignStatusInterval)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("Server starting on :%s env=%s", cfg.Port, cfg.Env)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
	log.Println("Server stopped")
}

// refreshCampaigns persists time-driven campaign transitions until ctx ends.
func refreshCampaigns(ctx context.Context, svc *service.FundService, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.RefreshCampaignStatuses(ctx)
			if err != nil {
				log.Printf("[CAMPAIGN] status refresh failed after %d updates: %v", n, err)
				continue
			}
			if n > 0 {
				log.Printf("[CAMPAIGN] status refresh updated=%d", n)
			}
		}
	}
}
