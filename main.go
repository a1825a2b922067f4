package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/presence.report/internal/api"
	"github.com/banshee-data/presence.report/internal/config"
	"github.com/banshee-data/presence.report/internal/db"
	"github.com/banshee-data/presence.report/internal/presence"
	"github.com/banshee-data/presence.report/internal/scanmux"
	"github.com/banshee-data/presence.report/internal/vendordb"
)

var (
	devMode      = flag.Bool("dev", false, "Run in dev mode (replay fixtures instead of opening the sniffer)")
	listen       = flag.String("listen", ":8080", "Listen address")
	snifferPath  = flag.String("port", "/dev/ttyACM0", "Serial path of the BLE sniffer")
	dbFile       = flag.String("db", "presence.db", "Path of the sqlite database")
	tuningPath   = flag.String("config", config.DefaultConfigPath, "Path of a tuning config JSON file")
	ouiPath      = flag.String("oui", "", "Path of an IEEE oui.txt registry for vendor lookups (optional)")
	fixturesPath = flag.String("fixtures", "fixtures.txt", "Advertisement fixture file replayed in dev mode")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg, err := config.LoadTuningConfig(*tuningPath)
	if err != nil {
		if *tuningPath != config.DefaultConfigPath {
			log.Fatalf("failed to load tuning config: %v", err)
		}
		// the shipped defaults file is absent when running outside the
		// repo checkout; the built-in constants carry the same values
		log.Printf("tuning defaults file unavailable, using built-in defaults: %v", err)
		cfg = config.EmptyTuningConfig()
	}

	var m scanmux.ScanMuxInterface
	if *devMode {
		data, err := os.ReadFile(*fixturesPath)
		if err != nil {
			log.Fatalf("failed to open fixtures file: %v", err)
		}
		m = scanmux.NewMockScanMux(data)
	} else {
		var err error
		m, err = scanmux.NewRealScanMux(*snifferPath, scanmux.PortOptions{})
		if err != nil {
			log.Fatalf("failed to open sniffer port: %v", err)
		}
	}
	defer m.Close()

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	// vendor enrichment is best effort; a missing registry only costs the
	// vendor column
	var enricher presence.Enricher
	if *ouiPath != "" {
		vendors, err := vendordb.Load(*ouiPath)
		if err != nil {
			log.Printf("vendor registry unavailable, continuing without enrichment: %v", err)
		} else {
			log.Printf("loaded %d vendor prefixes", vendors.Len())
			enricher = vendors
		}
	}

	grouper, err := presence.NewGrouper(cfg.GetGrouper(), cfg.GrouperParams())
	if err != nil {
		log.Fatalf("failed to create grouper: %v", err)
	}
	pipeline := presence.NewPipeline(cfg.PipelineParams(), grouper, enricher)

	runID := db.NewRunID()
	label := cfg.GetLabel()
	log.Printf("starting run %s at %q with grouper %q", runID, label, grouper.Name())

	apiServer := api.NewServer(m, database, label)

	// Create a wait group for the HTTP server, sniffer monitor, and scan
	// loop routines
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the sniffer port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := m.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("failed to monitor sniffer port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	// run the scan loop: collect a window of advertisements, fold it
	// through the pipeline, and record the result
	wg.Add(1)
	go func() {
		defer wg.Done()

		if err := m.Initialize(); err != nil {
			log.Printf("failed to initialize sniffer: %v", err)
		}

		scanLoop(ctx, scanmux.NewCollector(m), pipeline, database, apiServer,
			runID, label, cfg.GetScanWindow(), cfg.GetScanInterval())
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// mount the admin debugging routes (accessible only in dev mode or over Tailscale)
		database.AttachAdminRoutes(mux)
		m.AttachAdminRoutes(mux)

		// mount the presence API handlers
		mux.Handle("/api/", http.StripPrefix("/api", apiServer.ServeMux()))

		h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("got request %q", r.URL.Path)
			mux.ServeHTTP(w, r)
		})

		server := &http.Server{
			Addr:    *listen,
			Handler: h,
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		// Create a shutdown context with a timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

// scanLoop drives the collect/estimate/record cycle until the context is
// cancelled. A failed scan (dead sniffer, read error) is logged and its
// cycle skipped without recording a count; the loop retries at the next
// interval rather than terminating.
func scanLoop(ctx context.Context, collector scanmux.Scanner, pipeline *presence.Pipeline,
	database *db.DB, apiServer *api.Server, runID, label string, window, interval time.Duration) {
	for {
		batch, err := collector.Scan(ctx, window)
		switch {
		case ctx.Err() != nil:
			log.Print("scan loop terminated")
			return
		case err != nil:
			log.Printf("scan failed, skipping cycle: %v", err)
		default:
			result := pipeline.Cycle(batch)
			apiServer.SetLatest(result)
			log.Printf("cycle: %d observed, %d usable, %d people (dropped %d malformed, %d weak)",
				len(batch), len(result.Distances), result.People,
				result.DroppedMalformed, result.DroppedWeak)
			recordCycle(database, runID, label, pipeline.Grouper().Name(), result)
		}

		select {
		case <-time.After(interval):
		case <-ctx.Done():
			log.Print("scan loop terminated")
			return
		}
	}
}

// recordCycle persists one completed cycle's count and device sightings.
// Persistence failures only log; the loop carries on.
func recordCycle(database *db.DB, runID, label, grouper string, result presence.CycleResult) {
	if err := database.RecordCount(runID, label, grouper, len(result.Devices), result.People); err != nil {
		log.Printf("failed to record count: %v", err)
	}
	for _, reading := range result.Devices {
		sighting := db.DeviceSighting{
			RunID:        runID,
			Address:      reading.Address,
			Vendor:       reading.Vendor,
			RawRSSI:      reading.RawRSSI,
			SmoothedRSSI: reading.SmoothedRSSI,
		}
		if reading.Estimate.OK() {
			metres := reading.Estimate.Metres
			sighting.DistanceMetres = &metres
		}
		if err := database.RecordSighting(sighting); err != nil {
			log.Printf("failed to record sighting: %v", err)
		}
	}
}
