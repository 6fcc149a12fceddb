// Command junction hosts an intersection controller. It answers the
// wire protocol on stdio or a serial port, serves the HTTP monitor API,
// and optionally records every step to the run store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fourway-systems/fourway/internal/api"
	"github.com/fourway-systems/fourway/internal/config"
	"github.com/fourway-systems/fourway/internal/engine"
	"github.com/fourway-systems/fourway/internal/link"
	"github.com/fourway-systems/fourway/internal/runstore"
	"github.com/fourway-systems/fourway/internal/session"
	"github.com/fourway-systems/fourway/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to JSON config file")
	serialPort  = flag.String("serial", "", "Serial device for the controller link (default: stdio)")
	listen      = flag.String("listen", ":8080", "Listen address for the HTTP monitor")
	dbPath      = flag.String("db", "junction_runs.db", "Path to the run store database")
	record      = flag.Bool("record", false, "Record every step to the run store")
	freeRun     = flag.Bool("free-run", false, "Step the controller on a wall-clock cadence")
	tick        = flag.Duration("tick", time.Second, "Free-run step interval")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// stdioLink joins the process's standard streams into the byte stream a
// session runs over, for desktop pairing without hardware. Closing it
// closes stdin, which unblocks a pending session read.
type stdioLink struct{}

func (stdioLink) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdioLink) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdioLink) Close() error                { return os.Stdin.Close() }

// applyFlagOverrides copies explicitly set flags over the config file
// values. Flags win over the file; the file wins over defaults.
func applyFlagOverrides(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "serial":
			cfg.SerialPort = serialPort
		case "listen":
			cfg.ListenAddr = listen
		case "db":
			cfg.DBPath = dbPath
		case "record":
			cfg.Record = record
		case "free-run":
			cfg.FreeRun = freeRun
		case "tick":
			s := tick.String()
			cfg.StepInterval = &s
		}
	})
}

func main() {
	// "junction migrate ..." manages the run store schema and exits.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		runMigrate(os.Args[2:])
		return
	}

	flag.Parse()

	if *showVersion {
		fmt.Println("junction " + version.String())
		return
	}

	cfg := config.EmptyConfig()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	applyFlagOverrides(cfg)

	if cfg.ListenAddr != nil && *cfg.ListenAddr == "" {
		log.Fatal("Listen address is required")
	}

	log.Printf("junction %s starting", version.String())

	eng := engine.New(cfg.SignalPlan())
	ctl := api.NewControl(eng)

	// The controller link: a serial device, or this process's stdio for
	// desktop pairing. Logs go to stderr either way.
	var transport link.Port
	if cfg.GetSerialPort() != "" {
		p, err := link.Open(cfg.GetSerialPort(), cfg.PortOptions())
		if err != nil {
			log.Fatalf("Failed to open serial port: %v", err)
		}
		transport = p
		log.Printf("controller link on %s", cfg.GetSerialPort())
	} else {
		transport = stdioLink{}
		log.Print("controller link on stdio")
	}

	var store *runstore.Store
	if cfg.GetRecord() {
		var err error
		store, err = runstore.New(cfg.GetDBPath())
		if err != nil {
			log.Fatalf("Failed to open run store: %v", err)
		}
		defer store.Close()

		runID, err := store.CreateRun("live", 0, ctl.Timing())
		if err != nil {
			log.Fatalf("Failed to create run: %v", err)
		}
		rec := runstore.NewRecorder(store, runID)
		ctl.OnStep = rec.OnStep
		defer func() {
			if err := rec.Finish(); err != nil {
				log.Printf("failed to finish run %s: %v", runID, err)
			}
		}()
		log.Printf("recording run %s to %s", runID, cfg.GetDBPath())
	}

	// Create a wait group for the session, free-run, and HTTP server routines
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the wire session against the shared controller
	wg.Add(1)
	go func() {
		defer wg.Done()
		// The daemon follows its session: once the link ends, the
		// monitor and free-run routines wind down too.
		defer stop()
		if err := session.NewServer(ctl, transport).Serve(ctx); err != nil && ctx.Err() == nil {
			log.Printf("wire session failed: %v", err)
		}
		log.Print("session routine terminated")
	}()

	// a pending session read only unblocks when the transport closes
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		transport.Close()
	}()

	// step the controller on a wall-clock cadence, the way the device
	// firmware runs when nobody is driving it
	if cfg.GetFreeRun() && cfg.GetStepInterval() > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(cfg.GetStepInterval())
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					ctl.Step()
				case <-ctx.Done():
					log.Print("free-run routine terminated")
					return
				}
			}
		}()
		log.Printf("free-running at %v per step", cfg.GetStepInterval())
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// mount the admin debugging routes (accessible only over
		// loopback or Tailscale)
		if store != nil {
			if err := store.AttachAdminRoutes(mux); err != nil {
				log.Fatalf("failed to attach admin routes: %v", err)
			}
		}

		// the API mux carries its /api prefix itself
		mux.Handle("/api/", api.NewServer(ctl, store).ServeMux())

		server := &http.Server{
			Addr:    cfg.GetListenAddr(),
			Handler: api.LoggingMiddleware(mux),
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

func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	db := fs.String("db", "junction_runs.db", "Path to the run store database")
	fs.Parse(args)
	runstore.RunMigrateCommand(fs.Args(), *db)
}
