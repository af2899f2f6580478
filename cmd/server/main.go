/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the municipal payment scheduling engine.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Seed the exclusion calendar if empty
  4. Create API handler with dependencies
  5. Configure HTTP router
  6. Start maintenance scheduler
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port      HTTP server port (default: 8080)
  -db        SQLite database path (default: payments.db)
             Use ":memory:" for in-memory database
  -interval  Maintenance job interval (default: 1h)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the maintenance scheduler
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/payments.db"

  # Run with in-memory database
  ./server -db=":memory:"

  # Run on different port
  ./server -port=3000

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/munipay/payment-engine/api"
	"github.com/munipay/payment-engine/schedule"
	"github.com/munipay/payment-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "payments.db", "SQLite database path")
	interval := flag.Duration("interval", time.Hour, "Maintenance job interval")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Seed the exclusion calendar on first start
	if err := seedExclusions(context.Background(), store); err != nil {
		log.Printf("Warning: Failed to seed exclusion calendar: %v", err)
	}

	// Initialize handler
	handler := api.NewHandler(store)

	// Create router
	router := api.NewRouter(handler)

	// Start maintenance scheduler
	scheduler := api.NewMaintenanceScheduler(handler)
	scheduler.CheckInterval = *interval
	scheduler.Start()
	defer scheduler.Stop()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Payment engine starting on http://localhost:%d", *port)
		log.Printf("API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// seedExclusions loads the computed holiday calendar when the store
// has no exclusions yet.
func seedExclusions(ctx context.Context, store *sqlite.Store) error {
	existing, err := store.ListExclusions(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	exclusions := schedule.ComputeExclusions(schedule.DefaultCalendarConfig(), schedule.Today().Year())
	if err := store.SaveExclusions(ctx, exclusions); err != nil {
		return err
	}
	log.Printf("Seeded exclusion calendar with %d dates", len(exclusions))
	return nil
}
