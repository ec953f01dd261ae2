package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/habitcity/internal/auth"
	"github.com/lazypower/habitcity/internal/config"
	"github.com/lazypower/habitcity/internal/engine"
	"github.com/lazypower/habitcity/internal/policy"
	"github.com/lazypower/habitcity/internal/safety"
	"github.com/lazypower/habitcity/internal/server"
	"github.com/lazypower/habitcity/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	shutdownTracing, err := telemetry.Setup(context.Background(), "habitcity", cfg.Telemetry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: tracing disabled (%v)\n", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownTracing(ctx)
	}()

	db, dbPath, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	model, err := buildModel(cfg.Policy)
	if err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	defer model.Close()

	// Keep retrying in the background; decisions fall back until it loads.
	loadCtx, stopLoading := context.WithCancel(context.Background())
	defer stopLoading()
	if model.Configured() {
		ctx, cancel := context.WithTimeout(loadCtx, cfg.Policy.LoadTimeout)
		err := model.Load(ctx)
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: policy model not ready (%v), using fallback decisions\n", err)
			go model.LoadWithRetry(loadCtx, time.Second, 30*time.Second)
		}
	}

	sm := safety.NewManager(safety.Config{
		MaxConsecutive:  cfg.Safety.MaxConsecutive,
		HistorySize:     cfg.Safety.HistorySize,
		ConfidenceFloor: cfg.Safety.ConfidenceFloor,
		IdleTTL:         cfg.Safety.IdleTTL,
	})
	sm.StartSweeper(cfg.Safety.SweepInterval)
	defer sm.Stop()

	eng := engine.New(db, model, sm)

	verifier := auth.NewVerifier(cfg.Auth)
	srv := server.New(eng, VersionString(),
		server.WithAuth(verifier),
		server.WithTimeout(cfg.Server.RequestTimeout),
	)
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "habitcity serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  db: %s\n", dbPath)
		fmt.Fprintf(os.Stderr, "  policy: %s (ready: %v)\n", cfg.Policy.Backend, model.Ready())
		if verifier != nil {
			fmt.Fprintf(os.Stderr, "  auth: bearer tokens required\n")
		}
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}

// buildModel wires the configured backend and normalizer. The "none"
// backend yields a model that never becomes ready.
func buildModel(cfg config.PolicyConfig) (*policy.Model, error) {
	backend, err := policy.NewPredictor(cfg)
	if err != nil {
		return nil, err
	}
	var norm *policy.Normalizer
	if cfg.NormalizerPath != "" {
		if norm, err = policy.LoadNormalizer(cfg.NormalizerPath); err != nil {
			return nil, err
		}
	}
	return policy.NewModel(backend, policy.Options{
		Normalizer:    norm,
		Deterministic: cfg.Deterministic,
		Timeout:       cfg.Timeout,
	}), nil
}
