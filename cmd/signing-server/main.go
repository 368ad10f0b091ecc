// Command signing-server runs the signing and verification endpoints as a
// standalone HTTP server backed by local directories and SQLite.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/AbhiramKommanapeddi/BoolFormsproject/internal/audit"
	"github.com/AbhiramKommanapeddi/BoolFormsproject/internal/gcp"
	"github.com/AbhiramKommanapeddi/BoolFormsproject/internal/services"
	"github.com/AbhiramKommanapeddi/BoolFormsproject/internal/signing"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	configPath := flag.String("config", gcp.GetEnv("SIGNING_SERVER_CONFIG", ""), "path to YAML config")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg := DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = LoadConfig(configPath); err != nil {
			return err
		}
	}

	app, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			slog.Error("Failed to close resources", "error", err)
		}
	}()

	srv := &http.Server{Addr: cfg.Listen, Handler: app.Router()}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Signing server listening.", "addr", cfg.Listen, "documentsDir", cfg.DocumentsDir)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down.")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type app struct {
	signer   *services.SignerFunction
	verifier *services.VerifierFunction
}

func newApp(cfg *Config) (*app, error) {
	hasher, err := audit.NewHasher(cfg.HashAlgorithm)
	if err != nil {
		return nil, err
	}
	store, err := audit.OpenSQLiteStore(cfg.AuditDBPath)
	if err != nil {
		return nil, err
	}

	deps := services.SignerDeps{
		Engine: signing.NewEngine(signing.WithHasher(hasher)),
		Source: services.NewDirDocumentSource(cfg.DocumentsDir),
		Audit:  store,
	}
	if cfg.SignedDir != "" {
		deps.Artifacts = services.NewDirArtifactStore(cfg.SignedDir)
	}
	signer, err := services.NewSigner(deps)
	if err != nil {
		store.Close()
		return nil, err
	}
	return &app{signer: signer, verifier: services.NewVerifier(hasher, store)}, nil
}

// Router mounts the HTTP endpoints.
func (a *app) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, "PDF signing service is running")
	})
	r.Post("/sign-pdf", a.signer.ServeSign)
	r.Post("/verify", a.verifier.ServeVerify)
	return r
}

// Close releases the audit store shared by signer and verifier.
func (a *app) Close() error { return a.signer.Close() }
