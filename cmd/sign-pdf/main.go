package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/AbhiramKommanapeddi/BoolFormsproject/internal/services"
)

var (
	signerInstance *services.SignerFunction
	once           sync.Once
	initErr        error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// "SignPDF" is the entry point name configured in GCP.
	functions.HTTP("SignPDF", handleSignPDF)
}

// main is required by the Go Functions Framework.
func main() {}

// handleSignPDF is the HTTP handler for the signing service.
func handleSignPDF(w http.ResponseWriter, r *http.Request) {
	// Clients are created on the first request and reused afterwards.
	once.Do(func() {
		signerInstance, initErr = services.NewSignerFunction(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		services.WriteError(w, http.StatusInternalServerError, errors.New("failed to initialize service"))
		return
	}

	// Health check.
	if r.Method == http.MethodGet && (r.URL.Path == "/" || r.URL.Path == "") {
		fmt.Fprintln(w, "PDF signing service is running")
		return
	}
	// Hand the request to the business logic.
	signerInstance.ServeSign(w, r)
}
