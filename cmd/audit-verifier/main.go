package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/AbhiramKommanapeddi/BoolFormsproject/internal/services"
)

var (
	verifierInstance *services.VerifierFunction
	once             sync.Once
	initErr          error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Triggered by object finalize events on the signed-artifact bucket.
	functions.CloudEvent("VerifySignedPDF", verifySignedPDF)
}

// main is required by the Go Functions Framework.
func main() {}

func verifySignedPDF(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		verifierInstance, initErr = services.NewVerifierFunction(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var gcsEvent services.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	// Errors are logged with context inside Process.
	return verifierInstance.Process(ctx, gcsEvent)
}
