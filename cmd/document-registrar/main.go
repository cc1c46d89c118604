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

	"github.com/jgarciait/fast-sign-ch-sub003/internal/services"
)

var (
	registrarInstance *services.RegistrarFunction
	once              sync.Once
	initErr           error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Register the CloudEvent function. The framework routes GCS
	// object-finalized events here.
	functions.CloudEvent("RegisterDocument", registerDocument)
}

// main is required by the Go Functions Framework.
func main() {}

// registerDocument is the Cloud Function entry point.
func registerDocument(ctx context.Context, e cloudevents.Event) error {
	// Use sync.Once for robust, one-time initialization of clients.
	once.Do(func() {
		registrarInstance, initErr = services.NewRegistrar(context.Background())
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

	// Delegate the actual processing to our business logic method.
	// Errors are already logged with context inside Process; returning one
	// marks the invocation as failed so the event gets redelivered.
	return registrarInstance.Process(ctx, gcsEvent)
}
