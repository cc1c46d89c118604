package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/jgarciait/fast-sign-ch-sub003/internal/models"
	"github.com/jgarciait/fast-sign-ch-sub003/internal/services"
)

var (
	transformerInstance *services.TransformerFunction
	once                sync.Once
	initErr             error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// One HTTP function serves all three transforms; the path picks the
	// operation.
	functions.HTTP("TransformDocument", transformDocument)
}

// main is required by the Go Functions Framework.
func main() {}

func transformDocument(w http.ResponseWriter, r *http.Request) {
	// Use sync.Once for robust, one-time initialization of clients.
	once.Do(func() {
		transformerInstance, initErr = services.NewTransformer(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	var resp *models.TransformResponse
	switch path.Base(r.URL.Path) {
	case "rotate":
		var req models.RotateRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		resp = transformerInstance.Rotate(r.Context(), &req)
	case "merge":
		var req models.MergeRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		resp = transformerInstance.Merge(r.Context(), &req)
	case "reorder":
		var req models.ReorderRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		resp = transformerInstance.Reorder(r.Context(), &req)
	default:
		http.Error(w, "Not Found: unknown transform operation", http.StatusNotFound)
		return
	}

	writeResponse(w, resp)
}

func decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		slog.Error("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return false
	}
	return true
}

func writeResponse(w http.ResponseWriter, resp *models.TransformResponse) {
	status := http.StatusOK
	if resp.Error != nil {
		status = statusForCode(resp.Error.Code)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}

func statusForCode(code string) int {
	switch code {
	case "VALIDATION_ERROR", "TRANSPORT_ERROR":
		return http.StatusBadRequest
	case "SIZE_LIMIT_EXCEEDED":
		return http.StatusRequestEntityTooLarge
	case "PARSE_ERROR":
		return http.StatusUnprocessableEntity
	case "NOT_FOUND":
		return http.StatusNotFound
	case "VERSION_CONFLICT":
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
