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
	recorderInstance *services.RecorderFunction
	once             sync.Once
	initErr          error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("RecordSignatures", recordSignatures)
}

// main is required by the Go Functions Framework.
func main() {}

func recordSignatures(w http.ResponseWriter, r *http.Request) {
	// Use sync.Once for robust, one-time initialization of clients.
	once.Do(func() {
		recorderInstance, initErr = services.NewRecorder(context.Background())
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

	var resp *models.SignatureResponse
	switch path.Base(r.URL.Path) {
	case "replace":
		var req models.ReplaceSignaturesRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		resp = recorderInstance.ReplaceAll(r.Context(), &req)
	case "update":
		var req models.UpdateSignatureRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		resp = recorderInstance.UpdateOne(r.Context(), &req)
	case "delete":
		var req models.DeleteSignatureRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		resp = recorderInstance.DeleteOne(r.Context(), &req)
	case "clear":
		var req models.ClearSignaturesRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		resp = recorderInstance.Clear(r.Context(), &req)
	case "get":
		var req models.GetSignaturesRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		resp = recorderInstance.Get(r.Context(), &req)
	default:
		http.Error(w, "Not Found: unknown signature operation", http.StatusNotFound)
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

func writeResponse(w http.ResponseWriter, resp *models.SignatureResponse) {
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
