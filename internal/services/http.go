package services

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/AbhiramKommanapeddi/BoolFormsproject/internal/models"
	"github.com/AbhiramKommanapeddi/BoolFormsproject/internal/signing"
)

// MaxBodyBytes bounds request bodies; signature images arrive inline.
const MaxBodyBytes = 50 << 20

// StatusFor maps an error from Process or Verify to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case signing.KindOf(err).IsInput():
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes the JSON error payload for err.
func WriteError(w http.ResponseWriter, status int, err error) {
	res := models.ErrorResponse{Status: "error", Message: err.Error()}
	if kind := signing.KindOf(err); kind != 0 {
		res.Kind = kind.String()
	} else if errors.Is(err, ErrDocumentNotFound) {
		res.Kind = "DocumentNotFound"
	}
	writeJSON(w, status, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}

// ServeSign handles POST /sign-pdf.
func (f *SignerFunction) ServeSign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		WriteError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}

	var req models.SignRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(&req); err != nil {
		slog.Error("Could not decode request body", "error", err)
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		WriteError(w, status, errors.New("could not parse JSON body"))
		return
	}

	res, err := f.Process(r.Context(), &req)
	if err != nil {
		// Already logged inside Process.
		WriteError(w, StatusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ServeVerify handles POST /verify with the raw PDF as the body.
func (v *VerifierFunction) ServeVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		WriteError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		WriteError(w, status, errors.New("could not read request body"))
		return
	}

	res, err := v.Verify(r.Context(), data)
	if err != nil {
		slog.Error("Verification failed", "error", err)
		WriteError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
