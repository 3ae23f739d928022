// internal/adapters/http_server/handlers.go
package httpserver

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"comps_dedup/internal/adapters/tabular"
	"comps_dedup/internal/app"
	"comps_dedup/internal/domain"
)

// maxBody caps request payloads.
const maxBody = 32 << 20

// Cleaner is what the handlers need from the cleaning service.
type Cleaner interface {
	Clean(ctx context.Context, records []domain.PropertyRecord, geocode bool) (app.CleanResult, error)
	GetRun(ctx context.Context, id string) (domain.RunSummary, error)
}

type Handlers struct{ S Cleaner }

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// dedupRequest carries either flat records or raw appraisals.
type dedupRequest struct {
	Records    json.RawMessage `json:"records"`
	Appraisals json.RawMessage `json:"appraisals"`
	Geocode    bool            `json:"geocode"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Post("/v1/dedup", h.dedup)
	s.mux.Get("/v1/runs/{id}", h.getRun)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps service errors onto problem responses.
func writeError(w http.ResponseWriter, err error) {
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &tooBig):
		writeProblem(w, http.StatusRequestEntityTooLarge, "Payload Too Large", err.Error())
	case errors.Is(err, domain.ErrInvalidRecord):
		writeProblem(w, http.StatusUnprocessableEntity, "Invalid Records", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", "run not found")
	case errors.Is(err, app.ErrNoStore):
		writeProblem(w, http.StatusServiceUnavailable, "Store Unavailable", err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeProblem(w, http.StatusServiceUnavailable, "Timeout", err.Error())
	default:
		log.Error().Err(err).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

// readRecords accepts a CSV table (text/csv) or a JSON dedupRequest.
func readRecords(r *http.Request) ([]domain.PropertyRecord, bool, error) {
	geocode, _ := strconv.ParseBool(r.URL.Query().Get("geocode"))
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if strings.HasPrefix(ct, "text/csv") {
		recs, err := tabular.ReadCSV(r.Body)
		return recs, geocode, badInput(err)
	}

	var req dedupRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		return nil, false, badInput(err)
	}
	geocode = geocode || req.Geocode

	if present(req.Appraisals) {
		if present(req.Records) {
			return nil, false, errors.Join(domain.ErrInvalidRecord, errors.New("send records or appraisals, not both"))
		}
		recs, err := app.DecodeAppraisals(bytes.NewReader(req.Appraisals))
		return recs, geocode, badInput(err)
	}
	if !present(req.Records) {
		return nil, geocode, nil
	}
	recs, err := app.DecodeRecords(bytes.NewReader(req.Records))
	return recs, geocode, badInput(err)
}

func present(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

// badInput tags decode failures as invalid records, size limits excepted.
func badInput(err error) error {
	var tooBig *http.MaxBytesError
	if err == nil || errors.As(err, &tooBig) || errors.Is(err, domain.ErrInvalidRecord) {
		return err
	}
	return errors.Join(domain.ErrInvalidRecord, err)
}

func (h *Handlers) dedup(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	defer func() { _, _ = io.Copy(io.Discard, r.Body) }()

	recs, geocode, err := readRecords(r)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.S.Clean(r.Context(), recs, geocode)
	if err != nil {
		writeError(w, err)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "text/csv") {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("X-Run-Id", res.RunID)
		if err := tabular.WriteCSV(w, res.Cleaned); err != nil {
			log.Error().Err(err).Msg("failed to write CSV body")
		}
		return
	}
	_, body := calcETagAndBody(res)
	writeJSON(w, http.StatusOK, body)
}

func (h *Handlers) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.S.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	etag, body := calcETagAndBody(run)
	// runs never change once written
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	writeJSON(w, http.StatusOK, body)
}
