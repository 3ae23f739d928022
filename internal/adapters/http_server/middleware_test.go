package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

func TestAccess_LogsRoutePatternAndRunID(t *testing.T) {
	var buf bytes.Buffer
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(Access(zerolog.New(&buf)))
	r.Get("/v1/runs/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Run-Id", "abc")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("hi"))
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/runs/abc", nil))
	if rr.Code != http.StatusTeapot {
		t.Fatalf("status=%d", rr.Code)
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line: %v (%q)", err, buf.String())
	}
	if line["route"] != "/v1/runs/{id}" {
		t.Fatalf("route=%v", line["route"])
	}
	if line["run_id"] != "abc" {
		t.Fatalf("run_id=%v", line["run_id"])
	}
	if line["status"] != float64(http.StatusTeapot) || line["bytes"] != float64(2) {
		t.Fatalf("status/bytes: %v %v", line["status"], line["bytes"])
	}
	if line["request_id"] == "" || line["request_id"] == nil {
		t.Fatal("missing request_id")
	}
}

func TestAccess_DefaultsStatusToOK(t *testing.T) {
	var buf bytes.Buffer
	h := Access(zerolog.New(&buf))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatal(err)
	}
	if line["status"] != float64(http.StatusOK) || line["route"] != "/healthz" {
		t.Fatalf("got %v", line)
	}
}
