// Package server exposes the digest pipeline over HTTP. Digest
// submissions stream progress back as Server-Sent Events; a client
// that disconnects mid-stream stops receiving events but the job runs
// to completion so the record is still persisted.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/anatolykoptev/go_digest/internal/engine"
	"github.com/anatolykoptev/go_digest/internal/pipeline"
	"github.com/anatolykoptev/go_digest/internal/store"
)

// Server holds the pipeline and record store behind the HTTP routes.
type Server struct {
	pipeline *pipeline.Pipeline
	records  store.Records
	mux      *http.ServeMux
}

// New builds the route table.
func New(p *pipeline.Pipeline, records store.Records) *Server {
	s := &Server{pipeline: p, records: records, mux: http.NewServeMux()}
	s.mux.HandleFunc("POST /v1/digest", s.handleDigest)
	s.mux.HandleFunc("GET /v1/records/{id}", s.handleGetRecord)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /metrics", s.handleMetrics)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe runs the server with sane timeouts. SSE streams are
// long-lived, so there is no WriteTimeout; IdleTimeout still reaps
// dead keep-alive connections.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	slog.Info("http server listening", slog.String("addr", addr))
	return srv.ListenAndServe()
}

type digestRequest struct {
	URL   string `json:"url"`
	Force bool   `json:"force,omitempty"`
}

// handleDigest runs one digest job inline and streams its events. The
// pipeline keeps the request handler goroutine for the whole job; SSE
// frames go out as each event fires.
func (s *Server) handleDigest(w http.ResponseWriter, r *http.Request) {
	var req digestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	clientCtx := r.Context()
	gone := false
	sink := func(e pipeline.Event) {
		if gone {
			return
		}
		if clientCtx.Err() != nil {
			gone = true
			slog.Info("client disconnected, job continues",
				slog.String("url", req.URL), slog.Int("last_seq", e.Seq-1))
			return
		}
		if err := writeSSE(w, e); err != nil {
			gone = true
			return
		}
		flusher.Flush()
	}

	// The job must not die with the connection.
	s.pipeline.Run(context.WithoutCancel(clientCtx), pipeline.Request{URL: req.URL, Force: req.Force}, sink)
}

func writeSSE(w http.ResponseWriter, e pipeline.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\nid: %d\ndata: %s\n\n", e.Name, e.Seq, data)
	return err
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := s.records.GetByID(r.Context(), id)
	if err != nil {
		slog.Error("record lookup failed", slog.String("id", id), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, engine.FormatMetrics())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", slog.Any("error", err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
