// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package transcriptome

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Server is the HTTP front end for the analysis engines. The zero
// value is usable; unset fields get defaults on first use.
type Server struct {
	Enricher       *Enricher
	MaxUploadBytes int64
	RequestTimeout time.Duration
	// Registry receives the server's metrics and is exposed at
	// /metrics. If nil, a new registry is created.
	Registry *prometheus.Registry

	setupOnce sync.Once
	router    http.Handler
	metrics   *serverMetrics
	tables    *tableCache
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.setupOnce.Do(s.setup)
	s.router.ServeHTTP(w, r)
}

func (s *Server) setup() {
	if s.Enricher == nil {
		s.Enricher = NewEnricher()
	}
	if s.MaxUploadBytes <= 0 {
		s.MaxUploadBytes = 256 << 20
	}
	if s.RequestTimeout <= 0 {
		s.RequestTimeout = 5 * time.Minute
	}
	if s.Registry == nil {
		s.Registry = prometheus.NewRegistry()
	}
	s.metrics = newServerMetrics(s.Registry)
	s.tables = &tableCache{Max: 16}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(s.metrics.instrument)
	r.Use(middleware.Recoverer)
	r.Use(allowCORS)
	r.Use(middleware.Timeout(s.RequestTimeout))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Transcriptome backend is running."})
	})
	r.Post("/upload", s.handleUpload)
	r.Post("/match-samples", s.handleMatchSamples)
	r.Post("/pca", s.handlePCA)
	r.Post("/analyze", s.handleAnalyze)
	r.Post("/de", s.handleDE)
	r.Post("/enrich", s.handleEnrich)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{}))
	s.router = r
}

// upload is a parsed multipart request carrying a counts file, a
// metadata file, and analysis parameters.
type upload struct {
	counts      *CountsTable
	meta        *MetadataTable
	sampleCol   string
	groupCol    string
	nComponents int
}

// parseUpload reads the multipart form fields counts_file,
// metadata_file, sample_col, group_col, and n_components. Only the
// form fields named in required must be present.
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request, required ...string) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, &InvalidArgumentError{Msg: "cannot parse multipart form: " + err.Error()}
	}
	for _, field := range required {
		if r.FormValue(field) == "" {
			return nil, &InvalidArgumentError{Msg: fmt.Sprintf("missing form field %q", field)}
		}
	}
	up := &upload{
		sampleCol:   r.FormValue("sample_col"),
		groupCol:    r.FormValue("group_col"),
		nComponents: DefaultPCAComponents,
	}
	if nc := r.FormValue("n_components"); nc != "" {
		n, err := strconv.Atoi(nc)
		if err != nil {
			return nil, &InvalidArgumentError{Msg: fmt.Sprintf("invalid n_components %q", nc)}
		}
		up.nComponents = n
	}
	var err error
	up.counts, err = readFormTable(s.tables, r, "counts_file", ReadCountsTable)
	if err != nil {
		return nil, err
	}
	up.meta, err = readFormTable(s.tables, r, "metadata_file", ReadMetadataTable)
	if err != nil {
		return nil, err
	}
	log.WithField("RequestID", middleware.GetReqID(r.Context())).Debugf("upload: counts %d x %d, metadata %d rows, sample_col %q, group_col %q",
		len(up.counts.Genes), len(up.counts.Samples), len(up.meta.Rows), up.sampleCol, up.groupCol)
	return up, nil
}

func readFormTable[T any](tc *tableCache, r *http.Request, field string, read func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return zero, &InvalidArgumentError{Msg: fmt.Sprintf("missing file %q", field)}
	} else if err != nil {
		return zero, &InvalidArgumentError{Msg: fmt.Sprintf("%s: %s", field, err)}
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", field, err)
	}
	return cachedTable(tc, field, data, read)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	up, err := s.parseUpload(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Summarize(up.counts, up.meta))
}

func (s *Server) handleMatchSamples(w http.ResponseWriter, r *http.Request) {
	up, err := s.parseUpload(w, r, "sample_col")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rpt, err := MatchSamples(up.counts, up.meta, up.sampleCol)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rpt)
}

func (s *Server) handlePCA(w http.ResponseWriter, r *http.Request) {
	up, err := s.parseUpload(w, r, "sample_col", "group_col")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.pca(up)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Records)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	up, err := s.parseUpload(w, r, "sample_col", "group_col")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.pca(up)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Summary
		PCA []ProjectionRecord `json:"pca"`
	}{Summarize(up.counts, up.meta), res.Records})
}

func (s *Server) pca(up *upload) (*PCAResult, error) {
	defer s.metrics.time("pca")()
	return ComputePCA(up.counts, up.meta, up.sampleCol, up.groupCol, up.nComponents)
}

func (s *Server) handleDE(w http.ResponseWriter, r *http.Request) {
	up, err := s.parseUpload(w, r, "sample_col", "group_col")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	done := s.metrics.time("de")
	res, err := ComputeDifferentialExpression(up.counts, up.meta, up.sampleCol, up.groupCol, DEOptions{Test: r.FormValue("test")})
	done()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Records)
}

func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query    interface{} `json:"query"`
		Organism string      `json:"organism"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.MaxUploadBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, &InvalidArgumentError{Msg: "invalid JSON request body"})
		return
	}
	list, ok := req.Query.([]interface{})
	if !ok || len(list) == 0 {
		s.writeError(w, r, &InvalidArgumentError{Msg: "Missing or invalid 'query' list"})
		return
	}
	done := s.metrics.time("enrich")
	recs, err := s.Enricher.Enrich(r.Context(), GeneList(list), req.Organism)
	done()
	s.metrics.enrichmentOutcome(recs, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// writeError sends 400 for caller input errors, 502 for enrichment
// service failures, and a generic 500 for anything else.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var remote *RemoteCallError
	logger := log.WithField("RequestID", middleware.GetReqID(r.Context())).WithError(err)
	switch {
	case IsInputError(err):
		logger.Info("rejected request")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.As(err, &remote):
		logger.Warn("enrichment service failed")
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
	default:
		logger.Error("internal error")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	buf, err := json.Marshal(v)
	if err != nil {
		log.WithError(err).Error("encoding response")
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(buf, '\n'))
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		t0 := time.Now()
		next.ServeHTTP(ww, r)
		log.WithFields(log.Fields{
			"RequestID":  middleware.GetReqID(r.Context()),
			"RemoteAddr": r.RemoteAddr,
			"Method":     r.Method,
			"Path":       r.URL.Path,
			"Status":     ww.Status(),
			"Bytes":      ww.BytesWritten(),
			"Duration":   time.Since(t0).Seconds(),
		}).Info("request")
	})
}

// allowCORS lets browser front ends on any origin call the API.
func allowCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-Id")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
