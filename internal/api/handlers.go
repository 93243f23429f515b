package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/kholzweiler/planfreeze/pkg/cache"
	"github.com/kholzweiler/planfreeze/pkg/engine"
	"github.com/kholzweiler/planfreeze/pkg/errors"
	"github.com/kholzweiler/planfreeze/pkg/model"
	"github.com/kholzweiler/planfreeze/pkg/observability"
	"github.com/kholzweiler/planfreeze/pkg/render"
	"github.com/kholzweiler/planfreeze/pkg/store"
)

// defaultListLimit bounds /v1/runs responses when no limit is given.
const defaultListLimit = 50

// resolveRequest is the POST /v1/resolve payload.
type resolveRequest struct {
	Document model.Document `json:"document"`
	Options  engine.Options `json:"options"`
}

// resolveResponse is the POST /v1/resolve reply.
type resolveResponse struct {
	RunID    string         `json:"run_id"`
	DocHash  string         `json:"doc_hash"`
	CacheHit bool           `json:"cache_hit"`
	Document model.Document `json:"document"`
	Report   *engine.Report `json:"report"`
}

// errorResponse is the uniform error reply shape.
type errorResponse struct {
	Error string      `json:"error"`
	Code  errors.Code `json:"code,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	defer body.Close()

	var req resolveRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "malformed request body"))
		return
	}

	result, err := s.opts.Runner.Execute(r.Context(), req.Document, req.Options)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if s.opts.Store != nil {
		run := &store.Run{
			ID:        result.Report.RunID,
			CreatedAt: time.Now().UTC(),
			Document:  result.Document,
			Report:    *result.Report,
		}
		if err := s.opts.Store.Put(r.Context(), run); err != nil {
			// Archiving is best effort; the resolution result still stands.
			s.opts.Logger.Warn("failed to archive run", "run", run.ID, "err", err)
		}
	}

	writeJSON(w, http.StatusOK, resolveResponse{
		RunID:    result.Report.RunID,
		DocHash:  result.DocHash,
		CacheHit: result.CacheInfo.ResolutionHit,
		Document: result.Document,
		Report:   result.Report,
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, r, errors.New(errors.ErrCodeInvalidInput, "invalid limit %q", raw))
			return
		}
		limit = n
	}

	runs, err := s.opts.Store.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if runs == nil {
		runs = []store.Summary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := errors.ValidateRunID(id); err != nil {
		s.writeError(w, r, err)
		return
	}

	run, err := s.opts.Store.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleRenderRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := errors.ValidateRunID(id); err != nil {
		s.writeError(w, r, err)
		return
	}

	run, err := s.opts.Store.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "svg"
	}

	switch format {
	case "dot":
		dot := render.ToDOT(run.Document, render.Options{Tolerance: engine.DefaultTolerance})
		w.Header().Set("Content-Type", "text/vnd.graphviz")
		_, _ = io.WriteString(w, dot)
	case "svg":
		svg, err := s.renderSVG(r.Context(), run)
		if err != nil {
			s.writeError(w, r, errors.Wrap(errors.ErrCodeInternal, err, "render failed"))
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		_, _ = w.Write(svg)
	case "plan":
		w.Header().Set("Content-Type", "image/svg+xml")
		_, _ = w.Write(render.PlanSVG(run.Document))
	default:
		s.writeError(w, r, errors.New(errors.ErrCodeInvalidFormat, "unknown format %q (want dot, svg, or plan)", format))
	}
}

// renderSVG produces the constraint-graph SVG for a run, consulting the
// runner's cache keyed by document hash before invoking graphviz.
func (s *Server) renderSVG(ctx context.Context, run *store.Run) ([]byte, error) {
	data, err := model.MarshalDocument(run.Document)
	if err != nil {
		return nil, err
	}
	key := s.opts.Runner.Keyer.RenderKey(cache.Hash(data), cache.RenderKeyOpts{Format: "svg"})

	if cached, ok, err := s.opts.Runner.Cache.Get(ctx, key); err == nil && ok {
		observability.Cache().OnCacheHit(ctx, "render")
		return cached, nil
	}
	observability.Cache().OnCacheMiss(ctx, "render")

	dot := render.ToDOT(run.Document, render.Options{Tolerance: engine.DefaultTolerance})
	svg, err := render.RenderSVG(dot)
	if err != nil {
		return nil, err
	}
	if err := s.opts.Runner.Cache.Set(ctx, key, svg, cache.TTLRender); err == nil {
		observability.Cache().OnCacheSet(ctx, "render", len(svg))
	}
	return svg, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps error codes to HTTP statuses and emits the uniform error
// shape.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.GetCode(err)
	status := http.StatusInternalServerError
	switch code {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidDocument, errors.ErrCodeInvalidOptions,
		errors.ErrCodeInvalidConstraint, errors.ErrCodeInvalidFormat, errors.ErrCodeInvalidPath:
		status = http.StatusBadRequest
	case errors.ErrCodeNotFound, errors.ErrCodeRunNotFound, errors.ErrCodeFileNotFound,
		errors.ErrCodeElementNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeOverConstrained:
		status = http.StatusUnprocessableEntity
	case errors.ErrCodeTimeout:
		status = http.StatusGatewayTimeout
	case errors.ErrCodeUnsupported:
		status = http.StatusNotImplemented
	}

	if status >= 500 {
		loggerFromContext(r.Context()).Error("request failed", "code", code, "err", err)
	}
	writeJSON(w, status, errorResponse{Error: errors.UserMessage(err), Code: code})
}

func discardLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}
