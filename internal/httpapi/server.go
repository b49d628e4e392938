// Package httpapi exposes the model manager over HTTP: catalog listing,
// download/delete/select and NDJSON-streamed completions.
package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"promptd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListModels() []types.Model
	Model(id string) (types.Model, error)
	Selected() string
	DownloadModel(id string) error
	DeleteModel(id string) error
	SelectModel(id string) error
	Status() types.StatusResponse
	SanityCheck() types.SanityReport
	Infer(ctx context.Context, req types.InferRequest, w io.Writer, flush func()) error
	Ready() bool
}

type handlers struct{ svc Service }

// NewMux builds the router for svc.
func NewMux(svc Service) http.Handler {
	h := handlers{svc: svc}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(inflightMiddleware)
		r.Get("/models", h.listModels)
		r.Get("/models/{id}", h.getModel)
		r.Post("/models/{id}/download", h.downloadModel)
		r.Delete("/models/{id}", h.deleteModel)
		r.Post("/select", h.selectModel)
		r.Post("/infer", h.infer)
		r.Get("/status", h.status)
		r.Get("/sanity", h.sanity)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)
	return r
}

// listModels godoc
// @Summary      List catalog models
// @Tags         models
// @Produce      json
// @Success      200  {object}  types.ModelsResponse
// @Router       /models [get]
func (h handlers) listModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.ModelsResponse{Models: h.svc.ListModels(), Selected: h.svc.Selected()})
}

// getModel godoc
// @Summary      Describe one model, including GGUF header metadata when downloaded
// @Tags         models
// @Produce      json
// @Param        id   path      string  true  "Model id"
// @Success      200  {object}  types.Model
// @Failure      404  {object}  types.ErrorResponse
// @Router       /models/{id} [get]
func (h handlers) getModel(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.Model(chi.URLParam(r, "id"))
	if err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// downloadModel godoc
// @Summary      Start downloading a model in the background
// @Tags         models
// @Produce      json
// @Param        id   path      string  true  "Model id"
// @Success      202  {object}  types.Model
// @Failure      404  {object}  types.ErrorResponse
// @Router       /models/{id}/download [post]
func (h handlers) downloadModel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.DownloadModel(id); err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	m, err := h.svc.Model(id)
	if err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, m)
}

// deleteModel godoc
// @Summary      Cancel any download and remove a model's files
// @Tags         models
// @Param        id   path      string  true  "Model id"
// @Success      204
// @Failure      404  {object}  types.ErrorResponse
// @Router       /models/{id} [delete]
func (h handlers) deleteModel(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteModel(chi.URLParam(r, "id")); err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// selectModel godoc
// @Summary      Select the model used for completions
// @Tags         models
// @Accept       json
// @Produce      json
// @Param        body  body      types.SelectRequest  true  "Model to select"
// @Success      200   {object}  types.SelectRequest
// @Failure      400   {object}  types.ErrorResponse
// @Failure      404   {object}  types.ErrorResponse
// @Router       /select [post]
func (h handlers) selectModel(w http.ResponseWriter, r *http.Request) {
	var req types.SelectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Model) == "" {
		writeJSONError(w, http.StatusBadRequest, "model is required")
		return
	}
	if err := h.svc.SelectModel(req.Model); err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, types.SelectRequest{Model: h.svc.Selected()})
}

// status godoc
// @Summary      Manager and session status
// @Tags         status
// @Produce      json
// @Success      200  {object}  types.StatusResponse
// @Router       /status [get]
func (h handlers) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// sanity godoc
// @Summary      Report discovery of llama.cpp tools
// @Tags         status
// @Produce      json
// @Success      200  {object}  types.SanityReport
// @Router       /sanity [get]
func (h handlers) sanity(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.SanityCheck())
}

// decodeJSON enforces the content type and body limit and decodes into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// oversize bodies get the same answer as malformed ones
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// infer godoc
// @Summary      Stream a completion as NDJSON
// @Description  Lines are {"delta":"..."} followed by {"done":true,"content":"..."} or a single {"error":"..."}. A model that is not downloaded answers 409 and starts downloading.
// @Tags         inference
// @Accept       json
// @Produce      application/x-ndjson
// @Param        body  body      types.InferRequest  true  "Completion request"
// @Success      200   {object}  types.InferChunk
// @Failure      400   {object}  types.ErrorResponse
// @Failure      404   {object}  types.ErrorResponse
// @Failure      409   {object}  types.ErrorResponse
// @Failure      503   {object}  types.ErrorResponse
// @Router       /infer [post]
func (h handlers) infer(w http.ResponseWriter, r *http.Request) {
	var req types.InferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSONError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if req.Temperature != nil && *req.Temperature < 0 {
		writeJSONError(w, http.StatusBadRequest, "temperature must not be negative")
		return
	}
	if req.TopP != nil && (*req.TopP < 0 || *req.TopP > 1) {
		writeJSONError(w, http.StatusBadRequest, "top_p must be between 0 and 1")
		return
	}
	if req.MaxTokens < 0 {
		writeJSONError(w, http.StatusBadRequest, "max_tokens must not be negative")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	var flush func()
	if f, ok := w.(http.Flusher); ok {
		flush = f.Flush
	}
	start := time.Now()
	lg := logger()
	lvl := requestLogLevel(r)
	writer := io.Writer(w)
	if lvl >= LevelDebug {
		writer = io.MultiWriter(w, &loggingLineWriter{logger: lg})
	}
	rid := middleware.GetReqID(r.Context())
	if lvl >= LevelInfo {
		lg.Info().Str("request_id", rid).Str("model", req.Model).Msg("infer start")
	}

	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	if inferTimeout > 0 {
		var tcancel context.CancelFunc
		ctx, tcancel = context.WithTimeout(ctx, inferTimeout)
		defer tcancel()
	}
	err := h.svc.Infer(ctx, req, writer, flush)
	if err != nil && (r.Context().Err() != nil || serverBaseCtx.Err() != nil) {
		return
	}
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
		w.Header().Set("Content-Type", "application/json")
		writeJSONError(w, status, err.Error())
	}
	switch {
	case err != nil && lvl >= LevelError:
		lg.Warn().Err(err).Str("request_id", rid).Int("status", status).Dur("dur", time.Since(start)).Msg("infer end")
	case err == nil && lvl >= LevelInfo:
		lg.Info().Str("request_id", rid).Int("status", status).Dur("dur", time.Since(start)).Msg("infer end")
	}
}
