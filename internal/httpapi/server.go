package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shardd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Status() types.StatusResponse
	Ready() bool
	ListModels() ([]types.Model, error)
	Downloads(engine string) types.DownloadsResponse
	Prefetch(ctx context.Context, req types.PrefetchRequest) (string, error)
	Operation(id string) (types.OperationStatus, bool)
	InferPrompt(ctx context.Context, req types.InferPromptRequest) (types.InferResponse, error)
	InferTensor(ctx context.Context, req types.InferTensorRequest) (types.InferResponse, error)
	Subscribe(fn func(types.Shard, types.ProgressEvent)) (unsubscribe func())
}

// badRequest marks request validation failures.
type badRequest struct{ msg string }

func (e badRequest) Error() string   { return e.msg }
func (e badRequest) StatusCode() int { return http.StatusBadRequest }

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(corsOptions()))
	}

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
		_, _ = w.Write([]byte("no shard loaded"))
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Status())
	})

	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		models, err := svc.ListModels()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if models == nil {
			models = []types.Model{}
		}
		writeJSON(w, types.ModelsResponse{Models: models})
	})

	r.Get("/downloads", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Downloads(r.URL.Query().Get("engine")))
	})

	r.Post("/shards/prefetch", func(w http.ResponseWriter, r *http.Request) {
		var req types.PrefetchRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleError(w, r, time.Now(), err)
			return
		}
		if err := req.Shard.Validate(); err != nil {
			handleError(w, r, time.Now(), badRequest{msg: err.Error()})
			return
		}
		// Prefetch outlives the request; only shutdown cancels it.
		id, err := svc.Prefetch(serverBaseCtx, req)
		if err != nil {
			handleError(w, r, time.Now(), err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(types.PrefetchResponse{OperationID: id})
	})

	r.Get("/shards/prefetch/{id}", func(w http.ResponseWriter, r *http.Request) {
		op, ok := svc.Operation(chi.URLParam(r, "id"))
		if !ok {
			writeJSONError(w, http.StatusNotFound, "unknown operation")
			return
		}
		writeJSON(w, op)
	})

	r.Post("/infer/prompt", func(w http.ResponseWriter, r *http.Request) {
		var req types.InferPromptRequest
		serveInfer(w, r, &req, func() error { return req.Shard.Validate() }, func(ctx context.Context) (types.InferResponse, error) {
			return svc.InferPrompt(ctx, req)
		})
	})

	r.Post("/infer/tensor", func(w http.ResponseWriter, r *http.Request) {
		var req types.InferTensorRequest
		serveInfer(w, r, &req, func() error {
			if err := req.Shard.Validate(); err != nil {
				return err
			}
			if len(req.Tensor.Data) == 0 {
				return errors.New("tensor is required")
			}
			return nil
		}, func(ctx context.Context) (types.InferResponse, error) {
			return svc.InferTensor(ctx, req)
		})
	})

	r.Get("/events", eventsHandler(svc))

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// serveInfer decodes into req, validates, runs the call under the joined
// request context and writes the response or a mapped error.
func serveInfer(w http.ResponseWriter, r *http.Request, req any, validate func() error, call func(context.Context) (types.InferResponse, error)) {
	start := time.Now()
	lvl := requestLogLevel(r)
	if err := decodeJSON(w, r, req); err != nil {
		handleError(w, r, start, err)
		return
	}
	if err := validate(); err != nil {
		handleError(w, r, start, badRequest{msg: err.Error()})
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	resp, err := call(ctx)
	if err != nil {
		// If context was canceled (client disconnect or shutdown), just return.
		if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
			return
		}
		handleError(w, r, start, err)
		return
	}
	writeJSON(w, resp)
	logEnd(r, lvl, http.StatusOK, start, nil)
}

// decodeJSON enforces the content type and body limit.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		return unsupportedMediaType{}
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Oversized bodies surface here too; report them the same way.
		return badRequest{msg: "invalid JSON body"}
	}
	return nil
}

type unsupportedMediaType struct{}

func (unsupportedMediaType) Error() string   { return "Content-Type must be application/json" }
func (unsupportedMediaType) StatusCode() int { return http.StatusUnsupportedMediaType }

func handleError(w http.ResponseWriter, r *http.Request, start time.Time, err error) {
	status := statusFor(err)
	if status == http.StatusTooManyRequests {
		IncrementBackpressure("engine_queue")
	}
	writeJSONError(w, status, err.Error())
	logEnd(r, requestLogLevel(r), status, start, err)
}

func corsOptions() cors.Options {
	methods := corsAllowedMethods
	if len(methods) == 0 {
		methods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	}
	headers := corsAllowedHeaders
	if len(headers) == 0 {
		headers = []string{"Content-Type", "X-Log-Level"}
	}
	return cors.Options{
		AllowedOrigins: corsAllowedOrigins,
		AllowedMethods: methods,
		AllowedHeaders: headers,
		MaxAge:         300,
	}
}
