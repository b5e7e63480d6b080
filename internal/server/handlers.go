package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tracelens/playground/internal/catalog"
	"github.com/tracelens/playground/internal/domain"
	"github.com/tracelens/playground/internal/params"
	"github.com/tracelens/playground/internal/provider"
	"github.com/tracelens/playground/internal/spanview"
	"github.com/tracelens/playground/internal/storage"
	"github.com/tracelens/playground/internal/telemetry"
	"github.com/tracelens/playground/internal/tokens"
)

// Handler owns the playground routes.
type Handler struct {
	logger    *slog.Logger
	providers *provider.Registry
	tokens    *tokens.Registry
	store     storage.PromptStore

	defaultProvider domain.ProviderKey
	defaultModel    string
	requestTimeout  time.Duration
}

// NewHandler wires handler dependencies.
func NewHandler(logger *slog.Logger, providers *provider.Registry, tokenizers *tokens.Registry, store storage.PromptStore, defaultProvider domain.ProviderKey, defaultModel string, requestTimeout time.Duration) *Handler {
	return &Handler{
		logger:          logger,
		providers:       providers,
		tokens:          tokenizers,
		store:           store,
		defaultProvider: defaultProvider,
		defaultModel:    defaultModel,
		requestTimeout:  requestTimeout,
	}
}

// Mount attaches all routes. Streaming completions sit outside the timeout
// middleware; everything else is bounded.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/healthz", h.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/playground/completions", h.handleCompletions)

		r.Group(func(r chi.Router) {
			r.Use(TimeoutMiddleware(h.requestTimeout))

			r.Post("/playground/span", h.handleTransformSpan)
			r.Post("/playground/token-count", h.handleTokenCount)
			r.Get("/models/{provider}/{model}/invocation-parameters", h.handleInvocationParameters)

			r.Route("/prompts", func(r chi.Router) {
				r.Post("/", h.handleCreatePrompt)
				r.Get("/", h.handleListPrompts)
				r.Get("/{id}", h.handleGetPrompt)
				r.Put("/{id}", h.handleUpdatePrompt)
				r.Delete("/{id}", h.handleDeletePrompt)
			})
		})
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// transformRequest carries the recorded span. Attributes may arrive as a
// JSON object or as a JSON-encoded string of one; both forms appear in
// exported trace data. Provider and Model override the configured defaults
// for spans recorded without a model name.
type transformRequest struct {
	Attributes json.RawMessage `json:"attributes"`
	Provider   string          `json:"provider,omitempty"`
	Model      string          `json:"model,omitempty"`
}

func (h *Handler) handleTransformSpan(w http.ResponseWriter, r *http.Request) {
	var req transformRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, domain.ErrInvalidRequest("invalid request body: "+err.Error()))
		return
	}
	if len(req.Attributes) == 0 {
		writeError(w, r, domain.ErrInvalidRequest("attributes is required").WithParam("attributes"))
		return
	}

	attrs := string(req.Attributes)
	var unquoted string
	if err := json.Unmarshal(req.Attributes, &unquoted); err == nil {
		attrs = unquoted
	}

	defaultProvider := h.defaultProvider
	if req.Provider != "" {
		defaultProvider = domain.ProviderKey(req.Provider)
	}
	defaultModel := h.defaultModel
	if req.Model != "" {
		defaultModel = req.Model
	}

	result := spanview.Transform(spanview.Span{Attributes: attrs}, spanview.Options{
		Supported:       h.supportedFor(attrs, defaultProvider, defaultModel),
		DefaultProvider: defaultProvider,
		DefaultModel:    defaultModel,
	})

	AddLogField(r.Context(), "provider", string(result.Instance.Model.Provider))
	AddLogField(r.Context(), "model", result.Instance.Model.ModelName)
	writeJSON(w, http.StatusOK, result)
}

// supportedFor peeks at the span's model name so the transformer filters
// parameters against the right catalog entry.
func (h *Handler) supportedFor(attrs string, fallbackProvider domain.ProviderKey, fallbackModel string) []params.Definition {
	model := fallbackModel
	key := fallbackProvider
	if res := gjson.Get(attrs, spanview.AttrPath(spanview.LLMModelName)); res.Type == gjson.String && res.Str != "" {
		model = res.Str
		key = spanview.InferProvider(model, fallbackProvider)
	}
	return catalog.Lookup(key, model)
}

func (h *Handler) handleInvocationParameters(w http.ResponseWriter, r *http.Request) {
	providerKey := domain.ProviderKey(chi.URLParam(r, "provider"))
	model := chi.URLParam(r, "model")

	if !domain.KnownProvider(providerKey) {
		writeError(w, r, domain.ErrNotFound(fmt.Sprintf("unknown provider: %s", providerKey)))
		return
	}

	defs := catalog.Lookup(providerKey, model)
	if defs == nil {
		defs = []params.Definition{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"provider":                        providerKey,
		"model":                           model,
		"supported_invocation_parameters": defs,
	})
}

type completionRequest struct {
	Instance domain.PromptInstance `json:"instance"`
	Stream   bool                  `json:"stream"`
}

func (h *Handler) handleCompletions(w http.ResponseWriter, r *http.Request) {
	var req completionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, domain.ErrInvalidRequest("invalid request body: "+err.Error()))
		return
	}
	if req.Instance.Model.ModelName == "" {
		writeError(w, r, domain.ErrInvalidRequest("model name is required").WithParam("instance.model.model_name"))
		return
	}

	p, ok := h.providers.Get(req.Instance.Model.Provider)
	if !ok {
		writeError(w, r, domain.ErrInvalidRequest(fmt.Sprintf("no provider configured for %s", req.Instance.Model.Provider)).WithParam("instance.model.provider"))
		return
	}

	supported := req.Instance.Model.SupportedInvocationParameters
	if len(supported) == 0 {
		supported = catalog.Lookup(req.Instance.Model.Provider, req.Instance.Model.ModelName)
	}
	req.Instance.Model.InvocationParameters = params.MergeWithDefaults(req.Instance.Model.InvocationParameters, supported)
	if !params.AllRequiredConfigured(req.Instance.Model.InvocationParameters, supported) {
		writeError(w, r, domain.ErrInvalidRequest("missing required invocation parameters").WithParam("instance.model.invocation_parameters"))
		return
	}

	AddLogField(r.Context(), "provider", string(req.Instance.Model.Provider))
	AddLogField(r.Context(), "model", req.Instance.Model.ModelName)

	if req.Stream {
		h.streamCompletion(w, r, p, &req.Instance)
		return
	}

	// Replay spans carry the same attribute keys the transformer reads, so a
	// replayed invocation round-trips through the span endpoint.
	ctx, span := telemetry.Tracer().Start(r.Context(), "provider.complete",
		trace.WithAttributes(
			attribute.String("llm.provider", string(req.Instance.Model.Provider)),
			attribute.String(spanview.LLMModelName, req.Instance.Model.ModelName),
		))
	result, err := p.Complete(ctx, &req.Instance)
	span.End()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// sseEvent is one streamed completion frame.
type sseEvent struct {
	ContentDelta string           `json:"content_delta,omitempty"`
	ToolCall     *domain.ToolCall `json:"tool_call,omitempty"`
	Usage        *domain.Usage    `json:"usage,omitempty"`
	Error        string           `json:"error,omitempty"`
	Done         bool             `json:"done,omitempty"`
}

func (h *Handler) streamCompletion(w http.ResponseWriter, r *http.Request, p provider.Provider, inst *domain.PromptInstance) {
	events, err := p.Stream(r.Context(), inst)
	if err != nil {
		writeError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, domain.ErrServer("streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for event := range events {
		frame := sseEvent{
			ContentDelta: event.ContentDelta,
			ToolCall:     event.ToolCall,
			Usage:        event.Usage,
		}
		if event.Err != nil {
			frame.Error = event.Err.Error()
			AddError(r.Context(), event.Err)
		}
		writeSSE(w, flusher, frame)
		if event.Err != nil {
			return
		}
	}
	writeSSE(w, flusher, sseEvent{Done: true})
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, event sseEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

func (h *Handler) handleTokenCount(w http.ResponseWriter, r *http.Request) {
	var inst domain.PromptInstance
	if err := json.NewDecoder(r.Body).Decode(&inst); err != nil {
		writeError(w, r, domain.ErrInvalidRequest("invalid request body: "+err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, h.tokens.Count(&inst))
}

type promptRequest struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Instance    domain.PromptInstance `json:"instance"`
}

func (h *Handler) handleCreatePrompt(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, domain.ErrInvalidRequest("invalid request body: "+err.Error()))
		return
	}
	if req.Name == "" {
		writeError(w, r, domain.ErrInvalidRequest("name is required").WithParam("name"))
		return
	}

	now := time.Now().UTC()
	prompt := &storage.SavedPrompt{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
		Instance:    req.Instance,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.store.SavePrompt(r.Context(), prompt); err != nil {
		writeError(w, r, domain.ErrServer("failed to save prompt: "+err.Error()))
		return
	}
	writeJSON(w, http.StatusCreated, prompt)
}

func (h *Handler) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, r, domain.ErrInvalidRequest("limit must be a positive integer").WithParam("limit"))
			return
		}
		limit = parsed
	}

	prompts, err := h.store.ListPrompts(r.Context(), limit)
	if err != nil {
		writeError(w, r, domain.ErrServer("failed to list prompts: "+err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prompts": prompts})
}

func (h *Handler) handleGetPrompt(w http.ResponseWriter, r *http.Request) {
	prompt, err := h.store.GetPrompt(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, domain.ErrNotFound("prompt not found"))
			return
		}
		writeError(w, r, domain.ErrServer("failed to get prompt: "+err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, prompt)
}

func (h *Handler) handleUpdatePrompt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := h.store.GetPrompt(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, domain.ErrNotFound("prompt not found"))
			return
		}
		writeError(w, r, domain.ErrServer("failed to get prompt: "+err.Error()))
		return
	}

	var req promptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, domain.ErrInvalidRequest("invalid request body: "+err.Error()))
		return
	}
	if req.Name != "" {
		existing.Name = req.Name
	}
	existing.Description = req.Description
	existing.Instance = req.Instance
	existing.UpdatedAt = time.Now().UTC()

	if err := h.store.SavePrompt(r.Context(), existing); err != nil {
		writeError(w, r, domain.ErrServer("failed to save prompt: "+err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

func (h *Handler) handleDeletePrompt(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeletePrompt(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, domain.ErrNotFound("prompt not found"))
			return
		}
		writeError(w, r, domain.ErrServer("failed to delete prompt: "+err.Error()))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	AddError(r.Context(), err)

	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) {
		apiErr = domain.ErrServer(err.Error())
	}
	writeJSON(w, apiErr.HTTPStatusCode(), map[string]any{"error": apiErr})
}
