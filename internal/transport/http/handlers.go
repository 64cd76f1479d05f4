package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	assistant "carmarket-search/internal/assistant/service"
	"carmarket-search/internal/common/errors"
	"carmarket-search/internal/common/logger"
	"carmarket-search/internal/metadata"
)

const maxBodyBytes = 64 << 10

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	fields := map[string]interface{}{"error": err, "status": status}
	log := logger.FromContext(r.Context(), h.logger)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", fields)
	} else {
		log.Debug("request rejected", fields)
	}
	errors.WriteJSON(w, err)
}

// ==========================
// Health checks
// ==========================

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{}
	status := http.StatusOK
	for _, p := range h.deps.Pingers {
		if err := p.Ping(ctx); err != nil {
			checks[p.Name()] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[p.Name()] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	writeJSON(w, status, map[string]interface{}{"status": state, "checks": checks})
}

// ==========================
// Search
// ==========================

// search never rejects filters: malformed values are dropped and reported.
func (h *handler) search(w http.ResponseWriter, r *http.Request) {
	spec, dropped := h.deps.Search.Parser().FromValues(r.URL.Query())
	if len(dropped) > 0 {
		logger.FromContext(r.Context(), h.logger).Warn("ignored malformed filters", map[string]interface{}{"dropped": dropped})
	}

	envelope, err := h.deps.Search.Search(r.Context(), spec)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	envelope.DroppedFields = dropped
	writeJSON(w, http.StatusOK, envelope)
}

func (h *handler) listing(w http.ResponseWriter, r *http.Request) {
	listing, err := h.deps.Search.FindListing(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

// ==========================
// Assistant
// ==========================

func (h *handler) welcome(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, assistant.Welcome())
}

func (h *handler) assistantQuery(w http.ResponseWriter, r *http.Request) {
	var req assistant.Request
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		h.fail(w, r, errors.NewInvalidRequestError("body must be a JSON object: "+err.Error()))
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if err := validatorInstance().Struct(req); err != nil {
		h.fail(w, r, errors.NewInvalidRequestError(describeValidation(err)))
		return
	}

	writeJSON(w, http.StatusOK, h.deps.Assistant.Process(r.Context(), req))
}

// ==========================
// Metadata
// ==========================

func (h *handler) allMetadata(w http.ResponseWriter, r *http.Request) {
	all, err := h.deps.Metadata.GetAllMetadata(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (h *handler) makes(w http.ResponseWriter, r *http.Request) {
	makes, err := h.deps.Metadata.GetAllMakes(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, makes)
}

func (h *handler) models(w http.ResponseWriter, r *http.Request) {
	models, err := h.deps.Metadata.GetModelsByMake(r.Context(), chi.URLParam(r, "makeId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models)
}

func (h *handler) metadataByType(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "type")
	t, ok := metadata.TypeSlugs[slug]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"error": map[string]string{"code": "NOT_FOUND", "message": "unknown metadata type: " + slug},
		})
		return
	}

	items, err := h.deps.Metadata.GetMetadataByType(r.Context(), t)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}
