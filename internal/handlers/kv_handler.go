package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ibrasaif1/topspots/internal/interfaces"
)

// KVHandler handles settings (key/value) storage HTTP requests. The store
// backs runtime configuration, most importantly the google_api_key the
// startup credential resolution reads.
type KVHandler struct {
	storage interfaces.KeyValueStorage
	logger  arbor.ILogger
}

// NewKVHandler creates a new KV handler
func NewKVHandler(storage interfaces.KeyValueStorage, logger arbor.ILogger) *KVHandler {
	return &KVHandler{
		storage: storage,
		logger:  logger,
	}
}

// KVRootHandler dispatches /api/kv - GET lists all pairs, POST creates one.
func (h *KVHandler) KVRootHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listPairs(w, r)
	case http.MethodPost:
		h.createPair(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// KVItemHandler dispatches /api/kv/{key} by method.
func (h *KVHandler) KVItemHandler(w http.ResponseWriter, r *http.Request) {
	key, ok := h.parseKey(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getPair(w, r, key)
	case http.MethodPut:
		h.updatePair(w, r, key)
	case http.MethodDelete:
		h.deletePair(w, r, key)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// listPairs returns all pairs with masked values. Full values are only
// returned by the single-key GET.
func (h *KVHandler) listPairs(w http.ResponseWriter, r *http.Request) {
	pairs, err := h.storage.List(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list key/value pairs")
		WriteError(w, http.StatusInternalServerError, "Failed to list key/value pairs")
		return
	}

	sanitized := make([]map[string]interface{}, len(pairs))
	for i, pair := range pairs {
		sanitized[i] = map[string]interface{}{
			"key":         pair.Key,
			"value":       maskValue(pair.Value),
			"description": pair.Description,
			"created_at":  pair.CreatedAt,
			"updated_at":  pair.UpdatedAt,
		}
	}

	WriteJSON(w, http.StatusOK, sanitized)
}

// getPair returns one pair with its full value, for editing.
func (h *KVHandler) getPair(w http.ResponseWriter, r *http.Request, key string) {
	pair, err := h.storage.GetPair(r.Context(), key)
	if err != nil {
		if errors.Is(err, interfaces.ErrKeyNotFound) {
			WriteError(w, http.StatusNotFound, "Key not found")
			return
		}
		h.logger.Error().Err(err).Str("key", key).Msg("Failed to get key/value pair")
		WriteError(w, http.StatusInternalServerError, "Failed to retrieve key/value pair")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"key":         pair.Key,
		"value":       pair.Value,
		"description": pair.Description,
		"created_at":  pair.CreatedAt,
		"updated_at":  pair.UpdatedAt,
	})
}

// createPair handles POST /api/kv - rejects keys that already exist.
func (h *KVHandler) createPair(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key         string `json:"key"`
		Value       string `json:"value"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Key == "" {
		WriteError(w, http.StatusBadRequest, "Key is required")
		return
	}
	if req.Value == "" {
		WriteError(w, http.StatusBadRequest, "Value is required")
		return
	}

	// Keys are stored case-insensitively, so an existing pair under any
	// casing is a conflict.
	if _, err := h.storage.GetPair(r.Context(), req.Key); err == nil {
		WriteError(w, http.StatusConflict, "Key already exists")
		return
	}

	if err := h.storage.Set(r.Context(), req.Key, req.Value, req.Description); err != nil {
		h.logger.Error().Err(err).Str("key", req.Key).Msg("Failed to create key/value pair")
		WriteError(w, http.StatusInternalServerError, "Failed to create key/value pair")
		return
	}

	h.logger.Debug().Str("key", req.Key).Msg("Created key/value pair")

	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"status":  "success",
		"message": "Key/value pair created",
		"key":     req.Key,
	})
}

// updatePair handles PUT /api/kv/{key} - upserts the pair, reporting whether
// it was created or replaced.
func (h *KVHandler) updatePair(w http.ResponseWriter, r *http.Request, key string) {
	var req struct {
		Value       string `json:"value"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Value == "" {
		WriteError(w, http.StatusBadRequest, "Value is required")
		return
	}

	_, err := h.storage.GetPair(r.Context(), key)
	created := errors.Is(err, interfaces.ErrKeyNotFound)
	if err != nil && !created {
		h.logger.Error().Err(err).Str("key", key).Msg("Failed to check key/value pair")
		WriteError(w, http.StatusInternalServerError, "Failed to update key/value pair")
		return
	}

	if err := h.storage.Set(r.Context(), key, req.Value, req.Description); err != nil {
		h.logger.Error().Err(err).Str("key", key).Msg("Failed to update key/value pair")
		WriteError(w, http.StatusInternalServerError, "Failed to update key/value pair")
		return
	}

	status := http.StatusOK
	message := "Key/value pair updated"
	if created {
		status = http.StatusCreated
		message = "Key/value pair created"
	}
	h.logger.Debug().Str("key", key).Bool("created", created).Msg("Upserted key/value pair")

	WriteJSON(w, status, map[string]interface{}{
		"status":  "success",
		"message": message,
		"key":     key,
		"created": created,
	})
}

// deletePair handles DELETE /api/kv/{key}.
func (h *KVHandler) deletePair(w http.ResponseWriter, r *http.Request, key string) {
	if err := h.storage.Delete(r.Context(), key); err != nil {
		if errors.Is(err, interfaces.ErrKeyNotFound) {
			WriteError(w, http.StatusNotFound, "Key not found")
			return
		}
		h.logger.Error().Err(err).Str("key", key).Msg("Failed to delete key/value pair")
		WriteError(w, http.StatusInternalServerError, "Failed to delete key/value pair")
		return
	}

	h.logger.Debug().Str("key", key).Msg("Deleted key/value pair")
	WriteSuccess(w, "Key/value pair deleted")
}

// parseKey extracts and decodes the key from /api/kv/{key}.
func (h *KVHandler) parseKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	encoded := strings.TrimPrefix(r.URL.Path, "/api/kv/")
	key, err := url.QueryUnescape(encoded)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid key encoding")
		return "", false
	}
	if key == "" {
		WriteError(w, http.StatusBadRequest, "Missing key parameter")
		return "", false
	}
	return key, true
}

// maskValue masks stored values for the list response. Short values are
// fully masked; longer ones keep the first and last four characters.
func maskValue(value string) string {
	if len(value) < 8 {
		return "••••••••"
	}
	return value[:4] + "..." + value[len(value)-4:]
}
