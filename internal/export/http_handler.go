package export

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/metacat-io/metacat/internal/auth"
)

// Handler exposes export as an HTTP endpoint.
type Handler struct {
	service *Service
	checker *auth.Checker
}

// NewHTTPHandler wraps the service with a POST endpoint.
func NewHTTPHandler(service *Service, checker *auth.Checker) http.Handler {
	return &Handler{service: service, checker: checker}
}

type exportPayload struct {
	EntityType string          `json:"entityType"`
	Filters    json.RawMessage `json:"filters"`
	TextSearch string          `json:"q"`
	Format     string          `json:"format"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	var payload exportPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}

	if err := auth.EnforceCapability(r.Context(), h.checker, auth.OpExport, payload.EntityType); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	filters, err := unmarshalFilters(payload.Filters)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid filters: %v", err), http.StatusBadRequest)
		return
	}

	result, err := h.service.Export(r.Context(), Request{
		EntityType: payload.EntityType,
		Filters:    filters,
		TextSearch: payload.TextSearch,
		Format:     payload.Format,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
