package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/metacat-io/metacat/internal/auth"
	"github.com/metacat-io/metacat/internal/domain"
	"github.com/metacat-io/metacat/internal/repository"
	"github.com/metacat-io/metacat/internal/version"
	"github.com/metacat-io/metacat/pkg/fqn"
)

// EntityHandler serves entity CRUD, version history and field diffs.
type EntityHandler struct {
	entities repository.EntityRepository
	versions repository.EntityVersionRepository
	checker  *auth.Checker
}

// NewEntityHandler wraps the repositories with the /entities endpoints.
func NewEntityHandler(
	entities repository.EntityRepository,
	versions repository.EntityVersionRepository,
	checker *auth.Checker,
) http.Handler {
	return &EntityHandler{entities: entities, versions: versions, checker: checker}
}

func (h *EntityHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	segments := pathSegments(r.URL.Path, "/api/v1/entities")

	switch {
	case r.Method == http.MethodPost && len(segments) == 0:
		h.handleCreate(w, r)
	case r.Method == http.MethodGet && len(segments) == 0:
		h.handleList(w, r)
	case r.Method == http.MethodGet && len(segments) == 1 && segments[0] == "stats":
		h.handleStats(w, r)
	case r.Method == http.MethodGet && len(segments) == 1:
		h.handleGet(w, r, segments[0])
	case r.Method == http.MethodPatch && len(segments) == 1:
		h.handlePatch(w, r, segments[0])
	case r.Method == http.MethodDelete && len(segments) == 1:
		h.handleDelete(w, r, segments[0])
	case r.Method == http.MethodPost && len(segments) == 2 && segments[1] == "restore":
		h.handleRestore(w, r, segments[0])
	case r.Method == http.MethodGet && len(segments) == 2 && segments[1] == "children":
		h.handleChildren(w, r, segments[0])
	case r.Method == http.MethodGet && len(segments) == 2 && segments[1] == "descendants":
		h.handleDescendants(w, r, segments[0])
	case r.Method == http.MethodGet && len(segments) == 2 && segments[1] == "versions":
		h.handleListVersions(w, r, segments[0])
	case r.Method == http.MethodGet && len(segments) == 3 && segments[1] == "versions":
		h.handleGetVersion(w, r, segments[0], segments[2])
	case r.Method == http.MethodGet && len(segments) == 4 && segments[1] == "versions" && segments[3] == "diff":
		h.handleVersionDiff(w, r, segments[0], segments[2])
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func pathSegments(path, prefix string) []string {
	trimmed := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

type createEntityPayload struct {
	EntityType  string            `json:"entityType"`
	FQN         string            `json:"fullyQualifiedName"`
	ParentFQN   string            `json:"parentFQN"`
	Name        string            `json:"name"`
	DisplayName string            `json:"displayName"`
	Description string            `json:"description"`
	Owner       string            `json:"owner"`
	Tags        []domain.TagLabel `json:"tags"`
	Properties  map[string]any    `json:"properties"`
}

func (h *EntityHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var payload createEntityPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}

	// Callers may address the new entity by full path or by parent plus name;
	// either side can be derived from the other.
	if payload.FQN == "" && payload.Name != "" {
		payload.FQN = fqn.Build(payload.ParentFQN, payload.Name)
	}
	if payload.Name == "" && payload.FQN != "" {
		payload.Name = fqn.Name(payload.FQN)
	}
	if payload.EntityType == "" || payload.FQN == "" || payload.Name == "" {
		http.Error(w, "entityType plus fullyQualifiedName or parentFQN/name are required", http.StatusBadRequest)
		return
	}

	if err := auth.EnforceCapability(r.Context(), h.checker, auth.OpCreate, payload.EntityType); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	entity := domain.NewEntity(payload.EntityType, payload.FQN, payload.Name, payload.Properties)
	entity = entity.WithDisplayName(payload.DisplayName).
		WithDescription(payload.Description).
		WithOwner(payload.Owner)
	if len(payload.Tags) > 0 {
		entity = entity.WithTags(payload.Tags)
	}

	created, err := h.entities.Create(r.Context(), entity)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *EntityHandler) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := &domain.EntityFilter{
		EntityType:     query.Get("entityType"),
		TextSearch:     query.Get("q"),
		IncludeDeleted: query.Get("includeDeleted") == "true",
	}
	if err := auth.EnforceCapability(r.Context(), h.checker, auth.OpView, filter.EntityType); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	// A fqn parameter turns the listing into a keyed lookup.
	if fqnParam := query.Get("fqn"); fqnParam != "" {
		if filter.EntityType == "" {
			http.Error(w, "entityType is required when looking up by fqn", http.StatusBadRequest)
			return
		}
		entity, err := h.entities.GetByFQN(r.Context(), filter.EntityType, fqnParam)
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "entity not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, entity)
		return
	}

	limit := intParam(query.Get("limit"), 25)
	offset := intParam(query.Get("offset"), 0)

	var sort *domain.EntitySort
	if field := query.Get("sortField"); field != "" {
		sort = &domain.EntitySort{
			Field:     domain.EntitySortField(field),
			Direction: domain.SortDirection(query.Get("sortOrder")),
		}
	}

	entities, total, err := h.entities.List(r.Context(), filter, sort, limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  entities,
		"total": total,
	})
}

func (h *EntityHandler) handleGet(w http.ResponseWriter, r *http.Request, idRaw string) {
	entity, ok := h.loadEntity(w, r, idRaw)
	if !ok {
		return
	}
	if err := auth.EnforceCapability(r.Context(), h.checker, auth.OpView, entity.EntityType); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	writeJSON(w, http.StatusOK, entity)
}

type patchEntityPayload struct {
	DisplayName      *string            `json:"displayName"`
	Description      *string            `json:"description"`
	Owner            *string            `json:"owner"`
	Tags             *[]domain.TagLabel `json:"tags"`
	Properties       *map[string]any    `json:"properties"`
	RemoveProperties []string           `json:"removeProperties"`
}

// requiredCapability maps the touched fields to the narrowest capability that
// still covers the patch.
func (p patchEntityPayload) requiredCapability() auth.Operation {
	touchesOther := p.DisplayName != nil || p.Owner != nil || p.Properties != nil ||
		len(p.RemoveProperties) > 0
	switch {
	case touchesOther:
		return auth.OpEditAll
	case p.Tags != nil && p.Description == nil:
		return auth.OpEditTags
	case p.Description != nil && p.Tags == nil:
		return auth.OpEditDescription
	default:
		return auth.OpEditAll
	}
}

func (h *EntityHandler) handlePatch(w http.ResponseWriter, r *http.Request, idRaw string) {
	defer r.Body.Close()
	var payload patchEntityPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}

	entity, ok := h.loadEntity(w, r, idRaw)
	if !ok {
		return
	}

	if err := auth.EnforceCapability(r.Context(), h.checker, payload.requiredCapability(), entity.EntityType); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	if payload.DisplayName != nil {
		entity = entity.WithDisplayName(*payload.DisplayName)
	}
	if payload.Description != nil {
		entity = entity.WithDescription(*payload.Description)
	}
	if payload.Owner != nil {
		entity = entity.WithOwner(*payload.Owner)
	}
	if payload.Tags != nil {
		entity = entity.WithTags(*payload.Tags)
	}
	if payload.Properties != nil {
		entity = entity.WithProperties(*payload.Properties)
	}
	for _, key := range payload.RemoveProperties {
		entity = entity.WithoutProperty(key)
	}

	updated, err := h.entities.Update(r.Context(), entity)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *EntityHandler) handleDelete(w http.ResponseWriter, r *http.Request, idRaw string) {
	entity, ok := h.loadEntity(w, r, idRaw)
	if !ok {
		return
	}
	if err := auth.EnforceCapability(r.Context(), h.checker, auth.OpDelete, entity.EntityType); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	if err := h.entities.Delete(r.Context(), entity.ID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repository.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type restorePayload struct {
	Version int64  `json:"version"`
	Reason  string `json:"reason"`
}

func (h *EntityHandler) handleRestore(w http.ResponseWriter, r *http.Request, idRaw string) {
	defer r.Body.Close()
	var payload restorePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	if payload.Version <= 0 {
		http.Error(w, "version must be positive", http.StatusBadRequest)
		return
	}

	entity, ok := h.loadEntity(w, r, idRaw)
	if !ok {
		return
	}
	if err := auth.EnforceCapability(r.Context(), h.checker, auth.OpRestore, entity.EntityType); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	restored, err := h.entities.Restore(r.Context(), entity.ID, payload.Version, payload.Reason)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repository.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, http.StatusOK, restored)
}

func (h *EntityHandler) handleChildren(w http.ResponseWriter, r *http.Request, idRaw string) {
	entity, ok := h.loadEntity(w, r, idRaw)
	if !ok {
		return
	}
	if err := auth.EnforceCapability(r.Context(), h.checker, auth.OpView, entity.EntityType); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	children, err := h.entities.GetChildren(r.Context(), entity.FQN)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, children)
}

func (h *EntityHandler) handleDescendants(w http.ResponseWriter, r *http.Request, idRaw string) {
	entity, ok := h.loadEntity(w, r, idRaw)
	if !ok {
		return
	}
	if err := auth.EnforceCapability(r.Context(), h.checker, auth.OpView, entity.EntityType); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	descendants, err := h.entities.GetDescendants(r.Context(), entity.FQN)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, descendants)
}

var statsEntityTypes = []string{
	domain.EntityTypeTable,
	domain.EntityTypeTopic,
	domain.EntityTypeDashboard,
	domain.EntityTypePipeline,
	domain.EntityTypeGlossaryTerm,
	domain.EntityTypeDomain,
	domain.EntityTypeTag,
}

type statsResult struct {
	Total  int64            `json:"total"`
	ByType map[string]int64 `json:"byType"`
}

func (h *EntityHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	if err := auth.EnforceCapability(r.Context(), h.checker, auth.OpView, ""); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	total, err := h.entities.Count(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	result := statsResult{Total: total, ByType: map[string]int64{}}
	for _, entityType := range statsEntityTypes {
		count, err := h.entities.CountByType(r.Context(), entityType)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if count > 0 {
			result.ByType[entityType] = count
		}
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *EntityHandler) handleListVersions(w http.ResponseWriter, r *http.Request, idRaw string) {
	entity, ok := h.loadEntity(w, r, idRaw)
	if !ok {
		return
	}
	if err := auth.EnforceCapability(r.Context(), h.checker, auth.OpView, entity.EntityType); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	versions, err := h.versions.ListVersions(r.Context(), entity.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

func (h *EntityHandler) handleGetVersion(w http.ResponseWriter, r *http.Request, idRaw, versionRaw string) {
	record, ok := h.loadVersion(w, r, idRaw, versionRaw)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, record)
}

type fieldDiffResult struct {
	Field  string            `json:"field"`
	Diff   version.FieldDiff `json:"diff"`
	Markup string            `json:"markup"`
}

func (h *EntityHandler) handleVersionDiff(w http.ResponseWriter, r *http.Request, idRaw, versionRaw string) {
	fieldName := strings.TrimSpace(r.URL.Query().Get("field"))
	if fieldName == "" {
		http.Error(w, "field query parameter is required", http.StatusBadRequest)
		return
	}

	record, ok := h.loadVersion(w, r, idRaw, versionRaw)
	if !ok {
		return
	}

	result := fieldDiffResult{Field: fieldName}
	if fieldName == version.MutuallyExclusiveFieldName {
		result.Diff = version.GetDiffByFieldName(fieldName, &record.Change)
		result.Markup = version.GetMutuallyExclusiveDiff(&record.Change)
	} else {
		result.Diff = version.GetDiffByFieldName(fieldName, &record.Change)
		result.Markup = diffMarkup(result.Diff)
	}

	writeJSON(w, http.StatusOK, result)
}

// diffMarkup renders the raw old/new values of a diff, leaving absent sides
// empty so additions and removals render as such.
func diffMarkup(diff version.FieldDiff) string {
	var oldText, newText string
	switch {
	case diff.Updated != nil:
		oldText, newText = diff.Updated.OldValue, diff.Updated.NewValue
	case diff.Added != nil:
		newText = diff.Added.NewValue
	case diff.Deleted != nil:
		oldText = diff.Deleted.OldValue
	}
	return version.GetDiffValue(oldText, newText)
}

func (h *EntityHandler) loadEntity(w http.ResponseWriter, r *http.Request, idRaw string) (domain.Entity, bool) {
	id, err := uuid.Parse(idRaw)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid entity id: %v", err), http.StatusBadRequest)
		return domain.Entity{}, false
	}
	entity, err := h.entities.GetByID(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		http.Error(w, "entity not found", http.StatusNotFound)
		return domain.Entity{}, false
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return domain.Entity{}, false
	}
	return entity, true
}

func (h *EntityHandler) loadVersion(w http.ResponseWriter, r *http.Request, idRaw, versionRaw string) (domain.EntityVersion, bool) {
	entity, ok := h.loadEntity(w, r, idRaw)
	if !ok {
		return domain.EntityVersion{}, false
	}
	if err := auth.EnforceCapability(r.Context(), h.checker, auth.OpView, entity.EntityType); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return domain.EntityVersion{}, false
	}

	versionNumber, err := strconv.ParseInt(versionRaw, 10, 64)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid version: %v", err), http.StatusBadRequest)
		return domain.EntityVersion{}, false
	}

	record, err := h.versions.GetVersion(r.Context(), entity.ID, versionNumber)
	if errors.Is(err, repository.ErrNotFound) {
		http.Error(w, "version not found", http.StatusNotFound)
		return domain.EntityVersion{}, false
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return domain.EntityVersion{}, false
	}
	return record, true
}

func intParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
