package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	vc "github.com/structcms/versioned-content/pkg/versionedcontent"
	"github.com/structcms/versioned-content/pkg/versionedcontent/schema"
)

// TypeHandler handles HTTP requests for content types.
type TypeHandler struct {
	schema schema.Service
	logger *slog.Logger
}

// NewTypeHandler creates a new content type handler
func NewTypeHandler(schemaService schema.Service, logger *slog.Logger) *TypeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TypeHandler{schema: schemaService, logger: logger}
}

// Routes returns the routes for content types
func (h *TypeHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateType)
	r.Get("/", h.ListTypes)
	r.Get("/{id}", h.GetType)
	r.Put("/{id}", h.UpdateType)
	r.Delete("/{id}", h.DeleteType)

	r.Post("/{id}/draft", h.CreateDraft)
	r.Post("/{id}/copy", h.CopyType)
	r.Post("/{id}/publish", h.PublishType)

	r.Post("/{id}/fields", h.AddFieldDefinition)
	r.Put("/{id}/fields/{fieldID}", h.UpdateFieldDefinition)
	r.Delete("/{id}/fields/{fieldID}", h.RemoveFieldDefinition)

	return r
}

func (h *TypeHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case vc.IsNotFound(err):
		status = http.StatusNotFound
	case vc.IsBadState(err):
		status = http.StatusConflict
	case isInvalid(err):
		status = http.StatusBadRequest
	default:
		status = http.StatusInternalServerError
		h.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}

	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": err.Error()})
}

// typeStatus reads the "status" query parameter, defaulting to defined.
func typeStatus(r *http.Request) vc.TypeStatus {
	if s := r.URL.Query().Get("status"); s != "" {
		return vc.TypeStatus(s)
	}
	return vc.TypeStatusDefined
}

// CreateType creates a new draft content type
func (h *TypeHandler) CreateType(w http.ResponseWriter, r *http.Request) {
	var t vc.ContentType
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	created, err := h.schema.CreateType(r.Context(), &t)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, created)
}

// ListTypes lists content types by status
func (h *TypeHandler) ListTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.schema.ListTypes(r.Context(), typeStatus(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	render.JSON(w, r, types)
}

// GetType returns one content type revision
func (h *TypeHandler) GetType(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "Invalid type ID", http.StatusBadRequest)
		return
	}

	t, err := h.schema.LoadType(r.Context(), id, typeStatus(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	render.JSON(w, r, t)
}

// UpdateType updates a draft type revision
func (h *TypeHandler) UpdateType(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "Invalid type ID", http.StatusBadRequest)
		return
	}

	var t vc.ContentType
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	t.ID = id

	if err := h.schema.UpdateType(r.Context(), &t); err != nil {
		h.respondError(w, r, err)
		return
	}
	render.JSON(w, r, t)
}

// DeleteType removes one type revision
func (h *TypeHandler) DeleteType(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "Invalid type ID", http.StatusBadRequest)
		return
	}

	if err := h.schema.DeleteType(r.Context(), id, typeStatus(r)); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateTypeDraftRequest is the request body for drafting a defined type
type CreateTypeDraftRequest struct {
	ModifierID int64 `json:"modifier_id"`
}

// CreateDraft creates a modifiable draft of a defined type
func (h *TypeHandler) CreateDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "Invalid type ID", http.StatusBadRequest)
		return
	}

	var req CreateTypeDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	draft, err := h.schema.CreateDraftOfType(r.Context(), id, req.ModifierID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, draft)
}

// CopyTypeRequest is the request body for copying a type
type CopyTypeRequest struct {
	CreatorID int64 `json:"creator_id"`
}

// CopyType duplicates a defined type into a fresh draft
func (h *TypeHandler) CopyType(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "Invalid type ID", http.StatusBadRequest)
		return
	}

	var req CopyTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	dup, err := h.schema.CopyType(r.Context(), id, req.CreatorID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, dup)
}

// PublishType promotes a type's draft and migrates stored content
func (h *TypeHandler) PublishType(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "Invalid type ID", http.StatusBadRequest)
		return
	}

	if err := h.schema.Publish(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}

	t, err := h.schema.LoadType(r.Context(), id, vc.TypeStatusDefined)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	render.JSON(w, r, t)
}

// AddFieldDefinition adds a field definition to a draft type revision
func (h *TypeHandler) AddFieldDefinition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "Invalid type ID", http.StatusBadRequest)
		return
	}

	var def vc.FieldDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.schema.AddFieldDefinition(r.Context(), id, typeStatus(r), &def); err != nil {
		h.respondError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, def)
}

// UpdateFieldDefinition updates a field definition on a draft type
// revision
func (h *TypeHandler) UpdateFieldDefinition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "Invalid type ID", http.StatusBadRequest)
		return
	}
	fieldID, ok := pathID(r, "fieldID")
	if !ok {
		http.Error(w, "Invalid field definition ID", http.StatusBadRequest)
		return
	}

	var def vc.FieldDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	def.ID = fieldID

	if err := h.schema.UpdateFieldDefinition(r.Context(), id, typeStatus(r), def); err != nil {
		h.respondError(w, r, err)
		return
	}
	render.JSON(w, r, def)
}

// RemoveFieldDefinition removes a field definition from a draft type
// revision
func (h *TypeHandler) RemoveFieldDefinition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "Invalid type ID", http.StatusBadRequest)
		return
	}
	fieldID, ok := pathID(r, "fieldID")
	if !ok {
		http.Error(w, "Invalid field definition ID", http.StatusBadRequest)
		return
	}

	if err := h.schema.RemoveFieldDefinition(r.Context(), id, typeStatus(r), fieldID); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
