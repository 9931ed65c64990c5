package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	vc "github.com/structcms/versioned-content/pkg/versionedcontent"
)

// TreeHandler handles HTTP requests for the placement tree.
type TreeHandler struct {
	service vc.Service
	logger  *slog.Logger
}

// NewTreeHandler creates a new tree handler
func NewTreeHandler(service vc.Service, logger *slog.Logger) *TreeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TreeHandler{service: service, logger: logger}
}

// Routes returns the routes for locations
func (h *TreeHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.AddLocation)
	r.Get("/{id}", h.GetLocation)
	r.Get("/{id}/children", h.GetChildren)
	r.Delete("/{id}", h.RemoveSubtree)

	r.Post("/content/{contentID}/trash", h.TrashContent)
	r.Post("/content/{contentID}/restore", h.RestoreContent)
	r.Get("/content/{contentID}", h.GetLocationsByContent)

	return r
}

func (h *TreeHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
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

// AddLocationRequest is the request body for placing published content
type AddLocationRequest struct {
	ContentID        int64 `json:"content_id"`
	ParentLocationID int64 `json:"parent_location_id"`
	IsMain           bool  `json:"is_main"`
}

// AddLocation places a content item under a parent location
func (h *TreeHandler) AddLocation(w http.ResponseWriter, r *http.Request) {
	var req AddLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	loc, err := h.service.Tree().AddLocation(r.Context(), req.ContentID, req.ParentLocationID, req.IsMain)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, loc)
}

// GetLocation returns one location
func (h *TreeHandler) GetLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "Invalid location ID", http.StatusBadRequest)
		return
	}

	loc, err := h.service.Tree().LoadLocation(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	render.JSON(w, r, loc)
}

// GetChildren returns a location's direct children
func (h *TreeHandler) GetChildren(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "Invalid location ID", http.StatusBadRequest)
		return
	}

	children, err := h.service.Tree().Children(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	render.JSON(w, r, children)
}

// GetLocationsByContent returns every location of a content item
func (h *TreeHandler) GetLocationsByContent(w http.ResponseWriter, r *http.Request) {
	contentID, ok := pathID(r, "contentID")
	if !ok {
		http.Error(w, "Invalid content ID", http.StatusBadRequest)
		return
	}

	locations, err := h.service.Tree().LocationsByContent(r.Context(), contentID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	render.JSON(w, r, locations)
}

// RemoveSubtree removes a location and everything below it
func (h *TreeHandler) RemoveSubtree(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "Invalid location ID", http.StatusBadRequest)
		return
	}

	if err := h.service.Tree().RemoveSubtree(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TrashContent moves a content item's placements into the trash
func (h *TreeHandler) TrashContent(w http.ResponseWriter, r *http.Request) {
	contentID, ok := pathID(r, "contentID")
	if !ok {
		http.Error(w, "Invalid content ID", http.StatusBadRequest)
		return
	}

	if err := h.service.Tree().TrashContent(r.Context(), contentID); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RestoreContent restores a trashed content item's placements
func (h *TreeHandler) RestoreContent(w http.ResponseWriter, r *http.Request) {
	contentID, ok := pathID(r, "contentID")
	if !ok {
		http.Error(w, "Invalid content ID", http.StatusBadRequest)
		return
	}

	if err := h.service.Tree().RestoreContent(r.Context(), contentID); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
