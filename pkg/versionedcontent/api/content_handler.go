// Package api provides HTTP handlers for the content service.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	vc "github.com/structcms/versioned-content/pkg/versionedcontent"
)

const maxContentsPerRequest = 50

// ContentHandler handles HTTP requests for content items.
type ContentHandler struct {
	service vc.Service
	logger  *slog.Logger
}

// NewContentHandler creates a new content handler
func NewContentHandler(service vc.Service, logger *slog.Logger) *ContentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContentHandler{service: service, logger: logger}
}

// Routes returns the routes for content
func (h *ContentHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateContent)
	r.Get("/bulk", h.GetContentsByIDs)
	r.Get("/{id}", h.GetContent)
	r.Patch("/{id}", h.UpdateMetadata)
	r.Delete("/{id}", h.DeleteContent)

	r.Get("/{id}/versions", h.ListVersions)
	r.Post("/{id}/versions", h.CreateDraft)
	r.Get("/{id}/versions/{versionNo}", h.GetVersion)
	r.Put("/{id}/versions/{versionNo}", h.UpdateContent)
	r.Delete("/{id}/versions/{versionNo}", h.DeleteVersion)
	r.Post("/{id}/versions/{versionNo}/publish", h.PublishVersion)

	r.Post("/{id}/copy", h.CopyContent)
	r.Delete("/{id}/translations/{languageCode}", h.DeleteTranslation)

	r.Get("/{id}/relations", h.ListRelations)
	r.Post("/{id}/relations", h.AddRelation)
	r.Get("/{id}/reverse-relations", h.ListReverseRelations)
	r.Delete("/relations/{relationID}", h.RemoveRelation)

	return r
}

// respondError maps domain errors onto HTTP status codes.
func (h *ContentHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
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

func isInvalid(err error) bool {
	return err != nil && strings.Contains(err.Error(), vc.ErrInvalidArgument.Error())
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func pathInt(r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, name))
	return n, err == nil
}

// FieldRequest is the wire form of one field value.
type FieldRequest struct {
	FieldDefinitionID int64    `json:"field_definition_id"`
	Type              string   `json:"type"`
	LanguageCode      string   `json:"language_code"`
	DataFloat         *float64 `json:"data_float,omitempty"`
	DataInt           *int64   `json:"data_int,omitempty"`
	DataText          string   `json:"data_text,omitempty"`
	SortKeyInt        int64    `json:"sort_key_int,omitempty"`
	SortKeyString     string   `json:"sort_key_string,omitempty"`
	ExternalData      []byte   `json:"external_data,omitempty"`
}

func (f FieldRequest) toInput() vc.FieldInput {
	return vc.FieldInput{
		FieldDefinitionID: f.FieldDefinitionID,
		Type:              f.Type,
		LanguageCode:      f.LanguageCode,
		Value: vc.FieldValue{
			DataFloat:     f.DataFloat,
			DataInt:       f.DataInt,
			DataText:      f.DataText,
			SortKeyInt:    f.SortKeyInt,
			SortKeyString: f.SortKeyString,
			ExternalData:  f.ExternalData,
		},
	}
}

func toInputs(fields []FieldRequest) []vc.FieldInput {
	out := make([]vc.FieldInput, len(fields))
	for i, f := range fields {
		out[i] = f.toInput()
	}
	return out
}

// CreateContentRequest is the request body for creating content
type CreateContentRequest struct {
	TypeID              int64             `json:"type_id"`
	SectionID           int64             `json:"section_id"`
	OwnerID             int64             `json:"owner_id"`
	InitialLanguageCode string            `json:"initial_language_code"`
	AlwaysAvailable     bool              `json:"always_available"`
	RemoteID            string            `json:"remote_id,omitempty"`
	Fields              []FieldRequest    `json:"fields"`
	Names               map[string]string `json:"names,omitempty"`
	Locations           []LocationRequest `json:"locations,omitempty"`
}

// LocationRequest records one pending placement.
type LocationRequest struct {
	ParentLocationID int64 `json:"parent_location_id"`
	IsMain           bool  `json:"is_main"`
}

// ContentResponse is the response body for a content item
type ContentResponse struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	TypeID           int64     `json:"type_id"`
	SectionID        int64     `json:"section_id"`
	OwnerID          int64     `json:"owner_id"`
	CurrentVersionNo int       `json:"current_version_no"`
	MainLanguageCode string    `json:"main_language_code"`
	RemoteID         string    `json:"remote_id"`
	Status           string    `json:"status"`
	Languages        []string  `json:"languages"`
	AlwaysAvailable  bool      `json:"always_available"`
	IsHidden         bool      `json:"is_hidden"`
	Created          time.Time `json:"created"`
	Modified         time.Time `json:"modified"`

	Version *vc.VersionInfo `json:"version,omitempty"`
	Fields  []vc.Field      `json:"fields,omitempty"`
}

func (h *ContentHandler) contentResponse(info *vc.ContentInfo) ContentResponse {
	codes, _, _ := vc.DecodeLanguageMask(h.service.Languages(), info.LanguageMask)
	return ContentResponse{
		ID:               info.ID,
		Name:             info.Name,
		TypeID:           info.TypeID,
		SectionID:        info.SectionID,
		OwnerID:          info.OwnerID,
		CurrentVersionNo: info.CurrentVersionNo,
		MainLanguageCode: info.MainLanguageCode,
		RemoteID:         info.RemoteID,
		Status:           string(info.Status),
		Languages:        codes,
		AlwaysAvailable:  info.AlwaysAvailable(),
		IsHidden:         info.IsHidden,
		Created:          info.Created,
		Modified:         info.Modified,
	}
}

func (h *ContentHandler) fullResponse(content *vc.Content) ContentResponse {
	resp := h.contentResponse(&content.Info)
	version := content.Version
	resp.Version = &version
	resp.Fields = content.Fields
	return resp
}

// CreateContent creates a new content item with its first draft version
func (h *ContentHandler) CreateContent(w http.ResponseWriter, r *http.Request) {
	var req CreateContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	createReq := vc.CreateContentRequest{
		TypeID:              req.TypeID,
		SectionID:           req.SectionID,
		OwnerID:             req.OwnerID,
		InitialLanguageCode: req.InitialLanguageCode,
		AlwaysAvailable:     req.AlwaysAvailable,
		RemoteID:            req.RemoteID,
		Fields:              toInputs(req.Fields),
		Names:               req.Names,
	}
	for _, loc := range req.Locations {
		createReq.Locations = append(createReq.Locations, vc.LocationInput{
			ParentLocationID: loc.ParentLocationID,
			IsMain:           loc.IsMain,
		})
	}

	content, err := h.service.CreateContent(r.Context(), createReq)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, h.fullResponse(content))
}

// GetContent returns a content item with its current version
func (h *ContentHandler) GetContent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "Invalid content ID", http.StatusBadRequest)
		return
	}

	content, err := h.service.LoadContent(r.Context(), id, 0)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	render.JSON(w, r, h.fullResponse(content))
}

// GetContentsByIDs returns several content items at once
func (h *ContentHandler) GetContentsByIDs(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query()["id"]
	if len(raw) == 0 {
		http.Error(w, "Missing required 'id' parameter", http.StatusBadRequest)
		return
	}
	if len(raw) > maxContentsPerRequest {
		http.Error(w, "Too many IDs requested", http.StatusBadRequest)
		return
	}

	ids := make([]int64, 0, len(raw))
	for _, s := range raw {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id <= 0 {
			http.Error(w, "Invalid content ID: "+s, http.StatusBadRequest)
			return
		}
		ids = append(ids, id)
	}

	infos, err := h.service.LoadContentInfoList(r.Context(), ids)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	out := make([]ContentResponse, 0, len(infos))
	for _, info := range infos {
		out = append(out, h.contentResponse(info))
	}
	render.JSON(w, r, out)
}

// UpdateMetadataRequest is the request body for a metadata patch. Absent
// keys leave the column untouched.
type UpdateMetadataRequest struct {
	SectionID        *int64  `json:"section_id,omitempty"`
	OwnerID          *int64  `json:"owner_id,omitempty"`
	AlwaysAvailable  *bool   `json:"always_available,omitempty"`
	RemoteID         *string `json:"remote_id,omitempty"`
	MainLanguageCode *string `json:"main_language_code,omitempty"`
	IsHidden         *bool   `json:"is_hidden,omitempty"`
}

// UpdateMetadata patches content-level metadata
func (h *ContentHandler) UpdateMetadata(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "Invalid content ID", http.StatusBadRequest)
		return
	}

	var req UpdateMetadataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	info, err := h.service.UpdateMetadata(r.Context(), id, vc.UpdateMetadataRequest{
		SectionID:        req.SectionID,
		OwnerID:          req.OwnerID,
		AlwaysAvailable:  req.AlwaysAvailable,
		RemoteID:         req.RemoteID,
		MainLanguageCode: req.MainLanguageCode,
		IsHidden:         req.IsHidden,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	render.JSON(w, r, h.contentResponse(info))
}

// DeleteContent removes a content item, cascading through its placements
func (h *ContentHandler) DeleteContent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "Invalid content ID", http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteContent(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListVersions returns the version rows of a content item
func (h *ContentHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "Invalid content ID", http.StatusBadRequest)
		return
	}

	var filter vc.VersionFilter
	if s := r.URL.Query().Get("status"); s != "" {
		status := vc.VersionStatus(s)
		filter.Status = &status
	}

	versions, err := h.service.ListVersions(r.Context(), id, filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	render.JSON(w, r, versions)
}

// CreateDraftRequest is the request body for drafting a new version
type CreateDraftRequest struct {
	FromVersionNo int   `json:"from_version_no,omitempty"` // 0 drafts from the current version
	CreatorID     int64 `json:"creator_id"`
}

// CreateDraft creates a new draft version from an existing version
func (h *ContentHandler) CreateDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "Invalid content ID", http.StatusBadRequest)
		return
	}

	var req CreateDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	content, err := h.service.CreateDraftFromVersion(r.Context(), id, req.FromVersionNo, req.CreatorID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, h.fullResponse(content))
}

// GetVersion returns a content item at a specific version
func (h *ContentHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "Invalid content ID", http.StatusBadRequest)
		return
	}
	versionNo, ok := pathInt(r, "versionNo")
	if !ok {
		http.Error(w, "Invalid version number", http.StatusBadRequest)
		return
	}

	content, err := h.service.LoadContent(r.Context(), id, versionNo)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	render.JSON(w, r, h.fullResponse(content))
}

// UpdateContentRequest is the request body for updating a draft version
type UpdateContentRequest struct {
	ModifierID          int64             `json:"modifier_id"`
	InitialLanguageCode string            `json:"initial_language_code,omitempty"`
	Fields              []FieldRequest    `json:"fields"`
	Names               map[string]string `json:"names,omitempty"`
}

// UpdateContent updates a draft version's fields and names
func (h *ContentHandler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "Invalid content ID", http.StatusBadRequest)
		return
	}
	versionNo, ok := pathInt(r, "versionNo")
	if !ok {
		http.Error(w, "Invalid version number", http.StatusBadRequest)
		return
	}

	var req UpdateContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	content, err := h.service.UpdateContent(r.Context(), id, versionNo, vc.UpdateContentRequest{
		ModifierID:          req.ModifierID,
		InitialLanguageCode: req.InitialLanguageCode,
		Fields:              toInputs(req.Fields),
		Names:               req.Names,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	render.JSON(w, r, h.fullResponse(content))
}

// DeleteVersion removes a non-published version
func (h *ContentHandler) DeleteVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "Invalid content ID", http.StatusBadRequest)
		return
	}
	versionNo, ok := pathInt(r, "versionNo")
	if !ok {
		http.Error(w, "Invalid version number", http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteVersion(r.Context(), id, versionNo); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PublishVersion publishes a draft version
func (h *ContentHandler) PublishVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "Invalid content ID", http.StatusBadRequest)
		return
	}
	versionNo, ok := pathInt(r, "versionNo")
	if !ok {
		http.Error(w, "Invalid version number", http.StatusBadRequest)
		return
	}

	content, err := h.service.PublishVersion(r.Context(), id, versionNo)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	render.JSON(w, r, h.fullResponse(content))
}

// CopyContentRequest is the request body for copying content
type CopyContentRequest struct {
	VersionNo *int  `json:"version_no,omitempty"` // nil copies all versions
	OwnerID   int64 `json:"owner_id"`
}

// CopyContent copies a content item
func (h *ContentHandler) CopyContent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "Invalid content ID", http.StatusBadRequest)
		return
	}

	var req CopyContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	content, err := h.service.CopyContent(r.Context(), id, vc.CopyContentRequest{
		VersionNo: req.VersionNo,
		OwnerID:   req.OwnerID,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, h.fullResponse(content))
}

// DeleteTranslation removes a translation from every version, or from a
// single draft when the "version_no" query parameter is given
func (h *ContentHandler) DeleteTranslation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "Invalid content ID", http.StatusBadRequest)
		return
	}
	languageCode := chi.URLParam(r, "languageCode")

	var err error
	if s := r.URL.Query().Get("version_no"); s != "" {
		versionNo, convErr := strconv.Atoi(s)
		if convErr != nil {
			http.Error(w, "Invalid version number", http.StatusBadRequest)
			return
		}
		err = h.service.DeleteTranslationFromDraft(r.Context(), id, versionNo, languageCode)
	} else {
		err = h.service.DeleteTranslationFromContent(r.Context(), id, languageCode)
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddRelationRequest is the request body for creating a relation
type AddRelationRequest struct {
	SourceVersionNo   int   `json:"source_version_no"`
	DestContentID     int64 `json:"dest_content_id"`
	Kind              int64 `json:"kind"`
	FieldDefinitionID int64 `json:"field_definition_id,omitempty"`
}

// AddRelation creates a relation from this content to another
func (h *ContentHandler) AddRelation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "Invalid content ID", http.StatusBadRequest)
		return
	}

	var req AddRelationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rel, err := h.service.AddRelation(r.Context(), vc.AddRelationRequest{
		SourceContentID:   id,
		SourceVersionNo:   req.SourceVersionNo,
		DestContentID:     req.DestContentID,
		Kind:              vc.RelationTypeMask(req.Kind),
		FieldDefinitionID: req.FieldDefinitionID,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, rel)
}

// ListRelations returns a content item's forward relations
func (h *ContentHandler) ListRelations(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "Invalid content ID", http.StatusBadRequest)
		return
	}

	versionNo := -1
	if s := r.URL.Query().Get("version_no"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			http.Error(w, "Invalid version number", http.StatusBadRequest)
			return
		}
		versionNo = n
	}
	var kind vc.RelationTypeMask
	if s := r.URL.Query().Get("kind"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			http.Error(w, "Invalid relation kind", http.StatusBadRequest)
			return
		}
		kind = vc.RelationTypeMask(n)
	}

	relations, err := h.service.LoadRelations(r.Context(), id, versionNo, kind)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	render.JSON(w, r, relations)
}

// ListReverseRelations returns relations pointing at this content
func (h *ContentHandler) ListReverseRelations(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "Invalid content ID", http.StatusBadRequest)
		return
	}

	var kind vc.RelationTypeMask
	if s := r.URL.Query().Get("kind"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			http.Error(w, "Invalid relation kind", http.StatusBadRequest)
			return
		}
		kind = vc.RelationTypeMask(n)
	}

	relations, err := h.service.LoadReverseRelations(r.Context(), id, kind)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	render.JSON(w, r, relations)
}

// RemoveRelation clears a relation kind, deleting the row once no kind
// remains
func (h *ContentHandler) RemoveRelation(w http.ResponseWriter, r *http.Request) {
	relationID, ok := pathID(r, "relationID")
	if !ok {
		http.Error(w, "Invalid relation ID", http.StatusBadRequest)
		return
	}

	kind := vc.RelationCommon
	if s := r.URL.Query().Get("kind"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			http.Error(w, "Invalid relation kind", http.StatusBadRequest)
			return
		}
		kind = vc.RelationTypeMask(n)
	}

	if err := h.service.RemoveRelation(r.Context(), relationID, kind); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
