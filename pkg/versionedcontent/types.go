package versionedcontent

import (
	"time"
)

// ContentStatus is the domain type for content lifecycle states.
type ContentStatus string

// Content status constants (typed).
const (
	ContentStatusDraft     ContentStatus = "draft"
	ContentStatusPublished ContentStatus = "published"
	ContentStatusTrashed   ContentStatus = "trashed"
)

// VersionStatus is the domain type for version lifecycle states.
type VersionStatus string

// Version status constants (typed).
const (
	VersionStatusDraft     VersionStatus = "draft"
	VersionStatusPublished VersionStatus = "published"
	VersionStatusArchived  VersionStatus = "archived"
)

// TypeStatus is the lifecycle state of a content type, mirroring version
// status: Defined is the published schema, Draft a brand-new type being
// built, Modified a draft copy of an already-defined type.
type TypeStatus string

// Type status constants (typed).
const (
	TypeStatusDefined  TypeStatus = "defined"
	TypeStatusDraft    TypeStatus = "draft"
	TypeStatusModified TypeStatus = "modified"
)

// LanguageMask is an integer bitmask over registered language ids.
// Bit 0 is reserved for the always-available flag and never identifies a
// language; every other set bit must equal a registered language id
// (itself a power of two starting at 2).
//
// LanguageMask and RelationTypeMask are deliberately distinct types even
// though both are power-of-two bitmasks, so one can never be passed where
// the other is expected.
type LanguageMask int64

// AlwaysAvailableBit is the reserved bit 0 of every language mask.
const AlwaysAvailableBit LanguageMask = 1

// Has reports whether every bit of b is set in m.
func (m LanguageMask) Has(b LanguageMask) bool { return m&b == b }

// AlwaysAvailable reports whether the always-available flag is set.
func (m LanguageMask) AlwaysAvailable() bool { return m&AlwaysAvailableBit != 0 }

// WithoutFlag returns the mask with the always-available bit cleared,
// leaving only language bits.
func (m LanguageMask) WithoutFlag() LanguageMask { return m &^ AlwaysAvailableBit }

// RelationTypeMask is an integer bitmask over relation kinds. A single
// relation row may carry several kinds at once (e.g. Field|Asset).
type RelationTypeMask int64

// Relation kind bits.
const (
	RelationCommon RelationTypeMask = 1 << iota
	RelationEmbed
	RelationLink
	RelationField
	RelationAsset
)

// Has reports whether any bit of b is set in m.
func (m RelationTypeMask) Has(b RelationTypeMask) bool { return m&b != 0 }

// Clear returns the mask with every bit of b removed.
func (m RelationTypeMask) Clear(b RelationTypeMask) RelationTypeMask { return m &^ b }

// Language is an immutable registry entry. ID is a power of two (>= 2)
// used directly as the language's bit in language masks.
type Language struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
}

// ContentInfo is the per-content metadata row: identity, owning type,
// section, owner, the currently published version number and the merged
// language mask of the published version.
type ContentInfo struct {
	ID               int64         `json:"id"`
	Name             string        `json:"name"`
	TypeID           int64         `json:"type_id"`
	SectionID        int64         `json:"section_id"`
	OwnerID          int64         `json:"owner_id"`
	CurrentVersionNo int           `json:"current_version_no"`
	MainLanguageCode string        `json:"main_language_code"`
	RemoteID         string        `json:"remote_id"`
	Created          time.Time     `json:"created"`
	Modified         time.Time     `json:"modified"`
	Published        time.Time     `json:"published,omitzero"`
	Status           ContentStatus `json:"status"`
	LanguageMask     LanguageMask  `json:"language_mask"`
	IsHidden         bool          `json:"is_hidden"`
}

// AlwaysAvailable reports whether the content is served in its main
// language when no requested translation exists.
func (c *ContentInfo) AlwaysAvailable() bool { return c.LanguageMask.AlwaysAvailable() }

// VersionInfo is one row per (content, version number) pair. For a given
// content item at most one version holds status Published at any instant.
type VersionInfo struct {
	ContentID           int64             `json:"content_id"`
	VersionNo           int               `json:"version_no"`
	CreatorID           int64             `json:"creator_id"`
	Created             time.Time         `json:"created"`
	Modified            time.Time         `json:"modified"`
	Status              VersionStatus     `json:"status"`
	InitialLanguageCode string            `json:"initial_language_code"`
	LanguageMask        LanguageMask      `json:"language_mask"`
	Names               map[string]string `json:"names"` // language code -> display name
}

// FieldValue is the raw storage value of a field. Which columns are
// meaningful depends on the field type; the sort keys feed ordering
// queries without interpreting the payload.
type FieldValue struct {
	DataFloat     *float64 `json:"data_float,omitempty"`
	DataInt       *int64   `json:"data_int,omitempty"`
	DataText      string   `json:"data_text,omitempty"`
	SortKeyInt    int64    `json:"sort_key_int,omitempty"`
	SortKeyString string   `json:"sort_key_string,omitempty"`

	// ExternalData is the payload routed to a FieldStorage backend when
	// the field type declares one. It is never written to the field row
	// and is populated on load only when external data exists.
	ExternalData []byte `json:"-"`
}

// Field is an immutable per-(content, version, language) snapshot of one
// field slot's value. Creating a draft from a version re-inserts the same
// field id under the new version number; prior versions' rows are never
// mutated.
type Field struct {
	ID                int64      `json:"id"`
	ContentID         int64      `json:"content_id"`
	VersionNo         int        `json:"version_no"`
	FieldDefinitionID int64      `json:"field_definition_id"`
	Type              string     `json:"type"`
	LanguageCode      string     `json:"language_code"`
	Value             FieldValue `json:"value"`
}

// Relation is a directed edge from a (content, version, optional field
// definition) to a destination content item. Type is a bitmask; Field and
// Asset relations are a maintained projection of a field's value.
type Relation struct {
	ID                int64            `json:"id"`
	SourceContentID   int64            `json:"source_content_id"`
	SourceVersionNo   int              `json:"source_version_no"`
	FieldDefinitionID int64            `json:"field_definition_id,omitempty"` // 0 when not field-bound
	Type              RelationTypeMask `json:"type"`
	DestContentID     int64            `json:"dest_content_id"`
}

// Content bundles the pieces a caller works with: the content row, one
// version row and that version's fields (external payloads resolved).
type Content struct {
	Info    ContentInfo `json:"info"`
	Version VersionInfo `json:"version"`
	Fields  []Field     `json:"fields"`
}

// Location is a node in the placement tree. A content item may have
// several locations; MainLocationID points at the elected main one and is
// identical across all locations of the same content.
type Location struct {
	ID             int64 `json:"id"`
	ParentID       int64 `json:"parent_id"`
	ContentID      int64 `json:"content_id"`
	MainLocationID int64 `json:"main_location_id"`
	Depth          int   `json:"depth"`
	Hidden         bool  `json:"hidden"`
}

// IsMain reports whether this location is its content's main location.
func (l *Location) IsMain() bool { return l.ID == l.MainLocationID }

// NodeAssignment is a pending placement recorded on a draft; publish
// materializes assignments into location rows.
type NodeAssignment struct {
	ContentID        int64 `json:"content_id"`
	VersionNo        int   `json:"version_no"`
	ParentLocationID int64 `json:"parent_location_id"`
	IsMain           bool  `json:"is_main"`
}

// ContentType is a schema object describing one kind of content. Field
// definitions belong to exactly one (type, status) pair; publishing a
// type promotes its Draft/Modified rows to Defined.
type ContentType struct {
	ID               int64             `json:"id"`
	Status           TypeStatus        `json:"status"`
	Identifier       string            `json:"identifier"`
	RemoteID         string            `json:"remote_id"`
	CreatorID        int64             `json:"creator_id"`
	ModifierID       int64             `json:"modifier_id"`
	Created          time.Time         `json:"created"`
	Modified         time.Time         `json:"modified"`
	Names            map[string]string `json:"names"`
	Descriptions     map[string]string `json:"descriptions,omitempty"`
	FieldDefinitions []FieldDefinition `json:"field_definitions"`
}

// FieldDefinition declares one field slot of a content type. IDs are
// allocated from a single global sequence so that id-based schema diffing
// is sound; copying a type assigns fresh ids.
type FieldDefinition struct {
	ID             int64             `json:"id"`
	Identifier     string            `json:"identifier"`
	FieldType      string            `json:"field_type"`
	Position       int               `json:"position"`
	Names          map[string]string `json:"names"`
	Descriptions   map[string]string `json:"descriptions,omitempty"`
	IsTranslatable bool              `json:"is_translatable"`
	IsRequired     bool              `json:"is_required"`
	IsSearchable   bool              `json:"is_searchable"`
	DefaultValue   FieldValue        `json:"default_value"`
}

// FieldDefinitionByID returns the definition with the given id, or nil.
func (t *ContentType) FieldDefinitionByID(id int64) *FieldDefinition {
	for i := range t.FieldDefinitions {
		if t.FieldDefinitions[i].ID == id {
			return &t.FieldDefinitions[i]
		}
	}
	return nil
}

// VersionFilter bounds version list queries.
type VersionFilter struct {
	Status         *VersionStatus
	ModifiedBefore *time.Time
	Limit          int
}

// FieldRef addresses one field's external payload in a storage backend.
type FieldRef struct {
	ContentID    int64
	VersionNo    int
	FieldID      int64
	LanguageCode string
}
