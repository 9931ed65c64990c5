package versionedcontent

// Request DTOs

// FieldInput carries one field's value for create and update operations.
// Value.ExternalData holds the payload for field types with external
// storage; it is dispatched to the type's backend, never to the field row.
type FieldInput struct {
	FieldDefinitionID int64
	Type              string
	LanguageCode      string
	Value             FieldValue
}

// LocationInput records a pending placement for a draft; publish
// materializes it into a location row.
type LocationInput struct {
	ParentLocationID int64
	IsMain           bool
}

// CreateContentRequest contains parameters for creating new content with
// its first draft version.
type CreateContentRequest struct {
	TypeID              int64
	SectionID           int64
	OwnerID             int64
	InitialLanguageCode string
	AlwaysAvailable     bool
	RemoteID            string // generated when empty
	Fields              []FieldInput
	Names               map[string]string // language code -> display name
	Locations           []LocationInput
}

// UpdateMetadataRequest contains parameters for updating content-level
// metadata. Nil pointers leave the column untouched.
type UpdateMetadataRequest struct {
	SectionID        *int64
	OwnerID          *int64
	AlwaysAvailable  *bool
	RemoteID         *string
	MainLanguageCode *string
	IsHidden         *bool
}

// UpdateContentRequest contains parameters for updating a draft version's
// field data and names.
type UpdateContentRequest struct {
	ModifierID          int64
	InitialLanguageCode string // empty keeps the version's current one
	Fields              []FieldInput
	Names               map[string]string
}

// CopyContentRequest contains parameters for copying content. A nil
// VersionNo copies all versions; otherwise the single given version
// becomes version 1 of the copy.
type CopyContentRequest struct {
	VersionNo *int
	OwnerID   int64
}

// AddRelationRequest contains parameters for creating a relation.
type AddRelationRequest struct {
	SourceContentID   int64
	SourceVersionNo   int
	DestContentID     int64
	Kind              RelationTypeMask
	FieldDefinitionID int64 // 0 for non-field relations
}
