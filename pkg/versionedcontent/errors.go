package versionedcontent

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrContentNotFound indicates a content item was not found
	ErrContentNotFound = errors.New("content not found")

	// ErrVersionNotFound indicates a version was not found
	ErrVersionNotFound = errors.New("version not found")

	// ErrFieldNotFound indicates a field row was not found
	ErrFieldNotFound = errors.New("field not found")

	// ErrRelationNotFound indicates a relation was not found
	ErrRelationNotFound = errors.New("relation not found")

	// ErrLanguageNotFound indicates a language is not registered
	ErrLanguageNotFound = errors.New("language not found")

	// ErrLocationNotFound indicates a location was not found
	ErrLocationNotFound = errors.New("location not found")

	// ErrTypeNotFound indicates a content type was not found
	ErrTypeNotFound = errors.New("content type not found")

	// ErrFieldDefinitionNotFound indicates a field definition was not found
	ErrFieldDefinitionNotFound = errors.New("field definition not found")

	// ErrFieldStorageNotFound indicates no storage backend is registered
	// for a field type
	ErrFieldStorageNotFound = errors.New("field storage backend not found")

	// ErrPublishConflict indicates a publish lost the race against a
	// concurrent publisher; the caller must re-evaluate its intent before
	// retrying, so this is never retried automatically.
	ErrPublishConflict = errors.New("another version is already published")

	// ErrVersionNotDraft indicates an operation that requires a draft was
	// attempted on a published or archived version
	ErrVersionNotDraft = errors.New("version is not a draft")

	// ErrVersionPublished indicates a destructive operation was attempted
	// on the currently published version
	ErrVersionPublished = errors.New("version is published")

	// ErrLastTranslation indicates removal of the only remaining
	// translation was attempted; the mask is left unchanged.
	ErrLastTranslation = errors.New("cannot remove the last remaining translation")

	// ErrMainTranslation indicates removal of the content's main language
	// was attempted
	ErrMainTranslation = errors.New("cannot remove the main translation")

	// ErrHasChildren indicates an operation that requires a leaf location
	// was attempted on a location with children
	ErrHasChildren = errors.New("location has child locations")

	// ErrInvalidArgument indicates malformed structural input
	ErrInvalidArgument = errors.New("invalid argument")
)

// IsNotFound reports whether err is any of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrContentNotFound) ||
		errors.Is(err, ErrVersionNotFound) ||
		errors.Is(err, ErrFieldNotFound) ||
		errors.Is(err, ErrRelationNotFound) ||
		errors.Is(err, ErrLanguageNotFound) ||
		errors.Is(err, ErrLocationNotFound) ||
		errors.Is(err, ErrTypeNotFound) ||
		errors.Is(err, ErrFieldDefinitionNotFound) ||
		errors.Is(err, ErrFieldStorageNotFound)
}

// IsBadState reports whether err signals a conflicting concurrent or
// structural state. Callers should re-evaluate intent rather than retry
// blindly.
func IsBadState(err error) bool {
	return errors.Is(err, ErrPublishConflict) ||
		errors.Is(err, ErrVersionNotDraft) ||
		errors.Is(err, ErrVersionPublished) ||
		errors.Is(err, ErrLastTranslation) ||
		errors.Is(err, ErrMainTranslation) ||
		errors.Is(err, ErrHasChildren)
}

// ContentError represents an error related to a content lifecycle operation
type ContentError struct {
	ContentID int64
	VersionNo int
	Op        string
	Err       error
}

func (e *ContentError) Error() string {
	if e.VersionNo > 0 {
		return fmt.Sprintf("content operation %s failed for content %d version %d: %v", e.Op, e.ContentID, e.VersionNo, e.Err)
	}
	return fmt.Sprintf("content operation %s failed for content %d: %v", e.Op, e.ContentID, e.Err)
}

func (e *ContentError) Unwrap() error {
	return e.Err
}

// StorageError represents an error from an external field storage backend.
// External storage is not transactional with the primary row store, so
// these are surfaced to the caller as a recoverable side-channel failure
// rather than rolled into the primary transaction.
type StorageError struct {
	Backend string
	Ref     FieldRef
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("field storage operation %s failed for field %d (content %d v%d, %s) on backend %s: %v",
		e.Op, e.Ref.FieldID, e.Ref.ContentID, e.Ref.VersionNo, e.Ref.LanguageCode, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// GatewayError wraps a database or transport fault. Raw driver errors are
// never leaked to callers; they are carried as the cause.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway operation %s failed: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// LogicError indicates an impossible internal state, e.g. a relation id
// resolving to more than one row. It points at a data-integrity bug and is
// not user-recoverable.
type LogicError struct {
	What string
}

func (e *LogicError) Error() string {
	return fmt.Sprintf("logic error: %s", e.What)
}
