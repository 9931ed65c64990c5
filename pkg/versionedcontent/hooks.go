package versionedcontent

import (
	"context"
)

// MissingFieldResolver supplies a field value when a field definition
// exists in the content type but no stored field row matches (typically
// after a schema change added the definition, or for an untranslated
// language). Resolvers are registered per field type identifier and
// invoked synchronously during content row assembly.
type MissingFieldResolver interface {
	// ResolveMissingField returns the value to materialize for the
	// missing field slot.
	ResolveMissingField(ctx context.Context, def FieldDefinition, languageCode string) (FieldValue, error)
}

// MissingFieldResolverFunc adapts a function to MissingFieldResolver.
type MissingFieldResolverFunc func(ctx context.Context, def FieldDefinition, languageCode string) (FieldValue, error)

func (f MissingFieldResolverFunc) ResolveMissingField(ctx context.Context, def FieldDefinition, languageCode string) (FieldValue, error) {
	return f(ctx, def, languageCode)
}

// Hooks are observation points on the content lifecycle. All hooks are
// optional and run synchronously; a hook error aborts the remaining
// chain but never the already-committed operation.
type Hooks struct {
	AfterContentCreate []AfterContentCreateHook
	AfterPublish       []AfterPublishHook
	AfterContentDelete []AfterContentDeleteHook
	OnError            []ErrorHook
}

// AfterContentCreateHook is called after a content item and its first
// draft are created.
type AfterContentCreateHook func(ctx context.Context, content *Content) error

// AfterPublishHook is called after a version is published.
type AfterPublishHook func(ctx context.Context, info *ContentInfo, versionNo int) error

// AfterContentDeleteHook is called after a content item is fully removed.
type AfterContentDeleteHook func(ctx context.Context, contentID int64) error

// ErrorHook observes operation failures.
type ErrorHook func(ctx context.Context, operation string, err error)

func (h *Hooks) executeAfterContentCreate(ctx context.Context, content *Content) error {
	for _, hook := range h.AfterContentCreate {
		if err := hook(ctx, content); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hooks) executeAfterPublish(ctx context.Context, info *ContentInfo, versionNo int) error {
	for _, hook := range h.AfterPublish {
		if err := hook(ctx, info, versionNo); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hooks) executeAfterContentDelete(ctx context.Context, contentID int64) error {
	for _, hook := range h.AfterContentDelete {
		if err := hook(ctx, contentID); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hooks) executeOnError(ctx context.Context, operation string, err error) {
	for _, hook := range h.OnError {
		hook(ctx, operation, err)
	}
}
