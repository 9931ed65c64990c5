package versionedcontent

import (
	"context"
)

// NewDefaultValueResolver returns a MissingFieldResolver that materializes
// the field definition's declared default value, ignoring the language.
// This is the behavior a plain deployment wants; richer resolvers can be
// registered per field type.
func NewDefaultValueResolver() MissingFieldResolver {
	return MissingFieldResolverFunc(func(ctx context.Context, def FieldDefinition, languageCode string) (FieldValue, error) {
		return def.DefaultValue, nil
	})
}

// NewEmptyValueResolver returns a MissingFieldResolver that materializes
// an empty value regardless of the definition.
func NewEmptyValueResolver() MissingFieldResolver {
	return MissingFieldResolverFunc(func(ctx context.Context, def FieldDefinition, languageCode string) (FieldValue, error) {
		return FieldValue{}, nil
	})
}
