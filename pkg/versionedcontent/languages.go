package versionedcontent

import (
	"fmt"
)

// languageRegistry is an immutable in-memory LanguageRegistry.
type languageRegistry struct {
	byID    map[int64]Language
	byCode  map[string]Language
	ordered []Language
}

// NewLanguageRegistry builds a registry from the given languages. Every id
// must be a distinct power of two >= 2; bit value 1 is reserved for the
// always-available flag.
func NewLanguageRegistry(langs ...Language) (LanguageRegistry, error) {
	r := &languageRegistry{
		byID:   make(map[int64]Language, len(langs)),
		byCode: make(map[string]Language, len(langs)),
	}
	for _, lang := range langs {
		if lang.ID < 2 || lang.ID&(lang.ID-1) != 0 {
			return nil, fmt.Errorf("%w: language id %d is not a power of two >= 2", ErrInvalidArgument, lang.ID)
		}
		if lang.Code == "" {
			return nil, fmt.Errorf("%w: language code is required", ErrInvalidArgument)
		}
		if _, ok := r.byID[lang.ID]; ok {
			return nil, fmt.Errorf("%w: duplicate language id %d", ErrInvalidArgument, lang.ID)
		}
		if _, ok := r.byCode[lang.Code]; ok {
			return nil, fmt.Errorf("%w: duplicate language code %q", ErrInvalidArgument, lang.Code)
		}
		r.byID[lang.ID] = lang
		r.byCode[lang.Code] = lang
		r.ordered = append(r.ordered, lang)
	}
	return r, nil
}

func (r *languageRegistry) ByID(id int64) (Language, error) {
	lang, ok := r.byID[id]
	if !ok {
		return Language{}, fmt.Errorf("%w: id %d", ErrLanguageNotFound, id)
	}
	return lang, nil
}

func (r *languageRegistry) ByCode(code string) (Language, error) {
	lang, ok := r.byCode[code]
	if !ok {
		return Language{}, fmt.Errorf("%w: code %q", ErrLanguageNotFound, code)
	}
	return lang, nil
}

func (r *languageRegistry) All() []Language {
	out := make([]Language, len(r.ordered))
	copy(out, r.ordered)
	return out
}
