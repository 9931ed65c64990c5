package versionedcontent

import (
	"fmt"
)

// Language bitmask codec. Bit 0 of a mask is the always-available flag and
// is never treated as a language identifier; every other set bit must
// equal a registered language id (a power of two starting at 2).

// EncodeLanguageMask OR-combines the initial language's bit, the bit of
// every supplied language code, and the always-available flag.
func EncodeLanguageMask(reg LanguageRegistry, languageCodes []string, initialLanguage string, alwaysAvailable bool) (LanguageMask, error) {
	var mask LanguageMask

	if initialLanguage != "" {
		lang, err := reg.ByCode(initialLanguage)
		if err != nil {
			return 0, err
		}
		mask |= LanguageMask(lang.ID)
	}

	for _, code := range languageCodes {
		lang, err := reg.ByCode(code)
		if err != nil {
			return 0, err
		}
		mask |= LanguageMask(lang.ID)
	}

	if alwaysAvailable {
		mask |= AlwaysAvailableBit
	}

	return mask, nil
}

// EncodeFieldMask encodes the mask for a version from its field set.
func EncodeFieldMask(reg LanguageRegistry, fields []Field, initialLanguage string, alwaysAvailable bool) (LanguageMask, error) {
	return EncodeLanguageMask(reg, FieldLanguages(fields), initialLanguage, alwaysAvailable)
}

// FieldLanguages collects the distinct language codes present among the
// supplied fields, in first-seen order.
func FieldLanguages(fields []Field) []string {
	seen := make(map[string]struct{}, len(fields))
	var codes []string
	for _, f := range fields {
		if _, ok := seen[f.LanguageCode]; ok {
			continue
		}
		seen[f.LanguageCode] = struct{}{}
		codes = append(codes, f.LanguageCode)
	}
	return codes
}

// DecodeLanguageMask resolves a mask into language codes and the
// always-available flag. Decoding walks powers of two from 2 upward while
// the accumulator does not overflow; a set bit with no registered
// language is a missing-language fault (ErrLanguageNotFound).
func DecodeLanguageMask(reg LanguageRegistry, mask LanguageMask) (languageCodes []string, alwaysAvailable bool, err error) {
	alwaysAvailable = mask.AlwaysAvailable()
	remaining := mask.WithoutFlag()

	for bit := LanguageMask(2); bit > 0 && bit <= remaining; bit <<= 1 {
		if remaining&bit == 0 {
			continue
		}
		lang, lookupErr := reg.ByID(int64(bit))
		if lookupErr != nil {
			return nil, false, fmt.Errorf("decoding language mask %d: bit %d: %w", mask, bit, ErrLanguageNotFound)
		}
		languageCodes = append(languageCodes, lang.Code)
	}

	return languageCodes, alwaysAvailable, nil
}

// RemoveLanguage clears one language bit from a mask. If the result would
// be 0 or the always-available bit alone, the language is the last
// remaining translation and removal fails closed with ErrLastTranslation,
// leaving the mask unchanged.
func RemoveLanguage(mask LanguageMask, languageBit LanguageMask) (LanguageMask, error) {
	if languageBit <= AlwaysAvailableBit {
		return mask, fmt.Errorf("%w: %d is not a language bit", ErrInvalidArgument, languageBit)
	}

	result := mask &^ languageBit
	if result == 0 || result == AlwaysAvailableBit {
		return mask, ErrLastTranslation
	}

	return result, nil
}
