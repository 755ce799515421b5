package services

import (
	"math"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"achievementsAPI/internal/apperror"
	"achievementsAPI/internal/translation"
)

const (
	minKeyLength    = 2
	maxKeyLength    = 50
	maxPlainIconLen = 100

	// Steps and targets are stored in INTEGER columns.
	maxCount = math.MaxInt32
)

// sanitizeString trims s and strips angle brackets.
func sanitizeString(s string) string {
	s = strings.TrimSpace(s)
	return strings.NewReplacer("<", "", ">", "").Replace(s)
}

func isValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// validateCount checks that a step or target fits the stored column range.
func validateCount(v *int, field string) error {
	if v == nil {
		return nil
	}
	if *v < 0 {
		return apperror.Validation("%s must be a non-negative number", field)
	}
	if *v > maxCount {
		return apperror.Validation("%s must not exceed %d", field, maxCount).With(field, *v)
	}
	return nil
}

func isValidURL(s string) bool {
	u, err := url.ParseRequestURI(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// sanitizeIcon accepts a URL or a short plain value such as an emoji. An empty
// icon clears the field.
func sanitizeIcon(icon *string) (*string, error) {
	if icon == nil {
		return nil, nil
	}
	if !isValidURL(*icon) && len(*icon) > maxPlainIconLen {
		return nil, apperror.Validation("icon must be a valid URL or an emoji")
	}
	clean := sanitizeString(*icon)
	if clean == "" {
		return nil, nil
	}
	return &clean, nil
}

// requireTranslations resolves in and insists on at least one non-blank
// language. field names the input in the error message.
func requireTranslations(in translation.Input, field string) (translation.Translations, error) {
	values := in.Resolve()
	if !translation.HasContent(values) {
		return nil, apperror.Validation("At least one %s translation must be provided", field)
	}
	return values, nil
}
