package validation

import (
	"strings"
	"unicode/utf8"

	"github.com/ignatzorin/dispatch-engine/internal/pkg/apperror"
)

// Ограничения длины свободного текста.
const (
	MaxDescriptionLength = 5000
	MaxAddressLength     = 300
	MaxRegionLength      = 100
	MaxNotesLength       = 2000
	MaxReasonLength      = 1000
)

// ValidateLength проверяет длину строки в символах. Ноль в min или max отключает границу.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return apperror.Newf(apperror.ErrCodeValidation, "%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return apperror.Newf(apperror.ErrCodeValidation, "%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// CleanText обрезает пробелы и проверяет максимальную длину.
func CleanText(fieldName, value string, max int) (string, error) {
	value = strings.TrimSpace(value)
	if err := ValidateLength(fieldName, value, 0, max); err != nil {
		return "", err
	}
	return value, nil
}

// Notes комментарий к предложению, встречной цене или отказу.
func Notes(value string) (string, error) {
	return CleanText("комментарий", value, MaxNotesLength)
}

// Reason причина отмены или спора.
func Reason(value string) (string, error) {
	return CleanText("причина", value, MaxReasonLength)
}
