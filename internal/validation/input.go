package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
)

// Константы валидации
const (
	MaxDisputeDescriptionLength = 5000
	MinEvidenceLength           = 1
	MaxEvidenceLength           = 5000
	MaxAdminNotesLength         = 2000
	MaxExtrasPerOrder           = 20
)

var ErrTooManyExtras = fmt.Errorf("к заказу можно добавить не более %d опций", MaxExtrasPerOrder)

var (
	strictPolicy  = bluemonday.StrictPolicy()
	currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)
)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateNonEmpty проверяет, что строка не пустая.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s не может быть пустым", fieldName)
	}
	return nil
}

// SanitizeText убирает разметку из пользовательского текста. Содержимое <script> и <style> отбрасывается целиком.
func SanitizeText(value string) string {
	return strings.TrimSpace(strictPolicy.Sanitize(value))
}

// ValidateEvidence очищает текст доказательства и проверяет, что после очистки что-то осталось.
func ValidateEvidence(text string) (string, error) {
	clean := SanitizeText(text)
	if err := ValidateNonEmpty("доказательство", clean); err != nil {
		return "", err
	}
	if err := ValidateLength("доказательство", clean, MinEvidenceLength, MaxEvidenceLength); err != nil {
		return "", err
	}
	return clean, nil
}

// ValidateDisputeDescription очищает описание спора. Пустое описание допустимо.
func ValidateDisputeDescription(description string) (string, error) {
	clean := SanitizeText(description)
	if err := ValidateLength("описание спора", clean, 0, MaxDisputeDescriptionLength); err != nil {
		return "", err
	}
	return clean, nil
}

// ValidateAdminNotes очищает заметки администратора.
func ValidateAdminNotes(notes string) (string, error) {
	clean := SanitizeText(notes)
	if err := ValidateLength("заметки администратора", clean, 0, MaxAdminNotesLength); err != nil {
		return "", err
	}
	return clean, nil
}

// IsCurrencyCode - трёхбуквенный код ISO 4217 в верхнем регистре.
func IsCurrencyCode(code string) bool {
	return currencyRegex.MatchString(code)
}

// RegisterCurrency добавляет тег `currency` в валидатор структур.
func RegisterCurrency(v *validator.Validate) error {
	return v.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		return IsCurrencyCode(fl.Field().String())
	})
}
