package validation

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Константы валидации
const (
	MaxRemarkLength        = 500
	MaxReviewCommentLength = 1000
	MinReasonLength        = 5
	MaxReasonLength        = 500
	MaxListingTitleLength  = 200
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

// ValidateRemark проверяет комментарий к смене статуса заказа. Пустой комментарий допустим.
func ValidateRemark(remark string) error {
	if err := ValidateLength("комментарий", strings.TrimSpace(remark), 0, MaxRemarkLength); err != nil {
		return err
	}
	return noControlChars("комментарий", remark)
}

// ValidateReviewComment проверяет текст отзыва.
func ValidateReviewComment(comment *string) error {
	if comment == nil {
		return nil
	}
	if err := ValidateLength("отзыв", strings.TrimSpace(*comment), 0, MaxReviewCommentLength); err != nil {
		return err
	}
	return noControlChars("отзыв", *comment)
}

// ValidateReviewReply проверяет ответ продавца на отзыв.
func ValidateReviewReply(reply string) error {
	if err := ValidateNonEmpty("ответ", reply); err != nil {
		return err
	}
	if err := ValidateLength("ответ", strings.TrimSpace(reply), 0, MaxReviewCommentLength); err != nil {
		return err
	}
	return noControlChars("ответ", reply)
}

// ValidateExchangeTerms проверяет условия обмена. Пустые условия допустимы.
func ValidateExchangeTerms(terms string) error {
	if err := ValidateLength("условия обмена", strings.TrimSpace(terms), 0, MaxRemarkLength); err != nil {
		return err
	}
	return noControlChars("условия обмена", terms)
}

// ValidateReason проверяет причину штрафа.
func ValidateReason(reason string) error {
	if err := ValidateNonEmpty("причина", reason); err != nil {
		return err
	}
	return ValidateLength("причина", strings.TrimSpace(reason), MinReasonLength, MaxReasonLength)
}

// noControlChars запрещает управляющие символы, кроме переводов строк и табуляции.
func noControlChars(fieldName, value string) error {
	for _, r := range value {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return fmt.Errorf("%s содержит недопустимые символы", fieldName)
		}
	}
	return nil
}
