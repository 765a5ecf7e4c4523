// Package validation содержит функции валидации входных данных.
package validation

import "unicode"

// IsValidTrackingNumber проверяет корректность трек-номера заказа по алгоритму Луна.
func IsValidTrackingNumber(number string) bool {
	if number == "" {
		return false
	}

	sum := 0
	double := false

	for i := len(number) - 1; i >= 0; i-- {
		ch := rune(number[i])
		if !unicode.IsDigit(ch) {
			return false
		}
		digit := int(ch - '0')
		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		double = !double
	}

	return sum%10 == 0
}
