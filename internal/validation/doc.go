// Package validation реализует проверку input-значений анкеты
// (euro, month, year, age, city, cap, free_text) поверх go-playground/validator.
package validation
