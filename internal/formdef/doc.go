// Package formdef загружает определения анкет.
//
// Включает:
//   - loader.go      — разбор YAML/JSON, выбор источника (файл, БД, встроенная форма)
//   - forms/*.yaml   — встроенные формы (статический fallback)
package formdef
