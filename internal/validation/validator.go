package validation

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/domain"
)

// Ограничения правил.
const (
	MaxEuro     = 100_000_000
	MinAge      = 18
	MaxAge      = 100
	MinYear     = 1900
	YearsAhead  = 50
	MaxFreeText = 500
)

// ErrInvalidAmount — строку нельзя разобрать как сумму в евро.
var ErrInvalidAmount = errors.New("invalid euro amount")

// Теги правил для validator.Var.
var tags = map[domain.ValidationKind]string{
	domain.ValidationEuro:     "required,euro",
	domain.ValidationMonth:    "required,month",
	domain.ValidationYear:     "required,len=4,numeric,year",
	domain.ValidationAge:      "required,numeric,age",
	domain.ValidationCity:     "required,min=2,max=80,city",
	domain.ValidationCAP:      "required,len=5,numeric",
	domain.ValidationFreeText: "required,max=" + strconv.Itoa(MaxFreeText),
}

var cityPattern = regexp.MustCompile(`^\p{L}[\p{L}\s'’.\-]*\p{L}\.?$`)

var monthNames = []string{
	"gennaio", "febbraio", "marzo", "aprile", "maggio", "giugno",
	"luglio", "agosto", "settembre", "ottobre", "novembre", "dicembre",
}

// Validator — проверка input-значений анкеты.
//
// Реализует engine.Validator. Безопасен для конкурентного использования.
type Validator struct {
	v   *validator.Validate
	now func() time.Time
}

// New создаёт Validator с зарегистрированными правилами.
func New() *Validator {
	val := &Validator{
		v:   validator.New(validator.WithRequiredStructEnabled()),
		now: time.Now,
	}

	// Ошибка регистрации возможна только при пустом теге
	_ = val.v.RegisterValidation("euro", func(fl validator.FieldLevel) bool {
		amount, err := ParseEuro(fl.Field().String())
		return err == nil && amount > 0 && amount <= MaxEuro
	})
	_ = val.v.RegisterValidation("month", func(fl validator.FieldLevel) bool {
		_, ok := ParseMonth(fl.Field().String())
		return ok
	})
	_ = val.v.RegisterValidation("year", func(fl validator.FieldLevel) bool {
		year, err := strconv.Atoi(fl.Field().String())
		return err == nil && year >= MinYear && year <= val.now().Year()+YearsAhead
	})
	_ = val.v.RegisterValidation("age", func(fl validator.FieldLevel) bool {
		age, err := strconv.Atoi(fl.Field().String())
		return err == nil && age >= MinAge && age <= MaxAge
	})
	_ = val.v.RegisterValidation("city", func(fl validator.FieldLevel) bool {
		return cityPattern.MatchString(fl.Field().String())
	})

	return val
}

// Validate проверяет значение по типу валидации.
// Неизвестный тип принимает любое непустое значение.
func (val *Validator) Validate(value string, kind domain.ValidationKind) bool {
	value = strings.TrimSpace(value)

	tag, ok := tags[kind]
	if !ok {
		return value != ""
	}

	return val.v.Var(value, tag) == nil
}

// Kinds возвращает поддерживаемые типы валидации.
func Kinds() []domain.ValidationKind {
	return []domain.ValidationKind{
		domain.ValidationEuro,
		domain.ValidationMonth,
		domain.ValidationYear,
		domain.ValidationAge,
		domain.ValidationCity,
		domain.ValidationCAP,
		domain.ValidationFreeText,
	}
}

// ParseEuro разбирает сумму в итальянском формате.
//
// Допускаются: "250000", "250.000", "1.500,50", "€ 1.500", "1500 €", "1500.50".
// Точка считается разделителем тысяч, если за ней ровно три цифры.
func ParseEuro(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "€")
	s = strings.TrimSuffix(s, "€")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, ErrInvalidAmount
	}

	intPart, decPart := s, ""
	if i := strings.LastIndex(s, ","); i >= 0 {
		intPart, decPart = s[:i], s[i+1:]
	} else if i := strings.LastIndex(s, "."); i >= 0 && len(s)-i-1 != 3 {
		intPart, decPart = s[:i], s[i+1:]
	}

	// Разделители тысяч: группы по три цифры
	groups := strings.Split(intPart, ".")
	for i, g := range groups {
		if g == "" || (i > 0 && len(g) != 3) {
			return 0, ErrInvalidAmount
		}
	}
	intPart = strings.Join(groups, "")

	if len(decPart) > 2 {
		return 0, ErrInvalidAmount
	}

	normalised := intPart
	if decPart != "" {
		normalised += "." + decPart
	}

	for _, r := range normalised {
		if (r < '0' || r > '9') && r != '.' {
			return 0, ErrInvalidAmount
		}
	}

	amount, err := strconv.ParseFloat(normalised, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return amount, nil
}

// ParseMonth разбирает месяц: число 1–12 или итальянское название.
func ParseMonth(s string) (int, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		return n, n >= 1 && n <= 12
	}
	for i, name := range monthNames {
		if s == name || (len(s) >= 3 && strings.HasPrefix(name, s)) {
			return i + 1, true
		}
	}
	return 0, false
}
