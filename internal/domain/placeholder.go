package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// PlaceholderKind — тип placeholder'а (значение поля "type" в определении формы).
type PlaceholderKind string

const (
	// PlaceholderSelect — выбор из списка опций.
	PlaceholderSelect PlaceholderKind = "select"

	// PlaceholderInput — свободный ввод с валидацией.
	PlaceholderInput PlaceholderKind = "input"

	// PlaceholderManager — запуск повторяемой секции (MultiBlockManager).
	PlaceholderManager PlaceholderKind = "MultiBlockManager"
)

// ValidationKind — тип валидации input-поля.
type ValidationKind string

const (
	ValidationEuro     ValidationKind = "euro"
	ValidationMonth    ValidationKind = "month"
	ValidationYear     ValidationKind = "year"
	ValidationAge      ValidationKind = "age"
	ValidationCity     ValidationKind = "city"
	ValidationCAP      ValidationKind = "cap"
	ValidationFreeText ValidationKind = "free_text"
)

// ErrInvalidPlaceholder — placeholder не соответствует ни одному из типов.
var ErrInvalidPlaceholder = errors.New("invalid placeholder")

// Option — вариант ответа select-поля.
type Option struct {
	// ID — значение, которое сохраняется в ответе.
	ID string `json:"id" yaml:"id"`

	// Label — текст варианта.
	Label string `json:"label" yaml:"label"`

	// LeadsTo — следующий вопрос или sentinel.
	LeadsTo string `json:"leads_to,omitempty" yaml:"leads_to,omitempty"`

	// AddBlock — блок, который активируется при выборе варианта.
	AddBlock string `json:"add_block,omitempty" yaml:"add_block,omitempty"`
}

// SelectField — select-поле.
type SelectField struct {
	Options  []Option
	Multiple bool
}

// Option возвращает вариант по ID.
func (s *SelectField) Option(id string) *Option {
	for i := range s.Options {
		if s.Options[i].ID == id {
			return &s.Options[i]
		}
	}
	return nil
}

// InputField — поле свободного ввода.
type InputField struct {
	InputType  string
	Validation ValidationKind
	LeadsTo    string
	Label      string
}

// ManagerField — менеджер повторяемой секции.
type ManagerField struct {
	// BlueprintID — blueprint, копии которого создаёт менеджер.
	BlueprintID string

	// AddBlockLabel — подпись кнопки добавления копии.
	AddBlockLabel string

	// LeadsTo — переход после завершения всех копий.
	LeadsTo string
}

// Placeholder — закрытый вариант: заполнено ровно одно из полей.
type Placeholder struct {
	Select  *SelectField
	Input   *InputField
	Manager *ManagerField
}

// Kind возвращает тип placeholder'а.
func (p Placeholder) Kind() PlaceholderKind {
	switch {
	case p.Select != nil:
		return PlaceholderSelect
	case p.Input != nil:
		return PlaceholderInput
	case p.Manager != nil:
		return PlaceholderManager
	default:
		return ""
	}
}

// RequiresValue возвращает true для полей, которые должны быть заполнены
// для завершения блока.
func (p Placeholder) RequiresValue() bool {
	switch p.Kind() {
	case PlaceholderSelect, PlaceholderInput:
		return true
	default:
		return false
	}
}

// Clone возвращает глубокую копию placeholder'а.
func (p Placeholder) Clone() Placeholder {
	var out Placeholder
	switch p.Kind() {
	case PlaceholderSelect:
		s := *p.Select
		s.Options = append([]Option(nil), p.Select.Options...)
		out.Select = &s
	case PlaceholderInput:
		in := *p.Input
		out.Input = &in
	case PlaceholderManager:
		m := *p.Manager
		out.Manager = &m
	}
	return out
}

// placeholderWire — представление placeholder'а в JSON/YAML.
type placeholderWire struct {
	Type             PlaceholderKind `json:"type" yaml:"type"`
	Options          []Option        `json:"options,omitempty" yaml:"options,omitempty"`
	Multiple         bool            `json:"multiple,omitempty" yaml:"multiple,omitempty"`
	InputType        string          `json:"input_type,omitempty" yaml:"input_type,omitempty"`
	InputValidation  ValidationKind  `json:"input_validation,omitempty" yaml:"input_validation,omitempty"`
	PlaceholderLabel string          `json:"placeholder_label,omitempty" yaml:"placeholder_label,omitempty"`
	LeadsTo          string          `json:"leads_to,omitempty" yaml:"leads_to,omitempty"`
	BlockBlueprint   string          `json:"blockBlueprint,omitempty" yaml:"blockBlueprint,omitempty"`
	AddBlockLabel    string          `json:"add_block_label,omitempty" yaml:"add_block_label,omitempty"`
}

func (p Placeholder) toWire() placeholderWire {
	switch p.Kind() {
	case PlaceholderSelect:
		return placeholderWire{Type: PlaceholderSelect, Options: p.Select.Options, Multiple: p.Select.Multiple}
	case PlaceholderInput:
		return placeholderWire{
			Type:             PlaceholderInput,
			InputType:        p.Input.InputType,
			InputValidation:  p.Input.Validation,
			PlaceholderLabel: p.Input.Label,
			LeadsTo:          p.Input.LeadsTo,
		}
	case PlaceholderManager:
		return placeholderWire{
			Type:           PlaceholderManager,
			BlockBlueprint: p.Manager.BlueprintID,
			AddBlockLabel:  p.Manager.AddBlockLabel,
			LeadsTo:        p.Manager.LeadsTo,
		}
	default:
		return placeholderWire{}
	}
}

func (p *Placeholder) fromWire(w placeholderWire) error {
	*p = Placeholder{}
	switch w.Type {
	case PlaceholderSelect:
		p.Select = &SelectField{Options: w.Options, Multiple: w.Multiple}
	case PlaceholderInput:
		p.Input = &InputField{
			InputType:  w.InputType,
			Validation: w.InputValidation,
			LeadsTo:    w.LeadsTo,
			Label:      w.PlaceholderLabel,
		}
	case PlaceholderManager:
		p.Manager = &ManagerField{
			BlueprintID:   w.BlockBlueprint,
			AddBlockLabel: w.AddBlockLabel,
			LeadsTo:       w.LeadsTo,
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidPlaceholder, w.Type)
	}
	return nil
}

// MarshalJSON реализует json.Marshaler.
func (p Placeholder) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.toWire())
}

// UnmarshalJSON реализует json.Unmarshaler.
func (p *Placeholder) UnmarshalJSON(data []byte) error {
	var w placeholderWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	return p.fromWire(w)
}

// UnmarshalYAML реализует yaml.Unmarshaler.
func (p *Placeholder) UnmarshalYAML(node *yaml.Node) error {
	var w placeholderWire
	if err := node.Decode(&w); err != nil {
		return err
	}
	return p.fromWire(w)
}

// PlaceholderEntry — placeholder вместе с ключом.
type PlaceholderEntry struct {
	Key         string
	Placeholder Placeholder
}

// Placeholders — упорядоченный набор placeholder'ов вопроса.
//
// В JSON/YAML это объект key → placeholder; порядок ключей сохраняется,
// потому что резолвер перебирает поля в порядке объявления.
type Placeholders []PlaceholderEntry

// Get возвращает placeholder по ключу.
func (ps Placeholders) Get(key string) (Placeholder, bool) {
	for _, e := range ps {
		if e.Key == key {
			return e.Placeholder, true
		}
	}
	return Placeholder{}, false
}

// Keys возвращает ключи в порядке объявления.
func (ps Placeholders) Keys() []string {
	keys := make([]string, len(ps))
	for i, e := range ps {
		keys[i] = e.Key
	}
	return keys
}

// Clone возвращает глубокую копию набора.
func (ps Placeholders) Clone() Placeholders {
	if ps == nil {
		return nil
	}
	out := make(Placeholders, len(ps))
	for i, e := range ps {
		out[i] = PlaceholderEntry{Key: e.Key, Placeholder: e.Placeholder.Clone()}
	}
	return out
}

// MarshalJSON пишет объект с ключами в порядке объявления.
func (ps Placeholders) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range ps {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(e.Placeholder)
		if err != nil {
			return nil, fmt.Errorf("placeholder %s: %w", e.Key, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON читает объект, сохраняя порядок ключей.
func (ps *Placeholders) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		*ps = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("%w: placeholders must be an object", ErrInvalidPlaceholder)
	}

	out := make(Placeholders, 0)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("%w: placeholder key must be a string", ErrInvalidPlaceholder)
		}

		var p Placeholder
		if err := dec.Decode(&p); err != nil {
			return fmt.Errorf("placeholder %s: %w", key, err)
		}
		out = append(out, PlaceholderEntry{Key: key, Placeholder: p})
	}

	// Закрывающая скобка
	if _, err := dec.Token(); err != nil {
		return err
	}

	*ps = out
	return nil
}

// UnmarshalYAML читает mapping-узел, сохраняя порядок ключей.
func (ps *Placeholders) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: placeholders must be a mapping (line %d)", ErrInvalidPlaceholder, node.Line)
	}

	out := make(Placeholders, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value

		var p Placeholder
		if err := node.Content[i+1].Decode(&p); err != nil {
			return fmt.Errorf("placeholder %s: %w", key, err)
		}
		out = append(out, PlaceholderEntry{Key: key, Placeholder: p})
	}

	*ps = out
	return nil
}
