package formdef

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/domain"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/engine"
)

//go:embed forms/*.yaml
var builtinForms embed.FS

// ErrUnknownForm — встроенной формы с таким slug нет.
var ErrUnknownForm = errors.New("unknown form")

// Parse разбирает определение формы из JSON или YAML.
// Формат определяется по первому значащему символу: '{' — JSON, иначе YAML.
func Parse(data []byte, source string) (*domain.FormDefinition, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("formdef: %s is empty", source)
	}

	var def domain.FormDefinition
	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &def); err != nil {
			return nil, fmt.Errorf("formdef: parse %s: %w", source, err)
		}
	} else {
		if err := yaml.Unmarshal(trimmed, &def); err != nil {
			return nil, fmt.Errorf("formdef: parse %s: %w", source, err)
		}
	}

	if err := engine.Validate(def.Blocks); err != nil {
		return nil, fmt.Errorf("formdef: %s: %w", source, err)
	}

	return &def, nil
}

// LoadFile читает определение формы с диска.
func LoadFile(path string) (*domain.FormDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("formdef: read %s: %w", path, err)
	}
	return Parse(data, filepath.Base(path))
}

// Builtin возвращает встроенную (статическую) форму по slug.
func Builtin(slug string) (*domain.FormDefinition, error) {
	name := "forms/" + strings.TrimSpace(slug) + ".yaml"
	data, err := builtinForms.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownForm, slug)
	}
	return Parse(data, name)
}

// Store — источник опубликованных версий формы (repo.FormRepo).
type Store interface {
	GetLatest(ctx context.Context, slug string) (*domain.FormDefinition, error)
}

// Config — конфигурация Loader.
type Config struct {
	// Store — хранилище определений. nil — только файл/встроенная форма.
	Store Store

	// File — путь к файлу, переопределяющему хранилище (FORM_FILE).
	File string

	Logger *slog.Logger
}

// Loader выбирает источник определения формы.
//
// Порядок: File → Store → встроенная форма. Ошибка хранилища не фатальна:
// используется встроенная форма, оба источника равноправны для движка.
type Loader struct {
	store  Store
	file   string
	logger *slog.Logger
}

// NewLoader создаёт Loader.
func NewLoader(cfg Config) *Loader {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{store: cfg.Store, file: cfg.File, logger: logger}
}

// Load загружает форму и строит граф.
func (l *Loader) Load(ctx context.Context, slug string) (*domain.FormDefinition, *engine.Graph, error) {
	def, err := l.definition(ctx, slug)
	if err != nil {
		return nil, nil, err
	}

	for _, problem := range engine.CheckReferences(def.Blocks) {
		l.logger.Warn("form reference problem",
			"form", def.Slug,
			"version", def.Version,
			"error", problem,
		)
	}

	graph, err := engine.BuildGraph(def.Blocks)
	if err != nil {
		return nil, nil, fmt.Errorf("formdef: build graph %s: %w", slug, err)
	}

	l.logger.Info("form loaded",
		"form", def.Slug,
		"version", def.Version,
		"blocks", len(def.Blocks),
	)

	return def, graph, nil
}

func (l *Loader) definition(ctx context.Context, slug string) (*domain.FormDefinition, error) {
	if l.file != "" {
		return LoadFile(l.file)
	}

	if l.store != nil {
		def, err := l.store.GetLatest(ctx, slug)
		if err == nil {
			err = engine.Validate(def.Blocks)
		}
		if err == nil {
			return def, nil
		}
		l.logger.Warn("stored form unavailable, using builtin", "form", slug, "error", err)
	}

	return Builtin(slug)
}
