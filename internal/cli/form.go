package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/domain"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/engine"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/formdef"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/repo"
)

// ErrInvalidForm — определение формы содержит ошибки.
var ErrInvalidForm = errors.New("form definition is invalid")

// FormPublisher сохраняет новую версию формы (repo.FormRepo).
type FormPublisher interface {
	Publish(ctx context.Context, def *domain.FormDefinition) (*domain.FormDefinition, error)
}

// NewFormCmd создаёт группу команд для проверки и публикации определений форм.
// Команды работают без API: publish пишет напрямую в БД (DB_URL).
func NewFormCmd(outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "form",
		Short: "Check questionnaire definitions locally",
	}

	cmd.AddCommand(
		newFormValidateCmd(outputFn),
		newFormBlocksCmd(outputFn),
		newFormPublishCmd(outputFn, dbPublisher),
	)

	return cmd
}

// FormCheck — результат проверки формы.
type FormCheck struct {
	Slug     string   `json:"slug"`
	Version  int      `json:"version"`
	Blocks   int      `json:"blocks"`
	Problems []string `json:"problems,omitempty"`
}

func newFormValidateCmd(outputFn func() *Output) *cobra.Command {
	var builtin string

	cmd := &cobra.Command{
		Use:   "validate [FILE]",
		Short: "Validate a form definition (YAML or JSON)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			def, err := loadForm(args, builtin)
			if err != nil {
				return err
			}

			check := CheckForm(def)
			if len(check.Problems) == 0 {
				out.Success(fmt.Sprintf("Form %s v%d is valid", check.Slug, check.Version))
			}

			rows := make([][]string, len(check.Problems))
			for i, p := range check.Problems {
				rows[i] = []string{p}
			}
			if len(rows) > 0 || out.JSONMode() {
				out.Print([]string{"PROBLEM"}, rows, check)
			}

			if len(check.Problems) > 0 {
				return fmt.Errorf("%w: %d problem(s)", ErrInvalidForm, len(check.Problems))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&builtin, "builtin", "", "Validate a built-in form by slug instead of a file")

	return cmd
}

func newFormBlocksCmd(outputFn func() *Output) *cobra.Command {
	var builtin string

	cmd := &cobra.Command{
		Use:   "blocks [FILE]",
		Short: "List blocks of a form definition",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := loadForm(args, builtin)
			if err != nil {
				return err
			}

			rows := make([][]string, len(def.Blocks))
			for i := range def.Blocks {
				b := &def.Blocks[i]
				rows[i] = []string{
					b.BlockID,
					b.BlockNumber,
					strconv.Itoa(b.Priority),
					blockKind(b),
					strconv.Itoa(len(b.Questions)),
					b.Title,
				}
			}

			outputFn().Print(
				[]string{"BLOCK_ID", "NUMBER", "PRIORITY", "KIND", "QUESTIONS", "TITLE"},
				rows,
				def.Blocks,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&builtin, "builtin", "", "List blocks of a built-in form by slug")

	return cmd
}

func newFormPublishCmd(outputFn func() *Output, publisherFn func(ctx context.Context) (FormPublisher, func(), error)) *cobra.Command {
	return &cobra.Command{
		Use:   "publish FILE",
		Short: "Publish a form definition as a new version (uses DB_URL)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			def, err := formdef.LoadFile(args[0])
			if err != nil {
				return err
			}

			// Висячие ссылки не публикуем
			if check := CheckForm(def); len(check.Problems) > 0 {
				for _, p := range check.Problems {
					out.Error(p)
				}
				return fmt.Errorf("%w: %d problem(s)", ErrInvalidForm, len(check.Problems))
			}

			publisher, closeFn, err := publisherFn(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			published, err := publisher.Publish(cmd.Context(), def)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Version %d published for form %s", published.Version, published.Slug))
			out.Print(
				[]string{"ID", "SLUG", "VERSION", "BLOCKS", "CREATED"},
				[][]string{{
					published.ID.String(),
					published.Slug,
					strconv.Itoa(published.Version),
					strconv.Itoa(len(published.Blocks)),
					published.CreatedAt.Format("2006-01-02 15:04:05"),
				}},
				published,
			)
			return nil
		},
	}
}

// dbPublisher подключается к PostgreSQL и применяет схему.
func dbPublisher(ctx context.Context) (FormPublisher, func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	pool, err := repo.NewPool(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := repo.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return repo.NewFormRepo(pool), pool.Close, nil
}

// CheckForm проверяет ссылки формы и строит граф навигации.
// Структурная валидация выполняется ещё при разборе (formdef.Parse).
func CheckForm(def *domain.FormDefinition) FormCheck {
	check := FormCheck{Slug: def.Slug, Version: def.Version, Blocks: len(def.Blocks)}

	for _, p := range engine.CheckReferences(def.Blocks) {
		check.Problems = append(check.Problems, p.Error())
	}
	if _, err := engine.BuildGraph(def.Blocks); err != nil {
		check.Problems = append(check.Problems, err.Error())
	}

	return check
}

func loadForm(args []string, builtin string) (*domain.FormDefinition, error) {
	switch {
	case builtin != "" && len(args) > 0:
		return nil, errors.New("pass either FILE or --builtin, not both")
	case builtin != "":
		return formdef.Builtin(builtin)
	case len(args) == 1:
		return formdef.LoadFile(args[0])
	default:
		return nil, errors.New("FILE or --builtin is required")
	}
}

func blockKind(b *domain.Block) string {
	switch {
	case b.IsBlueprint():
		return "blueprint"
	case b.DefaultActive:
		return "default"
	default:
		return "optional"
	}
}
