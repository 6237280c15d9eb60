package engine

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/domain"
)

func TestValidate_EmptyForm(t *testing.T) {
	if err := Validate(nil); !errors.Is(err, ErrEmptyForm) {
		t.Errorf("expected ErrEmptyForm, got %v", err)
	}
}

func TestValidate_StructuralErrors(t *testing.T) {
	tests := []struct {
		name    string
		blocks  []domain.Block
		wantErr error
	}{
		{
			name:    "empty block id",
			blocks:  []domain.Block{{Questions: []domain.Question{question("q", inputPH("p", "", ""))}}},
			wantErr: ErrEmptyBlockID,
		},
		{
			name: "duplicate block id",
			blocks: []domain.Block{
				{BlockID: "a", Questions: []domain.Question{question("q1", inputPH("p", "", ""))}},
				{BlockID: "a", Questions: []domain.Question{question("q2", inputPH("p", "", ""))}},
			},
			wantErr: ErrDuplicateBlockID,
		},
		{
			name:    "block without questions",
			blocks:  []domain.Block{{BlockID: "a"}},
			wantErr: ErrEmptyBlock,
		},
		{
			name: "duplicate question id across blocks",
			blocks: []domain.Block{
				{BlockID: "a", Questions: []domain.Question{question("q1", inputPH("p", "", ""))}},
				{BlockID: "b", Questions: []domain.Question{question("q1", inputPH("p", "", ""))}},
			},
			wantErr: ErrDuplicateQuestionID,
		},
		{
			name:    "question without placeholders",
			blocks:  []domain.Block{{BlockID: "a", Questions: []domain.Question{{QuestionID: "q1"}}}},
			wantErr: ErrNoPlaceholders,
		},
		{
			name:    "select without options",
			blocks:  []domain.Block{{BlockID: "a", Questions: []domain.Question{question("q1", selectPH("p"))}}},
			wantErr: ErrEmptyOptions,
		},
		{
			name: "duplicate option",
			blocks: []domain.Block{{BlockID: "a", Questions: []domain.Question{
				question("q1", selectPH("p", opt("x", ""), opt("x", ""))),
			}}},
			wantErr: ErrDuplicateOptionID,
		},
		{
			name: "untyped placeholder",
			blocks: []domain.Block{{BlockID: "a", Questions: []domain.Question{
				question("q1", domain.PlaceholderEntry{Key: "p"}),
			}}},
			wantErr: domain.ErrInvalidPlaceholder,
		},
		{
			name: "unknown priority placeholder",
			blocks: []domain.Block{{BlockID: "a", Questions: []domain.Question{
				func() domain.Question {
					q := question("q1", inputPH("p", "", ""))
					q.LeadsToPlaceholderPriority = "missing"
					return q
				}(),
			}}},
			wantErr: ErrUnknownPriorityPlaceholder,
		},
		{
			name: "active blueprint",
			blocks: []domain.Block{{BlockID: "x_{n}", DefaultActive: true, Questions: []domain.Question{
				question("x{n}", inputPH("p", "", "")),
			}}},
			wantErr: ErrActiveBlueprint,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.blocks)
			if err == nil {
				t.Fatal("expected error, got nil")
			}

			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCheckReferences(t *testing.T) {
	blocks := fixtureBlocks()
	if problems := CheckReferences(blocks); len(problems) != 0 {
		t.Fatalf("fixture should have no dangling references, got %v", problems)
	}

	// Ломаем ссылки
	blocks[0].Questions[1].Placeholders[0].Placeholder.Input.LeadsTo = "nowhere"
	blocks[0].Questions[0].Placeholders[0].Placeholder.Select.Options[0].AddBlock = "ghost"
	blocks[2].Questions[0].Placeholders[0].Placeholder.Manager.BlueprintID = "missing_{n}"

	problems := CheckReferences(blocks)
	if len(problems) != 3 {
		t.Fatalf("expected 3 problems, got %d: %v", len(problems), problems)
	}

	want := []error{ErrUnknownAddBlock, ErrUnknownLeadsTo, ErrUnknownManagerBlueprint}
	for i, p := range problems {
		if !errors.Is(p, want[i]) {
			t.Errorf("problem %d: expected %v, got %v", i, want[i], p)
		}
	}
}

func TestBuildGraph_Index(t *testing.T) {
	g, err := BuildGraph(fixtureBlocks())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got, _ := g.QuestionBlockID("q2"); got != "intro" {
		t.Errorf("expected q2 in intro, got %q", got)
	}
	if q := g.Question("c1"); q == nil || q.BlockID != "coborrower" {
		t.Errorf("question c1 should carry its block id, got %+v", q)
	}
	if g.Blueprint("income_{n}") == nil {
		t.Error("income_{n} should be a blueprint")
	}
	if g.Blueprint("income") != nil {
		t.Error("income is not a blueprint")
	}
	if got := g.ManagerBlockID("income_{n}"); got != "income" {
		t.Errorf("expected manager block income, got %q", got)
	}
	if q := g.ManagerQuestion("income_{n}"); q == nil || q.QuestionID != "m1" {
		t.Errorf("expected manager question m1, got %+v", q)
	}

	if diff := cmp.Diff([]string{"intro", "income", "final"}, g.DefaultActive()); diff != "" {
		t.Errorf("default active mismatch (-want +got):\n%s", diff)
	}

	want := domain.QuestionRef{BlockID: "final", QuestionID: "done"}
	if g.EndOfForm() != want {
		t.Errorf("expected end of form %+v, got %+v", want, g.EndOfForm())
	}
	if first := g.FirstQuestion(); first.QuestionID != "q1" {
		t.Errorf("expected first question q1, got %+v", first)
	}
}

func TestBuildGraph_DoesNotAliasInput(t *testing.T) {
	blocks := fixtureBlocks()
	g, err := BuildGraph(blocks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	blocks[0].Questions[0].QuestionID = "changed"
	if g.Question("q1") == nil {
		t.Error("graph should keep its own copy of the blocks")
	}
}

func TestBuildGraph_SyntheticEndOfForm(t *testing.T) {
	g, err := BuildGraph([]domain.Block{
		{BlockID: "a", DefaultActive: true, Questions: []domain.Question{question("q1", inputPH("p", "", ""))}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := domain.QuestionRef{BlockID: domain.EndOfFormBlockID, QuestionID: domain.EndOfFormQuestionID}
	if g.EndOfForm() != want {
		t.Errorf("expected synthetic end of form, got %+v", g.EndOfForm())
	}
}

func TestNextBlock_PriorityOrder(t *testing.T) {
	// Y объявлен раньше X, но приоритет X меньше
	g, err := BuildGraph([]domain.Block{
		{BlockID: "Y", Priority: 20, Questions: []domain.Question{question("y1", inputPH("p", "", ""))}},
		{BlockID: "X", Priority: 10, Questions: []domain.Question{question("x1", inputPH("p", "", ""))}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	active := domain.NewStringSet("X", "Y")
	completed := domain.NewStringSet()

	next := g.NextBlock(active, completed, "X")
	if next == nil || next.BlockID != "Y" {
		t.Fatalf("expected Y after X, got %+v", next)
	}
	if next.FirstQuestion().QuestionID != "y1" {
		t.Errorf("expected y1, got %s", next.FirstQuestion().QuestionID)
	}

	if next := g.NextBlock(active, completed, "Y"); next != nil {
		t.Errorf("expected end of form after Y, got %s", next.BlockID)
	}
}

func TestNextBlock_SkipsInactiveAndCompleted(t *testing.T) {
	g, err := BuildGraph(fixtureBlocks())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name      string
		active    domain.StringSet
		completed domain.StringSet
		from      string
		want      string
	}{
		{"inactive optional block skipped", domain.NewStringSet("intro", "income", "final"), domain.NewStringSet(), "intro", "income"},
		{"activated optional block visited", domain.NewStringSet("intro", "coborrower", "income", "final"), domain.NewStringSet(), "intro", "coborrower"},
		{"completed block skipped", domain.NewStringSet("intro", "income", "final"), domain.NewStringSet("income"), "intro", "final"},
		{"unknown current block starts from the top", domain.NewStringSet("intro", "income"), domain.NewStringSet(), "income_1", "intro"},
		{"nothing left", domain.NewStringSet("intro"), domain.NewStringSet(), "intro", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := g.NextBlock(tt.active, tt.completed, tt.from)
			got := ""
			if next != nil {
				got = next.BlockID
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
