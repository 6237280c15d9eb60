package flow

import (
	"testing"
	"time"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/domain"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/engine"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func opt(id, leadsTo string) domain.Option {
	return domain.Option{ID: id, Label: id, LeadsTo: leadsTo}
}

func selectPH(key string, options ...domain.Option) domain.PlaceholderEntry {
	return domain.PlaceholderEntry{
		Key:         key,
		Placeholder: domain.Placeholder{Select: &domain.SelectField{Options: options}},
	}
}

func inputPH(key, leadsTo string, kind domain.ValidationKind) domain.PlaceholderEntry {
	return domain.PlaceholderEntry{
		Key: key,
		Placeholder: domain.Placeholder{Input: &domain.InputField{
			InputType:  "text",
			Validation: kind,
			LeadsTo:    leadsTo,
		}},
	}
}

func managerPH(key, blueprintID, leadsTo string) domain.PlaceholderEntry {
	return domain.PlaceholderEntry{
		Key: key,
		Placeholder: domain.Placeholder{Manager: &domain.ManagerField{
			BlueprintID:   blueprintID,
			AddBlockLabel: "Aggiungi",
			LeadsTo:       leadsTo,
		}},
	}
}

func question(id string, placeholders ...domain.PlaceholderEntry) domain.Question {
	return domain.Question{
		QuestionID:   id,
		QuestionText: "{{placeholder1}}",
		Placeholders: placeholders,
	}
}

// testBlocks — форма для тестов движка.
//
//	intro (p10): q1 → q2 → next_block; q1 "yes" активирует coborrower
//	coborrower (p15): c1 → next_block
//	income (p20): m1 (менеджер income_{n}) → next_block
//	income_{n}: i{n}_type → i{n}_amount → end_of_subflow
//	final (p90): done (endOfForm)
func testBlocks() []domain.Block {
	yes := opt("yes", "q2")
	yes.AddBlock = "coborrower"

	done := question("done", selectPH("placeholder1", opt("ok", "")))
	done.EndOfForm = true

	return []domain.Block{
		{
			BlockID: "intro", BlockNumber: "1", Title: "Intro", Priority: 10, DefaultActive: true,
			Questions: []domain.Question{
				question("q1", selectPH("placeholder1", yes, opt("no", "q2"))),
				question("q2", inputPH("placeholder1", "next_block", domain.ValidationAge)),
			},
		},
		{
			BlockID: "coborrower", BlockNumber: "2", Title: "Co-borrower", Priority: 15,
			Questions: []domain.Question{
				question("c1", inputPH("placeholder1", "next_block", domain.ValidationFreeText)),
			},
		},
		{
			BlockID: "income", BlockNumber: "3", Title: "Redditi", Priority: 20, DefaultActive: true,
			Questions: []domain.Question{
				question("m1", managerPH("placeholder1", "income_{n}", "next_block")),
			},
		},
		{
			BlockID: "income_{n}", BlockNumber: "3.{n}", Title: "Reddito {n}", Priority: 21,
			Questions: []domain.Question{
				question("i{n}_type", selectPH("placeholder1", opt("salary", "i{n}_amount"), opt("rent", "i{n}_amount"))),
				question("i{n}_amount", inputPH("placeholder1", "end_of_subflow", domain.ValidationEuro)),
			},
		},
		{
			BlockID: "final", BlockNumber: "9", Title: "Fine", Priority: 90, DefaultActive: true,
			Questions: []domain.Question{done},
		},
	}
}

// digitsOnly — Validator, принимающий только цифры.
type digitsOnly struct{}

func (digitsOnly) Validate(value string, _ domain.ValidationKind) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func newTestEngine(t *testing.T, mutate func(*Config)) *Engine {
	t.Helper()

	g, err := engine.BuildGraph(testBlocks())
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}

	cfg := Config{
		Graph:     g,
		Validator: digitsOnly{},
		Now:       func() time.Time { return testNow },
	}
	if mutate != nil {
		mutate(&cfg)
	}

	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

// mustDispatch применяет действие и падает на ошибке.
func mustDispatch(t *testing.T, e *Engine, a Action) Result {
	t.Helper()

	res, err := e.Dispatch(a)
	if err != nil {
		t.Fatalf("Dispatch(%T): %v", a, err)
	}
	return res
}

// answer записывает ответ на placeholder1 и переходит вперёд.
func answer(t *testing.T, e *Engine, questionID string, value any) Result {
	t.Helper()

	mustDispatch(t, e, SetResponse{QuestionID: questionID, Key: "placeholder1", Value: value})
	res := mustDispatch(t, e, Navigate{From: questionID})
	if len(res.Invalid) > 0 {
		t.Fatalf("Navigate(%s): invalid placeholders %v", questionID, res.Invalid)
	}
	return res
}

func ref(blockID, questionID string) domain.QuestionRef {
	return domain.QuestionRef{BlockID: blockID, QuestionID: questionID}
}
