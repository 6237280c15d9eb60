package engine

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/domain"
)

func TestResolve_PriorityPlaceholderWins(t *testing.T) {
	q := question("q",
		selectPH("a", opt("x", "from_a")),
		selectPH("b", opt("y", "from_b")),
	)
	q.LeadsToPlaceholderPriority = "b"

	responses := domain.Responses{}
	responses.Set("q", "a", "x")
	responses.Set("q", "b", "y")

	got := Resolve(&q, responses)
	if got.QuestionID != "from_b" {
		t.Errorf("expected from_b, got %s", got)
	}
}

func TestResolve_PriorityWithoutResponseFallsBack(t *testing.T) {
	q := question("q",
		selectPH("a", opt("x", "from_a")),
		selectPH("b", opt("y", "from_b")),
	)
	q.LeadsToPlaceholderPriority = "b"

	responses := domain.Responses{}
	responses.Set("q", "a", "x")

	if got := Resolve(&q, responses); got.QuestionID != "from_a" {
		t.Errorf("expected from_a, got %s", got)
	}
}

func TestResolve_FirstPopulatedInOrder(t *testing.T) {
	q := question("q",
		inputPH("a", "from_a", domain.ValidationEuro),
		inputPH("b", "from_b", domain.ValidationEuro),
	)

	responses := domain.Responses{}
	responses.Set("q", "b", "1000")

	if got := Resolve(&q, responses); got.QuestionID != "from_b" {
		t.Errorf("expected from_b, got %s", got)
	}

	responses.Set("q", "a", "500")
	if got := Resolve(&q, responses); got.QuestionID != "from_a" {
		t.Errorf("expected from_a once a is answered, got %s", got)
	}
}

func TestResolve_DefaultsToNextBlock(t *testing.T) {
	tests := []struct {
		name      string
		q         domain.Question
		responses domain.Responses
	}{
		{
			name:      "no responses",
			q:         question("q", selectPH("a", opt("x", "target"))),
			responses: domain.Responses{},
		},
		{
			name:      "option without leads_to",
			q:         question("q", selectPH("a", opt("x", ""))),
			responses: domain.Responses{"q": {"a": "x"}},
		},
		{
			name:      "unknown option id",
			q:         question("q", selectPH("a", opt("x", "target"))),
			responses: domain.Responses{"q": {"a": "bogus"}},
		},
		{
			name:      "empty input",
			q:         question("q", inputPH("a", "target", "")),
			responses: domain.Responses{"q": {"a": ""}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(&tt.q, tt.responses)
			if got.Sentinel != domain.SentinelNextBlock {
				t.Errorf("expected next_block, got %s", got)
			}
		})
	}
}

func TestResolve_Sentinels(t *testing.T) {
	q := question("q", selectPH("a",
		opt("stop", "stop_flow"),
		opt("sub", "end_of_subflow"),
	))

	got := Resolve(&q, domain.Responses{"q": {"a": "stop"}})
	if got.Sentinel != domain.SentinelStopFlow {
		t.Errorf("expected stop_flow, got %s", got)
	}

	got = Resolve(&q, domain.Responses{"q": {"a": "sub"}})
	if got.Sentinel != domain.SentinelEndOfSubflow {
		t.Errorf("expected end_of_subflow, got %s", got)
	}
}

func TestResolve_MultiSelectUsesOptionOrder(t *testing.T) {
	q := question("q", multiPH("a",
		opt("first", ""),
		opt("second", "to_second"),
		opt("third", "to_third"),
	))

	// Порядок выбора не важен — важен порядок вариантов
	responses := domain.Responses{"q": {"a": []any{"third", "second"}}}
	if got := Resolve(&q, responses); got.QuestionID != "to_second" {
		t.Errorf("expected to_second, got %s", got)
	}
}

func TestResolve_ManagerWithoutResponse(t *testing.T) {
	q := question("q", managerPH("a", "income_{n}", "after_income"))

	if got := Resolve(&q, domain.Responses{}); got.QuestionID != "after_income" {
		t.Errorf("expected after_income, got %s", got)
	}
}

func TestSelectedAddBlocks(t *testing.T) {
	a := opt("a", "")
	a.AddBlock = "block_a"
	b := opt("b", "")
	b.AddBlock = "block_b"
	c := opt("c", "")
	c.AddBlock = "block_a"

	q := question("q", multiPH("p", a, b, c))
	responses := domain.Responses{"q": {"p": []string{"c", "b", "a"}}}

	got := SelectedAddBlocks(&q, responses)
	if diff := cmp.Diff([]string{"block_a", "block_b"}, got); diff != "" {
		t.Errorf("add_block mismatch (-want +got):\n%s", diff)
	}
}
