package engine

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/domain"
)

func TestFieldKey(t *testing.T) {
	tests := []struct {
		source, key, want string
	}{
		{"income_{n}_amount", "placeholder1", "income_amount.placeholder1"},
		{"i{n}_type", "placeholder1", "i_type.placeholder1"},
		{"{n}_x", "p", "x.p"},
		{"plain", "p", "plain.p"},
	}

	for _, tt := range tests {
		if got := FieldKey(tt.source, tt.key); got != tt.want {
			t.Errorf("FieldKey(%q, %q) = %q, want %q", tt.source, tt.key, got, tt.want)
		}
	}
}

func TestRepeatingGroups(t *testing.T) {
	g, err := BuildGraph(fixtureBlocks())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bp := g.Blueprint("income_{n}")

	c3, _ := Instantiate(bp, 3, "income")
	c1, _ := Instantiate(bp, 1, "income")

	responses := domain.Responses{}
	responses.Set("i1_type", "placeholder1", "salary")
	responses.Set("i1_amount", "placeholder1", "2000")
	responses.Set("i3_type", "placeholder1", "rent")
	responses.Set("q1", "placeholder1", "yes")

	groups := RepeatingGroups([]domain.Block{c3, c1}, responses)

	want := map[string][]domain.RepeatingGroupEntry{
		"income_{n}": {
			{
				ID: "income_1", BlueprintID: "income_{n}", CopyNumber: 1,
				Fields: map[string]any{
					"i_type.placeholder1":   "salary",
					"i_amount.placeholder1": "2000",
				},
			},
			{
				ID: "income_3", BlueprintID: "income_{n}", CopyNumber: 3,
				Fields: map[string]any{
					"i_type.placeholder1": "rent",
				},
			},
		},
	}

	if diff := cmp.Diff(want, groups); diff != "" {
		t.Errorf("repeating groups mismatch (-want +got):\n%s", diff)
	}
}
