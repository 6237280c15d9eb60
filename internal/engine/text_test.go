package engine

import (
	"testing"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/domain"
)

func TestRenderText(t *testing.T) {
	q := question("q",
		multiPH("kind", domain.Option{ID: "a", Label: "Dipendente"}, domain.Option{ID: "b", Label: "Autonomo"}),
		inputPH("amount", "", domain.ValidationEuro),
		managerPH("mgr", "x_{n}", ""),
	)
	q.QuestionText = "Sono {{kind}} e guadagno {{ amount }} euro. {{mgr}} {{other}}"

	got := RenderText(&q, domain.Responses{})
	want := "Sono ____ e guadagno ____ euro. Aggiungi {{other}}"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	responses := domain.Responses{"q": {"kind": []string{"b", "a"}, "amount": "1500"}}
	got = RenderText(&q, responses)
	want = "Sono Autonomo, Dipendente e guadagno 1500 euro. Aggiungi {{other}}"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
