package engine

import "github.com/Casium-it/mutuo-rapido-italia-sub000/internal/domain"

func opt(id, leadsTo string) domain.Option {
	return domain.Option{ID: id, Label: id, LeadsTo: leadsTo}
}

func selectPH(key string, options ...domain.Option) domain.PlaceholderEntry {
	return domain.PlaceholderEntry{
		Key:         key,
		Placeholder: domain.Placeholder{Select: &domain.SelectField{Options: options}},
	}
}

func multiPH(key string, options ...domain.Option) domain.PlaceholderEntry {
	e := selectPH(key, options...)
	e.Placeholder.Select.Multiple = true
	return e
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

// fixtureBlocks — небольшая форма: два блока по умолчанию, опциональный
// блок, blueprint доходов и конец формы.
//
//	intro (p10): q1 → q2 → next_block; q1 "yes" активирует coborrower
//	coborrower (p15): c1 → next_block
//	income (p20): m1 (менеджер income_{n}) → done
//	income_{n}: i{n}_type → i{n}_amount → end_of_subflow
//	final (p90): done (endOfForm)
func fixtureBlocks() []domain.Block {
	yes := opt("yes", "q2")
	yes.AddBlock = "coborrower"

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
			Questions: []domain.Question{
				func() domain.Question {
					q := question("done", selectPH("placeholder1", opt("ok", "")))
					q.EndOfForm = true
					return q
				}(),
			},
		},
	}
}
