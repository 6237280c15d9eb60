package engine

import (
	"sort"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/domain"
)

// Graph — неизменяемый индекс статических блоков формы.
//
// Строится один раз на сессию (или один раз на версию формы и
// разделяется между сессиями). Динамические копии в граф не входят:
// они живут в FormState.DynamicBlocks.
type Graph struct {
	// blocks — статические блоки в порядке объявления (включая blueprint'ы).
	blocks []*domain.Block

	// byID — блоки по ID.
	byID map[string]*domain.Block

	// questionBlock — ID вопроса → ID блока.
	questionBlock map[string]string

	// order — статические не-blueprint блоки в порядке обхода next_block.
	order []*domain.Block

	// managers — ID blueprint'а → блок, содержащий вопрос-менеджер.
	managers map[string]string

	// endOfForm — вопрос с флагом endOfForm (или синтетический).
	endOfForm domain.QuestionRef
}

// BuildGraph валидирует блоки и строит Graph.
//
// Блоки клонируются: граф не разделяет память с вызывающим.
// Каждому вопросу проставляется BlockID.
func BuildGraph(blocks []domain.Block) (*Graph, error) {
	if err := Validate(blocks); err != nil {
		return nil, err
	}

	g := &Graph{
		blocks:        make([]*domain.Block, 0, len(blocks)),
		byID:          make(map[string]*domain.Block, len(blocks)),
		questionBlock: make(map[string]string),
		managers:      make(map[string]string),
		endOfForm: domain.QuestionRef{
			BlockID:    domain.EndOfFormBlockID,
			QuestionID: domain.EndOfFormQuestionID,
		},
	}

	// Первый проход: клонируем и индексируем
	for i := range blocks {
		b := blocks[i].Clone()
		for j := range b.Questions {
			b.Questions[j].BlockID = b.BlockID
		}

		g.blocks = append(g.blocks, &b)
		g.byID[b.BlockID] = &b
		for j := range b.Questions {
			g.questionBlock[b.Questions[j].QuestionID] = b.BlockID
		}
	}

	// Второй проход: менеджеры, конец формы, порядок обхода
	foundEnd := false
	for _, b := range g.blocks {
		if b.IsBlueprint() {
			continue
		}
		g.order = append(g.order, b)

		for j := range b.Questions {
			q := &b.Questions[j]
			if _, m := q.Manager(); m != nil {
				if _, exists := g.managers[m.BlueprintID]; !exists {
					g.managers[m.BlueprintID] = b.BlockID
				}
			}
			if q.EndOfForm && !foundEnd {
				g.endOfForm = domain.QuestionRef{BlockID: b.BlockID, QuestionID: q.QuestionID}
				foundEnd = true
			}
		}
	}

	sort.SliceStable(g.order, func(i, j int) bool {
		return blockLess(g.order[i], g.order[j])
	})

	return g, nil
}

// blockLess задаёт порядок обхода: priority, затем block_number, затем block_id.
func blockLess(a, b *domain.Block) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if a.BlockNumber != b.BlockNumber {
		return a.BlockNumber < b.BlockNumber
	}
	return a.BlockID < b.BlockID
}

// Blocks возвращает статические блоки в порядке объявления.
func (g *Graph) Blocks() []*domain.Block {
	return g.blocks
}

// Block возвращает статический блок по ID.
func (g *Graph) Block(blockID string) *domain.Block {
	return g.byID[blockID]
}

// Blueprint возвращает blueprint по ID или nil, если блок не является blueprint'ом.
func (g *Graph) Blueprint(blueprintID string) *domain.Block {
	b := g.byID[blueprintID]
	if b == nil || !b.IsBlueprint() {
		return nil
	}
	return b
}

// Blueprints возвращает все blueprint'ы формы.
func (g *Graph) Blueprints() []*domain.Block {
	out := make([]*domain.Block, 0)
	for _, b := range g.blocks {
		if b.IsBlueprint() {
			out = append(out, b)
		}
	}
	return out
}

// QuestionBlockID возвращает ID статического блока, содержащего вопрос.
func (g *Graph) QuestionBlockID(questionID string) (string, bool) {
	id, ok := g.questionBlock[questionID]
	return id, ok
}

// Question возвращает вопрос статического блока по ID.
func (g *Graph) Question(questionID string) *domain.Question {
	blockID, ok := g.questionBlock[questionID]
	if !ok {
		return nil
	}
	return g.byID[blockID].Question(questionID)
}

// ManagerBlockID возвращает блок, в котором находится вопрос-менеджер blueprint'а.
func (g *Graph) ManagerBlockID(blueprintID string) string {
	return g.managers[blueprintID]
}

// ManagerQuestion возвращает вопрос-менеджер blueprint'а.
func (g *Graph) ManagerQuestion(blueprintID string) *domain.Question {
	blockID, ok := g.managers[blueprintID]
	if !ok {
		return nil
	}
	for i := range g.byID[blockID].Questions {
		q := &g.byID[blockID].Questions[i]
		if _, m := q.Manager(); m != nil && m.BlueprintID == blueprintID {
			return q
		}
	}
	return nil
}

// DefaultActive возвращает ID блоков, активных с начала сессии.
func (g *Graph) DefaultActive() []string {
	out := make([]string, 0)
	for _, b := range g.order {
		if b.DefaultActive {
			out = append(out, b.BlockID)
		}
	}
	return out
}

// Order возвращает статические блоки в порядке обхода next_block.
func (g *Graph) Order() []*domain.Block {
	return g.order
}

// EndOfForm возвращает адрес вопроса "конец формы".
func (g *Graph) EndOfForm() domain.QuestionRef {
	return g.endOfForm
}

// FirstQuestion возвращает адрес первого вопроса анкеты:
// первый вопрос первого активного по умолчанию блока в порядке обхода.
func (g *Graph) FirstQuestion() domain.QuestionRef {
	for _, b := range g.order {
		if b.DefaultActive && len(b.Questions) > 0 {
			return domain.QuestionRef{BlockID: b.BlockID, QuestionID: b.Questions[0].QuestionID}
		}
	}
	return g.endOfForm
}

// NextBlock реализует обход next_block.
//
// Берёт статические блоки в порядке обхода, находит текущий блок и
// возвращает первый блок после него, который активен и не завершён.
// Если текущий блок не найден в порядке обхода, поиск идёт с начала.
// nil означает, что блоков не осталось (конец формы).
func (g *Graph) NextBlock(active, completed domain.StringSet, fromBlockID string) *domain.Block {
	start := 0
	for i, b := range g.order {
		if b.BlockID == fromBlockID {
			start = i + 1
			break
		}
	}

	for _, b := range g.order[start:] {
		if b.BlockID == fromBlockID || len(b.Questions) == 0 {
			continue
		}
		if active.Has(b.BlockID) && !completed.Has(b.BlockID) {
			return b
		}
	}

	return nil
}
