package engine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/domain"
)

// InstanceKey — составной ключ копии: blueprint + номер копии.
type InstanceKey struct {
	BlueprintID string
	CopyNumber  int
}

// InstanceID возвращает block_id копии.
//
// Токен {n} в ID blueprint'а заменяется номером копии. Если токена нет,
// номер добавляется суффиксом "_N".
func InstanceID(key InstanceKey) string {
	return substitute(key.BlueprintID, key.CopyNumber)
}

// InstanceQuestionID возвращает question_id вопроса копии.
// Правило то же, что у InstanceID: ответы разных копий не пересекаются.
func InstanceQuestionID(questionID string, copyNumber int) string {
	return substitute(questionID, copyNumber)
}

func substitute(id string, n int) string {
	num := strconv.Itoa(n)
	if strings.Contains(id, domain.CopyToken) {
		return strings.ReplaceAll(id, domain.CopyToken, num)
	}
	return id + "_" + num
}

// Instantiate создаёт копию blueprint'а.
//
// Вопросы клонируются глубоко; в ID вопросов, leads_to и add_block,
// ссылающихся на вопросы/ID того же blueprint'а, подставляется номер копии.
// parentBlockID — блок, содержащий вопрос-менеджер.
func Instantiate(blueprint *domain.Block, copyNumber int, parentBlockID string) (domain.Block, error) {
	if blueprint == nil || !blueprint.IsBlueprint() {
		return domain.Block{}, ErrUnknownBlueprint
	}
	if copyNumber < 1 {
		return domain.Block{}, fmt.Errorf("%w: %d", ErrInvalidCopyNumber, copyNumber)
	}

	key := InstanceKey{BlueprintID: blueprint.BlockID, CopyNumber: copyNumber}
	blockID := InstanceID(key)

	// Вопросы blueprint'а: только на них переписываются ссылки
	local := make(map[string]bool, len(blueprint.Questions))
	for i := range blueprint.Questions {
		local[blueprint.Questions[i].QuestionID] = true
	}
	rewrite := func(ref string) string {
		switch {
		case ref == "" || domain.IsSentinel(ref):
			return ref
		case local[ref]:
			return InstanceQuestionID(ref, copyNumber)
		case strings.Contains(ref, domain.CopyToken):
			return strings.ReplaceAll(ref, domain.CopyToken, strconv.Itoa(copyNumber))
		default:
			return ref
		}
	}

	out := blueprint.Clone()
	out.BlockID = blockID
	out.DefaultActive = false
	out.BlueprintID = blueprint.BlockID
	out.CopyNumber = copyNumber
	out.ParentBlockID = parentBlockID
	out.Title = strings.ReplaceAll(out.Title, domain.CopyToken, strconv.Itoa(copyNumber))

	for i := range out.Questions {
		q := &out.Questions[i]
		q.SourceQuestionID = q.QuestionID
		q.QuestionID = InstanceQuestionID(q.QuestionID, copyNumber)
		q.BlockID = blockID

		for j := range q.Placeholders {
			p := &q.Placeholders[j].Placeholder
			switch p.Kind() {
			case domain.PlaceholderSelect:
				for k := range p.Select.Options {
					opt := &p.Select.Options[k]
					opt.LeadsTo = rewrite(opt.LeadsTo)
					opt.AddBlock = rewrite(opt.AddBlock)
				}
			case domain.PlaceholderInput:
				p.Input.LeadsTo = rewrite(p.Input.LeadsTo)
			case domain.PlaceholderManager:
				p.Manager.LeadsTo = rewrite(p.Manager.LeadsTo)
			}
		}
	}

	return out, nil
}

// NextCopyNumber возвращает номер следующей копии blueprint'а.
//
// Номер = max(counter, max номер существующих копий) + 1, поэтому номера
// удалённых копий никогда не переиспользуются.
func NextCopyNumber(blueprintID string, counter int, dynamic []domain.Block) int {
	highest := counter
	for i := range dynamic {
		if dynamic[i].BlueprintID == blueprintID && dynamic[i].CopyNumber > highest {
			highest = dynamic[i].CopyNumber
		}
	}
	return highest + 1
}

// CopiesOf возвращает копии blueprint'а в порядке номеров.
func CopiesOf(blueprintID string, dynamic []domain.Block) []*domain.Block {
	out := make([]*domain.Block, 0)
	for i := range dynamic {
		if dynamic[i].BlueprintID == blueprintID {
			out = append(out, &dynamic[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CopyNumber < out[j].CopyNumber
	})
	return out
}
