package domain

// Sentinel — управляющее значение leads_to, отличное от ID вопроса.
type Sentinel string

const (
	// SentinelNextBlock — перейти к первому вопросу следующего активного блока.
	SentinelNextBlock Sentinel = "next_block"

	// SentinelStopFlow — остановить анкету (тупик, не возобновляется).
	SentinelStopFlow Sentinel = "stop_flow"

	// SentinelEndOfSubflow — завершить копию повторяемой секции и вернуться к менеджеру.
	SentinelEndOfSubflow Sentinel = "end_of_subflow"
)

// Служебные вопросы, которых нет в определении формы.
const (
	// EndOfFormBlockID / EndOfFormQuestionID — синтетический конец формы.
	EndOfFormBlockID    = "end_of_form"
	EndOfFormQuestionID = "end_of_form"

	// StopFlowBlockID / StopFlowQuestionID — анкета остановлена через stop_flow.
	StopFlowBlockID    = "stop_flow"
	StopFlowQuestionID = "stop_flow"
)

// IsSentinel проверяет, является ли значение leads_to управляющим.
func IsSentinel(leadsTo string) bool {
	switch Sentinel(leadsTo) {
	case SentinelNextBlock, SentinelStopFlow, SentinelEndOfSubflow:
		return true
	default:
		return false
	}
}

// Destination — результат резолвера: либо ID вопроса, либо sentinel.
type Destination struct {
	QuestionID string   `json:"question_id,omitempty"`
	Sentinel   Sentinel `json:"sentinel,omitempty"`
}

// DestinationFor преобразует значение leads_to в Destination.
// Пустое значение превращается в next_block.
func DestinationFor(leadsTo string) Destination {
	if leadsTo == "" {
		return Destination{Sentinel: SentinelNextBlock}
	}
	if IsSentinel(leadsTo) {
		return Destination{Sentinel: Sentinel(leadsTo)}
	}
	return Destination{QuestionID: leadsTo}
}

// IsSentinel возвращает true, если destination — управляющее значение.
func (d Destination) IsSentinel() bool {
	return d.Sentinel != ""
}

// String возвращает значение в формате leads_to.
func (d Destination) String() string {
	if d.Sentinel != "" {
		return string(d.Sentinel)
	}
	return d.QuestionID
}
