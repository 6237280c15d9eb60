package cli

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewSessionCmd создаёт группу команд для прохождения анкеты.
func NewSessionCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Walk through a questionnaire session",
	}

	cmd.AddCommand(
		newSessionStartCmd(clientFn, outputFn),
		newSessionShowCmd(clientFn, outputFn),
		newSessionResponsesCmd(clientFn, outputFn),
		newSessionAnswerCmd(clientFn, outputFn),
		newSessionNextCmd(clientFn, outputFn),
		newSessionBackCmd(clientFn, outputFn),
		newSessionGoToCmd(clientFn, outputFn),
		newSessionProgressCmd(clientFn, outputFn),
		newSessionResetCmd(clientFn, outputFn),
		newSessionSubmitCmd(clientFn, outputFn),
		newSessionSaveCmd(clientFn, outputFn),
	)

	return cmd
}

// NewSubmissionCmd создаёт группу команд для отправленных анкет.
func NewSubmissionCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submission",
		Short: "Inspect submitted questionnaires",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show ID",
		Short: "Show a submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := clientFn().GetSubmission(args[0])
			if err != nil {
				return err
			}
			printSubmission(outputFn(), sub)
			return nil
		},
	})

	return cmd
}

func newSessionStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var resume string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a new session or resume a saved one",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			sess, err := clientFn().StartSession(resume)
			if err != nil {
				return err
			}

			if resume != "" {
				out.Success(fmt.Sprintf("Session resumed: %s", sess.ID))
			} else {
				out.Success(fmt.Sprintf("Session started: %s", sess.ID))
			}
			printSession(out, sess)
			return nil
		},
	}

	cmd.Flags().StringVar(&resume, "resume", "", "Resume code of a saved session")

	return cmd
}

func newSessionShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show session state and the active question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := clientFn().GetSession(args[0])
			if err != nil {
				return err
			}
			printSession(outputFn(), sess)
			return nil
		},
	}
}

func newSessionResponsesCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "responses ID QUESTION_ID",
		Short: "Show answers to a question",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := clientFn().GetResponses(args[0], args[1])
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(resp.Values))
			for _, key := range sortedKeys(resp.Values) {
				rows = append(rows, []string{key, formatValue(resp.Values[key])})
			}

			outputFn().Print([]string{"KEY", "VALUE"}, rows, resp)
			return nil
		},
	}
}

func newSessionAnswerCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var next bool

	cmd := &cobra.Command{
		Use:   "answer ID QUESTION_ID KEY=VALUE...",
		Short: "Answer placeholders of a question",
		Long: "Answer placeholders of a question. A VALUE starting with '[' or '{' " +
			"is sent as JSON, everything else as a string.",
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()
			id, qid := args[0], args[1]

			answers, err := parseAnswers(args[2:])
			if err != nil {
				return err
			}

			var last *ActionResponse
			for _, a := range answers {
				last, err = client.SetResponse(id, qid, a.Key, a.Value)
				if err != nil {
					return err
				}
			}

			if next {
				last, err = client.Next(id, NavigateRequest{})
				if err != nil {
					return err
				}
			}

			printAction(out, last)
			return nil
		},
	}

	cmd.Flags().BoolVar(&next, "next", false, "Move forward after answering")

	return cmd
}

func newSessionNextCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var req NavigateRequest

	cmd := &cobra.Command{
		Use:   "next ID",
		Short: "Move forward from the active question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := clientFn().Next(args[0], req)
			if err != nil {
				return err
			}
			printAction(outputFn(), res)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.From, "from", "", "Question to navigate from (active question if empty)")
	cmd.Flags().StringVar(&req.LeadsTo, "leads-to", "", "Explicit destination (resolved from answers if empty)")

	return cmd
}

func newSessionBackCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "back ID",
		Short: "Return to the previous question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := clientFn().Back(args[0])
			if err != nil {
				return err
			}
			printAction(outputFn(), res)
			return nil
		},
	}
}

func newSessionGoToCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var back bool

	cmd := &cobra.Command{
		Use:   "goto ID BLOCK_ID QUESTION_ID",
		Short: "Jump to a question",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := clientFn().GoTo(args[0], GoToRequest{
				BlockID:    args[1],
				QuestionID: args[2],
				IsBack:     back,
			})
			if err != nil {
				return err
			}
			printAction(outputFn(), res)
			return nil
		},
	}

	cmd.Flags().BoolVar(&back, "back", false, "Do not record the jump in navigation history")

	return cmd
}

func newSessionProgressCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "progress ID",
		Short: "Show questionnaire progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := clientFn().Progress(args[0])
			if err != nil {
				return err
			}
			outputFn().Print(
				[]string{"PROGRESS", "END_OF_FORM"},
				[][]string{{strconv.Itoa(p.Progress) + "%", strconv.FormatBool(p.EndOfForm)}},
				p,
			)
			return nil
		},
	}
}

func newSessionResetCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "reset ID",
		Short: "Reset the session to its initial state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := clientFn().Reset(args[0])
			if err != nil {
				return err
			}
			out := outputFn()
			out.Success(fmt.Sprintf("Session reset: %s", args[0]))
			printAction(out, res)
			return nil
		},
	}
}

func newSessionSubmitCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "submit ID",
		Short: "Submit the questionnaire",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := clientFn().Submit(args[0])
			if err != nil {
				return err
			}
			out := outputFn()
			out.Success(fmt.Sprintf("Submitted: %s", sub.ID))
			printSubmission(out, sub)
			return nil
		},
	}
}

func newSessionSaveCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "save ID",
		Short: "Save the session and print a resume code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := clientFn().SaveForResume(args[0])
			if err != nil {
				return err
			}
			out := outputFn()
			out.Success(fmt.Sprintf("Resume with: session start --resume %s", res.Code))
			out.Print([]string{"CODE"}, [][]string{{res.Code}}, res)
			return nil
		},
	}
}

// --- Helpers ---

type answer struct {
	Key   string
	Value any
}

// parseAnswers разбирает аргументы KEY=VALUE.
func parseAnswers(args []string) ([]answer, error) {
	answers := make([]answer, 0, len(args))
	for _, kv := range args {
		key, raw, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid answer format %q, expected KEY=VALUE", kv)
		}
		value, err := parseValue(raw)
		if err != nil {
			return nil, fmt.Errorf("answer %s: %w", key, err)
		}
		answers = append(answers, answer{Key: key, Value: value})
	}
	return answers, nil
}

func parseValue(raw string) (any, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || (trimmed[0] != '[' && trimmed[0] != '{') {
		return raw, nil
	}
	var v any
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return nil, fmt.Errorf("invalid JSON value: %w", err)
	}
	return v, nil
}

func printSession(out *Output, s *SessionResponse) {
	out.Print(
		[]string{"ID", "FORM", "STATUS", "ACTIVE_QUESTION", "PROGRESS"},
		[][]string{{
			s.ID,
			s.FormSlug + " v" + strconv.Itoa(s.FormVersion),
			s.Status,
			s.ActiveQuestion.String(),
			strconv.Itoa(s.Progress) + "%",
		}},
		s,
	)

	if s.Question != nil {
		out.Line("")
		out.Line("%s", s.Question.RenderedText)
		if s.Question.QuestionNotes != "" {
			out.Line("  (%s)", s.Question.QuestionNotes)
		}
	}
	if s.FlowStopped {
		out.Line("flow stopped: go back or reset to continue")
	}
	if s.EndOfForm {
		out.Line("end of form reached")
	}
}

func printAction(out *Output, a *ActionResponse) {
	if a == nil {
		return
	}

	out.Print(
		[]string{"VERSION", "CHANGED", "ACTIVE_QUESTION"},
		[][]string{{strconv.FormatInt(a.Version, 10), strconv.FormatBool(a.Changed), a.ActiveQuestion.String()}},
		a,
	)

	if a.BlockID != "" {
		out.Line("block: %s", a.BlockID)
	}
	if len(a.Invalid) > 0 {
		out.Line("invalid placeholders: %s", strings.Join(a.Invalid, ", "))
	}
	if len(a.Incomplete) > 0 {
		out.Line("incomplete blocks: %s", strings.Join(a.Incomplete, ", "))
	}
	if a.Deferred {
		out.Line("navigation deferred")
	}
	if a.Aborted {
		out.Line("navigation aborted")
	}
	if a.Stopped {
		out.Line("flow stopped")
	}
	if a.EndOfForm {
		out.Line("end of form reached")
	}
}

func printSubmission(out *Output, s *SubmissionResponse) {
	out.Print(
		[]string{"ID", "SESSION_ID", "FORM", "BLOCKS", "CREATED"},
		[][]string{{s.ID, s.SessionID, s.FormSlug, strconv.Itoa(len(s.Blocks)), s.CreatedAt}},
		s,
	)
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}
