package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewBlockCmd создаёт группу команд для управления блоками сессии.
func NewBlockCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "block",
		Short: "Manage session blocks and repeating sections",
	}

	cmd.AddCommand(
		newBlockActionCmd("activate ID BLOCK_ID", "Activate a block", clientFn, outputFn, (*Client).ActivateBlock),
		newBlockActionCmd("deactivate ID BLOCK_ID", "Deactivate a block", clientFn, outputFn, (*Client).DeactivateBlock),
		newBlockActionCmd("add ID BLUEPRINT_ID", "Create a copy of a repeating section", clientFn, outputFn, (*Client).CreateDynamicBlock),
		newBlockActionCmd("delete ID BLOCK_ID", "Delete a copy of a repeating section", clientFn, outputFn, (*Client).DeleteDynamicBlock),
		newBlockStatusCmd(clientFn, outputFn),
		newBlockIncompleteCmd(clientFn, outputFn),
	)

	return cmd
}

func newBlockActionCmd(
	use, short string,
	clientFn func() *Client,
	outputFn func() *Output,
	action func(*Client, string, string) (*ActionResponse, error),
) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := action(clientFn(), args[0], args[1])
			if err != nil {
				return err
			}
			printAction(outputFn(), res)
			return nil
		},
	}
}

func newBlockStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status ID BLOCK_ID",
		Short: "Show whether a block is active and completed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := clientFn().BlockStatus(args[0], args[1])
			if err != nil {
				return err
			}
			outputFn().Print(
				[]string{"BLOCK_ID", "ACTIVE", "COMPLETED"},
				[][]string{{st.BlockID, strconv.FormatBool(st.Active), strconv.FormatBool(st.Completed)}},
				st,
			)
			return nil
		},
	}
}

func newBlockIncompleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "incomplete ID BLUEPRINT_ID",
		Short: "List copies of a repeating section that are not filled in",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := clientFn().IncompleteBlocks(args[0], args[1])
			if err != nil {
				return err
			}

			out := outputFn()
			if len(res.BlockIDs) == 0 && !out.JSONMode() {
				out.Success(fmt.Sprintf("All copies of %s are complete", res.BlueprintID))
				return nil
			}

			rows := make([][]string, len(res.BlockIDs))
			for i, id := range res.BlockIDs {
				rows[i] = []string{id}
			}
			out.Print([]string{"BLOCK_ID"}, rows, res)
			return nil
		},
	}
}
