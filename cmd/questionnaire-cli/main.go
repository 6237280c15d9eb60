// Questionnaire CLI — инструмент командной строки для прохождения
// анкеты через HTTP API и проверки определений форм.
//
// Использование:
//
//	questionnaire [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	session     Прохождение анкеты
//	block       Блоки и повторяемые секции
//	submission  Отправленные анкеты
//	form        Проверка и публикация определений форм
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "questionnaire",
		Short:         "Questionnaire CLI — mortgage questionnaire client",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewSessionCmd(clientFn, outputFn),
		cli.NewBlockCmd(clientFn, outputFn),
		cli.NewSubmissionCmd(clientFn, outputFn),
		cli.NewFormCmd(outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
