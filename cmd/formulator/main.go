// Formulator — CLI для вывода новых таблиц силами LLM с циклом исправления кода.
//
// Использование:
//
//	./formulator models
//	./formulator derive -input tables.json -instruction "sum sales by region" -fields region,total
//	./formulator refine -dialog leader.json -instruction "also add the share of total"
//	./formulator traces -n 5
//
// config.yaml ищется рядом с бинарником, в текущей и родительских директориях
// или берётся из флага -config подкоманды.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	cli "github.com/ilkoid/formulator/internal/app"
	"github.com/ilkoid/formulator/pkg/utils"
)

// Version — версия утилиты (заполняется при сборке)
var Version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	registry := cli.NewCommandRegistry()
	cli.SetupCommands(registry)

	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		registry.Usage(os.Stdout, "formulator")
		return 0
	}
	if args[0] == "version" || args[0] == "-version" {
		fmt.Printf("formulator version %s\n", Version)
		return 0
	}

	// Ctrl+C отменяет контекст: провайдеры и исполнитель кода прерываются
	ctx, shutdown := utils.SetupGracefulShutdown(context.Background())
	defer shutdown()

	if err := registry.Execute(ctx, cli.DefaultEnv(), args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if hint := cli.ErrorHint(err); hint != "" {
			fmt.Fprintln(os.Stderr, hint)
		}
		if errors.Is(err, cli.ErrUsage) {
			registry.Usage(os.Stderr, "formulator")
			return 2
		}
		return 1
	}
	return 0
}
