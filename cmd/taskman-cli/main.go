package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/taskman/internal/cli"
	"github.com/hitoshi/taskman/internal/logger"
)

func main() {
	logger.SetupDefault(os.Stderr)

	if err := cli.Execute(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
