// Package main is the entry point for the prreviewer CLI.
package main

import (
	"fmt"
	"os"

	"github.com/JNZader/prreviewer/cmd/prreviewer/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(commands.ExitCode(err))
	}
}
