// Package main provides the entry point for glyph-cli.
package main

import (
	"os"

	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/cli/command"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		command.PrintError("%v", err)
		os.Exit(1)
	}
}
