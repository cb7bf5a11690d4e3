// Package main provides the entry point for the docfed CLI.
package main

import (
	"os"

	"github.com/devdocai/docfed/cmd/docfed/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
