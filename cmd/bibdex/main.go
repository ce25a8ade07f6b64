// Package main provides the entry point for the bibdex CLI.
package main

import (
	"os"

	"github.com/bibdex/bibdex/cmd/bibdex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
