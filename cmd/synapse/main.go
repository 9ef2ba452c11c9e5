// Package main provides the entry point for the synapse server CLI.
package main

import (
	"os"

	"github.com/synapse-rag/synapse/cmd/synapse/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
