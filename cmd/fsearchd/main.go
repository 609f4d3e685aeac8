// Package main provides the entry point for the fsearchd CLI.
package main

import (
	"os"

	"github.com/fsearchd/fsearchd/cmd/fsearchd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
