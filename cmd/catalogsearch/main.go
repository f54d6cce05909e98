// Package main provides the entry point for the catalogsearch CLI.
package main

import (
	"fmt"
	"os"

	"github.com/shopfront/catalogsearch/cmd/catalogsearch/cmd"
	"github.com/shopfront/catalogsearch/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprint(os.Stderr, errors.FormatForCLI(err))
		os.Exit(1)
	}
}
