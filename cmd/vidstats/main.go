// Package main is the entry point for the vidstats binary.
package main

import (
	"os"

	"vidstats/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
