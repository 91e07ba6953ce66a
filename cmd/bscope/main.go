// Package main is the entry point for the bscope CLI tool.
package main

import (
	"github.com/hargabyte/bundlescope/internal/cmd"
)

func main() {
	cmd.Execute()
}
