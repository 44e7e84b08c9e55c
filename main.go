// The main package for the sitewatch executable.
package main

import (
	"github.com/sitewatch/sitewatch/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
