// The main package for the magarchive executable.
package main

import (
	"github.com/JakeFAU/magazine-archive/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
