// The main package for the cvmfs-scraper executable.
package main

import (
	"github.com/JakeFAU/cvmfs-scraper/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
