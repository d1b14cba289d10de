// The main package for the harbour-movements executable.
package main

import (
	"github.com/JakeFAU/harbour-movements/cmd"
)

func main() {
	cmd.Execute()
}
