// Command soundpilot is the CLI and server entry point for the Soundpilot
// spoken command recogniser.
package main

import (
	"os"

	"github.com/soundpilot/soundpilot/cmd/soundpilot/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
